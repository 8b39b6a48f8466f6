// Package workflow advances queued conversion jobs through the pipeline.
//
// The Manager runs workflow.max_concurrent_jobs lanes. Each lane claims the
// oldest pending job, runs pipeline.Driver.Convert with an observer that
// persists stage and segment progress and publishes events to the hub, and
// records the classified outcome. A heartbeat keeps in-flight jobs alive;
// jobs whose heartbeat expires are failed, never retried. The manager also
// sweeps job workspaces that failed runs left behind once they exceed
// workflow.stale_workspace_hours.
package workflow
