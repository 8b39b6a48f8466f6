package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"lipsync/internal/logging"
	"lipsync/internal/preflight"
	"lipsync/internal/staging"
)

const workspaceSweepInterval = 15 * time.Minute

// Start fails jobs interrupted by a previous daemon run and begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if m.converter == nil || m.store == nil {
		m.mu.Unlock()
		return errors.New("workflow requires a converter and a queue store")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	lanes := max(m.cfg.Workflow.MaxConcurrentJobs, 1)
	m.wg.Add(lanes + 1)
	m.mu.Unlock()

	if n, err := m.store.FailInterrupted(ctx); err != nil {
		m.logger.Warn("failed to mark interrupted jobs", logging.Error(err))
	} else if n > 0 {
		logging.WarnWithContext(m.logger, "marked jobs interrupted by the previous daemon run as failed", "jobs_interrupted",
			logging.Int("count", int(n)),
			logging.String(logging.FieldImpact, "jobs are not retried; resubmit them"),
		)
	}

	for i := range lanes {
		go m.runLane(runCtx, m.logger.With(logging.String("lane", fmt.Sprintf("lane-%d", i+1))))
	}
	go m.runMaintenance(runCtx)
	m.logger.Info("workflow started", logging.Int("lanes", lanes))
	return nil
}

// Stop terminates background processing and waits for in-flight jobs to wind down.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

func (m *Manager) runLane(ctx context.Context, logger *slog.Logger) {
	defer m.wg.Done()
	lastPreflight := ""
	for {
		if ctx.Err() != nil {
			return
		}

		if m.preflight != nil {
			if failed := preflight.Failed(m.preflight(ctx)); len(failed) > 0 {
				summary := summarizePreflight(failed)
				if summary != lastPreflight {
					logging.ErrorWithContext(logger, "preflight checks failed; not claiming jobs", "preflight_failed",
						logging.String("failures", summary),
						logging.String(logging.FieldErrorHint, "fix the reported issue; the lane retries automatically"),
					)
					lastPreflight = summary
				}
				m.setLastError(fmt.Errorf("preflight checks failed: %s", summary))
				m.waitForJobOrShutdown(ctx)
				continue
			}
			lastPreflight = ""
		}

		job, err := m.store.NextPending(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.setLastError(err)
			logger.Error("failed to claim next job",
				logging.Error(err),
				logging.String(logging.FieldEventType, "queue_fetch_failed"),
				logging.String(logging.FieldErrorHint, "check queue database access"),
			)
			m.waitForJobOrShutdown(ctx)
			continue
		}
		if job == nil {
			m.waitForJobOrShutdown(ctx)
			continue
		}
		m.processJob(ctx, logger, job)
	}
}

func (m *Manager) waitForJobOrShutdown(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(m.pollInterval):
	}
}

// runMaintenance fails jobs with expired heartbeats and sweeps stale workspaces.
func (m *Manager) runMaintenance(ctx context.Context) {
	defer m.wg.Done()
	logger := logging.NewComponentLogger(m.logger, "workflow-maintenance")
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	var lastSweep time.Time
	for {
		if err := m.heartbeat.ReclaimStale(ctx, logger); err != nil && ctx.Err() == nil {
			logger.Warn("reclaim stale jobs failed; stuck jobs may remain",
				logging.Error(err),
				logging.String(logging.FieldEventType, "heartbeat_reclaim_failed"),
				logging.String(logging.FieldErrorHint, "check queue database access"),
			)
		}
		if time.Since(lastSweep) >= workspaceSweepInterval {
			m.SweepWorkspaces(ctx)
			lastSweep = time.Now()
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// SweepWorkspaces removes job workspaces older than workflow.stale_workspace_hours,
// skipping jobs that are running. A zero age disables the sweep.
func (m *Manager) SweepWorkspaces(ctx context.Context) staging.CleanStaleResult {
	age := m.cfg.StaleWorkspaceAge()
	if age <= 0 {
		return staging.CleanStaleResult{}
	}
	return staging.CleanStale(ctx, m.cfg.Paths.WorkDir, age, m.IsActive, m.logger)
}

func summarizePreflight(failed []preflight.Result) string {
	parts := make([]string, 0, len(failed))
	for _, r := range failed {
		parts = append(parts, r.Name+": "+r.Detail)
	}
	return strings.Join(parts, "; ")
}
