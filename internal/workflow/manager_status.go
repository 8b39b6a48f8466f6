package workflow

import (
	"context"
	"sort"

	"lipsync/internal/logging"
	"lipsync/internal/preflight"
	"lipsync/internal/queue"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running     bool
	ActiveJobs  []string
	LastError   string
	LastJob     *queue.Job
	Queue       queue.HealthSummary
	StageHealth []StageHealth
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	summary := StatusSummary{Running: m.running}
	for id := range m.active {
		summary.ActiveJobs = append(summary.ActiveJobs, id)
	}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	if m.lastJob != nil {
		job := *m.lastJob
		summary.LastJob = &job
	}
	m.mu.RUnlock()
	sort.Strings(summary.ActiveJobs)

	health, err := m.store.Health(ctx)
	if err != nil {
		m.logger.Warn("failed to read queue stats", logging.Error(err))
	}
	summary.Queue = health
	summary.StageHealth = m.stageHealth(ctx)
	return summary
}

// stageHealth folds preflight results into per-stage readiness.
func (m *Manager) stageHealth(ctx context.Context) []StageHealth {
	var results []preflight.Result
	if m.preflight != nil {
		results = m.preflight(ctx)
	}
	out := evaluateStages(results)
	queueHealth := StageHealth{Name: "queue", Ready: true}
	if err := m.store.Ping(ctx); err != nil {
		queueHealth.Ready = false
		queueHealth.Detail = err.Error()
	}
	return append(out, queueHealth)
}

// Cancel stops a running job. It reports whether the job was running.
func (m *Manager) Cancel(jobID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	cancel, ok := m.active[jobID]
	if !ok {
		return false
	}
	m.canceled[jobID] = struct{}{}
	cancel()
	return true
}

// IsActive reports whether jobID is running in this process.
func (m *Manager) IsActive(jobID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.active[jobID]
	return ok
}

func (m *Manager) trackActive(jobID string, cancel func()) {
	m.mu.Lock()
	m.active[jobID] = cancel
	m.mu.Unlock()
}

func (m *Manager) untrackActive(jobID string) {
	m.mu.Lock()
	delete(m.active, jobID)
	delete(m.canceled, jobID)
	m.mu.Unlock()
}

func (m *Manager) wasCanceled(jobID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.canceled[jobID]
	return ok
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastJob(job *queue.Job) {
	m.mu.Lock()
	if job != nil {
		snapshot := *job
		m.lastJob = &snapshot
	} else {
		m.lastJob = nil
	}
	m.mu.Unlock()
}
