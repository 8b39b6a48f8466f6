package api

import (
	"time"

	"lipsync/internal/deps"
	"lipsync/internal/events"
	"lipsync/internal/queue"
	"lipsync/internal/workflow"
)

// FromJob converts a queue job into its transport representation.
func FromJob(job *queue.Job) Job {
	if job == nil {
		return Job{}
	}
	return Job{
		ID:             job.ID,
		Status:         string(job.Status),
		SegmentSeconds: job.SegmentSeconds,
		VideoPath:      job.VideoPath,
		AudioPath:      job.AudioPath,
		OutputPath:     job.OutputPath,
		Progress: JobProgress{
			Stage:   job.Stage,
			Done:    job.SegmentsDone,
			Total:   job.SegmentsTotal,
			Percent: job.Percent(),
		},
		VideoSegments: job.VideoSegments,
		AudioSegments: job.AudioSegments,
		Truncated:     job.Truncated,
		ErrorKind:     job.ErrorKind,
		ErrorMessage:  job.ErrorMessage,
		CreatedAt:     formatTime(job.CreatedAt),
		UpdatedAt:     formatTime(job.UpdatedAt),
		StartedAt:     formatTimePtr(job.StartedAt),
		FinishedAt:    formatTimePtr(job.FinishedAt),
	}
}

// FromJobs converts a slice of queue jobs.
func FromJobs(jobs []*queue.Job) []Job {
	out := make([]Job, 0, len(jobs))
	for _, job := range jobs {
		if job == nil {
			continue
		}
		out = append(out, FromJob(job))
	}
	return out
}

// FromEvent converts a hub event.
func FromEvent(evt events.Event) Event {
	return Event{
		Sequence:  evt.Sequence,
		Timestamp: formatTime(evt.Timestamp),
		JobID:     evt.JobID,
		State:     evt.State,
		Done:      evt.Done,
		Total:     evt.Total,
		Message:   evt.Message,
		ErrorKind: evt.ErrorKind,
		Terminal:  evt.Terminal(),
	}
}

// FromStatusSummary converts workflow diagnostics.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	out := WorkflowStatus{
		Running:    summary.Running,
		ActiveJobs: append([]string{}, summary.ActiveJobs...),
		LastError:  summary.LastError,
		QueueStats: map[string]int{
			string(queue.StatusPending):   summary.Queue.Pending,
			"processing":                  summary.Queue.Processing,
			string(queue.StatusCompleted): summary.Queue.Completed,
			string(queue.StatusFailed):    summary.Queue.Failed,
			string(queue.StatusCanceled):  summary.Queue.Canceled,
		},
	}
	if summary.LastJob != nil {
		job := FromJob(summary.LastJob)
		out.LastJob = &job
	}
	out.StageHealth = make([]StageHealth, 0, len(summary.StageHealth))
	for _, h := range summary.StageHealth {
		out.StageHealth = append(out.StageHealth, StageHealth{Name: h.Name, Ready: h.Ready, Detail: h.Detail})
	}
	return out
}

// FromDependencies converts dependency checks.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, len(statuses))
	for i, dep := range statuses {
		out[i] = DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		}
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}
