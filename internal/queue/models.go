package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a job.
type Status string

const (
	StatusPending       Status = "pending"
	StatusStaging       Status = "staging"
	StatusSegmenting    Status = "segmenting"
	StatusInferring     Status = "inferring"
	StatusConcatenating Status = "concatenating"
	StatusCompleted     Status = "completed"
	StatusFailed        Status = "failed"
	StatusCanceled      Status = "canceled"
)

// DaemonStopReason is the error message set on jobs interrupted by a daemon restart.
const DaemonStopReason = "Daemon stopped while the job was running"

// StaleReason is the error message set on jobs whose heartbeat expired.
const StaleReason = "Heartbeat expired; the worker is gone"

var allStatuses = []Status{
	StatusPending,
	StatusStaging,
	StatusSegmenting,
	StatusInferring,
	StatusConcatenating,
	StatusCompleted,
	StatusFailed,
	StatusCanceled,
}

var processingStatuses = []Status{
	StatusStaging,
	StatusSegmenting,
	StatusInferring,
	StatusConcatenating,
}

// AllStatuses returns every known status in lifecycle order.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ParseStatus converts a string into a Status.
func ParseStatus(value string) (Status, bool) {
	value = strings.ToLower(strings.TrimSpace(value))
	for _, status := range allStatuses {
		if string(status) == value {
			return status, true
		}
	}
	return "", false
}

// IsProcessingStatus reports whether a worker currently owns jobs in status.
func IsProcessingStatus(status Status) bool {
	for _, s := range processingStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// IsTerminal reports whether status is final.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCanceled
}

// StatusForStage maps a pipeline state name onto the persisted status.
// Unknown stages return "" so callers keep the current status.
func StatusForStage(stage string) Status {
	switch stage {
	case "staging":
		return StatusStaging
	case "segmenting", "segmentation_skipped":
		return StatusSegmenting
	case "inferring":
		return StatusInferring
	case "concatenating", "cleanup":
		return StatusConcatenating
	default:
		return ""
	}
}

// Job is one persisted conversion request.
type Job struct {
	ID             string
	Status         Status
	Stage          string
	SegmentSeconds float64
	VideoPath      string
	AudioPath      string
	OutputPath     string
	SegmentsTotal  int
	SegmentsDone   int
	VideoSegments  int
	AudioSegments  int
	Truncated      bool
	ErrorKind      string
	ErrorMessage   string
	Uploaded       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
	StartedAt      *time.Time
	FinishedAt     *time.Time
	HeartbeatAt    *time.Time
}

// IsProcessing reports whether the job is owned by a worker.
func (j Job) IsProcessing() bool {
	return IsProcessingStatus(j.Status)
}

// Percent returns segment completion in the range 0-100.
func (j Job) Percent() float64 {
	if j.Status == StatusCompleted {
		return 100
	}
	if j.SegmentsTotal <= 0 {
		return 0
	}
	return float64(j.SegmentsDone) / float64(j.SegmentsTotal) * 100
}

// SetFailed records a terminal failure on the job.
func (j *Job) SetFailed(status Status, failure Failure) {
	now := time.Now().UTC()
	j.Status = status
	j.ErrorKind = failure.Kind
	j.ErrorMessage = failure.Message
	j.FinishedAt = &now
	j.HeartbeatAt = nil
}

// SetCompleted records a successful run.
func (j *Job) SetCompleted(outputPath string) {
	now := time.Now().UTC()
	j.Status = StatusCompleted
	j.Stage = "done"
	j.OutputPath = outputPath
	j.ErrorKind = ""
	j.ErrorMessage = ""
	j.FinishedAt = &now
	j.HeartbeatAt = nil
}

// NewJobParams describe a job to enqueue. An empty ID is replaced by a UUID.
type NewJobParams struct {
	ID             string
	SegmentSeconds float64
	VideoPath      string
	AudioPath      string
	Uploaded       bool
}

// Progress is a stage and segment-counter update from a running job.
type Progress struct {
	Stage string
	Done  int
	Total int
}

// HealthSummary aggregates job counts for status output.
type HealthSummary struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Failed     int `json:"failed"`
	Canceled   int `json:"canceled"`
	Completed  int `json:"completed"`
}
