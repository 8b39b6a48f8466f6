package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Job describes a queued or finished conversion.
type Job struct {
	ID             string      `json:"id"`
	Status         string      `json:"status"`
	SegmentSeconds float64     `json:"segmentSeconds"`
	VideoPath      string      `json:"videoPath"`
	AudioPath      string      `json:"audioPath"`
	OutputPath     string      `json:"outputPath,omitempty"`
	Progress       JobProgress `json:"progress"`
	VideoSegments  int         `json:"videoSegments"`
	AudioSegments  int         `json:"audioSegments"`
	Truncated      bool        `json:"truncated"`
	ErrorKind      string      `json:"errorKind,omitempty"`
	ErrorMessage   string      `json:"errorMessage,omitempty"`
	CreatedAt      string      `json:"createdAt,omitempty"`
	UpdatedAt      string      `json:"updatedAt,omitempty"`
	StartedAt      string      `json:"startedAt,omitempty"`
	FinishedAt     string      `json:"finishedAt,omitempty"`
}

// JobProgress captures pipeline progress for a job.
type JobProgress struct {
	Stage   string  `json:"stage"`
	Done    int     `json:"done"`
	Total   int     `json:"total"`
	Percent float64 `json:"percent"`
}

// SubmitRequest enqueues host-local files. SegmentLength nil means the
// configured default.
type SubmitRequest struct {
	VideoPath     string   `json:"videoPath"`
	AudioPath     string   `json:"audioPath"`
	SegmentLength *float64 `json:"segmentLength,omitempty"`
}

// Event is one progress notification pushed over the events websocket.
type Event struct {
	Sequence  uint64 `json:"seq"`
	Timestamp string `json:"timestamp"`
	JobID     string `json:"jobId"`
	State     string `json:"state"`
	Done      int    `json:"done"`
	Total     int    `json:"total"`
	Message   string `json:"message,omitempty"`
	ErrorKind string `json:"errorKind,omitempty"`
	Terminal  bool   `json:"terminal"`
}

// WorkflowStatus summarizes workflow execution state.
type WorkflowStatus struct {
	Running     bool           `json:"running"`
	ActiveJobs  []string       `json:"activeJobs"`
	QueueStats  map[string]int `json:"queueStats"`
	LastError   string         `json:"lastError,omitempty"`
	LastJob     *Job           `json:"lastJob,omitempty"`
	StageHealth []StageHealth  `json:"stageHealth"`
}

// StageHealth mirrors readiness reporting for pipeline stages.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	QueueDBPath  string             `json:"queueDbPath"`
	LockFilePath string             `json:"lockFilePath"`
	Workflow     WorkflowStatus     `json:"workflow"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

// JobListResponse wraps a collection of jobs.
type JobListResponse struct {
	Jobs []Job `json:"jobs"`
}

// JobResponse wraps a single job.
type JobResponse struct {
	Job Job `json:"job"`
}

// RemoveResponse reports the outcome of DELETE /api/jobs/{id}.
type RemoveResponse struct {
	Removed  bool `json:"removed"`
	Canceled bool `json:"canceled"`
}

// ErrorResponse is the body of every non-2xx JSON reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}
