package queue

import (
	"strings"

	"lipsync/internal/services"
)

// Failure is the classified outcome persisted on a failed job.
type Failure struct {
	Kind    string
	Message string
}

// ClassifyFailure maps a pipeline error to the kind and message stored on the
// job row. Cancellation maps to StatusCanceled rather than StatusFailed.
func ClassifyFailure(err error) (Status, Failure) {
	if err == nil {
		return StatusCompleted, Failure{}
	}
	kind := services.Kind(err)
	status := StatusFailed
	if kind == services.KindCanceled {
		status = StatusCanceled
	}
	return status, Failure{Kind: kind, Message: strings.TrimSpace(err.Error())}
}
