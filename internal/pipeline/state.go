package pipeline

import "context"

// State is a step of the conversion state machine.
type State string

const (
	StateIdle                State = "idle"
	StateStaging             State = "staging"
	StateSegmenting          State = "segmenting"
	StateSegmentationSkipped State = "segmentation_skipped"
	StateInferring           State = "inferring"
	StateConcatenating       State = "concatenating"
	StateCleanup             State = "cleanup"
	StateDone                State = "done"
	StateFailed              State = "failed"
)

// Terminal reports whether no further transition follows s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Observer receives progress from a running conversion. Calls for one job are
// serialized and done is strictly increasing.
type Observer interface {
	StateChanged(ctx context.Context, jobID string, state State)
	SegmentDone(ctx context.Context, jobID string, done, total int)
}

// NopObserver ignores all progress.
type NopObserver struct{}

func (NopObserver) StateChanged(context.Context, string, State) {}

func (NopObserver) SegmentDone(context.Context, string, int, int) {}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	OnState   func(jobID string, state State)
	OnSegment func(jobID string, done, total int)
}

func (o ObserverFuncs) StateChanged(_ context.Context, jobID string, state State) {
	if o.OnState != nil {
		o.OnState(jobID, state)
	}
}

func (o ObserverFuncs) SegmentDone(_ context.Context, jobID string, done, total int) {
	if o.OnSegment != nil {
		o.OnSegment(jobID, done, total)
	}
}
