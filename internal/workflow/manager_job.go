package workflow

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"lipsync/internal/events"
	"lipsync/internal/logging"
	"lipsync/internal/notifications"
	"lipsync/internal/pipeline"
	"lipsync/internal/queue"
	"lipsync/internal/services"
)

func (m *Manager) processJob(ctx context.Context, laneLogger *slog.Logger, job *queue.Job) {
	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	jobCtx = services.WithJobID(jobCtx, job.ID)
	jobCtx = services.WithRequestID(jobCtx, uuid.NewString())
	logger := logging.WithContext(jobCtx, laneLogger)

	m.trackActive(job.ID, cancel)
	defer m.untrackActive(job.ID)

	logger.Info("job started",
		logging.String(logging.FieldEventType, "job_start"),
		logging.String("video", filepath.Base(job.VideoPath)),
		logging.String("audio", filepath.Base(job.AudioPath)),
		logging.Float64("segment_seconds", job.SegmentSeconds),
	)

	var hbWG sync.WaitGroup
	hbCtx, stopHeartbeat := context.WithCancel(jobCtx)
	hbWG.Add(1)
	go m.heartbeat.StartLoop(hbCtx, &hbWG, job.ID)

	observer := &jobObserver{manager: m, job: job, logger: logger}
	res, err := m.converter.Convert(jobCtx, pipeline.Request{
		JobID:          job.ID,
		SegmentSeconds: job.SegmentSeconds,
		VideoPath:      job.VideoPath,
		AudioPath:      job.AudioPath,
	}, observer)

	stopHeartbeat()
	hbWG.Wait()

	m.finishJob(ctx, logger, observer, res, err)
}

// finishJob persists the outcome. It uses a context detached from shutdown so
// the final status is recorded even while the daemon stops.
func (m *Manager) finishJob(ctx context.Context, logger *slog.Logger, observer *jobObserver, res pipeline.Result, runErr error) {
	persistCtx := context.WithoutCancel(ctx)
	job := observer.snapshot()
	job.VideoSegments = res.VideoSegments
	job.AudioSegments = res.AudioSegments
	job.Truncated = res.Truncated

	if runErr == nil && m.wasCanceled(job.ID) {
		// Canceled after concat finished; the caller no longer wants the output.
		if res.OutputPath != "" {
			if err := os.Remove(res.OutputPath); err != nil && !os.IsNotExist(err) {
				logger.Warn("failed to remove canceled job output", logging.String("path", res.OutputPath), logging.Error(err))
			}
		}
		res.OutputPath = ""
		runErr = context.Canceled
	}

	evt := events.Event{JobID: job.ID}
	if runErr == nil {
		job.SegmentsDone = res.Segments
		job.SegmentsTotal = res.Segments
		job.SetCompleted(res.OutputPath)
		evt.State = string(pipeline.StateDone)
		evt.Done, evt.Total = res.Segments, res.Segments
		evt.Message = res.OutputPath
	} else {
		status, failure := queue.ClassifyFailure(runErr)
		switch {
		case m.wasCanceled(job.ID):
			status, failure.Kind = queue.StatusCanceled, services.KindCanceled
			failure.Message = "canceled by request"
		case errors.Is(runErr, context.Canceled) && ctx.Err() != nil:
			status, failure.Kind, failure.Message = queue.StatusFailed, "interrupted", queue.DaemonStopReason
		}
		job.SetFailed(status, failure)
		m.setLastError(runErr)
		evt.State = string(status)
		evt.ErrorKind = failure.Kind
		evt.Message = failure.Message
	}

	if err := m.store.Update(persistCtx, &job); err != nil {
		logger.Error("failed to persist job outcome", logging.Error(err))
		m.setLastError(err)
	}
	m.setLastJob(&job)
	m.publish(evt)
	m.notify(persistCtx, logger, job, res.Elapsed)

	if job.Uploaded {
		m.removeUploads(logger, job.ID)
	}
	logger.Info("job finished",
		logging.String(logging.FieldEventType, "job_finish"),
		logging.String("status", string(job.Status)),
		logging.String("error_kind", job.ErrorKind),
		logging.Bool("truncated", job.Truncated),
	)
}

func (m *Manager) notify(ctx context.Context, logger *slog.Logger, job queue.Job, elapsed time.Duration) {
	outcome := notifications.Outcome{
		JobID:      job.ID,
		Status:     string(job.Status),
		OutputPath: job.OutputPath,
		Segments:   job.SegmentsDone,
		Truncated:  job.Truncated,
		ErrorKind:  job.ErrorKind,
		Message:    job.ErrorMessage,
		Elapsed:    elapsed,
	}
	if err := m.notifier.NotifyJobFinished(ctx, outcome); err != nil {
		logger.Warn("job notification failed", logging.Error(err))
	}
}

func (m *Manager) removeUploads(logger *slog.Logger, jobID string) {
	dir := filepath.Join(m.cfg.Paths.UploadDir, jobID)
	if err := os.RemoveAll(dir); err != nil {
		logger.Warn("failed to remove uploaded inputs", logging.String("path", dir), logging.Error(err))
	}
}

func (m *Manager) publish(evt events.Event) {
	if m.hub == nil {
		return
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	m.hub.Publish(evt)
}

// jobObserver persists pipeline progress for one job and mirrors it to the hub.
type jobObserver struct {
	manager *Manager
	logger  *slog.Logger

	mu  sync.Mutex
	job *queue.Job
}

func (o *jobObserver) StateChanged(ctx context.Context, jobID string, state pipeline.State) {
	if state.Terminal() {
		return
	}
	o.mu.Lock()
	o.job.Stage = string(state)
	if status := queue.StatusForStage(string(state)); status != "" {
		o.job.Status = status
	}
	progress := queue.Progress{Stage: string(state), Done: o.job.SegmentsDone, Total: o.job.SegmentsTotal}
	o.mu.Unlock()

	o.persist(ctx, jobID, progress)
	o.manager.publish(events.Event{JobID: jobID, State: string(state), Done: progress.Done, Total: progress.Total})
}

func (o *jobObserver) SegmentDone(ctx context.Context, jobID string, done, total int) {
	o.mu.Lock()
	o.job.SegmentsDone = done
	o.job.SegmentsTotal = total
	progress := queue.Progress{Stage: o.job.Stage, Done: done, Total: total}
	o.mu.Unlock()

	o.persist(ctx, jobID, progress)
	o.manager.publish(events.Event{JobID: jobID, State: progress.Stage, Done: done, Total: total})
}

func (o *jobObserver) persist(ctx context.Context, jobID string, progress queue.Progress) {
	if err := o.manager.store.UpdateProgress(context.WithoutCancel(ctx), jobID, progress); err != nil {
		o.logger.Warn("failed to persist job progress", logging.Error(err))
	}
}

func (o *jobObserver) snapshot() queue.Job {
	o.mu.Lock()
	defer o.mu.Unlock()
	return *o.job
}
