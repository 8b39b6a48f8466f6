package queue

import (
	"context"
	"fmt"
	"time"
)

// UpdateProgress records the pipeline stage and segment counters of a running
// job. The persisted status follows the stage; the heartbeat is untouched.
func (s *Store) UpdateProgress(ctx context.Context, id string, progress Progress) error {
	status := StatusForStage(progress.Stage)
	if _, err := s.execWithRetry(
		ctx,
		`UPDATE jobs
         SET status = COALESCE(?, status), stage = ?, segments_done = ?, segments_total = ?, updated_at = ?
         WHERE id = ? AND status NOT IN (?, ?, ?)`,
		nullableString(string(status)),
		nullableString(progress.Stage),
		progress.Done,
		progress.Total,
		formatTime(time.Now()),
		id,
		StatusCompleted, StatusFailed, StatusCanceled,
	); err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

// UpdateHeartbeat refreshes the heartbeat timestamp of an in-flight job.
func (s *Store) UpdateHeartbeat(ctx context.Context, id string) error {
	now := formatTime(time.Now())
	if _, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET heartbeat_at = ?, updated_at = ? WHERE id = ?`,
		now, now, id,
	); err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// ReclaimStale fails processing jobs whose heartbeat is older than cutoff.
// Jobs are not retried.
func (s *Store) ReclaimStale(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.failProcessing(ctx, "stale", StaleReason, `AND heartbeat_at IS NOT NULL AND heartbeat_at < ?`, formatTime(cutoff))
}

// FailInterrupted fails every processing job. The daemon calls it at startup,
// when no worker can still own one.
func (s *Store) FailInterrupted(ctx context.Context) (int64, error) {
	return s.failProcessing(ctx, "interrupted", DaemonStopReason, "")
}

func (s *Store) failProcessing(ctx context.Context, kind, reason, extraWhere string, extraArgs ...any) (int64, error) {
	now := formatTime(time.Now())
	placeholders, statusValues := statusArgs(processingStatuses)
	args := []any{StatusFailed, kind, reason, now, now}
	args = append(args, statusValues...)
	args = append(args, extraArgs...)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs
         SET status = ?, error_kind = ?, error_message = ?, finished_at = ?, updated_at = ?, heartbeat_at = NULL
         WHERE status IN (`+placeholders+`) `+extraWhere,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("fail %s jobs: %w", kind, err)
	}
	return res.RowsAffected()
}
