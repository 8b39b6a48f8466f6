package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewJob inserts a pending job.
func (s *Store) NewJob(ctx context.Context, params NewJobParams) (*Job, error) {
	id := strings.TrimSpace(params.ID)
	if id == "" {
		id = uuid.NewString()
	}
	if strings.TrimSpace(params.VideoPath) == "" || strings.TrimSpace(params.AudioPath) == "" {
		return nil, errors.New("video and audio paths are required")
	}
	timestamp := formatTime(time.Now())
	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO jobs (
            id, status, segment_seconds, video_path, audio_path, uploaded, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		StatusPending,
		params.SegmentSeconds,
		params.VideoPath,
		params.AudioPath,
		boolToInt(params.Uploaded),
		timestamp,
		timestamp,
	); err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID returns the job with id, or nil when it does not exist.
func (s *Store) GetByID(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// List returns jobs filtered by status (all jobs when none is given), oldest first.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs`
	var args []any
	if len(statuses) > 0 {
		var placeholders string
		placeholders, args = statusArgs(statuses)
		query += ` WHERE status IN (` + placeholders + `)`
	}
	query += ` ORDER BY created_at, rowid`

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return scanJobs(rows)
}

// NextPending atomically claims the oldest pending job, moving it to
// StatusStaging with a fresh heartbeat. It returns nil when nothing is pending.
func (s *Store) NextPending(ctx context.Context) (*Job, error) {
	ctx = ensureContext(ctx)
	now := formatTime(time.Now())
	var id string
	err := retryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(
			ctx,
			`UPDATE jobs
             SET status = ?, stage = ?, started_at = ?, heartbeat_at = ?, updated_at = ?
             WHERE id = (
                 SELECT id FROM jobs WHERE status = ? ORDER BY created_at, rowid LIMIT 1
             ) AND status = ?
             RETURNING id`,
			StatusStaging,
			"staging",
			now,
			now,
			now,
			StatusPending,
			StatusPending,
		).Scan(&id)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim pending job: %w", err)
	}
	return s.GetByID(ctx, id)
}

// Update persists every mutable field of job.
func (s *Store) Update(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	job.UpdatedAt = time.Now().UTC()
	if _, err := s.execWithRetry(
		ctx,
		`UPDATE jobs
         SET status = ?, stage = ?, output_path = ?, segments_total = ?, segments_done = ?,
             video_segments = ?, audio_segments = ?, truncated = ?, error_kind = ?, error_message = ?,
             updated_at = ?, started_at = ?, finished_at = ?, heartbeat_at = ?
         WHERE id = ?`,
		job.Status,
		nullableString(job.Stage),
		nullableString(job.OutputPath),
		job.SegmentsTotal,
		job.SegmentsDone,
		job.VideoSegments,
		job.AudioSegments,
		boolToInt(job.Truncated),
		nullableString(job.ErrorKind),
		nullableString(job.ErrorMessage),
		formatTime(job.UpdatedAt),
		nullableTime(job.StartedAt),
		nullableTime(job.FinishedAt),
		nullableTime(job.HeartbeatAt),
		job.ID,
	); err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

// Remove deletes a job. It reports whether a row existed.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ClearFinished deletes every terminal job and returns how many were removed.
func (s *Store) ClearFinished(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM jobs WHERE status IN (?, ?, ?)`,
		StatusCompleted, StatusFailed, StatusCanceled)
	if err != nil {
		return 0, fmt.Errorf("clear finished jobs: %w", err)
	}
	return res.RowsAffected()
}
