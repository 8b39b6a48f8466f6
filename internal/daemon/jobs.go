package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"lipsync/internal/logging"
	"lipsync/internal/pipeline"
	"lipsync/internal/queue"
	"lipsync/internal/services"
)

// maxUploadBytes caps the combined size of one multipart submission.
const maxUploadBytes = 8 << 30

// SubmitParams describe host-local inputs. A nil SegmentSeconds selects
// inference.default_segment_seconds.
type SubmitParams struct {
	VideoPath      string
	AudioPath      string
	SegmentSeconds *float64
}

// RemoveResult reports what Remove did.
type RemoveResult struct {
	Removed  bool
	Canceled bool
}

// Submit validates host-local inputs and enqueues a job.
func (d *Daemon) Submit(ctx context.Context, params SubmitParams) (*queue.Job, error) {
	seconds, err := d.segmentSeconds(params.SegmentSeconds)
	if err != nil {
		return nil, err
	}
	video, err := resolveInput("video", params.VideoPath)
	if err != nil {
		return nil, err
	}
	audio, err := resolveInput("audio", params.AudioPath)
	if err != nil {
		return nil, err
	}
	job, err := d.store.NewJob(ctx, queue.NewJobParams{
		SegmentSeconds: seconds,
		VideoPath:      video,
		AudioPath:      audio,
	})
	if err != nil {
		return nil, services.Wrap(services.ErrIO, "", "enqueue", "persist job", err)
	}
	d.logger.Info("job queued",
		logging.JobID(job.ID),
		logging.String("video", video),
		logging.String("audio", audio),
		logging.Float64("segment_seconds", seconds),
		logging.String(logging.FieldEventType, "job_queued"),
	)
	return job, nil
}

// receiveUpload streams a multipart submission into <upload_dir>/<id> and
// enqueues it. Expected parts: "video" and "audio" files plus an optional
// "segment_length" field.
func (d *Daemon) receiveUpload(ctx context.Context, form *multipart.Reader) (_ *queue.Job, err error) {
	id := uuid.NewString()
	dir := filepath.Join(d.cfg.Paths.UploadDir, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrIO, "", "upload", "create upload directory", err)
	}
	defer func() {
		if err != nil {
			_ = os.RemoveAll(dir)
		}
	}()

	var (
		video, audio string
		seconds      *float64
	)
	for {
		part, err := form.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "", "upload", "malformed multipart body", err)
		}
		switch part.FormName() {
		case "segment_length":
			value, err := readField(part)
			if err != nil {
				return nil, err
			}
			if value != "" {
				parsed, err := strconv.ParseFloat(value, 64)
				if err != nil {
					return nil, services.Wrap(services.ErrValidation, "", "upload", fmt.Sprintf("segment_length %q is not a number", value), nil)
				}
				seconds = &parsed
			}
		case "video":
			video, err = saveUploadPart(dir, "video", part)
		case "audio":
			audio, err = saveUploadPart(dir, "audio", part)
		}
		part.Close()
		if err != nil {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	if video == "" || audio == "" {
		return nil, services.Wrap(services.ErrValidation, "", "upload", "both video and audio files are required", nil)
	}

	resolved, err := d.segmentSeconds(seconds)
	if err != nil {
		return nil, err
	}
	job, err := d.store.NewJob(ctx, queue.NewJobParams{
		ID:             id,
		SegmentSeconds: resolved,
		VideoPath:      video,
		AudioPath:      audio,
		Uploaded:       true,
	})
	if err != nil {
		return nil, services.Wrap(services.ErrIO, "", "enqueue", "persist job", err)
	}
	d.logger.Info("upload queued",
		logging.JobID(job.ID),
		logging.String("video", filepath.Base(video)),
		logging.String("audio", filepath.Base(audio)),
		logging.Float64("segment_seconds", resolved),
		logging.String(logging.FieldEventType, "job_queued"),
	)
	return job, nil
}

// Remove deletes a job. A running job is canceled first; uploaded inputs and
// the output video are deleted with it.
func (d *Daemon) Remove(ctx context.Context, id string) (RemoveResult, error) {
	job, err := d.store.GetByID(ctx, id)
	if err != nil {
		return RemoveResult{}, services.Wrap(services.ErrIO, "", "remove", "load job", err)
	}
	if job == nil {
		return RemoveResult{}, services.Wrap(services.ErrNotFound, "", "remove", fmt.Sprintf("job %s not found", id), nil)
	}

	var result RemoveResult
	result.Canceled = d.workflow.Cancel(id)
	result.Removed, err = d.store.Remove(ctx, id)
	if err != nil {
		return result, services.Wrap(services.ErrIO, "", "remove", "delete job", err)
	}
	// A canceled job's own teardown removes its uploads.
	if job.Uploaded && !result.Canceled {
		_ = os.RemoveAll(filepath.Join(d.cfg.Paths.UploadDir, id))
	}
	// The recorded path can lag behind a job that finished while being canceled.
	outputs := []string{pipeline.OutputPath(d.cfg.Paths.ResultsDir, id)}
	if job.OutputPath != "" && job.OutputPath != outputs[0] {
		outputs = append(outputs, job.OutputPath)
	}
	for _, path := range outputs {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			d.logger.Warn("failed to remove job output", logging.JobID(id), logging.String("path", path), logging.Error(err))
		}
	}
	d.logger.Info("job removed",
		logging.JobID(id),
		logging.Bool("canceled", result.Canceled),
		logging.String(logging.FieldEventType, "job_removed"),
	)
	return result, nil
}

func (d *Daemon) segmentSeconds(value *float64) (float64, error) {
	seconds := d.cfg.Inference.DefaultSegmentSeconds
	if value != nil {
		seconds = *value
	}
	if err := pipeline.ValidateSegmentSeconds(seconds); err != nil {
		return 0, err
	}
	return seconds, nil
}

func resolveInput(label, path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", services.Wrap(services.ErrValidation, "", "submit", label+" path is required", nil)
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "", "submit", "resolve "+label+" path", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "", "submit", fmt.Sprintf("%s file %q", label, abs), err)
	}
	if !info.Mode().IsRegular() {
		return "", services.Wrap(services.ErrValidation, "", "submit", fmt.Sprintf("%s path %q is not a regular file", label, abs), nil)
	}
	return abs, nil
}

func readField(part *multipart.Part) (string, error) {
	data, err := io.ReadAll(io.LimitReader(part, 64))
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "", "upload", "read form field", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func saveUploadPart(dir, label string, part *multipart.Part) (string, error) {
	if part.FileName() == "" {
		return "", services.Wrap(services.ErrValidation, "", "upload", label+" must be a file", nil)
	}
	target := filepath.Join(dir, label+"_"+sanitizeFileName(part.FileName()))
	f, err := os.Create(target)
	if err != nil {
		return "", services.Wrap(services.ErrIO, "", "upload", "create "+label+" file", err)
	}
	n, err := io.Copy(f, part)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", services.Wrap(services.ErrIO, "", "upload", "write "+label+" file", err)
	}
	if n == 0 {
		return "", services.Wrap(services.ErrValidation, "", "upload", label+" file is empty", nil)
	}
	return target, nil
}
