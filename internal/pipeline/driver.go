package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"lipsync/internal/config"
	"lipsync/internal/inference"
	"lipsync/internal/logging"
	"lipsync/internal/media/ffmpeg"
	"lipsync/internal/media/ffprobe"
	"lipsync/internal/metrics"
	"lipsync/internal/services"
	"lipsync/internal/services/process"
	"lipsync/internal/staging"
)

// Segmenter splits a media file into fixed-length chunks.
type Segmenter interface {
	Split(ctx context.Context, src, dir string, seconds float64) ([]string, error)
}

// Concatenator merges clips in order into dest.
type Concatenator interface {
	Concat(ctx context.Context, manifestPath string, parts []string, dest string) error
}

// Synthesizer runs inference for one segment.
type Synthesizer interface {
	Run(ctx context.Context, seg inference.Segment) error
}

// Prober inspects media streams.
type Prober interface {
	Inspect(ctx context.Context, path string) (ffprobe.Result, error)
}

// Request is one conversion. An empty JobID is replaced by a fresh UUID.
type Request struct {
	JobID          string
	SegmentSeconds float64
	VideoPath      string
	AudioPath      string
}

// Result describes a completed conversion.
type Result struct {
	JobID         string
	OutputPath    string
	Segments      int
	VideoSegments int
	AudioSegments int
	Truncated     bool
	Elapsed       time.Duration
}

// Options holds the filesystem roots and pool size of a Driver.
type Options struct {
	WorkDir    string
	ResultsDir string
	Workers    int
}

// Dependencies are the collaborators a Driver delegates to. Prober is optional;
// when nil inputs are not probed.
type Dependencies struct {
	Segmenter    Segmenter
	Concatenator Concatenator
	Synthesizer  Synthesizer
	Prober       Prober
}

// Driver runs conversions.
type Driver struct {
	opts     Options
	deps     Dependencies
	logger   *slog.Logger
	observer Observer
}

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the driver logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Driver) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithObserver sets the default observer used when Convert is not given one.
func WithObserver(observer Observer) Option {
	return func(d *Driver) {
		if observer != nil {
			d.observer = observer
		}
	}
}

// New constructs a Driver.
func New(opts Options, deps Dependencies, options ...Option) (*Driver, error) {
	opts.WorkDir = strings.TrimSpace(opts.WorkDir)
	opts.ResultsDir = strings.TrimSpace(opts.ResultsDir)
	if opts.WorkDir == "" || opts.ResultsDir == "" {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "configure", "work and results directories required", nil)
	}
	if deps.Segmenter == nil || deps.Concatenator == nil || deps.Synthesizer == nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "configure", "segmenter, concatenator and synthesizer required", nil)
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	d := &Driver{opts: opts, deps: deps, logger: logging.NewNop(), observer: NopObserver{}}
	for _, option := range options {
		option(d)
	}
	d.logger = logging.NewComponentLogger(d.logger, "pipeline")
	return d, nil
}

// NewFromConfig wires a Driver from configuration, running every external
// program through runner.
func NewFromConfig(cfg *config.Config, runner process.Runner, logger *slog.Logger, options ...Option) (*Driver, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "configure", "config required", nil)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	tool := ffmpeg.New(cfg.FFmpegBinary(), runner, ffmpeg.WithLogger(logging.NewComponentLogger(logger, "ffmpeg")))
	synth, err := inference.NewRunner(inference.SettingsFromConfig(cfg), runner, logging.NewComponentLogger(logger, "inference"))
	if err != nil {
		return nil, err
	}
	deps := Dependencies{Segmenter: tool, Concatenator: tool, Synthesizer: synth}
	if cfg.FFmpeg.ProbeInputs {
		deps.Prober = ffprobe.New(cfg.FFprobeBinary(), runner)
	}
	opts := Options{
		WorkDir:    cfg.Paths.WorkDir,
		ResultsDir: cfg.Paths.ResultsDir,
		Workers:    cfg.Inference.Workers,
	}
	return New(opts, deps, append([]Option{WithLogger(logger)}, options...)...)
}

// OutputPath returns where the final video for jobID is written.
func (d *Driver) OutputPath(jobID string) string {
	return OutputPath(d.opts.ResultsDir, jobID)
}

// OutputPath returns the final video path for jobID under resultsDir.
func OutputPath(resultsDir, jobID string) string {
	return filepath.Join(resultsDir, jobID+".mp4")
}

// WorkDir returns the root under which job workspaces are created.
func (d *Driver) WorkDir() string {
	return d.opts.WorkDir
}

// ValidateSegmentSeconds rejects negative, NaN and infinite segment lengths.
func ValidateSegmentSeconds(seconds float64) error {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return services.Wrap(services.ErrValidation, string(StateIdle), "validate", fmt.Sprintf("segment length must be a finite number >= 0, got %v", seconds), nil)
	}
	return nil
}

// Convert runs req to completion. observer may be nil, in which case the
// driver's default observer receives progress.
//
// On success the workspace is removed and Result.OutputPath names the final
// video. On failure the workspace is left in place for inspection.
func (d *Driver) Convert(ctx context.Context, req Request, observer Observer) (res Result, err error) {
	if observer == nil {
		observer = d.observer
	}
	if err := ValidateSegmentSeconds(req.SegmentSeconds); err != nil {
		return Result{}, err
	}
	jobID := strings.TrimSpace(req.JobID)
	if jobID == "" {
		jobID = uuid.NewString()
	}
	res.JobID = jobID

	ctx = services.WithJobID(ctx, jobID)
	logger := logging.WithContext(ctx, d.logger)
	started := time.Now()
	finish := metrics.JobStarted()

	transition := func(ctx context.Context, state State) {
		observer.StateChanged(ctx, jobID, state)
	}
	defer func() {
		res.Elapsed = time.Since(started)
		if err != nil {
			transition(ctx, StateFailed)
			finish("failed", services.Kind(err))
			logging.ErrorWithContext(logger, "conversion failed", "job_failed",
				logging.Error(err),
				logging.ErrorKind(err),
				logging.String(logging.FieldErrorHint, "inspect the retained workspace under work_dir"),
			)
			return
		}
		transition(ctx, StateDone)
		finish("succeeded", "")
		logger.Info("conversion completed",
			logging.String("output", res.OutputPath),
			logging.Int("segments", res.Segments),
			logging.Duration("elapsed", res.Elapsed.Round(time.Millisecond)),
			logging.String(logging.FieldEventType, "job_completed"),
		)
	}()

	ws, err := staging.New(d.opts.WorkDir, jobID)
	if err != nil {
		return res, err
	}

	stageCtx := services.WithStage(ctx, string(StateStaging))
	transition(stageCtx, StateStaging)
	inputs, err := staging.Stage(stageCtx, ws, req.VideoPath, req.AudioPath)
	if err != nil {
		return res, err
	}
	if err := d.probe(stageCtx, inputs); err != nil {
		return res, err
	}

	videos, audios, err := d.segment(ctx, ws, inputs, req.SegmentSeconds, transition)
	if err != nil {
		return res, err
	}
	res.VideoSegments, res.AudioSegments = len(videos), len(audios)
	pairs := min(len(videos), len(audios))
	if len(videos) != len(audios) {
		res.Truncated = true
		logging.WarnWithContext(logger, "segment counts differ; pairing by index and dropping the excess", "segment_mismatch",
			logging.Int("video_segments", len(videos)),
			logging.Int("audio_segments", len(audios)),
			logging.Int("pairs", pairs),
			logging.String(logging.FieldImpact, "output is shorter than the longer input"),
			logging.String(logging.FieldErrorHint, "use inputs of matching duration"),
		)
	}
	res.Segments = pairs

	inferCtx := services.WithStage(ctx, string(StateInferring))
	transition(inferCtx, StateInferring)
	clips, err := d.infer(inferCtx, ws, videos[:pairs], audios[:pairs], observer, jobID)
	if err != nil {
		return res, err
	}

	concatCtx := services.WithStage(ctx, string(StateConcatenating))
	transition(concatCtx, StateConcatenating)
	dest := d.OutputPath(jobID)
	if err := d.deps.Concatenator.Concat(concatCtx, ws.ManifestPath, clips, dest); err != nil {
		return res, err
	}
	res.OutputPath = dest

	cleanupCtx := services.WithStage(ctx, string(StateCleanup))
	transition(cleanupCtx, StateCleanup)
	if err := ws.Remove(); err != nil {
		return res, err
	}
	return res, nil
}

func (d *Driver) probe(ctx context.Context, inputs staging.Inputs) error {
	if d.deps.Prober == nil {
		return nil
	}
	video, err := d.deps.Prober.Inspect(ctx, inputs.Video)
	if err != nil {
		return err
	}
	if video.VideoStreamCount() == 0 {
		return services.Wrap(services.ErrValidation, string(StateStaging), "probe video", "input has no video stream", nil)
	}
	audio, err := d.deps.Prober.Inspect(ctx, inputs.Audio)
	if err != nil {
		return err
	}
	if audio.AudioStreamCount() == 0 {
		return services.Wrap(services.ErrValidation, string(StateStaging), "probe audio", "input has no audio stream", nil)
	}
	return nil
}

func (d *Driver) segment(ctx context.Context, ws staging.Workspace, inputs staging.Inputs, seconds float64, transition func(context.Context, State)) ([]string, []string, error) {
	if seconds == 0 {
		transition(services.WithStage(ctx, string(StateSegmentationSkipped)), StateSegmentationSkipped)
		return []string{inputs.Video}, []string{inputs.Audio}, nil
	}
	ctx = services.WithStage(ctx, string(StateSegmenting))
	transition(ctx, StateSegmenting)
	videos, err := d.deps.Segmenter.Split(ctx, inputs.Video, ws.VideoSegmentsDir(), seconds)
	if err != nil {
		return nil, nil, err
	}
	audios, err := d.deps.Segmenter.Split(ctx, inputs.Audio, ws.AudioSegmentsDir(), seconds)
	if err != nil {
		return nil, nil, err
	}
	return videos, audios, nil
}

// infer runs every pair on the worker pool. Clips are returned in segment
// order regardless of completion order; the first failure cancels the rest.
func (d *Driver) infer(ctx context.Context, ws staging.Workspace, videos, audios []string, observer Observer, jobID string) ([]string, error) {
	total := len(videos)
	clips := make([]string, total)

	var mu sync.Mutex
	done := 0
	sampler := logging.NewProgressSampler(25)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.opts.Workers)
	for i := range total {
		seg := inference.Segment{Index: i, Video: videos[i], Audio: audios[i], Output: ws.ClipPath(i)}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := d.deps.Synthesizer.Run(gctx, seg); err != nil {
				return err
			}
			clips[seg.Index] = seg.Output
			metrics.RecordSegmentProcessed()

			mu.Lock()
			defer mu.Unlock()
			done++
			if sampler.ShouldLog(string(StateInferring), done, total) {
				logging.WithContext(gctx, d.logger).Info("inference progress",
					logging.Int("done", done),
					logging.Int("total", total),
				)
			}
			observer.SegmentDone(gctx, jobID, done, total)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return clips, nil
}
