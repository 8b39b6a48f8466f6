package inference

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"lipsync/internal/config"
	"lipsync/internal/logging"
	"lipsync/internal/services"
	"lipsync/internal/services/process"
)

const stageInferring = "inferring"

// Segment is one (video, audio) pair and the clip the program must write.
type Segment struct {
	Index  int
	Video  string
	Audio  string
	Output string
}

// Settings describe how the inference program is launched.
type Settings struct {
	Binary    string
	Script    string
	Dir       string
	ExtraArgs []string
	Env       map[string]string
	Timeout   time.Duration
}

// SettingsFromConfig maps the [inference] section onto Settings.
func SettingsFromConfig(cfg *config.Config) Settings {
	if cfg == nil {
		return Settings{}
	}
	return Settings{
		Binary:    cfg.Inference.Binary,
		Script:    cfg.Inference.Script,
		Dir:       cfg.Inference.WorkDir,
		ExtraArgs: append([]string(nil), cfg.Inference.ExtraArgs...),
		Env:       cfg.Inference.Env,
		Timeout:   cfg.InferenceTimeout(),
	}
}

// Runner runs the inference program for individual segments.
type Runner struct {
	settings Settings
	exec     process.Runner
	logger   *slog.Logger
}

// NewRunner constructs a Runner. A nil logger discards output.
func NewRunner(settings Settings, exec process.Runner, logger *slog.Logger) (*Runner, error) {
	settings.Binary = strings.TrimSpace(settings.Binary)
	if settings.Binary == "" {
		return nil, services.Wrap(services.ErrConfiguration, stageInferring, "configure", "inference binary required", nil)
	}
	if exec == nil {
		return nil, services.Wrap(services.ErrConfiguration, stageInferring, "configure", "process runner required", nil)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{settings: settings, exec: exec, logger: logger}, nil
}

// Command builds the process request for seg.
func (r *Runner) Command(seg Segment) process.Request {
	args := make([]string, 0, len(r.settings.ExtraArgs)+7)
	if script := strings.TrimSpace(r.settings.Script); script != "" {
		args = append(args, script)
	}
	args = append(args, r.settings.ExtraArgs...)
	args = append(args,
		"--face", seg.Video,
		"--audio", seg.Audio,
		"--outfile", seg.Output,
	)
	return process.Request{
		Name:    r.settings.Binary,
		Args:    args,
		Dir:     r.settings.Dir,
		Env:     r.settings.Env,
		Timeout: r.settings.Timeout,
	}
}

// Run invokes the program for seg. A non-zero exit, or a zero exit that
// leaves no output file, is reported as services.ErrExternalTool.
func (r *Runner) Run(ctx context.Context, seg Segment) error {
	if seg.Video == "" || seg.Audio == "" || seg.Output == "" {
		return services.Wrap(services.ErrValidation, stageInferring, "run", fmt.Sprintf("segment %d is missing a path", seg.Index), nil)
	}
	if err := os.MkdirAll(filepath.Dir(seg.Output), 0o755); err != nil {
		return services.Wrap(services.ErrIO, stageInferring, "create clip dir", filepath.Dir(seg.Output), err)
	}
	// A leftover clip from an earlier attempt would mask a silent failure.
	if err := os.Remove(seg.Output); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return services.Wrap(services.ErrIO, stageInferring, "remove stale clip", seg.Output, err)
	}

	ctx = services.WithSegment(ctx, seg.Index)
	logger := logging.WithContext(ctx, r.logger)
	req := r.Command(seg)
	logger.Debug("inference started", logging.Segment(seg.Index), logging.String("command", req.String()))

	res, err := r.exec.Run(ctx, req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, services.ErrTimeout) {
			return err
		}
		return services.Wrap(services.ErrExternalTool, stageInferring, fmt.Sprintf("segment %d", seg.Index), "", err)
	}

	info, statErr := os.Stat(seg.Output)
	if statErr != nil || info.Size() == 0 {
		exitErr := &process.ExitError{Command: req.String(), ExitCode: res.ExitCode, Output: res.Output, Err: errors.New("no output file produced")}
		return services.Wrap(services.ErrExternalTool, stageInferring, fmt.Sprintf("segment %d", seg.Index), seg.Output, exitErr)
	}

	logger.Info("segment synthesized",
		logging.Segment(seg.Index),
		logging.Duration("elapsed", res.Duration.Round(time.Millisecond)),
		logging.String("clip", filepath.Base(seg.Output)),
	)
	return nil
}
