package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"lipsync/internal/logging"
	"lipsync/internal/metrics"
	"lipsync/internal/services"
)

const (
	// waitDelay bounds how long Wait blocks on inherited pipes after the group is killed.
	waitDelay = 5 * time.Second
	maxStdout = 4 << 20
)

// LocalRunner executes commands on the host.
type LocalRunner struct {
	logger      *slog.Logger
	outputLimit int
}

// LocalOption configures a LocalRunner.
type LocalOption func(*LocalRunner)

// WithLogger sets the logger used for command start/finish records.
func WithLogger(logger *slog.Logger) LocalOption {
	return func(r *LocalRunner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithOutputLimit caps the retained combined output in bytes.
func WithOutputLimit(limit int) LocalOption {
	return func(r *LocalRunner) {
		if limit > 0 {
			r.outputLimit = limit
		}
	}
}

// NewLocalRunner constructs a host runner.
func NewLocalRunner(opts ...LocalOption) *LocalRunner {
	r := &LocalRunner{logger: logging.NewNop(), outputLimit: defaultOutputLimit}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes req and waits for it to exit. A non-zero exit returns an
// *ExitError alongside the populated Result.
func (r *LocalRunner) Run(ctx context.Context, req Request) (Result, error) {
	if req.Name == "" {
		return Result{ExitCode: -1}, errors.New("process: command name required")
	}
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, req.Name, req.Args...) //nolint:gosec
	cmd.Dir = req.Dir
	if len(req.Env) > 0 {
		cmd.Env = append(os.Environ(), envSlice(req.Env)...)
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
	}
	cmd.WaitDelay = waitDelay

	output := newTailBuffer(r.outputLimit)
	stdout := newTailBuffer(maxStdout)
	cmd.Stdout = io.MultiWriter(stdout, output)
	cmd.Stderr = output

	logger := logging.WithContext(ctx, r.logger)
	logger.Debug("starting command", logging.String("command", req.String()), logging.String("dir", req.Dir))

	start := time.Now()
	err := cmd.Run()
	result := Result{
		ExitCode: exitCode(cmd, err),
		Stdout:   stdout.String(),
		Output:   output.String(),
		Duration: time.Since(start),
	}

	label := filepath.Base(req.Name)
	switch {
	case err == nil:
		metrics.RecordCommandExecution(label, "success", result.Duration)
		logger.Debug("command finished", logging.String("command", label), logging.Duration("duration", result.Duration))
		return result, nil
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		metrics.RecordCommandExecution(label, "timeout", result.Duration)
		exitErr := &ExitError{Command: req.String(), ExitCode: result.ExitCode, Output: result.Output, Err: ctx.Err()}
		return result, services.Wrap(services.ErrTimeout, "", label, fmt.Sprintf("exceeded %s", req.Timeout), exitErr)
	case errors.Is(ctx.Err(), context.Canceled):
		metrics.RecordCommandExecution(label, "canceled", result.Duration)
		return result, fmt.Errorf("%s: %w", label, ctx.Err())
	default:
		metrics.RecordCommandExecution(label, "failed", result.Duration)
		return result, &ExitError{Command: req.String(), ExitCode: result.ExitCode, Output: result.Output, Err: err}
	}
}

func exitCode(cmd *exec.Cmd, err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	return -1
}

func envSlice(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for key := range env {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		out = append(out, key+"="+env[key])
	}
	return out
}
