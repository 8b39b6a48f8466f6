package ffmpeg

import (
	"log/slog"
	"strconv"
	"strings"

	"lipsync/internal/logging"
	"lipsync/internal/services/process"
)

// Tool runs ffmpeg through a process.Runner.
type Tool struct {
	binary string
	runner process.Runner
	logger *slog.Logger
}

// Option configures a Tool.
type Option func(*Tool)

// WithLogger sets the logger used for segmentation and concat records.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tool) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// New constructs a Tool. An empty binary defaults to "ffmpeg".
func New(binary string, runner process.Runner, opts ...Option) *Tool {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	t := &Tool{binary: binary, runner: runner, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func baseArgs() []string {
	return []string{"-hide_banner", "-nostdin", "-y", "-loglevel", "error"}
}

func formatSeconds(seconds float64) string {
	return strconv.FormatFloat(seconds, 'f', -1, 64)
}
