package inference_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lipsync/internal/inference"
	"lipsync/internal/services"
	"lipsync/internal/services/process"
	"lipsync/internal/services/process/processtest"
)

func writeOutfile(_ context.Context, req process.Request) (process.Result, error) {
	out := processtest.ArgAfter(req, "--outfile")
	if err := os.WriteFile(out, []byte("clip"), 0o644); err != nil {
		return process.Result{ExitCode: 1}, err
	}
	return process.Result{Duration: time.Second}, nil
}

func newSegment(t *testing.T) inference.Segment {
	t.Helper()
	dir := t.TempDir()
	return inference.Segment{
		Index:  2,
		Video:  filepath.Join(dir, "chunk_002.mp4"),
		Audio:  filepath.Join(dir, "chunk_002.wav"),
		Output: filepath.Join(dir, "clips", "clip_002.mp4"),
	}
}

func TestCommandLayout(t *testing.T) {
	runner, err := inference.NewRunner(inference.Settings{
		Binary:    "python3",
		Script:    "inference.py",
		Dir:       "/opt/wav2lip",
		ExtraArgs: []string{"--checkpoint_path", "wav2lip.pth"},
		Env:       map[string]string{"CUDA_VISIBLE_DEVICES": "0"},
		Timeout:   time.Minute,
	}, processtest.New(), nil)
	require.NoError(t, err)

	req := runner.Command(inference.Segment{Video: "v.mp4", Audio: "a.wav", Output: "o.mp4"})
	assert.Equal(t, "python3", req.Name)
	assert.Equal(t, []string{
		"inference.py", "--checkpoint_path", "wav2lip.pth",
		"--face", "v.mp4", "--audio", "a.wav", "--outfile", "o.mp4",
	}, req.Args)
	assert.Equal(t, "/opt/wav2lip", req.Dir)
	assert.Equal(t, "0", req.Env["CUDA_VISIBLE_DEVICES"])
	assert.Equal(t, time.Minute, req.Timeout)
}

func TestRunSucceedsWhenClipWritten(t *testing.T) {
	fake := processtest.New().Handle("python3", writeOutfile)
	runner, err := inference.NewRunner(inference.Settings{Binary: "python3", Script: "inference.py"}, fake, nil)
	require.NoError(t, err)

	seg := newSegment(t)
	require.NoError(t, runner.Run(context.Background(), seg))
	assert.FileExists(t, seg.Output)
	require.Len(t, fake.Calls(), 1)
}

func TestRunNonZeroExitIsProcessingError(t *testing.T) {
	fake := processtest.New().Handle("python3", processtest.Fail(1, "CUDA out of memory"))
	runner, err := inference.NewRunner(inference.Settings{Binary: "python3", Script: "inference.py"}, fake, nil)
	require.NoError(t, err)

	err = runner.Run(context.Background(), newSegment(t))
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrExternalTool))
	assert.Contains(t, err.Error(), "CUDA out of memory")
	assert.Contains(t, err.Error(), "--outfile")

	var exitErr *process.ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 1, exitErr.ExitCode)
}

func TestRunMissingOutputIsProcessingError(t *testing.T) {
	fake := processtest.New().Handle("python3", func(context.Context, process.Request) (process.Result, error) {
		return process.Result{Output: "Face not detected"}, nil
	})
	runner, err := inference.NewRunner(inference.Settings{Binary: "python3", Script: "inference.py"}, fake, nil)
	require.NoError(t, err)

	err = runner.Run(context.Background(), newSegment(t))
	require.Error(t, err)
	assert.Equal(t, services.KindProcessing, services.Kind(err))
	assert.True(t, strings.Contains(err.Error(), "no output file produced"))
	assert.Contains(t, err.Error(), "Face not detected")
}

func TestRunRemovesStaleClip(t *testing.T) {
	fake := processtest.New().Handle("python3", func(context.Context, process.Request) (process.Result, error) {
		return process.Result{}, nil
	})
	runner, err := inference.NewRunner(inference.Settings{Binary: "python3"}, fake, nil)
	require.NoError(t, err)

	seg := newSegment(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(seg.Output), 0o755))
	require.NoError(t, os.WriteFile(seg.Output, []byte("old"), 0o644))

	err = runner.Run(context.Background(), seg)
	assert.True(t, errors.Is(err, services.ErrExternalTool), "stale clip must not count as output: %v", err)
}

func TestRunPropagatesCancellation(t *testing.T) {
	runner, err := inference.NewRunner(inference.Settings{Binary: "python3"}, processtest.New(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = runner.Run(ctx, newSegment(t))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, services.KindCanceled, services.Kind(err))
}

func TestNewRunnerRequiresBinary(t *testing.T) {
	_, err := inference.NewRunner(inference.Settings{Binary: "  "}, processtest.New(), nil)
	assert.ErrorIs(t, err, services.ErrConfiguration)
}
