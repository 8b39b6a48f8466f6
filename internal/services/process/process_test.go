package process_test

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

	"lipsync/internal/services"
	"lipsync/internal/services/process"
	"lipsync/internal/services/process/processtest"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tool.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func TestLocalRunnerSuccessCapturesOutput(t *testing.T) {
	script := writeScript(t, `echo "out $1"; echo "err $LIPSYNC_TEST" 1>&2`)
	runner := process.NewLocalRunner()

	res, err := runner.Run(context.Background(), process.Request{
		Name: script,
		Args: []string{"hello"},
		Env:  map[string]string{"LIPSYNC_TEST": "value"},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Contains(t, res.Output, "out hello")
	assert.Contains(t, res.Output, "err value")
	assert.Equal(t, "out hello\n", res.Stdout)
	assert.Greater(t, res.Duration, time.Duration(0))
}

func TestLocalRunnerNonZeroExit(t *testing.T) {
	script := writeScript(t, `echo "codec not found" 1>&2; exit 3`)
	runner := process.NewLocalRunner()

	res, err := runner.Run(context.Background(), process.Request{Name: script, Args: []string{"-i", "in file.mp4"}})
	require.Error(t, err)
	assert.Equal(t, 3, res.ExitCode)

	var exitErr *process.ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 3, exitErr.ExitCode)
	assert.Contains(t, exitErr.Command, `"in file.mp4"`)
	assert.Contains(t, err.Error(), "codec not found")
}

func TestLocalRunnerWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, `pwd`)
	res, err := process.NewLocalRunner().Run(context.Background(), process.Request{Name: script, Dir: dir})
	require.NoError(t, err)
	resolved, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	assert.Equal(t, resolved, strings.TrimSpace(res.Output))
}

func TestLocalRunnerTimeoutKillsProcessGroup(t *testing.T) {
	script := writeScript(t, `sleep 30 & sleep 30`)
	runner := process.NewLocalRunner()

	start := time.Now()
	_, err := runner.Run(context.Background(), process.Request{Name: script, Timeout: 200 * time.Millisecond})
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrTimeout), "expected timeout marker, got %v", err)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestLocalRunnerMissingBinary(t *testing.T) {
	_, err := process.NewLocalRunner().Run(context.Background(), process.Request{Name: filepath.Join(t.TempDir(), "missing")})
	require.Error(t, err)
	var exitErr *process.ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, -1, exitErr.ExitCode)
}

func TestLocalRunnerOutputLimit(t *testing.T) {
	script := writeScript(t, `i=0; while [ $i -lt 200 ]; do echo "line $i"; i=$((i+1)); done`)
	res, err := process.NewLocalRunner(process.WithOutputLimit(64)).Run(context.Background(), process.Request{Name: script})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.Output, "..."))
	assert.Contains(t, res.Output, "line 199")
	assert.LessOrEqual(t, len(res.Output), 64+3)
}

func TestExitErrorIncludesCause(t *testing.T) {
	err := &process.ExitError{Command: "python3 inference.py", ExitCode: 0, Output: "Face not detected", Err: errors.New("no output file produced")}
	assert.Equal(t, "python3 inference.py exited with status 0 (no output file produced): Face not detected", err.Error())

	plain := &process.ExitError{Command: "ffmpeg", ExitCode: 3, Output: "codec not found"}
	assert.Equal(t, "ffmpeg exited with status 3: codec not found", plain.Error())

	missing := &process.ExitError{Command: "nope", ExitCode: -1, Err: errors.New("executable file not found")}
	assert.Equal(t, "nope: executable file not found", missing.Error())
}

func TestRequestString(t *testing.T) {
	req := process.Request{Name: "ffmpeg", Args: []string{"-i", "my clip.mp4", "-f", "concat", ""}}
	assert.Equal(t, `ffmpeg -i "my clip.mp4" -f concat ''`, req.String())
}

func TestFakeRunnerRecordsAndDispatches(t *testing.T) {
	fake := processtest.New().
		Handle("ffmpeg", func(context.Context, process.Request) (process.Result, error) {
			return process.Result{Output: "ok"}, nil
		}).
		Handle("python3", processtest.Fail(1, "CUDA out of memory"))

	res, err := fake.Run(context.Background(), process.Request{Name: "/usr/bin/ffmpeg", Args: []string{"-i", "a"}})
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Output)

	_, err = fake.Run(context.Background(), process.Request{Name: "python3", Args: []string{"inference.py", "--face", "v.mp4"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CUDA out of memory")

	_, err = fake.Run(context.Background(), process.Request{Name: "true"})
	require.NoError(t, err)

	assert.Len(t, fake.Calls(), 3)
	require.Len(t, fake.CallsTo("python3"), 1)
	assert.Equal(t, "v.mp4", processtest.ArgAfter(fake.CallsTo("python3")[0], "--face"))
}

func TestFakeRunnerHonoursCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := processtest.New().Run(ctx, process.Request{Name: "ffmpeg"})
	assert.ErrorIs(t, err, context.Canceled)
}
