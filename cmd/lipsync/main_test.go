package main

import (
	"net"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lipsync/internal/testsupport"
)

var jobIDPattern = regexp.MustCompile(`Queued job (\S+)`)

func TestJobsLifecycle(t *testing.T) {
	env := setupCLITestEnv(t)
	video, audio := testsupport.WriteInputs(t, t.TempDir())

	out, err := runCLI(t, env, "jobs", "submit", video, audio, "--segment-length", "10", "--wait")
	require.NoError(t, err, out)
	match := jobIDPattern.FindStringSubmatch(out)
	require.Len(t, match, 2, out)
	id := match[1]
	assert.Contains(t, out, "segment length 10s")
	assert.Contains(t, out, "Output: ")

	out, err = runCLI(t, env, "jobs", "list")
	require.NoError(t, err)
	assert.Contains(t, out, id)
	assert.Contains(t, out, "completed")

	out, err = runCLI(t, env, "jobs", "show", id)
	require.NoError(t, err)
	assert.Contains(t, out, "Segments:")
	assert.Contains(t, out, "3/3")

	dest := filepath.Join(t.TempDir(), "out.mp4")
	out, err = runCLI(t, env, "jobs", "download", id, dest)
	require.NoError(t, err, out)
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "chunk-0;chunk-1;chunk-2;", string(data))

	out, err = runCLI(t, env, "jobs", "remove", id)
	require.NoError(t, err)
	assert.Contains(t, out, "Removed job "+id)

	out, err = runCLI(t, env, "jobs", "remove", id)
	require.NoError(t, err)
	assert.Contains(t, out, "not found")
}

func TestJobsSubmitUpload(t *testing.T) {
	env := setupCLITestEnv(t)
	video, audio := testsupport.WriteInputs(t, t.TempDir())

	out, err := runCLI(t, env, "jobs", "submit", video, audio, "--upload", "--segment-length", "0", "--wait")
	require.NoError(t, err, out)
	assert.Contains(t, out, "segment length whole")
	assert.Contains(t, out, "Output: ")
}

func TestJobsSubmitRejectsMissingInput(t *testing.T) {
	env := setupCLITestEnv(t)
	_, audio := testsupport.WriteInputs(t, t.TempDir())

	_, err := runCLI(t, env, "jobs", "submit", filepath.Join(t.TempDir(), "missing.mp4"), audio)
	require.Error(t, err)
}

func TestStatusReportsRunningDaemon(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := runCLI(t, env, "status")
	require.NoError(t, err, out)
	assert.Contains(t, out, "running (pid")
	assert.Contains(t, out, "Dependencies")
}

func TestStatusWithoutDaemon(t *testing.T) {
	env := setupCLITestEnv(t)
	env.apiAddr = closedAddr(t)

	out, err := runCLI(t, env, "status")
	require.NoError(t, err, out)
	assert.Contains(t, out, "not running")
}

func TestJobsListWithoutDaemon(t *testing.T) {
	env := setupCLITestEnv(t)
	env.apiAddr = closedAddr(t)

	_, err := runCLI(t, env, "jobs", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lipsync daemon")
}

func TestCheckCommand(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries(), testsupport.WithInferenceScript())
	require.NoError(t, cfg.EnsureDirectories())
	env := &cliTestEnv{cfg: cfg, configPath: writeConfigFile(t, cfg)}

	out, err := runCLI(t, env, "check")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Inference script")

	require.NoError(t, os.Remove(cfg.Inference.Script))
	out, err = runCLI(t, env, "check")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checks failed")
	assert.Contains(t, out, "[ERROR]")
}

func closedAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}
