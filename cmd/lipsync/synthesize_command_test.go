package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lipsync/internal/pipeline"
	"lipsync/internal/testsupport"
)

type fakeConverter struct {
	result pipeline.Result
	err    error
	req    pipeline.Request
}

func (f *fakeConverter) Convert(ctx context.Context, req pipeline.Request, observer pipeline.Observer) (pipeline.Result, error) {
	f.req = req
	observer.StateChanged(ctx, req.JobID, pipeline.StateStaging)
	observer.StateChanged(ctx, req.JobID, pipeline.StateInferring)
	observer.SegmentDone(ctx, req.JobID, 1, 2)
	observer.SegmentDone(ctx, req.JobID, 2, 2)
	return f.result, f.err
}

func TestRunSynthesizeCopiesOutput(t *testing.T) {
	dir := t.TempDir()
	produced := filepath.Join(dir, "job-1.mp4")
	require.NoError(t, os.WriteFile(produced, []byte("video"), 0o644))
	conv := &fakeConverter{result: pipeline.Result{
		JobID:         "job-1",
		OutputPath:    produced,
		Segments:      2,
		VideoSegments: 3,
		AudioSegments: 2,
		Truncated:     true,
	}}

	var out bytes.Buffer
	target := filepath.Join(dir, "final.mp4")
	req := pipeline.Request{JobID: "job-1", SegmentSeconds: 5, VideoPath: "v.mp4", AudioPath: "a.wav"}
	require.NoError(t, runSynthesize(context.Background(), &out, conv, req, target))

	assert.Equal(t, req, conv.req)
	text := out.String()
	assert.Contains(t, text, "[job-1] staging")
	assert.Contains(t, text, "[job-1] inferring 2/2")
	assert.Contains(t, text, "warning: 3 video and 2 audio segments; the last 1 were dropped")
	assert.Contains(t, text, "Output: "+target)
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "video", string(data))
}

func TestRunSynthesizePropagatesFailure(t *testing.T) {
	conv := &fakeConverter{err: errors.New("boom")}
	var out bytes.Buffer
	err := runSynthesize(context.Background(), &out, conv, pipeline.Request{JobID: "x"}, "")
	require.EqualError(t, err, "boom")
	assert.NotContains(t, out.String(), "Output:")
}

func TestSynthesizeCommandEndToEndFailsOnMissingVideo(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg := testsupport.NewConfig(t)
	env := &cliTestEnv{cfg: cfg, configPath: writeConfigFile(t, cfg)}
	_, audio := testsupport.WriteInputs(t, t.TempDir())

	_, err := runCLI(t, env, "synthesize", filepath.Join(t.TempDir(), "nope.mp4"), audio, "-l", "5")
	require.Error(t, err)
}
