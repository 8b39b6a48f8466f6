package workflow_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lipsync/internal/config"
	"lipsync/internal/events"
	"lipsync/internal/notifications"
	"lipsync/internal/pipeline"
	"lipsync/internal/preflight"
	"lipsync/internal/queue"
	"lipsync/internal/services"
	"lipsync/internal/services/process/processtest"
	"lipsync/internal/testsupport"
	"lipsync/internal/workflow"
)

const waitFor = 5 * time.Second

func startManager(t *testing.T, cfg *config.Config, store *queue.Store, conv workflow.Converter, hub *events.Hub, opts ...workflow.ManagerOption) *workflow.Manager {
	t.Helper()
	opts = append([]workflow.ManagerOption{
		workflow.WithPreflight(nil),
		workflow.WithPollInterval(20 * time.Millisecond),
	}, opts...)
	mgr := workflow.NewManager(cfg, store, conv, hub, nil, opts...)
	require.NoError(t, mgr.Start(context.Background()))
	t.Cleanup(mgr.Stop)
	return mgr
}

func waitForStatus(t *testing.T, store *queue.Store, id string, want queue.Status) *queue.Job {
	t.Helper()
	var job *queue.Job
	require.Eventually(t, func() bool {
		var err error
		job, err = store.GetByID(context.Background(), id)
		require.NoError(t, err)
		return job != nil && job.Status == want
	}, waitFor, 10*time.Millisecond, "job %s never reached %s", id, want)
	return job
}

func TestManagerCompletesQueuedJob(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithInferenceWorkers(2))
	store := testsupport.MustOpenStore(t, cfg)
	driver, err := pipeline.NewFromConfig(cfg, testsupport.MediaRunner(30), nil)
	require.NoError(t, err)
	hub := events.NewHub(64)

	job := testsupport.NewJob(t, store, cfg, 10)
	startManager(t, cfg, store, driver, hub)

	done := waitForStatus(t, store, job.ID, queue.StatusCompleted)
	assert.Equal(t, filepath.Join(cfg.Paths.ResultsDir, job.ID+".mp4"), done.OutputPath)
	assert.Equal(t, 3, done.SegmentsDone)
	assert.Equal(t, 3, done.SegmentsTotal)
	assert.Equal(t, 3, done.VideoSegments)
	assert.Equal(t, 3, done.AudioSegments)
	assert.False(t, done.Truncated)
	assert.Equal(t, "done", done.Stage)
	assert.NotNil(t, done.FinishedAt)

	data, err := os.ReadFile(done.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, "chunk-0;chunk-1;chunk-2;", string(data))

	_, err = os.Stat(filepath.Join(cfg.Paths.WorkDir, job.ID))
	assert.True(t, os.IsNotExist(err), "workspace should be removed after success")

	latest, ok := hub.Latest(job.ID)
	require.True(t, ok)
	assert.Equal(t, "done", latest.State)
	assert.Equal(t, done.OutputPath, latest.Message)
	assert.True(t, latest.Terminal())

	evts, _, err := hub.Fetch(context.Background(), job.ID, 0, false)
	require.NoError(t, err)
	var states []string
	for _, evt := range evts {
		if len(states) == 0 || states[len(states)-1] != evt.State {
			states = append(states, evt.State)
		}
	}
	assert.Equal(t, []string{"staging", "segmenting", "inferring", "concatenating", "cleanup", "done"}, states)
}

func TestManagerRecordsInferenceFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	runner := testsupport.MediaRunner(20).HandleDefault(processtest.Fail(1, "CUDA out of memory"))
	driver, err := pipeline.NewFromConfig(cfg, runner, nil)
	require.NoError(t, err)
	hub := events.NewHub(16)

	job := testsupport.NewJob(t, store, cfg, 10)
	mgr := startManager(t, cfg, store, driver, hub)

	failed := waitForStatus(t, store, job.ID, queue.StatusFailed)
	assert.Equal(t, services.KindProcessing, failed.ErrorKind)
	assert.Contains(t, failed.ErrorMessage, "CUDA out of memory")
	assert.Empty(t, failed.OutputPath)
	assert.Len(t, runner.CallsTo("ffmpeg"), 2, "concat must not run after an inference failure")

	latest, ok := hub.Latest(job.ID)
	require.True(t, ok)
	assert.Equal(t, "failed", latest.State)
	assert.Equal(t, services.KindProcessing, latest.ErrorKind)

	require.Eventually(t, func() bool {
		return mgr.Status(context.Background()).LastError != ""
	}, waitFor, 10*time.Millisecond)
}

// blockingConverter parks every conversion until its context ends.
type blockingConverter struct {
	started chan string
}

func (b *blockingConverter) Convert(ctx context.Context, req pipeline.Request, observer pipeline.Observer) (pipeline.Result, error) {
	observer.StateChanged(ctx, req.JobID, pipeline.StateInferring)
	b.started <- req.JobID
	<-ctx.Done()
	return pipeline.Result{JobID: req.JobID}, ctx.Err()
}

// lateConverter writes its output, then reports success only after its
// context ends, as a job that finished concat while being canceled would.
type lateConverter struct {
	output  string
	started chan string
}

func (l *lateConverter) Convert(ctx context.Context, req pipeline.Request, observer pipeline.Observer) (pipeline.Result, error) {
	if err := os.WriteFile(l.output, []byte("video"), 0o644); err != nil {
		return pipeline.Result{}, err
	}
	l.started <- req.JobID
	<-ctx.Done()
	return pipeline.Result{JobID: req.JobID, OutputPath: l.output, Segments: 1}, nil
}

func TestManagerCancelDiscardsLateOutput(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	require.NoError(t, cfg.EnsureDirectories())
	store := testsupport.MustOpenStore(t, cfg)
	job := testsupport.NewJob(t, store, cfg, 5)
	conv := &lateConverter{output: pipeline.OutputPath(cfg.Paths.ResultsDir, job.ID), started: make(chan string, 1)}
	mgr := startManager(t, cfg, store, conv, nil)

	select {
	case <-conv.started:
	case <-time.After(waitFor):
		t.Fatal("job never started")
	}
	require.True(t, mgr.Cancel(job.ID))

	canceled := waitForStatus(t, store, job.ID, queue.StatusCanceled)
	assert.Empty(t, canceled.OutputPath)
	assert.NoFileExists(t, conv.output)
}

func TestManagerCancelMarksJobCanceled(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	conv := &blockingConverter{started: make(chan string, 1)}

	job := testsupport.NewJob(t, store, cfg, 5)
	mgr := startManager(t, cfg, store, conv, nil)

	select {
	case id := <-conv.started:
		require.Equal(t, job.ID, id)
	case <-time.After(waitFor):
		t.Fatal("job never started")
	}
	assert.True(t, mgr.IsActive(job.ID))
	running, err := store.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, queue.StatusInferring, running.Status)

	assert.True(t, mgr.Cancel(job.ID))
	assert.False(t, mgr.Cancel("not-running"))

	canceled := waitForStatus(t, store, job.ID, queue.StatusCanceled)
	assert.Equal(t, services.KindCanceled, canceled.ErrorKind)
	require.Eventually(t, func() bool { return !mgr.IsActive(job.ID) }, waitFor, 10*time.Millisecond)
}

func TestManagerStopFailsRunningJobAsInterrupted(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	conv := &blockingConverter{started: make(chan string, 1)}

	job := testsupport.NewJob(t, store, cfg, 5)
	mgr := workflow.NewManager(cfg, store, conv, nil, nil,
		workflow.WithPreflight(nil),
		workflow.WithPollInterval(20*time.Millisecond),
	)
	require.NoError(t, mgr.Start(context.Background()))
	select {
	case <-conv.started:
	case <-time.After(waitFor):
		t.Fatal("job never started")
	}
	mgr.Stop()

	stopped, err := store.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, queue.StatusFailed, stopped.Status)
	assert.Equal(t, "interrupted", stopped.ErrorKind)
	assert.Equal(t, queue.DaemonStopReason, stopped.ErrorMessage)
}

func TestManagerStartFailsJobsLeftProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	job := testsupport.NewJob(t, store, cfg, 5)
	claimed, err := store.NextPending(context.Background())
	require.NoError(t, err)
	require.Equal(t, job.ID, claimed.ID)

	startManager(t, cfg, store, &blockingConverter{started: make(chan string, 1)}, nil)

	reloaded, err := store.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, queue.StatusFailed, reloaded.Status)
	assert.Equal(t, "interrupted", reloaded.ErrorKind)
}

func TestManagerPreflightFailureHoldsQueue(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	conv := &blockingConverter{started: make(chan string, 1)}

	var mu sync.Mutex
	healthy := false
	check := func(context.Context) []preflight.Result {
		mu.Lock()
		defer mu.Unlock()
		return []preflight.Result{{Name: "FFmpeg", Passed: healthy, Detail: `binary "ffmpeg" not found`}}
	}

	job := testsupport.NewJob(t, store, cfg, 5)
	mgr := startManager(t, cfg, store, conv, nil, workflow.WithPreflight(check))

	require.Eventually(t, func() bool {
		return mgr.Status(context.Background()).LastError != ""
	}, waitFor, 10*time.Millisecond)
	pending, err := store.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, queue.StatusPending, pending.Status)

	summary := mgr.Status(context.Background())
	assert.True(t, summary.Running)
	assert.Contains(t, summary.LastError, "FFmpeg")
	var segmenting workflow.StageHealth
	for _, sh := range summary.StageHealth {
		if sh.Name == "segmenting" {
			segmenting = sh
		}
	}
	assert.False(t, segmenting.Ready)

	mu.Lock()
	healthy = true
	mu.Unlock()
	select {
	case id := <-conv.started:
		assert.Equal(t, job.ID, id)
	case <-time.After(waitFor):
		t.Fatal("job not claimed after preflight recovered")
	}
}

func TestManagerStartTwice(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	mgr := startManager(t, cfg, store, &blockingConverter{started: make(chan string, 1)}, nil)
	assert.Error(t, mgr.Start(context.Background()))
}

func TestSweepWorkspacesRemovesOldDirectories(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.StaleWorkspaceHours = 1
	store := testsupport.MustOpenStore(t, cfg)
	mgr := workflow.NewManager(cfg, store, &blockingConverter{}, nil, nil, workflow.WithPreflight(nil))

	old := filepath.Join(cfg.Paths.WorkDir, "old-job")
	fresh := filepath.Join(cfg.Paths.WorkDir, "fresh-job")
	require.NoError(t, os.MkdirAll(old, 0o755))
	require.NoError(t, os.MkdirAll(fresh, 0o755))
	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))

	res := mgr.SweepWorkspaces(context.Background())
	assert.Equal(t, []string{old}, res.Removed)
	assert.DirExists(t, fresh)
	assert.NoDirExists(t, old)

	cfg.Workflow.StaleWorkspaceHours = 0
	require.NoError(t, os.Chtimes(fresh, past, past))
	assert.Empty(t, mgr.SweepWorkspaces(context.Background()).Removed)
	assert.DirExists(t, fresh)
}

type recordingNotifier struct {
	mu       sync.Mutex
	outcomes []notifications.Outcome
}

func (r *recordingNotifier) NotifyJobFinished(_ context.Context, o notifications.Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
	return nil
}

func (r *recordingNotifier) TestNotification(context.Context) error { return nil }

func (r *recordingNotifier) snapshot() []notifications.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notifications.Outcome(nil), r.outcomes...)
}

func TestManagerNotifiesJobOutcomes(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	driver, err := pipeline.NewFromConfig(cfg, testsupport.MediaRunner(20), nil)
	require.NoError(t, err)
	notifier := &recordingNotifier{}

	job := testsupport.NewJob(t, store, cfg, 10)
	startManager(t, cfg, store, driver, nil, workflow.WithNotifier(notifier))
	done := waitForStatus(t, store, job.ID, queue.StatusCompleted)

	require.Eventually(t, func() bool { return len(notifier.snapshot()) == 1 }, waitFor, 10*time.Millisecond)
	got := notifier.snapshot()[0]
	assert.Equal(t, job.ID, got.JobID)
	assert.Equal(t, "completed", got.Status)
	assert.Equal(t, done.OutputPath, got.OutputPath)
	assert.Equal(t, 2, got.Segments)
}
