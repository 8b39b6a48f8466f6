package testsupport

import (
	"context"
	"path/filepath"
	"testing"

	"lipsync/internal/config"
	"lipsync/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewJob enqueues a job whose inputs are small files under the config base dir.
func NewJob(t testing.TB, store *queue.Store, cfg *config.Config, segmentSeconds float64) *queue.Job {
	t.Helper()

	video, audio := WriteInputs(t, filepath.Join(BaseDir(cfg), "inputs"))
	job, err := store.NewJob(context.Background(), queue.NewJobParams{
		SegmentSeconds: segmentSeconds,
		VideoPath:      video,
		AudioPath:      audio,
	})
	if err != nil {
		t.Fatalf("store.NewJob: %v", err)
	}
	return job
}
