package staging

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"lipsync/internal/logging"
)

func makeAgedDir(t *testing.T, parent, name string, age time.Duration) string {
	t.Helper()
	dir := filepath.Join(parent, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("create dir: %v", err)
	}
	ts := time.Now().Add(-age)
	if err := os.Chtimes(dir, ts, ts); err != nil {
		t.Fatalf("set time: %v", err)
	}
	return dir
}

func TestCleanStaleInvalidPaths(t *testing.T) {
	for _, dir := range []string{"", "   ", "/nonexistent/path/12345"} {
		result := CleanStale(context.Background(), dir, time.Hour, nil, logging.NewNop())
		if len(result.Removed) != 0 || len(result.Errors) != 0 {
			t.Errorf("expected empty result for path %q", dir)
		}
	}
}

func TestCleanStaleRemovesOldWorkspaces(t *testing.T) {
	tmpDir := t.TempDir()
	oldDir := makeAgedDir(t, tmpDir, "old-job", 2*time.Hour)
	recentDir := makeAgedDir(t, tmpDir, "recent-job", 0)

	result := CleanStale(context.Background(), tmpDir, time.Hour, nil, logging.NewNop())

	if len(result.Removed) != 1 || result.Removed[0] != oldDir {
		t.Fatalf("expected only %s removed, got %v", oldDir, result.Removed)
	}
	if _, err := os.Stat(oldDir); !os.IsNotExist(err) {
		t.Error("old workspace should have been removed")
	}
	if _, err := os.Stat(recentDir); err != nil {
		t.Error("recent workspace should still exist")
	}
}

func TestCleanStaleKeepsActiveJobs(t *testing.T) {
	tmpDir := t.TempDir()
	running := makeAgedDir(t, tmpDir, "running-job", 5*time.Hour)
	makeAgedDir(t, tmpDir, "failed-job", 5*time.Hour)

	keep := func(id string) bool { return id == "running-job" }
	result := CleanStale(context.Background(), tmpDir, time.Hour, keep, nil)

	if len(result.Removed) != 1 || filepath.Base(result.Removed[0]) != "failed-job" {
		t.Fatalf("unexpected removals %v", result.Removed)
	}
	if _, err := os.Stat(running); err != nil {
		t.Fatalf("running workspace should be kept: %v", err)
	}
}

func TestCleanStaleIgnoresFiles(t *testing.T) {
	tmpDir := t.TempDir()
	oldFile := filepath.Join(tmpDir, "old-file.txt")
	if err := os.WriteFile(oldFile, []byte("test"), 0o644); err != nil {
		t.Fatalf("create file: %v", err)
	}
	oldTime := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(oldFile, oldTime, oldTime); err != nil {
		t.Fatalf("set old time: %v", err)
	}

	result := CleanStale(context.Background(), tmpDir, time.Hour, nil, logging.NewNop())
	if len(result.Removed) != 0 {
		t.Errorf("expected no removals for files, got %d", len(result.Removed))
	}
}

func TestListDirectoriesReportsSize(t *testing.T) {
	tmpDir := t.TempDir()
	ws := makeAgedDir(t, tmpDir, "job-a", 0)
	if err := os.MkdirAll(filepath.Join(ws, "clips"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(ws, "clips", "clip_000.mp4"), make([]byte, 1024), 0o644); err != nil {
		t.Fatal(err)
	}

	dirs, err := ListDirectories(tmpDir)
	if err != nil {
		t.Fatalf("ListDirectories returned error: %v", err)
	}
	if len(dirs) != 1 || dirs[0].Name != "job-a" || dirs[0].Size != 1024 {
		t.Fatalf("unexpected listing %+v", dirs)
	}
}
