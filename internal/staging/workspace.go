package staging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"lipsync/internal/services"
)

const stageStaging = "staging"

// Workspace is the request-scoped directory layout for one job.
type Workspace struct {
	JobID        string
	Root         string
	VideoDir     string
	AudioDir     string
	ClipsDir     string
	ManifestPath string
}

// New computes the workspace layout for jobID under workDir without touching disk.
func New(workDir, jobID string) (Workspace, error) {
	workDir = strings.TrimSpace(workDir)
	jobID = strings.TrimSpace(jobID)
	if workDir == "" {
		return Workspace{}, services.Wrap(services.ErrConfiguration, stageStaging, "workspace", "work directory not configured", nil)
	}
	if jobID == "" || jobID == "." || jobID == ".." || strings.ContainsAny(jobID, `/\`) {
		return Workspace{}, services.Wrap(services.ErrValidation, stageStaging, "workspace", fmt.Sprintf("invalid job id %q", jobID), nil)
	}
	root := filepath.Join(workDir, jobID)
	return Workspace{
		JobID:        jobID,
		Root:         root,
		VideoDir:     filepath.Join(root, "video"),
		AudioDir:     filepath.Join(root, "audio"),
		ClipsDir:     filepath.Join(root, "clips"),
		ManifestPath: filepath.Join(root, "concat.txt"),
	}, nil
}

// Create makes the workspace directories.
func (w Workspace) Create() error {
	for _, dir := range []string{w.VideoDir, w.AudioDir, w.ClipsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return services.Wrap(services.ErrIO, stageStaging, "create workspace", dir, err)
		}
	}
	return nil
}

// VideoSegmentsDir is the scratch directory for video chunks.
func (w Workspace) VideoSegmentsDir() string {
	return filepath.Join(w.VideoDir, "segments")
}

// AudioSegmentsDir is the scratch directory for audio chunks.
func (w Workspace) AudioSegmentsDir() string {
	return filepath.Join(w.AudioDir, "segments")
}

// ClipPath returns the inference output path for segment index.
func (w Workspace) ClipPath(index int) string {
	return filepath.Join(w.ClipsDir, fmt.Sprintf("clip_%03d.mp4", index))
}

// Remove deletes the workspace and everything in it.
func (w Workspace) Remove() error {
	if w.Root == "" {
		return nil
	}
	if err := os.RemoveAll(w.Root); err != nil && !errors.Is(err, os.ErrNotExist) {
		return services.Wrap(services.ErrIO, "cleanup", "remove workspace", w.Root, err)
	}
	return nil
}
