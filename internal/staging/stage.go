package staging

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"lipsync/internal/fileutil"
	"lipsync/internal/services"
)

// Inputs are the staged copies of a job's sources.
type Inputs struct {
	Video string
	Audio string
}

// ValidateSource checks that path names an existing, non-empty regular file.
// role ("video" or "audio") is used in the error message.
func ValidateSource(path, role string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return services.Wrap(services.ErrValidation, stageStaging, "validate "+role, "path is empty", nil)
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return services.Wrap(services.ErrValidation, stageStaging, "validate "+role, fmt.Sprintf("%s does not exist", path), nil)
		}
		return services.Wrap(services.ErrValidation, stageStaging, "validate "+role, path, err)
	}
	if !info.Mode().IsRegular() {
		return services.Wrap(services.ErrValidation, stageStaging, "validate "+role, fmt.Sprintf("%s is not a regular file", path), nil)
	}
	if info.Size() == 0 {
		return services.Wrap(services.ErrValidation, stageStaging, "validate "+role, fmt.Sprintf("%s is empty", path), nil)
	}
	return nil
}

// Stage validates both sources and copies them into the workspace. Nothing is
// copied unless both sources are valid. The source extension is preserved so
// the segmenter can stream-copy into the same container.
func Stage(ctx context.Context, ws Workspace, videoSrc, audioSrc string) (Inputs, error) {
	if err := ValidateSource(videoSrc, "video"); err != nil {
		return Inputs{}, err
	}
	if err := ValidateSource(audioSrc, "audio"); err != nil {
		return Inputs{}, err
	}
	if err := ws.Create(); err != nil {
		return Inputs{}, err
	}

	staged := Inputs{
		Video: filepath.Join(ws.VideoDir, "source"+sourceExt(videoSrc, ".mp4")),
		Audio: filepath.Join(ws.AudioDir, "source"+sourceExt(audioSrc, ".wav")),
	}
	if err := fileutil.CopyFileVerified(ctx, videoSrc, staged.Video); err != nil {
		return Inputs{}, services.Wrap(services.ErrIO, stageStaging, "copy video", videoSrc, err)
	}
	if err := fileutil.CopyFileVerified(ctx, audioSrc, staged.Audio); err != nil {
		return Inputs{}, services.Wrap(services.ErrIO, stageStaging, "copy audio", audioSrc, err)
	}
	return staged, nil
}

func sourceExt(path, fallback string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return fallback
	}
	return ext
}
