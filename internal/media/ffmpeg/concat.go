package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"lipsync/internal/logging"
	"lipsync/internal/services"
	"lipsync/internal/services/process"
)

const stageConcatenating = "concatenating"

// Concat joins parts, in order, into dest without re-encoding. The manifest is
// written to manifestPath and removed whether or not ffmpeg succeeds. dest is
// replaced atomically; a failed run leaves no partial output behind.
func (t *Tool) Concat(ctx context.Context, manifestPath string, parts []string, dest string) error {
	if len(parts) == 0 {
		return services.Wrap(services.ErrValidation, stageConcatenating, "concat", "no parts to concatenate", nil)
	}
	defer os.Remove(manifestPath)
	if err := WriteManifest(manifestPath, parts); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return services.Wrap(services.ErrIO, stageConcatenating, "create output dir", filepath.Dir(dest), err)
	}
	partial := partialPath(dest)
	args := append(baseArgs(),
		"-f", "concat",
		"-safe", "0",
		"-i", manifestPath,
		"-c", "copy",
		partial,
	)
	if _, err := t.runner.Run(ctx, process.Request{Name: t.binary, Args: args}); err != nil {
		_ = os.Remove(partial)
		return services.Wrap(services.ErrExternalTool, stageConcatenating, "concat", filepath.Base(dest), err)
	}
	if err := os.Rename(partial, dest); err != nil {
		_ = os.Remove(partial)
		return services.Wrap(services.ErrIO, stageConcatenating, "finalize output", dest, err)
	}

	logging.WithContext(ctx, t.logger).Info(
		"concatenated segments",
		logging.Int("parts", len(parts)),
		logging.String("output", dest),
	)
	return nil
}

// WriteManifest writes a concat demuxer list with one quoted absolute path per line.
func WriteManifest(path string, parts []string) error {
	var b strings.Builder
	for _, part := range parts {
		line, err := ManifestLine(part)
		if err != nil {
			return err
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return services.Wrap(services.ErrIO, stageConcatenating, "write manifest", path, err)
	}
	return nil
}

// ManifestLine renders one concat list entry. Single quotes are escaped as
// '\'' per the demuxer's quoting rules.
func ManifestLine(part string) (string, error) {
	if strings.ContainsAny(part, "\n\r") {
		return "", services.Wrap(services.ErrValidation, stageConcatenating, "write manifest", fmt.Sprintf("path %q contains a line break", part), nil)
	}
	abs, err := filepath.Abs(part)
	if err != nil {
		return "", services.Wrap(services.ErrIO, stageConcatenating, "resolve part", part, err)
	}
	return "file '" + strings.ReplaceAll(abs, "'", `'\''`) + "'", nil
}

func partialPath(dest string) string {
	ext := filepath.Ext(dest)
	return strings.TrimSuffix(dest, ext) + ".part" + ext
}
