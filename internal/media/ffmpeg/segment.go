package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"lipsync/internal/logging"
	"lipsync/internal/services"
	"lipsync/internal/services/process"
)

// ChunkPrefix names every file the segment muxer writes.
const ChunkPrefix = "chunk_"

const stageSegmenting = "segmenting"

// Split cuts src into stream-copied chunks of roughly seconds each and returns
// their paths in index order. dir is cleared and recreated first so stale
// chunks never leak into the listing. Cuts land on keyframes at or after each
// multiple of seconds.
func (t *Tool) Split(ctx context.Context, src, dir string, seconds float64) ([]string, error) {
	if seconds <= 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return nil, services.Wrap(services.ErrValidation, stageSegmenting, "split", fmt.Sprintf("segment length must be positive, got %v", seconds), nil)
	}
	if err := os.RemoveAll(dir); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, services.Wrap(services.ErrIO, stageSegmenting, "clear scratch dir", dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrIO, stageSegmenting, "create scratch dir", dir, err)
	}

	ext := chunkExt(src)
	args := append(baseArgs(),
		"-i", src,
		"-c", "copy",
		"-f", "segment",
		"-segment_time", formatSeconds(seconds),
		"-reset_timestamps", "1",
		filepath.Join(dir, ChunkPrefix+"%03d"+ext),
	)
	req := process.Request{Name: t.binary, Args: args}
	if _, err := t.runner.Run(ctx, req); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, stageSegmenting, "split", filepath.Base(src), err)
	}

	chunks, err := ListChunks(dir, ext)
	if errors.Is(err, ErrEmptyChunk) {
		return nil, services.Wrap(services.ErrExternalTool, stageSegmenting, "split", filepath.Base(src), err)
	}
	if err != nil {
		return nil, services.Wrap(services.ErrIO, stageSegmenting, "list chunks", dir, err)
	}
	if len(chunks) == 0 {
		return nil, services.Wrap(services.ErrExternalTool, stageSegmenting, "split", fmt.Sprintf("%s produced no segments (command: %s)", t.binary, req), nil)
	}

	logging.WithContext(ctx, t.logger).Info(
		"segmented input",
		logging.String("source", filepath.Base(src)),
		logging.Int("chunks", len(chunks)),
		logging.Float64("segment_seconds", seconds),
	)
	return chunks, nil
}

// ErrEmptyChunk reports a zero-length chunk followed by non-empty ones.
var ErrEmptyChunk = errors.New("empty chunk before end of stream")

// ListChunks returns the chunk files with extension ext in dir, ordered by
// their numeric index. Trailing zero-length chunks, which the segment muxer
// can emit when the duration is an exact multiple of the segment length, are
// dropped. An empty chunk anywhere else would shift the pairing of every
// later segment, so it yields ErrEmptyChunk.
func ListChunks(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	pattern := regexp.MustCompile("^" + regexp.QuoteMeta(ChunkPrefix) + `(\d+)` + regexp.QuoteMeta(ext) + "$")

	type chunk struct {
		index int
		path  string
		empty bool
	}
	var chunks []chunk
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		match := pattern.FindStringSubmatch(entry.Name())
		if match == nil {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, err
		}
		index, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		chunks = append(chunks, chunk{index: index, path: filepath.Join(dir, entry.Name()), empty: info.Size() == 0})
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].index < chunks[j].index })

	for len(chunks) > 0 && chunks[len(chunks)-1].empty {
		chunks = chunks[:len(chunks)-1]
	}
	paths := make([]string, len(chunks))
	for i, c := range chunks {
		if c.empty {
			return nil, fmt.Errorf("%s: %w", filepath.Base(c.path), ErrEmptyChunk)
		}
		paths[i] = c.path
	}
	return paths, nil
}

func chunkExt(src string) string {
	if ext := filepath.Ext(src); ext != "" {
		return ext
	}
	return ".mp4"
}
