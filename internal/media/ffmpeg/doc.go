// Package ffmpeg wraps the two ffmpeg operations the pipeline needs:
// stream-copy segmentation with the segment muxer and stream-copy
// concatenation with the concat demuxer.
//
// Both run through a process.Runner so they can be tested without ffmpeg.
// Failures are tagged with services.ErrExternalTool and carry the command
// line and captured output.
package ffmpeg
