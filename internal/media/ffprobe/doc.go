// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Key types:
//   - Prober: runs ffprobe through a process.Runner
//   - Result: parsed streams and format metadata
//
// Result helpers expose stream counts, duration parsing, and the expected
// chunk count for a given segment length.
package ffprobe
