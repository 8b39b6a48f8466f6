// Package pipeline drives one lip-sync conversion from staged inputs to the
// final concatenated video.
//
// A Driver walks a single request through staging, optional segmentation,
// per-segment inference on a bounded worker pool, stream-copy concatenation,
// and workspace cleanup. Progress is reported through an Observer so the
// CLI and the daemon can surface it without the driver knowing about either.
package pipeline
