// Package daemon coordinates the long-running lipsync process.
//
// It wires configuration, queue storage, the workflow manager, and the
// progress event hub into a single lifecycle with flock-based locking to
// prevent multiple instances. The daemon accepts jobs (host-local paths or
// multipart uploads), serves the upload form, the JSON API, websocket
// progress streams, and Prometheus metrics.
//
// Keep orchestration logic here: the conversion itself lives in the pipeline
// package while the daemon focuses on startup, shutdown, and request intake.
package daemon
