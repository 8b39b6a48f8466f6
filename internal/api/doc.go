// Package api defines the wire-format types of the daemon's HTTP API and a
// client for it.
//
// DTOs use camelCase JSON tags. Timestamps are RFC3339 with milliseconds.
// Converters translate queue jobs, workflow summaries, and progress events
// into these types so HTTP handlers and the CLI never depend on internal
// models directly.
//
// Client wraps the JSON endpoints, the multipart upload, the output
// download, and the websocket progress stream.
package api
