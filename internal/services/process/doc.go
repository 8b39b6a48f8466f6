// Package process runs external programs behind a typed request/result
// interface so pipeline stages can be exercised without real binaries.
//
// LocalRunner launches each child in its own process group, kills the whole
// group on cancellation or timeout, keeps a bounded tail of combined output
// for error reporting, and records Prometheus command metrics. The
// processtest subpackage provides a scripted fake for tests.
package process
