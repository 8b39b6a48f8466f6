// Package logging assembles structured slog loggers and formatting helpers used
// across lipsync.
//
// It owns the configurable console/JSON handlers, routes daemon output to a
// size-rotated log file, and exposes context-aware helpers so pipeline code
// automatically tags log lines with job IDs, stages, segment indexes, and
// correlation IDs. The package also provides a no-op logger for tests and
// wiring code that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup so new components emit
// records with the same shape and routing as the rest of the system.
package logging
