// Package notifications pushes job outcomes to ntfy.
//
// NewService returns a no-op implementation when no topic is configured, so
// the workflow manager can call it unconditionally.
package notifications
