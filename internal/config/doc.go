// Package config loads, normalizes, and validates lipsync configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// LIPSYNC_API_TOKEN. The Config type centralizes every knob the daemon and
// CLI need: workspace and results directories, the ffmpeg binaries, and how
// the external inference program is launched.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
