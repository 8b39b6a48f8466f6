// Package preflight provides readiness checks for the filesystem paths and
// external programs lipsync depends on.
//
// These checks run in two contexts:
//   - The workflow manager calls RunAll before claiming each job. If any
//     check fails the lane waits instead of failing every queued job.
//   - The CLI "lipsync status" command and the daemon's /api/status route
//     display the individual results.
package preflight
