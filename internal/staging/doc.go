// Package staging owns per-job workspaces: the request-scoped directory tree
// that holds staged inputs, their segments, per-segment inference outputs,
// and the concat manifest.
//
// Every path is namespaced by the job ID so concurrent jobs never share
// scratch files. Workspaces of successful jobs are removed immediately;
// failed ones are kept for inspection and reclaimed by CleanStale.
package staging
