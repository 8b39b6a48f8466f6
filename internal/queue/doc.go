// Package queue persists conversion jobs in SQLite and exposes helpers for
// driving their lifecycle.
//
// The Store manages the database connection, schema initialization, stats
// queries, heartbeat tracking, and stale-job recovery. Job rows carry the
// request (inputs and segment length), per-segment progress, the segment
// counts reported by the pipeline, and the classified failure so the daemon
// and CLI can coordinate without additional state.
//
// The database is treated as operational bookkeeping for the daemon rather
// than a long-term archive. Schema changes bump the version in schema.go;
// users clear the database to adopt the new schema.
package queue
