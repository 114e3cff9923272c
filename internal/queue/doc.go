// Package queue persists render jobs in SQLite and exposes helpers for
// driving their lifecycle.
//
// The Store manages database connections, schema initialization, the atomic
// claim that hands each pending job to exactly one worker, progress updates,
// terminal transitions, heartbeat tracking, stale-job reclamation, and
// aggregate queries. Payload types describe the two job shapes (pre-rendered
// assembly and full generation) as a tagged union.
//
// The database is treated as transient storage for in-flight jobs rather than
// a long-term archive. Schema changes bump the version in schema.go.
//
// Treat this package as the single source of truth for queue semantics: jobs
// are mutated only through Store methods, never by callers writing rows.
package queue
