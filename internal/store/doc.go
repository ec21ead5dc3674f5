// Package store provides SQLite-backed history of analysis runs.
//
// Each run records the fingerprint of the annotated program and the
// ordered diagnostics, so a later run over the same sources can be
// compared against it (see the replay command).
//
// # Critical Patterns
//
// Logical ordering:
//   - Runs are ordered by the seq column assigned at insert time
//   - Wall-clock time is never stored or used for ordering
//
// Idempotent writes:
//   - Writing the same run ID twice is a no-op (ON CONFLICT DO NOTHING)
//
// Deterministic reads:
//   - Every query has an explicit ORDER BY
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait on lock contention
//   - foreign_keys=ON: diagnostics reference their run
package store
