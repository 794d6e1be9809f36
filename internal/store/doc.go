// Package store provides SQLite-backed storage for query run traces.
//
// Working memory itself is never persisted - it is request-scoped by
// contract. What the store keeps is the audit trail of completed runs:
//   - Runs: one row per query run (token, rule set, criteria, status)
//   - Run Facts: every declared fact with its seq, hash, and origin
//   - Run Firings: every rule firing with its combination hash
//
// The trace backs the `sift trace` and `sift replay` commands.
//
// # Critical Patterns
//
// Logical Identity and Time:
//   - Within a run, all ordering uses seq INTEGER (logical clock)
//   - Wall-clock timestamps appear only as run-level audit metadata,
//     never for ordering
//
// Deterministic Query Results:
//   - All trace reads ORDER BY seq ASC so replays compare byte-for-byte
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// All content-addressed hashes are computed via internal/ir/hash.go using
// RFC 8785 canonical JSON and SHA-256 with domain separation.
package store
