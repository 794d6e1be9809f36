// Package harness executes YAML-defined query scenarios against the real
// matching pipeline.
//
// A scenario names a domain (or a CUE rule-set file), a criteria map, and
// an in-memory catalog of records. The harness builds the facade exactly
// as the CLI would, runs the query with a fixed run token, captures the
// full run trace, and evaluates the scenario's assertions against the
// answers and firings.
//
// Scenarios serve three audiences:
//
//   - conformance tests: assertions over answers, order, and firings
//   - golden traces: canonical-JSON snapshots of the whole run trace,
//     compared with goldie (go test ./internal/harness -update)
//   - the CLI: `sift test <dir>` runs every scenario in a directory
//
// Determinism is the point. The same scenario always produces the same
// trace bytes, so golden files double as a regression net for the engine's
// ordering guarantees.
package harness
