// Package engine implements the forward-chaining matching engine.
//
// The engine is the heart of sift - it evaluates every rule's pattern set
// against working memory, joins facts on shared variables, applies test
// predicates, and fires newly-eligible activations until fixpoint.
//
// ARCHITECTURE:
//
// Single-Run Evaluation Loop:
// An Engine instance drives exactly one run over one working memory. All
// matching and firing is pure in-memory computation in the calling
// goroutine - there is no suspension point and no I/O. This ensures:
// - Predictable rule evaluation order
// - Reproducible firing traces on replay
// - Simple reasoning about causality
//
// Evaluation Flow:
// 1. Collect activations: for each rule in declaration order, enumerate
//    every fact combination satisfying the patterns (nested-loop join),
//    then apply the test predicate
// 2. Drop activations that already fired (refraction)
// 3. Order the agenda: salience descending, then rule declaration order,
//    then combination discovery order
// 4. Fire each activation exactly once - the action declares answer facts
// 5. Repeat from step 1 until a pass fires nothing (fixpoint)
//
// Newly declared facts can, in principle, satisfy other rules' patterns,
// so the whole rule set is re-evaluated after each firing round. The
// firing ceiling guards against rule sets that chain without bound.
//
// CRITICAL PATTERNS:
//
// Deterministic Scheduling:
// Rules are evaluated in declaration order. Facts are joined in
// declaration (seq) order, pattern-major. No randomness, no concurrency,
// no non-determinism.
//
// Refraction:
// Each (rule, fact combination) fires at most once per run, keyed by
// CombinationHash. Without it, every pass would re-fire every match.
//
// The engine is designed for correctness and determinism, not throughput.
// At the data sizes in scope (tens of facts) the naive nested-loop join is
// the right tool; an index keyed by (kind, field) can replace it later
// without changing observable semantics.
package engine
