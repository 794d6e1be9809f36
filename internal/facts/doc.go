// Package facts implements working memory: the live set of declared facts
// during one engine run.
//
// A Store is created fresh (or Reset) before each independent run and
// discarded after results are extracted. Nothing persists across runs -
// leaking facts from a prior run into the next is a correctness bug class
// this lifecycle exists to prevent.
//
// CRITICAL PATTERNS:
//
// Logical Clock:
// Every declared fact is stamped with a monotonic seq counter from
// Clock.Next(). Declaration order is the only ordering the engine ever
// relies on; wall-clock timestamps are never used.
//
// Duplicates:
// Declaring a fact with identical kind and field values as an existing fact
// creates a second, distinct fact. Deduplicating here would silently change
// query semantics (two identical catalog records must yield two answers).
package facts
