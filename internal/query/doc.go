// Package query provides the façade that turns one caller query into an
// engine run and extracts its results.
//
// Control flow for one query:
//
//	criteria + source -> fetch candidate records (fallible, bounded-time)
//	-> fresh working memory -> declare criteria facts -> declare record facts
//	-> run engine to fixpoint -> read answer facts -> caller
//
// The façade exclusively owns the working-memory lifecycle for a single
// request. Each query gets its own store and engine instance - no shared
// mutable state across concurrent queries, so the design scales
// horizontally by instantiating one façade run per request.
//
// Source failures abort the query before any fact is declared: the core
// never receives partially-formed records.
package query
