// Package ir provides the canonical representation of facts and rules.
//
// This package contains type definitions and pure functions only. All other
// internal packages import ir; ir imports nothing internal. This ensures the
// fact/rule model remains the foundational layer with no circular
// dependencies.
//
// Key design constraints:
//   - NO float types anywhere - use int64 for numbers
//   - Facts are immutable once declared; every declared field has a value
//   - Rules are data: pattern lists plus typed test/action closures
//   - All JSON tags use snake_case
package ir
