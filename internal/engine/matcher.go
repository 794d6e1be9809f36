package engine

import (
	"github.com/roach88/sift/internal/facts"
	"github.com/roach88/sift/internal/ir"
)

// matchPattern checks one fact against one pattern under an existing
// binding environment.
//
// The match is determined per constrained field:
// 1. Literal: the field must equal the fixed value
// 2. Bind: if the variable is already bound, the field must agree with it
//    (the equi-join); otherwise the field's value is captured
// 3. Any: matches without binding
//
// Fields the pattern does not mention are wildcards.
//
// Returns the extended bindings and true on success. On failure the input
// bindings are untouched - extension happens on a copy only when at least
// one new variable is captured.
func matchPattern(p ir.Pattern, f ir.Fact, bound ir.Bindings) (ir.Bindings, bool) {
	if p.Kind != f.Kind {
		return nil, false
	}

	// First pass: check all constraints without mutating anything.
	var newVars []string
	for fieldName, m := range p.Fields {
		value, exists := f.Fields[fieldName]
		if !exists {
			// Kinds guarantee full field sets; a miss means the pattern
			// was validated against a different kind definition.
			return nil, false
		}

		switch mv := m.(type) {
		case ir.Literal:
			if !ir.Equal(value, mv.Value) {
				return nil, false
			}

		case ir.Bind:
			if prev, ok := bound[mv.Var]; ok {
				if !ir.Equal(value, prev) {
					return nil, false
				}
			} else {
				newVars = append(newVars, fieldName)
			}

		case ir.Any:
			// wildcard
		}
	}

	if len(newVars) == 0 {
		return bound, true
	}

	// Second pass: capture new variables on a copy.
	extended := bound.Clone()
	for _, fieldName := range newVars {
		b := p.Fields[fieldName].(ir.Bind)
		extended[b.Var] = f.Fields[fieldName]
	}
	return extended, true
}

// combination is one structurally-matched tuple of facts for a rule,
// with the bindings the match accumulated.
type combination struct {
	entries  []facts.Entry
	bindings ir.Bindings
}

// enumerate finds every combination of facts (f1 from kind(P1), ...,
// fn from kind(Pn)) satisfying the rule's patterns with mutually
// consistent bindings.
//
// This is the classic nested-loop multi-way join: pattern-major recursion,
// facts visited in declaration (seq) order. Discovery order is therefore
// deterministic for a given declaration sequence.
func enumerate(r ir.Rule, store *facts.Store) []combination {
	var out []combination
	entries := make([]facts.Entry, 0, len(r.Patterns))
	join(r.Patterns, store, entries, ir.Bindings{}, &out)
	return out
}

func join(patterns []ir.Pattern, store *facts.Store, matched []facts.Entry, bound ir.Bindings, out *[]combination) {
	if len(patterns) == 0 {
		comb := combination{
			entries:  make([]facts.Entry, len(matched)),
			bindings: bound,
		}
		copy(comb.entries, matched)
		*out = append(*out, comb)
		return
	}

	p := patterns[0]
	it := store.Iterate(p.Kind)
	for {
		entry, ok := it.Next()
		if !ok {
			return
		}
		extended, ok := matchPattern(p, entry.Fact, bound)
		if !ok {
			continue
		}
		join(patterns[1:], store, append(matched, entry), extended, out)
	}
}

// applyTest evaluates the rule's test predicate, if any, against the
// combination's bindings. Tests are ordinary boolean expressions over
// bound values, not structural patterns.
func applyTest(r ir.Rule, c combination) bool {
	if r.Test == nil {
		return true
	}
	return r.Test(c.bindings)
}
