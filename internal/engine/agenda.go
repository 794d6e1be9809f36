package engine

import (
	"sort"

	"github.com/roach88/sift/internal/facts"
	"github.com/roach88/sift/internal/ir"
)

// activation is one fireable (rule, fact combination) pair discovered in
// an evaluation pass.
type activation struct {
	ruleIndex int // Position in rule declaration order
	rule      ir.Rule
	comb      combination
	comboHash string
}

// factSeqs returns the combination's fact handles as seq numbers,
// pattern-major, for hashing and trace records.
func (a activation) factSeqs() []int64 {
	seqs := make([]int64, len(a.comb.entries))
	for i, e := range a.comb.entries {
		seqs[i] = int64(e.Handle)
	}
	return seqs
}

// orderAgenda sorts activations into firing order:
// salience descending, then rule declaration order, then combination
// discovery order.
//
// The input is built rule-by-rule in discovery order, so a stable sort on
// the first two keys preserves the third. This ordering is the engine's
// only scheduling policy - there is no secondary stable ordering among
// activations of equal rank beyond discovery order, and callers must not
// depend on more than that.
func orderAgenda(agenda []activation) {
	sort.SliceStable(agenda, func(i, j int) bool {
		if agenda[i].rule.Salience != agenda[j].rule.Salience {
			return agenda[i].rule.Salience > agenda[j].rule.Salience
		}
		return agenda[i].ruleIndex < agenda[j].ruleIndex
	})
}

// collectAgenda enumerates every structurally-and-test-matching combination
// across all rules against current working memory, skipping combinations
// that already fired (refraction).
func collectAgenda(rules []ir.Rule, store *facts.Store, fired *refractionSet) []activation {
	var agenda []activation
	for idx, rule := range rules {
		for _, comb := range enumerate(rule, store) {
			hash := ir.CombinationHash(rule.ID, seqsOf(comb.entries))
			if fired.hasFired(hash) {
				continue
			}
			if !applyTest(rule, comb) {
				// A failed test is terminal for this combination: tests are
				// pure functions of bindings, and bindings of existing facts
				// never change. Record it so later passes skip the re-check.
				fired.record(hash)
				continue
			}
			agenda = append(agenda, activation{
				ruleIndex: idx,
				rule:      rule,
				comb:      comb,
				comboHash: hash,
			})
		}
	}
	orderAgenda(agenda)
	return agenda
}

func seqsOf(entries []facts.Entry) []int64 {
	seqs := make([]int64, len(entries))
	for i, e := range entries {
		seqs[i] = int64(e.Handle)
	}
	return seqs
}
