package engine

// refractionSet tracks which (rule, fact combination) activations have
// already fired in this run.
//
// Without refraction, every evaluation pass would rediscover and re-fire
// every match that ever existed, and the fixpoint loop would never
// terminate: firing strictly increases the fact count, so "no NEW match"
// is the only workable stop condition.
//
// CRITICAL DISTINCTION from the firing ceiling:
//   - Refraction: "has this exact activation fired?" (prevents re-firing)
//   - Ceiling: "has this run fired too much overall?" (prevents unbounded
//     chaining through genuinely new facts)
//
// Together they guarantee termination for well-behaved rule sets and a
// clean failure for looping ones.
//
// Keys are ir.CombinationHash values. The set is run-scoped: a fresh
// engine (or a Reset working memory) starts empty.
type refractionSet struct {
	fired map[string]bool
}

func newRefractionSet() *refractionSet {
	return &refractionSet{fired: make(map[string]bool)}
}

// hasFired reports whether the combination already fired in this run.
func (r *refractionSet) hasFired(comboHash string) bool {
	return r.fired[comboHash]
}

// record marks a combination as fired. Called immediately before the
// rule's action executes.
func (r *refractionSet) record(comboHash string) {
	r.fired[comboHash] = true
}

// size returns the number of fired combinations (diagnostics only).
func (r *refractionSet) size() int {
	return len(r.fired)
}
