package engine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sift/internal/facts"
	"github.com/roach88/sift/internal/ir"
)

// Test fixture: a catalog of plants matched against a single criteria
// fact on color, size, and type.

func plantKinds() []ir.Kind {
	return []ir.Kind{
		ir.NewKind("plant",
			ir.F("name", ir.StringField),
			ir.F("color", ir.StringField),
			ir.F("size", ir.StringField),
			ir.F("type", ir.StringField),
		),
		ir.NewKind("filter",
			ir.F("color", ir.StringField),
			ir.F("size", ir.StringField),
			ir.F("type", ir.StringField),
		),
		ir.NewKind("answer", ir.F("name", ir.StringField)),
	}
}

func plantRule() ir.Rule {
	return ir.Rule{
		ID: "plant-match",
		Patterns: []ir.Pattern{
			{Kind: "filter", Fields: map[string]ir.Match{
				"color": ir.Var("color"),
				"size":  ir.Var("size"),
				"type":  ir.Var("type"),
			}},
			{Kind: "plant", Fields: map[string]ir.Match{
				"name":  ir.Var("name"),
				"color": ir.Var("color"),
				"size":  ir.Var("size"),
				"type":  ir.Var("type"),
			}},
		},
		Action: func(b ir.Bindings) ([]ir.Fact, error) {
			name, _ := b.String("name")
			return []ir.Fact{
				{Kind: "answer", Fields: ir.Object{"name": ir.String(name)}},
			}, nil
		},
		ActionVars: []string{"name"},
		Produces:   []string{"answer"},
	}
}

func plantFact(name, color, size, typ string) ir.Fact {
	return ir.Fact{Kind: "plant", Fields: ir.Object{
		"name":  ir.String(name),
		"color": ir.String(color),
		"size":  ir.String(size),
		"type":  ir.String(typ),
	}}
}

func filterFact(color, size, typ string) ir.Fact {
	return ir.Fact{Kind: "filter", Fields: ir.Object{
		"color": ir.String(color),
		"size":  ir.String(size),
		"type":  ir.String(typ),
	}}
}

func answerNames(store *facts.Store) []string {
	var names []string
	it := store.Iterate("answer")
	for {
		e, ok := it.Next()
		if !ok {
			break
		}
		names = append(names, string(e.Fact.Fields["name"].(ir.String)))
	}
	return names
}

func TestRunMatchesJoinedFacts(t *testing.T) {
	rs, err := ir.NewRuleSet(plantKinds(), []ir.Rule{plantRule()})
	require.NoError(t, err)

	store := facts.NewStore()
	store.Declare(filterFact("красный", "маленький", "цветок"))
	store.Declare(plantFact("Роза", "красный", "маленький", "цветок"))
	store.Declare(plantFact("Кактус", "зеленый", "маленький", "суккулент"))
	store.Declare(plantFact("Пион", "красный", "маленький", "цветок"))

	e := New(rs, store)
	require.NoError(t, e.Run())

	assert.Equal(t, StateIdle, e.State())
	assert.Equal(t, 2, e.Firings())
	assert.Equal(t, []string{"Роза", "Пион"}, answerNames(store),
		"answers appear in catalog declaration order")
}

func TestRunNoMatchesIsSuccess(t *testing.T) {
	rs, err := ir.NewRuleSet(plantKinds(), []ir.Rule{plantRule()})
	require.NoError(t, err)

	store := facts.NewStore()
	store.Declare(filterFact("синий", "большой", "дерево"))
	store.Declare(plantFact("Роза", "красный", "маленький", "цветок"))

	e := New(rs, store)
	require.NoError(t, e.Run())
	assert.Equal(t, 0, e.Firings())
	assert.Empty(t, answerNames(store))
}

func TestRunDeclarationOrderIndependence(t *testing.T) {
	// The same fact set must produce the same answer multiset regardless
	// of criteria/record interleaving. Answer order follows record
	// declaration order in both arrangements.
	rs, err := ir.NewRuleSet(plantKinds(), []ir.Rule{plantRule()})
	require.NoError(t, err)

	run := func(declare func(*facts.Store)) []string {
		store := facts.NewStore()
		declare(store)
		e := New(rs, store)
		require.NoError(t, e.Run())
		return answerNames(store)
	}

	filterFirst := run(func(s *facts.Store) {
		s.Declare(filterFact("красный", "маленький", "цветок"))
		s.Declare(plantFact("Роза", "красный", "маленький", "цветок"))
		s.Declare(plantFact("Пион", "красный", "маленький", "цветок"))
	})
	filterLast := run(func(s *facts.Store) {
		s.Declare(plantFact("Роза", "красный", "маленький", "цветок"))
		s.Declare(plantFact("Пион", "красный", "маленький", "цветок"))
		s.Declare(filterFact("красный", "маленький", "цветок"))
	})

	assert.Equal(t, filterFirst, filterLast)
}

func TestRunDuplicateRecordsMatchTwice(t *testing.T) {
	rs, err := ir.NewRuleSet(plantKinds(), []ir.Rule{plantRule()})
	require.NoError(t, err)

	store := facts.NewStore()
	store.Declare(filterFact("красный", "маленький", "цветок"))
	store.Declare(plantFact("Роза", "красный", "маленький", "цветок"))
	store.Declare(plantFact("Роза", "красный", "маленький", "цветок"))

	e := New(rs, store)
	require.NoError(t, e.Run())
	assert.Equal(t, []string{"Роза", "Роза"}, answerNames(store),
		"identical records are distinct facts and each matches")
}

func TestRunTestPredicate(t *testing.T) {
	kinds := []ir.Kind{
		ir.NewKind("listing", ir.F("from", ir.IntField), ir.F("to", ir.IntField)),
		ir.NewKind("want", ir.F("salary", ir.IntField)),
		ir.NewKind("hit", ir.F("from", ir.IntField)),
	}
	rule := ir.Rule{
		ID: "salary-range",
		Patterns: []ir.Pattern{
			{Kind: "want", Fields: map[string]ir.Match{"salary": ir.Var("salary")}},
			{Kind: "listing", Fields: map[string]ir.Match{"from": ir.Var("from"), "to": ir.Var("to")}},
		},
		Test: func(b ir.Bindings) bool {
			salary, _ := b.Int("salary")
			from, _ := b.Int("from")
			to, _ := b.Int("to")
			return from <= salary && salary <= to
		},
		TestVars: []string{"salary", "from", "to"},
		Action: func(b ir.Bindings) ([]ir.Fact, error) {
			from, _ := b.Int("from")
			return []ir.Fact{{Kind: "hit", Fields: ir.Object{"from": ir.Int(from)}}}, nil
		},
		ActionVars: []string{"from"},
		Produces:   []string{"hit"},
	}
	rs, err := ir.NewRuleSet(kinds, []ir.Rule{rule})
	require.NoError(t, err)

	store := facts.NewStore()
	store.Declare(ir.Fact{Kind: "want", Fields: ir.Object{"salary": ir.Int(150000)}})
	store.Declare(ir.Fact{Kind: "listing", Fields: ir.Object{"from": ir.Int(100000), "to": ir.Int(200000)}})
	store.Declare(ir.Fact{Kind: "listing", Fields: ir.Object{"from": ir.Int(160000), "to": ir.Int(300000)}})
	// Inclusive boundaries on both ends.
	store.Declare(ir.Fact{Kind: "listing", Fields: ir.Object{"from": ir.Int(150000), "to": ir.Int(150000)}})

	e := New(rs, store)
	require.NoError(t, e.Run())
	assert.Equal(t, 2, e.Firings())
}

func TestRunSalienceOrdersFirings(t *testing.T) {
	kinds := []ir.Kind{
		ir.NewKind("seed", ir.F("v", ir.IntField)),
		ir.NewKind("out", ir.F("tag", ir.StringField)),
	}
	makeRule := func(id string, salience int) ir.Rule {
		return ir.Rule{
			ID:       id,
			Salience: salience,
			Patterns: []ir.Pattern{{Kind: "seed", Fields: map[string]ir.Match{"v": ir.Any{}}}},
			Action: func(ir.Bindings) ([]ir.Fact, error) {
				return []ir.Fact{{Kind: "out", Fields: ir.Object{"tag": ir.String(id)}}}, nil
			},
			Produces: []string{"out"},
		}
	}
	rs, err := ir.NewRuleSet(kinds, []ir.Rule{
		makeRule("low", 0),
		makeRule("high", 10),
		makeRule("mid", 5),
	})
	require.NoError(t, err)

	store := facts.NewStore()
	store.Declare(ir.Fact{Kind: "seed", Fields: ir.Object{"v": ir.Int(1)}})

	var order []string
	e := New(rs, store, WithObserver(func(f Firing) {
		order = append(order, f.RuleID)
	}))
	require.NoError(t, e.Run())
	assert.Equal(t, []string{"high", "mid", "low"}, order)
}

func TestRunRefraction(t *testing.T) {
	// A second Run over the same store must fire nothing: every
	// combination already fired.
	rs, err := ir.NewRuleSet(plantKinds(), []ir.Rule{plantRule()})
	require.NoError(t, err)

	store := facts.NewStore()
	store.Declare(filterFact("красный", "маленький", "цветок"))
	store.Declare(plantFact("Роза", "красный", "маленький", "цветок"))

	e := New(rs, store)
	require.NoError(t, e.Run())
	require.Equal(t, 1, e.Firings())

	require.NoError(t, e.Run())
	assert.Equal(t, 1, e.Firings(), "no combination fires twice")
}

func TestRunChainedRulesReachFixpoint(t *testing.T) {
	// stage1 produces mid facts, stage2 consumes them. Two passes.
	kinds := []ir.Kind{
		ir.NewKind("seed", ir.F("v", ir.IntField)),
		ir.NewKind("mid", ir.F("v", ir.IntField)),
		ir.NewKind("final", ir.F("v", ir.IntField)),
	}
	stage1 := ir.Rule{
		ID:       "stage1",
		Patterns: []ir.Pattern{{Kind: "seed", Fields: map[string]ir.Match{"v": ir.Var("v")}}},
		Action: func(b ir.Bindings) ([]ir.Fact, error) {
			v, _ := b.Int("v")
			return []ir.Fact{{Kind: "mid", Fields: ir.Object{"v": ir.Int(v + 1)}}}, nil
		},
		ActionVars: []string{"v"},
		Produces:   []string{"mid"},
	}
	stage2 := ir.Rule{
		ID:       "stage2",
		Patterns: []ir.Pattern{{Kind: "mid", Fields: map[string]ir.Match{"v": ir.Var("v")}}},
		Action: func(b ir.Bindings) ([]ir.Fact, error) {
			v, _ := b.Int("v")
			return []ir.Fact{{Kind: "final", Fields: ir.Object{"v": ir.Int(v * 10)}}}, nil
		},
		ActionVars: []string{"v"},
		Produces:   []string{"final"},
	}
	rs, err := ir.NewRuleSet(kinds, []ir.Rule{stage1, stage2})
	require.NoError(t, err)

	store := facts.NewStore()
	store.Declare(ir.Fact{Kind: "seed", Fields: ir.Object{"v": ir.Int(1)}})

	var passes []int
	e := New(rs, store, WithObserver(func(f Firing) {
		passes = append(passes, f.Pass)
	}))
	require.NoError(t, e.Run())

	assert.Equal(t, 2, e.Firings())
	assert.Equal(t, []int{0, 1}, passes, "derived facts match on the next pass")

	e2, ok := store.Iterate("final").Next()
	require.True(t, ok)
	assert.True(t, ir.Equal(ir.Int(20), e2.Fact.Fields["v"]))
}

func TestRunCeilingExceeded(t *testing.T) {
	rs, err := ir.NewRuleSet(plantKinds(), []ir.Rule{plantRule()})
	require.NoError(t, err)

	store := facts.NewStore()
	store.Declare(filterFact("красный", "маленький", "цветок"))
	for i := 0; i < 5; i++ {
		store.Declare(plantFact(fmt.Sprintf("Роза-%d", i), "красный", "маленький", "цветок"))
	}

	e := New(rs, store, WithMaxFirings(3), WithRunToken("test-run-ceiling"))
	err = e.Run()
	require.Error(t, err)
	assert.True(t, IsCeilingError(err))
	assert.Equal(t, StateFailed, e.State())

	// Terminal: a failed engine refuses further runs.
	err = e.Run()
	require.Error(t, err)
	assert.False(t, IsCeilingError(err))
}

func TestRunActionErrorFailsRun(t *testing.T) {
	kinds := []ir.Kind{
		ir.NewKind("seed", ir.F("v", ir.IntField)),
		ir.NewKind("out", ir.F("v", ir.IntField)),
	}
	rule := ir.Rule{
		ID:       "explode",
		Patterns: []ir.Pattern{{Kind: "seed", Fields: map[string]ir.Match{"v": ir.Any{}}}},
		Action: func(ir.Bindings) ([]ir.Fact, error) {
			return nil, fmt.Errorf("boom")
		},
		Produces: []string{"out"},
	}
	rs, err := ir.NewRuleSet(kinds, []ir.Rule{rule})
	require.NoError(t, err)

	store := facts.NewStore()
	store.Declare(ir.Fact{Kind: "seed", Fields: ir.Object{"v": ir.Int(1)}})

	e := New(rs, store)
	err = e.Run()
	require.Error(t, err)

	var rtErr *RuntimeError
	require.ErrorAs(t, err, &rtErr)
	assert.Equal(t, ErrCodeActionFailed, rtErr.Code)
	assert.Equal(t, "explode", rtErr.RuleID)
	assert.Equal(t, StateFailed, e.State())
}

func TestRunObserverReceivesFirings(t *testing.T) {
	rs, err := ir.NewRuleSet(plantKinds(), []ir.Rule{plantRule()})
	require.NoError(t, err)

	store := facts.NewStore()
	store.Declare(filterFact("красный", "маленький", "цветок"))
	store.Declare(plantFact("Роза", "красный", "маленький", "цветок"))

	var firings []Firing
	e := New(rs, store, WithObserver(func(f Firing) {
		firings = append(firings, f)
	}))
	require.NoError(t, e.Run())

	require.Len(t, firings, 1)
	f := firings[0]
	assert.Equal(t, 0, f.Seq)
	assert.Equal(t, "plant-match", f.RuleID)
	assert.Equal(t, []int64{1, 2}, f.FactSeqs, "filter fact then plant fact, pattern-major")
	assert.NotEmpty(t, f.ComboHash)
	require.Len(t, f.Produced, 1)
	assert.Equal(t, "answer", f.Produced[0].Fact.Kind)
}

func TestMatchPattern(t *testing.T) {
	p := ir.Pattern{Kind: "plant", Fields: map[string]ir.Match{
		"name":  ir.Var("name"),
		"color": ir.Lit(ir.String("красный")),
		"size":  ir.Any{},
	}}

	t.Run("match binds variables", func(t *testing.T) {
		b, ok := matchPattern(p, plantFact("Роза", "красный", "маленький", "цветок"), ir.Bindings{})
		require.True(t, ok)
		name, _ := b.String("name")
		assert.Equal(t, "Роза", name)
	})

	t.Run("literal mismatch", func(t *testing.T) {
		_, ok := matchPattern(p, plantFact("Кактус", "зеленый", "маленький", "суккулент"), ir.Bindings{})
		assert.False(t, ok)
	})

	t.Run("bound variable must agree", func(t *testing.T) {
		bound := ir.Bindings{"name": ir.String("Пион")}
		_, ok := matchPattern(p, plantFact("Роза", "красный", "маленький", "цветок"), bound)
		assert.False(t, ok)
	})

	t.Run("failed match leaves bindings untouched", func(t *testing.T) {
		bound := ir.Bindings{"name": ir.String("Пион")}
		_, ok := matchPattern(p, plantFact("Роза", "красный", "маленький", "цветок"), bound)
		require.False(t, ok)
		assert.Len(t, bound, 1)
		assert.True(t, ir.Equal(ir.String("Пион"), bound["name"]))
	})
}

// The nested-loop join must agree with a brute-force reference computed
// directly over the cross product of filters and plants.
func TestRunAgainstBruteForceReference(t *testing.T) {
	colors := []string{"красный", "зеленый", "желтый"}
	sizes := []string{"маленький", "большой"}
	types := []string{"цветок", "дерево"}

	var plants []ir.Fact
	n := 0
	for _, c := range colors {
		for _, s := range sizes {
			for _, ty := range types {
				n++
				plants = append(plants, plantFact(fmt.Sprintf("p%02d", n), c, s, ty))
			}
		}
	}
	filters := []ir.Fact{
		filterFact("красный", "маленький", "цветок"),
		filterFact("зеленый", "большой", "дерево"),
		filterFact("желтый", "маленький", "дерево"),
		filterFact("красный", "маленький", "цветок"), // duplicate criteria match independently
	}

	// Reference: enumerate (filter, plant) pairs in declaration order.
	var want []string
	for _, f := range filters {
		for _, p := range plants {
			if ir.Equal(f.Fields["color"], p.Fields["color"]) &&
				ir.Equal(f.Fields["size"], p.Fields["size"]) &&
				ir.Equal(f.Fields["type"], p.Fields["type"]) {
				want = append(want, string(p.Fields["name"].(ir.String)))
			}
		}
	}
	require.NotEmpty(t, want)

	rs, err := ir.NewRuleSet(plantKinds(), []ir.Rule{plantRule()})
	require.NoError(t, err)

	store := facts.NewStore()
	for _, f := range filters {
		store.Declare(f)
	}
	for _, p := range plants {
		store.Declare(p)
	}

	e := New(rs, store)
	require.NoError(t, e.Run())

	assert.Equal(t, want, answerNames(store))
	assert.Equal(t, len(want), e.Firings())
}
