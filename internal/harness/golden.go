package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/sift/internal/ir"
)

// TraceSnapshot captures one run trace for golden comparison.
// Serialized with canonical JSON so the bytes are stable across runs.
type TraceSnapshot struct {
	ScenarioName string
	Run          string
	RuleSet      string
	Status       string
	Facts        []SnapshotFact
	Firings      []SnapshotFiring
}

// SnapshotFact is one declared fact in a trace snapshot.
// Content hashes are excluded: they are pinned by the ir hash tests, and
// keeping them out of goldens keeps snapshot diffs readable.
type SnapshotFact struct {
	Seq    int64
	Origin string
	Kind   string
	Fields ir.Object
}

// SnapshotFiring is one rule firing in a trace snapshot.
type SnapshotFiring struct {
	Seq      int
	Pass     int
	RuleID   string
	FactSeqs []int64
}

// snapshot builds the trace snapshot from a scenario result.
// Wall-clock timestamps are not part of the snapshot.
func snapshot(scenarioName string, result *Result) TraceSnapshot {
	run := result.Run
	s := TraceSnapshot{
		ScenarioName: scenarioName,
		Run:          run.Token,
		RuleSet:      run.RuleSet,
		Status:       run.Status,
	}
	for _, f := range run.Facts {
		s.Facts = append(s.Facts, SnapshotFact{
			Seq:    f.Seq,
			Origin: f.Origin,
			Kind:   f.Kind,
			Fields: f.Fields,
		})
	}
	for _, f := range run.Firings {
		s.Firings = append(s.Firings, SnapshotFiring{
			Seq:      f.Seq,
			Pass:     f.Pass,
			RuleID:   f.RuleID,
			FactSeqs: f.FactSeqs,
		})
	}
	return s
}

// toCanonicalMap converts the snapshot to plain values for
// ir.MarshalCanonical.
func (s TraceSnapshot) toCanonicalMap() map[string]any {
	facts := make([]any, len(s.Facts))
	for i, f := range s.Facts {
		facts[i] = map[string]any{
			"seq":    f.Seq,
			"origin": f.Origin,
			"kind":   f.Kind,
			"fields": f.Fields,
		}
	}
	firings := make([]any, len(s.Firings))
	for i, f := range s.Firings {
		seqs := make([]any, len(f.FactSeqs))
		for j, seq := range f.FactSeqs {
			seqs[j] = seq
		}
		firings[i] = map[string]any{
			"seq":       f.Seq,
			"pass":      f.Pass,
			"rule_id":   f.RuleID,
			"fact_seqs": seqs,
		}
	}
	return map[string]any{
		"scenario_name": s.ScenarioName,
		"run":           s.Run,
		"rule_set":      s.RuleSet,
		"status":        s.Status,
		"facts":         facts,
		"firings":       firings,
	}
}

// RunWithGolden executes a scenario and compares its trace against a
// golden file in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Golden files are the source of truth for the engine's ordering
// guarantees: declaration order, salience order, and answer order are all
// visible in the snapshot bytes.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	traceJSON, err := ir.MarshalCanonical(snapshot(scenario.Name, result).toCanonicalMap())
	if err != nil {
		return nil, err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, traceJSON)

	return result, nil
}
