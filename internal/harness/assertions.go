package harness

import (
	"github.com/roach88/sift/internal/ir"
)

// evaluateAssertions checks every scenario assertion against the result,
// collecting all failures rather than stopping at the first.
func evaluateAssertions(scenario *Scenario, result *Result) {
	for i, a := range scenario.Assertions {
		switch a.Type {
		case AssertAnswerCount:
			assertAnswerCount(i, a, result)
		case AssertAnswersContain:
			assertAnswersContain(i, a, result)
		case AssertAnswerOrder:
			assertAnswerOrder(i, a, result)
		case AssertFiringCount:
			assertFiringCount(i, a, result)
		case AssertRuleFired:
			assertRuleFired(i, a, result)
		}
	}
}

func assertAnswerCount(index int, a Assertion, result *Result) {
	if len(result.Answers) != a.Count {
		result.addError("assertions[%d] answer_count: want %d, got %d", index, a.Count, len(result.Answers))
	}
}

func assertAnswersContain(index int, a Assertion, result *Result) {
	want, err := toValueMap(a.Fields)
	if err != nil {
		result.addError("assertions[%d] answers_contain: %v", index, err)
		return
	}

	for _, answer := range result.Answers {
		if subsetMatch(answer, want) {
			return
		}
	}
	result.addError("assertions[%d] answers_contain: no answer matches %v", index, a.Fields)
}

func assertAnswerOrder(index int, a Assertion, result *Result) {
	if len(result.Answers) != len(a.Values) {
		result.addError("assertions[%d] answer_order: want %d answer(s), got %d", index, len(a.Values), len(result.Answers))
		return
	}
	for i, raw := range a.Values {
		want, err := ir.FromGo(raw)
		if err != nil {
			result.addError("assertions[%d] answer_order: values[%d]: %v", index, i, err)
			return
		}
		got, ok := result.Answers[i][a.Field]
		if !ok {
			result.addError("assertions[%d] answer_order: answer %d has no field %q", index, i, a.Field)
			return
		}
		if !ir.Equal(got, want) {
			result.addError("assertions[%d] answer_order: answer %d field %q: want %v, got %v",
				index, i, a.Field, raw, ir.ToGo(got))
			return
		}
	}
}

func assertFiringCount(index int, a Assertion, result *Result) {
	if len(result.Run.Firings) != a.Count {
		result.addError("assertions[%d] firing_count: want %d, got %d", index, a.Count, len(result.Run.Firings))
	}
}

func assertRuleFired(index int, a Assertion, result *Result) {
	fired := 0
	for _, f := range result.Run.Firings {
		if f.RuleID == a.RuleID {
			fired++
		}
	}
	if a.Count > 0 {
		if fired != a.Count {
			result.addError("assertions[%d] rule_fired: want rule %q fired %d time(s), got %d", index, a.RuleID, a.Count, fired)
		}
		return
	}
	if fired == 0 {
		result.addError("assertions[%d] rule_fired: rule %q never fired", index, a.RuleID)
	}
}

// toValueMap converts YAML-decoded expected fields to typed values.
func toValueMap(m map[string]any) (ir.Object, error) {
	out := make(ir.Object, len(m))
	for k, raw := range m {
		v, err := ir.FromGo(raw)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

// subsetMatch reports whether every expected field is present in the
// answer with an equal value. Extra answer fields are ignored.
func subsetMatch(answer, want ir.Object) bool {
	for k, wv := range want {
		av, ok := answer[k]
		if !ok || !ir.Equal(av, wv) {
			return false
		}
	}
	return true
}
