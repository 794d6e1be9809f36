package harness

import (
	"context"
	"fmt"

	"github.com/roach88/sift/internal/compiler"
	"github.com/roach88/sift/internal/domain"
	"github.com/roach88/sift/internal/engine"
	"github.com/roach88/sift/internal/ir"
	"github.com/roach88/sift/internal/query"
	"github.com/roach88/sift/internal/source"
	"github.com/roach88/sift/internal/testutil"
)

// Result is the outcome of one scenario execution.
type Result struct {
	// Pass indicates overall scenario success: the run behaved as the
	// scenario expects and every assertion matched.
	Pass bool

	// Answers holds the answer fact field maps, in firing order.
	Answers []ir.Object

	// Run is the captured trace: criteria, facts, firings, status.
	Run query.RunRecord

	// Errors contains assertion failure messages. Empty if Pass is true.
	Errors []string
}

// addError records an assertion failure and marks the result failed.
func (r *Result) addError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Pass = false
}

// captureRecorder keeps the run trace in memory for assertions and
// golden comparison.
type captureRecorder struct {
	run query.RunRecord
}

func (c *captureRecorder) RecordRun(ctx context.Context, run query.RunRecord) error {
	c.run = run
	return nil
}

// Run executes a scenario against the real facade and engine and
// evaluates its assertions.
//
// An error return means the scenario could not be executed at all (bad
// domain, unreadable rules file). Engine failures the scenario expects
// (expect_error) are part of normal evaluation and surface in the Result.
func Run(scenario *Scenario) (*Result, error) {
	result := &Result{Pass: true}

	criteria, mapRecord, err := domainBindings(scenario.Domain, scenario.Criteria)
	if err != nil {
		return nil, err
	}

	capture := &captureRecorder{}
	opts := []query.FacadeOption{
		query.WithTokenGenerator(testutil.NewFixedTokenGenerator(scenario.RunToken)),
		query.WithRecorder(capture),
	}
	if scenario.MaxFirings > 0 {
		opts = append(opts, query.WithMaxFirings(scenario.MaxFirings))
	}

	facade, err := buildFacade(scenario, opts)
	if err != nil {
		return nil, err
	}

	src := source.Static{Records: scenario.Records, Map: mapRecord}
	res, err := facade.Query(context.Background(), criteria, src)
	result.Run = capture.run

	if scenario.ExpectError == ExpectCeiling {
		if err == nil {
			result.addError("expected the firing ceiling to trip, but the query succeeded with %d answer(s)", len(res.Answers))
		} else if !engine.IsCeilingError(err) {
			result.addError("expected a ceiling error, got: %v", err)
		}
		return result, nil
	}
	if err != nil {
		result.addError("query failed: %v", err)
		return result, nil
	}

	for _, f := range res.Answers {
		result.Answers = append(result.Answers, f.Fields)
	}
	evaluateAssertions(scenario, result)
	return result, nil
}

// buildFacade constructs the facade for a scenario: the domain's built-in
// rules, or a compiled CUE override.
func buildFacade(scenario *Scenario, opts []query.FacadeOption) (*query.Facade, error) {
	if scenario.Rules == "" {
		switch scenario.Domain {
		case "vacancies":
			return domain.VacancyFacade(opts...)
		case "plants":
			return domain.PlantFacade(opts...)
		case "flights":
			return domain.FlightFacade(opts...)
		}
		return nil, fmt.Errorf("unknown domain %q", scenario.Domain)
	}

	def, err := compiler.CompileFile(scenario.Rules)
	if err != nil {
		return nil, fmt.Errorf("compile rules %s: %w", scenario.Rules, err)
	}
	return query.NewFacade(def.Name, def.RuleSet, def.Answers, opts...)
}

// domainBindings maps a scenario's criteria map to criteria facts and
// selects the record mapper for its domain.
func domainBindings(name string, criteria map[string]any) ([]ir.Fact, source.MapFunc, error) {
	switch name {
	case "vacancies":
		c := domain.VacancyCriteria{
			Salary:   critInt(criteria, "salary"),
			Location: critString(criteria, "location"),
			Text:     critString(criteria, "text"),
		}
		return c.Facts(), domain.VacancyFromRecord, nil
	case "plants":
		c := domain.PlantCriteria{
			Color: critString(criteria, "color"),
			Size:  critString(criteria, "size"),
			Type:  critString(criteria, "type"),
		}
		return c.Facts(), domain.PlantFromRecord, nil
	case "flights":
		c := domain.FlightCriteria{
			Origin:      critString(criteria, "origin"),
			Destination: critString(criteria, "destination"),
			MaxPrice:    critInt(criteria, "max_price"),
		}
		return c.Facts(), domain.FlightFromRecord, nil
	default:
		return nil, nil, fmt.Errorf("unknown domain %q: must be vacancies, plants, or flights", name)
	}
}

func critString(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func critInt(m map[string]any, key string) int64 {
	switch v := m[key].(type) {
	case int:
		return int64(v)
	case int64:
		return v
	default:
		return 0
	}
}
