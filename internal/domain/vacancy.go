package domain

import (
	"fmt"

	"github.com/roach88/sift/internal/ir"
	"github.com/roach88/sift/internal/query"
)

// Fact kind names for the vacancy domain.
const (
	KindVacancy          = "vacancy"
	KindSalaryPreference = "salary_preference"
	KindLocationFilter   = "location_filter"
	KindVacancyAnswer    = "vacancy_answer"
)

// DefaultCurrency is assumed when a record carries no currency.
const DefaultCurrency = "RUR"

// Vacancy is one job listing, candidate or matched.
//
// POLICY: a missing salary bound is stored as 0 before range comparison.
// "No lower bound" therefore behaves as "lower bound of 0" (always
// satisfied), and "no upper bound" as "upper bound of 0" (unmatchable by
// salary). This mirrors the upstream listings service.
type Vacancy struct {
	Position   string `json:"position" yaml:"position"`
	Company    string `json:"company" yaml:"company"`
	Location   string `json:"location" yaml:"location"`
	FromSalary int64  `json:"from_salary" yaml:"from_salary"`
	ToSalary   int64  `json:"to_salary" yaml:"to_salary"`
	Currency   string `json:"currency" yaml:"currency"`
	Link       string `json:"link" yaml:"link"`
}

// VacancyCriteria is one caller query against the vacancy catalog.
// Text is a free-text keyword forwarded to the upstream source as a search
// parameter; it is not matched by rules.
type VacancyCriteria struct {
	Salary   int64
	Location string
	Text     string
}

// VacancyKinds returns the vacancy fact kind definitions.
func VacancyKinds() []ir.Kind {
	record := ir.NewKind(KindVacancy,
		ir.F("position", ir.StringField),
		ir.F("company", ir.StringField),
		ir.F("location", ir.StringField),
		ir.F("from_salary", ir.IntField),
		ir.F("to_salary", ir.IntField),
		ir.F("currency", ir.StringField),
		ir.F("link", ir.StringField),
	)
	answer := ir.NewKind(KindVacancyAnswer, record.Fields...)
	return []ir.Kind{
		record,
		ir.NewKind(KindSalaryPreference, ir.F("value", ir.IntField)),
		ir.NewKind(KindLocationFilter, ir.F("value", ir.StringField)),
		answer,
	}
}

// VacancyRules builds the vacancy rule set.
//
// One rule: join the location filter and the vacancy on location (shared
// variable), then test the salary preference against the inclusive
// [from_salary, to_salary] range.
func VacancyRules() (*ir.RuleSet, error) {
	kinds := VacancyKinds()
	answerKind := kinds[3]

	match := ir.Rule{
		ID: "vacancy-salary-location",
		Patterns: []ir.Pattern{
			{Kind: KindSalaryPreference, Fields: map[string]ir.Match{
				"value": ir.Var("salary"),
			}},
			{Kind: KindLocationFilter, Fields: map[string]ir.Match{
				"value": ir.Var("location"),
			}},
			{Kind: KindVacancy, Fields: map[string]ir.Match{
				"location":    ir.Var("location"),
				"position":    ir.Var("position"),
				"company":     ir.Var("company"),
				"from_salary": ir.Var("from"),
				"to_salary":   ir.Var("to"),
				"currency":    ir.Var("currency"),
				"link":        ir.Var("link"),
			}},
		},
		TestVars: []string{"salary", "from", "to"},
		Test: func(b ir.Bindings) bool {
			salary, ok1 := b.Int("salary")
			from, ok2 := b.Int("from")
			to, ok3 := b.Int("to")
			if !ok1 || !ok2 || !ok3 {
				return false
			}
			// Inclusive bounds: a preference exactly equal to either bound matches.
			return salary >= from && salary <= to
		},
		ActionVars: []string{"position", "company", "location", "from", "to", "currency", "link"},
		Action: func(b ir.Bindings) ([]ir.Fact, error) {
			f, err := answerKind.New(ir.Object{
				"position":    b["position"],
				"company":     b["company"],
				"location":    b["location"],
				"from_salary": b["from"],
				"to_salary":   b["to"],
				"currency":    b["currency"],
				"link":        b["link"],
			})
			if err != nil {
				return nil, err
			}
			return []ir.Fact{f}, nil
		},
		Produces: []string{KindVacancyAnswer},
	}

	return ir.NewRuleSet(kinds, []ir.Rule{match})
}

// VacancyFacade builds a query façade for the vacancy domain.
func VacancyFacade(opts ...query.FacadeOption) (*query.Facade, error) {
	rules, err := VacancyRules()
	if err != nil {
		return nil, err
	}
	return query.NewFacade("vacancies", rules, []string{KindVacancyAnswer}, opts...)
}

// Facts builds the criteria facts: exactly one instance per field group.
func (c VacancyCriteria) Facts() []ir.Fact {
	kinds := VacancyKinds()
	return []ir.Fact{
		kinds[1].MustNew(ir.Object{"value": ir.Int(c.Salary)}),
		kinds[2].MustNew(ir.Object{"value": ir.String(c.Location)}),
	}
}

// Fact converts a vacancy record into a record fact.
func (v Vacancy) Fact() (ir.Fact, error) {
	currency := v.Currency
	if currency == "" {
		currency = DefaultCurrency
	}
	return VacancyKinds()[0].New(ir.Object{
		"position":    ir.String(v.Position),
		"company":     ir.String(v.Company),
		"location":    ir.String(v.Location),
		"from_salary": ir.Int(v.FromSalary),
		"to_salary":   ir.Int(v.ToSalary),
		"currency":    ir.String(currency),
		"link":        ir.String(v.Link),
	})
}

// VacancyFromRecord maps a raw source record (decoded YAML/JSON) into a
// record fact. Missing salary bounds become 0 (see Vacancy policy note);
// a missing currency becomes DefaultCurrency.
func VacancyFromRecord(m map[string]any) (ir.Fact, error) {
	fields := make(ir.Object, len(m))
	for k, raw := range m {
		if raw == nil {
			continue // Absent bound; kind zero-fill applies the 0 policy
		}
		v, err := ir.FromGo(raw)
		if err != nil {
			return ir.Fact{}, fmt.Errorf("vacancy record field %q: %w", k, err)
		}
		fields[k] = v
	}
	if _, ok := fields["currency"]; !ok {
		fields["currency"] = ir.String(DefaultCurrency)
	}
	return VacancyKinds()[0].New(fields)
}

// VacancyFromAnswer maps an answer fact back to the caller-visible shape.
func VacancyFromAnswer(f ir.Fact) (Vacancy, error) {
	if f.Kind != KindVacancyAnswer {
		return Vacancy{}, fmt.Errorf("want %s fact, got %s", KindVacancyAnswer, f.Kind)
	}
	return Vacancy{
		Position:   fieldString(f, "position"),
		Company:    fieldString(f, "company"),
		Location:   fieldString(f, "location"),
		FromSalary: fieldInt(f, "from_salary"),
		ToSalary:   fieldInt(f, "to_salary"),
		Currency:   fieldString(f, "currency"),
		Link:       fieldString(f, "link"),
	}, nil
}

func fieldString(f ir.Fact, name string) string {
	v, _ := f.Fields[name].(ir.String)
	return string(v)
}

func fieldInt(f ir.Fact, name string) int64 {
	v, _ := f.Fields[name].(ir.Int)
	return int64(v)
}
