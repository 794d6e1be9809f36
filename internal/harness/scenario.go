package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines one conformance test: a query against a fixed catalog
// with assertions over the resulting answers and firings.
type Scenario struct {
	// Name uniquely identifies this scenario. Also the golden file name.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Domain selects the catalog domain: vacancies, plants, or flights.
	// It fixes the criteria shape and the record mapping.
	Domain string `yaml:"domain"`

	// Rules optionally overrides the built-in rule set with a CUE file.
	// The path is relative to the scenario file location.
	Rules string `yaml:"rules,omitempty"`

	// RunToken is an optional fixed run token for deterministic traces.
	// If empty, defaults to "test-run-default".
	RunToken string `yaml:"run_token,omitempty"`

	// MaxFirings optionally lowers the firing ceiling, for scenarios that
	// exercise the ceiling failure path together with expect_error.
	MaxFirings int `yaml:"max_firings,omitempty"`

	// Criteria is the caller query, in the domain's field names
	// (vacancies: salary, location; plants: color, size, type;
	// flights: origin, destination, max_price).
	Criteria map[string]any `yaml:"criteria"`

	// Records is the in-memory catalog the query runs against.
	Records []map[string]any `yaml:"records"`

	// ExpectError marks a scenario that must fail. The only supported
	// category is "ceiling".
	ExpectError string `yaml:"expect_error,omitempty"`

	// Assertions validate the answers and the firing trace.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Assertion validates answers or firings after a scenario run.
type Assertion struct {
	// Type specifies the assertion type:
	// - "answer_count": exactly Count answers
	// - "answers_contain": some answer matches Fields (subset match)
	// - "answer_order": the named Field takes Values in answer order
	// - "firing_count": exactly Count rule firings
	// - "rule_fired": RuleID fired (exactly Count times when Count > 0)
	Type string `yaml:"type"`

	// Count is the expected number (answer_count, firing_count, rule_fired).
	Count int `yaml:"count,omitempty"`

	// Fields are expected answer field values (answers_contain).
	// Subset match - only specified fields are compared.
	Fields map[string]any `yaml:"fields,omitempty"`

	// Field is the answer field to project (answer_order).
	Field string `yaml:"field,omitempty"`

	// Values is the expected projected sequence (answer_order).
	Values []any `yaml:"values,omitempty"`

	// RuleID names the rule (rule_fired).
	RuleID string `yaml:"rule_id,omitempty"`
}

// Assertion type constants.
const (
	AssertAnswerCount    = "answer_count"
	AssertAnswersContain = "answers_contain"
	AssertAnswerOrder    = "answer_order"
	AssertFiringCount    = "firing_count"
	AssertRuleFired      = "rule_fired"
)

// ExpectError categories.
const ExpectCeiling = "ceiling"

// LoadScenario reads and parses a scenario YAML file. The Rules path, if
// set, is resolved relative to the scenario file. Returns an error if the
// file is malformed, contains unknown fields (typos), or is missing
// required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("parse scenario YAML: %w", err)
	}

	if scenario.Rules != "" && !filepath.IsAbs(scenario.Rules) {
		scenario.Rules = filepath.Join(filepath.Dir(path), scenario.Rules)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	return &scenario, nil
}

// LoadScenarioDir loads every *.yaml scenario in a directory, sorted by
// file name.
func LoadScenarioDir(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no scenario files in %s", dir)
	}

	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Domain == "" {
		return fmt.Errorf("domain is required")
	}
	if s.Criteria == nil {
		return fmt.Errorf("criteria is required")
	}
	if s.Records == nil {
		return fmt.Errorf("records is required (use an empty list for an empty catalog)")
	}
	if s.ExpectError != "" && s.ExpectError != ExpectCeiling {
		return fmt.Errorf("expect_error: unknown category %q", s.ExpectError)
	}
	if s.ExpectError == "" && len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required for scenarios that expect success")
	}
	if s.Rules != "" {
		if _, err := os.Stat(s.Rules); os.IsNotExist(err) {
			return fmt.Errorf("rules file not found: %s", s.Rules)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertAnswerCount, AssertFiringCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertAnswersContain:
		if len(a.Fields) == 0 {
			return fmt.Errorf("assertions[%d]: fields is required for answers_contain", index)
		}
	case AssertAnswerOrder:
		if a.Field == "" {
			return fmt.Errorf("assertions[%d]: field is required for answer_order", index)
		}
		if a.Values == nil {
			return fmt.Errorf("assertions[%d]: values is required for answer_order", index)
		}
	case AssertRuleFired:
		if a.RuleID == "" {
			return fmt.Errorf("assertions[%d]: rule_id is required for rule_fired", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
