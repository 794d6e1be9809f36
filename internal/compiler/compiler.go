// Package compiler turns declarative CUE rule-set documents into validated
// ir rule sets.
//
// A document defines kinds (field name -> type), the answer kinds, and a
// list of rules. Each rule has patterns with literal / bind / any field
// matches, an optional test (a conjunction of comparison clauses over
// bound variables), a salience, and an answer template. The compiler
// builds the typed test and action closures the engine runs, and every
// structural defect fails here - compile time, not run time.
//
// Document shape:
//
//	name: "vacancies"
//	kinds: {
//		vacancy: {location: "string", from_salary: "int", ...}
//		salary_preference: {value: "int"}
//	}
//	answers: ["vacancy_answer"]
//	rules: [{
//		id: "vacancy-salary-location"
//		salience: 0
//		patterns: [{
//			kind: "salary_preference"
//			fields: {value: {bind: "salary"}}
//		}, ...]
//		test: [
//			{left: "salary", op: "ge", right: {var: "from"}},
//			{left: "salary", op: "le", right: {var: "to"}},
//		]
//		answer: {kind: "vacancy_answer", fields: {location: {var: "location"}, ...}}
//	}]
package compiler

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/sift/internal/ir"
)

// Definition is a compiled rule-set document.
type Definition struct {
	Name    string
	RuleSet *ir.RuleSet
	Answers []string
}

// CompileFile compiles a CUE rule-set file.
func CompileFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule set: %w", err)
	}
	return CompileString(string(data), path)
}

// CompileString compiles CUE source. filename is used in error positions.
func CompileString(src, filename string) (*Definition, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src, cue.Filename(filename))
	return Compile(v)
}

// Compile parses a CUE value into a validated Definition.
// Uses CUE SDK's Go API directly (not CLI subprocess).
func Compile(v cue.Value) (*Definition, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	def := &Definition{}

	nameVal := v.LookupPath(cue.ParsePath("name"))
	if !nameVal.Exists() {
		return nil, &CompileError{Field: "name", Message: "name is required", Pos: v.Pos()}
	}
	name, err := nameVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	def.Name = name

	kinds, kindMap, err := parseKinds(v)
	if err != nil {
		return nil, err
	}

	def.Answers, err = parseAnswers(v)
	if err != nil {
		return nil, err
	}
	for _, a := range def.Answers {
		if _, ok := kindMap[a]; !ok {
			return nil, &CompileError{
				Field:   "answers",
				Message: fmt.Sprintf("answer kind %q is not defined in kinds", a),
				Pos:     v.Pos(),
			}
		}
	}

	rules, err := parseRules(v, kindMap)
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		return nil, &CompileError{Field: "rules", Message: "at least one rule is required", Pos: v.Pos()}
	}

	// Final structural validation is shared with Go-defined rule sets.
	rs, err := ir.NewRuleSet(kinds, rules)
	if err != nil {
		return nil, &CompileError{Field: "rules", Message: err.Error(), Pos: v.Pos()}
	}
	def.RuleSet = rs

	return def, nil
}
