package compiler

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/roach88/sift/internal/ir"
)

// parseKinds extracts fact kind definitions.
// Field order within a kind follows the CUE document order.
func parseKinds(v cue.Value) ([]ir.Kind, map[string]ir.Kind, error) {
	kindsVal := v.LookupPath(cue.ParsePath("kinds"))
	if !kindsVal.Exists() {
		return nil, nil, &CompileError{Field: "kinds", Message: "kinds is required", Pos: v.Pos()}
	}

	iter, err := kindsVal.Fields()
	if err != nil {
		return nil, nil, formatCUEError(err)
	}

	var kinds []ir.Kind
	kindMap := make(map[string]ir.Kind)
	for iter.Next() {
		kindName := iter.Selector().Unquoted()
		fieldIter, err := iter.Value().Fields()
		if err != nil {
			return nil, nil, formatCUEError(err)
		}

		var fields []ir.Field
		for fieldIter.Next() {
			fieldName := fieldIter.Selector().Unquoted()
			typeName, err := fieldIter.Value().String()
			if err != nil {
				return nil, nil, formatCUEError(err)
			}
			fieldType, ok := fieldTypeByName(typeName)
			if !ok {
				return nil, nil, &CompileError{
					Field:   fmt.Sprintf("kinds.%s.%s", kindName, fieldName),
					Message: fmt.Sprintf("unknown field type %q (want string, int, or bool)", typeName),
					Pos:     fieldIter.Value().Pos(),
				}
			}
			fields = append(fields, ir.F(fieldName, fieldType))
		}

		kind := ir.NewKind(kindName, fields...)
		kinds = append(kinds, kind)
		kindMap[kindName] = kind
	}

	return kinds, kindMap, nil
}

func fieldTypeByName(name string) (ir.FieldType, bool) {
	switch name {
	case "string":
		return ir.StringField, true
	case "int":
		return ir.IntField, true
	case "bool":
		return ir.BoolField, true
	default:
		return 0, false
	}
}

// parseAnswers extracts the answer kind list.
func parseAnswers(v cue.Value) ([]string, error) {
	answersVal := v.LookupPath(cue.ParsePath("answers"))
	if !answersVal.Exists() {
		return nil, &CompileError{Field: "answers", Message: "answers is required", Pos: v.Pos()}
	}

	iter, err := answersVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var answers []string
	for iter.Next() {
		a, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		answers = append(answers, a)
	}
	if len(answers) == 0 {
		return nil, &CompileError{Field: "answers", Message: "at least one answer kind is required", Pos: answersVal.Pos()}
	}
	return answers, nil
}

// parseRules extracts and compiles the rule list in declaration order.
func parseRules(v cue.Value, kinds map[string]ir.Kind) ([]ir.Rule, error) {
	rulesVal := v.LookupPath(cue.ParsePath("rules"))
	if !rulesVal.Exists() {
		return nil, &CompileError{Field: "rules", Message: "rules is required", Pos: v.Pos()}
	}

	iter, err := rulesVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var rules []ir.Rule
	for iter.Next() {
		rule, err := parseRule(iter.Value(), kinds)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func parseRule(v cue.Value, kinds map[string]ir.Kind) (ir.Rule, error) {
	var rule ir.Rule

	idVal := v.LookupPath(cue.ParsePath("id"))
	if !idVal.Exists() {
		return rule, &CompileError{Field: "rules.id", Message: "id is required", Pos: v.Pos()}
	}
	id, err := idVal.String()
	if err != nil {
		return rule, formatCUEError(err)
	}
	rule.ID = id

	if salVal := v.LookupPath(cue.ParsePath("salience")); salVal.Exists() {
		sal, err := salVal.Int64()
		if err != nil {
			return rule, formatCUEError(err)
		}
		rule.Salience = int(sal)
	}

	patternsVal := v.LookupPath(cue.ParsePath("patterns"))
	if !patternsVal.Exists() {
		return rule, &CompileError{Field: "rules.patterns", Message: "patterns is required", Pos: v.Pos()}
	}
	pIter, err := patternsVal.List()
	if err != nil {
		return rule, formatCUEError(err)
	}
	for pIter.Next() {
		p, err := parsePattern(pIter.Value())
		if err != nil {
			return rule, err
		}
		rule.Patterns = append(rule.Patterns, p)
	}

	if testVal := v.LookupPath(cue.ParsePath("test")); testVal.Exists() {
		clauses, err := parseTestClauses(testVal)
		if err != nil {
			return rule, err
		}
		rule.Test, rule.TestVars = buildTest(clauses)
	}

	answerVal := v.LookupPath(cue.ParsePath("answer"))
	if !answerVal.Exists() {
		return rule, &CompileError{Field: "rules.answer", Message: "answer is required", Pos: v.Pos()}
	}
	tmpl, err := parseAnswerTemplate(answerVal)
	if err != nil {
		return rule, err
	}
	kind, ok := kinds[tmpl.kind]
	if !ok {
		return rule, &CompileError{
			Field:   "rules.answer",
			Message: fmt.Sprintf("answer kind %q is not defined in kinds", tmpl.kind),
			Pos:     answerVal.Pos(),
		}
	}
	rule.Action, rule.ActionVars = buildAction(kind, tmpl)
	rule.Produces = []string{tmpl.kind}

	return rule, nil
}

func parsePattern(v cue.Value) (ir.Pattern, error) {
	var p ir.Pattern

	kindVal := v.LookupPath(cue.ParsePath("kind"))
	if !kindVal.Exists() {
		return p, &CompileError{Field: "patterns.kind", Message: "kind is required", Pos: v.Pos()}
	}
	kind, err := kindVal.String()
	if err != nil {
		return p, formatCUEError(err)
	}
	p.Kind = kind
	p.Fields = make(map[string]ir.Match)

	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if !fieldsVal.Exists() {
		return p, nil // All-wildcard pattern
	}
	iter, err := fieldsVal.Fields()
	if err != nil {
		return p, formatCUEError(err)
	}
	for iter.Next() {
		fieldName := iter.Selector().Unquoted()
		m, err := parseMatch(iter.Value())
		if err != nil {
			return p, err
		}
		p.Fields[fieldName] = m
	}
	return p, nil
}

// parseMatch decodes one field match: {bind: "x"}, {literal: value},
// or {any: true}.
func parseMatch(v cue.Value) (ir.Match, error) {
	if bindVal := v.LookupPath(cue.ParsePath("bind")); bindVal.Exists() {
		name, err := bindVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Var(name), nil
	}
	if litVal := v.LookupPath(cue.ParsePath("literal")); litVal.Exists() {
		val, err := parseLiteral(litVal)
		if err != nil {
			return nil, err
		}
		return ir.Lit(val), nil
	}
	if anyVal := v.LookupPath(cue.ParsePath("any")); anyVal.Exists() {
		return ir.Any{}, nil
	}
	return nil, &CompileError{
		Field:   "patterns.fields",
		Message: "field match must be {bind: ...}, {literal: ...}, or {any: true}",
		Pos:     v.Pos(),
	}
}

// parseLiteral decodes a CUE scalar into a Value. No floats.
func parseLiteral(v cue.Value) (ir.Value, error) {
	switch v.Kind() {
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.String(s), nil
	case cue.IntKind:
		i, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Int(i), nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Bool(b), nil
	default:
		return nil, &CompileError{
			Field:   "literal",
			Message: fmt.Sprintf("unsupported literal kind %v (want string, int, or bool)", v.Kind()),
			Pos:     v.Pos(),
		}
	}
}
