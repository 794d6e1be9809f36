package compiler

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/roach88/sift/internal/ir"
)

// Comparison operators for test clauses.
var validOps = map[string]bool{
	"eq": true, "ne": true,
	"lt": true, "le": true, "gt": true, "ge": true,
}

// testClause is one comparison in a rule's test conjunction:
// `left <op> right`, where left is a bound variable and right is either
// another bound variable or a literal.
type testClause struct {
	left     string
	op       string
	rightVar string   // Set when right is {var: ...}
	rightVal ir.Value // Set when right is {value: ...}
}

func parseTestClauses(v cue.Value) ([]testClause, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var clauses []testClause
	for iter.Next() {
		c, err := parseTestClause(iter.Value())
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, c)
	}
	if len(clauses) == 0 {
		return nil, &CompileError{Field: "test", Message: "test must contain at least one clause", Pos: v.Pos()}
	}
	return clauses, nil
}

func parseTestClause(v cue.Value) (testClause, error) {
	var c testClause

	leftVal := v.LookupPath(cue.ParsePath("left"))
	if !leftVal.Exists() {
		return c, &CompileError{Field: "test.left", Message: "left is required", Pos: v.Pos()}
	}
	left, err := leftVal.String()
	if err != nil {
		return c, formatCUEError(err)
	}
	c.left = left

	opVal := v.LookupPath(cue.ParsePath("op"))
	if !opVal.Exists() {
		return c, &CompileError{Field: "test.op", Message: "op is required", Pos: v.Pos()}
	}
	op, err := opVal.String()
	if err != nil {
		return c, formatCUEError(err)
	}
	if !validOps[op] {
		return c, &CompileError{
			Field:   "test.op",
			Message: fmt.Sprintf("unknown operator %q (want eq, ne, lt, le, gt, or ge)", op),
			Pos:     opVal.Pos(),
		}
	}
	c.op = op

	rightVal := v.LookupPath(cue.ParsePath("right"))
	if !rightVal.Exists() {
		return c, &CompileError{Field: "test.right", Message: "right is required", Pos: v.Pos()}
	}
	if varVal := rightVal.LookupPath(cue.ParsePath("var")); varVal.Exists() {
		name, err := varVal.String()
		if err != nil {
			return c, formatCUEError(err)
		}
		c.rightVar = name
		return c, nil
	}
	if valVal := rightVal.LookupPath(cue.ParsePath("value")); valVal.Exists() {
		val, err := parseLiteral(valVal)
		if err != nil {
			return c, err
		}
		c.rightVal = val
		return c, nil
	}
	return c, &CompileError{
		Field:   "test.right",
		Message: "right must be {var: ...} or {value: ...}",
		Pos:     rightVal.Pos(),
	}
}

// buildTest compiles a clause conjunction into a typed test closure plus
// the variable list the rule-set validator checks against pattern bindings.
func buildTest(clauses []testClause) (ir.TestFunc, []string) {
	var vars []string
	seen := make(map[string]bool)
	addVar := func(name string) {
		if !seen[name] {
			seen[name] = true
			vars = append(vars, name)
		}
	}
	for _, c := range clauses {
		addVar(c.left)
		if c.rightVar != "" {
			addVar(c.rightVar)
		}
	}

	test := func(b ir.Bindings) bool {
		for _, c := range clauses {
			left, ok := b[c.left]
			if !ok {
				return false
			}
			right := c.rightVal
			if c.rightVar != "" {
				right, ok = b[c.rightVar]
				if !ok {
					return false
				}
			}
			if !compare(c.op, left, right) {
				return false
			}
		}
		return true
	}

	return test, vars
}

// compare evaluates one comparison. Ordering operators require integers;
// eq/ne use structural value equality.
func compare(op string, left, right ir.Value) bool {
	switch op {
	case "eq":
		return ir.Equal(left, right)
	case "ne":
		return !ir.Equal(left, right)
	}

	li, lok := left.(ir.Int)
	ri, rok := right.(ir.Int)
	if !lok || !rok {
		return false
	}
	switch op {
	case "lt":
		return li < ri
	case "le":
		return li <= ri
	case "gt":
		return li > ri
	case "ge":
		return li >= ri
	default:
		return false
	}
}

// answerTemplate maps bound variables and literals to answer fields.
type answerTemplate struct {
	kind   string
	fields map[string]answerField
}

type answerField struct {
	fromVar string
	value   ir.Value
}

func parseAnswerTemplate(v cue.Value) (answerTemplate, error) {
	tmpl := answerTemplate{fields: make(map[string]answerField)}

	kindVal := v.LookupPath(cue.ParsePath("kind"))
	if !kindVal.Exists() {
		return tmpl, &CompileError{Field: "answer.kind", Message: "kind is required", Pos: v.Pos()}
	}
	kind, err := kindVal.String()
	if err != nil {
		return tmpl, formatCUEError(err)
	}
	tmpl.kind = kind

	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if !fieldsVal.Exists() {
		return tmpl, &CompileError{Field: "answer.fields", Message: "fields is required", Pos: v.Pos()}
	}
	iter, err := fieldsVal.Fields()
	if err != nil {
		return tmpl, formatCUEError(err)
	}
	for iter.Next() {
		fieldName := iter.Selector().Unquoted()
		fv := iter.Value()
		if varVal := fv.LookupPath(cue.ParsePath("var")); varVal.Exists() {
			name, err := varVal.String()
			if err != nil {
				return tmpl, formatCUEError(err)
			}
			tmpl.fields[fieldName] = answerField{fromVar: name}
			continue
		}
		if valVal := fv.LookupPath(cue.ParsePath("value")); valVal.Exists() {
			val, err := parseLiteral(valVal)
			if err != nil {
				return tmpl, err
			}
			tmpl.fields[fieldName] = answerField{value: val}
			continue
		}
		return tmpl, &CompileError{
			Field:   fmt.Sprintf("answer.fields.%s", fieldName),
			Message: "field must be {var: ...} or {value: ...}",
			Pos:     fv.Pos(),
		}
	}

	return tmpl, nil
}

// buildAction compiles an answer template into an action closure plus the
// variables it reads. Unset answer fields take the kind's zero values.
func buildAction(kind ir.Kind, tmpl answerTemplate) (ir.ActionFunc, []string) {
	var vars []string
	for _, f := range tmpl.fields {
		if f.fromVar != "" {
			vars = append(vars, f.fromVar)
		}
	}

	action := func(b ir.Bindings) ([]ir.Fact, error) {
		fields := make(ir.Object, len(tmpl.fields))
		for name, f := range tmpl.fields {
			if f.fromVar != "" {
				v, ok := b[f.fromVar]
				if !ok {
					return nil, fmt.Errorf("answer field %q: variable %q not bound", name, f.fromVar)
				}
				fields[name] = v
				continue
			}
			fields[name] = f.value
		}
		fact, err := kind.New(fields)
		if err != nil {
			return nil, err
		}
		return []ir.Fact{fact}, nil
	}

	return action, vars
}
