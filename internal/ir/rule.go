package ir

import "fmt"

// Match is a sealed interface over the three ways a pattern constrains
// a fact field: a literal value, a variable binding, or a wildcard.
type Match interface {
	match() // Sealed - only Literal, Bind, and Any implement it
}

// Literal requires the field to equal a fixed value.
type Literal struct {
	Value Value
}

func (Literal) match() {}

// Bind captures the field's value under a variable name. Two patterns
// binding the same name must agree on the value (equi-join semantics).
type Bind struct {
	Var string
}

func (Bind) match() {}

// Any matches any field value without binding it.
type Any struct{}

func (Any) match() {}

// Lit is a shorthand Literal constructor.
func Lit(v Value) Literal { return Literal{Value: v} }

// Var is a shorthand Bind constructor.
func Var(name string) Bind { return Bind{Var: name} }

// Pattern names a fact kind and constrains its fields.
// Fields not mentioned are wildcards.
type Pattern struct {
	Kind   string
	Fields map[string]Match
}

// Bindings holds the variable environment accumulated while matching
// a rule's patterns. Keys are variable names from Bind matches.
type Bindings map[string]Value

// Int returns the named variable as an int64.
func (b Bindings) Int(name string) (int64, bool) {
	v, ok := b[name].(Int)
	return int64(v), ok
}

// String returns the named variable as a string.
func (b Bindings) String(name string) (string, bool) {
	v, ok := b[name].(String)
	return string(v), ok
}

// Bool returns the named variable as a bool.
func (b Bindings) Bool(name string) (bool, bool) {
	v, ok := b[name].(Bool)
	return bool(v), ok
}

// Clone returns a copy safe to extend while backtracking.
func (b Bindings) Clone() Bindings {
	out := make(Bindings, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// TestFunc is a rule's test predicate: a boolean function over bound
// variables, evaluated after structural matching succeeds. It must only
// read variables listed in Rule.TestVars.
type TestFunc func(Bindings) bool

// ActionFunc produces the facts a firing declares (always answer facts
// in this system). It must only read variables listed in Rule.ActionVars.
type ActionFunc func(Bindings) ([]Fact, error)

// Rule is a named predicate over one or more fact patterns, with an
// optional test predicate and an action that declares answer facts.
//
// TestVars and ActionVars declare which variables the closures read.
// They exist so ill-formed rules (a closure referencing a variable no
// pattern binds) fail at rule-set construction, not at run time.
type Rule struct {
	ID         string
	Salience   int // Higher fires first; default 0; ties by declaration order
	Patterns   []Pattern
	Test       TestFunc
	TestVars   []string
	Action     ActionFunc
	ActionVars []string
	Produces   []string // Answer kinds this rule declares
}

// DefinitionError reports an ill-formed rule-set definition.
// Raised at construction time, never during a run.
type DefinitionError struct {
	RuleID  string
	Message string
}

func (e *DefinitionError) Error() string {
	if e.RuleID == "" {
		return fmt.Sprintf("rule set: %s", e.Message)
	}
	return fmt.Sprintf("rule %s: %s", e.RuleID, e.Message)
}

// RuleSet is a validated, immutable collection of kinds and rules.
// Rule order is declaration order and NEVER changes after construction -
// it is a tie-breaker for firing order.
type RuleSet struct {
	kinds map[string]Kind
	rules []Rule
}

// NewRuleSet validates kinds and rules and freezes their declaration order.
//
// Validation (all fail-fast):
//   - kind names unique; rule IDs unique
//   - every pattern references a defined kind and existing fields
//   - literal constraints type-match the field
//   - a variable bound in multiple fields always sees the same field type
//   - every TestVars / ActionVars entry is bound by some pattern
//   - a rule never patterns on a kind it produces (no self-triggering)
func NewRuleSet(kinds []Kind, rules []Rule) (*RuleSet, error) {
	km := make(map[string]Kind, len(kinds))
	for _, k := range kinds {
		if k.Name == "" {
			return nil, &DefinitionError{Message: "kind with empty name"}
		}
		if _, dup := km[k.Name]; dup {
			return nil, &DefinitionError{Message: fmt.Sprintf("duplicate kind %q", k.Name)}
		}
		seen := make(map[string]bool, len(k.Fields))
		for _, f := range k.Fields {
			if seen[f.Name] {
				return nil, &DefinitionError{Message: fmt.Sprintf("kind %q: duplicate field %q", k.Name, f.Name)}
			}
			seen[f.Name] = true
		}
		km[k.Name] = k
	}

	ids := make(map[string]bool, len(rules))
	for _, r := range rules {
		if r.ID == "" {
			return nil, &DefinitionError{Message: "rule with empty ID"}
		}
		if ids[r.ID] {
			return nil, &DefinitionError{Message: fmt.Sprintf("duplicate rule ID %q", r.ID)}
		}
		ids[r.ID] = true

		if err := validateRule(km, r); err != nil {
			return nil, err
		}
	}

	rs := &RuleSet{
		kinds: km,
		rules: make([]Rule, len(rules)),
	}
	copy(rs.rules, rules)
	return rs, nil
}

func validateRule(kinds map[string]Kind, r Rule) error {
	if len(r.Patterns) == 0 {
		return &DefinitionError{RuleID: r.ID, Message: "no patterns"}
	}
	if r.Action == nil {
		return &DefinitionError{RuleID: r.ID, Message: "no action"}
	}

	produces := make(map[string]bool, len(r.Produces))
	for _, name := range r.Produces {
		if _, ok := kinds[name]; !ok {
			return &DefinitionError{RuleID: r.ID, Message: fmt.Sprintf("produces unknown kind %q", name)}
		}
		produces[name] = true
	}

	boundTypes := make(map[string]FieldType)
	for _, p := range r.Patterns {
		kind, ok := kinds[p.Kind]
		if !ok {
			return &DefinitionError{RuleID: r.ID, Message: fmt.Sprintf("pattern references unknown kind %q", p.Kind)}
		}
		if produces[p.Kind] {
			return &DefinitionError{RuleID: r.ID, Message: fmt.Sprintf("pattern on produced kind %q would self-trigger", p.Kind)}
		}
		for fieldName, m := range p.Fields {
			field, ok := kind.Field(fieldName)
			if !ok {
				return &DefinitionError{RuleID: r.ID, Message: fmt.Sprintf("kind %q has no field %q", p.Kind, fieldName)}
			}
			switch mv := m.(type) {
			case Literal:
				if mv.Value == nil || !field.Type.accepts(mv.Value) {
					return &DefinitionError{RuleID: r.ID, Message: fmt.Sprintf(
						"literal for %s.%s does not match field type %s", p.Kind, fieldName, field.Type)}
				}
			case Bind:
				if mv.Var == "" {
					return &DefinitionError{RuleID: r.ID, Message: fmt.Sprintf("empty variable name on %s.%s", p.Kind, fieldName)}
				}
				if prev, seen := boundTypes[mv.Var]; seen && prev != field.Type {
					return &DefinitionError{RuleID: r.ID, Message: fmt.Sprintf(
						"variable %q bound as %s and %s", mv.Var, prev, field.Type)}
				}
				boundTypes[mv.Var] = field.Type
			case Any:
				// wildcard
			default:
				return &DefinitionError{RuleID: r.ID, Message: fmt.Sprintf("unknown match type %T", m)}
			}
		}
	}

	for _, v := range r.TestVars {
		if _, ok := boundTypes[v]; !ok {
			return &DefinitionError{RuleID: r.ID, Message: fmt.Sprintf("test references unbound variable %q", v)}
		}
	}
	if len(r.TestVars) > 0 && r.Test == nil {
		return &DefinitionError{RuleID: r.ID, Message: "test variables declared but no test predicate"}
	}
	for _, v := range r.ActionVars {
		if _, ok := boundTypes[v]; !ok {
			return &DefinitionError{RuleID: r.ID, Message: fmt.Sprintf("action references unbound variable %q", v)}
		}
	}

	return nil
}

// Kind returns the kind definition by name.
func (rs *RuleSet) Kind(name string) (Kind, bool) {
	k, ok := rs.kinds[name]
	return k, ok
}

// Kinds returns the kind definitions keyed by name.
func (rs *RuleSet) Kinds() map[string]Kind {
	return rs.kinds
}

// Rules returns the rules in declaration order.
// Callers must not mutate the returned slice.
func (rs *RuleSet) Rules() []Rule {
	return rs.rules
}
