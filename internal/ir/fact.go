package ir

import "fmt"

// FieldType constrains the values a fact field may hold.
type FieldType int

const (
	// StringField holds a String; zero value is "".
	StringField FieldType = iota + 1
	// IntField holds an Int; zero value is 0.
	IntField
	// BoolField holds a Bool; zero value is false.
	BoolField
)

// String returns the type name for diagnostics.
func (t FieldType) String() string {
	switch t {
	case StringField:
		return "string"
	case IntField:
		return "int"
	case BoolField:
		return "bool"
	default:
		return fmt.Sprintf("FieldType(%d)", int(t))
	}
}

// zero returns the zero Value for the field type.
func (t FieldType) zero() Value {
	switch t {
	case IntField:
		return Int(0)
	case BoolField:
		return Bool(false)
	default:
		return String("")
	}
}

// accepts reports whether v is assignable to a field of this type.
func (t FieldType) accepts(v Value) bool {
	switch v.(type) {
	case String:
		return t == StringField
	case Int:
		return t == IntField
	case Bool:
		return t == BoolField
	default:
		return false
	}
}

// Field is a named, typed field in a fact kind definition.
type Field struct {
	Name string    `json:"name"`
	Type FieldType `json:"type"`
}

// Kind defines a fact kind: a name plus a fixed, ordered field set.
// A fact's field set is frozen at kind definition and is never partially
// populated - unset fields take the typed zero value at declaration.
type Kind struct {
	Name   string  `json:"name"`
	Fields []Field `json:"fields"`
}

// NewKind defines a kind from (name, type) pairs in declaration order.
func NewKind(name string, fields ...Field) Kind {
	return Kind{Name: name, Fields: fields}
}

// F is a shorthand Field constructor for kind definitions.
func F(name string, typ FieldType) Field {
	return Field{Name: name, Type: typ}
}

// Field returns the field definition by name.
func (k Kind) Field(name string) (Field, bool) {
	for _, f := range k.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Fact is an immutable typed record declared into working memory.
// Identity for tracing is content-addressed (see FactHash); duplicates with
// identical kind and fields are distinct facts distinguished by their
// declaration sequence number.
type Fact struct {
	Kind   string `json:"kind"`
	Fields Object `json:"fields"`
}

// Equal reports whether two facts have the same kind and field values.
// Declaration sequence numbers are not part of fact equality.
func (f Fact) Equal(other Fact) bool {
	if f.Kind != other.Kind || len(f.Fields) != len(other.Fields) {
		return false
	}
	for name, v := range f.Fields {
		ov, ok := other.Fields[name]
		if !ok || !Equal(v, ov) {
			return false
		}
	}
	return true
}

// New builds a fact of this kind, filling unset fields with typed zero
// values and rejecting unknown fields or type mismatches.
func (k Kind) New(fields Object) (Fact, error) {
	for name := range fields {
		if _, ok := k.Field(name); !ok {
			return Fact{}, fmt.Errorf("kind %s: unknown field %q", k.Name, name)
		}
	}

	full := make(Object, len(k.Fields))
	for _, f := range k.Fields {
		v, ok := fields[f.Name]
		if !ok {
			full[f.Name] = f.Type.zero()
			continue
		}
		if v == nil {
			full[f.Name] = f.Type.zero()
			continue
		}
		if !f.Type.accepts(v) {
			return Fact{}, fmt.Errorf("kind %s: field %q wants %s, got %T",
				k.Name, f.Name, f.Type, v)
		}
		full[f.Name] = v
	}

	return Fact{Kind: k.Name, Fields: full}, nil
}

// MustNew is like New but panics on error.
// Use only in tests or for statically-known field sets.
func (k Kind) MustNew(fields Object) Fact {
	f, err := k.New(fields)
	if err != nil {
		panic(err)
	}
	return f
}
