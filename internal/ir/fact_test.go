package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vacancyKind() Kind {
	return NewKind("vacancy",
		F("position", StringField),
		F("from_salary", IntField),
		F("to_salary", IntField),
		F("remote", BoolField),
	)
}

func TestKindNewZeroFillsUnsetFields(t *testing.T) {
	f, err := vacancyKind().New(Object{"position": String("Go developer")})
	require.NoError(t, err)

	assert.Equal(t, "vacancy", f.Kind)
	assert.True(t, Equal(String("Go developer"), f.Fields["position"]))
	assert.True(t, Equal(Int(0), f.Fields["from_salary"]), "unset int field zero-fills to 0")
	assert.True(t, Equal(Int(0), f.Fields["to_salary"]))
	assert.True(t, Equal(Bool(false), f.Fields["remote"]))
}

func TestKindNewNilValueZeroFills(t *testing.T) {
	f, err := vacancyKind().New(Object{"from_salary": nil})
	require.NoError(t, err)
	assert.True(t, Equal(Int(0), f.Fields["from_salary"]))
}

func TestKindNewUnknownField(t *testing.T) {
	_, err := vacancyKind().New(Object{"salary": Int(100)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown field")
}

func TestKindNewTypeMismatch(t *testing.T) {
	tests := []struct {
		name   string
		fields Object
	}{
		{"string into int", Object{"from_salary": String("100")}},
		{"int into string", Object{"position": Int(1)}},
		{"int into bool", Object{"remote": Int(1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := vacancyKind().New(tt.fields)
			assert.Error(t, err)
		})
	}
}

func TestMustNewPanicsOnError(t *testing.T) {
	assert.Panics(t, func() {
		vacancyKind().MustNew(Object{"nope": Int(1)})
	})
}

func TestFactEqual(t *testing.T) {
	k := vacancyKind()
	a := k.MustNew(Object{"position": String("dev"), "from_salary": Int(100)})
	b := k.MustNew(Object{"position": String("dev"), "from_salary": Int(100)})
	c := k.MustNew(Object{"position": String("dev"), "from_salary": Int(200)})

	assert.True(t, a.Equal(b))
	assert.True(t, b.Equal(a))
	assert.False(t, a.Equal(c))

	other := NewKind("other", F("position", StringField),
		F("from_salary", IntField), F("to_salary", IntField), F("remote", BoolField))
	d := other.MustNew(Object{"position": String("dev"), "from_salary": Int(100)})
	assert.False(t, a.Equal(d), "same fields under a different kind are not equal")
}

func TestKindFieldLookup(t *testing.T) {
	k := vacancyKind()

	f, ok := k.Field("from_salary")
	require.True(t, ok)
	assert.Equal(t, IntField, f.Type)

	_, ok = k.Field("missing")
	assert.False(t, ok)
}
