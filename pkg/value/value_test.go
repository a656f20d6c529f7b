package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrintValue(t *testing.T) {
	for _, tc := range []struct {
		name string
		v    Value
		want string
	}{
		{"number", NumberVal(3.5), "3.5"},
		{"integerish number", NumberVal(2), "2"},
		{"nil", NilVal(), "nil"},
		{"true", BoolVal(true), "true"},
		{"false", BoolVal(false), "false"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, PrintValue(tc.v))
		})
	}
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(NumberVal(1), NumberVal(1)))
	assert.False(t, Equal(NumberVal(1), NumberVal(2)))
	assert.True(t, Equal(NilVal(), NilVal()))
	assert.True(t, Equal(BoolVal(true), BoolVal(true)))
	assert.False(t, Equal(BoolVal(true), BoolVal(false)))
	assert.False(t, Equal(NumberVal(1), BoolVal(true)), "different types are never equal")
}

func TestIsFalsey(t *testing.T) {
	assert.True(t, NilVal().IsFalsey())
	assert.True(t, BoolVal(false).IsFalsey())
	assert.False(t, BoolVal(true).IsFalsey())
	assert.False(t, NumberVal(0).IsFalsey(), "0 is truthy")
}
