package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kristofer/lumen/pkg/value"
)

func TestWriteAndAddConstant(t *testing.T) {
	c := New()
	idx := c.AddConstant(value.NumberVal(1.2))
	require.Equal(t, 0, idx)

	c.WriteOp(OpConstant, 1)
	c.Write(byte(idx), 1)
	c.WriteOp(OpReturn, 1)

	assert.Equal(t, 3, c.Len())
	assert.Equal(t, []int{1, 1, 1}, c.Lines)
}

func TestDisassembleConstant(t *testing.T) {
	c := New()
	idx := c.AddConstant(value.NumberVal(42))
	c.WriteOp(OpConstant, 7)
	c.Write(byte(idx), 7)
	c.WriteOp(OpReturn, 7)

	out := c.Disassemble("test")
	assert.Contains(t, out, "== test ==")
	assert.Contains(t, out, "CONSTANT")
	assert.Contains(t, out, "42")
	assert.Contains(t, out, "RETURN")
}

func TestDisassembleJump(t *testing.T) {
	c := New()
	c.WriteOp(OpJumpIfFalse, 1)
	c.Write(0, 1)
	c.Write(3, 1)
	c.WriteOp(OpPop, 1)

	line, next := c.DisassembleInst(0)
	assert.True(t, strings.Contains(line, "JUMP_IF_FALSE"))
	assert.Equal(t, 3, next)
}

func TestOpStringUnknown(t *testing.T) {
	assert.Equal(t, "CONSTANT", OpConstant.String())
	unknown := Op(255)
	assert.Contains(t, unknown.String(), "UNKNOWN")
}
