package object

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kristofer/lumen/pkg/value"
)

func TestNewStringInterns(t *testing.T) {
	h := NewHeap()

	a := h.NewString("hello")
	b := h.NewString("hello")
	assert.Same(t, a, b, "equal-content strings must be the same interned object")

	c := h.NewString("world")
	assert.NotSame(t, a, c)
}

func TestInternedStringSharesNewStringTable(t *testing.T) {
	h := NewHeap()
	a := h.NewString("shared")
	b := h.InternedString("shared", FNV1a("shared"))
	assert.Same(t, a, b)
}

func TestHeapLinksAndCountsBytes(t *testing.T) {
	h := NewHeap()
	require.Equal(t, 0, h.BytesAllocated)

	s := h.NewString("abc")
	assert.Equal(t, s.Size(), h.BytesAllocated)
	assert.Same(t, s, h.Objects.(*String))
}

func TestNewClosureAllocatesUpvalueSlots(t *testing.T) {
	h := NewHeap()
	fn := h.NewFunction()
	fn.UpvalueCount = 2

	cl := h.NewClosure(fn)
	assert.Len(t, cl.Upvalues, 2)
	assert.Same(t, fn, cl.Function)
}

func TestUpvalueClose(t *testing.T) {
	slot := value.NumberVal(7)
	up := &Upvalue{Location: &slot}

	slot = value.NumberVal(9)
	up.Close()

	assert.Equal(t, float64(9), up.Closed.AsNumber())
	assert.Same(t, &up.Closed, up.Location)
}

func TestFunctionStringRendersScriptOrName(t *testing.T) {
	h := NewHeap()
	fn := h.NewFunction()
	assert.Equal(t, "<script>", fn.String())

	fn.Name = h.NewString("add")
	assert.Equal(t, "<fn add>", fn.String())
}

func TestFNV1aIsStable(t *testing.T) {
	assert.Equal(t, FNV1a("abc"), FNV1a("abc"))
	assert.NotEqual(t, FNV1a("abc"), FNV1a("abd"))
}
