package object

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kristofer/lumen/pkg/chunk"
	"github.com/kristofer/lumen/pkg/value"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	h := NewHeap()
	fn := h.NewFunction()
	fn.Arity = 1
	fn.Name = h.NewString("add")
	fn.Chunk.WriteOp(chunk.OpReturn, 1)

	fn.Chunk.AddConstant(value.NumberVal(3.5))
	fn.Chunk.AddConstant(value.ObjVal(h.NewString("hi")))

	var buf bytes.Buffer
	require.NoError(t, Encode(fn, &buf))

	h2 := NewHeap()
	decoded, err := Decode(&buf, h2)
	require.NoError(t, err)

	assert.Equal(t, fn.Arity, decoded.Arity)
	require.NotNil(t, decoded.Name)
	assert.Equal(t, "add", decoded.Name.Chars)
	require.Len(t, decoded.Chunk.Constants, 2)
	assert.Equal(t, 3.5, decoded.Chunk.Constants[0].AsNumber())
	assert.Equal(t, "hi", decoded.Chunk.Constants[1].AsObj().(*String).Chars)
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	_, err := Decode(bytes.NewReader([]byte("NOPE12345678")), NewHeap())
	assert.Error(t, err)
}
