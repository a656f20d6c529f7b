package table

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kristofer/lumen/pkg/value"
)

// stringKey is a minimal table.Key used so this package's tests don't need
// to depend on package object (which itself depends on table).
type stringKey string

func (k stringKey) Bytes() string { return string(k) }
func (k stringKey) Hash() uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(k); i++ {
		h ^= uint32(k[i])
		h *= 16777619
	}
	return h
}

func TestSetGetDelete(t *testing.T) {
	tbl := New()

	isNew := tbl.Set(stringKey("a"), value.NumberVal(1))
	assert.True(t, isNew)

	isNew = tbl.Set(stringKey("a"), value.NumberVal(2))
	assert.False(t, isNew, "overwriting an existing key is not a new insert")

	v, ok := tbl.Get(stringKey("a"))
	require.True(t, ok)
	assert.Equal(t, float64(2), v.AsNumber())

	_, ok = tbl.Get(stringKey("missing"))
	assert.False(t, ok)

	assert.True(t, tbl.Delete(stringKey("a")))
	_, ok = tbl.Get(stringKey("a"))
	assert.False(t, ok, "deleted key is gone")
	assert.False(t, tbl.Delete(stringKey("a")), "deleting twice reports not found")
}

func TestGrowsAndSurvivesRehash(t *testing.T) {
	tbl := New()
	for i := 0; i < 200; i++ {
		tbl.Set(stringKey(fmt.Sprintf("key-%d", i)), value.NumberVal(float64(i)))
	}
	assert.Equal(t, 200, tbl.Count())
}

func TestTombstoneKeepsProbeChainAlive(t *testing.T) {
	tbl := New()
	tbl.Set(stringKey("x"), value.NumberVal(1))
	tbl.Set(stringKey("y"), value.NumberVal(2))
	tbl.Delete(stringKey("x"))

	v, ok := tbl.Get(stringKey("y"))
	require.True(t, ok, "deleting x must not break the probe sequence to y")
	assert.Equal(t, float64(2), v.AsNumber())
}

func TestFindString(t *testing.T) {
	tbl := New()
	k := stringKey("hello")
	tbl.Set(k, value.NilVal())

	found := tbl.FindString("hello", k.Hash())
	require.NotNil(t, found)
	assert.Equal(t, "hello", found.Bytes())

	assert.Nil(t, tbl.FindString("nope", stringKey("nope").Hash()))
}

func TestDeleteUnmarked(t *testing.T) {
	tbl := New()
	tbl.Set(stringKey("keep"), value.NilVal())
	tbl.Set(stringKey("drop"), value.NilVal())

	tbl.DeleteUnmarked(func(k Key) bool { return k.Bytes() == "keep" })

	_, ok := tbl.Get(stringKey("keep"))
	assert.True(t, ok)
	_, ok = tbl.Get(stringKey("drop"))
	assert.False(t, ok)
}

func TestEach(t *testing.T) {
	tbl := New()
	tbl.Set(stringKey("a"), value.NumberVal(1))
	tbl.Set(stringKey("b"), value.NumberVal(2))

	seen := map[string]float64{}
	tbl.Each(func(key Key, val value.Value) {
		seen[key.Bytes()] = val.AsNumber()
	})
	assert.Equal(t, map[string]float64{"a": 1, "b": 2}, seen)
}
