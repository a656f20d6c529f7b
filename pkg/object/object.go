// Package object implements the heap-allocated value variants:
// strings, functions, closures, upvalues, and natives. Every variant embeds
// value.ObjHeader, giving it a type tag, a GC mark bit, and the intrusive
// "next" link the collector walks.
package object

import (
	"fmt"

	"github.com/kristofer/lumen/pkg/chunk"
	"github.com/kristofer/lumen/pkg/value"
)

func init() {
	chunk.SetUpvalueCounter(func(v value.Value) int {
		if fn, ok := v.AsObj().(*Function); ok {
			return fn.UpvalueCount
		}
		return 0
	})
}

// String is an immutable, interned byte string. Equality of two Strings is
// pointer equality after interning: the heap never allocates two
// String objects with the same content.
type String struct {
	value.ObjHeader
	Chars string
	hash  uint32
}

func (s *String) String() string { return s.Chars }

// Bytes and Hash implement table.Key so the intern table (and the globals
// table, which is keyed by the same interned name strings) can use *String
// directly as a key.
func (s *String) Bytes() string { return s.Chars }
func (s *String) Hash() uint32  { return s.hash }
func (s *String) Size() int     { return 24 + len(s.Chars) }

// FNV1a hashes bytes with the standard FNV-1a algorithm, shared by the heap's interner
// and by anything that needs to precompute a hash before a string object
// exists yet (the lexer attaches precomputed hashes to identifier/string
// tokens so the compiler never rehashes a literal it already scanned).
func FNV1a(bytes string) uint32 {
	var hash uint32 = 2166136261
	for i := 0; i < len(bytes); i++ {
		hash ^= uint32(bytes[i])
		hash *= 16777619
	}
	return hash
}

// Function is an immutable, fully-compiled function: its arity, the number
// of upvalues its closures must allocate, its own chunk, and an optional
// name. A Function with a nil Name is a top-level script.
type Function struct {
	value.ObjHeader
	Arity        int
	UpvalueCount int
	Chunk        *chunk.Chunk
	Name         *String
}

func (f *Function) String() string {
	if f.Name == nil {
		return "<script>"
	}
	return fmt.Sprintf("<fn %s>", f.Name.Chars)
}
func (f *Function) Size() int { return 64 }

// Upvalue is a mutable indirection onto a live stack slot (while open) or an
// inlined copy of that slot's value (once closed). Next threads the VM's
// single sorted list of open upvalues.
type Upvalue struct {
	value.ObjHeader
	Location *value.Value
	Closed   value.Value
	Next     *Upvalue

	// Slot is the VM stack index Location points at while the upvalue is
	// open. It exists purely so pkg/vm can keep its single list of open
	// upvalues sorted by stack depth without resorting to pointer-order
	// comparisons; the collector never reads it.
	Slot int
}

func (u *Upvalue) String() string { return "upvalue" }
func (u *Upvalue) Size() int   { return 40 }

// Close copies the referenced slot's current value inward and repoints
// Location at that copy, detaching the upvalue from the live stack.
func (u *Upvalue) Close() {
	u.Closed = *u.Location
	u.Location = &u.Closed
}

// Closure binds a Function to the array of Upvalues its body captured. The
// Upvalues slice has exactly Function.UpvalueCount entries, populated once
// immediately after allocation.
type Closure struct {
	value.ObjHeader
	Function *Function
	Upvalues []*Upvalue
}

func (c *Closure) String() string { return c.Function.String() }
func (c *Closure) Size() int   { return 32 + 8*len(c.Upvalues) }

// NativeFn is the host-callable contract: consume an argument count and a
// slice view onto the VM's argument slots, return a single value.
type NativeFn func(argCount int, args []value.Value) value.Value

// Native wraps a host-provided function such as clock().
type Native struct {
	value.ObjHeader
	Name string
	Fn   NativeFn
}

func (n *Native) String() string { return "<native fn>" }
func (n *Native) Size() int   { return 40 }
