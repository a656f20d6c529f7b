package object

import (
	"github.com/kristofer/lumen/pkg/chunk"
	"github.com/kristofer/lumen/pkg/table"
	"github.com/kristofer/lumen/pkg/value"
)

// Heap owns every live allocation: the single linked list every object
// threads onto at construction, and the string intern
// table. It does not decide *when* to collect — that is
// pkg/vm/gc.go's job, since the collector needs VM-level roots (the value
// stack, call frames, the compiler chain) that this package has no
// business knowing about. Heap only allocates, interns, and links; the
// collector's sweep unlinks dead objects from Objects and prunes Strings
// itself.
type Heap struct {
	Objects value.Object
	Strings *table.Table

	BytesAllocated int
}

// NewHeap returns an empty heap with an initialized intern table.
func NewHeap() *Heap {
	return &Heap{Strings: table.New()}
}

// link threads o onto the front of the object list and charges its
// footprint against BytesAllocated. Every allocator in this file ends by
// calling link exactly once, so every heap allocation is reachable by the
// collector and counted toward the next GC threshold.
func (h *Heap) link(o value.Object) {
	o.Header().Next = h.Objects
	h.Objects = o
	h.BytesAllocated += o.Size()
}

// NewString interns bytes: if an equal-content string already exists, it is
// returned unchanged (no new allocation, no new list entry); otherwise a
// new String is allocated, linked, and inserted into the intern table with
// a nil value.
func (h *Heap) NewString(chars string) *String {
	hash := FNV1a(chars)
	if found := h.Strings.FindString(chars, hash); found != nil {
		return found.(*String)
	}
	s := &String{Chars: chars, hash: hash}
	s.Type = value.ObjTypeString
	h.link(s)
	h.Strings.Set(s, value.NilVal())
	return s
}

// InternedString is like NewString but for a caller that has already
// computed the hash (the lexer does, for every identifier and string
// literal token, so the compiler never rehashes a literal it already
// scanned).
func (h *Heap) InternedString(chars string, hash uint32) *String {
	if found := h.Strings.FindString(chars, hash); found != nil {
		return found.(*String)
	}
	s := &String{Chars: chars, hash: hash}
	s.Type = value.ObjTypeString
	h.link(s)
	h.Strings.Set(s, value.NilVal())
	return s
}

// NewFunction allocates a fresh, empty function shell; the compiler fills
// in Arity, UpvalueCount, Chunk, and Name as it compiles the body.
func (h *Heap) NewFunction() *Function {
	f := &Function{Chunk: chunk.New()}
	f.Type = value.ObjTypeFunction
	h.link(f)
	return f
}

// NewClosure allocates a closure over fn. Its Upvalues slice is allocated
// here but left to be populated by the caller immediately afterward — the
// spec requires the closure itself to already be reachable (pushed on the
// stack) before that population touches any upvalue that might itself
// trigger a GC.
func (h *Heap) NewClosure(fn *Function) *Closure {
	c := &Closure{Function: fn, Upvalues: make([]*Upvalue, fn.UpvalueCount)}
	c.Type = value.ObjTypeClosure
	h.link(c)
	return c
}

// NewUpvalue allocates an open upvalue pointing at slot.
func (h *Heap) NewUpvalue(slot *value.Value) *Upvalue {
	u := &Upvalue{Location: slot}
	u.Type = value.ObjTypeUpvalue
	h.link(u)
	return u
}

// NewNative wraps fn as a host-callable native object.
func (h *Heap) NewNative(name string, fn NativeFn) *Native {
	n := &Native{Name: name, Fn: fn}
	n.Type = value.ObjTypeNative
	h.link(n)
	return n
}

// FreeAll unconditionally frees every object on the heap, reachable or not,
// and empties the string interner. Unlike the collector's sweep, which only
// reclaims objects a mark pass failed to reach, this walks the whole object
// list unconditionally — the shutdown-time counterpart to the mark-sweep
// cycle, for a caller that is done with the heap altogether and wants
// BytesAllocated to read back to zero.
func (h *Heap) FreeAll() {
	h.Objects = nil
	h.BytesAllocated = 0
	h.Strings.Reset()
}
