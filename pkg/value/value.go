// Package value implements the uniform runtime value representation shared
// by the chunk, object, compiler, and vm packages.
//
// The reference implementation this system is grounded on (a clox-family
// tree-walking-turned-bytecode interpreter) packs every runtime value into a
// 64-bit word via NaN-boxing: doubles pass through untouched, and non-number
// values are squeezed into the payload bits of a quiet-NaN bit pattern. That
// trick depends on reinterpreting the bit pattern of a float64 as an integer
// and back, which Go allows via math.Float64bits/Float64frombits but which
// buys nothing here — Go values are never touched by a conservative scanner
// the way C's are, so there is no garbage-collector pressure motivating the
// bit-packing, only the object-header bookkeeping the tracing collector in
// pkg/vm/gc.go needs regardless. This type presents the same discriminated
// union the NaN-boxed encoding expresses, as a tagged struct instead — a
// safe substitution, since the NaN-boxing was a performance decision, not
// a contract with external code.
package value

import "fmt"

// Type discriminates the variant held by a Value.
type Type int

const (
	Number Type = iota
	Nil
	Bool
	Obj
)

// ObjType discriminates the variant of a heap-allocated object.
type ObjType int

const (
	ObjTypeString ObjType = iota
	ObjTypeFunction
	ObjTypeClosure
	ObjTypeUpvalue
	ObjTypeNative
)

// ObjHeader is the common prefix every heap object carries: its type tag,
// the collector's mark bit, and the intrusive link used to thread every live
// allocation onto the VM's single allocation list (see pkg/vm/gc.go). It is
// defined here, rather than in package object, purely to break the import
// cycle that would otherwise arise from Value needing to refer to Object
// and Object needing to embed this header.
type ObjHeader struct {
	Type   ObjType
	Marked bool
	Next   Object
}

// Header lets generic code (the collector, Value) reach the common prefix
// without needing to know which concrete object variant it is holding.
func (h *ObjHeader) Header() *ObjHeader { return h }

// Object is implemented by every heap-allocated variant in package object:
// strings, functions, closures, upvalues, and natives.
type Object interface {
	Header() *ObjHeader
	// String renders the object the way printValue would for a bare print
	// statement: "<fn NAME>"/"<script>" for functions, the raw bytes for
	// strings, "upvalue" for upvalues, "<native fn>" for natives.
	String() string
	// Size approximates the object's footprint in bytes, for the
	// allocator's bytesAllocated/nextGC bookkeeping. It need not be
	// exact — only consistent enough that nextGC's doubling rule produces
	// a sensible collection cadence.
	Size() int
}

// Value is the single scalar type that all of a running program's data
// passes through: numbers, the nil/true/false singletons, and object
// pointers, discriminated by Type.
type Value struct {
	typ Type
	num float64
	b   bool
	obj Object
}

// NumberVal wraps a double.
func NumberVal(n float64) Value { return Value{typ: Number, num: n} }

// BoolVal wraps a boolean.
func BoolVal(b bool) Value { return Value{typ: Bool, b: b} }

// NilVal is the nil singleton.
func NilVal() Value { return Value{typ: Nil} }

// ObjVal wraps a heap object pointer.
func ObjVal(o Object) Value { return Value{typ: Obj, obj: o} }

func (v Value) Type() Type        { return v.typ }
func (v Value) IsNumber() bool    { return v.typ == Number }
func (v Value) IsNil() bool       { return v.typ == Nil }
func (v Value) IsBool() bool      { return v.typ == Bool }
func (v Value) IsObj() bool       { return v.typ == Obj }
func (v Value) AsNumber() float64 { return v.num }
func (v Value) AsBool() bool      { return v.b }
func (v Value) AsObj() Object     { return v.obj }

// IsObjType reports whether v is a heap object of the given variant.
func (v Value) IsObjType(t ObjType) bool {
	return v.typ == Obj && v.obj.Header().Type == t
}

// IsFalsey implements the language's truthiness rule: nil and false are
// falsey, every other value (including 0 and the empty string) is truthy.
func (v Value) IsFalsey() bool {
	return v.typ == Nil || (v.typ == Bool && !v.b)
}

// String implements fmt.Stringer so a bare %v/%s of a Value (e.g. in
// disassembly listings) renders the same text PrintValue produces.
func (v Value) String() string { return PrintValue(v) }

// PrintValue formats v exactly the way the `print` statement does.
func PrintValue(v Value) string {
	switch v.typ {
	case Number:
		return fmt.Sprintf("%g", v.num)
	case Nil:
		return "nil"
	case Bool:
		if v.b {
			return "true"
		}
		return "false"
	case Obj:
		return v.obj.String()
	default:
		return "<invalid value>"
	}
}

// Equal implements valueEqual: numbers compare by numeric equality (so NaN
// is never equal to itself, matching IEEE-754), everything else compares by
// identity of its discriminant bits — which, combined with string
// interning, gives correct equality for nil, booleans, and heap objects
// without a special case for strings.
func Equal(a, b Value) bool {
	if a.typ != b.typ {
		return false
	}
	switch a.typ {
	case Number:
		return a.num == b.num
	case Nil:
		return true
	case Bool:
		return a.b == b.b
	case Obj:
		return a.obj == b.obj
	default:
		return false
	}
}
