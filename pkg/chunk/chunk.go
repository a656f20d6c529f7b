// Package chunk defines the bytecode format lumen's compiler emits and the
// VM executes: a growable byte array plus a constant pool of values.
//
// Architecture:
//
// A Chunk is the unit of compiled code — one per function (the top-level
// script is itself a nameless function). The instruction stream is raw
// bytes rather than a slice of {Op, Operand} structs: jump targets need to
// be patched after the fact, and a byte stream with in-place patching is
// how the single-pass compiler keeps jump offsets without a second pass
// over the program.
package chunk

import (
	"fmt"

	"github.com/kristofer/lumen/pkg/value"
)

// Op is a single bytecode instruction opcode.
type Op byte

const (
	OpConstant     Op = iota // 1-byte constant index
	OpConstantLong           // 3-byte little-endian constant index
	OpNil
	OpTrue
	OpFalse
	OpPop
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpNegate
	OpNot
	OpLess
	OpGreater
	OpEqual
	OpPrint
	OpDefineGlobal  // 1-byte name-constant index
	OpGetGlobal     // 1-byte name-constant index
	OpSetGlobal     // 1-byte name-constant index
	OpGetLocal      // 1-byte frame-relative slot
	OpSetLocal      // 1-byte frame-relative slot
	OpGetUpvalue    // 1-byte upvalue index
	OpSetUpvalue    // 1-byte upvalue index
	OpCloseUpvalue  // pops, closing the upvalue pointing at the slot below top
	OpJumpIfFalse   // 2-byte big-endian forward offset
	OpJump          // 2-byte big-endian forward offset
	OpLoop          // 2-byte big-endian backward offset
	OpCall          // 1-byte argument count
	OpTailCall      // 1-byte argument count
	OpClosure       // 1-byte function-constant index, then 2 bytes per upvalue
	OpClosureLong   // 3-byte little-endian function-constant index, then 2 bytes per upvalue
	OpReturn
)

var opNames = [...]string{
	OpConstant:     "CONSTANT",
	OpConstantLong: "CONSTANT_LONG",
	OpNil:          "NIL",
	OpTrue:         "TRUE",
	OpFalse:        "FALSE",
	OpPop:          "POP",
	OpAdd:          "ADD",
	OpSub:          "SUB",
	OpMul:          "MUL",
	OpDiv:          "DIV",
	OpNegate:       "NEGATE",
	OpNot:          "NOT",
	OpLess:         "LESS",
	OpGreater:      "GREATER",
	OpEqual:        "EQUAL",
	OpPrint:        "PRINT",
	OpDefineGlobal: "DEFINE_GLOBAL",
	OpGetGlobal:    "GET_GLOBAL",
	OpSetGlobal:    "SET_GLOBAL",
	OpGetLocal:     "GET_LOCAL",
	OpSetLocal:     "SET_LOCAL",
	OpGetUpvalue:   "GET_UPVALUE",
	OpSetUpvalue:   "SET_UPVALUE",
	OpCloseUpvalue: "CLOSE_UPVALUE",
	OpJumpIfFalse:  "JUMP_IF_FALSE",
	OpJump:         "JUMP",
	OpLoop:         "LOOP",
	OpCall:         "CALL",
	OpTailCall:     "TAIL_CALL",
	OpClosure:      "CLOSURE",
	OpClosureLong:  "CLOSURE_LONG",
	OpReturn:       "RETURN",
}

// String implements fmt.Stringer so disassembly and trace logging can print
// opcodes by name instead of as raw bytes.
func (op Op) String() string {
	if int(op) < len(opNames) && opNames[op] != "" {
		return opNames[op]
	}
	return fmt.Sprintf("UNKNOWN(%d)", byte(op))
}

// Chunk holds one function's compiled instruction stream and its constant
// pool. Line numbers parallel Code byte-for-byte; they are informational
// only, used solely for diagnostics and disassembly.
type Chunk struct {
	Code      []byte
	Lines     []int
	Constants []value.Value
}

// New returns an empty chunk with a small initial code capacity; Go slices
// grow geometrically on their own, so the capacity hint just avoids the
// first couple of reallocations.
func New() *Chunk {
	return &Chunk{
		Code:  make([]byte, 0, 8),
		Lines: make([]int, 0, 8),
	}
}

// Write appends a single byte (an opcode or operand byte) to the chunk,
// along with the source line it came from.
func (c *Chunk) Write(b byte, line int) {
	c.Code = append(c.Code, b)
	c.Lines = append(c.Lines, line)
}

// WriteOp is a convenience wrapper over Write for opcodes.
func (c *Chunk) WriteOp(op Op, line int) {
	c.Write(byte(op), line)
}

// AddConstant appends a value to the constant pool and returns its index.
// Constant-pool indices are stable for the chunk's lifetime: nothing ever
// removes or reorders an entry once added.
func (c *Chunk) AddConstant(v value.Value) int {
	c.Constants = append(c.Constants, v)
	return len(c.Constants) - 1
}

// Len returns the current size of the instruction stream, i.e. the byte
// offset the next emitted instruction will land at.
func (c *Chunk) Len() int { return len(c.Code) }
