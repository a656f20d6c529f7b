package chunk

import (
	"fmt"
	"strings"

	"github.com/kristofer/lumen/pkg/value"
)

// Disassemble renders every instruction in the chunk as text, for the
// CLI's `lumen disassemble` command and the VM's `-trace` mode. Operands
// are variable-width: 1-byte, 3-byte, and 2-byte encodings, plus CLOSURE's
// trailing upvalue descriptor bytes.
func (c *Chunk) Disassemble(name string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "== %s ==\n", name)
	for offset := 0; offset < len(c.Code); {
		var line string
		line, offset = c.DisassembleInst(offset)
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

// DisassembleInst formats the single instruction at offset and returns the
// offset of the following instruction.
func (c *Chunk) DisassembleInst(offset int) (string, int) {
	var b strings.Builder
	fmt.Fprintf(&b, "%04d ", offset)
	if offset > 0 && c.Lines[offset] == c.Lines[offset-1] {
		b.WriteString("   | ")
	} else {
		fmt.Fprintf(&b, "%4d ", c.Lines[offset])
	}

	op := Op(c.Code[offset])
	switch op {
	case OpConstant, OpDefineGlobal, OpGetGlobal, OpSetGlobal:
		idx := int(c.Code[offset+1])
		fmt.Fprintf(&b, "%-14s %4d '%v'", op, idx, c.Constants[idx])
		return b.String(), offset + 2

	case OpConstantLong:
		idx := int(c.Code[offset+1]) | int(c.Code[offset+2])<<8 | int(c.Code[offset+3])<<16
		fmt.Fprintf(&b, "%-14s %4d '%v'", op, idx, c.Constants[idx])
		return b.String(), offset + 4

	case OpGetLocal, OpSetLocal, OpGetUpvalue, OpSetUpvalue, OpCall, OpTailCall:
		operand := int(c.Code[offset+1])
		fmt.Fprintf(&b, "%-14s %4d", op, operand)
		return b.String(), offset + 2

	case OpJump, OpJumpIfFalse, OpLoop:
		jumpOffset := int(c.Code[offset+1])<<8 | int(c.Code[offset+2])
		sign := 1
		if op == OpLoop {
			sign = -1
		}
		fmt.Fprintf(&b, "%-14s %4d -> %d", op, offset, offset+3+sign*jumpOffset)
		return b.String(), offset + 3

	case OpClosure, OpClosureLong:
		var constIdx, next int
		if op == OpClosure {
			constIdx = int(c.Code[offset+1])
			next = offset + 2
		} else {
			constIdx = int(c.Code[offset+1]) | int(c.Code[offset+2])<<8 | int(c.Code[offset+3])<<16
			next = offset + 4
		}
		fmt.Fprintf(&b, "%-14s %4d '%v'", op, constIdx, c.Constants[constIdx])
		upvalueCount := upvalueCountOf(c.Constants[constIdx])
		for i := 0; i < upvalueCount; i++ {
			isLocal := c.Code[next]
			index := c.Code[next+1]
			kind := "upvalue"
			if isLocal != 0 {
				kind = "local"
			}
			fmt.Fprintf(&b, "\n%04d      |                     %s %d", next, kind, index)
			next += 2
		}
		return b.String(), next

	default:
		fmt.Fprintf(&b, "%s", op)
		return b.String(), offset + 1
	}
}

// upvalueCountOf lets disasm walk CLOSURE's trailing descriptor bytes
// without chunk importing package object (which would cycle back through
// chunk for Chunk itself). Installed once from package object's init,
// mirroring the way package value's PrintValue delegates to Object.String
// instead of a type switch over concrete object types.
var upvalueCountOf = func(value.Value) int { return 0 }

// SetUpvalueCounter installs the hook used to look up a function constant's
// upvalue count for disassembly. Called once from package object's init.
func SetUpvalueCounter(f func(value.Value) int) {
	upvalueCountOf = f
}
