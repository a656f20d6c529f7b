// Package vm implements the stack-based bytecode interpreter: a
// call-frame stack of closures, a flat value stack shared by every frame,
// global and local variable access, arithmetic/comparison/logic, control
// flow, function calls with tail-call reuse of the current frame, closures
// over open/closed upvalues, and the mark-sweep collector in gc.go.
package vm

import (
	"fmt"
	"io"
	"os"

	"github.com/kristofer/lumen/pkg/chunk"
	"github.com/kristofer/lumen/pkg/compiler"
	"github.com/kristofer/lumen/pkg/object"
	"github.com/kristofer/lumen/pkg/table"
	"github.com/kristofer/lumen/pkg/value"
)

const framesMax = 64
const stackMax = framesMax * 256

// Logger is the narrow structured-logging seam pkg/vm depends on instead of
// importing logrus directly — the CLI wires a logrus.Logger in behind this
// interface. A nil Logger is valid and silences all VM-level diagnostics.
type Logger interface {
	Debugf(format string, args ...interface{})
}

// CallFrame is one activation record: the closure executing, its
// instruction pointer, and the base index into the VM's shared value stack
// where its window of locals (including the callee itself, at slot 0)
// begins.
type CallFrame struct {
	closure *object.Closure
	ip      int
	slots   int
}

// VM is a single-threaded bytecode interpreter instance. The value stack
// and call-frame stack are fixed-size arrays, not growable slices:
// upvalues hold a *value.Value pointing directly at a stack slot, and a
// reallocating slice would invalidate every such pointer the moment it
// grew.
type VM struct {
	stack    [stackMax]value.Value
	stackTop int

	frames     [framesMax]CallFrame
	frameCount int

	Globals *table.Table
	Heap    *object.Heap

	openUpvalues *object.Upvalue

	nextGC   int
	StressGC bool

	Log            Logger
	TraceExecution bool
	Debugger       *Debugger

	// Out receives `print` output. Defaults to os.Stdout; tests substitute
	// a bytes.Buffer so output assertions don't depend on the real stdout.
	Out io.Writer
}

// New returns a VM with an empty heap and globals table and the initial
// 1MiB GC threshold.
func New() *VM {
	vm := &VM{
		Globals: table.New(),
		Heap:    object.NewHeap(),
		nextGC:  1024 * 1024,
		Out:     os.Stdout,
	}
	defineNatives(vm)
	return vm
}

func (vm *VM) push(v value.Value) {
	vm.stack[vm.stackTop] = v
	vm.stackTop++
}

func (vm *VM) pop() value.Value {
	vm.stackTop--
	return vm.stack[vm.stackTop]
}

func (vm *VM) peek(distance int) value.Value {
	return vm.stack[vm.stackTop-1-distance]
}

// allocGate is threaded through the compiler as its AllocGate and called
// directly before every allocating opcode in run(), so a collection can be
// triggered at exactly the same granularity whether the allocation happens
// at compile time or run time.
func (vm *VM) allocGate() {
	if vm.StressGC || vm.Heap.BytesAllocated > vm.nextGC {
		vm.collectGarbage()
	}
}

// Interpret compiles and runs source. Every top-level statement pops its
// own value and `return` is a compile error at top level, so a script
// always ends in its implicit `nil; return`: the returned value is
// value.NilVal() on success.
func (vm *VM) Interpret(source string) (value.Value, error) {
	fn, err := compiler.Compile(source, vm.Heap, vm.allocGate)
	if err != nil {
		return value.NilVal(), err
	}

	// fn left the compiler's root chain when Compile returned; keep it on
	// the stack while the closure wrapping it is allocated.
	vm.push(value.ObjVal(fn))
	vm.allocGate()
	closure := vm.Heap.NewClosure(fn)
	vm.pop()
	return vm.InterpretClosure(closure)
}

// InterpretClosure runs a closure that was produced outside of Compile —
// typically one decoded from a .lb bytecode file, where no compilation
// step ever runs. The returned value is whatever the closure's function
// returns; for a compiled top-level script that is always value.NilVal().
func (vm *VM) InterpretClosure(closure *object.Closure) (value.Value, error) {
	vm.push(value.ObjVal(closure))
	if !vm.call(closure, 0) {
		return value.NilVal(), vm.popError()
	}
	return vm.run()
}

// Close tears the VM down: every remaining heap object is freed
// unconditionally, without regard to reachability, and Heap.BytesAllocated
// reads back as zero afterward. Call it once the VM is done being used —
// an embedder running one script per process can skip it and let the host
// process exit reclaim everything, but a long-lived host (a REPL session,
// a test) that wants a clean accounting of live bytes should call it at
// the end of each VM's life.
func (vm *VM) Close() {
	vm.Heap.FreeAll()
	vm.stackTop = 0
	vm.frameCount = 0
	vm.openUpvalues = nil
}

// popError recovers whatever error value callValue/call left at top of
// stack when they return false.
func (vm *VM) popError() error {
	if vm.stackTop == 0 {
		return fmt.Errorf("vm: call failed")
	}
	v := vm.pop()
	if v.IsObj() {
		if s, ok := v.AsObj().(*object.String); ok {
			return newRuntimeError(s.Chars, vm.captureStack())
		}
	}
	return fmt.Errorf("vm: call failed")
}

func (vm *VM) captureStack() []StackFrame {
	frames := make([]StackFrame, 0, vm.frameCount)
	for i := 0; i < vm.frameCount; i++ {
		f := vm.frames[i]
		name := "script"
		if f.closure.Function.Name != nil {
			name = f.closure.Function.Name.Chars
		}
		line := 0
		if f.ip > 0 && f.ip-1 < len(f.closure.Function.Chunk.Lines) {
			line = f.closure.Function.Chunk.Lines[f.ip-1]
		}
		frames = append(frames, StackFrame{Name: name, SourceLine: line})
	}
	return frames
}

// runtimeError formats a message, captures the call stack, resets the VM
// to an empty, runnable state, and returns the error.
func (vm *VM) runtimeError(format string, args ...interface{}) error {
	err := newRuntimeError(fmt.Sprintf(format, args...), vm.captureStack())
	vm.stackTop = 0
	vm.frameCount = 0
	vm.openUpvalues = nil
	return err
}

func (vm *VM) currentFrame() *CallFrame { return &vm.frames[vm.frameCount-1] }

func (vm *VM) readByte(f *CallFrame) byte {
	b := f.closure.Function.Chunk.Code[f.ip]
	f.ip++
	return b
}

func (vm *VM) readShort(f *CallFrame) int {
	hi := vm.readByte(f)
	lo := vm.readByte(f)
	return int(hi)<<8 | int(lo)
}

func (vm *VM) readConstant(f *CallFrame) value.Value {
	idx := vm.readByte(f)
	return f.closure.Function.Chunk.Constants[idx]
}

func (vm *VM) readConstantLong(f *CallFrame) value.Value {
	b0 := vm.readByte(f)
	b1 := vm.readByte(f)
	b2 := vm.readByte(f)
	idx := int(b0) | int(b1)<<8 | int(b2)<<16
	return f.closure.Function.Chunk.Constants[idx]
}

// run is the bytecode dispatch loop: fetch-decode-execute over the current
// frame until the outermost frame returns.
func (vm *VM) run() (value.Value, error) {
	f := vm.currentFrame()

	for {
		if vm.TraceExecution && vm.Log != nil {
			line, _ := f.closure.Function.Chunk.DisassembleInst(f.ip)
			vm.Log.Debugf("%s", line)
		}
		if vm.Debugger != nil && vm.Debugger.ShouldPause(f.ip) {
			if !vm.Debugger.InteractivePrompt() {
				return value.NilVal(), vm.runtimeError("execution aborted by debugger")
			}
		}

		op := chunk.Op(vm.readByte(f))
		switch op {
		case chunk.OpConstant:
			vm.push(vm.readConstant(f))

		case chunk.OpConstantLong:
			vm.push(vm.readConstantLong(f))

		case chunk.OpNil:
			vm.push(value.NilVal())
		case chunk.OpTrue:
			vm.push(value.BoolVal(true))
		case chunk.OpFalse:
			vm.push(value.BoolVal(false))
		case chunk.OpPop:
			vm.pop()

		case chunk.OpGetLocal:
			slot := int(vm.readByte(f))
			vm.push(vm.stack[f.slots+slot])
		case chunk.OpSetLocal:
			slot := int(vm.readByte(f))
			vm.stack[f.slots+slot] = vm.peek(0)

		case chunk.OpGetGlobal:
			name := vm.readConstant(f).AsObj().(*object.String)
			v, ok := vm.Globals.Get(name)
			if !ok {
				return value.NilVal(), vm.runtimeError("Undefined variable '%s'.", name.Chars)
			}
			vm.push(v)
		case chunk.OpDefineGlobal:
			name := vm.readConstant(f).AsObj().(*object.String)
			vm.Globals.Set(name, vm.peek(0))
			vm.pop()
		case chunk.OpSetGlobal:
			name := vm.readConstant(f).AsObj().(*object.String)
			if isNew := vm.Globals.Set(name, vm.peek(0)); isNew {
				vm.Globals.Delete(name)
				return value.NilVal(), vm.runtimeError("Undefined variable '%s'.", name.Chars)
			}

		case chunk.OpGetUpvalue:
			slot := int(vm.readByte(f))
			vm.push(*f.closure.Upvalues[slot].Location)
		case chunk.OpSetUpvalue:
			slot := int(vm.readByte(f))
			*f.closure.Upvalues[slot].Location = vm.peek(0)
		case chunk.OpCloseUpvalue:
			vm.closeUpvalues(vm.stackTop - 1)
			vm.pop()

		case chunk.OpEqual:
			b := vm.pop()
			a := vm.pop()
			vm.push(value.BoolVal(value.Equal(a, b)))
		case chunk.OpGreater:
			if err := vm.binaryNumberOp(func(a, b float64) value.Value { return value.BoolVal(a > b) }); err != nil {
				return value.NilVal(), err
			}
		case chunk.OpLess:
			if err := vm.binaryNumberOp(func(a, b float64) value.Value { return value.BoolVal(a < b) }); err != nil {
				return value.NilVal(), err
			}

		case chunk.OpAdd:
			if err := vm.add(); err != nil {
				return value.NilVal(), err
			}
		case chunk.OpSub:
			if err := vm.binaryNumberOp(func(a, b float64) value.Value { return value.NumberVal(a - b) }); err != nil {
				return value.NilVal(), err
			}
		case chunk.OpMul:
			if err := vm.binaryNumberOp(func(a, b float64) value.Value { return value.NumberVal(a * b) }); err != nil {
				return value.NilVal(), err
			}
		case chunk.OpDiv:
			if err := vm.binaryNumberOp(func(a, b float64) value.Value { return value.NumberVal(a / b) }); err != nil {
				return value.NilVal(), err
			}

		case chunk.OpNot:
			vm.push(value.BoolVal(vm.pop().IsFalsey()))
		case chunk.OpNegate:
			if !vm.peek(0).IsNumber() {
				return value.NilVal(), vm.runtimeError("Operand must be a number.")
			}
			vm.push(value.NumberVal(-vm.pop().AsNumber()))

		case chunk.OpPrint:
			fmt.Fprintln(vm.Out, value.PrintValue(vm.pop()))

		case chunk.OpJump:
			offset := vm.readShort(f)
			f.ip += offset
		case chunk.OpJumpIfFalse:
			offset := vm.readShort(f)
			if vm.peek(0).IsFalsey() {
				f.ip += offset
			}
		case chunk.OpLoop:
			offset := vm.readShort(f)
			f.ip -= offset

		case chunk.OpCall:
			argCount := int(vm.readByte(f))
			if !vm.callValue(vm.peek(argCount), argCount) {
				return value.NilVal(), vm.popError()
			}
			f = vm.currentFrame()

		case chunk.OpTailCall:
			argCount := int(vm.readByte(f))
			if err := vm.tailCall(f, argCount); err != nil {
				return value.NilVal(), err
			}
			f = vm.currentFrame()

		case chunk.OpClosure, chunk.OpClosureLong:
			var fnVal value.Value
			if op == chunk.OpClosure {
				fnVal = vm.readConstant(f)
			} else {
				fnVal = vm.readConstantLong(f)
			}
			protoFn := fnVal.AsObj().(*object.Function)

			vm.allocGate()
			closure := vm.Heap.NewClosure(protoFn)
			// Pushed before the upvalue-population loop, not after: captureUpvalue
			// below can itself call allocGate and trigger a collection, and closure
			// must already be a root when that happens.
			vm.push(value.ObjVal(closure))
			for i := 0; i < protoFn.UpvalueCount; i++ {
				isLocal := vm.readByte(f)
				index := int(vm.readByte(f))
				if isLocal != 0 {
					closure.Upvalues[i] = vm.captureUpvalue(f.slots + index)
				} else {
					closure.Upvalues[i] = f.closure.Upvalues[index]
				}
			}

		case chunk.OpReturn:
			result := vm.pop()
			vm.closeUpvalues(f.slots)
			vm.frameCount--
			if vm.frameCount == 0 {
				vm.pop()
				return result, nil
			}
			vm.stackTop = f.slots
			vm.push(result)
			f = vm.currentFrame()

		default:
			return value.NilVal(), vm.runtimeError("Unknown opcode %d.", byte(op))
		}
	}
}

func (vm *VM) binaryNumberOp(op func(a, b float64) value.Value) error {
	if !vm.peek(0).IsNumber() || !vm.peek(1).IsNumber() {
		return vm.runtimeError("Operands must be numbers.")
	}
	b := vm.pop()
	a := vm.pop()
	vm.push(op(a.AsNumber(), b.AsNumber()))
	return nil
}

// add implements ADD's double duty: numeric addition, or string
// concatenation when both operands are strings.
func (vm *VM) add() error {
	bv, av := vm.peek(0), vm.peek(1)
	switch {
	case av.IsNumber() && bv.IsNumber():
		b := vm.pop()
		a := vm.pop()
		vm.push(value.NumberVal(a.AsNumber() + b.AsNumber()))
		return nil
	case av.IsObjType(value.ObjTypeString) && bv.IsObjType(value.ObjTypeString):
		b := vm.pop()
		a := vm.pop()
		vm.allocGate()
		s := vm.Heap.NewString(a.AsObj().(*object.String).Chars + b.AsObj().(*object.String).Chars)
		vm.push(value.ObjVal(s))
		return nil
	default:
		return vm.runtimeError("Operands must be two numbers or two strings.")
	}
}

// callValue dispatches a CALL to either a closure (pushing a new frame) or
// a native (calling straight through, no frame). Returns false with an
// error value left on top of the stack on failure; the caller recovers it
// via popError.
func (vm *VM) callValue(callee value.Value, argCount int) bool {
	if callee.IsObjType(value.ObjTypeClosure) {
		return vm.call(callee.AsObj().(*object.Closure), argCount)
	}
	if callee.IsObjType(value.ObjTypeNative) {
		native := callee.AsObj().(*object.Native)
		args := vm.stack[vm.stackTop-argCount : vm.stackTop]
		result := native.Fn(argCount, args)
		vm.stackTop -= argCount + 1
		vm.push(result)
		return true
	}
	vm.pushErrorValue("Can only call functions.")
	return false
}

func (vm *VM) pushErrorValue(msg string) {
	vm.allocGate()
	vm.push(value.ObjVal(vm.Heap.NewString(msg)))
}

func (vm *VM) call(closure *object.Closure, argCount int) bool {
	if argCount != closure.Function.Arity {
		vm.pushErrorValue(fmt.Sprintf("Expected %d arguments but got %d.", closure.Function.Arity, argCount))
		return false
	}
	if vm.frameCount == framesMax {
		vm.pushErrorValue("Stack overflow.")
		return false
	}
	frame := &vm.frames[vm.frameCount]
	vm.frameCount++
	frame.closure = closure
	frame.ip = 0
	frame.slots = vm.stackTop - argCount - 1
	return true
}

// tailCall implements the compiler's rewritten TAIL_CALL: the new callee
// and its arguments replace the current frame's window in place, and no
// new CallFrame is pushed, so a tail-recursive function runs in bounded
// call-frame depth regardless of how many times it calls itself or another
// function in tail position.
func (vm *VM) tailCall(f *CallFrame, argCount int) error {
	callee := vm.peek(argCount)
	if !callee.IsObjType(value.ObjTypeClosure) {
		if !vm.callValue(callee, argCount) {
			return vm.popError()
		}
		// A native ran to completion without a frame of its own; finish the
		// RETURN the compiler elided so the caller receives its result.
		result := vm.pop()
		vm.closeUpvalues(f.slots)
		vm.frameCount--
		vm.stackTop = f.slots
		vm.push(result)
		return nil
	}

	closure := callee.AsObj().(*object.Closure)
	if argCount != closure.Function.Arity {
		return vm.runtimeError("Expected %d arguments but got %d.", closure.Function.Arity, argCount)
	}

	base := f.slots
	vm.closeUpvalues(base)
	src := vm.stackTop - argCount - 1
	copy(vm.stack[base:base+argCount+1], vm.stack[src:vm.stackTop])
	vm.stackTop = base + argCount + 1

	f.closure = closure
	f.ip = 0
	f.slots = base
	return nil
}

// captureUpvalue finds or creates the open upvalue for the given absolute
// stack slot, keeping vm.openUpvalues sorted by descending slot so a
// matching upvalue for a given local is always shared rather than
// duplicated.
func (vm *VM) captureUpvalue(slot int) *object.Upvalue {
	var prev *object.Upvalue
	up := vm.openUpvalues
	for up != nil && up.Slot > slot {
		prev = up
		up = up.Next
	}
	if up != nil && up.Slot == slot {
		return up
	}

	vm.allocGate()
	created := vm.Heap.NewUpvalue(&vm.stack[slot])
	created.Slot = slot
	created.Next = up

	if prev == nil {
		vm.openUpvalues = created
	} else {
		prev.Next = created
	}
	return created
}

// closeUpvalues closes every open upvalue at or above lastSlot, copying
// each one's value inward so it survives the stack frame it was pointing
// into.
func (vm *VM) closeUpvalues(lastSlot int) {
	for vm.openUpvalues != nil && vm.openUpvalues.Slot >= lastSlot {
		up := vm.openUpvalues
		up.Close()
		vm.openUpvalues = up.Next
	}
}

// defineNative installs a host function into the globals table under name,
// interning the name through the heap like any other identifier.
func (vm *VM) defineNative(name string, fn object.NativeFn) {
	s := vm.Heap.NewString(name)
	n := vm.Heap.NewNative(name, fn)
	vm.Globals.Set(s, value.ObjVal(n))
}
