package vm

import (
	"github.com/dustin/go-humanize"

	"github.com/kristofer/lumen/pkg/compiler"
	"github.com/kristofer/lumen/pkg/object"
	"github.com/kristofer/lumen/pkg/table"
	"github.com/kristofer/lumen/pkg/value"
)

// collectGarbage runs one full mark-sweep cycle: mark every root-reachable
// object, trace the gray worklist to black, sweep the string table and
// then the object list, and double the next collection threshold off the
// post-sweep live-byte count.
func (vm *VM) collectGarbage() {
	before := vm.Heap.BytesAllocated

	gray := vm.markRoots()
	vm.traceReferences(gray)
	vm.sweep()

	vm.nextGC = vm.Heap.BytesAllocated * 2
	if vm.nextGC == 0 {
		vm.nextGC = 1024 * 1024
	}

	if vm.Log != nil {
		vm.Log.Debugf("gc: %s -> %s, next collection at %s",
			humanize.Bytes(uint64(before)), humanize.Bytes(uint64(vm.Heap.BytesAllocated)), humanize.Bytes(uint64(vm.nextGC)))
	}
}

// markRoots marks every object directly reachable without tracing through
// another heap object yet: the live value stack, every call frame's
// closure, the open-upvalue list, every global, and — the one root with no
// analogue in an ordinary tree-walking collector — every function object
// currently mid-compilation, reached via the compiler package's enclosing
// chain.
func (vm *VM) markRoots() []value.Object {
	var gray []value.Object

	for i := 0; i < vm.stackTop; i++ {
		gray = vm.markValue(vm.stack[i], gray)
	}
	for i := 0; i < vm.frameCount; i++ {
		gray = vm.markObject(vm.frames[i].closure, gray)
	}
	for up := vm.openUpvalues; up != nil; up = up.Next {
		gray = vm.markObject(up, gray)
	}
	vm.Globals.Each(func(key table.Key, val value.Value) {
		if s, ok := key.(*object.String); ok {
			gray = vm.markObject(s, gray)
		}
		gray = vm.markValue(val, gray)
	})
	compiler.WalkRoots(func(fn *object.Function) {
		gray = vm.markObject(fn, gray)
	})

	return gray
}

func (vm *VM) markValue(v value.Value, gray []value.Object) []value.Object {
	if !v.IsObj() {
		return gray
	}
	return vm.markObject(v.AsObj(), gray)
}

// markObject sets o's mark bit and appends it to the gray worklist, unless
// it is nil or already marked. The gray stack is a plain Go slice: Go's own
// allocator already manages this slice's memory, and it is never counted
// against Heap.BytesAllocated since it holds no language-level objects of
// its own.
func (vm *VM) markObject(o value.Object, gray []value.Object) []value.Object {
	if o == nil {
		return gray
	}
	h := o.Header()
	if h.Marked {
		return gray
	}
	h.Marked = true
	return append(gray, o)
}

// traceReferences drains the gray worklist, blackening each object by
// marking everything it references in turn, until nothing gray remains.
func (vm *VM) traceReferences(gray []value.Object) {
	for len(gray) > 0 {
		o := gray[len(gray)-1]
		gray = gray[:len(gray)-1]
		gray = vm.blackenObject(o, gray)
	}
}

// blackenObject marks every object o itself references. Strings and
// natives are leaves; functions reference their name and constant pool;
// closures reference their function and captured upvalues; an upvalue
// references its closed-over value once closed (an open upvalue's slot is
// already covered by the stack root scan).
func (vm *VM) blackenObject(o value.Object, gray []value.Object) []value.Object {
	switch obj := o.(type) {
	case *object.String, *object.Native:
		// no outgoing references
	case *object.Upvalue:
		gray = vm.markValue(obj.Closed, gray)
	case *object.Function:
		if obj.Name != nil {
			gray = vm.markObject(obj.Name, gray)
		}
		for _, k := range obj.Chunk.Constants {
			gray = vm.markValue(k, gray)
		}
	case *object.Closure:
		gray = vm.markObject(obj.Function, gray)
		for _, up := range obj.Upvalues {
			// A closure still being populated by OpClosure has nil entries;
			// a nil *Upvalue inside the Object interface is not == nil.
			if up != nil {
				gray = vm.markObject(up, gray)
			}
		}
	}
	return gray
}

// sweep reclaims every object that survived to here unmarked: first the
// intern table (so a dead string's table slot becomes a tombstone rather
// than a dangling key), then the allocation list itself, unlinking each
// unreached node and charging its footprint back out of BytesAllocated.
// Every survivor's mark bit is cleared for the next cycle.
func (vm *VM) sweep() {
	vm.Heap.Strings.DeleteUnmarked(func(k table.Key) bool {
		s, ok := k.(*object.String)
		return ok && s.Marked
	})

	var prev value.Object
	obj := vm.Heap.Objects
	for obj != nil {
		h := obj.Header()
		if h.Marked {
			h.Marked = false
			prev = obj
			obj = h.Next
			continue
		}

		unreached := obj
		obj = h.Next
		if prev != nil {
			prev.Header().Next = obj
		} else {
			vm.Heap.Objects = obj
		}
		vm.Heap.BytesAllocated -= unreached.Size()
	}
}
