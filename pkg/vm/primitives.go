// Package vm - native function bindings.
//
// clock() is the only native exposed to scripts: a zero-argument function
// returning seconds elapsed since process start, for self-benchmarking.
package vm

import (
	"time"

	"github.com/kristofer/lumen/pkg/object"
	"github.com/kristofer/lumen/pkg/value"
)

var processStart = time.Now()

func defineNatives(vm *VM) {
	vm.defineNative("clock", clockNative)
}

func clockNative(argCount int, args []value.Value) value.Value {
	return value.NumberVal(time.Since(processStart).Seconds())
}

var _ object.NativeFn = clockNative
