// Package test provides end-to-end integration tests that exercise the
// compiler and VM together, as a source program would actually be run.
package test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kristofer/lumen/pkg/vm"
)

func interpret(t *testing.T, source string) (string, error) {
	t.Helper()
	v := vm.New()
	var out bytes.Buffer
	v.Out = &out
	_, err := v.Interpret(source)
	return out.String(), err
}

func TestArithmeticScenario(t *testing.T) {
	out, err := interpret(t, "print 1 + 2 * 3;")
	require.NoError(t, err)
	assert.Equal(t, "7\n", out)
}

func TestGlobalsAndLocalsScenario(t *testing.T) {
	out, err := interpret(t, "var x = 10; { var x = 1; print x; } print x;")
	require.NoError(t, err)
	assert.Equal(t, "1\n10\n", out)
}

func TestClosureStateScenario(t *testing.T) {
	out, err := interpret(t, `
		fun make() {
			var c = 0;
			fun inc() {
				c = c + 1;
				return c;
			}
			return inc;
		}
		var f = make();
		print f();
		print f();
		print f();
	`)
	require.NoError(t, err)
	assert.Equal(t, "1\n2\n3\n", out)
}

func TestTailRecursionScenario(t *testing.T) {
	out, err := interpret(t, `
		fun loop(n) {
			if (n == 0) return 0;
			return loop(n - 1);
		}
		print loop(10000);
	`)
	require.NoError(t, err)
	assert.Equal(t, "0\n", out)
}

func TestStringInterningScenario(t *testing.T) {
	out, err := interpret(t, `var a = "hi"; var b = "hi"; print a == b;`)
	require.NoError(t, err)
	assert.Equal(t, "true\n", out)
}

func TestGCUnderStressScenario(t *testing.T) {
	v := vm.New()
	v.StressGC = true
	var out bytes.Buffer
	v.Out = &out

	_, err := v.Interpret(`
		fun f() { var s = "x"; }
		f();
		f();
		f();
	`)
	require.NoError(t, err)
	v.Close()
	assert.Equal(t, 0, v.Heap.BytesAllocated, "every allocation is freed once the VM is closed")
}
