package vm

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, source string) (string, error) {
	t.Helper()
	v := New()
	var out bytes.Buffer
	v.Out = &out
	_, err := v.Interpret(source)
	return out.String(), err
}

func TestArithmetic(t *testing.T) {
	out, err := run(t, "print 1 + 2 * 3 - 4 / 2;")
	require.NoError(t, err)
	assert.Equal(t, "5\n", out)
}

func TestGlobalsAndLocalsShadowing(t *testing.T) {
	out, err := run(t, `
		var x = "global";
		{
			var x = "local";
			print x;
		}
		print x;
	`)
	require.NoError(t, err)
	assert.Equal(t, "local\nglobal\n", out)
}

func TestStringConcatenation(t *testing.T) {
	out, err := run(t, `print "foo" + "bar";`)
	require.NoError(t, err)
	assert.Equal(t, "foobar\n", out)
}

func TestStringInterningEquality(t *testing.T) {
	out, err := run(t, `
		var a = "hi";
		var b = "h" + "i";
		print a == b;
	`)
	require.NoError(t, err)
	assert.Equal(t, "true\n", out)
}

func TestClosureCapturesAndMutatesUpvalue(t *testing.T) {
	out, err := run(t, `
		fun makeCounter() {
			var count = 0;
			fun increment() {
				count = count + 1;
				return count;
			}
			return increment;
		}
		var counter = makeCounter();
		print counter();
		print counter();
		print counter();
	`)
	require.NoError(t, err)
	assert.Equal(t, "1\n2\n3\n", out)
}

func TestTwoClosuresOverSameVariableShareState(t *testing.T) {
	out, err := run(t, `
		fun pair() {
			var n = 0;
			fun get() { return n; }
			fun set(v) { n = v; }
			set(42);
			return get;
		}
		print pair()();
	`)
	require.NoError(t, err)
	assert.Equal(t, "42\n", out)
}

func TestTailRecursionDoesNotGrowCallFrames(t *testing.T) {
	out, err := run(t, `
		fun countdown(n) {
			if (n == 0) { return 0; }
			return countdown(n - 1);
		}
		print countdown(100000);
	`)
	require.NoError(t, err, "a non-tail-call implementation would overflow framesMax long before 100000")
	assert.Equal(t, "0\n", out)
}

func TestRuntimeErrorReportsStackTrace(t *testing.T) {
	_, err := run(t, `
		fun inner() {
			return 1 + "two";
		}
		fun outer() {
			inner();
		}
		outer();
	`)
	require.Error(t, err)
	var rt *RuntimeError
	require.ErrorAs(t, err, &rt)
	assert.Contains(t, rt.Error(), "inner")
	assert.Contains(t, rt.Error(), "outer")
}

func TestUndefinedGlobalIsRuntimeError(t *testing.T) {
	_, err := run(t, `print missing;`)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "Undefined variable") || strings.Contains(err.Error(), "undefined"))
}

func TestClockNativeReturnsNumber(t *testing.T) {
	out, err := run(t, `
		var t = clock();
		print t >= 0;
	`)
	require.NoError(t, err)
	assert.Equal(t, "true\n", out)
}

func TestGarbageCollectionUnderStressReclaimsUnreachableObjects(t *testing.T) {
	v := New()
	v.StressGC = true
	var out bytes.Buffer
	v.Out = &out

	_, err := v.Interpret(`
		fun makeStrings() {
			var a = "one";
			var b = "two";
			var c = "three";
			return a;
		}
		print makeStrings();
	`)
	require.NoError(t, err)
	assert.Equal(t, "one\n", out.String())

	before := v.Heap.BytesAllocated
	v.collectGarbage()
	assert.Less(t, v.Heap.BytesAllocated, before, "the finished script's closure and function are unreachable")
}

// TestGCUnderStressDuringClosureCreationKeepsUpvalueAlive exercises the
// CLOSURE handler's allocation-order safe point: captureUpvalue can trigger
// a collection while the new closure is still being populated, and the
// closure itself must already be reachable when that happens.
func TestGCUnderStressDuringClosureCreationKeepsUpvalueAlive(t *testing.T) {
	v := New()
	v.StressGC = true
	var out bytes.Buffer
	v.Out = &out

	_, err := v.Interpret(`
		fun makeCounter() {
			var count = 0;
			fun increment() {
				count = count + 1;
				return count;
			}
			return increment;
		}
		var counter = makeCounter();
		print counter();
		print counter();
		print counter();
	`)
	require.NoError(t, err)
	assert.Equal(t, "1\n2\n3\n", out.String())
}

func TestIfElseBranching(t *testing.T) {
	out, err := run(t, `
		if (1 < 2) {
			print "yes";
		} else {
			print "no";
		}
	`)
	require.NoError(t, err)
	assert.Equal(t, "yes\n", out)
}

func TestWhileLoop(t *testing.T) {
	out, err := run(t, `
		var i = 0;
		var sum = 0;
		while (i < 5) {
			sum = sum + i;
			i = i + 1;
		}
		print sum;
	`)
	require.NoError(t, err)
	assert.Equal(t, "10\n", out)
}
