package compiler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kristofer/lumen/pkg/object"
	"github.com/kristofer/lumen/pkg/value"
)

func compileOK(t *testing.T, source string) *object.Function {
	t.Helper()
	fn, err := Compile(source, object.NewHeap(), nil)
	require.NoError(t, err)
	return fn
}

func TestCompileArithmeticPrecedence(t *testing.T) {
	fn := compileOK(t, "print 1 + 2 * 3;")
	dis := fn.Chunk.Disassemble("test")
	assert.Contains(t, dis, "MUL")
	assert.Contains(t, dis, "ADD")
	assert.Contains(t, dis, "PRINT")
	assert.Less(t, strings.Index(dis, "MUL"), strings.Index(dis, "ADD"), "2 * 3 is emitted before the addition")
}

func TestCompileComparisonSynthesis(t *testing.T) {
	for _, tc := range []struct {
		name string
		src  string
		want []string
	}{
		{"not equal", "print 1 != 2;", []string{"EQUAL", "NOT"}},
		{"less equal", "print 1 <= 2;", []string{"GREATER", "NOT"}},
		{"greater equal", "print 1 >= 2;", []string{"LESS", "NOT"}},
		{"bang", "print !true;", []string{"NOT"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			fn := compileOK(t, tc.src)
			dis := fn.Chunk.Disassemble("test")
			for _, op := range tc.want {
				assert.Contains(t, dis, op)
			}
		})
	}
}

func TestCompileGlobalVarDeclaration(t *testing.T) {
	fn := compileOK(t, "var x = 10; print x;")
	dis := fn.Chunk.Disassemble("test")
	assert.Contains(t, dis, "DEFINE_GLOBAL")
	assert.Contains(t, dis, "GET_GLOBAL")
}

func TestCompileLocalsUseSlots(t *testing.T) {
	fn := compileOK(t, "{ var a = 1; var b = 2; print a + b; }")
	dis := fn.Chunk.Disassemble("test")
	assert.Contains(t, dis, "GET_LOCAL")
	assert.NotContains(t, dis, "GET_GLOBAL")
}

func TestCompileIfWhileEmitJumps(t *testing.T) {
	fn := compileOK(t, "if (true) { print 1; } else { print 2; } while (false) { print 3; }")
	dis := fn.Chunk.Disassemble("test")
	assert.Contains(t, dis, "JUMP_IF_FALSE")
	assert.Contains(t, dis, "JUMP")
	assert.Contains(t, dis, "LOOP")
}

func TestCompileClosureCapturesUpvalue(t *testing.T) {
	fn := compileOK(t, `
		fun outer() {
			var x = 1;
			fun inner() {
				return x;
			}
			return inner;
		}
	`)
	dis := fn.Chunk.Disassemble("test")
	assert.Contains(t, dis, "CLOSURE")

	var outer *object.Function
	for _, k := range fn.Chunk.Constants {
		if k.IsObjType(value.ObjTypeFunction) {
			outer = k.AsObj().(*object.Function)
		}
	}
	require.NotNil(t, outer)
	assert.Contains(t, outer.Chunk.Disassemble("outer"), "local 1", "inner captures outer's local x in slot 1")
}

func TestCompileTailCallRewritesLastCall(t *testing.T) {
	fn := compileOK(t, `
		fun loop(n) {
			if (n == 0) { return 0; }
			return loop(n - 1);
		}
	`)

	var body *object.Function
	for _, k := range fn.Chunk.Constants {
		if k.IsObjType(value.ObjTypeFunction) {
			body = k.AsObj().(*object.Function)
		}
	}
	require.NotNil(t, body, "loop's body must be compiled as a function constant")

	dis := body.Chunk.Disassemble("loop")
	assert.Contains(t, dis, "TAIL_CALL")
}

func TestCompileSyntaxErrorReportsLineAndSynchronizes(t *testing.T) {
	_, err := Compile("var ;\nvar y = 1;\n", object.NewHeap(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 1")
}
