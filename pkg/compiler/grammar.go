package compiler

import (
	"github.com/kristofer/lumen/pkg/chunk"
	"github.com/kristofer/lumen/pkg/value"
)

// ---- declarations and statements ----

func (c *Compiler) declaration() {
	switch {
	case c.match(TokenFun):
		c.funDeclaration()
	case c.match(TokenVar):
		c.varDeclaration()
	default:
		c.statement()
	}
	if c.parser.panicMode {
		c.synchronize()
	}
}

func (c *Compiler) statement() {
	switch {
	case c.match(TokenPrint):
		c.printStatement()
	case c.match(TokenIf):
		c.ifStatement()
	case c.match(TokenReturn):
		c.returnStatement()
	case c.match(TokenWhile):
		c.whileStatement()
	case c.match(TokenLeftBrace):
		c.beginScope()
		c.block()
		c.endScope()
	default:
		c.expressionStatement()
	}
}

func (c *Compiler) printStatement() {
	c.expression()
	c.consume(TokenSemicolon, "Expect ';' after value.")
	c.emitOp(chunk.OpPrint)
}

func (c *Compiler) expressionStatement() {
	c.expression()
	c.consume(TokenSemicolon, "Expect ';' after expression.")
	c.emitOp(chunk.OpPop)
}

func (c *Compiler) block() {
	for !c.check(TokenRightBrace) && !c.check(TokenEOF) {
		c.declaration()
	}
	c.consume(TokenRightBrace, "Expect '}' after block.")
}

// ifStatement compiles `if (cond) stmt [else stmt]` with the standard
// two-jump pattern: a conditional jump over the then-branch, an
// unconditional jump over the else-branch.
func (c *Compiler) ifStatement() {
	c.consume(TokenLeftParen, "Expect '(' after 'if'.")
	c.expression()
	c.consume(TokenRightParen, "Expect ')' after condition.")

	thenJump := c.emitJump(chunk.OpJumpIfFalse)
	c.emitOp(chunk.OpPop)
	c.statement()

	elseJump := c.emitJump(chunk.OpJump)
	c.patchJump(thenJump)
	c.emitOp(chunk.OpPop)

	if c.match(TokenElse) {
		c.statement()
	}
	c.patchJump(elseJump)
}

// whileStatement compiles `while (cond) stmt`. `for`
// loops are an explicit Non-goal; there is no forStatement.
func (c *Compiler) whileStatement() {
	loopStart := c.chunk().Len()
	c.consume(TokenLeftParen, "Expect '(' after 'while'.")
	c.expression()
	c.consume(TokenRightParen, "Expect ')' after condition.")

	exitJump := c.emitJump(chunk.OpJumpIfFalse)
	c.emitOp(chunk.OpPop)
	c.statement()
	c.emitLoop(loopStart)

	c.patchJump(exitJump)
	c.emitOp(chunk.OpPop)
}

// returnStatement compiles `return;` or `return expr;`. When the returned
// expression's last emitted instruction is a CALL, it is rewritten in place
// to TAIL_CALL — the operand byte (argument count) is unchanged, only the
// opcode byte changes, so this is a pure one-byte patch.
func (c *Compiler) returnStatement() {
	if c.fnType == typeScript {
		c.parser.error("Can't return from top-level code.")
	}
	if c.match(TokenSemicolon) {
		c.emitOp(chunk.OpNil)
		c.emitOp(chunk.OpReturn)
		return
	}

	c.expression()
	c.consume(TokenSemicolon, "Expect ';' after return value.")

	code := c.chunk().Code
	if len(code) >= 2 && chunk.Op(code[len(code)-2]) == chunk.OpCall {
		code[len(code)-2] = byte(chunk.OpTailCall)
		return
	}
	c.emitOp(chunk.OpReturn)
}

// varDeclaration compiles `var name [= init];`. A global is defined by
// name at runtime (DEFINE_GLOBAL); a local simply leaves its value sitting
// in the next stack slot.
func (c *Compiler) varDeclaration() {
	global := c.parseVariable("Expect variable name.")

	if c.match(TokenEqual) {
		c.expression()
	} else {
		c.emitOp(chunk.OpNil)
	}
	c.consume(TokenSemicolon, "Expect ';' after variable declaration.")

	c.defineVariable(global)
}

// funDeclaration compiles `fun name(params) { body }`. The function value
// is defined into the enclosing scope like any other variable, and may
// therefore recurse by referencing its own global or local slot.
func (c *Compiler) funDeclaration() {
	global := c.parseVariable("Expect function name.")
	c.markInitialized()
	c.functionBody(typeFunction)
	c.defineVariable(global)
}

// functionBody compiles the parameter list and body of a function into a
// fresh nested Compiler, then emits CLOSURE with one (isLocal, index)
// descriptor pair per captured upvalue, matching how the VM's OP_CLOSURE
// handler reads them at runtime.
func (c *Compiler) functionBody(t fnType) {
	name := c.parser.prev.Lexeme
	fc := newCompiler(c.parser, c, t, name)
	fc.beginScope()

	fc.consume(TokenLeftParen, "Expect '(' after function name.")
	if !fc.check(TokenRightParen) {
		for {
			fc.incArity()
			constant := fc.parseVariable("Expect parameter name.")
			fc.defineVariable(constant)
			if !fc.match(TokenComma) {
				break
			}
		}
	}
	fc.consume(TokenRightParen, "Expect ')' after parameters.")
	fc.consume(TokenLeftBrace, "Expect '{' before function body.")
	fc.block()

	fn := fc.endCompiler()
	fn.UpvalueCount = len(fc.upvalues)

	// emitConstant before gateAlloc, not after: endCompiler already reverted
	// activeRoot to c, which drops fn out of compiler.WalkRoots' chain, and
	// fn isn't a root again until it sits in c's constant pool. Rooting it
	// first means the gate's collection, if it runs, always finds fn live.
	c.emitConstant(value.ObjVal(fn))
	c.parser.gateAlloc()
	// emitConstant above always targets the *enclosing* compiler c, which
	// is correct: the nested function object is a constant of the
	// function that contains its declaration, not of itself. Rewrite the
	// just-emitted CONSTANT to CLOSURE so the VM captures upvalues instead
	// of pushing the bare function.
	c.rewriteLastConstantAsClosure()

	for _, uv := range fc.upvalues {
		if uv.isLocal {
			c.emitByte(1)
		} else {
			c.emitByte(0)
		}
		c.emitByte(byte(uv.index))
	}
}

func (c *Compiler) incArity() {
	if c.function.Arity >= 255 {
		c.parser.errorAtCurrent("Can't have more than 255 parameters.")
	}
	c.function.Arity++
}

// rewriteLastConstantAsClosure turns the CONSTANT/CONSTANT_LONG emitted by
// the preceding emitConstant call into CLOSURE/CLOSURE_LONG in place; the
// operand bytes (constant index) are identical in both encodings.
func (c *Compiler) rewriteLastConstantAsClosure() {
	code := c.chunk().Code
	if len(code) >= 2 && chunk.Op(code[len(code)-2]) == chunk.OpConstant {
		code[len(code)-2] = byte(chunk.OpClosure)
		return
	}
	if len(code) >= 4 && chunk.Op(code[len(code)-4]) == chunk.OpConstantLong {
		code[len(code)-4] = byte(chunk.OpClosureLong)
	}
}
