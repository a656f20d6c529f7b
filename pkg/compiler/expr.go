package compiler

import (
	"github.com/kristofer/lumen/pkg/chunk"
	"github.com/kristofer/lumen/pkg/value"
)

// expression compiles one expression at PrecAssignment, the lowest
// precedence a standalone expression can start at.
func (c *Compiler) expression() {
	c.parsePrecedence(PrecAssignment)
}

// parsePrecedence is the heart of the Pratt parser: consume a prefix
// expression, then keep folding in infix operators whose precedence is at
// least precedence.
func (c *Compiler) parsePrecedence(precedence Precedence) {
	c.parser.advance()
	prefix := ruleFor(c.parser.prev.Type).prefix
	if prefix == nil {
		c.parser.error("Expect expression.")
		return
	}

	canAssign := precedence <= PrecAssignment
	prefix(c, canAssign)

	for precedence <= ruleFor(c.parser.current.Type).precedence {
		c.parser.advance()
		infix := ruleFor(c.parser.prev.Type).infix
		infix(c, canAssign)
	}

	if canAssign && c.match(TokenEqual) {
		c.parser.error("Invalid assignment target.")
	}
}

func (c *Compiler) number(canAssign bool) {
	c.emitConstant(value.NumberVal(c.parser.prev.Number))
}

func (c *Compiler) stringLiteral(canAssign bool) {
	c.parser.gateAlloc()
	s := c.parser.heap.InternedString(c.parser.prev.Lexeme, c.parser.prev.StringHash)
	c.emitConstant(value.ObjVal(s))
}

func (c *Compiler) literal(canAssign bool) {
	switch c.parser.prev.Type {
	case TokenFalse:
		c.emitOp(chunk.OpFalse)
	case TokenNil:
		c.emitOp(chunk.OpNil)
	case TokenTrue:
		c.emitOp(chunk.OpTrue)
	}
}

func (c *Compiler) grouping(canAssign bool) {
	c.expression()
	c.consume(TokenRightParen, "Expect ')' after expression.")
}

// unary compiles `-expr` and `!expr`.
func (c *Compiler) unary(canAssign bool) {
	opType := c.parser.prev.Type
	c.parsePrecedence(PrecUnary)

	switch opType {
	case TokenMinus:
		c.emitOp(chunk.OpNegate)
	case TokenBang:
		c.emitOp(chunk.OpNot)
	}
}

// binary compiles one infix arithmetic/comparison/equality operator.
// `!=`, `<=`, and `>=` are synthesized from their complements (EQUAL+NOT,
// GREATER+NOT, LESS+NOT) rather than given their own opcodes. ADD doubles
// as string concatenation at runtime when both operands are strings.
func (c *Compiler) binary(canAssign bool) {
	opType := c.parser.prev.Type
	rule := ruleFor(opType)
	c.parsePrecedence(rule.precedence + 1)

	switch opType {
	case TokenPlus:
		c.emitOp(chunk.OpAdd)
	case TokenMinus:
		c.emitOp(chunk.OpSub)
	case TokenStar:
		c.emitOp(chunk.OpMul)
	case TokenSlash:
		c.emitOp(chunk.OpDiv)
	case TokenEqualEqual:
		c.emitOp(chunk.OpEqual)
	case TokenBangEqual:
		c.emitOp(chunk.OpEqual)
		c.emitOp(chunk.OpNot)
	case TokenGreater:
		c.emitOp(chunk.OpGreater)
	case TokenGreaterEqual:
		c.emitOp(chunk.OpLess)
		c.emitOp(chunk.OpNot)
	case TokenLess:
		c.emitOp(chunk.OpLess)
	case TokenLessEqual:
		c.emitOp(chunk.OpGreater)
		c.emitOp(chunk.OpNot)
	}
}

// call compiles a `(args)` suffix as the CALL infix operator.
func (c *Compiler) call(canAssign bool) {
	argCount := c.argumentList()
	c.emitOpByte(chunk.OpCall, byte(argCount))
}

func (c *Compiler) argumentList() int {
	count := 0
	if !c.check(TokenRightParen) {
		for {
			c.expression()
			if count == 255 {
				c.parser.error("Can't have more than 255 arguments.")
			}
			count++
			if !c.match(TokenComma) {
				break
			}
		}
	}
	c.consume(TokenRightParen, "Expect ')' after arguments.")
	return count
}

// ---- variables ----

func (c *Compiler) variable(canAssign bool) {
	c.namedVariable(c.parser.prev, canAssign)
}

// namedVariable resolves name against the current compiler's locals, then
// its enclosing chain's upvalues, and finally falls back to a global
//. An assignment target is only honored when
// canAssign, preventing `a + b = c` from silently parsing.
func (c *Compiler) namedVariable(name Token, canAssign bool) {
	var getOp, setOp chunk.Op
	var arg int

	if idx := c.resolveLocal(name.Lexeme); idx != -1 {
		getOp, setOp, arg = chunk.OpGetLocal, chunk.OpSetLocal, idx
	} else if idx := c.resolveUpvalue(name.Lexeme); idx != -1 {
		getOp, setOp, arg = chunk.OpGetUpvalue, chunk.OpSetUpvalue, idx
	} else {
		arg = c.identifierConstant(name)
		getOp, setOp = chunk.OpGetGlobal, chunk.OpSetGlobal
	}

	if canAssign && c.match(TokenEqual) {
		c.expression()
		c.emitOpByte(setOp, byte(arg))
	} else {
		c.emitOpByte(getOp, byte(arg))
	}
}

// identifierConstant interns name's lexeme and adds it to the constant
// pool, returning the constant index globals are keyed by at runtime.
func (c *Compiler) identifierConstant(name Token) int {
	c.parser.gateAlloc()
	s := c.parser.heap.InternedString(name.Lexeme, name.StringHash)
	return c.makeConstant(value.ObjVal(s))
}

// resolveLocal searches this compiler's own locals, innermost first.
// Returns -1 if name isn't a local here.
func (c *Compiler) resolveLocal(name string) int {
	for i := len(c.locals) - 1; i >= 0; i-- {
		if c.locals[i].name == name {
			if c.locals[i].depth == -1 {
				c.parser.error("Can't read local variable in its own initializer.")
			}
			return i
		}
	}
	return -1
}

// resolveUpvalue searches the enclosing compiler's locals and, failing
// that, recurses into its own upvalues — the standard "resolve through one
// level of enclosing scope at a time" algorithm. Each
// compiler along the chain that captures the variable gets its own
// upvalue slot, so a doubly-nested closure walks the chain once per level
// rather than reaching directly into a grandparent's locals.
func (c *Compiler) resolveUpvalue(name string) int {
	if c.enclosing == nil {
		return -1
	}
	if idx := c.enclosing.resolveLocal(name); idx != -1 {
		c.enclosing.locals[idx].isCaptured = true
		return c.addUpvalue(idx, true)
	}
	if idx := c.enclosing.resolveUpvalue(name); idx != -1 {
		return c.addUpvalue(idx, false)
	}
	return -1
}

func (c *Compiler) addUpvalue(index int, isLocal bool) int {
	for i, uv := range c.upvalues {
		if uv.index == index && uv.isLocal == isLocal {
			return i
		}
	}
	if len(c.upvalues) >= maxUpvalues {
		c.parser.error("Too many closure variables in function.")
		return 0
	}
	c.upvalues = append(c.upvalues, upvalueRef{index: index, isLocal: isLocal})
	return len(c.upvalues) - 1
}

// parseVariable consumes an identifier, declares it if it's a local, and
// returns the constant-pool index to hand to defineVariable for a global
// (the index is meaningless, and ignored, for a local).
func (c *Compiler) parseVariable(errMsg string) int {
	c.consume(TokenIdentifier, errMsg)
	c.declareVariable()
	if c.scopeDepth > 0 {
		return 0
	}
	return c.identifierConstant(c.parser.prev)
}

// declareVariable adds the just-consumed identifier as a new local when
// inside a scope; at global scope variables aren't tracked until defined.
// Redeclaring a name already local to this exact scope is a compile error.
func (c *Compiler) declareVariable() {
	if c.scopeDepth == 0 {
		return
	}
	name := c.parser.prev.Lexeme
	for i := len(c.locals) - 1; i >= 0; i-- {
		if c.locals[i].depth != -1 && c.locals[i].depth < c.scopeDepth {
			break
		}
		if c.locals[i].name == name {
			c.parser.error("Already a variable with this name in this scope.")
		}
	}
	c.addLocal(name)
}

func (c *Compiler) addLocal(name string) {
	if len(c.locals) >= maxLocals {
		c.parser.error("Too many local variables in function.")
		return
	}
	c.locals = append(c.locals, local{name: name, depth: -1})
}

// markInitialized marks the most recently declared local as usable by name
// for reference (clears the depth==-1 sentinel) — a no-op at global scope,
// and used before compiling a function body so a function may call itself
// recursively by name.
func (c *Compiler) markInitialized() {
	if c.scopeDepth == 0 {
		return
	}
	c.locals[len(c.locals)-1].depth = c.scopeDepth
}

// defineVariable finishes a declaration: for a global, emits DEFINE_GLOBAL
// keyed by the constant-pool slot parseVariable returned; for a local,
// there's no bytecode to emit — the value is already sitting in its slot.
func (c *Compiler) defineVariable(global int) {
	if c.scopeDepth > 0 {
		c.markInitialized()
		return
	}
	c.emitOpByte(chunk.OpDefineGlobal, byte(global))
}
