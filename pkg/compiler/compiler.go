// Package compiler implements a single-pass lexer + Pratt parser + code
// generator: source text goes straight to bytecode, with no intermediate
// AST — the parser's own call stack doubles as the "tree".
package compiler

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/kristofer/lumen/pkg/chunk"
	"github.com/kristofer/lumen/pkg/object"
	"github.com/kristofer/lumen/pkg/value"
)

// Precedence levels, low to high.
type Precedence int

const (
	PrecNone Precedence = iota
	PrecLowest
	PrecAssignment
	PrecOr
	PrecAnd
	PrecEquality
	PrecComparison
	PrecTerm
	PrecFactor
	PrecUnary
	PrecCall
	PrecPrimary
)

type parseFn func(c *Compiler, canAssign bool)

type parseRule struct {
	prefix     parseFn
	infix      parseFn
	precedence Precedence
}

var rules map[TokenType]parseRule

func init() {
	rules = map[TokenType]parseRule{
		TokenLeftParen:    {prefix: (*Compiler).grouping, infix: (*Compiler).call, precedence: PrecCall},
		TokenMinus:        {prefix: (*Compiler).unary, infix: (*Compiler).binary, precedence: PrecTerm},
		TokenPlus:         {infix: (*Compiler).binary, precedence: PrecTerm},
		TokenSlash:        {infix: (*Compiler).binary, precedence: PrecFactor},
		TokenStar:         {infix: (*Compiler).binary, precedence: PrecFactor},
		TokenBang:         {prefix: (*Compiler).unary},
		TokenBangEqual:    {infix: (*Compiler).binary, precedence: PrecEquality},
		TokenEqualEqual:   {infix: (*Compiler).binary, precedence: PrecEquality},
		TokenGreater:      {infix: (*Compiler).binary, precedence: PrecComparison},
		TokenGreaterEqual: {infix: (*Compiler).binary, precedence: PrecComparison},
		TokenLess:         {infix: (*Compiler).binary, precedence: PrecComparison},
		TokenLessEqual:    {infix: (*Compiler).binary, precedence: PrecComparison},
		TokenIdentifier:   {prefix: (*Compiler).variable},
		TokenString:       {prefix: (*Compiler).stringLiteral},
		TokenNumber:       {prefix: (*Compiler).number},
		TokenFalse:        {prefix: (*Compiler).literal},
		TokenNil:          {prefix: (*Compiler).literal},
		TokenTrue:         {prefix: (*Compiler).literal},
	}
}

func ruleFor(t TokenType) parseRule {
	if r, ok := rules[t]; ok {
		return r
	}
	return parseRule{}
}

// fnType distinguishes the implicit top-level script from a nested
// function compilation — the only thing that changes is what slot 0 means
// and what an implicit trailing return looks like.
type fnType int

const (
	typeScript fnType = iota
	typeFunction
)

// local is one entry of a function compiler's local-variable table: the
// name token, the scope depth at declaration (−1 while its initializer is
// still being compiled), and whether any nested function captures it as
// an upvalue.
type local struct {
	name       string
	depth      int
	isCaptured bool
}

// upvalueRef is one entry of a function compiler's upvalue table: either an
// index into the immediately enclosing function's locals, or an index into
// the enclosing function's own upvalues.
type upvalueRef struct {
	index   int
	isLocal bool
}

const maxLocals = 256
const maxUpvalues = 256

// Compiler compiles one function body (or the top-level script) to
// bytecode. Nested function compilations link through enclosing, mirroring
// the reference implementation's stack of compiler structs threaded by a
// `parent` pointer.
type Compiler struct {
	parser    *parserState
	enclosing *Compiler

	function *object.Function
	fnType   fnType

	locals     []local
	scopeDepth int

	upvalues []upvalueRef
}

// parserState is shared by every Compiler in a single compilation: the
// lexer, the current/previous token pair, error accumulation, and the
// allocation gate used to keep the compiler's own heap allocations subject
// to the same GC trigger the VM's bytecode dispatch loop uses.
type parserState struct {
	lexer   *Lexer
	heap    *object.Heap
	current Token
	prev    Token

	hadError  bool
	panicMode bool
	errors    *multierror.Error

	gate AllocGate
}

// AllocGate is called by the compiler immediately before any heap
// allocation, giving the caller (normally the VM) the chance to run a
// collection cycle first — the same gate the bytecode dispatch loop passes
// every allocating opcode through. A nil gate is valid and simply means no
// collector is wired in (e.g. a compile-only tool like `lumen compile`
// that never runs the VM at all).
type AllocGate func()

// activeRoot is the innermost Compiler currently being built, mirroring
// the reference implementation's global `Compiler* current` — which the
// collector's markCompilerRoots() walks via its `enclosing` chain. A package-level variable is the direct analogue
// of that global: compilation is synchronous, single-threaded, and never
// reentered, so there is exactly one in-flight chain at a time.
var activeRoot *Compiler

// WalkRoots calls visit for every function currently under compilation, by
// walking activeRoot's enclosing chain outward. Used by the VM's garbage
// collector to mark in-progress function objects that have not yet been
// installed as a constant in any reachable chunk.
func WalkRoots(visit func(*object.Function)) {
	for c := activeRoot; c != nil; c = c.enclosing {
		visit(c.function)
	}
}

// Compile compiles source into a top-level script function. gate may be
// nil. On a compile error, Compile still returns a best-effort function
// (so a caller building a disassembler never crashes) together with a
// non-nil *multierror.Error describing every diagnostic collected, thanks
// to panic-mode synchronization at statement boundaries.
func Compile(source string, heap *object.Heap, gate AllocGate) (*object.Function, error) {
	p := &parserState{lexer: NewLexer(source), heap: heap, gate: gate}
	c := newCompiler(p, nil, typeScript, "")

	p.advance()
	for !c.match(TokenEOF) {
		c.declaration()
	}
	fn := c.endCompiler()

	if p.hadError {
		return fn, p.errors.ErrorOrNil()
	}
	return fn, nil
}

func newCompiler(p *parserState, enclosing *Compiler, t fnType, name string) *Compiler {
	c := &Compiler{
		parser:    p,
		enclosing: enclosing,
		fnType:    t,
		locals:    make([]local, 0, 8),
	}
	p.gateAlloc()
	c.function = p.heap.NewFunction()
	activeRoot = c
	if name != "" {
		p.gateAlloc()
		c.function.Name = p.heap.NewString(name)
	}

	// Slot 0 is reserved for the function itself (empty name means it can
	// never be referenced by a user identifier).
	c.locals = append(c.locals, local{name: "", depth: 0})
	return c
}

func (p *parserState) gateAlloc() {
	if p.gate != nil {
		p.gate()
	}
}

func (c *Compiler) chunk() *chunk.Chunk { return c.function.Chunk }

// ---- token stream plumbing ----

func (p *parserState) advance() {
	p.prev = p.current
	for {
		p.current = p.lexer.Next()
		if p.current.Type != TokenError {
			break
		}
		p.errorAtCurrent(p.current.Lexeme)
	}
}

func (c *Compiler) check(t TokenType) bool { return c.parser.current.Type == t }

func (c *Compiler) match(t TokenType) bool {
	if !c.check(t) {
		return false
	}
	c.parser.advance()
	return true
}

func (c *Compiler) consume(t TokenType, msg string) {
	if c.parser.current.Type == t {
		c.parser.advance()
		return
	}
	c.parser.errorAtCurrent(msg)
}

func (p *parserState) errorAtCurrent(msg string) { p.errorAt(p.current, msg) }
func (p *parserState) error(msg string)          { p.errorAt(p.prev, msg) }

func (p *parserState) errorAt(tok Token, msg string) {
	if p.panicMode {
		return
	}
	p.panicMode = true
	p.hadError = true

	where := ""
	switch tok.Type {
	case TokenEOF:
		where = " at end"
	case TokenError:
	default:
		where = fmt.Sprintf(" at '%s'", tok.Lexeme)
	}
	p.errors = multierror.Append(p.errors, fmt.Errorf("[line %d] Error%s: %s", tok.Line, where, msg))
}

// synchronize implements panic-mode recovery: after a parse error, discard
// tokens until a likely statement boundary so a single typo doesn't
// cascade into a screenful of follow-on errors.
func (c *Compiler) synchronize() {
	c.parser.panicMode = false
	for c.parser.current.Type != TokenEOF {
		if c.parser.prev.Type == TokenSemicolon {
			return
		}
		switch c.parser.current.Type {
		case TokenClass, TokenFun, TokenVar, TokenFor, TokenIf, TokenWhile, TokenPrint, TokenReturn:
			return
		}
		c.parser.advance()
	}
}

// ---- bytecode emission ----

func (c *Compiler) emitByte(b byte) {
	c.chunk().Write(b, c.parser.prev.Line)
}

func (c *Compiler) emitOp(op chunk.Op) {
	c.chunk().WriteOp(op, c.parser.prev.Line)
}

func (c *Compiler) emitOpByte(op chunk.Op, operand byte) {
	c.emitOp(op)
	c.emitByte(operand)
}

// emitJump emits op followed by a 2-byte placeholder and returns the
// placeholder's offset, to be patched once the jump target is known.
func (c *Compiler) emitJump(op chunk.Op) int {
	c.emitOp(op)
	c.emitByte(0xff)
	c.emitByte(0xff)
	return c.chunk().Len() - 2
}

// patchJump backfills the 2-byte big-endian offset at offset so the jump
// lands just past the code emitted since emitJump was called.
func (c *Compiler) patchJump(offset int) {
	jump := c.chunk().Len() - offset - 2
	if jump > 0xffff {
		c.parser.error("Too much code to jump over.")
	}
	c.chunk().Code[offset] = byte((jump >> 8) & 0xff)
	c.chunk().Code[offset+1] = byte(jump & 0xff)
}

// emitLoop emits a backward LOOP whose offset returns execution to
// loopStart.
func (c *Compiler) emitLoop(loopStart int) {
	c.emitOp(chunk.OpLoop)
	offset := c.chunk().Len() - loopStart + 2
	if offset > 0xffff {
		c.parser.error("Loop body too large.")
	}
	c.emitByte(byte((offset >> 8) & 0xff))
	c.emitByte(byte(offset & 0xff))
}

// emitConstant adds v to the constant pool and emits CONSTANT or, for an
// index ≥ 256, CONSTANT_LONG with a 3-byte little-endian index.
func (c *Compiler) emitConstant(v value.Value) {
	idx := c.makeConstant(v)
	if idx < 256 {
		c.emitOpByte(chunk.OpConstant, byte(idx))
		return
	}
	c.emitOp(chunk.OpConstantLong)
	c.emitByte(byte(idx & 0xff))
	c.emitByte(byte((idx >> 8) & 0xff))
	c.emitByte(byte((idx >> 16) & 0xff))
}

func (c *Compiler) makeConstant(v value.Value) int {
	return c.chunk().AddConstant(v)
}

// endCompiler emits the implicit trailing `nil; return` every function
// body gets if it falls off the end without an explicit return, and
// returns the finished function object.
func (c *Compiler) endCompiler() *object.Function {
	c.emitOp(chunk.OpNil)
	c.emitOp(chunk.OpReturn)
	fn := c.function
	activeRoot = c.enclosing
	return fn
}

// ---- scopes ----

func (c *Compiler) beginScope() { c.scopeDepth++ }

// endScope pops every local declared in the scope being exited: POP for an
// uncaptured local, CLOSE_UPVALUE for one captured by a nested closure.
func (c *Compiler) endScope() {
	c.scopeDepth--
	for len(c.locals) > 0 && c.locals[len(c.locals)-1].depth > c.scopeDepth {
		if c.locals[len(c.locals)-1].isCaptured {
			c.emitOp(chunk.OpCloseUpvalue)
		} else {
			c.emitOp(chunk.OpPop)
		}
		c.locals = c.locals[:len(c.locals)-1]
	}
}
