// Package compiler implements a single-pass Pratt parser: lexical analysis
// (via internal/scanner) and bytecode emission happen in the same top-down
// pass, with no intermediate AST. Prefix and infix parse functions are
// registered per token kind and emit bytecode directly rather than
// building AST nodes. Panic-mode error recovery suppresses cascading
// errors until the next statement boundary.
package compiler

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"loxvm/internal/chunk"
	"loxvm/internal/intern"
	"loxvm/internal/scanner"
	"loxvm/internal/token"
	"loxvm/internal/value"
)

// maxLocals bounds the local-slot stack: locals are addressed by a 1-byte
// operand.
const maxLocals = 256

// uninitializedDepth is the sentinel a local gets between its declaration
// and the point its initializer finishes evaluating.
const uninitializedDepth = -1

type precedence int

const (
	precNone       precedence = iota
	precAssignment            // =
	precOr                    // or
	precAnd                   // and
	precEquality              // == !=
	precComparison            // < > <= >=
	precTerm                  // + -
	precFactor                // * /
	precUnary                 // ! -
	precCall                  // . ()
	precPrimary
)

type parseFn func(c *compiler, canAssign bool)

type parseRule struct {
	prefix     parseFn
	infix      parseFn
	precedence precedence
}

type local struct {
	name  token.Token
	depth int
}

type loop struct {
	start      int
	scopeDepth int
	breakJumps []int
}

// compiler holds all per-compilation state: the scanner cursor, the parser's
// current/previous tokens and error flags, the emitting chunk, and the
// lexical-scope local-slot stack. A fresh compiler is created by Compile
// for every call; there is no package-level singleton.
type compiler struct {
	scanner *scanner.Scanner
	current token.Token
	prev    token.Token

	hadError  bool
	panicMode bool

	chunk *chunk.Chunk
	log   *logrus.Entry
	in    *intern.Interner

	locals     []local
	scopeDepth int
	loops      []*loop
}

// Compile compiles source into a Chunk, interning every identifier and
// string-literal constant through in so that a VM sharing the same
// Interner sees pointer-identical Strings for identical bytes. It returns
// an error if any compile error was recorded; the chunk is still returned
// (possibly partial) for callers that want to inspect it, but callers must
// not execute a chunk for which Compile returned an error.
func Compile(source string, in *intern.Interner, log *logrus.Entry) (*chunk.Chunk, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	c := &compiler{
		scanner: scanner.New(source),
		chunk:   chunk.New(),
		log:     log,
		in:      in,
	}
	c.advance()
	for !c.match(token.EOF) {
		c.declaration()
	}
	c.consume(token.EOF, "Expect end of expression.")
	c.emitReturn()

	if c.hadError {
		return c.chunk, fmt.Errorf("compile error")
	}
	return c.chunk, nil
}

// --- token stream -----------------------------------------------------

func (c *compiler) advance() {
	c.prev = c.current
	for {
		c.current = c.scanner.ScanToken()
		if c.current.Type != token.Error {
			break
		}
		c.errorAtCurrent(c.current.Lexeme())
	}
}

func (c *compiler) check(t token.Type) bool {
	return c.current.Type == t
}

func (c *compiler) match(t token.Type) bool {
	if !c.check(t) {
		return false
	}
	c.advance()
	return true
}

func (c *compiler) consume(t token.Type, message string) {
	if c.current.Type == t {
		c.advance()
		return
	}
	c.errorAtCurrent(message)
}

// --- error reporting ----------------------------------------------------

func (c *compiler) errorAtCurrent(message string) {
	c.errorAt(c.current, message)
}

func (c *compiler) error(message string) {
	c.errorAt(c.prev, message)
}

// errorAt reports "[line L] Error at '<lexeme>': <message>" (or "at end",
// or no location for scan errors that already carry their own message as
// the lexeme), then enters panic mode so later errors on the same
// statement are suppressed until synchronize.
func (c *compiler) errorAt(tok token.Token, message string) {
	if c.panicMode {
		return
	}
	c.panicMode = true

	var where string
	switch tok.Type {
	case token.EOF:
		where = " at end"
	case token.Error:
		where = ""
	default:
		where = fmt.Sprintf(" at '%s'", tok.Lexeme())
	}
	c.log.Debugf("[line %d] Error%s: %s", tok.Line, where, message)
	fmt.Fprintf(os.Stderr, "[line %d] Error%s: %s\n", tok.Line, where, message)
	c.hadError = true
}

// --- byte emission --------------------------------------------------

func (c *compiler) emitByte(b byte) {
	c.chunk.Write(b, c.prev.Line)
}

func (c *compiler) emitOp(op chunk.Op) {
	c.emitByte(byte(op))
}

func (c *compiler) emitBytes(b1, b2 byte) {
	c.emitByte(b1)
	c.emitByte(b2)
}

func (c *compiler) emitOpByte(op chunk.Op, operand byte) {
	c.emitBytes(byte(op), operand)
}

func (c *compiler) emitReturn() {
	c.emitOp(chunk.OpReturn)
}

// emitJump writes op followed by a 2-byte placeholder offset and returns
// the offset of the first placeholder byte, for a later patchJump call.
func (c *compiler) emitJump(op chunk.Op) int {
	c.emitOp(op)
	c.emitByte(0xff)
	c.emitByte(0xff)
	return c.chunk.Len() - 2
}

// patchJump backfills the placeholder at jumpOffset with the distance from
// just after the 2-byte operand to the current chunk length, encoded as a
// two's-complement int16.
func (c *compiler) patchJump(jumpOffset int) {
	distance := c.chunk.Len() - (jumpOffset + 2)
	if distance > 1<<15-1 {
		c.error("Too much code to jump over.")
		return
	}
	c.patchOffset(jumpOffset, int16(distance))
}

// emitLoop emits OP_JUMP with a negative offset back to loopStart.
func (c *compiler) emitLoop(loopStart int) {
	offset := c.emitJump(chunk.OpJump)
	distance := loopStart - (offset + 2)
	if distance < -(1 << 15) {
		c.error("Loop body too large.")
		return
	}
	c.patchOffset(offset, int16(distance))
}

func (c *compiler) patchOffset(at int, offset int16) {
	c.chunk.Code[at] = byte(uint16(offset) >> 8)
	c.chunk.Code[at+1] = byte(uint16(offset) & 0xff)
}

func (c *compiler) makeConstant(v value.Value) byte {
	idx := c.chunk.AddConstant(v)
	if idx > 255 {
		c.error("Too many constants in one chunk.")
		return 0
	}
	return byte(idx)
}

func (c *compiler) emitConstant(v value.Value) {
	c.emitOpByte(chunk.OpConstant, c.makeConstant(v))
}

// --- scope & locals -------------------------------------------------

func (c *compiler) beginScope() {
	c.scopeDepth++
}

func (c *compiler) endScope() {
	c.scopeDepth--
	for len(c.locals) > 0 && c.locals[len(c.locals)-1].depth > c.scopeDepth {
		c.emitOp(chunk.OpPop)
		c.locals = c.locals[:len(c.locals)-1]
	}
}

func (c *compiler) addLocal(name token.Token) {
	if len(c.locals) >= maxLocals {
		c.error("Too many local variables in function.")
		return
	}
	c.locals = append(c.locals, local{name: name, depth: uninitializedDepth})
}

func (c *compiler) declareVariable() {
	if c.scopeDepth == 0 {
		return
	}
	name := c.prev
	for i := len(c.locals) - 1; i >= 0; i-- {
		l := c.locals[i]
		if l.depth != uninitializedDepth && l.depth < c.scopeDepth {
			break
		}
		if identifiersEqual(l.name, name) {
			c.error("Already a variable with this name in this scope.")
		}
	}
	c.addLocal(name)
}

func identifiersEqual(a, b token.Token) bool {
	return a.Lexeme() == b.Lexeme()
}

func (c *compiler) resolveLocal(name token.Token) int {
	for i := len(c.locals) - 1; i >= 0; i-- {
		if identifiersEqual(c.locals[i].name, name) {
			if c.locals[i].depth == uninitializedDepth {
				c.error("Can't read local variable in its own initializer.")
			}
			return i
		}
	}
	return -1
}

func (c *compiler) markInitialized() {
	if c.scopeDepth == 0 {
		return
	}
	c.locals[len(c.locals)-1].depth = c.scopeDepth
}

// --- declarations & statements ----------------------------------------

func (c *compiler) declaration() {
	if c.match(token.Var) {
		c.varDeclaration()
	} else {
		c.statement()
	}
	if c.panicMode {
		c.synchronize()
	}
}

func (c *compiler) varDeclaration() {
	global := c.parseVariable("Expect variable name.")

	if c.match(token.Equal) {
		c.expression()
	} else {
		c.emitOp(chunk.OpNil)
	}
	c.consume(token.Semicolon, "Expect ';' after variable declaration.")

	c.defineVariable(global)
}

func (c *compiler) parseVariable(message string) byte {
	c.consume(token.Identifier, message)
	c.declareVariable()
	if c.scopeDepth > 0 {
		return 0
	}
	return c.identifierConstant(c.prev)
}

func (c *compiler) identifierConstant(name token.Token) byte {
	return c.makeConstant(value.ObjValue(&c.in.String(name.Lexeme()).Object))
}

func (c *compiler) defineVariable(global byte) {
	if c.scopeDepth > 0 {
		c.markInitialized()
		return
	}
	c.emitOpByte(chunk.OpDefineGlobal, global)
}

func (c *compiler) statement() {
	switch {
	case c.match(token.Print):
		c.printStatement()
	case c.match(token.If):
		c.ifStatement()
	case c.match(token.While):
		c.whileStatement()
	case c.match(token.For):
		c.forStatement()
	case c.match(token.Break):
		c.breakStatement()
	case c.match(token.LeftBrace):
		c.beginScope()
		c.block()
		c.endScope()
	default:
		c.expressionStatement()
	}
}

func (c *compiler) printStatement() {
	c.expression()
	c.consume(token.Semicolon, "Expect ';' after value.")
	c.emitOp(chunk.OpPrint)
}

func (c *compiler) expressionStatement() {
	c.expression()
	c.consume(token.Semicolon, "Expect ';' after expression.")
	c.emitOp(chunk.OpPop)
}

func (c *compiler) block() {
	for !c.check(token.RightBrace) && !c.check(token.EOF) {
		c.declaration()
	}
	c.consume(token.RightBrace, "Expect '}' after block.")
}

// ifStatement compiles an if/else: condition, conditional jump past the
// then-branch, unconditional jump past the else-branch.
func (c *compiler) ifStatement() {
	c.consume(token.LeftParen, "Expect '(' after 'if'.")
	c.expression()
	c.consume(token.RightParen, "Expect ')' after condition.")

	thenJump := c.emitJump(chunk.OpJumpIfFalse)
	c.emitOp(chunk.OpPop)
	c.statement()

	elseJump := c.emitJump(chunk.OpJump)
	c.patchJump(thenJump)
	c.emitOp(chunk.OpPop)

	if c.match(token.Else) {
		c.statement()
	}
	c.patchJump(elseJump)
}

// whileStatement compiles a while loop and patches any break jumps
// recorded in c.loops against its exit point.
func (c *compiler) whileStatement() {
	loopStart := c.chunk.Len()

	c.consume(token.LeftParen, "Expect '(' after 'while'.")
	c.expression()
	c.consume(token.RightParen, "Expect ')' after condition.")

	exitJump := c.emitJump(chunk.OpJumpIfFalse)
	c.emitOp(chunk.OpPop)

	c.loops = append(c.loops, &loop{start: loopStart, scopeDepth: c.scopeDepth})
	c.statement()
	current := c.loops[len(c.loops)-1]
	c.loops = c.loops[:len(c.loops)-1]

	c.emitLoop(loopStart)

	c.patchJump(exitJump)
	c.emitOp(chunk.OpPop)

	for _, jump := range current.breakJumps {
		c.patchJump(jump)
	}
}

// forStatement desugars a C-style for loop into the while shape above.
func (c *compiler) forStatement() {
	c.beginScope()
	c.consume(token.LeftParen, "Expect '(' after 'for'.")

	switch {
	case c.match(token.Semicolon):
		// no initializer
	case c.match(token.Var):
		c.varDeclaration()
	default:
		c.expressionStatement()
	}

	loopStart := c.chunk.Len()
	exitJump := -1
	if !c.match(token.Semicolon) {
		c.expression()
		c.consume(token.Semicolon, "Expect ';' after loop condition.")
		exitJump = c.emitJump(chunk.OpJumpIfFalse)
		c.emitOp(chunk.OpPop)
	}

	if !c.match(token.RightParen) {
		bodyJump := c.emitJump(chunk.OpJump)
		incrementStart := c.chunk.Len()
		c.expression()
		c.emitOp(chunk.OpPop)
		c.consume(token.RightParen, "Expect ')' after for clauses.")

		c.emitLoop(loopStart)
		loopStart = incrementStart
		c.patchJump(bodyJump)
	}

	c.loops = append(c.loops, &loop{start: loopStart, scopeDepth: c.scopeDepth})
	c.statement()
	current := c.loops[len(c.loops)-1]
	c.loops = c.loops[:len(c.loops)-1]

	c.emitLoop(loopStart)

	if exitJump != -1 {
		c.patchJump(exitJump)
		c.emitOp(chunk.OpPop)
	}

	for _, jump := range current.breakJumps {
		c.patchJump(jump)
	}

	c.endScope()
}

func (c *compiler) breakStatement() {
	if len(c.loops) == 0 {
		c.error("Can't use 'break' outside of a loop.")
		c.consume(token.Semicolon, "Expect ';' after 'break'.")
		return
	}
	current := c.loops[len(c.loops)-1]
	// Pop any locals declared since loop entry before jumping out.
	for i := len(c.locals) - 1; i >= 0 && c.locals[i].depth > current.scopeDepth; i-- {
		c.emitOp(chunk.OpPop)
	}
	jump := c.emitJump(chunk.OpJump)
	current.breakJumps = append(current.breakJumps, jump)
	c.consume(token.Semicolon, "Expect ';' after 'break'.")
}

// synchronize discards tokens until a statement boundary is found,
// suppressing the cascade of spurious errors a single syntax mistake
// would otherwise trigger.
func (c *compiler) synchronize() {
	c.panicMode = false

	for c.current.Type != token.EOF {
		if c.prev.Type == token.Semicolon {
			return
		}
		switch c.current.Type {
		case token.Class, token.Fun, token.Var, token.For, token.If,
			token.While, token.Print, token.Return:
			return
		}
		c.advance()
	}
}

// --- expressions: Pratt parsing ----------------------------------------

func (c *compiler) expression() {
	c.parsePrecedence(precAssignment)
}

func (c *compiler) parsePrecedence(prec precedence) {
	c.advance()
	rule := rules[c.prev.Type]
	if rule.prefix == nil {
		c.error("Expect expression.")
		return
	}

	canAssign := prec <= precAssignment
	rule.prefix(c, canAssign)

	for prec <= rules[c.current.Type].precedence {
		c.advance()
		infix := rules[c.prev.Type].infix
		infix(c, canAssign)
	}

	if canAssign && c.match(token.Equal) {
		c.error("Invalid assignment target.")
	}
}

func number(c *compiler, _ bool) {
	n, err := strconv.ParseFloat(c.prev.Lexeme(), 64)
	if err != nil {
		c.error("Invalid number literal.")
		return
	}
	c.emitConstant(value.NumberValue(n))
}

func str(c *compiler, _ bool) {
	lexeme := c.prev.Lexeme()
	raw := strings.TrimSuffix(strings.TrimPrefix(lexeme, "\""), "\"")
	s := c.in.String(raw)
	c.emitConstant(value.ObjValue(&s.Object))
}

func literal(c *compiler, _ bool) {
	switch c.prev.Type {
	case token.False:
		c.emitOp(chunk.OpFalse)
	case token.True:
		c.emitOp(chunk.OpTrue)
	case token.Nil:
		c.emitOp(chunk.OpNil)
	}
}

func grouping(c *compiler, _ bool) {
	c.expression()
	c.consume(token.RightParen, "Expect ')' after expression.")
}

func unary(c *compiler, _ bool) {
	opType := c.prev.Type
	c.parsePrecedence(precUnary)
	switch opType {
	case token.Bang:
		c.emitOp(chunk.OpNot)
	case token.Minus:
		c.emitOp(chunk.OpNegate)
	}
}

func binary(c *compiler, _ bool) {
	opType := c.prev.Type
	rule := rules[opType]
	c.parsePrecedence(rule.precedence + 1)

	switch opType {
	case token.BangEqual:
		c.emitOp(chunk.OpEqual)
		c.emitOp(chunk.OpNot)
	case token.EqualEqual:
		c.emitOp(chunk.OpEqual)
	case token.Greater:
		c.emitOp(chunk.OpGreater)
	case token.GreaterEqual:
		c.emitOp(chunk.OpLess)
		c.emitOp(chunk.OpNot)
	case token.Less:
		c.emitOp(chunk.OpLess)
	case token.LessEqual:
		c.emitOp(chunk.OpGreater)
		c.emitOp(chunk.OpNot)
	case token.Plus:
		c.emitOp(chunk.OpAdd)
	case token.Minus:
		c.emitOp(chunk.OpSubtract)
	case token.Star:
		c.emitOp(chunk.OpMultiply)
	case token.Slash:
		c.emitOp(chunk.OpDivide)
	}
}

// and_ implements short-circuit and.
func and_(c *compiler, _ bool) {
	endJump := c.emitJump(chunk.OpJumpIfFalse)
	c.emitOp(chunk.OpPop)
	c.parsePrecedence(precAnd)
	c.patchJump(endJump)
}

// or_ implements short-circuit or.
func or_(c *compiler, _ bool) {
	elseJump := c.emitJump(chunk.OpJumpIfFalse)
	endJump := c.emitJump(chunk.OpJump)

	c.patchJump(elseJump)
	c.emitOp(chunk.OpPop)

	c.parsePrecedence(precOr)
	c.patchJump(endJump)
}

func variable(c *compiler, canAssign bool) {
	namedVariable(c, c.prev, canAssign)
}

func namedVariable(c *compiler, name token.Token, canAssign bool) {
	var getOp, setOp chunk.Op
	slot := c.resolveLocal(name)
	if slot != -1 {
		getOp, setOp = chunk.OpGetLocal, chunk.OpSetLocal
	} else {
		slot = int(c.identifierConstant(name))
		getOp, setOp = chunk.OpGetGlobal, chunk.OpSetGlobal
	}

	if canAssign && c.match(token.Equal) {
		c.expression()
		c.emitOpByte(setOp, byte(slot))
	} else {
		c.emitOpByte(getOp, byte(slot))
	}
}

// rules is the parse-rule table, indexed by token kind, each entry a
// (prefix, infix, precedence) triple.
var rules map[token.Type]parseRule

func init() {
	rules = map[token.Type]parseRule{
		token.LeftParen:    {prefix: grouping},
		token.Minus:        {prefix: unary, infix: binary, precedence: precTerm},
		token.Plus:         {infix: binary, precedence: precTerm},
		token.Slash:        {infix: binary, precedence: precFactor},
		token.Star:         {infix: binary, precedence: precFactor},
		token.Bang:         {prefix: unary},
		token.BangEqual:    {infix: binary, precedence: precEquality},
		token.EqualEqual:   {infix: binary, precedence: precEquality},
		token.Greater:      {infix: binary, precedence: precComparison},
		token.GreaterEqual: {infix: binary, precedence: precComparison},
		token.Less:         {infix: binary, precedence: precComparison},
		token.LessEqual:    {infix: binary, precedence: precComparison},
		token.Identifier:   {prefix: variable},
		token.String:       {prefix: str},
		token.Number:       {prefix: number},
		token.And:          {infix: and_, precedence: precAnd},
		token.Or:           {infix: or_, precedence: precOr},
		token.False:        {prefix: literal},
		token.True:         {prefix: literal},
		token.Nil:          {prefix: literal},
	}
}
