package compiler

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loxvm/internal/chunk"
	"loxvm/internal/intern"
)

func compileOK(t *testing.T, source string) *chunk.Chunk {
	t.Helper()
	in := intern.New()
	c, err := Compile(source, in, logrus.NewEntry(logrus.StandardLogger()))
	require.NoError(t, err)
	return c
}

func opcodes(c *chunk.Chunk) []chunk.Op {
	var ops []chunk.Op
	for i := 0; i < c.Len(); {
		op := chunk.Op(c.Code[i])
		ops = append(ops, op)
		switch op {
		case chunk.OpConstant, chunk.OpGetLocal, chunk.OpSetLocal,
			chunk.OpGetGlobal, chunk.OpDefineGlobal, chunk.OpSetGlobal:
			i += 2
		case chunk.OpJump, chunk.OpJumpIfFalse:
			i += 3
		default:
			i++
		}
	}
	return ops
}

func TestCompileArithmeticExpressionStatement(t *testing.T) {
	c := compileOK(t, "1 + 2 * 3;")
	assert.Equal(t, []chunk.Op{
		chunk.OpConstant, chunk.OpConstant, chunk.OpConstant,
		chunk.OpMultiply, chunk.OpAdd, chunk.OpPop, chunk.OpReturn,
	}, opcodes(c))
}

func TestCompileVarDeclarationAndPrint(t *testing.T) {
	c := compileOK(t, "var x = 1; print x;")
	assert.Equal(t, []chunk.Op{
		chunk.OpConstant, chunk.OpDefineGlobal,
		chunk.OpGetGlobal, chunk.OpPrint,
		chunk.OpReturn,
	}, opcodes(c))
}

func TestCompileLocalsUseGetSetLocal(t *testing.T) {
	c := compileOK(t, "{ var x = 1; x = 2; }")
	ops := opcodes(c)
	assert.Contains(t, ops, chunk.OpSetLocal)
	assert.NotContains(t, ops, chunk.OpDefineGlobal)
}

func TestCompileIfElseEmitsJumps(t *testing.T) {
	c := compileOK(t, "if (true) { print 1; } else { print 2; }")
	ops := opcodes(c)
	assert.Contains(t, ops, chunk.OpJumpIfFalse)
	assert.Contains(t, ops, chunk.OpJump)
}

func TestCompileWhileLoopsBackward(t *testing.T) {
	c := compileOK(t, "while (true) { print 1; }")
	ops := opcodes(c)
	assert.Contains(t, ops, chunk.OpJumpIfFalse)
	assert.Contains(t, ops, chunk.OpJump)
}

func TestCompileBreakOutsideLoopIsCompileError(t *testing.T) {
	in := intern.New()
	_, err := Compile("break;", in, logrus.NewEntry(logrus.StandardLogger()))
	assert.Error(t, err)
}

func TestCompileBreakInsideLoopIsFine(t *testing.T) {
	c := compileOK(t, "while (true) { break; }")
	assert.Contains(t, opcodes(c), chunk.OpJump)
}

func TestCompileSyntaxErrorReported(t *testing.T) {
	in := intern.New()
	_, err := Compile("var = 1;", in, logrus.NewEntry(logrus.StandardLogger()))
	assert.Error(t, err)
}

func TestCompileSameLiteralInternsToSamePointer(t *testing.T) {
	in := intern.New()
	log := logrus.NewEntry(logrus.StandardLogger())
	a, err := Compile(`"shared";`, in, log)
	require.NoError(t, err)
	b, err := Compile(`"shared";`, in, log)
	require.NoError(t, err)

	assert.Same(t, a.Constants[0].Obj, b.Constants[0].Obj,
		"identical string literals compiled through the same Interner must share one object")
}

func TestCompileInvalidAssignmentTargetIsError(t *testing.T) {
	in := intern.New()
	_, err := Compile("1 + 2 = 3;", in, logrus.NewEntry(logrus.StandardLogger()))
	assert.Error(t, err)
}
