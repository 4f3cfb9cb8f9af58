package debug

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"loxvm/internal/chunk"
	"loxvm/internal/value"
)

func TestDisassembleSimpleChunk(t *testing.T) {
	c := chunk.New()
	idx := c.AddConstant(value.NumberValue(1))
	c.Write(byte(chunk.OpConstant), 1)
	c.Write(byte(idx), 1)
	c.Write(byte(chunk.OpReturn), 1)

	var buf bytes.Buffer
	Disassemble(&buf, c, "test chunk")

	out := buf.String()
	assert.Contains(t, out, "== test chunk ==")
	assert.Contains(t, out, "OP_CONSTANT")
	assert.Contains(t, out, "OP_RETURN")
}

func TestJumpInstructionReportsAbsoluteTarget(t *testing.T) {
	c := chunk.New()
	c.Write(byte(chunk.OpJump), 1)
	c.Write(0, 1)
	c.Write(5, 1) // offset = +5, target = offset(0) + 3 + 5 = 8
	c.Write(byte(chunk.OpReturn), 1)

	var buf bytes.Buffer
	next := DisassembleInstruction(&buf, c, 0)
	assert.Equal(t, 3, next)
	assert.Contains(t, buf.String(), "-> 8")
}
