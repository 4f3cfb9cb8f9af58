package chunk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loxvm/internal/value"
)

func TestWriteGrowsCodeAndLinesTogether(t *testing.T) {
	c := New()
	for i := 0; i < 20; i++ {
		c.Write(byte(OpNil), i+1)
	}
	require.Equal(t, 20, c.Len())
	require.Len(t, c.Lines, 20)
	for i := 0; i < 20; i++ {
		assert.Equal(t, i+1, c.LineAt(i))
	}
}

func TestAddConstant(t *testing.T) {
	c := New()
	idx := c.AddConstant(value.NumberValue(3))
	assert.Equal(t, 0, idx)
	idx = c.AddConstant(value.NumberValue(4))
	assert.Equal(t, 1, idx)
	assert.Equal(t, value.NumberValue(3), c.Constants[0])
}

func TestLineAtOutOfRange(t *testing.T) {
	c := New()
	c.Write(byte(OpReturn), 1)
	assert.Equal(t, -1, c.LineAt(-1))
	assert.Equal(t, -1, c.LineAt(5))
}

func TestOpString(t *testing.T) {
	assert.Equal(t, "OP_CONSTANT", OpConstant.String())
	assert.Equal(t, "OP_RETURN", OpReturn.String())
	assert.Contains(t, Op(250).String(), "OP_")
}
