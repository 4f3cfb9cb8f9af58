// Package chunk implements the compiled bytecode unit: a growable code
// array, a parallel line-number array, and a constant pool.
package chunk

import (
	"fmt"

	"golang.org/x/exp/slices"

	"loxvm/internal/value"
)

// Op is a single-byte opcode. Operand widths are fixed per opcode.
type Op byte

const (
	OpConstant Op = iota
	OpNil
	OpTrue
	OpFalse
	OpPop
	OpGetLocal
	OpSetLocal
	OpGetGlobal
	OpDefineGlobal
	OpSetGlobal
	OpEqual
	OpGreater
	OpLess
	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
	OpNot
	OpNegate
	OpPrint
	OpJump
	OpJumpIfFalse
	OpReturn
)

var opNames = map[Op]string{
	OpConstant:     "OP_CONSTANT",
	OpNil:          "OP_NIL",
	OpTrue:         "OP_TRUE",
	OpFalse:        "OP_FALSE",
	OpPop:          "OP_POP",
	OpGetLocal:     "OP_GET_LOCAL",
	OpSetLocal:     "OP_SET_LOCAL",
	OpGetGlobal:    "OP_GET_GLOBAL",
	OpDefineGlobal: "OP_DEFINE_GLOBAL",
	OpSetGlobal:    "OP_SET_GLOBAL",
	OpEqual:        "OP_EQUAL",
	OpGreater:      "OP_GREATER",
	OpLess:         "OP_LESS",
	OpAdd:          "OP_ADD",
	OpSubtract:     "OP_SUBTRACT",
	OpMultiply:     "OP_MULTIPLY",
	OpDivide:       "OP_DIVIDE",
	OpNot:          "OP_NOT",
	OpNegate:       "OP_NEGATE",
	OpPrint:        "OP_PRINT",
	OpJump:         "OP_JUMP",
	OpJumpIfFalse:  "OP_JUMP_IF_FALSE",
	OpReturn:       "OP_RETURN",
}

func (op Op) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return fmt.Sprintf("OP_%d", byte(op))
}

// MaxConstants is the largest number of distinct constants a single chunk
// may hold; opcodes address the pool with a 1-byte index.
const MaxConstants = 256

// Chunk is a compiled unit: code bytes, parallel line numbers, and a
// constant pool. A Chunk owns all three arrays.
type Chunk struct {
	Code      []byte
	Lines     []int
	Constants []value.Value
}

// New returns an empty Chunk.
func New() *Chunk {
	return &Chunk{}
}

// Write appends one byte to Code and its source line to Lines, growing
// both (capacity 0→8, then doubling) so they always stay the same length.
func (c *Chunk) Write(b byte, line int) {
	if len(c.Code) == cap(c.Code) {
		c.Code = slices.Grow(c.Code, growthFor(len(c.Code)))
		c.Lines = slices.Grow(c.Lines, growthFor(len(c.Lines)))
	}
	c.Code = append(c.Code, b)
	c.Lines = append(c.Lines, line)
}

// growthFor returns how many additional elements to reserve: doubling from
// 8.
func growthFor(length int) int {
	if length == 0 {
		return 8
	}
	return length
}

// AddConstant appends v to the constant pool and returns its 0-based
// index. Callers must check against MaxConstants themselves (the compiler
// reports overflow as a compile error, not a panic).
func (c *Chunk) AddConstant(v value.Value) int {
	if len(c.Constants) == cap(c.Constants) {
		c.Constants = slices.Grow(c.Constants, growthFor(len(c.Constants)))
	}
	c.Constants = append(c.Constants, v)
	return len(c.Constants) - 1
}

// Len reports the current length of Code (and, invariantly, of Lines).
func (c *Chunk) Len() int {
	return len(c.Code)
}

// LineAt returns the source line recorded for the byte at offset.
func (c *Chunk) LineAt(offset int) int {
	if offset < 0 || offset >= len(c.Lines) {
		return -1
	}
	return c.Lines[offset]
}
