// Package debug implements a pretty printer over a Chunk, with no
// side effects on the VM. cmd/loxvm uses Disassemble for its --disassembly
// flag; internal/vm uses DisassembleInstruction only for its Debug-level
// instruction trace.
package debug

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"

	"loxvm/internal/chunk"
)

// Disassemble writes a full human-readable dump of c to w, labeled name.
func Disassemble(w io.Writer, c *chunk.Chunk, name string) {
	fmt.Fprintf(w, "== %s ==\n", name)
	fmt.Fprintf(w, "chunk: %s code, %s constants\n",
		humanize.Bytes(uint64(c.Len())), humanize.Comma(int64(len(c.Constants))))
	for offset := 0; offset < c.Len(); {
		offset = DisassembleInstruction(w, c, offset)
	}
}

// DisassembleInstruction prints one instruction at offset and returns the
// offset of the next instruction.
func DisassembleInstruction(w io.Writer, c *chunk.Chunk, offset int) int {
	fmt.Fprintf(w, "%04d ", offset)
	if offset > 0 && c.LineAt(offset) == c.LineAt(offset-1) {
		fmt.Fprint(w, "   | ")
	} else {
		fmt.Fprintf(w, "%4d ", c.LineAt(offset))
	}

	op := chunk.Op(c.Code[offset])
	switch op {
	case chunk.OpConstant:
		return constantInstruction(w, op.String(), c, offset)
	case chunk.OpNil, chunk.OpTrue, chunk.OpFalse, chunk.OpPop,
		chunk.OpEqual, chunk.OpGreater, chunk.OpLess,
		chunk.OpAdd, chunk.OpSubtract, chunk.OpMultiply, chunk.OpDivide,
		chunk.OpNot, chunk.OpNegate, chunk.OpPrint, chunk.OpReturn:
		return simpleInstruction(w, op.String(), offset)
	case chunk.OpGetLocal, chunk.OpSetLocal:
		return byteInstruction(w, op.String(), c, offset)
	case chunk.OpGetGlobal, chunk.OpDefineGlobal, chunk.OpSetGlobal:
		return constantInstruction(w, op.String(), c, offset)
	case chunk.OpJump, chunk.OpJumpIfFalse:
		return jumpInstruction(w, op.String(), c, offset)
	default:
		fmt.Fprintf(w, "Unknown opcode %d\n", op)
		return offset + 1
	}
}

func simpleInstruction(w io.Writer, name string, offset int) int {
	fmt.Fprintf(w, "%s\n", name)
	return offset + 1
}

func byteInstruction(w io.Writer, name string, c *chunk.Chunk, offset int) int {
	slot := c.Code[offset+1]
	fmt.Fprintf(w, "%-16s %4d\n", name, slot)
	return offset + 2
}

func constantInstruction(w io.Writer, name string, c *chunk.Chunk, offset int) int {
	idx := c.Code[offset+1]
	fmt.Fprintf(w, "%-16s %4d '%s'\n", name, idx, c.Constants[idx])
	return offset + 2
}

// jumpInstruction decodes the 2-byte big-endian operand as a two's
// complement int16 offset and reports the absolute target.
func jumpInstruction(w io.Writer, name string, c *chunk.Chunk, offset int) int {
	hi := uint16(c.Code[offset+1])
	lo := uint16(c.Code[offset+2])
	raw := int16(hi<<8 | lo)
	target := offset + 3 + int(raw)
	fmt.Fprintf(w, "%-16s %4d -> %d\n", name, raw, target)
	return offset + 3
}
