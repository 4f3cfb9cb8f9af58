// Package vm implements a stack-based bytecode interpreter: a dispatch
// loop over a Chunk, a fixed-capacity operand stack, a globals table, and
// an intrusive list of every heap object allocated through its Interner.
package vm

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"loxvm/internal/chunk"
	"loxvm/internal/debug"
	"loxvm/internal/intern"
	"loxvm/internal/object"
	"loxvm/internal/table"
	"loxvm/internal/value"
)

// StackMax is the operand stack's fixed capacity.
const StackMax = 256

// Result is the outcome of a Run call.
type Result int

const (
	OK Result = iota
	CompileError
	RuntimeError
)

// VM executes a single Chunk at a time. Every field lives on an explicit
// value constructed by New, so nothing prevents running several independent
// VMs, though a single VM's methods are not meant to be called from
// multiple goroutines concurrently.
type VM struct {
	chunk *chunk.Chunk
	ip    int

	stack    [StackMax]value.Value
	stackTop int

	globals *table.Table
	in      *intern.Interner // the shared interner; see package intern's doc comment

	Stdout io.Writer
	Stderr io.Writer
	log    *logrus.Entry
}

// New returns a freshly initialized VM sharing in with whatever compiler
// calls compiled the chunks it will run (see package intern), with
// stdout/stderr wired to the process's own, logging through logrus's
// standard logger (whose default Info level leaves the VM's Debug-level
// traces silent).
func New(in *intern.Interner) *VM {
	return NewWithLogger(in, logrus.NewEntry(logrus.StandardLogger()))
}

// NewWithLogger returns a VM whose dispatch loop logs instruction traces
// through log at Debug level.
func NewWithLogger(in *intern.Interner, log *logrus.Entry) *VM {
	return &VM{
		globals: table.New(),
		in:      in,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		log:     log,
	}
}

// Close releases this VM's globals table. The intrusive all-objects sweep
// lives on the shared Interner (package intern's Close), since objects may
// have been allocated by the compiler before this VM ever ran.
func (vm *VM) Close() {
	vm.globals = table.New()
}

// Run executes c to completion, or until a runtime error stops it; it
// returns OK or RuntimeError. Compiling the source is the caller's job: Run
// only ever sees an already-compiled Chunk.
func (vm *VM) Run(c *chunk.Chunk) (result Result) {
	vm.chunk = c
	vm.ip = 0
	vm.resetStack()

	defer func() {
		if r := recover(); r != nil {
			if msg, ok := r.(stackOverflow); ok {
				result = vm.runtimeError("%s", string(msg))
				return
			}
			panic(r)
		}
	}()

	for {
		if vm.log.Logger.IsLevelEnabled(logrus.DebugLevel) {
			vm.log.Debugln(vm.stackTrace())
			var w traceWriter
			debug.DisassembleInstruction(&w, vm.chunk, vm.ip)
			vm.log.Debugln(w.String())
		}

		op := chunk.Op(vm.readByte())
		switch op {
		case chunk.OpConstant:
			vm.push(vm.readConstant())

		case chunk.OpNil:
			vm.push(value.NilValue)
		case chunk.OpTrue:
			vm.push(value.BoolValue(true))
		case chunk.OpFalse:
			vm.push(value.BoolValue(false))

		case chunk.OpPop:
			vm.pop()

		case chunk.OpGetLocal:
			slot := vm.readByte()
			vm.push(vm.stack[slot])
		case chunk.OpSetLocal:
			slot := vm.readByte()
			vm.stack[slot] = vm.peek(0)

		case chunk.OpGetGlobal:
			name := vm.readString()
			v, ok := vm.globals.Get(name)
			if !ok {
				return vm.runtimeError("Undefined variable '%s'.", name.Chars)
			}
			vm.push(v.(value.Value))
		case chunk.OpDefineGlobal:
			name := vm.readString()
			vm.globals.Set(name, vm.peek(0))
			vm.pop()
		case chunk.OpSetGlobal:
			name := vm.readString()
			if _, ok := vm.globals.Get(name); !ok {
				return vm.runtimeError("Undefined variable '%s'.", name.Chars)
			}
			vm.globals.Set(name, vm.peek(0))

		case chunk.OpEqual:
			b := vm.pop()
			a := vm.pop()
			vm.push(value.BoolValue(value.Equal(a, b)))
		case chunk.OpGreater:
			if r, ok := vm.numericCompare(func(a, b float64) bool { return a > b }); ok {
				vm.push(r)
			} else {
				return vm.runtimeError("Operands must be numbers.")
			}
		case chunk.OpLess:
			if r, ok := vm.numericCompare(func(a, b float64) bool { return a < b }); ok {
				vm.push(r)
			} else {
				return vm.runtimeError("Operands must be numbers.")
			}

		case chunk.OpAdd:
			if res, err := vm.add(); err != nil {
				return vm.runtimeError("%s", err.Error())
			} else {
				vm.push(res)
			}
		case chunk.OpSubtract:
			if r, ok := vm.binaryNumberOp(func(a, b float64) float64 { return a - b }); ok {
				vm.push(r)
			} else {
				return vm.runtimeError("Operands must be numbers.")
			}
		case chunk.OpMultiply:
			if r, ok := vm.binaryNumberOp(func(a, b float64) float64 { return a * b }); ok {
				vm.push(r)
			} else {
				return vm.runtimeError("Operands must be numbers.")
			}
		case chunk.OpDivide:
			if r, ok := vm.binaryNumberOp(func(a, b float64) float64 { return a / b }); ok {
				vm.push(r)
			} else {
				return vm.runtimeError("Operands must be numbers.")
			}

		case chunk.OpNot:
			vm.push(value.BoolValue(vm.pop().IsFalsey()))
		case chunk.OpNegate:
			if !vm.peek(0).IsNumber() {
				return vm.runtimeError("Operand must be a number.")
			}
			vm.push(value.NumberValue(-vm.pop().Number))

		case chunk.OpPrint:
			fmt.Fprintln(vm.Stdout, vm.pop().String())

		case chunk.OpJump:
			offset := vm.readJumpOffset()
			vm.ip += int(offset)
		case chunk.OpJumpIfFalse:
			offset := vm.readJumpOffset()
			if vm.peek(0).IsFalsey() {
				vm.ip += int(offset)
			}

		case chunk.OpReturn:
			return OK

		default:
			return vm.runtimeError("Unknown opcode %d.", op)
		}
	}
}

// --- stack -------------------------------------------------------------

func (vm *VM) resetStack() {
	vm.stackTop = 0
}

// stackOverflow is panicked by push when the operand stack is exhausted and
// recovered by Run's deferred handler into a normal RuntimeError result.
type stackOverflow string

func (vm *VM) push(v value.Value) {
	if vm.stackTop >= StackMax {
		panic(stackOverflow("Stack overflow."))
	}
	vm.stack[vm.stackTop] = v
	vm.stackTop++
}

func (vm *VM) pop() value.Value {
	vm.stackTop--
	return vm.stack[vm.stackTop]
}

func (vm *VM) peek(distance int) value.Value {
	return vm.stack[vm.stackTop-1-distance]
}

func (vm *VM) stackTrace() string {
	trace := "          "
	for i := 0; i < vm.stackTop; i++ {
		trace += fmt.Sprintf("[ %s ]", vm.stack[i])
	}
	return trace
}

// --- chunk reading -------------------------------------------------

func (vm *VM) readByte() byte {
	b := vm.chunk.Code[vm.ip]
	vm.ip++
	return b
}

func (vm *VM) readConstant() value.Value {
	return vm.chunk.Constants[vm.readByte()]
}

func (vm *VM) readString() *object.String {
	return vm.readConstant().AsString()
}

// readJumpOffset decodes the 2-byte big-endian operand as a two's
// complement int16.
func (vm *VM) readJumpOffset() int16 {
	hi := uint16(vm.readByte())
	lo := uint16(vm.readByte())
	return int16(hi<<8 | lo)
}

// --- arithmetic helpers ----------------------------------------------

// binaryNumberOp factors the peek-pop-check-push sequence shared by every
// binary arithmetic opcode, parameterized over the numeric operator.
func (vm *VM) binaryNumberOp(op func(a, b float64) float64) (value.Value, bool) {
	if !vm.peek(0).IsNumber() || !vm.peek(1).IsNumber() {
		return value.Value{}, false
	}
	b := vm.pop()
	a := vm.pop()
	return value.NumberValue(op(a.Number, b.Number)), true
}

func (vm *VM) numericCompare(op func(a, b float64) bool) (value.Value, bool) {
	if !vm.peek(0).IsNumber() || !vm.peek(1).IsNumber() {
		return value.Value{}, false
	}
	b := vm.pop()
	a := vm.pop()
	return value.BoolValue(op(a.Number, b.Number)), true
}

// add implements OpAdd's dual numeric/string behavior: number + number
// yields a number, string + string yields a concatenated string, anything
// else is a runtime error.
func (vm *VM) add() (value.Value, error) {
	if vm.peek(0).IsString() && vm.peek(1).IsString() {
		b := vm.pop()
		a := vm.pop()
		return value.ObjValue(&vm.concatenate(a.AsString(), b.AsString()).Object), nil
	}
	if vm.peek(0).IsNumber() && vm.peek(1).IsNumber() {
		b := vm.pop()
		a := vm.pop()
		return value.NumberValue(a.Number + b.Number), nil
	}
	return value.Value{}, fmt.Errorf("Operands must be two numbers or two strings.")
}

// concatenate allocates a fresh buffer of a.length+b.length bytes and
// interns the result through the shared Interner so later comparisons and
// global lookups against the same bytes hit the same object.
func (vm *VM) concatenate(a, b *object.String) *object.String {
	return vm.in.String(a.Chars + b.Chars)
}

// runtimeError prints msg to stderr with a "[line L] in script" suffix,
// resets the stack, and returns RuntimeError.
func (vm *VM) runtimeError(format string, args ...interface{}) Result {
	msg := fmt.Sprintf(format, args...)
	line := vm.chunk.LineAt(vm.ip - 1)
	fmt.Fprintf(vm.Stderr, "%s\n[line %d] in script\n", msg, line)
	vm.log.WithField("line", line).Debug(msg)
	vm.resetStack()
	return RuntimeError
}

// traceWriter adapts debug.DisassembleInstruction (which writes to an
// io.Writer) into a single string for logrus, without touching the VM's
// real Stdout.
type traceWriter struct {
	buf []byte
}

func (w *traceWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	return len(p), nil
}

func (w *traceWriter) String() string {
	s := string(w.buf)
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
