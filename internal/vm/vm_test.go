package vm

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loxvm/internal/compiler"
	"loxvm/internal/intern"
	"loxvm/internal/value"
)

func run(t *testing.T, source string) (stdout, stderr string, result Result) {
	t.Helper()
	in := intern.New()
	c, err := compiler.Compile(source, in, nil)
	require.NoError(t, err)

	machine := New(in)
	var out, errBuf bytes.Buffer
	machine.Stdout = &out
	machine.Stderr = &errBuf
	result = machine.Run(c)
	return out.String(), errBuf.String(), result
}

func TestPrintArithmetic(t *testing.T) {
	out, _, result := run(t, "print 1 + 2 * 3;")
	assert.Equal(t, OK, result)
	assert.Equal(t, "7\n", out)
}

func TestPrintComparisonsAndLogic(t *testing.T) {
	out, _, result := run(t, `print 1 < 2; print (1 < 2) == true; print !false;`)
	assert.Equal(t, OK, result)
	assert.Equal(t, "true\ntrue\ntrue\n", out)
}

func TestGlobalVariablePersistsAcrossStatements(t *testing.T) {
	out, _, result := run(t, "var x = 10; x = x + 5; print x;")
	assert.Equal(t, OK, result)
	assert.Equal(t, "15\n", out)
}

func TestUndefinedGlobalIsRuntimeError(t *testing.T) {
	_, errOut, result := run(t, "print missing;")
	assert.Equal(t, RuntimeError, result)
	assert.Contains(t, errOut, "Undefined variable 'missing'.")
}

func TestStringConcatenation(t *testing.T) {
	out, _, result := run(t, `print "foo" + "bar";`)
	assert.Equal(t, OK, result)
	assert.Equal(t, "foobar\n", out)
}

func TestAddTypeMismatchIsRuntimeError(t *testing.T) {
	_, errOut, result := run(t, `print 1 + "a";`)
	assert.Equal(t, RuntimeError, result)
	assert.Contains(t, errOut, "Operands must be two numbers or two strings.")
}

func TestNegateNonNumberIsRuntimeError(t *testing.T) {
	_, errOut, result := run(t, `print -"a";`)
	assert.Equal(t, RuntimeError, result)
	assert.Contains(t, errOut, "Operand must be a number.")
}

func TestWhileLoopAccumulates(t *testing.T) {
	out, _, result := run(t, `
		var i = 0;
		var sum = 0;
		while (i < 5) {
			sum = sum + i;
			i = i + 1;
		}
		print sum;
	`)
	assert.Equal(t, OK, result)
	assert.Equal(t, "10\n", out)
}

func TestForLoopAccumulates(t *testing.T) {
	out, _, result := run(t, `
		var sum = 0;
		for (var i = 0; i < 5; i = i + 1) {
			sum = sum + i;
		}
		print sum;
	`)
	assert.Equal(t, OK, result)
	assert.Equal(t, "10\n", out)
}

func TestBreakExitsLoopEarly(t *testing.T) {
	out, _, result := run(t, `
		var i = 0;
		while (true) {
			if (i == 3) { break; }
			print i;
			i = i + 1;
		}
	`)
	assert.Equal(t, OK, result)
	assert.Equal(t, "0\n1\n2\n", out)
}

func TestAndOrShortCircuit(t *testing.T) {
	out, _, result := run(t, `
		print false and (1 / 0 == 0);
		print true or (1 / 0 == 0);
	`)
	assert.Equal(t, OK, result)
	assert.Equal(t, "false\ntrue\n", out)
}

func TestStackOverflowIsRuntimeErrorNotPanic(t *testing.T) {
	// Each "nil == (" keeps its left operand on the stack while the grouping
	// is evaluated, so StackMax+1 nested nils overflow the operand stack.
	source := "print " + strings.Repeat("nil == (", StackMax) + "nil" + strings.Repeat(")", StackMax) + ";"
	_, errOut, result := run(t, source)
	assert.Equal(t, RuntimeError, result)
	assert.Contains(t, errOut, "Stack overflow.")

	// push itself panics on a full stack; Run's deferred handler is what
	// turns that panic into the RuntimeError above.
	machine := New(intern.New())
	for i := 0; i < StackMax; i++ {
		machine.push(value.NilValue)
	}
	assert.Panics(t, func() { machine.push(value.NilValue) })
}
