// Package value implements the VM's tagged Value union: nil, bool, number,
// and object reference.
package value

import (
	"fmt"
	"math"

	"loxvm/internal/object"
)

// Type discriminates which field of a Value is meaningful.
type Type int

const (
	Nil Type = iota
	Bool
	Number
	Obj
)

// Value is a tagged union over {nil, bool, number, object-reference}. It is
// passed by value throughout the compiler and VM rather than boxed behind
// an interface.
type Value struct {
	Type   Type
	Bool   bool
	Number float64
	Obj    *object.Object
}

// NilValue is the single nil value.
var NilValue = Value{Type: Nil}

func BoolValue(b bool) Value   { return Value{Type: Bool, Bool: b} }
func NumberValue(n float64) Value { return Value{Type: Number, Number: n} }
func ObjValue(o *object.Object) Value { return Value{Type: Obj, Obj: o} }

func (v Value) IsNil() bool    { return v.Type == Nil }
func (v Value) IsBool() bool   { return v.Type == Bool }
func (v Value) IsNumber() bool { return v.Type == Number }
func (v Value) IsObj() bool    { return v.Type == Obj }

// IsString reports whether v holds an object.String.
func (v Value) IsString() bool {
	return v.Type == Obj && v.Obj.Kind == object.KindString
}

// AsString returns the underlying *object.String. Callers must check
// IsString first.
func (v Value) AsString() *object.String {
	return object.AsString(v.Obj)
}

// IsFalsey implements the language's truthiness rule: nil and false are
// falsey, everything else (including 0 and "") is truthy.
func (v Value) IsFalsey() bool {
	return v.Type == Nil || (v.Type == Bool && !v.Bool)
}

// Equal implements value equality: a and b must share a variant (a mismatch
// is simply false, never an error); numbers compare by IEEE ==, objects by
// pointer identity, which is sound because strings are interned.
func Equal(a, b Value) bool {
	if a.Type != b.Type {
		return false
	}
	switch a.Type {
	case Nil:
		return true
	case Bool:
		return a.Bool == b.Bool
	case Number:
		return a.Number == b.Number
	case Obj:
		return a.Obj == b.Obj
	default:
		return false
	}
}

// IsNaN reports whether v is a NaN number value. NaN is the one value that
// does not equal itself under Equal.
func (v Value) IsNaN() bool {
	return v.Type == Number && math.IsNaN(v.Number)
}

// String renders v for PRINT and for error messages/disassembly.
func (v Value) String() string {
	switch v.Type {
	case Nil:
		return "nil"
	case Bool:
		return fmt.Sprintf("%t", v.Bool)
	case Number:
		return formatNumber(v.Number)
	case Obj:
		return object.Print(v.Obj)
	default:
		return "<unknown value>"
	}
}

func formatNumber(n float64) string {
	if n == math.Trunc(n) && !math.IsInf(n, 0) && math.Abs(n) < 1e15 {
		return fmt.Sprintf("%d", int64(n))
	}
	return fmt.Sprintf("%g", n)
}

// TypeName is used in runtime type-error messages.
func (v Value) TypeName() string {
	switch v.Type {
	case Nil:
		return "nil"
	case Bool:
		return "bool"
	case Number:
		return "number"
	case Obj:
		if v.IsString() {
			return "string"
		}
		return "object"
	default:
		return "unknown"
	}
}
