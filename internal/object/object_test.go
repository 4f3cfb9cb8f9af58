package object

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashBytesIsFNV1aWithCorrectedPrime(t *testing.T) {
	// Computed against the corrected 32-bit FNV-1a prime (16777619), not the
	// source material's documented typo (1677619).
	assert.Equal(t, fnvOffsetBasis, HashBytes(""))
	assert.NotEqual(t, uint32(0), HashBytes("hello"))
	assert.Equal(t, HashBytes("hello"), HashBytes("hello"))
	assert.NotEqual(t, HashBytes("hello"), HashBytes("world"))
}

func TestNewStringSetsHashAndOwner(t *testing.T) {
	s := NewString("hi")
	assert.Equal(t, "hi", s.Chars)
	assert.Equal(t, HashBytes("hi"), s.Hash)
	assert.Equal(t, KindString, s.Object.Kind)
	assert.Same(t, s, AsString(&s.Object))
}

func TestPrintString(t *testing.T) {
	s := NewString("abc")
	assert.Equal(t, "abc", Print(&s.Object))
}
