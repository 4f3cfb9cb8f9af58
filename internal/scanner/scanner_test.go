package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loxvm/internal/token"
)

func scanAll(t *testing.T, source string) []token.Token {
	t.Helper()
	s := New(source)
	var toks []token.Token
	for {
		tok := s.ScanToken()
		toks = append(toks, tok)
		if tok.Type == token.EOF {
			return toks
		}
	}
}

func TestScanTokenPunctuationAndOperators(t *testing.T) {
	toks := scanAll(t, "(){},.-+;/*!!====<<=>>=")
	expected := []token.Type{
		token.LeftParen, token.RightParen, token.LeftBrace, token.RightBrace,
		token.Comma, token.Dot, token.Minus, token.Plus, token.Semicolon,
		token.Slash, token.Star, token.Bang, token.BangEqual, token.EqualEqual,
		token.Equal, token.Less, token.LessEqual, token.Greater, token.GreaterEqual,
		token.EOF,
	}
	require.Len(t, toks, len(expected))
	for i, tt := range expected {
		assert.Equal(t, tt, toks[i].Type, "token %d", i)
	}
}

func TestScanKeywordsAndIdentifiers(t *testing.T) {
	toks := scanAll(t, "var x = foo_bar and true")
	types := make([]token.Type, len(toks))
	for i, tok := range toks {
		types[i] = tok.Type
	}
	assert.Equal(t, []token.Type{
		token.Var, token.Identifier, token.Equal, token.Identifier,
		token.And, token.True, token.EOF,
	}, types)
	assert.Equal(t, "foo_bar", toks[3].Lexeme())
}

func TestScanNumber(t *testing.T) {
	toks := scanAll(t, "123 45.67")
	require.Len(t, toks, 3)
	assert.Equal(t, "123", toks[0].Lexeme())
	assert.Equal(t, "45.67", toks[1].Lexeme())
}

func TestScanString(t *testing.T) {
	toks := scanAll(t, `"hello world"`)
	require.Len(t, toks, 2)
	assert.Equal(t, token.String, toks[0].Type)
	assert.Equal(t, `"hello world"`, toks[0].Lexeme())
}

func TestScanUnterminatedString(t *testing.T) {
	toks := scanAll(t, `"hello`)
	require.Len(t, toks, 2)
	assert.Equal(t, token.Error, toks[0].Type)
	assert.Equal(t, "Unterminated string.", toks[0].Lexeme())
}

func TestScanUnexpectedCharacter(t *testing.T) {
	toks := scanAll(t, "@")
	require.Len(t, toks, 2)
	assert.Equal(t, token.Error, toks[0].Type)
	assert.Contains(t, toks[0].Lexeme(), "Unexpected character")
}

func TestScanSkipsCommentsAndTracksLines(t *testing.T) {
	toks := scanAll(t, "1 // a comment\n2")
	require.Len(t, toks, 3)
	assert.Equal(t, 1, toks[0].Line)
	assert.Equal(t, 2, toks[1].Line)
}
