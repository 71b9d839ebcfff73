package sql

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLexer_Tokens(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []TokenType
	}{
		{
			name:  "select list",
			input: "SELECT a, b FROM t",
			want:  []TokenType{TokenSelect, TokenIdent, TokenComma, TokenIdent, TokenFrom, TokenIdent, TokenEOF},
		},
		{
			name:  "comparison operators",
			input: "= != <> < <= > >=",
			want: []TokenType{TokenEqual, TokenNotEqual, TokenNotEqual, TokenLess, TokenLessEqual,
				TokenGreater, TokenGreaterEqual, TokenEOF},
		},
		{
			name:  "arithmetic",
			input: "a+b*2-c/d%3",
			want: []TokenType{TokenIdent, TokenPlus, TokenIdent, TokenStar, TokenNumber, TokenMinus,
				TokenIdent, TokenSlash, TokenIdent, TokenPercent, TokenNumber, TokenEOF},
		},
		{
			name:  "keywords are case insensitive",
			input: "select Is nOt NuLL true",
			want:  []TokenType{TokenSelect, TokenIs, TokenNot, TokenNull, TokenBool, TokenEOF},
		},
		{
			name:  "comment skipped",
			input: "a -- the rest\n+ 1",
			want:  []TokenType{TokenIdent, TokenPlus, TokenNumber, TokenEOF},
		},
		{
			name:  "unsupported keyword",
			input: "a IN b",
			want:  []TokenType{TokenIdent, TokenUnsupported, TokenIdent, TokenEOF},
		},
		{
			name:  "invalid character stops",
			input: "a # b",
			want:  []TokenType{TokenIdent, TokenError},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []TokenType
			for _, tok := range Tokenize(tt.input) {
				got = append(got, tok.Type)
			}
			require.Equal(t, tt.want, got)
		})
	}
}

func TestLexer_Values(t *testing.T) {
	tests := []struct {
		name  string
		input string
		typ   TokenType
		value string
	}{
		{name: "string", input: "'hello'", typ: TokenString, value: "hello"},
		{name: "escaped quote", input: "'it''s'", typ: TokenString, value: "it's"},
		{name: "quoted identifier", input: `"my col"`, typ: TokenQuotedIdent, value: "my col"},
		{name: "decimal", input: "3.25", typ: TokenNumber, value: "3.25"},
		{name: "leading dot", input: ".5", typ: TokenNumber, value: ".5"},
		{name: "exponent", input: "1e-3", typ: TokenNumber, value: "1e-3"},
		{name: "unicode identifier", input: "größe", typ: TokenIdent, value: "größe"},
		{name: "unterminated string", input: "'abc", typ: TokenError, value: "unterminated string"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok := NewLexer(tt.input).NextToken()
			require.Equal(t, tt.typ, tok.Type)
			require.Equal(t, tt.value, tok.Value)
			require.Equal(t, 0, tok.Pos)
		})
	}
}

func TestLexer_Positions(t *testing.T) {
	tokens := Tokenize("SELECT  ä FROM t")
	require.Equal(t, 0, tokens[0].Pos)
	require.Equal(t, 8, tokens[1].Pos)
	require.Equal(t, 11, tokens[2].Pos) // ä is two bytes
}
