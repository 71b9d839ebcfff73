package sql

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

var singleCharTokens = map[rune]TokenType{
	'=': TokenEqual,
	'+': TokenPlus,
	'-': TokenMinus,
	'*': TokenStar,
	'/': TokenSlash,
	'%': TokenPercent,
	',': TokenComma,
	'(': TokenLeftParen,
	')': TokenRightParen,
	';': TokenSemicolon,
}

// Lexer tokenizes SQL query strings
type Lexer struct {
	input string
	pos   int // offset of ch
	next  int // offset after ch
	ch    rune
}

// NewLexer creates a new lexer
func NewLexer(input string) *Lexer {
	l := &Lexer{input: input}
	l.readChar()
	return l
}

// readChar reads the next character
func (l *Lexer) readChar() {
	l.pos = l.next
	if l.next >= len(l.input) {
		l.ch = 0
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.next:])
	l.ch = r
	l.next += size
}

// peekChar looks at the next character without advancing
func (l *Lexer) peekChar() rune {
	if l.next >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.next:])
	return r
}

// skipWhitespace skips whitespace characters and -- comments
func (l *Lexer) skipWhitespace() {
	for {
		switch {
		case l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r':
			l.readChar()
		case l.ch == '-' && l.peekChar() == '-':
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
		default:
			return
		}
	}
}

// readQuoted reads a quoted string or identifier. A doubled quote stands for
// the quote character itself. ok is false when the closing quote is missing.
func (l *Lexer) readQuoted(quote rune) (value string, ok bool) {
	var result strings.Builder
	l.readChar() // skip opening quote

	for l.ch != 0 {
		if l.ch == quote {
			if l.peekChar() != quote {
				l.readChar() // skip closing quote
				return result.String(), true
			}
			l.readChar()
		}
		result.WriteRune(l.ch)
		l.readChar()
	}
	return result.String(), false
}

// readNumber reads an unsigned integer or decimal number with an optional
// exponent
func (l *Lexer) readNumber() string {
	start := l.pos
	for unicode.IsDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && unicode.IsDigit(l.peekChar()) {
		l.readChar()
		for unicode.IsDigit(l.ch) {
			l.readChar()
		}
	}
	if l.ch == 'e' || l.ch == 'E' {
		p := l.peekChar()
		if unicode.IsDigit(p) || p == '+' || p == '-' {
			l.readChar()
			if l.ch == '+' || l.ch == '-' {
				l.readChar()
			}
			for unicode.IsDigit(l.ch) {
				l.readChar()
			}
		}
	}
	return l.input[start:l.pos]
}

// readIdentifier reads an identifier or keyword
func (l *Lexer) readIdentifier() string {
	start := l.pos
	for unicode.IsLetter(l.ch) || unicode.IsDigit(l.ch) || l.ch == '_' {
		l.readChar()
	}
	return l.input[start:l.pos]
}

// NextToken returns the next token
func (l *Lexer) NextToken() Token {
	l.skipWhitespace()

	start := l.pos
	tok := func(t TokenType, v string) Token {
		return Token{Type: t, Value: v, Pos: start}
	}

	if t, ok := singleCharTokens[l.ch]; ok {
		v := string(l.ch)
		l.readChar()
		return tok(t, v)
	}

	switch l.ch {
	case 0:
		return tok(TokenEOF, "")
	case '!':
		if l.peekChar() == '=' {
			l.readChar()
			l.readChar()
			return tok(TokenNotEqual, "!=")
		}
		l.readChar()
		return tok(TokenError, "!")
	case '<':
		switch l.peekChar() {
		case '=':
			l.readChar()
			l.readChar()
			return tok(TokenLessEqual, "<=")
		case '>':
			l.readChar()
			l.readChar()
			return tok(TokenNotEqual, "<>")
		}
		l.readChar()
		return tok(TokenLess, "<")
	case '>':
		if l.peekChar() == '=' {
			l.readChar()
			l.readChar()
			return tok(TokenGreaterEqual, ">=")
		}
		l.readChar()
		return tok(TokenGreater, ">")
	case '\'':
		value, ok := l.readQuoted('\'')
		if !ok {
			return tok(TokenError, "unterminated string")
		}
		return tok(TokenString, value)
	case '"':
		value, ok := l.readQuoted('"')
		if !ok {
			return tok(TokenError, "unterminated quoted identifier")
		}
		return tok(TokenQuotedIdent, value)
	case '.':
		if unicode.IsDigit(l.peekChar()) {
			return tok(TokenNumber, l.readNumber())
		}
		l.readChar()
		return tok(TokenDot, ".")
	}

	switch {
	case unicode.IsDigit(l.ch):
		return tok(TokenNumber, l.readNumber())
	case unicode.IsLetter(l.ch) || l.ch == '_':
		value := l.readIdentifier()
		if t, ok := keywords[strings.ToUpper(value)]; ok {
			return tok(t, value)
		}
		return tok(TokenIdent, value)
	}

	ch := l.ch
	l.readChar()
	return tok(TokenError, string(ch))
}

// Tokenize returns all tokens from the input, stopping after EOF or the
// first error token
func Tokenize(input string) []Token {
	lexer := NewLexer(input)
	var tokens []Token

	for {
		tok := lexer.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF || tok.Type == TokenError {
			break
		}
	}

	return tokens
}
