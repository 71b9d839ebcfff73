package sql

import "fmt"

// TokenType represents the type of a token
type TokenType int

const (
	// Keywords
	TokenSelect TokenType = iota
	TokenFrom
	TokenWhere
	TokenAnd
	TokenOr
	TokenNot
	TokenAs
	TokenGroup
	TokenBy
	TokenOrder
	TokenAsc
	TokenDesc
	TokenLimit
	TokenIs
	TokenNull
	TokenCast
	TokenBool

	// Recognised but outside the supported grammar
	TokenUnsupported

	// Operators
	TokenEqual        // =
	TokenNotEqual     // != or <>
	TokenLess         // <
	TokenGreater      // >
	TokenLessEqual    // <=
	TokenGreaterEqual // >=
	TokenPlus         // +
	TokenMinus        // -
	TokenStar         // *
	TokenSlash        // /
	TokenPercent      // %

	// Literals
	TokenString
	TokenNumber
	TokenIdent
	TokenQuotedIdent

	// Delimiters
	TokenComma      // ,
	TokenLeftParen  // (
	TokenRightParen // )
	TokenDot        // .
	TokenSemicolon  // ;

	// Special
	TokenEOF
	TokenError
)

var tokenNames = map[TokenType]string{
	TokenSelect:       "SELECT",
	TokenFrom:         "FROM",
	TokenWhere:        "WHERE",
	TokenAnd:          "AND",
	TokenOr:           "OR",
	TokenNot:          "NOT",
	TokenAs:           "AS",
	TokenGroup:        "GROUP",
	TokenBy:           "BY",
	TokenOrder:        "ORDER",
	TokenAsc:          "ASC",
	TokenDesc:         "DESC",
	TokenLimit:        "LIMIT",
	TokenIs:           "IS",
	TokenNull:         "NULL",
	TokenCast:         "CAST",
	TokenBool:         "boolean",
	TokenUnsupported:  "keyword",
	TokenEqual:        "=",
	TokenNotEqual:     "<>",
	TokenLess:         "<",
	TokenGreater:      ">",
	TokenLessEqual:    "<=",
	TokenGreaterEqual: ">=",
	TokenPlus:         "+",
	TokenMinus:        "-",
	TokenStar:         "*",
	TokenSlash:        "/",
	TokenPercent:      "%",
	TokenString:       "string",
	TokenNumber:       "number",
	TokenIdent:        "identifier",
	TokenQuotedIdent:  "quoted identifier",
	TokenComma:        ",",
	TokenLeftParen:    "(",
	TokenRightParen:   ")",
	TokenDot:          ".",
	TokenSemicolon:    ";",
	TokenEOF:          "end of input",
	TokenError:        "invalid character",
}

func (t TokenType) String() string {
	if s, ok := tokenNames[t]; ok {
		return s
	}
	return fmt.Sprintf("TokenType(%d)", int(t))
}

// Token represents a lexical token
type Token struct {
	Type  TokenType
	Value string
	Pos   int // byte offset in the query
}

// keywords maps upper-cased words to their token type.
var keywords = map[string]TokenType{
	"SELECT": TokenSelect,
	"FROM":   TokenFrom,
	"WHERE":  TokenWhere,
	"AND":    TokenAnd,
	"OR":     TokenOr,
	"NOT":    TokenNot,
	"AS":     TokenAs,
	"GROUP":  TokenGroup,
	"BY":     TokenBy,
	"ORDER":  TokenOrder,
	"ASC":    TokenAsc,
	"DESC":   TokenDesc,
	"LIMIT":  TokenLimit,
	"IS":     TokenIs,
	"NULL":   TokenNull,
	"CAST":   TokenCast,
	"TRUE":   TokenBool,
	"FALSE":  TokenBool,

	"HAVING":    TokenUnsupported,
	"DISTINCT":  TokenUnsupported,
	"OFFSET":    TokenUnsupported,
	"IN":        TokenUnsupported,
	"LIKE":      TokenUnsupported,
	"ILIKE":     TokenUnsupported,
	"BETWEEN":   TokenUnsupported,
	"CASE":      TokenUnsupported,
	"WHEN":      TokenUnsupported,
	"THEN":      TokenUnsupported,
	"ELSE":      TokenUnsupported,
	"END":       TokenUnsupported,
	"WITH":      TokenUnsupported,
	"RECURSIVE": TokenUnsupported,
	"OVER":      TokenUnsupported,
	"PARTITION": TokenUnsupported,
	"EXISTS":    TokenUnsupported,
	"JOIN":      TokenUnsupported,
	"INNER":     TokenUnsupported,
	"LEFT":      TokenUnsupported,
	"RIGHT":     TokenUnsupported,
	"FULL":      TokenUnsupported,
	"OUTER":     TokenUnsupported,
	"CROSS":     TokenUnsupported,
	"ON":        TokenUnsupported,
	"UNION":     TokenUnsupported,
	"INTERSECT": TokenUnsupported,
	"EXCEPT":    TokenUnsupported,
}
