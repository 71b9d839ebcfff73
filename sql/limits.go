package sql

import (
	"fmt"

	"github.com/vegasq/quiver/internal/errs"
)

// ErrLimitExceeded is returned for queries larger than the parser accepts.
var ErrLimitExceeded = fmt.Errorf("%w: query exceeds parser limits", errs.ErrInvalidArgument)

// Limits bounds the size of the queries a parser accepts. Zero fields
// disable the corresponding check.
type Limits struct {
	QueryBytes      int
	Tokens          int
	Depth           int // nesting of parenthesised, NOT and unary expressions
	IdentifierBytes int
	TableNameBytes  int // long enough for file paths
}

// DefaultLimits are the limits Parse applies.
var DefaultLimits = Limits{
	QueryBytes:      1 << 20,
	Tokens:          10000,
	Depth:           100,
	IdentifierBytes: 256,
	TableNameBytes:  4096,
}

// Parse parses query within l.
func (l Limits) Parse(query string) (*Statement, error) {
	if exceeds(len(query), l.QueryBytes) {
		return nil, fmt.Errorf("%w: query is %d bytes (max %d)", ErrLimitExceeded, len(query), l.QueryBytes)
	}

	tokens := Tokenize(query)
	if exceeds(len(tokens), l.Tokens) {
		return nil, fmt.Errorf("%w: more than %d tokens, the first one over starts at position %d",
			ErrLimitExceeded, l.Tokens, tokens[l.Tokens].Pos)
	}
	return newParser(tokens, l).parse()
}

func exceeds(n, limit int) bool { return limit > 0 && n > limit }

// enter descends one expression level.
func (p *Parser) enter() error {
	p.depth++
	if exceeds(p.depth, p.limits.Depth) {
		return fmt.Errorf("%w: expression nesting deeper than %d at position %d",
			ErrLimitExceeded, p.limits.Depth, p.current().Pos)
	}
	return nil
}

func (p *Parser) leave() { p.depth-- }

// checkIdent rejects over-long column names and aliases.
func (p *Parser) checkIdent(tok Token) error {
	if exceeds(len(tok.Value), p.limits.IdentifierBytes) {
		return fmt.Errorf("%w: identifier of %d bytes at position %d (max %d)",
			ErrLimitExceeded, len(tok.Value), tok.Pos, p.limits.IdentifierBytes)
	}
	return nil
}

// checkTableName rejects empty and over-long table names starting at pos.
func (p *Parser) checkTableName(name string, pos int) error {
	if name == "" {
		return fmt.Errorf("%w: empty table name at position %d", errs.ErrInvalidArgument, pos)
	}
	if exceeds(len(name), p.limits.TableNameBytes) {
		return fmt.Errorf("%w: table name of %d bytes at position %d (max %d)",
			ErrLimitExceeded, len(name), pos, p.limits.TableNameBytes)
	}
	return nil
}
