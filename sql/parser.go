package sql

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/vegasq/quiver/expr"
	"github.com/vegasq/quiver/internal/errs"
	"github.com/vegasq/quiver/types"
)

// Parser parses SQL queries into a Statement
type Parser struct {
	tokens []Token
	pos    int
	limits Limits
	depth  int
}

// NewParser creates a parser over tokens with the default limits
func NewParser(tokens []Token) *Parser {
	return newParser(tokens, DefaultLimits)
}

func newParser(tokens []Token, limits Limits) *Parser {
	return &Parser{tokens: tokens, limits: limits}
}

// current returns the current token
func (p *Parser) current() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: TokenEOF}
	}
	return p.tokens[p.pos]
}

// peek returns the next token without advancing
func (p *Parser) peek() Token {
	if p.pos+1 >= len(p.tokens) {
		return Token{Type: TokenEOF}
	}
	return p.tokens[p.pos+1]
}

// advance moves to the next token
func (p *Parser) advance() {
	p.pos++
}

// errorf reports a syntax error at the current token
func (p *Parser) errorf(format string, args ...any) error {
	tok := p.current()
	msg := fmt.Sprintf(format, args...)
	if tok.Type == TokenError {
		msg = fmt.Sprintf("%s (%s)", msg, tok.Value)
	}
	return fmt.Errorf("%w: %s at position %d", errs.ErrUnsupportedSQL, msg, tok.Pos)
}

// unsupported reports a recognised construct outside the grammar
func (p *Parser) unsupported(construct string) error {
	return fmt.Errorf("%w: %s is not supported (position %d)",
		errs.ErrUnsupportedSQL, construct, p.current().Pos)
}

// expect checks if current token matches expected type and advances
func (p *Parser) expect(tokType TokenType) error {
	if p.current().Type != tokType {
		if p.current().Type == TokenUnsupported {
			return p.unsupported(strings.ToUpper(p.current().Value))
		}
		return p.errorf("expected %v, got %v", tokType, p.current().Type)
	}
	p.advance()
	return nil
}

// Parse parses a SQL query within DefaultLimits
func Parse(query string) (*Statement, error) {
	return DefaultLimits.Parse(query)
}

// parse parses one statement, optionally followed by a semicolon
func (p *Parser) parse() (*Statement, error) {
	stmt, err := p.parseStatement()
	if err != nil {
		return nil, err
	}

	if p.current().Type == TokenSemicolon {
		p.advance()
	}
	switch p.current().Type {
	case TokenEOF:
		return stmt, nil
	case TokenUnsupported:
		return nil, p.unsupported(strings.ToUpper(p.current().Value))
	}
	return nil, p.errorf("unexpected %q after query", p.current().Value)
}

// parseStatement parses:
// SELECT items FROM table [WHERE expr] [GROUP BY exprs] [ORDER BY keys] [LIMIT n]
func (p *Parser) parseStatement() (*Statement, error) {
	if p.current().Type == TokenUnsupported && strings.EqualFold(p.current().Value, "WITH") {
		return nil, p.unsupported("WITH")
	}
	if err := p.expect(TokenSelect); err != nil {
		return nil, err
	}
	if p.current().Type == TokenUnsupported && strings.EqualFold(p.current().Value, "DISTINCT") {
		return nil, p.unsupported("SELECT DISTINCT")
	}

	stmt := &Statement{}
	items, err := p.parseSelectList()
	if err != nil {
		return nil, err
	}
	stmt.Items = items

	if err := p.expect(TokenFrom); err != nil {
		return nil, err
	}
	if stmt.Table, err = p.parseTableName(); err != nil {
		return nil, err
	}

	if p.current().Type == TokenUnsupported {
		switch strings.ToUpper(p.current().Value) {
		case "JOIN", "INNER", "LEFT", "RIGHT", "FULL", "OUTER", "CROSS":
			return nil, p.unsupported("JOIN")
		}
	}
	if p.current().Type == TokenComma {
		return nil, p.unsupported("selecting from multiple tables")
	}

	if p.current().Type == TokenWhere {
		p.advance()
		if stmt.Where, err = p.parseExpr(); err != nil {
			return nil, err
		}
	}

	if p.current().Type == TokenGroup {
		p.advance()
		if err := p.expect(TokenBy); err != nil {
			return nil, err
		}
		if stmt.GroupBy, err = p.parseExprList(); err != nil {
			return nil, err
		}
	}

	if p.current().Type == TokenUnsupported && strings.EqualFold(p.current().Value, "HAVING") {
		return nil, p.unsupported("HAVING")
	}

	if p.current().Type == TokenOrder {
		p.advance()
		if err := p.expect(TokenBy); err != nil {
			return nil, err
		}
		if stmt.OrderBy, err = p.parseOrderByList(); err != nil {
			return nil, err
		}
	}

	if p.current().Type == TokenLimit {
		limit, err := p.parseLimit()
		if err != nil {
			return nil, err
		}
		stmt.Limit = &limit
	}

	if p.current().Type == TokenUnsupported && strings.EqualFold(p.current().Value, "OFFSET") {
		return nil, p.unsupported("OFFSET")
	}

	return stmt, nil
}

// parseSelectList parses a comma separated list of select items
func (p *Parser) parseSelectList() ([]SelectItem, error) {
	var items []SelectItem
	for {
		item, err := p.parseSelectItem()
		if err != nil {
			return nil, err
		}
		items = append(items, item)

		if p.current().Type != TokenComma {
			return items, nil
		}
		p.advance()
	}
}

// parseSelectItem parses *, expr, expr AS alias or expr alias
func (p *Parser) parseSelectItem() (SelectItem, error) {
	if p.current().Type == TokenStar {
		p.advance()
		return SelectItem{Star: true}, nil
	}

	e, err := p.parseExpr()
	if err != nil {
		return SelectItem{}, err
	}
	item := SelectItem{Expr: e}

	switch p.current().Type {
	case TokenAs:
		p.advance()
		if item.Alias, err = p.parseIdentifier("alias"); err != nil {
			return SelectItem{}, err
		}
	case TokenIdent, TokenQuotedIdent:
		if item.Alias, err = p.parseIdentifier("alias"); err != nil {
			return SelectItem{}, err
		}
	}
	return item, nil
}

// parseIdentifier parses a bare or double-quoted identifier
func (p *Parser) parseIdentifier(what string) (string, error) {
	tok := p.current()
	if tok.Type != TokenIdent && tok.Type != TokenQuotedIdent {
		return "", p.errorf("expected %s, got %v", what, tok.Type)
	}
	if err := p.checkIdent(tok); err != nil {
		return "", err
	}
	p.advance()
	return tok.Value, nil
}

// pathTokens may appear in an unquoted table name such as
// testdata/simple.parquet or ./data/*.parquet
var pathTokens = map[TokenType]bool{
	TokenIdent:  true,
	TokenNumber: true,
	TokenDot:    true,
	TokenSlash:  true,
	TokenMinus:  true,
	TokenStar:   true,
}

// parseTableName parses an identifier, a quoted identifier, a string
// literal or an unquoted file path. A path ends at the first whitespace.
func (p *Parser) parseTableName() (string, error) {
	var name string
	start := p.current().Pos
	switch tok := p.current(); tok.Type {
	case TokenString, TokenQuotedIdent:
		name = tok.Value
		p.advance()
	case TokenIdent, TokenDot, TokenSlash:
		var sb strings.Builder
		end := tok.Pos
		for {
			cur := p.current()
			contiguous := cur.Pos == end
			if !contiguous || !(pathTokens[cur.Type] || (sb.Len() > 0 && isWord(cur))) {
				break
			}
			sb.WriteString(cur.Value)
			end = cur.Pos + len(cur.Value)
			p.advance()
		}
		name = sb.String()
	case TokenLeftParen:
		return "", p.unsupported("subquery in FROM")
	default:
		return "", p.errorf("expected table name, got %v", tok.Type)
	}
	if err := p.checkTableName(name, start); err != nil {
		return "", err
	}
	return name, nil
}

// isWord reports whether tok is a keyword, which can be part of a path
// such as data/select.parquet
func isWord(tok Token) bool {
	_, ok := keywords[strings.ToUpper(tok.Value)]
	return ok && tok.Value != ""
}

// parseExprList parses a comma separated list of expressions
func (p *Parser) parseExprList() ([]expr.Expr, error) {
	var list []expr.Expr
	for {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		list = append(list, e)

		if p.current().Type != TokenComma {
			return list, nil
		}
		p.advance()
	}
}

// parseOrderByList parses ORDER BY keys (without the ORDER BY keywords)
func (p *Parser) parseOrderByList() ([]OrderItem, error) {
	var items []OrderItem
	for {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		item := OrderItem{Expr: e, Ascending: true}

		switch p.current().Type {
		case TokenAsc:
			p.advance()
		case TokenDesc:
			item.Ascending = false
			p.advance()
		}

		// nulls always sort last
		if p.current().Type == TokenIdent && strings.EqualFold(p.current().Value, "NULLS") {
			p.advance()
			switch tok := p.current(); {
			case tok.Type == TokenIdent && strings.EqualFold(tok.Value, "LAST"):
				p.advance()
			case tok.Type == TokenIdent && strings.EqualFold(tok.Value, "FIRST"):
				return nil, p.unsupported("NULLS FIRST")
			default:
				return nil, p.errorf("expected FIRST or LAST after NULLS")
			}
		}

		items = append(items, item)
		if p.current().Type != TokenComma {
			return items, nil
		}
		p.advance()
	}
}

// parseLimit parses the LIMIT clause
func (p *Parser) parseLimit() (int, error) {
	if err := p.expect(TokenLimit); err != nil {
		return 0, err
	}

	if p.current().Type != TokenNumber {
		return 0, p.errorf("expected number after LIMIT, got %v", p.current().Type)
	}

	numStr := p.current().Value
	limit, err := strconv.Atoi(numStr)
	if err != nil || limit < 0 {
		return 0, fmt.Errorf("%w: invalid LIMIT value %s", errs.ErrInvalidArgument, numStr)
	}

	p.advance()
	return limit, nil
}

// parseExpr parses a full expression
func (p *Parser) parseExpr() (expr.Expr, error) {
	return p.parseOr()
}

// parseOr parses OR expressions (lowest precedence)
func (p *Parser) parseOr() (expr.Expr, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}

	for p.current().Type == TokenOr {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = expr.Or(left, right)
	}

	return left, nil
}

// parseAnd parses AND expressions (higher precedence than OR)
func (p *Parser) parseAnd() (expr.Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}

	for p.current().Type == TokenAnd {
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = expr.And(left, right)
	}

	return left, nil
}

// parseNot parses prefix NOT
func (p *Parser) parseNot() (expr.Expr, error) {
	if p.current().Type != TokenNot {
		return p.parseComparison()
	}
	p.advance()

	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	if p.current().Type == TokenUnsupported && strings.EqualFold(p.current().Value, "EXISTS") {
		return nil, p.unsupported("EXISTS")
	}
	inner, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	return expr.NotExpr(inner), nil
}

var comparisonOps = map[TokenType]expr.Op{
	TokenEqual:        expr.OpEq,
	TokenNotEqual:     expr.OpNotEq,
	TokenLess:         expr.OpLt,
	TokenLessEqual:    expr.OpLtEq,
	TokenGreater:      expr.OpGt,
	TokenGreaterEqual: expr.OpGtEq,
}

// parseComparison parses comparisons and IS [NOT] NULL
func (p *Parser) parseComparison() (expr.Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}

	if op, ok := comparisonOps[p.current().Type]; ok {
		p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return expr.NewBinary(op, left, right), nil
	}

	switch tok := p.current(); tok.Type {
	case TokenIs:
		p.advance()
		negated := false
		if p.current().Type == TokenNot {
			negated = true
			p.advance()
		}
		if err := p.expect(TokenNull); err != nil {
			return nil, err
		}
		if negated {
			return expr.IsNotNullExpr(left), nil
		}
		return expr.IsNullExpr(left), nil
	case TokenNot:
		if next := p.peek(); next.Type == TokenUnsupported {
			p.advance()
			return nil, p.unsupported("NOT " + strings.ToUpper(next.Value))
		}
	case TokenUnsupported:
		switch kw := strings.ToUpper(tok.Value); kw {
		case "IN", "LIKE", "ILIKE", "BETWEEN":
			return nil, p.unsupported(kw)
		}
	}

	return left, nil
}

var additiveOps = map[TokenType]expr.Op{
	TokenPlus:  expr.OpAdd,
	TokenMinus: expr.OpSub,
}

var multiplicativeOps = map[TokenType]expr.Op{
	TokenStar:    expr.OpMul,
	TokenSlash:   expr.OpDiv,
	TokenPercent: expr.OpMod,
}

// parseAdditive parses + and -
func (p *Parser) parseAdditive() (expr.Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}

	for {
		op, ok := additiveOps[p.current().Type]
		if !ok {
			return left, nil
		}
		p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = expr.NewBinary(op, left, right)
	}
}

// parseMultiplicative parses *, / and %
func (p *Parser) parseMultiplicative() (expr.Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	for {
		op, ok := multiplicativeOps[p.current().Type]
		if !ok {
			return left, nil
		}
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = expr.NewBinary(op, left, right)
	}
}

// parseUnary parses unary minus and plus. A minus directly before a number
// is folded into the literal.
func (p *Parser) parseUnary() (expr.Expr, error) {
	switch p.current().Type {
	case TokenPlus:
		p.advance()
		return p.parseUnary()
	case TokenMinus:
		p.advance()
		if p.current().Type == TokenNumber {
			lit, err := parseNumber("-" + p.current().Value)
			if err != nil {
				return nil, p.errorf("%v", err)
			}
			p.advance()
			return lit, nil
		}

		if err := p.enter(); err != nil {
			return nil, err
		}
		defer p.leave()

		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return expr.Neg(inner), nil
	}
	return p.parsePrimary()
}

// parseNumber reads an integer literal as Int64 and anything else as
// Float64
func parseNumber(s string) (*expr.Literal, error) {
	if !strings.ContainsAny(s, ".eE") {
		if v, err := strconv.ParseInt(s, 10, 64); err == nil {
			return expr.Lit(v), nil
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return nil, fmt.Errorf("invalid number %q", s)
	}
	return expr.Lit(v), nil
}

// parsePrimary parses literals, column references, function calls, CAST
// and parenthesized expressions
func (p *Parser) parsePrimary() (expr.Expr, error) {
	tok := p.current()
	switch tok.Type {
	case TokenNumber:
		lit, err := parseNumber(tok.Value)
		if err != nil {
			return nil, p.errorf("%v", err)
		}
		p.advance()
		return lit, nil

	case TokenString:
		p.advance()
		return expr.Lit(tok.Value), nil

	case TokenBool:
		p.advance()
		return expr.Lit(strings.EqualFold(tok.Value, "TRUE")), nil

	case TokenNull:
		p.advance()
		return expr.Lit(nil), nil

	case TokenCast:
		return p.parseCast()

	case TokenQuotedIdent:
		if err := p.checkIdent(tok); err != nil {
			return nil, err
		}
		p.advance()
		return expr.Col(tok.Value), nil

	case TokenIdent:
		if p.peek().Type == TokenLeftParen {
			return p.parseFunctionCall()
		}
		if p.peek().Type == TokenDot {
			return nil, p.unsupported("qualified column reference")
		}
		if err := p.checkIdent(tok); err != nil {
			return nil, err
		}
		p.advance()
		return expr.Col(tok.Value), nil

	case TokenLeftParen:
		p.advance()
		if p.current().Type == TokenSelect {
			return nil, p.unsupported("subquery")
		}
		if err := p.enter(); err != nil {
			return nil, err
		}
		defer p.leave()

		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(TokenRightParen); err != nil {
			return nil, err
		}
		return inner, nil

	case TokenUnsupported:
		kw := strings.ToUpper(tok.Value)
		switch kw {
		case "CASE":
			return nil, p.unsupported("CASE expression")
		case "EXISTS":
			return nil, p.unsupported("EXISTS")
		}
		return nil, p.unsupported(kw)

	case TokenEOF:
		return nil, p.errorf("unexpected end of query")
	}

	return nil, p.errorf("unexpected %v", tok.Type)
}

// parseCast parses CAST(expr AS type). Multi-word type names such as
// DOUBLE PRECISION are joined before lookup.
func (p *Parser) parseCast() (expr.Expr, error) {
	if err := p.expect(TokenCast); err != nil {
		return nil, err
	}
	if err := p.expect(TokenLeftParen); err != nil {
		return nil, err
	}
	inner, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expect(TokenAs); err != nil {
		return nil, err
	}

	var words []string
	depth := 0
	for {
		tok := p.current()
		if tok.Type == TokenEOF || tok.Type == TokenError {
			return nil, p.errorf("unterminated CAST")
		}
		if tok.Type == TokenRightParen && depth == 0 {
			break
		}
		switch tok.Type {
		case TokenLeftParen:
			depth++
		case TokenRightParen:
			depth--
		}
		words = append(words, tok.Value)
		p.advance()
	}
	p.advance()

	if len(words) == 0 {
		return nil, p.errorf("expected type name in CAST")
	}
	dt, err := types.ParseSQLType(strings.Join(words, " "))
	if err != nil {
		return nil, err
	}
	return expr.CastTo(inner, dt), nil
}

// parseFunctionCall parses name(args). Aggregate names produce aggregate
// expressions; everything else is a scalar call resolved at planning.
func (p *Parser) parseFunctionCall() (expr.Expr, error) {
	name := strings.ToUpper(p.current().Value)
	p.advance()
	if err := p.expect(TokenLeftParen); err != nil {
		return nil, err
	}

	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	if fn, ok := expr.LookupAggregate(name); ok {
		return p.parseAggregateArgs(fn)
	}

	var args []expr.Expr
	if p.current().Type != TokenRightParen {
		var err error
		if args, err = p.parseExprList(); err != nil {
			return nil, err
		}
	}
	if err := p.expect(TokenRightParen); err != nil {
		return nil, err
	}
	if p.current().Type == TokenUnsupported && strings.EqualFold(p.current().Value, "OVER") {
		return nil, p.unsupported("window function")
	}
	return expr.CallFunc(name, args...), nil
}

func (p *Parser) parseAggregateArgs(fn expr.AggregateFunc) (expr.Expr, error) {
	if p.current().Type == TokenUnsupported && strings.EqualFold(p.current().Value, "DISTINCT") {
		return nil, p.unsupported(fn.String() + "(DISTINCT)")
	}

	var agg expr.Expr
	if p.current().Type == TokenStar {
		if fn != expr.AggCount {
			return nil, p.errorf("%s(*) is not valid", fn)
		}
		p.advance()
		agg = expr.CountAll()
	} else {
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if p.current().Type == TokenComma {
			return nil, fmt.Errorf("%w: %s takes exactly one argument", errs.ErrTypeMismatch, fn)
		}
		agg = &expr.Aggregate{Func: fn, Arg: arg}
	}

	if err := p.expect(TokenRightParen); err != nil {
		return nil, err
	}
	if p.current().Type == TokenUnsupported && strings.EqualFold(p.current().Value, "OVER") {
		return nil, p.unsupported("window function")
	}
	return agg, nil
}
