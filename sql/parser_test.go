package sql

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vegasq/quiver/expr"
	"github.com/vegasq/quiver/internal/errs"
)

func TestParser_TableName(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantTable string
	}{
		{name: "identifier", query: "select * from t", wantTable: "t"},
		{name: "dotted", query: "select * from data.parquet", wantTable: "data.parquet"},
		{name: "path", query: "select * from testdata/simple.parquet where a > 1", wantTable: "testdata/simple.parquet"},
		{name: "glob", query: "select * from ./logs/*.parquet", wantTable: "./logs/*.parquet"},
		{name: "quoted identifier", query: `select * from "my file.parquet"`, wantTable: "my file.parquet"},
		{name: "string", query: "select * from 'x y.parquet'", wantTable: "x y.parquet"},
		{name: "trailing semicolon", query: "select * from t;", wantTable: "t"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt, err := Parse(tt.query)
			require.NoError(t, err)
			require.Equal(t, tt.wantTable, stmt.Table)
		})
	}
}

func TestParser_Clauses(t *testing.T) {
	stmt, err := Parse("SELECT s, COUNT(*) AS n, SUM(a + 1) total FROM t WHERE a > 1 AND NOT b IS NULL " +
		"GROUP BY s ORDER BY n DESC, s NULLS LAST LIMIT 10")
	require.NoError(t, err)

	require.Len(t, stmt.Items, 3)
	require.Equal(t, "s", stmt.Items[0].Expr.String())
	require.Equal(t, "n", stmt.Items[1].Alias)
	require.Equal(t, "COUNT(*)", stmt.Items[1].Expr.String())
	require.Equal(t, "total", stmt.Items[2].Alias)
	require.Equal(t, "SUM(a + 1)", stmt.Items[2].Expr.String())

	require.Equal(t, "(a > 1) AND (NOT (b IS NULL))", stmt.Where.String())
	require.Len(t, stmt.GroupBy, 1)
	require.Len(t, stmt.OrderBy, 2)
	require.False(t, stmt.OrderBy[0].Ascending)
	require.True(t, stmt.OrderBy[1].Ascending)
	require.NotNil(t, stmt.Limit)
	require.Equal(t, 10, *stmt.Limit)

	require.Equal(t, "SELECT s, COUNT(*) AS n, SUM(a + 1) AS total FROM t WHERE (a > 1) AND (NOT (b IS NULL)) "+
		"GROUP BY s ORDER BY n DESC, s ASC LIMIT 10", stmt.String())
}

func TestParser_Expressions(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "multiplication binds tighter", input: "a + b * c", want: "a + (b * c)"},
		{name: "parentheses kept", input: "(a + b) * c", want: "(a + b) * c"},
		{name: "left associative", input: "a - b - c", want: "(a - b) - c"},
		{name: "and binds tighter than or", input: "a = 1 OR b = 2 AND c = 3", want: "(a = 1) OR ((b = 2) AND (c = 3))"},
		{name: "negative literal", input: "-5", want: "-5"},
		{name: "negated column", input: "-a", want: "-a"},
		{name: "is not null", input: "a IS NOT NULL", want: "a IS NOT NULL"},
		{name: "cast", input: "CAST(a AS BIGINT)", want: "CAST(a AS Int64)"},
		{name: "cast multi word type", input: "CAST(a AS DOUBLE PRECISION)", want: "CAST(a AS Float64)"},
		{name: "function names upper cased", input: "upper(s)", want: "UPPER(s)"},
		{name: "no argument function", input: "f()", want: "F()"},
		{name: "float literal", input: "1.5", want: "1.5"},
		{name: "string literal", input: "'it''s'", want: "'it''s'"},
		{name: "boolean", input: "true", want: "true"},
		{name: "quoted column", input: `"Some Col"`, want: "Some Col"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt, err := Parse("SELECT " + tt.input + " FROM t")
			require.NoError(t, err)
			require.Equal(t, tt.want, stmt.Items[0].Expr.String())
		})
	}
}

func TestParser_Literals(t *testing.T) {
	stmt, err := Parse("SELECT 7, 2.5, -9223372036854775808, 1e400, NULL FROM t")
	require.NoError(t, err)

	values := make([]any, len(stmt.Items))
	for i, item := range stmt.Items {
		lit, ok := item.Expr.(*expr.Literal)
		require.True(t, ok)
		values[i] = lit.Value
	}
	require.Equal(t, int64(7), values[0])
	require.Equal(t, 2.5, values[1])
	require.Equal(t, int64(-9223372036854775808), values[2])
	require.IsType(t, float64(0), values[3])
	require.Nil(t, values[4])
}

func TestParser_Unsupported(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		construct string
	}{
		{name: "join", query: "SELECT * FROM a JOIN b ON a.x = b.x", construct: "JOIN"},
		{name: "having", query: "SELECT s FROM t GROUP BY s HAVING COUNT(*) > 1", construct: "HAVING"},
		{name: "distinct", query: "SELECT DISTINCT s FROM t", construct: "DISTINCT"},
		{name: "count distinct", query: "SELECT COUNT(DISTINCT s) FROM t", construct: "COUNT(DISTINCT)"},
		{name: "offset", query: "SELECT s FROM t LIMIT 1 OFFSET 2", construct: "OFFSET"},
		{name: "in", query: "SELECT s FROM t WHERE a IN (1, 2)", construct: "IN"},
		{name: "not like", query: "SELECT s FROM t WHERE s NOT LIKE 'x%'", construct: "NOT LIKE"},
		{name: "between", query: "SELECT s FROM t WHERE a BETWEEN 1 AND 2", construct: "BETWEEN"},
		{name: "case", query: "SELECT CASE WHEN a > 1 THEN 1 END FROM t", construct: "CASE"},
		{name: "subquery", query: "SELECT (SELECT 1 FROM u) FROM t", construct: "subquery"},
		{name: "from subquery", query: "SELECT * FROM (SELECT 1 FROM u)", construct: "subquery in FROM"},
		{name: "with", query: "WITH x AS (SELECT 1 FROM t) SELECT * FROM x", construct: "WITH"},
		{name: "exists", query: "SELECT s FROM t WHERE EXISTS (SELECT 1 FROM u)", construct: "EXISTS"},
		{name: "union", query: "SELECT s FROM t UNION SELECT s FROM u", construct: "UNION"},
		{name: "nulls first", query: "SELECT s FROM t ORDER BY s NULLS FIRST", construct: "NULLS FIRST"},
		{name: "window", query: "SELECT SUM(a) OVER (PARTITION BY s) FROM t", construct: "window function"},
		{name: "qualified column", query: "SELECT t.a FROM t", construct: "qualified column reference"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.query)
			require.ErrorIs(t, err, errs.ErrUnsupportedSQL)
			require.Contains(t, err.Error(), tt.construct)
		})
	}
}

func TestParser_SyntaxErrors(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{name: "missing SELECT", query: "FROM t"},
		{name: "missing FROM", query: "SELECT a WHERE a > 1"},
		{name: "missing table", query: "SELECT a FROM WHERE a > 1"},
		{name: "dangling operator", query: "SELECT a FROM t WHERE a >"},
		{name: "dangling AND", query: "SELECT a FROM t WHERE a > 1 AND"},
		{name: "unclosed paren", query: "SELECT (a + 1 FROM t"},
		{name: "trailing tokens", query: "SELECT a FROM t t2 t3"},
		{name: "invalid character", query: "SELECT a FROM t WHERE a # 1"},
		{name: "unterminated string", query: "SELECT 'abc FROM t"},
		{name: "sum star", query: "SELECT SUM(*) FROM t"},
		{name: "empty", query: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.query)
			require.ErrorIs(t, err, errs.ErrUnsupportedSQL)
		})
	}
}

func TestParser_Limits(t *testing.T) {
	_, err := Parse("SELECT a FROM t LIMIT -1")
	require.Error(t, err)

	_, err = Parse("SELECT a, COUNT(a, b) FROM t")
	require.ErrorIs(t, err, errs.ErrTypeMismatch)

	deep := strings.Repeat("(", DefaultLimits.Depth+1) + "a" + strings.Repeat(")", DefaultLimits.Depth+1)
	tests := []struct {
		name    string
		query   string
		wantMsg string
	}{
		{name: "query bytes", query: strings.Repeat(" ", DefaultLimits.QueryBytes+1), wantMsg: "bytes (max"},
		{name: "tokens", query: "SELECT " + strings.Repeat("a, ", DefaultLimits.Tokens/2) + "a FROM t", wantMsg: "tokens"},
		{name: "depth", query: "SELECT " + deep + " FROM t", wantMsg: "nesting deeper than 100 at position 107"},
		{name: "identifier", query: "SELECT " + strings.Repeat("x", DefaultLimits.IdentifierBytes+1) + " FROM t", wantMsg: "identifier of 257 bytes at position 7"},
		{name: "table name", query: "SELECT a FROM '" + strings.Repeat("x", DefaultLimits.TableNameBytes+1) + "'", wantMsg: "table name of 4097 bytes at position 14"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.query)
			require.ErrorIs(t, err, ErrLimitExceeded)
			require.ErrorIs(t, err, errs.ErrInvalidArgument)
			require.ErrorContains(t, err, tt.wantMsg)
		})
	}

	_, err = Parse("SELECT a FROM ''")
	require.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestLimits_Parse(t *testing.T) {
	tight := Limits{Tokens: 12, Depth: 2}

	_, err := tight.Parse("SELECT a FROM t WHERE a > 1 AND a < 5")
	require.ErrorIs(t, err, ErrLimitExceeded)
	require.ErrorContains(t, err, "more than 12 tokens")

	_, err = tight.Parse("SELECT ((a)) FROM t")
	require.ErrorIs(t, err, ErrLimitExceeded)
	require.ErrorContains(t, err, "nesting deeper than 2")

	stmt, err := tight.Parse("SELECT (a) FROM t")
	require.NoError(t, err)
	require.Equal(t, "t", stmt.Table)

	// zero disables every check
	_, err = Limits{}.Parse("SELECT " + strings.Repeat("(", 200) + "a" + strings.Repeat(")", 200) + " FROM t")
	require.NoError(t, err)
}
