package sql

import (
	"strconv"
	"strings"

	"github.com/vegasq/quiver/expr"
)

// Statement is a parsed SELECT statement. Expressions are unbound; the
// planner resolves them against the table schema.
type Statement struct {
	Items   []SelectItem
	Table   string
	Where   expr.Expr // nil when absent
	GroupBy []expr.Expr
	OrderBy []OrderItem
	Limit   *int // nil when absent
}

// SelectItem is one entry of the select list
type SelectItem struct {
	Expr  expr.Expr // nil for *
	Alias string
	Star  bool
}

// OrderItem is one ORDER BY key
type OrderItem struct {
	Expr      expr.Expr
	Ascending bool
}

func (s *Statement) String() string {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	for i, item := range s.Items {
		if i > 0 {
			sb.WriteString(", ")
		}
		switch {
		case item.Star:
			sb.WriteString("*")
		case item.Alias != "":
			sb.WriteString(item.Expr.String() + " AS " + item.Alias)
		default:
			sb.WriteString(item.Expr.String())
		}
	}
	sb.WriteString(" FROM " + s.Table)
	if s.Where != nil {
		sb.WriteString(" WHERE " + s.Where.String())
	}
	if len(s.GroupBy) > 0 {
		parts := make([]string, len(s.GroupBy))
		for i, g := range s.GroupBy {
			parts[i] = g.String()
		}
		sb.WriteString(" GROUP BY " + strings.Join(parts, ", "))
	}
	if len(s.OrderBy) > 0 {
		parts := make([]string, len(s.OrderBy))
		for i, o := range s.OrderBy {
			dir := " DESC"
			if o.Ascending {
				dir = " ASC"
			}
			parts[i] = o.Expr.String() + dir
		}
		sb.WriteString(" ORDER BY " + strings.Join(parts, ", "))
	}
	if s.Limit != nil {
		sb.WriteString(" LIMIT " + strconv.Itoa(*s.Limit))
	}
	return sb.String()
}
