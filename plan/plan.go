// Package plan defines quiver's logical plan: a tree of relational operators
// over bound expressions.
//
// Nodes are built with the New* constructors, which bind their expressions
// against the input schema. A constructed node is therefore always typed and
// its Schema is known before anything is read.
package plan

import (
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/vegasq/quiver/catalog"
	"github.com/vegasq/quiver/expr"
	"github.com/vegasq/quiver/internal/errs"
	"github.com/vegasq/quiver/types"
)

// Node is a logical plan operator.
type Node interface {
	// Schema returns the schema of the batches the node produces.
	Schema() *arrow.Schema

	// Children returns the node's inputs.
	Children() []Node

	// String describes the node without its inputs.
	String() string
}

var (
	_ Node = (*Scan)(nil)
	_ Node = (*Filter)(nil)
	_ Node = (*Projection)(nil)
	_ Node = (*Aggregate)(nil)
	_ Node = (*Sort)(nil)
	_ Node = (*Limit)(nil)
)

// NoFetch marks a Sort without a row bound.
const NoFetch = -1

// Scan reads a table, optionally narrowed to a subset of its columns.
type Scan struct {
	Table      string
	Provider   catalog.TableProvider
	Projection []int // nil reads every column

	schema *arrow.Schema
}

// NewScan returns a scan of provider. projection holds column indexes into
// the provider's schema.
func NewScan(table string, provider catalog.TableProvider, projection []int) (*Scan, error) {
	schema, err := catalog.ProjectSchema(provider.Schema(), projection)
	if err != nil {
		return nil, err
	}
	return &Scan{Table: table, Provider: provider, Projection: projection, schema: schema}, nil
}

func (s *Scan) Schema() *arrow.Schema { return s.schema }
func (s *Scan) Children() []Node      { return nil }

func (s *Scan) String() string {
	if s.Projection == nil {
		return fmt.Sprintf("Scan: %s", s.Table)
	}
	return fmt.Sprintf("Scan: %s projection=[%s]", s.Table, strings.Join(fieldNames(s.schema), ", "))
}

// Filter keeps the rows for which Predicate is true. Rows where it is false
// or null are dropped.
type Filter struct {
	Input     Node
	Predicate expr.Expr
}

// NewFilter binds predicate against the schema of input.
func NewFilter(input Node, predicate expr.Expr, funcs expr.FunctionResolver) (*Filter, error) {
	bound, err := expr.Bind(predicate, input.Schema(), funcs)
	if err != nil {
		return nil, err
	}
	switch bound.Type().ID() {
	case arrow.BOOL:
	case arrow.NULL:
		bound, err = expr.Bind(expr.CastTo(bound, types.Boolean), input.Schema(), funcs)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: filter predicate %s is %s, want Boolean",
			errs.ErrTypeMismatch, bound, types.Name(bound.Type()))
	}
	return &Filter{Input: input, Predicate: bound}, nil
}

func (f *Filter) Schema() *arrow.Schema { return f.Input.Schema() }
func (f *Filter) Children() []Node      { return []Node{f.Input} }
func (f *Filter) String() string        { return "Filter: " + f.Predicate.String() }

// Projection computes one output column per expression.
type Projection struct {
	Input Node
	Exprs []expr.Expr

	schema *arrow.Schema
}

// NewProjection binds exprs against the schema of input. Output columns are
// named after their alias, column name or display name and must be unique.
func NewProjection(input Node, exprs []expr.Expr, funcs expr.FunctionResolver) (*Projection, error) {
	if len(exprs) == 0 {
		return nil, fmt.Errorf("%w: projection needs at least one expression", errs.ErrInvalidArgument)
	}

	bound := make([]expr.Expr, len(exprs))
	for i, e := range exprs {
		b, err := expr.Bind(e, input.Schema(), funcs)
		if err != nil {
			return nil, err
		}
		bound[i] = b
	}

	schema, err := outputSchema(bound)
	if err != nil {
		return nil, err
	}
	return &Projection{Input: input, Exprs: bound, schema: schema}, nil
}

func (p *Projection) Schema() *arrow.Schema { return p.schema }
func (p *Projection) Children() []Node      { return []Node{p.Input} }
func (p *Projection) String() string        { return "Projection: " + joinExprs(p.Exprs) }

// Aggregate groups its input by GroupBy and computes Aggregates per group.
// Without GroupBy the whole input is one group and exactly one row is
// produced, even for empty input. The output holds the group columns
// followed by the aggregate columns.
type Aggregate struct {
	Input      Node
	GroupBy    []expr.Expr
	Aggregates []expr.Expr // each an *expr.Aggregate, optionally aliased

	schema *arrow.Schema
}

// NewAggregate binds the grouping and aggregate expressions against input.
func NewAggregate(input Node, groupBy, aggregates []expr.Expr, funcs expr.FunctionResolver) (*Aggregate, error) {
	if len(groupBy) == 0 && len(aggregates) == 0 {
		return nil, fmt.Errorf("%w: aggregation needs group expressions or aggregates", errs.ErrInvalidArgument)
	}

	groups := make([]expr.Expr, len(groupBy))
	for i, e := range groupBy {
		b, err := expr.Bind(e, input.Schema(), funcs)
		if err != nil {
			return nil, err
		}
		groups[i] = b
	}

	binder := &expr.Binder{Schema: input.Schema(), Functions: funcs, AllowAggregates: true}
	aggs := make([]expr.Expr, len(aggregates))
	for i, e := range aggregates {
		if _, ok := expr.Unalias(e).(*expr.Aggregate); !ok {
			return nil, fmt.Errorf("%w: %s is not an aggregate function", errs.ErrInvalidArgument, e)
		}
		b, err := binder.Bind(e)
		if err != nil {
			return nil, err
		}
		aggs[i] = b
	}

	schema, err := outputSchema(append(append([]expr.Expr{}, groups...), aggs...))
	if err != nil {
		return nil, err
	}
	return &Aggregate{Input: input, GroupBy: groups, Aggregates: aggs, schema: schema}, nil
}

func (a *Aggregate) Schema() *arrow.Schema { return a.schema }
func (a *Aggregate) Children() []Node      { return []Node{a.Input} }

func (a *Aggregate) String() string {
	return fmt.Sprintf("Aggregate: groupBy=[%s], aggr=[%s]", joinExprs(a.GroupBy), joinExprs(a.Aggregates))
}

// SortKey orders rows by one expression. Nulls sort last in both
// directions.
type SortKey struct {
	Expr      expr.Expr
	Ascending bool
}

func (k SortKey) String() string {
	if k.Ascending {
		return k.Expr.String() + " ASC NULLS LAST"
	}
	return k.Expr.String() + " DESC NULLS LAST"
}

// Asc orders by e, smallest first.
func Asc(e expr.Expr) SortKey { return SortKey{Expr: e, Ascending: true} }

// Desc orders by e, largest first.
func Desc(e expr.Expr) SortKey { return SortKey{Expr: e} }

// Sort orders its input by Keys. Ties keep input order. When Fetch is not
// NoFetch only the first Fetch rows are produced.
type Sort struct {
	Input Node
	Keys  []SortKey
	Fetch int
}

// NewSort binds the sort keys against input.
func NewSort(input Node, keys []SortKey, fetch int, funcs expr.FunctionResolver) (*Sort, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: sort needs at least one key", errs.ErrInvalidArgument)
	}
	if fetch < NoFetch {
		return nil, fmt.Errorf("%w: negative fetch %d", errs.ErrInvalidArgument, fetch)
	}

	bound := make([]SortKey, len(keys))
	for i, k := range keys {
		b, err := expr.Bind(k.Expr, input.Schema(), funcs)
		if err != nil {
			return nil, err
		}
		if dt := b.Type(); dt.ID() != arrow.NULL && !types.IsOrderable(dt) {
			return nil, fmt.Errorf("%w: cannot sort by %s of type %s", errs.ErrTypeMismatch, b, types.Name(dt))
		}
		bound[i] = SortKey{Expr: b, Ascending: k.Ascending}
	}
	return &Sort{Input: input, Keys: bound, Fetch: fetch}, nil
}

func (s *Sort) Schema() *arrow.Schema { return s.Input.Schema() }
func (s *Sort) Children() []Node      { return []Node{s.Input} }

func (s *Sort) String() string {
	keys := make([]string, len(s.Keys))
	for i, k := range s.Keys {
		keys[i] = k.String()
	}
	if s.Fetch == NoFetch {
		return "Sort: " + strings.Join(keys, ", ")
	}
	return fmt.Sprintf("Sort: %s, fetch=%d", strings.Join(keys, ", "), s.Fetch)
}

// Limit passes through at most Fetch rows.
type Limit struct {
	Input Node
	Fetch int
}

// NewLimit limits input to n rows. n must not be negative.
func NewLimit(input Node, n int) (*Limit, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: limit must not be negative, got %d", errs.ErrInvalidArgument, n)
	}
	return &Limit{Input: input, Fetch: n}, nil
}

func (l *Limit) Schema() *arrow.Schema { return l.Input.Schema() }
func (l *Limit) Children() []Node      { return []Node{l.Input} }
func (l *Limit) String() string        { return fmt.Sprintf("Limit: fetch=%d", l.Fetch) }

// outputSchema names one field per expression.
func outputSchema(exprs []expr.Expr) (*arrow.Schema, error) {
	fields := make([]arrow.Field, len(exprs))
	seen := make(map[string]bool, len(exprs))
	for i, e := range exprs {
		name := expr.OutputName(e)
		if seen[name] {
			return nil, fmt.Errorf("%w: duplicate output column %q", errs.ErrInvalidArgument, name)
		}
		seen[name] = true
		fields[i] = arrow.Field{Name: name, Type: e.Type(), Nullable: true}
	}
	return arrow.NewSchema(fields, nil), nil
}

func fieldNames(schema *arrow.Schema) []string {
	names := make([]string, schema.NumFields())
	for i, f := range schema.Fields() {
		names[i] = f.Name
	}
	return names
}

func joinExprs(exprs []expr.Expr) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = e.String()
	}
	return strings.Join(parts, ", ")
}

// Format renders the plan tree, one node per line, children indented below
// their parent.
func Format(n Node) string {
	var sb strings.Builder
	format(&sb, n, 0)
	return sb.String()
}

func format(sb *strings.Builder, n Node, depth int) {
	sb.WriteString(strings.Repeat("  ", depth))
	sb.WriteString(n.String())
	sb.WriteByte('\n')
	for _, c := range n.Children() {
		format(sb, c, depth+1)
	}
}

// Walk visits n and its inputs in pre-order.
func Walk(n Node, fn func(Node)) {
	fn(n)
	for _, c := range n.Children() {
		Walk(c, fn)
	}
}
