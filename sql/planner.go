package sql

import (
	"fmt"
	"sort"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/vegasq/quiver/catalog"
	"github.com/vegasq/quiver/expr"
	"github.com/vegasq/quiver/internal/errs"
	"github.com/vegasq/quiver/plan"
)

// TableResolver looks up table providers by name
type TableResolver interface {
	Lookup(name string) (catalog.TableProvider, error)
}

// Planner turns parsed statements into logical plans. The plans it builds
// have the same shape as those built by hand with the plan constructors:
//
//	Limit
//	  Projection
//	    Sort
//	      Aggregate
//	        Filter
//	          Scan
//
// where every node but Projection and Scan is optional.
type Planner struct {
	Tables    TableResolver
	Functions expr.FunctionResolver
}

// PlanQuery parses and plans query
func (p *Planner) PlanQuery(query string) (plan.Node, error) {
	stmt, err := Parse(query)
	if err != nil {
		return nil, err
	}
	return p.Plan(stmt)
}

// Plan builds a bound logical plan for stmt. Every table, column and
// function reference is resolved here, so a plan that is returned never
// fails for a naming or typing reason once it runs.
func (p *Planner) Plan(stmt *Statement) (plan.Node, error) {
	provider, err := p.Tables.Lookup(stmt.Table)
	if err != nil {
		return nil, err
	}
	schema := provider.Schema()

	items := expandStar(stmt.Items, schema)

	scan, err := plan.NewScan(stmt.Table, provider, scanProjection(schema, stmt, items))
	if err != nil {
		return nil, err
	}

	var node plan.Node = scan
	if stmt.Where != nil {
		if expr.ContainsAggregate(stmt.Where) {
			return nil, fmt.Errorf("%w: aggregate functions are not allowed in WHERE", errs.ErrInvalidArgument)
		}
		if node, err = plan.NewFilter(node, stmt.Where, p.Functions); err != nil {
			return nil, err
		}
	}

	// rewrite replaces grouped expressions and aggregates with references
	// to the aggregation output
	rewrite := func(e expr.Expr) expr.Expr { return e }
	if needsAggregation(stmt, items) {
		agg, err := p.planAggregate(node, stmt, items)
		if err != nil {
			return nil, err
		}
		node = agg
		rewrite = aggregateRewriter(stmt.GroupBy, agg)

		for _, item := range items {
			if err := checkGrouped(rewrite(expr.Unalias(item.Expr)), agg.Schema()); err != nil {
				return nil, err
			}
		}
	}

	exprs := make([]expr.Expr, len(items))
	for i, item := range items {
		e := rewrite(expr.Unalias(item.Expr))
		if item.Alias != "" {
			e = expr.As(e, item.Alias)
		} else if a, ok := item.Expr.(*expr.Alias); ok {
			e = expr.As(e, a.Name)
		}
		exprs[i] = e
	}

	fetch := plan.NoFetch
	if stmt.Limit != nil {
		fetch = *stmt.Limit
	}

	if len(stmt.OrderBy) == 0 {
		proj, err := plan.NewProjection(node, exprs, p.Functions)
		if err != nil {
			return nil, err
		}
		if fetch == plan.NoFetch {
			return proj, nil
		}
		return plan.NewLimit(proj, fetch)
	}

	// Sort keys see the select list first. Keys that need columns the
	// select list drops are sorted below the projection instead.
	proj, err := plan.NewProjection(node, exprs, p.Functions)
	if err != nil {
		return nil, err
	}
	if keys, ok := outputKeys(stmt.OrderBy, items, proj.Schema()); ok {
		return plan.NewSort(proj, keys, fetch, p.Functions)
	}

	keys := make([]plan.SortKey, len(stmt.OrderBy))
	for i, o := range stmt.OrderBy {
		keys[i] = plan.SortKey{Expr: rewrite(inlineAliases(o.Expr, items)), Ascending: o.Ascending}
	}
	if _, ok := node.(*plan.Aggregate); ok {
		for _, k := range keys {
			if err := checkGrouped(k.Expr, node.Schema()); err != nil {
				return nil, err
			}
		}
	}
	sorted, err := plan.NewSort(node, keys, fetch, p.Functions)
	if err != nil {
		return nil, err
	}
	return plan.NewProjection(sorted, exprs, p.Functions)
}

// expandStar replaces * with one column reference per schema field
func expandStar(items []SelectItem, schema *arrow.Schema) []SelectItem {
	out := make([]SelectItem, 0, len(items))
	for _, item := range items {
		if !item.Star {
			out = append(out, item)
			continue
		}
		for _, f := range schema.Fields() {
			out = append(out, SelectItem{Expr: expr.Col(f.Name)})
		}
	}
	return out
}

// scanProjection returns the sorted indexes of the table columns the
// statement references. Names that match no column are left for binding to
// report. A statement that references no column still reads the first one
// so row counts are preserved.
func scanProjection(schema *arrow.Schema, stmt *Statement, items []SelectItem) []int {
	var all []expr.Expr
	for _, item := range items {
		all = append(all, item.Expr)
	}
	if stmt.Where != nil {
		all = append(all, stmt.Where)
	}
	all = append(all, stmt.GroupBy...)
	for _, o := range stmt.OrderBy {
		all = append(all, o.Expr)
	}

	used := make(map[int]bool)
	for _, e := range all {
		for _, name := range expr.Columns(e) {
			if i, ok := lookupField(schema, name); ok {
				used[i] = true
			}
		}
	}

	if len(used) == 0 {
		if schema.NumFields() == 0 {
			return nil
		}
		return []int{0}
	}
	projection := make([]int, 0, len(used))
	for i := range used {
		projection = append(projection, i)
	}
	sort.Ints(projection)
	return projection
}

// lookupField resolves a column name the way binding does: exact match
// first, then a unique case-insensitive match
func lookupField(schema *arrow.Schema, name string) (int, bool) {
	if idx := schema.FieldIndices(name); len(idx) > 0 {
		return idx[0], true
	}
	found := -1
	for i, f := range schema.Fields() {
		if strings.EqualFold(f.Name, name) {
			if found >= 0 {
				return 0, false
			}
			found = i
		}
	}
	return found, found >= 0
}

func needsAggregation(stmt *Statement, items []SelectItem) bool {
	if len(stmt.GroupBy) > 0 {
		return true
	}
	for _, item := range items {
		if expr.ContainsAggregate(item.Expr) {
			return true
		}
	}
	for _, o := range stmt.OrderBy {
		if expr.ContainsAggregate(o.Expr) {
			return true
		}
	}
	return false
}

// planAggregate collects the distinct aggregate calls of the select list
// and ORDER BY and groups node by the GROUP BY expressions
func (p *Planner) planAggregate(node plan.Node, stmt *Statement, items []SelectItem) (*plan.Aggregate, error) {
	var aggs []expr.Expr
	seen := make(map[string]bool)
	collect := func(e expr.Expr) {
		expr.Walk(e, func(n expr.Expr) bool {
			a, ok := n.(*expr.Aggregate)
			if !ok {
				return true
			}
			if key := a.String(); !seen[key] {
				seen[key] = true
				aggs = append(aggs, a)
			}
			return false
		})
	}
	for _, item := range items {
		collect(item.Expr)
	}
	for _, o := range stmt.OrderBy {
		collect(inlineAliases(o.Expr, items))
	}
	return plan.NewAggregate(node, stmt.GroupBy, aggs, p.Functions)
}

// aggregateRewriter maps grouped expressions and aggregate calls to the
// aggregation's output columns. Expressions are matched by display name.
func aggregateRewriter(groupBy []expr.Expr, agg *plan.Aggregate) func(expr.Expr) expr.Expr {
	names := make(map[string]string)
	for i, g := range groupBy {
		out := agg.Schema().Field(i).Name
		names[g.String()] = out
		names[agg.GroupBy[i].String()] = out
	}
	for i, a := range agg.Aggregates {
		names[a.String()] = agg.Schema().Field(len(groupBy) + i).Name
	}

	return func(e expr.Expr) expr.Expr {
		return expr.Transform(e, func(n expr.Expr) (expr.Expr, bool) {
			if _, ok := n.(*expr.Literal); ok {
				return n, true
			}
			if out, ok := names[n.String()]; ok {
				return expr.Col(out), true
			}
			return n, false
		})
	}
}

// checkGrouped reports columns that are neither grouped nor aggregated
func checkGrouped(e expr.Expr, schema *arrow.Schema) error {
	for _, name := range expr.Columns(e) {
		if _, ok := lookupField(schema, name); !ok {
			return fmt.Errorf("%w: column %s must appear in GROUP BY or be used in an aggregate function",
				errs.ErrUnresolvedColumn, name)
		}
	}
	return nil
}

// itemName returns the output column name of a select item
func itemName(item SelectItem) string {
	if item.Alias != "" {
		return item.Alias
	}
	return expr.OutputName(item.Expr)
}

// outputKeys rewrites ORDER BY keys against the select list. ok is false
// when some key needs a column the select list does not produce.
func outputKeys(orderBy []OrderItem, items []SelectItem, out *arrow.Schema) ([]plan.SortKey, bool) {
	names := make(map[string]string)
	for _, item := range items {
		name := itemName(item)
		names[expr.Unalias(item.Expr).String()] = name
	}
	aliases := make(map[string]bool)
	for _, item := range items {
		aliases[itemName(item)] = true
	}

	keys := make([]plan.SortKey, len(orderBy))
	for i, o := range orderBy {
		e := expr.Transform(o.Expr, func(n expr.Expr) (expr.Expr, bool) {
			if c, ok := n.(*expr.Column); ok && aliases[c.Name] {
				return expr.Col(c.Name), true
			}
			if name, ok := names[n.String()]; ok {
				return expr.Col(name), true
			}
			return n, false
		})
		if expr.ContainsAggregate(e) {
			return nil, false
		}
		for _, name := range expr.Columns(e) {
			if _, ok := lookupField(out, name); !ok {
				return nil, false
			}
		}
		keys[i] = plan.SortKey{Expr: e, Ascending: o.Ascending}
	}
	return keys, true
}

// inlineAliases replaces references to select-list aliases with the
// aliased expression
func inlineAliases(e expr.Expr, items []SelectItem) expr.Expr {
	aliased := make(map[string]expr.Expr)
	for _, item := range items {
		if item.Alias != "" {
			aliased[item.Alias] = item.Expr
		}
	}
	if len(aliased) == 0 {
		return e
	}
	return expr.Transform(e, func(n expr.Expr) (expr.Expr, bool) {
		if c, ok := n.(*expr.Column); ok {
			if inner, ok := aliased[c.Name]; ok {
				return inner, true
			}
		}
		return n, false
	})
}
