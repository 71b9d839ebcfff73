package quiver

import (
	"context"
	"fmt"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/vegasq/quiver/exec"
	"github.com/vegasq/quiver/expr"
	"github.com/vegasq/quiver/internal/errs"
	"github.com/vegasq/quiver/plan"
)

// DataFrame is a lazily evaluated query. Every method returns a new frame
// and leaves the receiver unchanged. Expressions are bound when the frame
// is built; a frame whose binding failed carries the error, reports it
// from Err and returns it from Collect without reading any data.
type DataFrame struct {
	c      *Context
	source string
	node   plan.Node
	err    error
}

func (df *DataFrame) derive(node plan.Node, err error) *DataFrame {
	if err != nil {
		return &DataFrame{c: df.c, source: df.source, err: err}
	}
	return &DataFrame{c: df.c, source: df.source, node: node}
}

// Err returns the error of the first failed operation that built the
// frame.
func (df *DataFrame) Err() error { return df.err }

// Select evaluates exprs over every row. Output columns are named after
// the expressions unless aliased with expr.As.
func (df *DataFrame) Select(exprs ...expr.Expr) *DataFrame {
	if df.err != nil {
		return df
	}
	node, err := plan.NewProjection(df.node, exprs, df.c.functions)
	return df.derive(node, err)
}

// SelectColumns keeps the named columns, in the given order.
func (df *DataFrame) SelectColumns(names ...string) *DataFrame {
	exprs := make([]expr.Expr, len(names))
	for i, name := range names {
		exprs[i] = expr.Col(name)
	}
	return df.Select(exprs...)
}

// Filter keeps the rows for which predicate is true. The predicate sees
// the columns of this frame, so a Filter after a Select refers to the
// selected names.
func (df *DataFrame) Filter(predicate expr.Expr) *DataFrame {
	if df.err != nil {
		return df
	}
	node, err := plan.NewFilter(df.node, predicate, df.c.functions)
	return df.derive(node, err)
}

// Limit keeps the first n rows. A Limit directly after Sort becomes a
// top-n sort.
func (df *DataFrame) Limit(n int) *DataFrame {
	if df.err != nil {
		return df
	}
	if n < 0 {
		return df.derive(nil, fmt.Errorf("%w: limit must not be negative, got %d", errs.ErrInvalidArgument, n))
	}
	if s, ok := df.node.(*plan.Sort); ok && s.Fetch == plan.NoFetch {
		return df.derive(&plan.Sort{Input: s.Input, Keys: s.Keys, Fetch: n}, nil)
	}
	node, err := plan.NewLimit(df.node, n)
	return df.derive(node, err)
}

// Sort orders rows by keys, built with plan.Asc and plan.Desc. Nulls sort
// last in either direction and ties keep their input order.
func (df *DataFrame) Sort(keys ...plan.SortKey) *DataFrame {
	if df.err != nil {
		return df
	}
	node, err := plan.NewSort(df.node, keys, plan.NoFetch, df.c.functions)
	return df.derive(node, err)
}

// Aggregate groups rows by groupBy and computes aggs, built with
// expr.Count, expr.Sum and the like, per group. The output has the group
// columns followed by the aggregates.
func (df *DataFrame) Aggregate(groupBy, aggs []expr.Expr) *DataFrame {
	if df.err != nil {
		return df
	}
	node, err := plan.NewAggregate(df.node, groupBy, aggs, df.c.functions)
	return df.derive(node, err)
}

// Schema returns the output schema, or nil when the frame carries an
// error.
func (df *DataFrame) Schema() *arrow.Schema {
	if df.err != nil {
		return nil
	}
	return df.node.Schema()
}

// LogicalPlan returns the root of the plan, or nil when the frame carries
// an error.
func (df *DataFrame) LogicalPlan() plan.Node { return df.node }

// Explain renders the plan, one node per line.
func (df *DataFrame) Explain() string {
	if df.err != nil {
		return "Error: " + df.err.Error() + "\n"
	}
	return plan.Format(df.node)
}

// Collect runs the query and returns its result. A query without rows
// returns one empty batch with the output schema. The caller owns the
// batches and must release them.
func (df *DataFrame) Collect(ctx context.Context) ([]arrow.Record, error) {
	if df.err != nil {
		return nil, df.err
	}
	c := df.c

	queryID := uuid.NewString()
	logger := log.With(c.logger, "query_id", queryID, "source", df.source)
	level.Debug(logger).Log("msg", "executing query", "plan", plan.Format(df.node))

	var pool *ants.Pool
	if c.pool != nil && !c.pool.IsClosed() {
		pool = c.pool
	}
	executor := exec.New(exec.Config{
		Pool:        pool,
		Parallelism: c.cfg.Parallelism,
		Evaluator:   c.evaluator,
		Allocator:   c.mem,
		Logger:      logger,
	})

	start := time.Now()
	batches, err := executor.Collect(ctx, df.node)
	elapsed := time.Since(start)

	c.metrics.queryDuration.WithLabelValues(df.source).Observe(elapsed.Seconds())
	c.metrics.rowsScanned.Add(float64(executor.Stats.RowsScanned.Load()))
	if err != nil {
		c.metrics.queries.WithLabelValues(df.source, "error").Inc()
		level.Debug(logger).Log("msg", "query failed", "duration", elapsed, "err", err)
		return nil, err
	}

	var rows int64
	for _, b := range batches {
		rows += b.NumRows()
	}
	c.metrics.queries.WithLabelValues(df.source, "success").Inc()
	c.metrics.rowsReturned.Add(float64(rows))
	level.Debug(logger).Log("msg", "query finished", "duration", elapsed, "rows", rows, "batches", len(batches))
	return batches, nil
}

// WriteParquet collects the frame into a new Parquet file at path.
func (df *DataFrame) WriteParquet(ctx context.Context, path string) error {
	batches, err := df.Collect(ctx)
	if err != nil {
		return err
	}
	defer func() {
		for _, b := range batches {
			b.Release()
		}
	}()
	return df.c.WriteParquet(path, batches...)
}
