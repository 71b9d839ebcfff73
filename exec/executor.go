package exec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/panjf2000/ants/v2"

	"github.com/vegasq/quiver/catalog"
	"github.com/vegasq/quiver/expr"
	"github.com/vegasq/quiver/plan"
)

// Config configures an Executor.
type Config struct {
	// Pool runs the per-batch Filter/Projection work when Parallelism is
	// greater than one. A nil Pool runs everything on the reading goroutine.
	Pool *ants.Pool

	// Parallelism bounds how many batches are transformed at once.
	Parallelism int

	Evaluator *expr.Evaluator
	Allocator memory.Allocator
	Logger    log.Logger
}

// Stats counts the work done by the pipelines of one Executor.
type Stats struct {
	RowsScanned    atomic.Int64
	BatchesScanned atomic.Int64
}

// Executor lowers logical plans into pipelines.
type Executor struct {
	pool        *ants.Pool
	parallelism int
	evaluator   *expr.Evaluator
	mem         memory.Allocator
	logger      log.Logger

	Stats Stats
}

// New returns an Executor for cfg.
func New(cfg Config) *Executor {
	x := &Executor{
		pool:        cfg.Pool,
		parallelism: cfg.Parallelism,
		evaluator:   cfg.Evaluator,
		mem:         cfg.Allocator,
		logger:      cfg.Logger,
	}
	if x.mem == nil {
		x.mem = memory.DefaultAllocator
	}
	if x.evaluator == nil {
		x.evaluator = expr.NewEvaluator(x.mem)
	}
	if x.logger == nil {
		x.logger = log.NewNopLogger()
	}
	if x.parallelism < 1 {
		x.parallelism = 1
	}
	return x
}

// Run builds the pipeline for node. Pipelines are lazy: nothing is read
// until the first call to Read.
func (x *Executor) Run(node plan.Node) Pipeline {
	switch n := node.(type) {
	case *plan.Scan:
		return x.executeScan(n)
	case *plan.Filter, *plan.Projection:
		return x.executeTransform(n)
	case *plan.Aggregate:
		return x.executeAggregate(n, x.Run(n.Input))
	case *plan.Sort:
		return x.executeSort(n, x.Run(n.Input))
	case *plan.Limit:
		return newLimitPipeline(x.Run(n.Input), n.Fetch)
	default:
		return errorPipeline(fmt.Errorf("invalid node type: %T", node))
	}
}

// Collect runs node to completion.
func (x *Executor) Collect(ctx context.Context, node plan.Node) ([]arrow.Record, error) {
	return Collect(ctx, x.Run(node), node.Schema(), x.mem)
}

type scanPipeline struct {
	node   *plan.Scan
	iter   catalog.RecordIterator
	stats  *Stats
	logger log.Logger
}

func (x *Executor) executeScan(node *plan.Scan) Pipeline {
	return &scanPipeline{node: node, stats: &x.Stats, logger: x.logger}
}

func (p *scanPipeline) Read(ctx context.Context) (arrow.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.iter == nil {
		level.Debug(p.logger).Log("msg", "opening scan", "table", p.node.Table, "columns", p.node.Schema().NumFields())
		iter, err := p.node.Provider.Scan(ctx, p.node.Projection)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", p.node.Table, err)
		}
		p.iter = iter
	}

	rec, err := p.iter.Next(ctx)
	if errors.Is(err, io.EOF) {
		return nil, EOF
	}
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", p.node.Table, err)
	}
	p.stats.RowsScanned.Add(rec.NumRows())
	p.stats.BatchesScanned.Add(1)
	return rec, nil
}

func (p *scanPipeline) Close() {
	if p.iter != nil {
		if err := p.iter.Close(); err != nil {
			level.Warn(p.logger).Log("msg", "closing scan", "table", p.node.Table, "err", err)
		}
		p.iter = nil
	}
}

// transformFunc maps one batch to another. It borrows its input and
// returns a batch the caller owns.
type transformFunc func(context.Context, arrow.Record) (arrow.Record, error)

// executeTransform fuses a chain of Filter and Projection nodes into one
// per-batch transform over the first node below the chain.
func (x *Executor) executeTransform(node plan.Node) Pipeline {
	var stages []transformFunc
	for {
		switch n := node.(type) {
		case *plan.Filter:
			stages = append(stages, x.filterStage(n))
			node = n.Input
			continue
		case *plan.Projection:
			stages = append(stages, x.projectStage(n))
			node = n.Input
			continue
		}
		break
	}

	// stages were collected top-down
	fn := func(ctx context.Context, rec arrow.Record) (arrow.Record, error) {
		rec.Retain()
		for i := len(stages) - 1; i >= 0; i-- {
			out, err := stages[i](ctx, rec)
			rec.Release()
			if err != nil {
				return nil, err
			}
			rec = out
		}
		return rec, nil
	}

	input := x.Run(node)
	if x.pool != nil && x.parallelism > 1 {
		return newParallelPipeline(input, fn, x.pool, x.parallelism)
	}
	return newGenericPipeline(func(ctx context.Context, inputs []Pipeline) (arrow.Record, error) {
		rec, err := inputs[0].Read(ctx)
		if err != nil {
			return nil, err
		}
		defer rec.Release()
		return fn(ctx, rec)
	}, input)
}
