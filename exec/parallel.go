package exec

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/panjf2000/ants/v2"
)

type result struct {
	batch arrow.Record
	err   error
}

// parallelPipeline applies fn to its input batches on a worker pool. Up to
// window batches are in flight at once. Results are returned in input
// order.
type parallelPipeline struct {
	input  Pipeline
	fn     transformFunc
	pool   *ants.Pool
	window int

	pending   []chan result // in input order
	exhausted bool
	err       error
	wg        sync.WaitGroup
}

var _ Pipeline = (*parallelPipeline)(nil)

func newParallelPipeline(input Pipeline, fn transformFunc, pool *ants.Pool, window int) *parallelPipeline {
	return &parallelPipeline{
		input:  input,
		fn:     fn,
		pool:   pool,
		window: window,
	}
}

// Read implements Pipeline.
func (p *parallelPipeline) Read(ctx context.Context) (arrow.Record, error) {
	if p.err != nil {
		return nil, p.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for !p.exhausted && len(p.pending) < p.window {
		rec, err := p.input.Read(ctx)
		if errors.Is(err, EOF) {
			p.exhausted = true
			break
		}
		if err != nil {
			p.err = err
			return nil, err
		}
		if err := p.submit(ctx, rec); err != nil {
			p.err = err
			return nil, err
		}
	}

	if len(p.pending) == 0 {
		return nil, EOF
	}

	ch := p.pending[0]
	p.pending = p.pending[1:]
	select {
	case <-ctx.Done():
		// the task still owns its result; Close drains it
		p.pending = append([]chan result{ch}, p.pending...)
		return nil, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			p.err = r.err
			return nil, r.err
		}
		return r.batch, nil
	}
}

func (p *parallelPipeline) submit(ctx context.Context, rec arrow.Record) error {
	ch := make(chan result, 1)
	p.wg.Add(1)
	task := func() {
		defer p.wg.Done()
		defer rec.Release()
		out, err := p.fn(ctx, rec)
		ch <- result{batch: out, err: err}
	}
	switch err := p.pool.Submit(task); {
	case errors.Is(err, ants.ErrPoolClosed):
		// the owning context was closed mid-query
		task()
	case err != nil:
		p.wg.Done()
		rec.Release()
		return fmt.Errorf("submit batch to worker pool: %w", err)
	}
	p.pending = append(p.pending, ch)
	return nil
}

// Close implements Pipeline. It waits for in-flight batches and releases
// their results.
func (p *parallelPipeline) Close() {
	p.wg.Wait()
	for _, ch := range p.pending {
		if r := <-ch; r.batch != nil {
			r.batch.Release()
		}
	}
	p.pending = nil
	p.input.Close()
}
