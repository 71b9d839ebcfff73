package exec

import (
	"context"
	"errors"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/vegasq/quiver/internal/arrowutil"
)

// Pipeline produces a stream of record batches.
type Pipeline interface {
	// Read returns the next batch. The caller owns the batch and must
	// release it. Read returns EOF once the pipeline is exhausted.
	Read(context.Context) (arrow.Record, error)

	// Close releases the resources of the pipeline and of all its inputs.
	Close()
}

// EOF is returned by Read when a pipeline has no more batches.
var EOF = errors.New("pipeline exhausted") //nolint:revive,staticcheck

type readFunc func(context.Context, []Pipeline) (arrow.Record, error)

// GenericPipeline is a Pipeline backed by a read function.
type GenericPipeline struct {
	inputs []Pipeline
	read   readFunc
}

var _ Pipeline = (*GenericPipeline)(nil)

func newGenericPipeline(read readFunc, inputs ...Pipeline) *GenericPipeline {
	return &GenericPipeline{
		read:   read,
		inputs: inputs,
	}
}

// Read implements Pipeline.
func (p *GenericPipeline) Read(ctx context.Context) (arrow.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.read == nil {
		return nil, EOF
	}
	return p.read(ctx, p.inputs)
}

// Close implements Pipeline.
func (p *GenericPipeline) Close() {
	for _, inp := range p.inputs {
		inp.Close()
	}
}

func errorPipeline(err error) Pipeline {
	return newGenericPipeline(func(_ context.Context, _ []Pipeline) (arrow.Record, error) {
		return nil, fmt.Errorf("failed to execute pipeline: %w", err)
	})
}

// Collect drains p and closes it. Empty batches are dropped. When no rows
// remain the result is a single empty batch with the given schema. On
// error no batches are returned.
func Collect(ctx context.Context, p Pipeline, schema *arrow.Schema, mem memory.Allocator) ([]arrow.Record, error) {
	defer p.Close()

	var out []arrow.Record
	release := func() {
		for _, rec := range out {
			rec.Release()
		}
	}

	for {
		rec, err := p.Read(ctx)
		if errors.Is(err, EOF) {
			break
		}
		if err != nil {
			release()
			return nil, err
		}
		if rec.NumRows() == 0 {
			rec.Release()
			continue
		}
		out = append(out, rec)
	}

	if len(out) == 0 {
		if mem == nil {
			mem = memory.DefaultAllocator
		}
		out = append(out, arrowutil.EmptyRecord(mem, schema))
	}
	return out, nil
}

// readAll drains input into memory. The caller owns the returned batches.
func readAll(ctx context.Context, input Pipeline) ([]arrow.Record, error) {
	var recs []arrow.Record
	for {
		rec, err := input.Read(ctx)
		if errors.Is(err, EOF) {
			return recs, nil
		}
		if err != nil {
			releaseAll(recs)
			return nil, err
		}
		recs = append(recs, rec)
	}
}

func releaseAll(recs []arrow.Record) {
	for _, rec := range recs {
		rec.Release()
	}
}
