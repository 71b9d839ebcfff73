package exec

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow"
)

// newLimitPipeline passes through the first fetch rows of input. It stops
// reading input once the limit is reached.
func newLimitPipeline(input Pipeline, fetch int) *GenericPipeline {
	// limitRemaining may cross record boundaries
	limitRemaining := int64(fetch)

	return newGenericPipeline(func(ctx context.Context, inputs []Pipeline) (arrow.Record, error) {
		if limitRemaining <= 0 {
			return nil, EOF
		}

		batch, err := inputs[0].Read(ctx)
		if err != nil {
			return nil, err
		}

		if batch.NumRows() <= limitRemaining {
			limitRemaining -= batch.NumRows()
			return batch, nil
		}

		defer batch.Release()
		out := batch.NewSlice(0, limitRemaining)
		limitRemaining = 0
		return out, nil
	}, input)
}
