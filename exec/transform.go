package exec

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/vegasq/quiver/internal/arrowutil"
	"github.com/vegasq/quiver/plan"
)

// filterStage keeps the rows where the predicate is true. False and null
// rows are dropped.
func (x *Executor) filterStage(node *plan.Filter) transformFunc {
	return func(ctx context.Context, rec arrow.Record) (arrow.Record, error) {
		arr, err := x.evaluator.Eval(ctx, node.Predicate, rec)
		if err != nil {
			return nil, err
		}
		defer arr.Release()

		mask, ok := arr.(*array.Boolean)
		if !ok {
			return nil, fmt.Errorf("filter predicate %s evaluated to %s", node.Predicate, arr.DataType())
		}

		indices := make([]int, 0, mask.Len())
		for i := 0; i < mask.Len(); i++ {
			if mask.IsValid(i) && mask.Value(i) {
				indices = append(indices, i)
			}
		}
		if len(indices) == int(rec.NumRows()) {
			rec.Retain()
			return rec, nil
		}
		return arrowutil.TakeRecord(x.mem, rec, indices), nil
	}
}

// projectStage computes one output column per projection expression.
func (x *Executor) projectStage(node *plan.Projection) transformFunc {
	schema := node.Schema()
	return func(ctx context.Context, rec arrow.Record) (arrow.Record, error) {
		cols := make([]arrow.Array, len(node.Exprs))
		defer func() {
			for _, c := range cols {
				if c != nil {
					c.Release()
				}
			}
		}()

		for i, e := range node.Exprs {
			arr, err := x.evaluator.Eval(ctx, e, rec)
			if err != nil {
				return nil, err
			}
			cols[i] = arr
		}
		return array.NewRecord(schema, cols, rec.NumRows()), nil
	}
}
