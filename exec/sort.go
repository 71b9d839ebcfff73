package exec

import (
	"container/heap"
	"context"
	"errors"
	"slices"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/vegasq/quiver/internal/arrowutil"
	"github.com/vegasq/quiver/plan"
)

// executeSort orders all of input. With a fetch it keeps only the best
// fetch rows while reading, so memory is bounded by fetch plus one batch.
func (x *Executor) executeSort(node *plan.Sort, input Pipeline) Pipeline {
	computed := false
	return newGenericPipeline(func(ctx context.Context, inputs []Pipeline) (arrow.Record, error) {
		if computed || node.Fetch == 0 {
			return nil, EOF
		}
		computed = true

		if node.Fetch == plan.NoFetch {
			return x.sortAll(ctx, node, inputs[0])
		}
		return x.topK(ctx, node, inputs[0])
	}, input)
}

func (x *Executor) sortAll(ctx context.Context, node *plan.Sort, input Pipeline) (arrow.Record, error) {
	recs, err := readAll(ctx, input)
	if err != nil {
		return nil, err
	}
	defer releaseAll(recs)
	if len(recs) == 0 {
		return nil, EOF
	}

	rec, err := arrowutil.Concat(x.mem, node.Schema(), recs)
	if err != nil {
		return nil, err
	}
	defer rec.Release()

	keys, err := x.sortKeys(ctx, node, rec)
	if err != nil {
		return nil, err
	}
	defer keys.release()

	indices := make([]int, rec.NumRows())
	for i := range indices {
		indices[i] = i
	}
	slices.SortStableFunc(indices, keys.compare)
	return arrowutil.TakeRecord(x.mem, rec, indices), nil
}

// topK folds every batch into the best node.Fetch rows seen so far. Kept
// rows precede the new batch, so row position breaks ties in input order.
func (x *Executor) topK(ctx context.Context, node *plan.Sort, input Pipeline) (arrow.Record, error) {
	var kept arrow.Record
	defer func() {
		if kept != nil {
			kept.Release()
		}
	}()

	for {
		batch, err := input.Read(ctx)
		if errors.Is(err, EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if batch.NumRows() == 0 {
			batch.Release()
			continue
		}

		next, err := x.mergeTopK(ctx, node, kept, batch)
		batch.Release()
		if err != nil {
			return nil, err
		}
		if kept != nil {
			kept.Release()
		}
		kept = next
	}

	if kept == nil {
		return nil, EOF
	}
	kept.Retain()
	return kept, nil
}

func (x *Executor) mergeTopK(ctx context.Context, node *plan.Sort, kept, batch arrow.Record) (arrow.Record, error) {
	recs := []arrow.Record{batch}
	if kept != nil {
		recs = []arrow.Record{kept, batch}
	}
	rec, err := arrowutil.Concat(x.mem, node.Schema(), recs)
	if err != nil {
		return nil, err
	}
	defer rec.Release()

	keys, err := x.sortKeys(ctx, node, rec)
	if err != nil {
		return nil, err
	}
	defer keys.release()

	h := &rowHeap{keys: keys}
	for i := 0; i < int(rec.NumRows()); i++ {
		if h.Len() < node.Fetch {
			heap.Push(h, i)
			continue
		}
		// the root is the worst kept row
		if keys.compare(i, h.rows[0]) < 0 {
			h.rows[0] = i
			heap.Fix(h, 0)
		}
	}

	indices := slices.Clone(h.rows)
	slices.SortFunc(indices, keys.compare)
	return arrowutil.TakeRecord(x.mem, rec, indices), nil
}

// sortColumns holds the evaluated sort keys of one record.
type sortColumns struct {
	cols      []arrow.Array
	ascending []bool
}

func (x *Executor) sortKeys(ctx context.Context, node *plan.Sort, rec arrow.Record) (*sortColumns, error) {
	keys := &sortColumns{}
	for _, k := range node.Keys {
		arr, err := x.evaluator.Eval(ctx, k.Expr, rec)
		if err != nil {
			keys.release()
			return nil, err
		}
		keys.cols = append(keys.cols, arr)
		keys.ascending = append(keys.ascending, k.Ascending)
	}
	return keys, nil
}

func (s *sortColumns) release() {
	for _, c := range s.cols {
		c.Release()
	}
}

// compare orders rows i and j. Nulls sort last in both directions and
// equal rows keep their position order.
func (s *sortColumns) compare(i, j int) int {
	for k, col := range s.cols {
		if c := compareRows(col, i, j, s.ascending[k]); c != 0 {
			return c
		}
	}
	switch {
	case i < j:
		return -1
	case i > j:
		return 1
	}
	return 0
}

func compareRows(col arrow.Array, i, j int, ascending bool) int {
	if col.DataType().ID() == arrow.NULL {
		return 0
	}
	iNull, jNull := col.IsNull(i), col.IsNull(j)
	switch {
	case iNull && jNull:
		return 0
	case iNull:
		return 1
	case jNull:
		return -1
	}
	c := arrowutil.CompareAt(col, i, j)
	if !ascending {
		c = -c
	}
	return c
}

// rowHeap is a max-heap of row positions: the root is the row that sorts
// last.
type rowHeap struct {
	keys *sortColumns
	rows []int
}

func (h *rowHeap) Len() int           { return len(h.rows) }
func (h *rowHeap) Less(i, j int) bool { return h.keys.compare(h.rows[i], h.rows[j]) > 0 }
func (h *rowHeap) Swap(i, j int)      { h.rows[i], h.rows[j] = h.rows[j], h.rows[i] }
func (h *rowHeap) Push(v any)         { h.rows = append(h.rows, v.(int)) }

func (h *rowHeap) Pop() any {
	v := h.rows[len(h.rows)-1]
	h.rows = h.rows[:len(h.rows)-1]
	return v
}
