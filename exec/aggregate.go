package exec

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/cespare/xxhash/v2"
	"github.com/dolthub/swiss"

	"github.com/vegasq/quiver/expr"
	"github.com/vegasq/quiver/internal/arrowutil"
	"github.com/vegasq/quiver/internal/errs"
	"github.com/vegasq/quiver/plan"
	"github.com/vegasq/quiver/types"
)

// executeAggregate groups all of input and emits one batch with one row
// per group. Groups are emitted in the order they were first seen.
func (x *Executor) executeAggregate(node *plan.Aggregate, input Pipeline) Pipeline {
	done := false
	return newGenericPipeline(func(ctx context.Context, inputs []Pipeline) (arrow.Record, error) {
		if done {
			return nil, EOF
		}
		done = true

		agg, err := newAggregator(node, x.mem)
		if err != nil {
			return nil, err
		}
		for {
			rec, err := inputs[0].Read(ctx)
			if errors.Is(err, EOF) {
				break
			}
			if err != nil {
				return nil, err
			}
			err = agg.add(ctx, x.evaluator, rec)
			rec.Release()
			if err != nil {
				return nil, err
			}
		}
		return agg.build()
	}, input)
}

// aggregator accumulates the groups of an Aggregate node.
type aggregator struct {
	node *plan.Aggregate
	mem  memory.Allocator

	groups  *swiss.Map[uint64, []int] // key hash to group ids
	keys    [][]byte                  // encoded key per group id
	values  [][]any                   // per group expression, per group id
	accs    []accumulator
	digest  *xxhash.Digest
	scratch []byte
}

func newAggregator(node *plan.Aggregate, mem memory.Allocator) (*aggregator, error) {
	a := &aggregator{
		node:   node,
		mem:    mem,
		groups: swiss.NewMap[uint64, []int](64),
		values: make([][]any, len(node.GroupBy)),
		digest: xxhash.New(),
	}
	for _, e := range node.Aggregates {
		acc, err := newAccumulator(expr.Unalias(e).(*expr.Aggregate))
		if err != nil {
			return nil, err
		}
		a.accs = append(a.accs, acc)
	}
	if len(node.GroupBy) == 0 {
		// one group, present even when the input is empty
		a.newGroup(nil, nil, 0)
	}
	return a, nil
}

func (a *aggregator) numGroups() int { return len(a.keys) }

func (a *aggregator) newGroup(key []byte, cols []arrow.Array, row int) int {
	id := len(a.keys)
	a.keys = append(a.keys, bytes.Clone(key))
	for i, col := range cols {
		a.values[i] = append(a.values[i], arrowutil.ValueAt(col, row))
	}
	for _, acc := range a.accs {
		acc.grow(id + 1)
	}
	return id
}

// add assigns every row of rec to a group and updates the accumulators.
func (a *aggregator) add(ctx context.Context, ev *expr.Evaluator, rec arrow.Record) error {
	n := int(rec.NumRows())
	if n == 0 {
		return nil
	}

	cols := make([]arrow.Array, len(a.node.GroupBy))
	defer releaseArrays(cols)
	for i, e := range a.node.GroupBy {
		arr, err := ev.Eval(ctx, e, rec)
		if err != nil {
			return err
		}
		cols[i] = arr
	}

	groupIDs := make([]int, n)
	if len(cols) > 0 {
		for row := 0; row < n; row++ {
			groupIDs[row] = a.findOrCreate(cols, row)
		}
	}

	for i, e := range a.node.Aggregates {
		agg := expr.Unalias(e).(*expr.Aggregate)
		if agg.Arg == nil {
			a.accs[i].update(nil, groupIDs, n)
			continue
		}
		arg, err := ev.Eval(ctx, agg.Arg, rec)
		if err != nil {
			return err
		}
		a.accs[i].update(arg, groupIDs, n)
		arg.Release()
	}
	return nil
}

func (a *aggregator) findOrCreate(cols []arrow.Array, row int) int {
	a.scratch = a.scratch[:0]
	for _, col := range cols {
		a.scratch = encodeKey(a.scratch, col, row)
	}

	a.digest.Reset()
	_, _ = a.digest.Write(a.scratch)
	hash := a.digest.Sum64()

	ids, _ := a.groups.Get(hash)
	for _, id := range ids {
		if bytes.Equal(a.keys[id], a.scratch) {
			return id
		}
	}
	id := a.newGroup(a.scratch, cols, row)
	a.groups.Put(hash, append(ids, id))
	return id
}

// build emits the group columns followed by the aggregate columns.
func (a *aggregator) build() (arrow.Record, error) {
	schema := a.node.Schema()
	n := a.numGroups()
	cols := make([]arrow.Array, 0, schema.NumFields())
	defer func() { releaseArrays(cols) }()

	for i, vals := range a.values {
		b := array.NewBuilder(a.mem, schema.Field(i).Type)
		for _, v := range vals {
			if err := arrowutil.Append(b, v); err != nil {
				b.Release()
				return nil, err
			}
		}
		cols = append(cols, b.NewArray())
		b.Release()
	}
	for _, acc := range a.accs {
		cols = append(cols, acc.build(a.mem, n))
	}
	return array.NewRecord(schema, cols, int64(n)), nil
}

func releaseArrays(arrs []arrow.Array) {
	for _, arr := range arrs {
		if arr != nil {
			arr.Release()
		}
	}
}

// encodeKey appends the encoding of row of col to buf. Null has its own
// tag, so NULL forms one group. NaN and negative zero are normalised so
// equal values share a key.
func encodeKey(buf []byte, col arrow.Array, row int) []byte {
	if col.DataType().ID() == arrow.NULL || col.IsNull(row) {
		return append(buf, 0)
	}
	buf = append(buf, 1)

	switch c := col.(type) {
	case *array.Boolean:
		if c.Value(row) {
			return append(buf, 1)
		}
		return append(buf, 0)
	case *array.Int16:
		return binary.LittleEndian.AppendUint16(buf, uint16(c.Value(row)))
	case *array.Int32:
		return binary.LittleEndian.AppendUint32(buf, uint32(c.Value(row)))
	case *array.Int64:
		return binary.LittleEndian.AppendUint64(buf, uint64(c.Value(row)))
	case *array.Float32:
		return binary.LittleEndian.AppendUint64(buf, floatBits(float64(c.Value(row))))
	case *array.Float64:
		return binary.LittleEndian.AppendUint64(buf, floatBits(c.Value(row)))
	case *array.Date32:
		return binary.LittleEndian.AppendUint32(buf, uint32(c.Value(row)))
	case *array.Timestamp:
		return binary.LittleEndian.AppendUint64(buf, uint64(c.Value(row)))
	case *array.String:
		v := c.Value(row)
		buf = binary.AppendUvarint(buf, uint64(len(v)))
		return append(buf, v...)
	case *array.Binary:
		v := c.Value(row)
		buf = binary.AppendUvarint(buf, uint64(len(v)))
		return append(buf, v...)
	case *array.FixedSizeBinary:
		return append(buf, c.Value(row)...)
	}
	panic(fmt.Sprintf("exec: cannot group by %s", col.DataType()))
}

func floatBits(f float64) uint64 {
	switch {
	case math.IsNaN(f):
		return math.Float64bits(math.NaN())
	case f == 0:
		return 0
	}
	return math.Float64bits(f)
}

// accumulator computes one aggregate for every group.
type accumulator interface {
	// grow makes room for n groups.
	grow(n int)
	// update folds rows into their groups. arg is nil for COUNT(*).
	update(arg arrow.Array, groups []int, n int)
	// build returns one value per group.
	build(mem memory.Allocator, n int) arrow.Array
}

func newAccumulator(agg *expr.Aggregate) (accumulator, error) {
	switch agg.Func {
	case expr.AggCount:
		return &countAcc{}, nil
	case expr.AggSum:
		if types.IsInteger(agg.Arg.Type()) {
			return &sumIntAcc{}, nil
		}
		return &sumFloatAcc{}, nil
	case expr.AggAvg:
		return &avgAcc{}, nil
	case expr.AggMin:
		return &minMaxAcc{dt: agg.Type(), keep: -1}, nil
	case expr.AggMax:
		return &minMaxAcc{dt: agg.Type(), keep: 1}, nil
	}
	return nil, fmt.Errorf("%w: unknown aggregate %s", errs.ErrInvalidArgument, agg.Func)
}

func valid(arg arrow.Array, row int) bool {
	return arg.DataType().ID() != arrow.NULL && arg.IsValid(row)
}

type countAcc struct {
	counts []int64
}

func (c *countAcc) grow(n int) {
	for len(c.counts) < n {
		c.counts = append(c.counts, 0)
	}
}

func (c *countAcc) update(arg arrow.Array, groups []int, n int) {
	for row := 0; row < n; row++ {
		if arg == nil || valid(arg, row) {
			c.counts[groups[row]]++
		}
	}
}

func (c *countAcc) build(mem memory.Allocator, n int) arrow.Array {
	b := array.NewInt64Builder(mem)
	defer b.Release()
	b.AppendValues(c.counts[:n], nil)
	return b.NewArray()
}

// sumIntAcc wraps on overflow, like integer addition.
type sumIntAcc struct {
	sums []int64
	seen []bool
}

func (s *sumIntAcc) grow(n int) {
	for len(s.sums) < n {
		s.sums = append(s.sums, 0)
		s.seen = append(s.seen, false)
	}
}

func (s *sumIntAcc) update(arg arrow.Array, groups []int, n int) {
	for row := 0; row < n; row++ {
		if !valid(arg, row) {
			continue
		}
		g := groups[row]
		s.sums[g] += int64At(arg, row)
		s.seen[g] = true
	}
}

func (s *sumIntAcc) build(mem memory.Allocator, n int) arrow.Array {
	b := array.NewInt64Builder(mem)
	defer b.Release()
	b.AppendValues(s.sums[:n], s.seen[:n])
	return b.NewArray()
}

type sumFloatAcc struct {
	sums []float64
	seen []bool
}

func (s *sumFloatAcc) grow(n int) {
	for len(s.sums) < n {
		s.sums = append(s.sums, 0)
		s.seen = append(s.seen, false)
	}
}

func (s *sumFloatAcc) update(arg arrow.Array, groups []int, n int) {
	for row := 0; row < n; row++ {
		if !valid(arg, row) {
			continue
		}
		g := groups[row]
		s.sums[g] += float64At(arg, row)
		s.seen[g] = true
	}
}

func (s *sumFloatAcc) build(mem memory.Allocator, n int) arrow.Array {
	b := array.NewFloat64Builder(mem)
	defer b.Release()
	b.AppendValues(s.sums[:n], s.seen[:n])
	return b.NewArray()
}

type avgAcc struct {
	sums   []float64
	counts []int64
}

func (a *avgAcc) grow(n int) {
	for len(a.sums) < n {
		a.sums = append(a.sums, 0)
		a.counts = append(a.counts, 0)
	}
}

func (a *avgAcc) update(arg arrow.Array, groups []int, n int) {
	for row := 0; row < n; row++ {
		if !valid(arg, row) {
			continue
		}
		g := groups[row]
		a.sums[g] += float64At(arg, row)
		a.counts[g]++
	}
}

func (a *avgAcc) build(mem memory.Allocator, n int) arrow.Array {
	b := array.NewFloat64Builder(mem)
	defer b.Release()
	for g := 0; g < n; g++ {
		if a.counts[g] == 0 {
			b.AppendNull()
			continue
		}
		b.Append(a.sums[g] / float64(a.counts[g]))
	}
	return b.NewArray()
}

// minMaxAcc keeps the value v for which compare(v, current) == keep.
type minMaxAcc struct {
	dt   arrow.DataType
	keep int
	vals []any
}

func (m *minMaxAcc) grow(n int) {
	for len(m.vals) < n {
		m.vals = append(m.vals, nil)
	}
}

func (m *minMaxAcc) update(arg arrow.Array, groups []int, n int) {
	for row := 0; row < n; row++ {
		if !valid(arg, row) {
			continue
		}
		g := groups[row]
		if m.vals[g] == nil {
			m.vals[g] = arrowutil.ValueAt(arg, row)
			continue
		}
		v := arrowutil.ValueAt(arg, row)
		if arrowutil.CompareValues(v, m.vals[g]) == m.keep {
			m.vals[g] = v
		}
	}
}

func (m *minMaxAcc) build(mem memory.Allocator, n int) arrow.Array {
	b := array.NewBuilder(mem, m.dt)
	defer b.Release()
	for g := 0; g < n; g++ {
		// values come from an array of the same type
		_ = arrowutil.Append(b, m.vals[g])
	}
	return b.NewArray()
}

func int64At(arr arrow.Array, i int) int64 {
	switch a := arr.(type) {
	case *array.Int16:
		return int64(a.Value(i))
	case *array.Int32:
		return int64(a.Value(i))
	case *array.Int64:
		return a.Value(i)
	}
	panic(fmt.Sprintf("exec: %s is not an integer column", arr.DataType()))
}

func float64At(arr arrow.Array, i int) float64 {
	switch a := arr.(type) {
	case *array.Float32:
		return float64(a.Value(i))
	case *array.Float64:
		return a.Value(i)
	}
	return float64(int64At(arr, i))
}
