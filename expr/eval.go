package expr

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/vegasq/quiver/internal/arrowutil"
	"github.com/vegasq/quiver/internal/errs"
)

// Evaluator computes bound expressions over records, one column at a time.
// An Evaluator is safe for concurrent use as long as OnCall is.
type Evaluator struct {
	mem memory.Allocator

	// OnCall, when set, is invoked once per UDF invocation over a batch.
	OnCall func(name string, convention Convention)
}

// NewEvaluator returns an evaluator allocating from mem. A nil mem uses
// the default allocator.
func NewEvaluator(mem memory.Allocator) *Evaluator {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	return &Evaluator{mem: mem}
}

// Eval evaluates e over rec and returns an array of rec.NumRows() values.
// The caller owns the returned array and must release it.
func (ev *Evaluator) Eval(ctx context.Context, e Expr, rec arrow.Record) (arrow.Array, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ev.eval(e, rec)
}

func (ev *Evaluator) eval(e Expr, rec arrow.Record) (arrow.Array, error) {
	n := int(rec.NumRows())

	switch e := e.(type) {
	case *Column:
		if e.typ == nil || e.Index < 0 || e.Index >= int(rec.NumCols()) {
			return nil, fmt.Errorf("%w: column %s is not bound", errs.ErrUnresolvedColumn, e.Name)
		}
		col := rec.Column(e.Index)
		if !arrow.TypeEqual(col.DataType(), e.typ) {
			return nil, fmt.Errorf("%w: column %s is %s, bound as %s", errs.ErrSchemaMismatch, e.Name, col.DataType(), e.typ)
		}
		col.Retain()
		return col, nil

	case *Literal:
		return ev.literal(e, n)

	case *Alias:
		return ev.eval(e.Input, rec)

	case *Binary:
		if e.typ == nil {
			return nil, errNotBound(e)
		}
		left, err := ev.eval(e.Left, rec)
		if err != nil {
			return nil, err
		}
		defer left.Release()
		right, err := ev.eval(e.Right, rec)
		if err != nil {
			return nil, err
		}
		defer right.Release()

		switch {
		case e.Op.IsArithmetic():
			return arithmetic(ev.mem, e.Op, left, right)
		case e.Op.IsComparison():
			return compare(ev.mem, e.Op, left, right)
		case e.Op.IsLogical():
			return logical(ev.mem, e.Op, left, right)
		}
		return nil, fmt.Errorf("%w: unknown operator %s", errs.ErrInvalidArgument, e.Op)

	case *Not:
		in, err := ev.eval(e.Input, rec)
		if err != nil {
			return nil, err
		}
		defer in.Release()
		return not(ev.mem, in)

	case *Negative:
		in, err := ev.eval(e.Input, rec)
		if err != nil {
			return nil, err
		}
		defer in.Release()
		return negate(ev.mem, in)

	case *IsNull:
		in, err := ev.eval(e.Input, rec)
		if err != nil {
			return nil, err
		}
		defer in.Release()
		return isNull(ev.mem, in, e.Negated), nil

	case *Cast:
		in, err := ev.eval(e.Input, rec)
		if err != nil {
			return nil, err
		}
		defer in.Release()
		return cast(ev.mem, in, e.To)

	case *Call:
		return ev.call(e, rec)

	case *Aggregate:
		return nil, fmt.Errorf("%w: aggregate %s cannot be evaluated per row", errs.ErrInvalidArgument, e)
	}
	return nil, fmt.Errorf("%w: unknown expression %T", errs.ErrInvalidArgument, e)
}

func errNotBound(e Expr) error {
	return fmt.Errorf("%w: expression %s is not bound", errs.ErrInvalidArgument, e)
}

func (ev *Evaluator) literal(l *Literal, n int) (arrow.Array, error) {
	if l.typ == nil {
		return nil, errNotBound(l)
	}
	if l.Value == nil {
		return arrowutil.NewNulls(ev.mem, l.typ, n), nil
	}

	b := array.NewBuilder(ev.mem, l.typ)
	defer b.Release()
	b.Reserve(n)
	for i := 0; i < n; i++ {
		if err := arrowutil.Append(b, l.Value); err != nil {
			return nil, err
		}
	}
	return b.NewArray(), nil
}

func (ev *Evaluator) call(c *Call, rec arrow.Record) (arrow.Array, error) {
	if c.fn == nil || c.typ == nil {
		return nil, errNotBound(c)
	}

	args := make([]arrow.Array, 0, len(c.Args))
	defer func() {
		for _, a := range args {
			a.Release()
		}
	}()
	for _, a := range c.Args {
		arr, err := ev.eval(a, rec)
		if err != nil {
			return nil, err
		}
		args = append(args, arr)
	}

	if ev.OnCall != nil {
		if conv, ok := udfConvention(c.fn); ok {
			ev.OnCall(c.Name, conv)
		}
	}

	n := int(rec.NumRows())
	switch fn := c.fn.(type) {
	case VectorFunction:
		return ev.callVector(fn, c.Name, args, c.typ, n)
	case RowFunction:
		return ev.callRow(fn, c.Name, args, c.typ, n)
	}
	return nil, fmt.Errorf("%w: function %s cannot be evaluated", errs.ErrInvalidArgument, c.Name)
}

func udfConvention(fn Function) (Convention, bool) {
	switch fn.(type) {
	case *scalarUDF:
		return ScalarConvention, true
	case *arrayUDF:
		return ArrayConvention, true
	}
	return 0, false
}

// callRow invokes fn once per row. Unless fn accepts nulls, a row with a
// null argument yields null without calling fn.
func (ev *Evaluator) callRow(fn RowFunction, name string, args []arrow.Array, ret arrow.DataType, n int) (out arrow.Array, err error) {
	acceptsNulls := false
	if na, ok := fn.(NullAccepting); ok {
		acceptsNulls = na.AcceptsNulls()
	}

	defer func() {
		if r := recover(); r != nil {
			out, err = nil, errs.NewExecutionError(name, fmt.Errorf("panic: %v", r))
		}
	}()

	b := array.NewBuilder(ev.mem, ret)
	defer b.Release()
	b.Reserve(n)

	values := make([]any, len(args))
	for i := 0; i < n; i++ {
		hasNull := false
		for j, a := range args {
			values[j] = callValue(a, i)
			if values[j] == nil {
				hasNull = true
			}
		}
		if hasNull && !acceptsNulls {
			b.AppendNull()
			continue
		}

		res, err := fn.Evaluate(values)
		if err != nil {
			return nil, errs.NewExecutionError(name, err)
		}
		if err := arrowutil.Append(b, res); err != nil {
			return nil, errs.NewExecutionError(name, err)
		}
	}
	return b.NewArray(), nil
}

// callValue reads a function argument. Dates and timestamps cross the
// boundary as UTC time.Time.
func callValue(arr arrow.Array, i int) any {
	if arr.DataType().ID() == arrow.NULL {
		return nil
	}
	switch v := arrowutil.ValueAt(arr, i).(type) {
	case arrow.Date32:
		return arrowutil.TimeFromDate32(v)
	case arrow.Timestamp:
		return arrowutil.TimeFromTimestamp(v, arr.DataType().(*arrow.TimestampType).Unit)
	default:
		return v
	}
}

func (ev *Evaluator) callVector(fn VectorFunction, name string, args []arrow.Array, ret arrow.DataType, n int) (out arrow.Array, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, errs.NewExecutionError(name, fmt.Errorf("panic: %v", r))
		}
	}()

	res, err := fn.EvaluateArrays(args)
	if err != nil {
		return nil, errs.NewExecutionError(name, err)
	}

	switch {
	case res == nil:
		return nil, errs.NewExecutionError(name,
			fmt.Errorf("%w: function returned no array", errs.ErrUnsupportedArrayUDF))
	case res.Len() != n:
		res.Release()
		return nil, errs.NewExecutionError(name,
			fmt.Errorf("%w: function returned %d values for %d rows", errs.ErrUnsupportedArrayUDF, res.Len(), n))
	case !arrow.TypeEqual(res.DataType(), ret):
		dt := res.DataType()
		res.Release()
		return nil, errs.NewExecutionError(name,
			fmt.Errorf("%w: function returned %s, declared %s", errs.ErrUnsupportedArrayUDF, dt, ret))
	}

	// hand back an array the caller owns even if fn returned one of its
	// inputs
	for _, a := range args {
		if a == res {
			res.Retain()
			break
		}
	}
	return res, nil
}
