package expr

import (
	"bytes"
	"cmp"
	"fmt"
	"math"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/vegasq/quiver/internal/errs"
)

type integer interface {
	int16 | int32 | int64
}

type float interface {
	float32 | float64
}

type number interface {
	integer | float
}

// values returns the backing slice of a numeric array. T must match the
// array's element type.
func values[T number](arr arrow.Array) []T {
	switch a := arr.(type) {
	case *array.Int16:
		return any(a.Int16Values()).([]T)
	case *array.Int32:
		return any(a.Int32Values()).([]T)
	case *array.Int64:
		return any(a.Int64Values()).([]T)
	case *array.Float32:
		return any(a.Float32Values()).([]T)
	case *array.Float64:
		return any(a.Float64Values()).([]T)
	}
	panic(fmt.Sprintf("expr: %s is not numeric", arr.DataType()))
}

// newNumeric builds an array of type dt. A nil valid marks every slot valid.
func newNumeric[T number](mem memory.Allocator, dt arrow.DataType, vals []T, valid []bool) arrow.Array {
	b := array.NewBuilder(mem, dt)
	defer b.Release()

	switch b := b.(type) {
	case *array.Int16Builder:
		b.AppendValues(any(vals).([]int16), valid)
	case *array.Int32Builder:
		b.AppendValues(any(vals).([]int32), valid)
	case *array.Int64Builder:
		b.AppendValues(any(vals).([]int64), valid)
	case *array.Float32Builder:
		b.AppendValues(any(vals).([]float32), valid)
	case *array.Float64Builder:
		b.AppendValues(any(vals).([]float64), valid)
	default:
		panic(fmt.Sprintf("expr: %s is not numeric", dt))
	}
	return b.NewArray()
}

func newBooleans(mem memory.Allocator, vals []bool, valid []bool) arrow.Array {
	b := array.NewBooleanBuilder(mem)
	defer b.Release()
	b.AppendValues(vals, valid)
	return b.NewArray()
}

// validity returns the per-row validity of arr, or nil when arr has no
// nulls.
func validity(arr arrow.Array) []bool {
	if arr.DataType().ID() == arrow.NULL {
		return make([]bool, arr.Len())
	}
	if arr.NullN() == 0 {
		return nil
	}
	valid := make([]bool, arr.Len())
	for i := range valid {
		valid[i] = arr.IsValid(i)
	}
	return valid
}

// bothValid combines the validity of two arrays of equal length.
func bothValid(l, r arrow.Array) []bool {
	lv, rv := validity(l), validity(r)
	switch {
	case lv == nil:
		return rv
	case rv == nil:
		return lv
	}
	for i := range lv {
		lv[i] = lv[i] && rv[i]
	}
	return lv
}

func arithmetic(mem memory.Allocator, op Op, l, r arrow.Array) (arrow.Array, error) {
	switch l.DataType().ID() {
	case arrow.INT16:
		return arithInt[int16](mem, op, l, r)
	case arrow.INT32:
		return arithInt[int32](mem, op, l, r)
	case arrow.INT64:
		return arithInt[int64](mem, op, l, r)
	case arrow.FLOAT32:
		return arithFloat[float32](mem, op, l, r), nil
	case arrow.FLOAT64:
		return arithFloat[float64](mem, op, l, r), nil
	}
	return nil, fmt.Errorf("%w: cannot apply %s to %s", errs.ErrTypeMismatch, op, l.DataType())
}

// arithInt applies op with wrapping two's-complement semantics. Division
// truncates toward zero; dividing by zero is an execution error.
func arithInt[T integer](mem memory.Allocator, op Op, l, r arrow.Array) (arrow.Array, error) {
	lv, rv := values[T](l), values[T](r)
	valid := bothValid(l, r)
	out := make([]T, len(lv))

	switch op {
	case OpAdd:
		for i := range out {
			out[i] = lv[i] + rv[i]
		}
	case OpSub:
		for i := range out {
			out[i] = lv[i] - rv[i]
		}
	case OpMul:
		for i := range out {
			out[i] = lv[i] * rv[i]
		}
	case OpDiv, OpMod:
		for i := range out {
			if valid != nil && !valid[i] {
				continue
			}
			if rv[i] == 0 {
				return nil, errs.NewExecutionError(op.String(), fmt.Errorf("%w: division by zero", errs.ErrInvalidArgument))
			}
			if op == OpDiv {
				out[i] = lv[i] / rv[i]
			} else {
				out[i] = lv[i] % rv[i]
			}
		}
	}
	return newNumeric(mem, l.DataType(), out, valid), nil
}

// arithFloat applies op with IEEE semantics; division by zero yields
// infinities or NaN.
func arithFloat[T float](mem memory.Allocator, op Op, l, r arrow.Array) arrow.Array {
	lv, rv := values[T](l), values[T](r)
	out := make([]T, len(lv))

	switch op {
	case OpAdd:
		for i := range out {
			out[i] = lv[i] + rv[i]
		}
	case OpSub:
		for i := range out {
			out[i] = lv[i] - rv[i]
		}
	case OpMul:
		for i := range out {
			out[i] = lv[i] * rv[i]
		}
	case OpDiv:
		for i := range out {
			out[i] = lv[i] / rv[i]
		}
	case OpMod:
		for i := range out {
			out[i] = T(math.Mod(float64(lv[i]), float64(rv[i])))
		}
	}
	return newNumeric(mem, l.DataType(), out, bothValid(l, r))
}

func negate(mem memory.Allocator, in arrow.Array) (arrow.Array, error) {
	switch in.DataType().ID() {
	case arrow.INT16:
		return negateValues[int16](mem, in), nil
	case arrow.INT32:
		return negateValues[int32](mem, in), nil
	case arrow.INT64:
		return negateValues[int64](mem, in), nil
	case arrow.FLOAT32:
		return negateValues[float32](mem, in), nil
	case arrow.FLOAT64:
		return negateValues[float64](mem, in), nil
	}
	return nil, fmt.Errorf("%w: cannot negate %s", errs.ErrTypeMismatch, in.DataType())
}

func negateValues[T number](mem memory.Allocator, in arrow.Array) arrow.Array {
	vals := values[T](in)
	out := make([]T, len(vals))
	for i, v := range vals {
		out[i] = -v
	}
	return newNumeric(mem, in.DataType(), out, validity(in))
}

// comparator returns a function ordering row i of l against row i of r.
// Both arrays must have the same type.
func comparator(l, r arrow.Array) (func(i int) int, error) {
	if !arrow.TypeEqual(l.DataType(), r.DataType()) {
		return nil, fmt.Errorf("%w: cannot compare %s with %s", errs.ErrTypeMismatch, l.DataType(), r.DataType())
	}

	switch a := l.(type) {
	case *array.Boolean:
		b := r.(*array.Boolean)
		return func(i int) int { return compareBool(a.Value(i), b.Value(i)) }, nil
	case *array.Int16:
		b := r.(*array.Int16)
		return func(i int) int { return cmp.Compare(a.Value(i), b.Value(i)) }, nil
	case *array.Int32:
		b := r.(*array.Int32)
		return func(i int) int { return cmp.Compare(a.Value(i), b.Value(i)) }, nil
	case *array.Int64:
		b := r.(*array.Int64)
		return func(i int) int { return cmp.Compare(a.Value(i), b.Value(i)) }, nil
	case *array.Float32:
		b := r.(*array.Float32)
		return func(i int) int { return cmp.Compare(a.Value(i), b.Value(i)) }, nil
	case *array.Float64:
		b := r.(*array.Float64)
		return func(i int) int { return cmp.Compare(a.Value(i), b.Value(i)) }, nil
	case *array.String:
		b := r.(*array.String)
		return func(i int) int { return cmp.Compare(a.Value(i), b.Value(i)) }, nil
	case *array.Binary:
		b := r.(*array.Binary)
		return func(i int) int { return bytes.Compare(a.Value(i), b.Value(i)) }, nil
	case *array.FixedSizeBinary:
		b := r.(*array.FixedSizeBinary)
		return func(i int) int { return bytes.Compare(a.Value(i), b.Value(i)) }, nil
	case *array.Date32:
		b := r.(*array.Date32)
		return func(i int) int { return cmp.Compare(a.Value(i), b.Value(i)) }, nil
	case *array.Timestamp:
		b := r.(*array.Timestamp)
		return func(i int) int { return cmp.Compare(a.Value(i), b.Value(i)) }, nil
	}
	return nil, fmt.Errorf("%w: cannot compare values of type %s", errs.ErrTypeMismatch, l.DataType())
}

func compareBool(x, y bool) int {
	switch {
	case x == y:
		return 0
	case !x:
		return -1
	}
	return 1
}

func compare(mem memory.Allocator, op Op, l, r arrow.Array) (arrow.Array, error) {
	n := l.Len()
	valid := bothValid(l, r)
	out := make([]bool, n)

	// two null columns never reach a comparator
	if l.DataType().ID() == arrow.NULL {
		return newBooleans(mem, out, make([]bool, n)), nil
	}

	cmpFn, err := comparator(l, r)
	if err != nil {
		return nil, err
	}

	for i := range out {
		if valid != nil && !valid[i] {
			continue
		}
		c := cmpFn(i)
		switch op {
		case OpEq:
			out[i] = c == 0
		case OpNotEq:
			out[i] = c != 0
		case OpLt:
			out[i] = c < 0
		case OpLtEq:
			out[i] = c <= 0
		case OpGt:
			out[i] = c > 0
		case OpGtEq:
			out[i] = c >= 0
		}
	}
	return newBooleans(mem, out, valid), nil
}

// logical applies AND/OR. A null on either side makes the row null.
func logical(mem memory.Allocator, op Op, l, r arrow.Array) (arrow.Array, error) {
	lb, lok := l.(*array.Boolean)
	rb, rok := r.(*array.Boolean)
	if !lok || !rok {
		return nil, fmt.Errorf("%w: %s expects boolean operands", errs.ErrTypeMismatch, op)
	}

	valid := bothValid(l, r)
	out := make([]bool, l.Len())
	for i := range out {
		if op == OpAnd {
			out[i] = lb.Value(i) && rb.Value(i)
		} else {
			out[i] = lb.Value(i) || rb.Value(i)
		}
	}
	return newBooleans(mem, out, valid), nil
}

func not(mem memory.Allocator, in arrow.Array) (arrow.Array, error) {
	b, ok := in.(*array.Boolean)
	if !ok {
		return nil, fmt.Errorf("%w: NOT expects a boolean operand", errs.ErrTypeMismatch)
	}
	out := make([]bool, b.Len())
	for i := range out {
		out[i] = !b.Value(i)
	}
	return newBooleans(mem, out, validity(in)), nil
}

func isNull(mem memory.Allocator, in arrow.Array, negated bool) arrow.Array {
	out := make([]bool, in.Len())
	allNull := in.DataType().ID() == arrow.NULL
	for i := range out {
		out[i] = (allNull || in.IsNull(i)) != negated
	}
	return newBooleans(mem, out, nil)
}
