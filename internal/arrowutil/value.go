// Package arrowutil holds the per-value helpers the operators share: reading
// a slot as a Go value, appending a Go value to a builder, gathering rows by
// index and ordering slots.
package arrowutil

import (
	"bytes"
	"cmp"
	"fmt"
	"math"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/vegasq/quiver/internal/errs"
)

// ValueAt returns the value stored at row i, or nil when the slot is null.
//
// Values keep their arrow representation: Date32 slots yield arrow.Date32
// and timestamp slots yield arrow.Timestamp.
func ValueAt(arr arrow.Array, i int) any {
	if arr.IsNull(i) {
		return nil
	}
	switch a := arr.(type) {
	case *array.Boolean:
		return a.Value(i)
	case *array.Int16:
		return a.Value(i)
	case *array.Int32:
		return a.Value(i)
	case *array.Int64:
		return a.Value(i)
	case *array.Float32:
		return a.Value(i)
	case *array.Float64:
		return a.Value(i)
	case *array.String:
		return a.Value(i)
	case *array.Binary:
		return bytes.Clone(a.Value(i))
	case *array.FixedSizeBinary:
		return bytes.Clone(a.Value(i))
	case *array.Date32:
		return a.Value(i)
	case *array.Timestamp:
		return a.Value(i)
	}
	return nil
}

// Append appends v to b, converting between Go numeric kinds. Floats stored
// in integer columns are truncated toward zero; NaN and values out of range
// fail with errs.ErrNumericOverflow. A nil v appends a null.
func Append(b array.Builder, v any) error {
	if v == nil {
		b.AppendNull()
		return nil
	}

	switch b := b.(type) {
	case *array.BooleanBuilder:
		x, ok := v.(bool)
		if !ok {
			return mismatch(v, b.Type())
		}
		b.Append(x)
	case *array.Int16Builder:
		x, err := integer(v, math.MinInt16, math.MaxInt16, b.Type())
		if err != nil {
			return err
		}
		b.Append(int16(x))
	case *array.Int32Builder:
		x, err := integer(v, math.MinInt32, math.MaxInt32, b.Type())
		if err != nil {
			return err
		}
		b.Append(int32(x))
	case *array.Int64Builder:
		x, err := integer(v, math.MinInt64, math.MaxInt64, b.Type())
		if err != nil {
			return err
		}
		b.Append(x)
	case *array.Float32Builder:
		x, ok := float(v)
		if !ok {
			return mismatch(v, b.Type())
		}
		b.Append(float32(x))
	case *array.Float64Builder:
		x, ok := float(v)
		if !ok {
			return mismatch(v, b.Type())
		}
		b.Append(x)
	case *array.StringBuilder:
		switch x := v.(type) {
		case string:
			b.Append(x)
		case []byte:
			b.Append(string(x))
		default:
			return mismatch(v, b.Type())
		}
	case *array.BinaryBuilder:
		switch x := v.(type) {
		case []byte:
			b.Append(x)
		case string:
			b.AppendString(x)
		default:
			return mismatch(v, b.Type())
		}
	case *array.FixedSizeBinaryBuilder:
		x, ok := v.([]byte)
		width := b.Type().(*arrow.FixedSizeBinaryType).ByteWidth
		if !ok || len(x) != width {
			return mismatch(v, b.Type())
		}
		b.Append(x)
	case *array.Date32Builder:
		switch x := v.(type) {
		case arrow.Date32:
			b.Append(x)
		case time.Time:
			b.Append(Date32FromTime(x))
		default:
			return mismatch(v, b.Type())
		}
	case *array.TimestampBuilder:
		unit := b.Type().(*arrow.TimestampType).Unit
		switch x := v.(type) {
		case arrow.Timestamp:
			b.Append(x)
		case time.Time:
			b.Append(TimestampFromTime(x, unit))
		case int64:
			b.Append(arrow.Timestamp(x))
		default:
			return mismatch(v, b.Type())
		}
	default:
		return fmt.Errorf("%w: cannot append to %s column", errs.ErrTypeMismatch, b.Type())
	}
	return nil
}

func mismatch(v any, dt arrow.DataType) error {
	return fmt.Errorf("%w: cannot store %T in %s column", errs.ErrTypeMismatch, v, dt)
}

func integer(v any, lo, hi int64, dt arrow.DataType) (int64, error) {
	var x int64
	switch n := v.(type) {
	case int:
		x = int64(n)
	case int8:
		x = int64(n)
	case int16:
		x = int64(n)
	case int32:
		x = int64(n)
	case int64:
		x = n
	case uint8:
		x = int64(n)
	case uint16:
		x = int64(n)
	case uint32:
		x = int64(n)
	case uint:
		if uint64(n) > math.MaxInt64 {
			return 0, fmt.Errorf("%w: %d does not fit %s", errs.ErrNumericOverflow, n, dt)
		}
		x = int64(n)
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("%w: %d does not fit %s", errs.ErrNumericOverflow, n, dt)
		}
		x = int64(n)
	case float32:
		return truncate(float64(n), lo, hi, dt)
	case float64:
		return truncate(n, lo, hi, dt)
	default:
		return 0, mismatch(v, dt)
	}
	if x < lo || x > hi {
		return 0, fmt.Errorf("%w: %d does not fit %s", errs.ErrNumericOverflow, x, dt)
	}
	return x, nil
}

// truncate converts f the way CAST does: toward zero, failing on NaN and
// on values outside [lo, hi].
func truncate(f float64, lo, hi int64, dt arrow.DataType) (int64, error) {
	t := math.Trunc(f)
	if math.IsNaN(t) || t < float64(lo) || t >= float64(hi)+1 {
		return 0, fmt.Errorf("%w: %v does not fit %s", errs.ErrNumericOverflow, f, dt)
	}
	return int64(t), nil
}

func float(v any) (float64, bool) {
	switch n := v.(type) {
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case uint:
		return float64(n), true
	}
	return 0, false
}

// CompareValues orders two non-nil values previously read with ValueAt from
// arrays of the same type.
func CompareValues(a, b any) int {
	switch x := a.(type) {
	case bool:
		y := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		}
		return 1
	case int16:
		return cmp.Compare(x, b.(int16))
	case int32:
		return cmp.Compare(x, b.(int32))
	case int64:
		return cmp.Compare(x, b.(int64))
	case float32:
		return cmp.Compare(x, b.(float32))
	case float64:
		return cmp.Compare(x, b.(float64))
	case string:
		return cmp.Compare(x, b.(string))
	case []byte:
		return bytes.Compare(x, b.([]byte))
	case arrow.Date32:
		return cmp.Compare(x, b.(arrow.Date32))
	case arrow.Timestamp:
		return cmp.Compare(x, b.(arrow.Timestamp))
	}
	panic(fmt.Sprintf("arrowutil: cannot compare %T", a))
}

// CompareAt orders the non-null slots i and j of arr.
func CompareAt(arr arrow.Array, i, j int) int {
	switch a := arr.(type) {
	case *array.Boolean:
		x, y := a.Value(i), a.Value(j)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		}
		return 1
	case *array.Int16:
		return cmp.Compare(a.Value(i), a.Value(j))
	case *array.Int32:
		return cmp.Compare(a.Value(i), a.Value(j))
	case *array.Int64:
		return cmp.Compare(a.Value(i), a.Value(j))
	case *array.Float32:
		return cmp.Compare(a.Value(i), a.Value(j))
	case *array.Float64:
		return cmp.Compare(a.Value(i), a.Value(j))
	case *array.String:
		return cmp.Compare(a.Value(i), a.Value(j))
	case *array.Binary:
		return bytes.Compare(a.Value(i), a.Value(j))
	case *array.FixedSizeBinary:
		return bytes.Compare(a.Value(i), a.Value(j))
	case *array.Date32:
		return cmp.Compare(a.Value(i), a.Value(j))
	case *array.Timestamp:
		return cmp.Compare(a.Value(i), a.Value(j))
	}
	return 0
}
