package expr

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/vegasq/quiver/internal/arrowutil"
	"github.com/vegasq/quiver/internal/errs"
	"github.com/vegasq/quiver/types"
)

// timestampLayouts are tried in order when parsing strings as timestamps.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

const (
	dateLayout      = "2006-01-02"
	timestampFormat = "2006-01-02T15:04:05.999999999"
)

// cast converts arr to type to. Null slots stay null. The returned array is
// owned by the caller.
func cast(mem memory.Allocator, arr arrow.Array, to arrow.DataType) (arrow.Array, error) {
	from := arr.DataType()
	if arrow.TypeEqual(from, to) {
		arr.Retain()
		return arr, nil
	}
	if from.ID() == arrow.NULL {
		return arrowutil.NewNulls(mem, to, arr.Len()), nil
	}
	if !types.CanCast(from, to) {
		return nil, fmt.Errorf("%w: cannot cast %s to %s", errs.ErrUnsupportedCast, types.Name(from), types.Name(to))
	}

	numericLike := func(dt arrow.DataType) bool {
		return types.IsNumeric(dt) || dt.ID() == arrow.BOOL
	}
	if numericLike(from) && numericLike(to) {
		return castNumeric(mem, arr, to)
	}

	if from.ID() == arrow.TIMESTAMP && to.ID() == arrow.TIMESTAMP {
		fromUnit := from.(*arrow.TimestampType).Unit
		toUnit := to.(*arrow.TimestampType).Unit
		return mapValues(mem, arr, to, func(v any) (any, error) {
			return arrowutil.ConvertTimestamp(v.(arrow.Timestamp), fromUnit, toUnit), nil
		})
	}

	conv, err := converter(from, to)
	if err != nil {
		return nil, err
	}
	return mapValues(mem, arr, to, conv)
}

// mapValues builds an array of type to by converting each non-null value.
func mapValues(mem memory.Allocator, arr arrow.Array, to arrow.DataType, conv func(any) (any, error)) (arrow.Array, error) {
	b := array.NewBuilder(mem, to)
	defer b.Release()
	b.Reserve(arr.Len())

	for i := 0; i < arr.Len(); i++ {
		v := arrowutil.ValueAt(arr, i)
		if v == nil {
			b.AppendNull()
			continue
		}
		out, err := conv(v)
		if err != nil {
			return nil, errs.NewExecutionError("CAST", err)
		}
		if err := arrowutil.Append(b, out); err != nil {
			return nil, errs.NewExecutionError("CAST", err)
		}
	}
	return b.NewArray(), nil
}

// converter returns the per-value conversion for non-numeric casts.
func converter(from, to arrow.DataType) (func(any) (any, error), error) {
	switch to.ID() {
	case arrow.STRING:
		return toStringConverter(from), nil

	case arrow.BINARY:
		return func(v any) (any, error) {
			if s, ok := v.(string); ok {
				return []byte(s), nil
			}
			return v, nil
		}, nil

	case arrow.DATE32:
		switch from.ID() {
		case arrow.STRING:
			return func(v any) (any, error) {
				t, err := time.Parse(dateLayout, strings.TrimSpace(v.(string)))
				if err != nil {
					return nil, fmt.Errorf("%w: cannot parse %q as a date", errs.ErrInvalidArgument, v)
				}
				return arrowutil.Date32FromTime(t), nil
			}, nil
		case arrow.TIMESTAMP:
			unit := from.(*arrow.TimestampType).Unit
			return func(v any) (any, error) {
				return arrowutil.Date32FromTime(arrowutil.TimeFromTimestamp(v.(arrow.Timestamp), unit)), nil
			}, nil
		}

	case arrow.TIMESTAMP:
		unit := to.(*arrow.TimestampType).Unit
		switch from.ID() {
		case arrow.STRING:
			return func(v any) (any, error) {
				t, err := parseTimestamp(v.(string))
				if err != nil {
					return nil, err
				}
				return arrowutil.TimestampFromTime(t, unit), nil
			}, nil
		case arrow.DATE32:
			return func(v any) (any, error) {
				return arrowutil.TimestampFromTime(arrowutil.TimeFromDate32(v.(arrow.Date32)), unit), nil
			}, nil
		case arrow.INT64:
			return func(v any) (any, error) {
				return arrow.Timestamp(v.(int64)), nil
			}, nil
		}

	default:
		switch from.ID() {
		case arrow.STRING:
			return fromStringConverter(to), nil
		case arrow.TIMESTAMP:
			// timestamp to int64 exposes the raw count of units
			return func(v any) (any, error) {
				return int64(v.(arrow.Timestamp)), nil
			}, nil
		}
	}
	return nil, fmt.Errorf("%w: cannot cast %s to %s", errs.ErrUnsupportedCast, types.Name(from), types.Name(to))
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: cannot parse %q as a timestamp", errs.ErrInvalidArgument, s)
}

func toStringConverter(from arrow.DataType) func(any) (any, error) {
	switch from.ID() {
	case arrow.DATE32:
		return func(v any) (any, error) {
			return arrowutil.TimeFromDate32(v.(arrow.Date32)).Format(dateLayout), nil
		}
	case arrow.TIMESTAMP:
		unit := from.(*arrow.TimestampType).Unit
		return func(v any) (any, error) {
			return arrowutil.TimeFromTimestamp(v.(arrow.Timestamp), unit).Format(timestampFormat), nil
		}
	}
	return func(v any) (any, error) {
		return FormatValue(v), nil
	}
}

// FormatValue renders a value read from an array as text, the way a cast to
// string does.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return x
	case []byte:
		return string(x)
	case bool:
		return strconv.FormatBool(x)
	case int16:
		return strconv.FormatInt(int64(x), 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case time.Time:
		return x.UTC().Format(timestampFormat)
	}
	return fmt.Sprint(v)
}

func fromStringConverter(to arrow.DataType) func(any) (any, error) {
	bits := 64
	switch to.ID() {
	case arrow.INT16:
		bits = 16
	case arrow.INT32, arrow.FLOAT32:
		bits = 32
	}

	return func(v any) (any, error) {
		s := strings.TrimSpace(v.(string))
		switch {
		case to.ID() == arrow.BOOL:
			b, err := strconv.ParseBool(s)
			if err != nil {
				return nil, fmt.Errorf("%w: cannot parse %q as a boolean", errs.ErrInvalidArgument, s)
			}
			return b, nil
		case types.IsInteger(to):
			n, err := strconv.ParseInt(s, 10, bits)
			if err != nil {
				if errors.Is(err, strconv.ErrRange) {
					return nil, fmt.Errorf("%w: %q does not fit %s", errs.ErrNumericOverflow, s, types.Name(to))
				}
				return nil, fmt.Errorf("%w: cannot parse %q as %s", errs.ErrInvalidArgument, s, types.Name(to))
			}
			return n, nil
		default:
			f, err := strconv.ParseFloat(s, bits)
			if err != nil {
				if errors.Is(err, strconv.ErrRange) {
					return nil, fmt.Errorf("%w: %q does not fit %s", errs.ErrNumericOverflow, s, types.Name(to))
				}
				return nil, fmt.Errorf("%w: cannot parse %q as %s", errs.ErrInvalidArgument, s, types.Name(to))
			}
			return f, nil
		}
	}
}

// castNumeric converts between numeric and boolean types through int64 or
// float64 intermediates.
func castNumeric(mem memory.Allocator, arr arrow.Array, to arrow.DataType) (arrow.Array, error) {
	n := arr.Len()
	valid := validity(arr)

	ints, floats := widen(arr)

	if to.ID() == arrow.BOOL {
		out := make([]bool, n)
		for i := range out {
			if ints != nil {
				out[i] = ints[i] != 0
			} else {
				out[i] = floats[i] != 0
			}
		}
		return newBooleans(mem, out, valid), nil
	}

	if types.IsFloat(to) {
		if floats == nil {
			floats = make([]float64, n)
			for i, v := range ints {
				floats[i] = float64(v)
			}
		}
		if to.ID() == arrow.FLOAT32 {
			out := make([]float32, n)
			for i, v := range floats {
				out[i] = float32(v)
			}
			return newNumeric(mem, to, out, valid), nil
		}
		return newNumeric(mem, to, floats, valid), nil
	}

	lo, hi := integerBounds(to)
	if ints == nil {
		ints = make([]int64, n)
		for i, f := range floats {
			if valid != nil && !valid[i] {
				continue
			}
			t := math.Trunc(f)
			if math.IsNaN(t) || t < float64(lo) || t >= float64(hi)+1 {
				return nil, errs.NewExecutionError("CAST",
					fmt.Errorf("%w: %v does not fit %s", errs.ErrNumericOverflow, f, types.Name(to)))
			}
			ints[i] = int64(t)
		}
	} else {
		for i, v := range ints {
			if valid != nil && !valid[i] {
				continue
			}
			if v < lo || v > hi {
				return nil, errs.NewExecutionError("CAST",
					fmt.Errorf("%w: %d does not fit %s", errs.ErrNumericOverflow, v, types.Name(to)))
			}
		}
	}

	switch to.ID() {
	case arrow.INT16:
		out := make([]int16, n)
		for i, v := range ints {
			out[i] = int16(v)
		}
		return newNumeric(mem, to, out, valid), nil
	case arrow.INT32:
		out := make([]int32, n)
		for i, v := range ints {
			out[i] = int32(v)
		}
		return newNumeric(mem, to, out, valid), nil
	}
	return newNumeric(mem, to, ints, valid), nil
}

// widen copies a numeric or boolean array into int64s (integers and
// booleans) or float64s (floats). Exactly one result is non-nil.
func widen(arr arrow.Array) ([]int64, []float64) {
	switch a := arr.(type) {
	case *array.Boolean:
		out := make([]int64, a.Len())
		for i := range out {
			if a.Value(i) {
				out[i] = 1
			}
		}
		return out, nil
	case *array.Int16:
		out := make([]int64, a.Len())
		for i, v := range a.Int16Values() {
			out[i] = int64(v)
		}
		return out, nil
	case *array.Int32:
		out := make([]int64, a.Len())
		for i, v := range a.Int32Values() {
			out[i] = int64(v)
		}
		return out, nil
	case *array.Int64:
		return append([]int64(nil), a.Int64Values()...), nil
	case *array.Float32:
		out := make([]float64, a.Len())
		for i, v := range a.Float32Values() {
			out[i] = float64(v)
		}
		return nil, out
	case *array.Float64:
		return nil, append([]float64(nil), a.Float64Values()...)
	}
	panic(fmt.Sprintf("expr: %s is not numeric", arr.DataType()))
}

func integerBounds(dt arrow.DataType) (int64, int64) {
	switch dt.ID() {
	case arrow.INT16:
		return math.MinInt16, math.MaxInt16
	case arrow.INT32:
		return math.MinInt32, math.MaxInt32
	}
	return math.MinInt64, math.MaxInt64
}
