package arrowutil

import (
	"math"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/require"

	"github.com/vegasq/quiver/internal/errs"
)

func TestTake(t *testing.T) {
	mem := memory.NewGoAllocator()
	b := array.NewStringBuilder(mem)
	b.AppendValues([]string{"a", "b", "c"}, []bool{true, false, true})
	arr := b.NewArray()

	out := Take(mem, arr, []int{2, 1, 0, 2})
	require.Equal(t, 4, out.Len())
	require.Equal(t, "c", ValueAt(out, 0))
	require.Nil(t, ValueAt(out, 1))
	require.Equal(t, "a", ValueAt(out, 2))
	require.Equal(t, "c", ValueAt(out, 3))
}

func TestAppend(t *testing.T) {
	mem := memory.NewGoAllocator()

	t.Run("integer kinds widen", func(t *testing.T) {
		b := array.NewInt32Builder(mem)
		require.NoError(t, Append(b, 7))
		require.NoError(t, Append(b, int16(-2)))
		require.NoError(t, Append(b, nil))
		arr := b.NewInt32Array()
		require.Equal(t, int32(7), arr.Value(0))
		require.Equal(t, int32(-2), arr.Value(1))
		require.True(t, arr.IsNull(2))
	})

	t.Run("overflow", func(t *testing.T) {
		b := array.NewInt16Builder(mem)
		require.ErrorIs(t, Append(b, 1<<20), errs.ErrNumericOverflow)
	})

	t.Run("floats truncate into integers", func(t *testing.T) {
		b := array.NewInt64Builder(mem)
		require.NoError(t, Append(b, 2.9))
		require.NoError(t, Append(b, float32(-2.5)))
		arr := b.NewInt64Array()
		require.Equal(t, []int64{2, -2}, arr.Int64Values())
	})

	t.Run("float overflow", func(t *testing.T) {
		b := array.NewInt16Builder(mem)
		require.ErrorIs(t, Append(b, 40000.0), errs.ErrNumericOverflow)
		require.ErrorIs(t, Append(b, math.NaN()), errs.ErrNumericOverflow)
		require.ErrorIs(t, Append(b, math.Inf(-1)), errs.ErrNumericOverflow)
	})

	t.Run("wrong kind", func(t *testing.T) {
		b := array.NewBooleanBuilder(mem)
		require.ErrorIs(t, Append(b, "yes"), errs.ErrTypeMismatch)
	})

	t.Run("time to date", func(t *testing.T) {
		b := array.NewDate32Builder(mem)
		require.NoError(t, Append(b, time.Date(1970, 1, 3, 12, 0, 0, 0, time.UTC)))
		arr := b.NewArray().(*array.Date32)
		require.Equal(t, arrow.Date32(2), arr.Value(0))
	})
}

func TestTimeConversions(t *testing.T) {
	ts := time.Date(2021, 6, 1, 10, 30, 0, 0, time.UTC)
	v := TimestampFromTime(ts, arrow.Millisecond)
	require.Equal(t, ts, TimeFromTimestamp(v, arrow.Millisecond))

	require.Equal(t, arrow.Date32(-1), Date32FromTime(time.Date(1969, 12, 31, 23, 0, 0, 0, time.UTC)))
	require.Equal(t, arrow.Timestamp(1500), ConvertTimestamp(1500000, arrow.Microsecond, arrow.Millisecond))
	require.Equal(t, arrow.Timestamp(-2), ConvertTimestamp(-1500, arrow.Millisecond, arrow.Second))
	require.Equal(t, arrow.Timestamp(3000), ConvertTimestamp(3, arrow.Second, arrow.Millisecond))
}

func TestConcat(t *testing.T) {
	mem := memory.NewGoAllocator()
	schema := arrow.NewSchema([]arrow.Field{{Name: "a", Type: arrow.PrimitiveTypes.Int64, Nullable: true}}, nil)

	mk := func(vals ...int64) arrow.Record {
		b := array.NewRecordBuilder(mem, schema)
		defer b.Release()
		b.Field(0).(*array.Int64Builder).AppendValues(vals, nil)
		return b.NewRecord()
	}

	rec, err := Concat(mem, schema, []arrow.Record{mk(1, 2), mk(3)})
	require.NoError(t, err)
	require.Equal(t, int64(3), rec.NumRows())
	require.Equal(t, []int64{1, 2, 3}, rec.Column(0).(*array.Int64).Int64Values())

	empty := EmptyRecord(mem, schema)
	require.Equal(t, int64(0), empty.NumRows())
	require.Equal(t, int64(1), empty.NumCols())
}
