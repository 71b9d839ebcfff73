package arrowutil

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Take gathers the rows of arr at indices into a new array.
func Take(mem memory.Allocator, arr arrow.Array, indices []int) arrow.Array {
	b := array.NewBuilder(mem, arr.DataType())
	defer b.Release()
	b.Reserve(len(indices))

	switch a := arr.(type) {
	case *array.Boolean:
		bb := b.(*array.BooleanBuilder)
		for _, i := range indices {
			if a.IsNull(i) {
				bb.AppendNull()
				continue
			}
			bb.Append(a.Value(i))
		}
	case *array.Int16:
		takeFixed[int16](b.(*array.Int16Builder), a, a.Value, indices)
	case *array.Int32:
		takeFixed[int32](b.(*array.Int32Builder), a, a.Value, indices)
	case *array.Int64:
		takeFixed[int64](b.(*array.Int64Builder), a, a.Value, indices)
	case *array.Float32:
		takeFixed[float32](b.(*array.Float32Builder), a, a.Value, indices)
	case *array.Float64:
		takeFixed[float64](b.(*array.Float64Builder), a, a.Value, indices)
	case *array.Date32:
		takeFixed[arrow.Date32](b.(*array.Date32Builder), a, a.Value, indices)
	case *array.Timestamp:
		takeFixed[arrow.Timestamp](b.(*array.TimestampBuilder), a, a.Value, indices)
	case *array.String:
		takeFixed[string](b.(*array.StringBuilder), a, a.Value, indices)
	case *array.Binary:
		takeFixed[[]byte](b.(*array.BinaryBuilder), a, a.Value, indices)
	case *array.FixedSizeBinary:
		takeFixed[[]byte](b.(*array.FixedSizeBinaryBuilder), a, a.Value, indices)
	case *array.Null:
		b.AppendNulls(len(indices))
	default:
		panic(fmt.Sprintf("arrowutil: take on unsupported type %s", arr.DataType()))
	}
	return b.NewArray()
}

type appender[T any] interface {
	Append(T)
	AppendNull()
}

func takeFixed[T any](b appender[T], arr arrow.Array, value func(int) T, indices []int) {
	for _, i := range indices {
		if arr.IsNull(i) {
			b.AppendNull()
			continue
		}
		b.Append(value(i))
	}
}

// TakeRecord gathers the rows of rec at indices into a new record with the
// same schema.
func TakeRecord(mem memory.Allocator, rec arrow.Record, indices []int) arrow.Record {
	cols := make([]arrow.Array, rec.NumCols())
	for i := range cols {
		cols[i] = Take(mem, rec.Column(i), indices)
	}
	out := array.NewRecord(rec.Schema(), cols, int64(len(indices)))
	for _, c := range cols {
		c.Release()
	}
	return out
}

// Concat joins records sharing schema into one record. Zero records yield an
// empty record.
func Concat(mem memory.Allocator, schema *arrow.Schema, recs []arrow.Record) (arrow.Record, error) {
	if len(recs) == 1 {
		recs[0].Retain()
		return recs[0], nil
	}

	cols := make([]arrow.Array, schema.NumFields())
	var rows int64
	for _, rec := range recs {
		rows += rec.NumRows()
	}

	for i := range cols {
		if len(recs) == 0 {
			cols[i] = NewNulls(mem, schema.Field(i).Type, 0)
			continue
		}
		parts := make([]arrow.Array, len(recs))
		for j, rec := range recs {
			parts[j] = rec.Column(i)
		}
		col, err := array.Concatenate(parts, mem)
		if err != nil {
			for _, c := range cols[:i] {
				c.Release()
			}
			return nil, fmt.Errorf("concatenate column %s: %w", schema.Field(i).Name, err)
		}
		cols[i] = col
	}

	out := array.NewRecord(schema, cols, rows)
	for _, c := range cols {
		c.Release()
	}
	return out, nil
}

// NewNulls returns an array of n nulls of type dt.
func NewNulls(mem memory.Allocator, dt arrow.DataType, n int) arrow.Array {
	b := array.NewBuilder(mem, dt)
	defer b.Release()
	b.AppendNulls(n)
	return b.NewArray()
}

// EmptyRecord returns a zero-row record with the given schema.
func EmptyRecord(mem memory.Allocator, schema *arrow.Schema) arrow.Record {
	rec, _ := Concat(mem, schema, nil)
	return rec
}
