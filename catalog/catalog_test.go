package catalog

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/require"

	"github.com/vegasq/quiver/internal/errs"
)

func testBatch(t *testing.T, a, b []int64) arrow.Record {
	t.Helper()
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "a", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
		{Name: "b", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	}, nil)
	rb := array.NewRecordBuilder(memory.NewGoAllocator(), schema)
	defer rb.Release()
	rb.Field(0).(*array.Int64Builder).AppendValues(a, nil)
	rb.Field(1).(*array.Int64Builder).AppendValues(b, nil)
	return rb.NewRecord()
}

func testTable(t *testing.T) *MemTable {
	t.Helper()
	table, err := NewMemTable(testBatch(t, []int64{1, 2, 3}, []int64{4, 5, 6}))
	require.NoError(t, err)
	return table
}

func TestCatalog_Register(t *testing.T) {
	c := New()
	table := testTable(t)

	require.NoError(t, c.Register("t", table))
	require.True(t, c.Exists("t"))

	err := c.Register("t", testTable(t))
	require.ErrorIs(t, err, errs.ErrDuplicateTable)

	got, err := c.Lookup("t")
	require.NoError(t, err)
	require.Same(t, table, got, "duplicate registration must not replace the table")
}

func TestCatalog_RegisterInvalid(t *testing.T) {
	c := New()
	require.ErrorIs(t, c.Register("", testTable(t)), errs.ErrInvalidArgument)
	require.ErrorIs(t, c.Register("t", nil), errs.ErrInvalidArgument)
}

func TestCatalog_Lookup(t *testing.T) {
	c := New()
	_, err := c.Lookup("missing")
	require.ErrorIs(t, err, errs.ErrTableNotFound)
}

func TestCatalog_Deregister(t *testing.T) {
	c := New()
	require.NoError(t, c.Register("t", testTable(t)))
	require.NoError(t, c.Deregister("t"))
	require.False(t, c.Exists("t"))
	require.ErrorIs(t, c.Deregister("t"), errs.ErrTableNotFound)

	// the name is free again
	require.NoError(t, c.Register("t", testTable(t)))
}

func TestCatalog_Names(t *testing.T) {
	c := New()
	require.Empty(t, c.Names())
	for _, name := range []string{"t", "a", "m"} {
		require.NoError(t, c.Register(name, testTable(t)))
	}
	require.ElementsMatch(t, []string{"a", "m", "t"}, c.Names())
}

func TestCatalog_ConcurrentAccess(t *testing.T) {
	c := New()
	require.NoError(t, c.Register("t", testTable(t)))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, err := c.Lookup("t")
				if err != nil {
					t.Error(err)
					return
				}
				_ = c.Names()
			}
		}()
	}
	wg.Wait()
}

func TestMemTable_Scan(t *testing.T) {
	table, err := NewMemTable(
		testBatch(t, []int64{1, 2}, []int64{10, 20}),
		testBatch(t, []int64{3}, []int64{30}),
	)
	require.NoError(t, err)

	ctx := context.Background()
	it, err := table.Scan(ctx, []int{1})
	require.NoError(t, err)
	defer it.Close()

	var got []int64
	for {
		rec, err := it.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		require.Equal(t, int64(1), rec.NumCols())
		require.Equal(t, "b", rec.ColumnName(0))
		got = append(got, rec.Column(0).(*array.Int64).Int64Values()...)
	}
	require.Equal(t, []int64{10, 20, 30}, got)
}

func TestMemTable_SchemaMismatch(t *testing.T) {
	other := arrow.NewSchema([]arrow.Field{{Name: "x", Type: arrow.BinaryTypes.String}}, nil)
	rb := array.NewRecordBuilder(memory.NewGoAllocator(), other)
	defer rb.Release()
	rb.Field(0).(*array.StringBuilder).Append("x")

	_, err := NewMemTable(testBatch(t, []int64{1}, []int64{2}), rb.NewRecord())
	require.ErrorIs(t, err, errs.ErrSchemaMismatch)

	_, err = NewMemTable()
	require.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestMemTable_ProjectionOutOfRange(t *testing.T) {
	_, err := testTable(t).Scan(context.Background(), []int{5})
	require.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestMemTable_Release(t *testing.T) {
	ctx := context.Background()
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	rb := array.NewRecordBuilder(mem, arrow.NewSchema([]arrow.Field{{Name: "v", Type: arrow.PrimitiveTypes.Int64}}, nil))
	rb.Field(0).(*array.Int64Builder).AppendValues([]int64{1, 2, 3}, nil)
	rec := rb.NewRecord()
	rb.Release()

	table, err := NewMemTable(rec)
	require.NoError(t, err)
	rec.Release()

	c := New()
	require.NoError(t, c.Register("t", table))
	table.Release()

	// a running scan outlives deregistration
	it, err := table.Scan(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, c.Deregister("t"))

	got, err := it.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2, 3}, got.Column(0).(*array.Int64).Int64Values())
	got.Release()
	require.NoError(t, it.Close())

	_, err = table.Scan(ctx, nil)
	require.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestCatalog_Close(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	rb := array.NewRecordBuilder(mem, arrow.NewSchema([]arrow.Field{{Name: "v", Type: arrow.PrimitiveTypes.Int64}}, nil))
	rb.Field(0).(*array.Int64Builder).Append(7)
	rec := rb.NewRecord()
	rb.Release()

	c := New()
	for _, name := range []string{"a", "b"} {
		table, err := NewMemTable(rec)
		require.NoError(t, err)
		require.NoError(t, c.Register(name, table))
		table.Release()
	}
	rec.Release()

	c.Close()
	require.Empty(t, c.Names())
}
