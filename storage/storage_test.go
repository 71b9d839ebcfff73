package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/require"

	"github.com/vegasq/quiver/catalog"
	"github.com/vegasq/quiver/internal/arrowutil"
	"github.com/vegasq/quiver/internal/errs"
	"github.com/vegasq/quiver/types"
)

type personRow struct {
	ID   int64   `parquet:"id"`
	Name string  `parquet:"name"`
	Age  int32   `parquet:"age"`
	Note *string `parquet:"note,optional"`
}

func writePeople(t *testing.T, path string, rows []personRow) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)

	writer := parquet.NewGenericWriter[personRow](f)
	_, err = writer.Write(rows)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	require.NoError(t, f.Close())
}

// allTypesBatch has one column per storable type and a null in every
// nullable column.
func allTypesBatch(t *testing.T) arrow.Record {
	t.Helper()
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "z_bool", Type: types.Boolean, Nullable: true},
		{Name: "i16", Type: types.Int16, Nullable: true},
		{Name: "i32", Type: types.Int32},
		{Name: "i64", Type: types.Int64, Nullable: true},
		{Name: "f32", Type: types.Float32, Nullable: true},
		{Name: "f64", Type: types.Float64, Nullable: true},
		{Name: "s", Type: types.String, Nullable: true},
		{Name: "bin", Type: types.Binary, Nullable: true},
		{Name: "fixed", Type: types.FixedSizeBinary(2), Nullable: true},
		{Name: "d", Type: types.Date32, Nullable: true},
		{Name: "ts_ms", Type: types.Timestamp(arrow.Millisecond), Nullable: true},
		{Name: "a_ts_us", Type: types.Timestamp(arrow.Microsecond), Nullable: true},
	}, nil)

	rb := array.NewRecordBuilder(memory.NewGoAllocator(), schema)
	defer rb.Release()
	valid := []bool{true, false, true}
	rb.Field(0).(*array.BooleanBuilder).AppendValues([]bool{true, false, false}, valid)
	rb.Field(1).(*array.Int16Builder).AppendValues([]int16{-7, 0, 300}, valid)
	rb.Field(2).(*array.Int32Builder).AppendValues([]int32{1, 2, 3}, nil)
	rb.Field(3).(*array.Int64Builder).AppendValues([]int64{1 << 40, 0, -5}, valid)
	rb.Field(4).(*array.Float32Builder).AppendValues([]float32{1.5, 0, -2.25}, valid)
	rb.Field(5).(*array.Float64Builder).AppendValues([]float64{0.1, 0, 1e300}, valid)
	rb.Field(6).(*array.StringBuilder).AppendValues([]string{"héllo", "", ""}, valid)
	rb.Field(7).(*array.BinaryBuilder).AppendValues([][]byte{{0, 1}, nil, {9}}, valid)
	rb.Field(8).(*array.FixedSizeBinaryBuilder).AppendValues([][]byte{{1, 2}, {0, 0}, {3, 4}}, valid)
	rb.Field(9).(*array.Date32Builder).AppendValues([]arrow.Date32{19000, 0, -1}, valid)
	rb.Field(10).(*array.TimestampBuilder).AppendValues([]arrow.Timestamp{1700000000123, 0, 0}, valid)
	rb.Field(11).(*array.TimestampBuilder).AppendValues([]arrow.Timestamp{1700000000123456, 0, 1}, valid)
	return rb.NewRecord()
}

func values(rec arrow.Record) [][]any {
	out := make([][]any, rec.NumRows())
	for i := range out {
		row := make([]any, rec.NumCols())
		for c := range row {
			row[c] = arrowutil.ValueAt(rec.Column(c), i)
		}
		out[i] = row
	}
	return out
}

func TestWriteFile_RoundTrip(t *testing.T) {
	for _, name := range CompressionNames() {
		t.Run(name, func(t *testing.T) {
			batch := allTypesBatch(t)
			defer batch.Release()

			codec, err := ParseCompression(name)
			require.NoError(t, err)

			path := filepath.Join(t.TempDir(), "all.parquet")
			require.NoError(t, WriteFile(path, batch.Schema(), []arrow.Record{batch, batch}, WithCompression(codec)))

			schema, batches, err := ReadFile(context.Background(), path)
			require.NoError(t, err)
			defer func() {
				for _, b := range batches {
					b.Release()
				}
			}()

			require.True(t, schema.Equal(batch.Schema()), "got %s", schema)
			var got [][]any
			for _, b := range batches {
				got = append(got, values(b)...)
			}
			want := append(values(batch), values(batch)...)
			require.Equal(t, want, got)
		})
	}
}

func TestWriteFile_UnsupportedTypes(t *testing.T) {
	tests := []arrow.DataType{
		arrow.BinaryTypes.LargeString,
		arrow.BinaryTypes.LargeBinary,
		types.Timestamp(arrow.Second),
		types.Timestamp(arrow.Nanosecond),
		arrow.FixedWidthTypes.Duration_ms,
		arrow.FixedWidthTypes.MonthInterval,
	}
	for _, dt := range tests {
		t.Run(dt.String(), func(t *testing.T) {
			schema := arrow.NewSchema([]arrow.Field{{Name: "c", Type: dt, Nullable: true}}, nil)
			path := filepath.Join(t.TempDir(), "bad.parquet")

			err := WriteFile(path, schema, nil)
			require.ErrorIs(t, err, errs.ErrUnsupportedStorageType)
			_, statErr := os.Stat(path)
			require.True(t, os.IsNotExist(statErr), "no file is created for an unsupported schema")
		})
	}
}

func TestWriteFile_SchemaMismatch(t *testing.T) {
	batch := allTypesBatch(t)
	defer batch.Release()
	other := arrow.NewSchema([]arrow.Field{{Name: "x", Type: types.Int64}}, nil)

	err := WriteFile(filepath.Join(t.TempDir(), "x.parquet"), other, []arrow.Record{batch})
	require.ErrorIs(t, err, errs.ErrSchemaMismatch)
}

func TestParseCompression(t *testing.T) {
	_, err := ParseCompression("ZSTD")
	require.NoError(t, err)
	_, err = ParseCompression("")
	require.NoError(t, err)
	_, err = ParseCompression("lzo")
	require.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestParquetTable_ForeignFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "people.parquet")
	note := "vip"
	writePeople(t, path, []personRow{
		{ID: 1, Name: "Alice", Age: 30, Note: &note},
		{ID: 2, Name: "Bob", Age: 25},
	})

	table, err := OpenParquetTable(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, []string{path}, table.Files())

	want := arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: types.Int64},
		{Name: "name", Type: types.String},
		{Name: "age", Type: types.Int32},
		{Name: "note", Type: types.String, Nullable: true},
	}, nil)
	require.True(t, table.Schema().Equal(want), "got %s", table.Schema())

	rows := scanAll(t, table, []int{3, 1})
	require.Equal(t, [][]any{{"vip", "Alice"}, {nil, "Bob"}}, rows)
}

func TestParquetTable_Glob(t *testing.T) {
	dir := t.TempDir()
	writePeople(t, filepath.Join(dir, "data-2024.parquet"), []personRow{{ID: 1, Name: "Alice"}, {ID: 2, Name: "Bob"}})
	writePeople(t, filepath.Join(dir, "data-2025.parquet"), []personRow{{ID: 3, Name: "Charlie"}})
	writePeople(t, filepath.Join(dir, "other-2024.parquet"), []personRow{{ID: 4, Name: "Dave"}})

	t.Run("matching files in name order", func(t *testing.T) {
		table, err := OpenParquetTable(context.Background(), filepath.Join(dir, "data-*.parquet"), WithBatchSize(1))
		require.NoError(t, err)
		require.Len(t, table.Files(), 2)

		iter, err := table.Scan(context.Background(), []int{0})
		require.NoError(t, err)
		defer func() { _ = iter.Close() }()

		var ids []int64
		for {
			rec, err := iter.Next(context.Background())
			if errors.Is(err, io.EOF) {
				break
			}
			require.NoError(t, err)
			require.EqualValues(t, 1, rec.NumRows())
			ids = append(ids, rec.Column(0).(*array.Int64).Value(0))
			rec.Release()
		}
		require.Equal(t, []int64{1, 2, 3}, ids)
	})

	t.Run("no match", func(t *testing.T) {
		_, err := OpenParquetTable(context.Background(), filepath.Join(dir, "none-*.parquet"))
		require.ErrorIs(t, err, errs.ErrInvalidArgument)
	})

	t.Run("too many files", func(t *testing.T) {
		_, err := OpenParquetTable(context.Background(), filepath.Join(dir, "*.parquet"), WithGlobLimit(2))
		require.ErrorIs(t, err, errs.ErrInvalidArgument)
	})

	t.Run("schema mismatch", func(t *testing.T) {
		batch := allTypesBatch(t)
		defer batch.Release()
		require.NoError(t, WriteFile(filepath.Join(dir, "data-odd.parquet"), batch.Schema(), []arrow.Record{batch}))

		_, err := OpenParquetTable(context.Background(), filepath.Join(dir, "data-*.parquet"))
		require.ErrorIs(t, err, errs.ErrSchemaMismatch)
	})
}

func TestParquetTable_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := OpenParquetTable(context.Background(), filepath.Join(dir, "missing.parquet"))
	require.Error(t, err)

	corrupt := filepath.Join(dir, "corrupt.parquet")
	require.NoError(t, os.WriteFile(corrupt, []byte("not a parquet file"), 0o644))
	_, err = OpenParquetTable(context.Background(), corrupt)
	require.Error(t, err)

	_, err = OpenParquetTable(context.Background(), filepath.Join(dir, "[.parquet"))
	require.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestParquetTable_Cancelled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "people.parquet")
	writePeople(t, path, []personRow{{ID: 1, Name: "Alice"}})

	table, err := OpenParquetTable(context.Background(), path)
	require.NoError(t, err)
	iter, err := table.Scan(context.Background(), nil)
	require.NoError(t, err)
	defer func() { _ = iter.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = iter.Next(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func scanAll(t *testing.T, table catalog.TableProvider, projection []int) [][]any {
	t.Helper()
	iter, err := table.Scan(context.Background(), projection)
	require.NoError(t, err)
	defer func() { _ = iter.Close() }()

	var out [][]any
	for {
		rec, err := iter.Next(context.Background())
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		out = append(out, values(rec)...)
		rec.Release()
	}
}

func TestExtractSchemaInfo(t *testing.T) {
	type Address struct {
		Street string `parquet:"street"`
		City   string `parquet:"city"`
	}
	type Row struct {
		ID      int64    `parquet:"id"`
		Score   float64  `parquet:"score"`
		Active  bool     `parquet:"active"`
		Tags    []string `parquet:"tags,list"`
		Address Address  `parquet:"address"`
	}

	path := filepath.Join(t.TempDir(), "nested.parquet")
	f, err := os.Create(path)
	require.NoError(t, err)
	writer := parquet.NewGenericWriter[Row](f)
	_, err = writer.Write([]Row{{ID: 1, Score: 1.5, Tags: []string{"a"}, Address: Address{Street: "Main", City: "X"}}})
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	require.NoError(t, f.Close())

	infos, err := ExtractSchemaInfo(path)
	require.NoError(t, err)

	byName := make(map[string]SchemaInfo)
	for _, info := range infos {
		byName[info.Name] = info
	}

	require.Equal(t, "Int64", byName["id"].Type)
	require.Equal(t, "INT64", byName["id"].PhysicalType)
	require.True(t, byName["id"].Required)
	require.Equal(t, "Float64", byName["score"].Type)
	require.Equal(t, "Boolean", byName["active"].Type)
	require.Contains(t, byName, "address.street")
	require.Equal(t, "Utf8", byName["address.city"].Type)

	var tags SchemaInfo
	for name, info := range byName {
		if len(name) > 4 && name[:4] == "tags" {
			tags = info
		}
	}
	require.True(t, tags.Repeated)
	require.Equal(t, "UNSUPPORTED", tags.Type)

	_, err = OpenParquetTable(context.Background(), path)
	require.ErrorIs(t, err, errs.ErrUnsupportedStorageType, "nested columns cannot be queried")
}

func TestExtractSchemaInfo_Errors(t *testing.T) {
	_, err := ExtractSchemaInfo(filepath.Join(t.TempDir(), "missing.parquet"))
	require.Error(t, err)
}
