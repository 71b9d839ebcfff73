package storage

import (
	"fmt"
	"os"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"
	"github.com/segmentio/encoding/json"

	"github.com/vegasq/quiver/internal/errs"
)

// Compression names accepted by ParseCompression.
var compressionCodecs = map[string]compress.Codec{
	"none":   &parquet.Uncompressed,
	"snappy": &parquet.Snappy,
	"gzip":   &parquet.Gzip,
	"zstd":   &parquet.Zstd,
	"lz4":    &parquet.Lz4Raw,
	"brotli": &parquet.Brotli,
}

// CompressionNames lists the codec names ParseCompression accepts.
func CompressionNames() []string {
	return []string{"none", "snappy", "gzip", "zstd", "lz4", "brotli"}
}

// ParseCompression resolves a codec name, case-insensitively. The empty
// name is snappy.
func ParseCompression(name string) (compress.Codec, error) {
	if name == "" {
		return &parquet.Snappy, nil
	}
	codec, ok := compressionCodecs[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: unknown parquet compression %q, want one of %s",
			errs.ErrInvalidArgument, name, strings.Join(CompressionNames(), ", "))
	}
	return codec, nil
}

type writeOptions struct {
	codec compress.Codec
}

// WriteOption configures WriteFile.
type WriteOption func(*writeOptions)

// WithCompression selects the compression codec. The default is snappy.
func WithCompression(codec compress.Codec) WriteOption {
	return func(o *writeOptions) {
		if codec != nil {
			o.codec = codec
		}
	}
}

// WriteFile writes batches of schema to a new Parquet file at path. Every
// column type must be storable; see the package documentation.
func WriteFile(path string, schema *arrow.Schema, batches []arrow.Record, opts ...WriteOption) (err error) {
	o := writeOptions{codec: &parquet.Snappy}
	for _, opt := range opts {
		opt(&o)
	}

	pq, leaves, err := parquetSchema(schema)
	if err != nil {
		return err
	}
	for i, b := range batches {
		if !b.Schema().Equal(schema) {
			return fmt.Errorf("%w: batch %d has schema %s, want %s", errs.ErrSchemaMismatch, i, b.Schema(), schema)
		}
	}

	names := make([]string, schema.NumFields())
	for i, f := range schema.Fields() {
		names[i] = f.Name
	}
	order, err := json.Marshal(names)
	if err != nil {
		return fmt.Errorf("encode column order: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close file: %w", cerr)
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	w := parquet.NewWriter(file, pq,
		parquet.Compression(o.codec),
		parquet.KeyValueMetadata(columnOrderKey, string(order)),
	)
	for _, b := range batches {
		rows, err := parquetRows(schema, leaves, b)
		if err != nil {
			return err
		}
		if _, err := w.WriteRows(rows); err != nil {
			return fmt.Errorf("failed to write rows: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %w", err)
	}
	return nil
}

// parquetRows converts rec into flat parquet rows. leaves[i] is the
// parquet column index of arrow column i.
func parquetRows(schema *arrow.Schema, leaves []int, rec arrow.Record) ([]parquet.Row, error) {
	n := int(rec.NumRows())
	rows := make([]parquet.Row, n)
	for r := range rows {
		rows[r] = make(parquet.Row, len(leaves))
	}

	for i, col := range rec.Columns() {
		field := schema.Field(i)
		leaf := leaves[i]
		var def int
		if field.Nullable {
			def = 1
		}
		for r := 0; r < n; r++ {
			if col.IsNull(r) {
				if !field.Nullable {
					return nil, fmt.Errorf("%w: null in non-nullable column %s", errs.ErrSchemaMismatch, field.Name)
				}
				rows[r][leaf] = parquet.NullValue().Level(0, 0, leaf)
				continue
			}
			v, err := parquetValue(col, r)
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", field.Name, err)
			}
			rows[r][leaf] = v.Level(0, def, leaf)
		}
	}
	return rows, nil
}

func parquetValue(arr arrow.Array, i int) (parquet.Value, error) {
	switch a := arr.(type) {
	case *array.Boolean:
		return parquet.BooleanValue(a.Value(i)), nil
	case *array.Int16:
		return parquet.Int32Value(int32(a.Value(i))), nil
	case *array.Int32:
		return parquet.Int32Value(a.Value(i)), nil
	case *array.Int64:
		return parquet.Int64Value(a.Value(i)), nil
	case *array.Float32:
		return parquet.FloatValue(a.Value(i)), nil
	case *array.Float64:
		return parquet.DoubleValue(a.Value(i)), nil
	case *array.String:
		return parquet.ByteArrayValue([]byte(a.Value(i))), nil
	case *array.Binary:
		return parquet.ByteArrayValue(a.Value(i)), nil
	case *array.FixedSizeBinary:
		return parquet.FixedLenByteArrayValue(a.Value(i)), nil
	case *array.Date32:
		return parquet.Int32Value(int32(a.Value(i))), nil
	case *array.Timestamp:
		return parquet.Int64Value(int64(a.Value(i))), nil
	}
	return parquet.Value{}, fmt.Errorf("%w: %s", errs.ErrUnsupportedStorageType, arr.DataType())
}
