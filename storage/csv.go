package storage

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/csv"
	"github.com/go-kit/log/level"

	"github.com/vegasq/quiver/catalog"
	"github.com/vegasq/quiver/internal/errs"
	"github.com/vegasq/quiver/types"
)

// inferRows is the number of rows InferCSVSchema looks at.
const inferRows = 1000

// CSVTable is a table backed by a CSV file with a header row. Values are
// parsed into the given schema; empty fields and NULL are null.
type CSVTable struct {
	path   string
	schema *arrow.Schema
	opts   options
}

var _ catalog.TableProvider = (*CSVTable)(nil)

// OpenCSVTable returns a table over the CSV file at path. The file is read
// anew by every scan.
func OpenCSVTable(path string, schema *arrow.Schema, opts ...Option) (*CSVTable, error) {
	if schema == nil {
		return nil, fmt.Errorf("%w: csv table needs a schema", errs.ErrInvalidArgument)
	}
	for _, f := range schema.Fields() {
		switch {
		case !types.IsSupported(f.Type), f.Type.ID() == arrow.NULL, f.Type.ID() == arrow.FIXED_SIZE_BINARY:
			return nil, fmt.Errorf("%w: csv column %s of type %s", errs.ErrUnsupportedStorageType, f.Name, f.Type)
		}
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	level.Debug(o.logger).Log("msg", "opened csv table", "path", path, "columns", schema.NumFields())
	return &CSVTable{path: path, schema: schema, opts: o}, nil
}

// Schema implements catalog.TableProvider.
func (t *CSVTable) Schema() *arrow.Schema { return t.schema }

// Scan implements catalog.TableProvider.
func (t *CSVTable) Scan(_ context.Context, projection []int) (catalog.RecordIterator, error) {
	schema, err := catalog.ProjectSchema(t.schema, projection)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(t.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	reader := csv.NewReader(file, t.schema,
		csv.WithHeader(true),
		csv.WithChunk(t.opts.batchSize),
		csv.WithAllocator(t.opts.mem),
		csv.WithNullReader(true, "", "NULL"),
	)
	return &csvIterator{
		path:       t.path,
		file:       file,
		reader:     reader,
		schema:     schema,
		projection: projection,
	}, nil
}

type csvIterator struct {
	path       string
	file       *os.File
	reader     *csv.Reader
	schema     *arrow.Schema
	projection []int
}

func (it *csvIterator) Next(ctx context.Context) (arrow.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if it.reader == nil {
		return nil, io.EOF
	}
	if !it.reader.Next() {
		if err := it.reader.Err(); err != nil {
			return nil, fmt.Errorf("read %s: %w", it.path, err)
		}
		return nil, io.EOF
	}
	return catalog.ProjectRecord(it.reader.Record(), it.schema, it.projection), nil
}

func (it *csvIterator) Close() error {
	if it.reader != nil {
		it.reader.Release()
		it.reader = nil
	}
	return it.file.Close()
}

// InferCSVSchema guesses the schema of the CSV file at path from its header
// and first rows. Columns whose values all parse as integers are Int64,
// as numbers Float64, as true or false Boolean; the rest are Utf8.
func InferCSVSchema(path string) (*arrow.Schema, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	reader := csv.NewInferringReader(file,
		csv.WithHeader(true),
		csv.WithChunk(inferRows),
		csv.WithNullReader(true, "", "NULL"),
	)
	defer reader.Release()
	if !reader.Next() {
		if err := reader.Err(); err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		return nil, fmt.Errorf("%w: %s has no rows to infer a schema from", errs.ErrInvalidArgument, path)
	}

	fields := reader.Schema().Fields()
	for i, f := range fields {
		if !types.IsSupported(f.Type) || f.Type.ID() == arrow.NULL {
			f.Type = arrow.BinaryTypes.String
		}
		f.Nullable = true
		fields[i] = f
	}
	return arrow.NewSchema(fields, nil), nil
}
