package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/parquet-go/parquet-go"
	"golang.org/x/sync/errgroup"

	"github.com/vegasq/quiver/catalog"
	"github.com/vegasq/quiver/internal/errs"
)

const (
	// DefaultBatchSize is the number of rows per batch read from a file.
	DefaultBatchSize = 8192

	// DefaultGlobLimit bounds the number of files a glob may match.
	DefaultGlobLimit = 1000

	// metadataConcurrency bounds the files whose metadata is read at once.
	metadataConcurrency = 16
)

type options struct {
	batchSize int
	globLimit int
	mem       memory.Allocator
	logger    log.Logger
}

func defaultOptions() options {
	return options{
		batchSize: DefaultBatchSize,
		globLimit: DefaultGlobLimit,
		mem:       memory.DefaultAllocator,
		logger:    log.NewNopLogger(),
	}
}

// Option configures reading tables.
type Option func(*options)

// WithBatchSize sets the number of rows per batch. Values below one are
// ignored.
func WithBatchSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithGlobLimit sets the maximum number of files a glob may match.
func WithGlobLimit(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.globLimit = n
		}
	}
}

// WithAllocator sets the allocator batches are built with.
func WithAllocator(mem memory.Allocator) Option {
	return func(o *options) {
		if mem != nil {
			o.mem = mem
		}
	}
}

// WithLogger sets the logger for file discovery and scans.
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func openParquet(file *os.File) (*parquet.File, error) {
	stat, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	pf, err := parquet.OpenFile(file, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	return pf, nil
}

// expandPattern returns the files pattern names, sorted. A pattern without
// wildcards names a single file.
func expandPattern(pattern string, limit int) ([]string, error) {
	if !strings.ContainsAny(pattern, "*?[") {
		return []string{pattern}, nil
	}

	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid glob pattern: %v", errs.ErrInvalidArgument, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: no files match pattern: %s", errs.ErrInvalidArgument, pattern)
	}
	if len(matches) > limit {
		return nil, fmt.Errorf("%w: glob pattern matched too many files (%d), maximum is %d", errs.ErrInvalidArgument, len(matches), limit)
	}
	sort.Strings(matches)
	return matches, nil
}

// ParquetTable is a table backed by one Parquet file or by every file a
// glob matches. All files must share one schema.
type ParquetTable struct {
	files  []string
	schema *arrow.Schema
	opts   options
}

var _ catalog.TableProvider = (*ParquetTable)(nil)

// OpenParquetTable opens the files pattern names and checks that their
// schemas agree. File metadata is read concurrently.
func OpenParquetTable(ctx context.Context, pattern string, opts ...Option) (*ParquetTable, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	files, err := expandPattern(pattern, o.globLimit)
	if err != nil {
		return nil, err
	}

	schemas := make([]*arrow.Schema, len(files))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(metadataConcurrency)
	for i, path := range files {
		g.Go(func() error {
			file, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", path, err)
			}
			defer func() { _ = file.Close() }()

			pf, err := openParquet(file)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			fs, err := readFileSchema(pf)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			schemas[i] = fs.schema
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, s := range schemas[1:] {
		if !s.Equal(schemas[0]) {
			return nil, fmt.Errorf("%w: %s has schema %s, %s has %s",
				errs.ErrSchemaMismatch, files[i+1], s, files[0], schemas[0])
		}
	}

	level.Debug(o.logger).Log("msg", "opened parquet table", "pattern", pattern, "files", len(files))
	return &ParquetTable{files: files, schema: schemas[0], opts: o}, nil
}

// Schema implements catalog.TableProvider.
func (t *ParquetTable) Schema() *arrow.Schema { return t.schema }

// Files returns the files of the table in scan order.
func (t *ParquetTable) Files() []string { return t.files }

// Scan streams the files in order, one batch of at most the batch size at
// a time.
func (t *ParquetTable) Scan(_ context.Context, projection []int) (catalog.RecordIterator, error) {
	schema, err := catalog.ProjectSchema(t.schema, projection)
	if err != nil {
		return nil, err
	}
	if projection == nil {
		projection = make([]int, t.schema.NumFields())
		for i := range projection {
			projection[i] = i
		}
	}
	return &parquetIterator{table: t, schema: schema, projection: projection}, nil
}

type parquetIterator struct {
	table      *ParquetTable
	schema     *arrow.Schema
	projection []int

	next    int // next file
	file    *os.File
	columns []int // parquet column per output column
	groups  []parquet.RowGroup
	rows    parquet.Rows
	buf     []parquet.Row
}

func (it *parquetIterator) Next(ctx context.Context) (arrow.Record, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if it.rows == nil {
			if len(it.groups) == 0 {
				if err := it.openNext(); err != nil {
					return nil, err
				}
				continue
			}
			it.rows = it.groups[0].Rows()
			it.groups = it.groups[1:]
		}

		if it.buf == nil {
			it.buf = make([]parquet.Row, it.table.opts.batchSize)
		}
		n, err := it.rows.ReadRows(it.buf)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to read rows: %w", err)
		}
		if errors.Is(err, io.EOF) || n == 0 {
			_ = it.rows.Close()
			it.rows = nil
		}
		if n > 0 {
			return buildRecord(it.table.opts.mem, it.schema, it.columns, it.buf[:n])
		}
	}
}

// openNext moves to the next file. It returns io.EOF after the last one.
func (it *parquetIterator) openNext() error {
	it.closeFile()
	if it.next >= len(it.table.files) {
		return io.EOF
	}
	path := it.table.files[it.next]
	it.next++

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	pf, err := openParquet(file)
	if err != nil {
		_ = file.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	fs, err := readFileSchema(pf)
	if err != nil {
		_ = file.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	if !fs.schema.Equal(it.table.schema) {
		_ = file.Close()
		return fmt.Errorf("%w: %s changed schema since the table was opened", errs.ErrSchemaMismatch, path)
	}

	it.file = file
	it.groups = pf.RowGroups()
	it.columns = make([]int, len(it.projection))
	for i, p := range it.projection {
		it.columns[i] = fs.columns[p]
	}
	level.Debug(it.table.opts.logger).Log("msg", "scanning parquet file", "path", path, "row_groups", len(it.groups))
	return nil
}

func (it *parquetIterator) closeFile() {
	if it.rows != nil {
		_ = it.rows.Close()
		it.rows = nil
	}
	it.groups = nil
	if it.file != nil {
		_ = it.file.Close()
		it.file = nil
	}
}

func (it *parquetIterator) Close() error {
	it.closeFile()
	it.next = len(it.table.files)
	return nil
}

// buildRecord converts rows into a record of schema. columns[i] is the
// parquet column index of output column i.
func buildRecord(mem memory.Allocator, schema *arrow.Schema, columns []int, rows []parquet.Row) (arrow.Record, error) {
	rb := array.NewRecordBuilder(mem, schema)
	defer rb.Release()

	for i, col := range columns {
		b := rb.Field(i)
		b.Reserve(len(rows))
		for _, row := range rows {
			v, ok := valueAt(row, col)
			if !ok || v.IsNull() {
				b.AppendNull()
				continue
			}
			if err := appendValue(b, v); err != nil {
				return nil, fmt.Errorf("column %s: %w", schema.Field(i).Name, err)
			}
		}
	}
	return rb.NewRecord(), nil
}

// valueAt finds the value of column col in a flat row.
func valueAt(row parquet.Row, col int) (parquet.Value, bool) {
	if col < len(row) && row[col].Column() == col {
		return row[col], true
	}
	for _, v := range row {
		if v.Column() == col {
			return v, true
		}
	}
	return parquet.Value{}, false
}

func appendValue(b array.Builder, v parquet.Value) error {
	switch b := b.(type) {
	case *array.BooleanBuilder:
		b.Append(v.Boolean())
	case *array.Int16Builder:
		b.Append(int16(v.Int32()))
	case *array.Int32Builder:
		b.Append(v.Int32())
	case *array.Int64Builder:
		b.Append(v.Int64())
	case *array.Float32Builder:
		b.Append(v.Float())
	case *array.Float64Builder:
		b.Append(v.Double())
	case *array.StringBuilder:
		b.Append(string(v.ByteArray()))
	case *array.BinaryBuilder:
		b.Append(v.ByteArray())
	case *array.FixedSizeBinaryBuilder:
		b.Append(v.ByteArray())
	case *array.Date32Builder:
		b.Append(arrow.Date32(v.Int32()))
	case *array.TimestampBuilder:
		b.Append(arrow.Timestamp(v.Int64()))
	default:
		return fmt.Errorf("%w: cannot read into %T", errs.ErrUnsupportedStorageType, b)
	}
	return nil
}

// ReadFile reads a whole Parquet file into memory.
func ReadFile(ctx context.Context, path string, opts ...Option) (*arrow.Schema, []arrow.Record, error) {
	table, err := OpenParquetTable(ctx, path, opts...)
	if err != nil {
		return nil, nil, err
	}
	iter, err := table.Scan(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = iter.Close() }()

	var batches []arrow.Record
	for {
		rec, err := iter.Next(ctx)
		if errors.Is(err, io.EOF) {
			return table.Schema(), batches, nil
		}
		if err != nil {
			for _, b := range batches {
				b.Release()
			}
			return nil, nil, err
		}
		batches = append(batches, rec)
	}
}
