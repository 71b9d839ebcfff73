package catalog

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/vegasq/quiver/internal/errs"
)

// TableProvider supplies the batches of a table.
type TableProvider interface {
	// Schema returns the full, unprojected schema of the table.
	Schema() *arrow.Schema

	// Scan starts reading the table. projection lists the column indexes to
	// return, in order; nil means every column. Scan must not perform I/O
	// beyond what is needed to validate the request.
	Scan(ctx context.Context, projection []int) (RecordIterator, error)
}

// RecordIterator yields the batches of one scan in order.
type RecordIterator interface {
	// Next returns the next batch, or io.EOF once the scan is exhausted.
	// The caller owns one reference to the returned record.
	Next(ctx context.Context) (arrow.Record, error)

	Close() error
}

// ProjectSchema returns the schema made of the given columns of schema. A
// nil projection returns schema itself.
func ProjectSchema(schema *arrow.Schema, projection []int) (*arrow.Schema, error) {
	if projection == nil {
		return schema, nil
	}
	fields := make([]arrow.Field, len(projection))
	for i, idx := range projection {
		if idx < 0 || idx >= schema.NumFields() {
			return nil, fmt.Errorf("%w: projection index %d out of range", errs.ErrInvalidArgument, idx)
		}
		fields[i] = schema.Field(idx)
	}
	md := schema.Metadata()
	return arrow.NewSchema(fields, &md), nil
}

// ProjectRecord narrows rec to the projected columns.
func ProjectRecord(rec arrow.Record, schema *arrow.Schema, projection []int) arrow.Record {
	if projection == nil {
		rec.Retain()
		return rec
	}
	cols := make([]arrow.Array, len(projection))
	for i, idx := range projection {
		cols[i] = rec.Column(idx)
	}
	return array.NewRecord(schema, cols, rec.NumRows())
}

// MemTable is a table held in memory as an ordered sequence of batches that
// share one schema. It holds a reference to each batch until it is released
// and every scan started before that is closed.
type MemTable struct {
	schema  *arrow.Schema
	batches []arrow.Record

	mu   sync.Mutex
	refs int64
}

var _ TableProvider = (*MemTable)(nil)

// NewMemTable creates a table from batches. All batches must share the
// schema of the first; use NewMemTableWithSchema for an empty table.
func NewMemTable(batches ...arrow.Record) (*MemTable, error) {
	if len(batches) == 0 {
		return nil, fmt.Errorf("%w: at least one batch is required to infer the schema", errs.ErrInvalidArgument)
	}
	return NewMemTableWithSchema(batches[0].Schema(), batches...)
}

// NewMemTableWithSchema creates a table with an explicit schema. The table
// retains the batches, so the caller may release its own references.
func NewMemTableWithSchema(schema *arrow.Schema, batches ...arrow.Record) (*MemTable, error) {
	if schema == nil {
		return nil, fmt.Errorf("%w: schema is required", errs.ErrInvalidArgument)
	}
	for i, b := range batches {
		if b == nil {
			return nil, fmt.Errorf("%w: batch %d is nil", errs.ErrInvalidArgument, i)
		}
		if !b.Schema().Equal(schema) {
			return nil, fmt.Errorf("%w: batch %d has schema %s, want %s", errs.ErrSchemaMismatch, i, b.Schema(), schema)
		}
	}

	held := make([]arrow.Record, len(batches))
	for i, b := range batches {
		b.Retain()
		held[i] = b
	}
	return &MemTable{schema: schema, batches: held, refs: 1}, nil
}

func (t *MemTable) Schema() *arrow.Schema { return t.schema }

// Retain adds a reference to the table.
func (t *MemTable) Retain() {
	t.mu.Lock()
	t.refs++
	t.mu.Unlock()
}

// Release drops a reference. The batches are released with the last one.
func (t *MemTable) Release() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.refs <= 0 {
		return
	}
	t.refs--
	if t.refs > 0 {
		return
	}
	for _, b := range t.batches {
		b.Release()
	}
	t.batches = nil
}

// Scan returns the batches in registration order. Scanning a released
// table fails with errs.ErrInvalidArgument.
func (t *MemTable) Scan(_ context.Context, projection []int) (RecordIterator, error) {
	schema, err := ProjectSchema(t.schema, projection)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.refs <= 0 {
		return nil, fmt.Errorf("%w: table has been released", errs.ErrInvalidArgument)
	}
	t.refs++
	return &memIterator{table: t, batches: t.batches, schema: schema, projection: projection}, nil
}

type memIterator struct {
	table      *MemTable
	batches    []arrow.Record
	schema     *arrow.Schema
	projection []int
	pos        int
}

func (it *memIterator) Next(ctx context.Context) (arrow.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if it.pos >= len(it.batches) {
		return nil, io.EOF
	}
	rec := it.batches[it.pos]
	it.pos++
	return ProjectRecord(rec, it.schema, it.projection), nil
}

func (it *memIterator) Close() error {
	if it.table != nil {
		it.table.Release()
		it.table = nil
		it.batches = nil
	}
	return nil
}
