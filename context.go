package quiver

import (
	"context"
	"fmt"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/panjf2000/ants/v2"
	"github.com/parquet-go/parquet-go/compress"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vegasq/quiver/catalog"
	"github.com/vegasq/quiver/expr"
	"github.com/vegasq/quiver/internal/errs"
	"github.com/vegasq/quiver/plan"
	"github.com/vegasq/quiver/sql"
	"github.com/vegasq/quiver/storage"
)

type options struct {
	cfg    Config
	logger log.Logger
	reg    prometheus.Registerer
	mem    memory.Allocator
}

// Option configures NewContext.
type Option func(*options)

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithRegisterer registers the metrics of the context with reg. By default
// they go to a registry private to the context.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) {
		if reg != nil {
			o.reg = reg
		}
	}
}

// WithAllocator sets the allocator query results are built with.
func WithAllocator(mem memory.Allocator) Option {
	return func(o *options) {
		if mem != nil {
			o.mem = mem
		}
	}
}

// Context owns a set of registered tables and functions and runs queries
// against them. Contexts share no state with each other. A Context is safe
// for concurrent use.
type Context struct {
	cfg         Config
	compression compress.Codec
	logger      log.Logger
	mem         memory.Allocator
	metrics     *metrics

	catalog   *catalog.Catalog
	functions *expr.Registry
	evaluator *expr.Evaluator

	// pool is nil when Parallelism is 1.
	pool *ants.Pool

	mu     sync.Mutex
	frames []*catalog.MemTable // tables behind ReadRecordBatches frames
}

// NewContext returns an empty Context. Call Close to release its worker
// pool.
func NewContext(opts ...Option) (*Context, error) {
	o := options{
		cfg:    DefaultConfig(),
		logger: log.NewNopLogger(),
		mem:    memory.DefaultAllocator,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.reg == nil {
		o.reg = prometheus.NewRegistry()
	}

	if err := o.cfg.Validate(); err != nil {
		return nil, err
	}
	codec, err := storage.ParseCompression(o.cfg.ParquetCompression)
	if err != nil {
		return nil, err
	}

	c := &Context{
		cfg:         o.cfg,
		compression: codec,
		logger:      o.logger,
		mem:         o.mem,
		metrics:     newMetrics(o.reg),
		catalog:     catalog.New(),
		functions:   expr.NewRegistry(),
		evaluator:   expr.NewEvaluator(o.mem),
	}
	c.evaluator.OnCall = func(_ string, convention expr.Convention) {
		c.metrics.udfCalls.WithLabelValues(convention.String()).Inc()
	}

	if o.cfg.Parallelism > 1 {
		c.pool, err = ants.NewPool(o.cfg.Parallelism)
		if err != nil {
			return nil, fmt.Errorf("failed to create worker pool: %w", err)
		}
	}
	return c, nil
}

// Config returns the configuration of the context.
func (c *Context) Config() Config { return c.cfg }

// Close releases the worker pool and every registered table. Frames over
// in-memory batches fail to collect once their context is closed; other
// frames run their queries on the calling goroutine.
func (c *Context) Close() error {
	if c.pool != nil {
		c.pool.Release()
	}
	c.catalog.Close()

	c.mu.Lock()
	frames := c.frames
	c.frames = nil
	c.mu.Unlock()
	for _, t := range frames {
		t.Release()
	}
	return nil
}

// RegisterTable makes provider queryable as name.
func (c *Context) RegisterTable(name string, provider catalog.TableProvider) error {
	if err := c.catalog.Register(name, provider); err != nil {
		return err
	}
	level.Info(c.logger).Log("msg", "registered table", "table", name, "columns", provider.Schema().NumFields())
	return nil
}

// RegisterRecordBatches registers in-memory batches as name. All batches
// must share one schema. The context retains the batches until the table
// is deregistered or the context is closed.
func (c *Context) RegisterRecordBatches(name string, batches ...arrow.Record) error {
	table, err := catalog.NewMemTable(batches...)
	if err != nil {
		return err
	}
	defer table.Release()
	return c.RegisterTable(name, table)
}

// RegisterParquet registers the Parquet file, or every file of a glob
// pattern, as name.
func (c *Context) RegisterParquet(ctx context.Context, name, pattern string) error {
	table, err := storage.OpenParquetTable(ctx, pattern, c.storageOptions()...)
	if err != nil {
		return err
	}
	return c.RegisterTable(name, table)
}

// RegisterCSV registers the CSV file at path as name. The file must have a
// header row; its values are parsed as schema. A nil schema is inferred
// from the first rows of the file.
func (c *Context) RegisterCSV(name, path string, schema *arrow.Schema) error {
	if schema == nil {
		inferred, err := storage.InferCSVSchema(path)
		if err != nil {
			return err
		}
		schema = inferred
	}
	table, err := storage.OpenCSVTable(path, schema, c.storageOptions()...)
	if err != nil {
		return err
	}
	return c.RegisterTable(name, table)
}

func (c *Context) storageOptions() []storage.Option {
	return []storage.Option{
		storage.WithBatchSize(c.cfg.BatchSize),
		storage.WithGlobLimit(c.cfg.ParquetGlobLimit),
		storage.WithAllocator(c.mem),
		storage.WithLogger(c.logger),
	}
}

// DeregisterTable removes the table registered as name.
func (c *Context) DeregisterTable(name string) error {
	if err := c.catalog.Deregister(name); err != nil {
		return err
	}
	level.Info(c.logger).Log("msg", "deregistered table", "table", name)
	return nil
}

// Tables returns the names of the registered tables, sorted.
func (c *Context) Tables() []string {
	return c.catalog.Names()
}

// RegisterUDF makes udf callable from SQL and expressions.
func (c *Context) RegisterUDF(udf expr.UDF) error {
	if err := c.functions.Register(udf); err != nil {
		return err
	}
	level.Info(c.logger).Log("msg", "registered function", "function", udf.Name, "convention", udf.Convention)
	return nil
}

// RegisterScalarUDF registers fn, called once per row. Null arguments are
// passed as nil and a nil result is a null.
func (c *Context) RegisterScalarUDF(name string, fn expr.ScalarFunc, returnType arrow.DataType, argTypes ...arrow.DataType) error {
	return c.RegisterUDF(expr.UDF{
		Name:       name,
		ArgTypes:   argTypes,
		ReturnType: returnType,
		Convention: expr.ScalarConvention,
		Scalar:     fn,
	})
}

// RegisterArrayUDF registers fn, called once per batch with whole arrays.
func (c *Context) RegisterArrayUDF(name string, fn expr.ArrayFunc, returnType arrow.DataType, argTypes ...arrow.DataType) error {
	return c.RegisterUDF(expr.UDF{
		Name:       name,
		ArgTypes:   argTypes,
		ReturnType: returnType,
		Convention: expr.ArrayConvention,
		Array:      fn,
	})
}

// SQL plans query. Every table, column and function it names is resolved
// before SQL returns; nothing is read until the frame is collected.
func (c *Context) SQL(query string) (*DataFrame, error) {
	planner := sql.Planner{Tables: c.catalog, Functions: c.functions}
	node, err := planner.PlanQuery(query)
	if err != nil {
		c.metrics.queries.WithLabelValues(sourceSQL, "error").Inc()
		level.Debug(c.logger).Log("msg", "failed to plan query", "query", query, "err", err)
		return nil, err
	}
	level.Debug(c.logger).Log("msg", "planned query", "query", query)
	return &DataFrame{c: c, source: sourceSQL, node: node}, nil
}

// Table returns a frame over the table registered as name.
func (c *Context) Table(name string) (*DataFrame, error) {
	provider, err := c.catalog.Lookup(name)
	if err != nil {
		return nil, err
	}
	return c.frameOf(name, provider)
}

// ReadRecordBatches returns a frame over in-memory batches sharing one
// schema. The batches are not registered; the context retains them until it
// is closed.
func (c *Context) ReadRecordBatches(batches ...arrow.Record) (*DataFrame, error) {
	table, err := catalog.NewMemTable(batches...)
	if err != nil {
		return nil, err
	}
	df, err := c.frameOf("batches", table)
	if err != nil {
		table.Release()
		return nil, err
	}

	c.mu.Lock()
	c.frames = append(c.frames, table)
	c.mu.Unlock()
	return df, nil
}

func (c *Context) frameOf(name string, provider catalog.TableProvider) (*DataFrame, error) {
	scan, err := plan.NewScan(name, provider, nil)
	if err != nil {
		return nil, err
	}
	return &DataFrame{c: c, source: sourceDataFrame, node: scan}, nil
}

// WriteParquet writes batches to a new Parquet file at path with the
// configured compression. All batches must share the schema of the first.
func (c *Context) WriteParquet(path string, batches ...arrow.Record) error {
	if len(batches) == 0 {
		return fmt.Errorf("%w: at least one batch is required to write a file", errs.ErrInvalidArgument)
	}
	if err := storage.WriteFile(path, batches[0].Schema(), batches, storage.WithCompression(c.compression)); err != nil {
		return err
	}
	level.Info(c.logger).Log("msg", "wrote parquet file", "path", path, "batches", len(batches))
	return nil
}
