package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/vegasq/quiver"
	"github.com/vegasq/quiver/output"
	"github.com/vegasq/quiver/sql"
	"github.com/vegasq/quiver/storage"
)

type flags struct {
	query      string
	format     string
	limit      int
	schema     bool
	explain    bool
	configFile string
	logLevel   string
	cfg        quiver.Config
}

func (f *flags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.query, "q", "", "SQL query (e.g., \"select * from data.parquet where age > 30\")")
	fs.StringVar(&f.format, "f", "jsonl", "Output format: "+strings.Join(output.Names(), ", "))
	fs.IntVar(&f.limit, "limit", 0, "Limit number of rows (0 = unlimited)")
	fs.BoolVar(&f.schema, "schema", false, "Show schema information instead of data")
	fs.BoolVar(&f.explain, "explain", false, "Print the query plan instead of running the query")
	fs.StringVar(&f.configFile, "config.file", "", "YAML file to load the engine configuration from. Flags override it.")
	fs.StringVar(&f.logLevel, "log.level", "warn", "Only log messages with the given severity or above: debug, info, warn, error.")
	f.cfg.RegisterFlags(fs)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func usage(fs *flag.FlagSet, stderr io.Writer) func() {
	return func() {
		fmt.Fprintf(stderr, "Usage: quiver [options] [name=]<file.parquet|glob|file.csv> ...\n\n")
		fmt.Fprintf(stderr, "Query Parquet and CSV files with SQL.\n\n")
		fmt.Fprintf(stderr, "IMPORTANT: All flags must come BEFORE file arguments.\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  quiver data.parquet\n")
		fmt.Fprintf(stderr, "  quiver -f csv 'logs/*.parquet'\n")
		fmt.Fprintf(stderr, "  quiver -q \"select * from data.parquet where age > 30\"\n")
		fmt.Fprintf(stderr, "  quiver -q \"select kind, count(*) from events group by kind\" events=data/events.parquet\n")
		fmt.Fprintf(stderr, "  quiver -schema data.parquet\n")
	}
}

// parseFlags parses args twice: once to find the config file, and again so
// flags given on the command line override the file.
func parseFlags(args []string, stderr io.Writer) (*flags, *flag.FlagSet, error) {
	f := &flags{}
	fs := flag.NewFlagSet("quiver", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = usage(fs, stderr)
	f.register(fs)

	if err := fs.Parse(args); err != nil {
		return nil, fs, err
	}
	if f.configFile == "" {
		return f, fs, nil
	}

	cfg, err := quiver.LoadConfig(f.configFile)
	if err != nil {
		return nil, fs, err
	}
	f.cfg = cfg
	if err := fs.Parse(args); err != nil {
		return nil, fs, err
	}
	return f, fs, nil
}

func newLogger(name string, w io.Writer) (log.Logger, error) {
	var allow level.Option
	switch strings.ToLower(name) {
	case "debug":
		allow = level.AllowDebug()
	case "info":
		allow = level.AllowInfo()
	case "warn":
		allow = level.AllowWarn()
	case "error":
		allow = level.AllowError()
	default:
		return nil, fmt.Errorf("unknown log level %q", name)
	}
	logger := log.NewLogfmtLogger(log.NewSyncWriter(w))
	logger = level.NewFilter(logger, allow)
	return log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller), nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	f, fs, err := parseFlags(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	// Validate flag values
	if f.limit < 0 {
		fmt.Fprintf(stderr, "Error: -limit must be non-negative, got %d\n", f.limit)
		return 2
	}
	if f.schema && (f.query != "" || f.explain) {
		fmt.Fprintf(stderr, "Error: -schema cannot be combined with -q or -explain\n")
		return 2
	}
	if err := f.cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	logger, err := newLogger(f.logLevel, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	if f.schema {
		if fs.NArg() == 0 {
			fmt.Fprintf(stderr, "Error: missing file argument\n\n")
			fs.Usage()
			return 2
		}
		_, path := splitTableArg(fs.Arg(0))
		if err := printSchema(path, f.format, stdout, stderr); err != nil {
			reportError(stderr, path, err)
			return 1
		}
		return 0
	}

	if err := runQuery(ctx, f, fs.Args(), logger, stdout); err != nil {
		if errors.Is(err, errMissingTable) {
			fmt.Fprintf(stderr, "Error: missing file argument\n\n")
			fs.Usage()
			return 2
		}
		reportError(stderr, "", err)
		return 1
	}
	return 0
}

var errMissingTable = errors.New("no table to query")

func runQuery(ctx context.Context, f *flags, tables []string, logger log.Logger, stdout io.Writer) error {
	qctx, err := quiver.NewContext(quiver.WithConfig(f.cfg), quiver.WithLogger(logger))
	if err != nil {
		return err
	}
	defer func() { _ = qctx.Close() }()

	var first string
	for _, arg := range tables {
		name, path := splitTableArg(arg)
		if err := registerFile(ctx, qctx, name, path); err != nil {
			return err
		}
		if first == "" {
			first = name
		}
	}

	query := f.query
	if query == "" {
		if first == "" {
			return errMissingTable
		}
		query = "SELECT * FROM " + quoteIdent(first)
	}

	// A FROM clause naming an unregistered file registers it under its path
	stmt, err := sql.Parse(query)
	if err != nil {
		return err
	}
	if !slices.Contains(qctx.Tables(), stmt.Table) {
		if err := registerFile(ctx, qctx, stmt.Table, stmt.Table); err != nil {
			return err
		}
	}

	df, err := qctx.SQL(query)
	if err != nil {
		return err
	}
	if f.limit > 0 {
		df = df.Limit(f.limit)
	}
	if f.explain {
		_, err := io.WriteString(stdout, df.Explain())
		return err
	}

	formatter, err := output.New(f.format, stdout)
	if err != nil {
		return err
	}
	batches, err := df.Collect(ctx)
	if err != nil {
		return err
	}
	defer func() {
		for _, b := range batches {
			b.Release()
		}
	}()
	return formatter.Format(df.Schema(), batches)
}

// splitTableArg splits name=path. Without a name the path is the name.
func splitTableArg(arg string) (name, path string) {
	if i := strings.IndexByte(arg, '='); i > 0 && !strings.ContainsAny(arg[:i], `/\.*?[`) {
		return arg[:i], arg[i+1:]
	}
	return arg, arg
}

func registerFile(ctx context.Context, qctx *quiver.Context, name, path string) error {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return qctx.RegisterCSV(name, path, nil)
	}
	return qctx.RegisterParquet(ctx, name, path)
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func reportError(stderr io.Writer, path string, err error) {
	var pathErr *os.PathError
	if errors.As(err, &pathErr) && errors.Is(err, os.ErrNotExist) {
		if path == "" {
			path = pathErr.Path
		}
		fmt.Fprintf(stderr, "Error: file '%s' not found\n", path)
		fmt.Fprintf(stderr, "Please check the file path and try again.\n")
		return
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
}

var schemaInfoSchema = arrow.NewSchema([]arrow.Field{
	{Name: "name", Type: arrow.BinaryTypes.String},
	{Name: "type", Type: arrow.BinaryTypes.String},
	{Name: "physical_type", Type: arrow.BinaryTypes.String},
	{Name: "logical_type", Type: arrow.BinaryTypes.String},
	{Name: "required", Type: arrow.FixedWidthTypes.Boolean},
	{Name: "optional", Type: arrow.FixedWidthTypes.Boolean},
	{Name: "repeated", Type: arrow.FixedWidthTypes.Boolean},
}, nil)

// printSchema describes the columns of a Parquet file. For a glob the first
// matching file is described.
func printSchema(pattern, format string, stdout, stderr io.Writer) error {
	formatter, err := output.New(format, stdout)
	if err != nil {
		return err
	}

	path := pattern
	if strings.ContainsAny(pattern, "*?[") {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return fmt.Errorf("invalid glob pattern: %w", err)
		}
		if len(matches) == 0 {
			return fmt.Errorf("no files match pattern: %s", pattern)
		}
		path = matches[0]
		if len(matches) > 1 {
			fmt.Fprintf(stderr, "# Showing schema from: %s (%d files matched)\n", path, len(matches))
		}
	}

	infos, err := storage.ExtractSchemaInfo(path)
	if err != nil {
		return err
	}

	b := array.NewRecordBuilder(memory.DefaultAllocator, schemaInfoSchema)
	defer b.Release()
	for _, info := range infos {
		b.Field(0).(*array.StringBuilder).Append(info.Name)
		b.Field(1).(*array.StringBuilder).Append(info.Type)
		b.Field(2).(*array.StringBuilder).Append(info.PhysicalType)
		b.Field(3).(*array.StringBuilder).Append(info.LogicalType)
		b.Field(4).(*array.BooleanBuilder).Append(info.Required)
		b.Field(5).(*array.BooleanBuilder).Append(info.Optional)
		b.Field(6).(*array.BooleanBuilder).Append(info.Repeated)
	}
	rec := b.NewRecord()
	defer rec.Release()
	return formatter.Format(schemaInfoSchema, []arrow.Record{rec})
}
