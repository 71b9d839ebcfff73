package quiver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"path/filepath"
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/require"

	"github.com/vegasq/quiver/expr"
	"github.com/vegasq/quiver/plan"
)

func TestDataFrame_ProjectionArithmetic(t *testing.T) {
	c := newTestContext(t)
	df, err := c.ReadRecordBatches(abBatch(t))
	require.NoError(t, err)

	got := collect(t, df.Select(
		expr.Add(Col("a"), Col("b")),
		expr.Sub(Col("a"), Col("b")),
	))
	require.Equal(t, [][]any{
		{int64(5), int64(7), int64(9)},
		{int64(-3), int64(-3), int64(-3)},
	}, columns(got))
}

func TestDataFrame_FilterBindingOrder(t *testing.T) {
	c := newTestContext(t)
	df, err := c.ReadRecordBatches(abBatch(t))
	require.NoError(t, err)

	project := []expr.Expr{
		expr.As(expr.Add(Col("a"), Col("b")), "sum"),
		expr.As(expr.Sub(Col("a"), Col("b")), "diff"),
	}

	t.Run("filter then select sees source columns", func(t *testing.T) {
		got := collect(t, df.Filter(expr.Gt(Col("a"), Lit(2))).Select(project...))
		require.Equal(t, [][]any{{int64(9)}, {int64(-3)}}, columns(got))
	})

	t.Run("select then filter sees projected columns", func(t *testing.T) {
		out := df.Select(project...).Filter(expr.Gt(Col("a"), Lit(2)))
		require.ErrorIs(t, out.Err(), ErrUnresolvedColumn)
		_, err := out.Collect(context.Background())
		require.ErrorIs(t, err, ErrUnresolvedColumn)
		require.Nil(t, out.Schema())

		got := collect(t, df.Select(project...).Filter(expr.Gt(Col("sum"), Lit(7))))
		require.Equal(t, [][]any{{int64(9)}, {int64(-3)}}, columns(got))
	})
}

func TestDataFrame_LimitIsPrefix(t *testing.T) {
	c := newTestContext(t)
	df, err := c.ReadRecordBatches(abBatch(t))
	require.NoError(t, err)

	tests := []struct {
		n    int
		want []any
	}{
		{n: 0, want: nil},
		{n: 1, want: []any{int64(1)}},
		{n: 2, want: []any{int64(1), int64(2)}},
		{n: 10, want: []any{int64(1), int64(2), int64(3)}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.n), func(t *testing.T) {
			got := collect(t, df.Limit(tt.n).SelectColumns("a"))
			require.Equal(t, int64(len(tt.want)), numRows(got))
			if tt.want != nil {
				require.Equal(t, tt.want, columns(got)[0])
			}
		})
	}

	require.ErrorIs(t, df.Limit(-1).Err(), ErrInvalidArgument)
}

func TestDataFrame_ScalarUDFNulls(t *testing.T) {
	c := newTestContext(t)
	require.NoError(t, c.RegisterScalarUDF("is_null", func(args ...any) (any, error) {
		return args[0] == nil, nil
	}, arrow.FixedWidthTypes.Boolean, arrow.PrimitiveTypes.Int64))
	require.NoError(t, c.RegisterScalarUDF("my_abs", func(args ...any) (any, error) {
		if args[0] == nil {
			return nil, nil
		}
		return math.Abs(args[0].(float64)), nil
	}, arrow.PrimitiveTypes.Float64, arrow.PrimitiveTypes.Float64))

	schema := arrow.NewSchema([]arrow.Field{
		{Name: "a", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
		{Name: "f", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	}, nil)
	require.NoError(t, c.RegisterRecordBatches("t", recordFromJSON(t, schema,
		`[{"a":0,"f":-1.2},{"a":null,"f":null},{"a":2,"f":1.2}]`)))

	got := collect(t, sqlFrame(t, c, "SELECT is_null(a), my_abs(f) FROM t"))
	require.Equal(t, [][]any{
		{false, true, false},
		{1.2, nil, 1.2},
	}, columns(got))
}

func TestDataFrame_ScalarUDFNumericResult(t *testing.T) {
	floorIt := func(args ...any) (any, error) {
		if args[0] == nil {
			return nil, nil
		}
		return math.Floor(args[0].(float64)), nil
	}
	schema := arrow.NewSchema([]arrow.Field{{Name: "a", Type: arrow.PrimitiveTypes.Float64, Nullable: true}}, nil)

	tests := []struct {
		name    string
		rows    string
		want    []any
		wantErr error
	}{
		{name: "truncated into int64", rows: `[{"a":2.7},{"a":-0.5},{"a":null}]`, want: []any{int64(2), int64(-1), nil}},
		{name: "out of range", rows: `[{"a":1e300}]`, wantErr: ErrNumericOverflow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestContext(t)
			require.NoError(t, c.RegisterScalarUDF("floor_it", floorIt, arrow.PrimitiveTypes.Int64, arrow.PrimitiveTypes.Float64))
			require.NoError(t, c.RegisterRecordBatches("t", recordFromJSON(t, schema, tt.rows)))

			df := sqlFrame(t, c, "SELECT floor_it(a) FROM t")
			if tt.wantErr != nil {
				_, err := df.Collect(context.Background())
				require.ErrorIs(t, err, ErrExecution)
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.Equal(t, [][]any{tt.want}, columns(collect(t, df)))
		})
	}
}

func TestDataFrame_ArrayUDF(t *testing.T) {
	c := newTestContext(t)
	require.NoError(t, c.RegisterArrayUDF("double_it", func(args ...arrow.Array) (arrow.Array, error) {
		in := args[0].(*array.Int64)
		b := array.NewInt64Builder(memory.DefaultAllocator)
		defer b.Release()
		for i := 0; i < in.Len(); i++ {
			if in.IsNull(i) {
				b.AppendNull()
				continue
			}
			b.Append(in.Value(i) * 2)
		}
		return b.NewArray(), nil
	}, arrow.PrimitiveTypes.Int64, arrow.PrimitiveTypes.Int64))
	require.NoError(t, c.RegisterArrayUDF("wrong_length", func(args ...arrow.Array) (arrow.Array, error) {
		b := array.NewInt64Builder(memory.DefaultAllocator)
		defer b.Release()
		b.Append(1)
		return b.NewArray(), nil
	}, arrow.PrimitiveTypes.Int64, arrow.PrimitiveTypes.Int64))
	require.NoError(t, c.RegisterRecordBatches("t", abBatch(t)))

	got := collect(t, sqlFrame(t, c, "SELECT double_it(a) AS d FROM t"))
	require.Equal(t, [][]any{{int64(2), int64(4), int64(6)}}, columns(got))

	_, err := sqlFrame(t, c, "SELECT wrong_length(a) FROM t").Collect(context.Background())
	require.ErrorIs(t, err, ErrUnsupportedArrayUDF)
}

func TestDataFrame_UDFRegistrationErrors(t *testing.T) {
	c := newTestContext(t)
	identity := func(args ...any) (any, error) { return args[0], nil }
	require.NoError(t, c.RegisterScalarUDF("ident", identity, arrow.PrimitiveTypes.Int64, arrow.PrimitiveTypes.Int64))
	require.NoError(t, c.RegisterRecordBatches("t", abBatch(t)))

	tests := []struct {
		name string
		err  error
		do   func() error
	}{
		{
			name: "duplicate udf",
			err:  ErrDuplicateUDF,
			do: func() error {
				return c.RegisterScalarUDF("IDENT", identity, arrow.PrimitiveTypes.Int64, arrow.PrimitiveTypes.Int64)
			},
		},
		{
			name: "builtin name",
			err:  ErrDuplicateUDF,
			do: func() error {
				return c.RegisterScalarUDF("abs", identity, arrow.PrimitiveTypes.Int64, arrow.PrimitiveTypes.Int64)
			},
		},
		{
			name: "array udf over unsupported type",
			err:  ErrUnsupportedArrayUDF,
			do: func() error {
				return c.RegisterArrayUDF("big", func(args ...arrow.Array) (arrow.Array, error) { return nil, nil },
					arrow.PrimitiveTypes.Int64, arrow.BinaryTypes.LargeString)
			},
		},
		{
			name: "arity mismatch",
			err:  ErrTypeMismatch,
			do: func() error {
				_, err := c.SQL("SELECT ident(a, b) FROM t")
				return err
			},
		},
		{
			name: "argument type mismatch",
			err:  ErrTypeMismatch,
			do: func() error {
				_, err := c.SQL("SELECT ident('x') FROM t")
				return err
			},
		},
		{
			name: "unknown function",
			err:  ErrUnknownFunction,
			do: func() error {
				_, err := c.SQL("SELECT nope(a) FROM t")
				return err
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, tt.do(), tt.err)
		})
	}
}

func TestDataFrame_UDFErrorIsExecutionError(t *testing.T) {
	c := newTestContext(t)
	boom := errors.New("boom")
	require.NoError(t, c.RegisterScalarUDF("fail", func(args ...any) (any, error) {
		return nil, boom
	}, arrow.PrimitiveTypes.Int64, arrow.PrimitiveTypes.Int64))
	require.NoError(t, c.RegisterRecordBatches("t", abBatch(t)))

	batches, err := sqlFrame(t, c, "SELECT fail(a) FROM t").Collect(context.Background())
	require.Nil(t, batches)
	require.ErrorIs(t, err, ErrExecution)
	require.ErrorIs(t, err, boom)

	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
}

// bucketBatch has 100 rows of a: even rows near 0, odd rows near 50.
func bucketBatch(t *testing.T) arrow.Record {
	schema := arrow.NewSchema([]arrow.Field{{Name: "a", Type: arrow.PrimitiveTypes.Float64, Nullable: true}}, nil)
	b := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer b.Release()
	fb := b.Field(0).(*array.Float64Builder)
	for i := 0; i < 100; i++ {
		k := float64(i / 2)
		if i%2 == 0 {
			fb.Append(0.01 * k)
		} else {
			fb.Append(49.51 + 0.02*k)
		}
	}
	rec := b.NewRecord()
	t.Cleanup(rec.Release)
	return rec
}

func TestSQL_GroupByCount(t *testing.T) {
	c := newTestContext(t)
	require.NoError(t, c.RegisterRecordBatches("t", bucketBatch(t)))

	got := collect(t, sqlFrame(t, c, "SELECT COUNT(a) FROM t"))
	require.Equal(t, [][]any{{int64(100)}}, columns(got))
	require.Equal(t, "COUNT(a)", got[0].Schema().Field(0).Name)

	got = collect(t, sqlFrame(t, c, "SELECT COUNT(a) FROM t WHERE a > 10"))
	require.Equal(t, [][]any{{int64(50)}}, columns(got))

	const grouped = "SELECT CAST(a AS INT) AS bucket, COUNT(a) AS n FROM t GROUP BY CAST(a AS INT) ORDER BY bucket"
	want := [][]any{
		{int32(0), int32(49), int32(50)},
		{int64(50), int64(25), int64(25)},
	}
	for run := 0; run < 3; run++ {
		require.Equal(t, want, columns(collect(t, sqlFrame(t, c, grouped))))
	}
}

func TestDataFrame_AggregateEmptyInput(t *testing.T) {
	c := newTestContext(t)
	df, err := c.ReadRecordBatches(abBatch(t))
	require.NoError(t, err)

	empty := df.Filter(expr.Gt(Col("a"), Lit(100)))
	got := collect(t, empty.Aggregate(nil, []expr.Expr{expr.CountAll(), expr.Sum(Col("a"))}))
	require.Equal(t, [][]any{{int64(0)}, {nil}}, columns(got))

	got = collect(t, empty.Aggregate([]expr.Expr{Col("b")}, []expr.Expr{expr.CountAll()}))
	require.Len(t, got, 1)
	require.Zero(t, got[0].NumRows())
	require.Equal(t, 2, int(got[0].NumCols()))
}

func TestSQL_OrderByLimit(t *testing.T) {
	values := make([]int64, 200)
	for i := range values {
		values[i] = int64(i)
	}
	rand.New(rand.NewSource(1)).Shuffle(len(values), func(i, j int) { values[i], values[j] = values[j], values[i] })

	schema := arrow.NewSchema([]arrow.Field{{Name: "a", Type: arrow.PrimitiveTypes.Int64, Nullable: true}}, nil)
	var batches []arrow.Record
	for start := 0; start < len(values); start += 30 {
		end := min(start+30, len(values))
		b := array.NewRecordBuilder(memory.DefaultAllocator, schema)
		b.Field(0).(*array.Int64Builder).AppendValues(values[start:end], nil)
		if start == 0 {
			b.Field(0).AppendNull()
		}
		rec := b.NewRecord()
		b.Release()
		t.Cleanup(rec.Release)
		batches = append(batches, rec)
	}

	for _, parallelism := range []int{1, 4} {
		t.Run(fmt.Sprintf("parallelism %d", parallelism), func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Parallelism = parallelism
			c := newTestContext(t, WithConfig(cfg))
			require.NoError(t, c.RegisterRecordBatches("t", batches...))

			got := collect(t, sqlFrame(t, c, "SELECT a FROM t ORDER BY a DESC LIMIT 2"))
			require.Equal(t, [][]any{{int64(199), int64(198)}}, columns(got))

			got = collect(t, sqlFrame(t, c, "SELECT a FROM t ORDER BY a ASC LIMIT 2"))
			require.Equal(t, [][]any{{int64(0), int64(1)}}, columns(got))

			df, err := c.Table("t")
			require.NoError(t, err)
			got = collect(t, df.Sort(plan.Desc(Col("a"))).Limit(2))
			require.Equal(t, [][]any{{int64(199), int64(198)}}, columns(got))

			all := columns(collect(t, df.Sort(plan.Desc(Col("a")))))[0]
			require.Len(t, all, 201)
			require.Nil(t, all[200])
		})
	}
}

func TestDataFrame_ParallelMatchesSerial(t *testing.T) {
	schema := arrow.NewSchema([]arrow.Field{{Name: "a", Type: arrow.PrimitiveTypes.Int64, Nullable: true}}, nil)
	var batches []arrow.Record
	for batch := 0; batch < 20; batch++ {
		b := array.NewRecordBuilder(memory.DefaultAllocator, schema)
		for i := 0; i < 50; i++ {
			b.Field(0).(*array.Int64Builder).Append(int64(batch*50 + i))
		}
		rec := b.NewRecord()
		b.Release()
		t.Cleanup(rec.Release)
		batches = append(batches, rec)
	}

	run := func(parallelism int) [][]any {
		cfg := DefaultConfig()
		cfg.Parallelism = parallelism
		cfg.BatchSize = 7
		c := newTestContext(t, WithConfig(cfg))
		require.NoError(t, c.RegisterRecordBatches("t", batches...))
		return columns(collect(t, sqlFrame(t, c, "SELECT a * 2 AS d, a % 3 AS m FROM t WHERE a % 2 = 0")))
	}

	serial := run(1)
	require.Len(t, serial[0], 500)
	for _, p := range []int{2, 8} {
		require.Equal(t, serial, run(p))
	}
}

func TestSQL_UnregisteredTable(t *testing.T) {
	c := newTestContext(t)
	df, err := c.SQL("SELECT a FROM b")
	require.ErrorIs(t, err, ErrTableNotFound)
	require.Nil(t, df)

	_, err = c.Table("b")
	require.ErrorIs(t, err, ErrTableNotFound)
}

func TestSQL_CastCoverage(t *testing.T) {
	c := newTestContext(t)
	require.NoError(t, c.RegisterRecordBatches("t", abBatch(t)))

	tests := []struct {
		typ  string
		want arrow.DataType
	}{
		{typ: "SMALLINT", want: arrow.PrimitiveTypes.Int16},
		{typ: "INT", want: arrow.PrimitiveTypes.Int32},
		{typ: "BIGINT", want: arrow.PrimitiveTypes.Int64},
		{typ: "FLOAT(32)", want: arrow.PrimitiveTypes.Float32},
		{typ: "FLOAT(64)", want: arrow.PrimitiveTypes.Float64},
		{typ: "FLOAT", want: arrow.PrimitiveTypes.Float64},
	}
	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			got := collect(t, sqlFrame(t, c, fmt.Sprintf("SELECT CAST(1 AS %s) AS v FROM t LIMIT 1", tt.typ)))
			require.True(t, arrow.TypeEqual(tt.want, got[0].Schema().Field(0).Type))
			require.Equal(t, int64(1), got[0].NumRows())
		})
	}

	_, err := c.SQL("SELECT CAST(a AS INTERVAL) FROM t")
	require.ErrorIs(t, err, ErrUnsupportedCast)
}

func TestContext_ParquetRoundTrip(t *testing.T) {
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "flag", Type: arrow.FixedWidthTypes.Boolean, Nullable: true},
		{Name: "i16", Type: arrow.PrimitiveTypes.Int16, Nullable: true},
		{Name: "i32", Type: arrow.PrimitiveTypes.Int32, Nullable: true},
		{Name: "i64", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
		{Name: "f32", Type: arrow.PrimitiveTypes.Float32, Nullable: true},
		{Name: "f64", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
		{Name: "s", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "bin", Type: arrow.BinaryTypes.Binary, Nullable: true},
		{Name: "fixed", Type: &arrow.FixedSizeBinaryType{ByteWidth: 2}, Nullable: true},
		{Name: "day", Type: arrow.FixedWidthTypes.Date32, Nullable: true},
		{Name: "ms", Type: &arrow.TimestampType{Unit: arrow.Millisecond}, Nullable: true},
		{Name: "us", Type: &arrow.TimestampType{Unit: arrow.Microsecond}, Nullable: true},
	}, nil)
	rec := recordFromJSON(t, schema, `[
		{"flag":true,"i16":-3,"i32":70000,"i64":-9000000000,"f32":1.5,"f64":-2.25,"s":"héllo","bin":"AQI=","fixed":"AAE=","day":"2024-02-29","ms":"2024-02-29T10:00:00.123Z","us":"2024-02-29T10:00:00.123456Z"},
		{"flag":null,"i16":null,"i32":null,"i64":null,"f32":null,"f64":null,"s":null,"bin":null,"fixed":null,"day":null,"ms":null,"us":null}
	]`)

	cfg := DefaultConfig()
	cfg.ParquetCompression = "zstd"
	c := newTestContext(t, WithConfig(cfg))
	path := filepath.Join(t.TempDir(), "all.parquet")
	require.NoError(t, c.WriteParquet(path, rec))
	require.NoError(t, c.RegisterParquet(context.Background(), "alltypes", path))

	got := collect(t, sqlFrame(t, c, "SELECT * FROM alltypes"))
	require.True(t, got[0].Schema().Equal(rec.Schema()), "got %s", got[0].Schema())
	require.Equal(t, columns([]arrow.Record{rec}), columns(got))
}

func TestDataFrame_WriteParquet(t *testing.T) {
	c := newTestContext(t)
	df, err := c.ReadRecordBatches(abBatch(t))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out.parquet")
	require.NoError(t, df.Select(expr.As(expr.Mul(Col("a"), Col("b")), "product")).WriteParquet(context.Background(), path))

	require.NoError(t, c.RegisterParquet(context.Background(), "out", path))
	got := collect(t, sqlFrame(t, c, "SELECT product FROM out WHERE product > 5"))
	require.Equal(t, [][]any{{int64(10), int64(18)}}, columns(got))

	require.ErrorIs(t, c.WriteParquet(path), ErrInvalidArgument)
}

func TestContext_Registration(t *testing.T) {
	c := newTestContext(t)
	require.NoError(t, c.RegisterRecordBatches("t", abBatch(t)))
	require.ErrorIs(t, c.RegisterRecordBatches("t", abBatch(t)), ErrDuplicateTable)
	require.ErrorIs(t, c.RegisterRecordBatches("empty"), ErrInvalidArgument)

	other := recordFromJSON(t, arrow.NewSchema([]arrow.Field{{Name: "x", Type: arrow.BinaryTypes.String, Nullable: true}}, nil), `[{"x":"y"}]`)
	require.ErrorIs(t, c.RegisterRecordBatches("mixed", abBatch(t), other), ErrSchemaMismatch)

	require.NoError(t, c.RegisterRecordBatches("u", other))
	require.Equal(t, []string{"t", "u"}, c.Tables())

	require.NoError(t, c.DeregisterTable("t"))
	require.Equal(t, []string{"u"}, c.Tables())
	require.ErrorIs(t, c.DeregisterTable("t"), ErrTableNotFound)
	_, err := c.SQL("SELECT a FROM t")
	require.ErrorIs(t, err, ErrTableNotFound)
}

func TestContext_BatchOwnership(t *testing.T) {
	tests := []struct {
		name  string
		frame func(t *testing.T, c *Context, rec arrow.Record) *DataFrame
		// done runs after the results are released and before Close.
		done func(t *testing.T, c *Context)
	}{
		{
			name: "registered then deregistered",
			frame: func(t *testing.T, c *Context, rec arrow.Record) *DataFrame {
				require.NoError(t, c.RegisterRecordBatches("t", rec))
				return sqlFrame(t, c, "SELECT a + b AS s FROM t")
			},
			done: func(t *testing.T, c *Context) {
				require.NoError(t, c.DeregisterTable("t"))
			},
		},
		{
			name: "registered until close",
			frame: func(t *testing.T, c *Context, rec arrow.Record) *DataFrame {
				require.NoError(t, c.RegisterRecordBatches("t", rec))
				return sqlFrame(t, c, "SELECT a + b AS s FROM t ORDER BY s")
			},
		},
		{
			name: "read batches",
			frame: func(t *testing.T, c *Context, rec arrow.Record) *DataFrame {
				df, err := c.ReadRecordBatches(rec)
				require.NoError(t, err)
				return df.Select(expr.As(expr.Add(Col("a"), Col("b")), "s"))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
			c, err := NewContext(WithAllocator(mem))
			require.NoError(t, err)

			rec, _, err := array.RecordFromJSON(mem, abSchema, strings.NewReader(`[{"a":1,"b":4},{"a":2,"b":5},{"a":3,"b":6}]`))
			require.NoError(t, err)
			df := tt.frame(t, c, rec)
			rec.Release()

			for i := 0; i < 2; i++ {
				batches, err := df.Collect(context.Background())
				require.NoError(t, err)
				require.Equal(t, [][]any{{int64(5), int64(7), int64(9)}}, columns(batches))
				for _, b := range batches {
					b.Release()
				}
			}

			if tt.done != nil {
				tt.done(t, c)
			}
			require.NoError(t, c.Close())
			mem.AssertSize(t, 0)

			_, err = df.Collect(context.Background())
			require.ErrorIs(t, err, ErrInvalidArgument)
		})
	}
}

func TestContext_RegisterCSV(t *testing.T) {
	c := newTestContext(t)
	path := filepath.Join(t.TempDir(), "people.csv")
	require.NoError(t, writeFile(path, "name,age\nalice,30\nbob,\ncarol,41\n"))

	schema := arrow.NewSchema([]arrow.Field{
		{Name: "name", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "age", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	}, nil)
	require.NoError(t, c.RegisterCSV("people", path, schema))

	got := collect(t, sqlFrame(t, c, "SELECT name FROM people WHERE age IS NULL OR age > 40 ORDER BY name"))
	require.Equal(t, [][]any{{"bob", "carol"}}, columns(got))
}

func TestDataFrame_Explain(t *testing.T) {
	c := newTestContext(t)
	require.NoError(t, c.RegisterRecordBatches("t", abBatch(t)))

	df := sqlFrame(t, c, "SELECT a FROM t WHERE b > 4 ORDER BY a DESC LIMIT 1")
	explain := df.Explain()
	for _, node := range []string{"Sort:", "Projection:", "Filter:", "Scan:"} {
		require.Contains(t, explain, node)
	}
	require.Equal(t, explain, plan.Format(df.LogicalPlan()))
	require.True(t, strings.HasPrefix(explain, "Sort:"))

	bad, err := c.Table("t")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(bad.SelectColumns("nope").Explain(), "Error:"))
}

func TestDataFrame_Immutable(t *testing.T) {
	c := newTestContext(t)
	df, err := c.ReadRecordBatches(abBatch(t))
	require.NoError(t, err)

	before := df.Explain()
	_ = df.Filter(expr.Gt(Col("a"), Lit(1))).Limit(1)
	require.Equal(t, before, df.Explain())
	require.Equal(t, int64(3), numRows(collect(t, df)))
}

func TestDataFrame_CollectCancelled(t *testing.T) {
	c := newTestContext(t)
	df, err := c.ReadRecordBatches(abBatch(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	batches, err := df.Collect(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Nil(t, batches)
}
