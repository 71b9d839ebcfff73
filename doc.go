// Package quiver is an embeddable SQL and DataFrame query engine over
// Apache Arrow columnar data.
//
// A Context holds registered tables and user-defined functions. Queries
// are written in SQL or built as DataFrames; both produce the same
// logical plans and return their results as Arrow record batches.
//
//	qctx, err := quiver.NewContext()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer qctx.Close()
//
//	if err := qctx.RegisterParquet(ctx, "events", "data/events-*.parquet"); err != nil {
//	    log.Fatal(err)
//	}
//
//	df, err := qctx.SQL("SELECT kind, COUNT(*) AS n FROM events WHERE size > 10 GROUP BY kind ORDER BY n DESC LIMIT 5")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	batches, err := df.Collect(ctx)
//
// The same query as a DataFrame:
//
//	df, err := qctx.Table("events")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	batches, err := df.
//	    Filter(expr.Gt(quiver.Col("size"), quiver.Lit(10))).
//	    Aggregate([]expr.Expr{quiver.Col("kind")}, []expr.Expr{expr.As(expr.CountAll(), "n")}).
//	    Sort(plan.Desc(quiver.Col("n"))).
//	    Limit(5).
//	    Collect(ctx)
//
// # Functions
//
// Scalar functions are called once per row with Go values, nil standing
// for null:
//
//	err := qctx.RegisterScalarUDF("is_null", func(args ...any) (any, error) {
//	    return args[0] == nil, nil
//	}, arrow.FixedWidthTypes.Boolean, arrow.PrimitiveTypes.Int64)
//
// Array functions are called once per batch with whole Arrow arrays. See
// the expr package for the calling conventions.
//
// # Configuration
//
// Config sets the batch size, the number of batches processed in
// parallel, the Parquet glob limit and the compression of written Parquet
// files. It can be loaded from YAML with LoadConfig or bound to command
// line flags with RegisterFlags.
//
// # Observability
//
// Contexts log through github.com/go-kit/log and count queries, rows and
// function calls in Prometheus metrics registered with the Registerer
// given to WithRegisterer.
package quiver
