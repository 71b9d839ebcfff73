// Package storage reads and writes the files quiver queries: Apache
// Parquet files, globs of Parquet files sharing one schema, and CSV files.
//
// # Reading Tables
//
// A ParquetTable streams batches file by file and row group by row group.
// Scans read only the projected columns into Arrow arrays:
//
//	table, err := storage.OpenParquetTable(ctx, "data/2024-*.parquet",
//	    storage.WithBatchSize(4096))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	ctx.RegisterTable("events", table)
//
// Glob patterns may use *, ? and [range]. At most DefaultGlobLimit files
// may match unless WithGlobLimit says otherwise. A pattern without
// wildcards names a single file.
//
// CSV files need a header row and a schema, which InferCSVSchema can guess
// from the first rows:
//
//	schema, err := storage.InferCSVSchema("people.csv")
//	table, err := storage.OpenCSVTable("people.csv", schema)
//
// # Writing Files
//
//	err := storage.WriteFile("out.parquet", schema, batches,
//	    storage.WithCompression(&parquet.Zstd))
//
// The storable types are Boolean, Int16, Int32, Int64, Float32, Float64,
// Utf8, Binary, FixedSizeBinary, Date32 and Timestamp in milliseconds or
// microseconds. Any other column type fails with
// ErrUnsupportedStorageType. Column order and nullability survive a round
// trip through WriteFile and ReadFile.
//
// # Schema Introspection
//
// ExtractSchemaInfo lists the leaf columns of any Parquet file, including
// nested and repeated ones quiver cannot query:
//
//	infos, err := storage.ExtractSchemaInfo("data.parquet")
//	for _, info := range infos {
//	    fmt.Printf("%s: %s (%s)\n", info.Name, info.Type, info.PhysicalType)
//	}
//
// The package uses github.com/parquet-go/parquet-go for Parquet and
// github.com/apache/arrow-go/v18/arrow/csv for CSV.
package storage
