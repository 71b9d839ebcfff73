// Package output provides formatters for writing query results in various
// output formats.
//
// This package defines the Formatter interface and provides implementations
// for JSON Lines, JSON arrays, CSV and text tables. All formatters take a
// result as an Arrow schema plus the record batches of the result, and
// keep the column order of the schema.
//
// # Supported Formats
//
//   - jsonl: One JSON object per line (suitable for streaming)
//   - json: A single JSON array of objects
//   - csv: Comma-separated values with header row
//   - table: An aligned text table for terminals
//
// # Basic Usage
//
//	batches, err := df.Collect(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	formatter, err := output.New("csv", os.Stdout)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := formatter.Format(df.Schema(), batches); err != nil {
//	    log.Fatal(err)
//	}
//
// # Type Handling
//
//   - Numbers and booleans are written as JSON numbers and booleans
//   - Dates are written as 2006-01-02 and timestamps as RFC 3339 in UTC
//   - Binary values are base64
//   - NaN and infinities are strings in JSON, which has no literal for them
//   - Nulls are JSON null, empty CSV fields and NULL in tables
//
// CSV output prefixes strings starting with a formula character such as =
// with a single quote, so spreadsheets do not evaluate them.
package output
