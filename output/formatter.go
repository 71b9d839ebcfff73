package output

import (
	"encoding/base64"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/vegasq/quiver/internal/arrowutil"
	"github.com/vegasq/quiver/internal/errs"
)

// Formatter defines the interface for output formatters.
//
// Implementers must provide Format to write a query result in the target
// format and SetOutput to change the output destination.
type Formatter interface {
	// Format writes batches of schema in the formatter's specific format
	Format(schema *arrow.Schema, batches []arrow.Record) error

	// SetOutput changes the output writer
	SetOutput(w io.Writer)
}

// Names lists the format names New accepts.
func Names() []string {
	return []string{"jsonl", "json", "csv", "table"}
}

// New returns the formatter called name writing to w.
func New(name string, w io.Writer) (Formatter, error) {
	switch strings.ToLower(name) {
	case "jsonl", "":
		return NewJSONFormatter(w), nil
	case "json":
		return NewJSONArrayFormatter(w), nil
	case "csv":
		return NewCSVFormatter(w), nil
	case "table":
		return NewTableFormatter(w), nil
	}
	return nil, fmt.Errorf("%w: unknown output format %q, want one of %s",
		errs.ErrInvalidArgument, name, strings.Join(Names(), ", "))
}

// forEachRow calls fn with the values of every row, in order.
func forEachRow(batches []arrow.Record, fn func(row []any) error) error {
	var row []any
	for _, rec := range batches {
		cols := rec.Columns()
		if cap(row) < len(cols) {
			row = make([]any, len(cols))
		}
		row = row[:len(cols)]
		for r := 0; r < int(rec.NumRows()); r++ {
			for c, col := range cols {
				row[c] = displayValue(col.DataType(), arrowutil.ValueAt(col, r))
			}
			if err := fn(row); err != nil {
				return err
			}
		}
	}
	return nil
}

func columnNames(schema *arrow.Schema) []string {
	names := make([]string, schema.NumFields())
	for i, f := range schema.Fields() {
		names[i] = f.Name
	}
	return names
}

// displayValue converts dates and timestamps to their text form. Other
// values pass through.
func displayValue(dt arrow.DataType, v any) any {
	switch val := v.(type) {
	case arrow.Date32:
		return val.FormattedString()
	case arrow.Timestamp:
		unit := dt.(*arrow.TimestampType).Unit
		return val.ToTime(unit).UTC().Format(time.RFC3339Nano)
	}
	return v
}

// formatValue converts a value to its text form for CSV and table output.
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return base64.StdEncoding.EncodeToString(val)
	case bool:
		return strconv.FormatBool(val)
	case int16:
		return strconv.FormatInt(int64(val), 10)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case float32:
		return strconv.FormatFloat(float64(val), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// jsonValue maps floats JSON cannot represent to strings.
func jsonValue(v any) any {
	var f float64
	switch val := v.(type) {
	case float32:
		f = float64(val)
	case float64:
		f = val
	default:
		return v
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return formatValue(v)
	}
	return v
}
