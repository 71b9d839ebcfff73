package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
)

// CSVFormatter outputs rows as CSV format
type CSVFormatter struct {
	writer io.Writer
}

// NewCSVFormatter creates a new CSV formatter
func NewCSVFormatter(w io.Writer) *CSVFormatter {
	return &CSVFormatter{writer: w}
}

// SetOutput sets the output writer
func (c *CSVFormatter) SetOutput(w io.Writer) {
	c.writer = w
}

// Format writes a header row with the schema's column names, then one
// record per row. Nulls are empty fields.
func (c *CSVFormatter) Format(schema *arrow.Schema, batches []arrow.Record) error {
	csvWriter := csv.NewWriter(c.writer)

	if err := csvWriter.Write(columnNames(schema)); err != nil {
		return err
	}

	record := make([]string, schema.NumFields())
	err := forEachRow(batches, func(row []any) error {
		for i, v := range row {
			record[i] = csvValue(v)
		}
		return csvWriter.Write(record)
	})
	if err != nil {
		return err
	}

	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV writer: %w", err)
	}
	return nil
}

func csvValue(v any) string {
	s, ok := v.(string)
	if !ok {
		return formatValue(v)
	}
	// Sanitize against CSV injection by prefixing characters that trigger
	// formula execution in spreadsheet applications
	if len(s) > 0 {
		switch s[0] {
		case '=', '+', '-', '@', '\t', '\r', '\n', '|':
			return "'" + strings.ReplaceAll(s, "'", "''")
		}
	}
	return s
}
