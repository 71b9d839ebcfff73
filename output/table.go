package output

import (
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/olekukonko/tablewriter"
)

// NullText is how the table formatter shows a null.
const NullText = "NULL"

// TableFormatter outputs rows as an aligned text table for terminals.
type TableFormatter struct {
	writer io.Writer
}

// NewTableFormatter creates a new table formatter
func NewTableFormatter(w io.Writer) *TableFormatter {
	return &TableFormatter{writer: w}
}

// SetOutput sets the output writer
func (f *TableFormatter) SetOutput(w io.Writer) {
	f.writer = w
}

// Format renders the result with a header of column names.
func (f *TableFormatter) Format(schema *arrow.Schema, batches []arrow.Record) error {
	table := tablewriter.NewWriter(f.writer)
	table.SetHeader(columnNames(schema))
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	err := forEachRow(batches, func(row []any) error {
		cells := make([]string, len(row))
		for i, v := range row {
			if v == nil {
				cells[i] = NullText
				continue
			}
			cells[i] = formatValue(v)
		}
		table.Append(cells)
		return nil
	})
	if err != nil {
		return err
	}
	table.Render()
	return nil
}
