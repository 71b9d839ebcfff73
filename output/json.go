package output

import (
	"bufio"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/segmentio/encoding/json"
)

// JSONFormatter outputs rows as JSON objects, either one per line or as a
// single JSON array. Keys follow the column order of the schema.
type JSONFormatter struct {
	writer io.Writer
	array  bool
}

// NewJSONFormatter creates a new JSON Lines formatter
func NewJSONFormatter(w io.Writer) *JSONFormatter {
	return &JSONFormatter{writer: w}
}

// NewJSONArrayFormatter creates a formatter writing all rows as one JSON
// array.
func NewJSONArrayFormatter(w io.Writer) *JSONFormatter {
	return &JSONFormatter{writer: w, array: true}
}

// SetOutput sets the output writer
func (j *JSONFormatter) SetOutput(w io.Writer) {
	j.writer = w
}

// Format writes rows as JSON Lines, or as a JSON array for an array
// formatter. An empty result is no output for JSON Lines and [] otherwise.
func (j *JSONFormatter) Format(schema *arrow.Schema, batches []arrow.Record) error {
	bw := bufio.NewWriter(j.writer)

	keys := make([][]byte, schema.NumFields())
	for i, name := range columnNames(schema) {
		k, err := json.Marshal(name)
		if err != nil {
			return err
		}
		keys[i] = k
	}

	if j.array {
		bw.WriteByte('[')
	}
	first := true
	var buf []byte
	err := forEachRow(batches, func(row []any) error {
		buf = buf[:0]
		if j.array && !first {
			buf = append(buf, ',')
		}
		first = false

		buf = append(buf, '{')
		for i, v := range row {
			if i > 0 {
				buf = append(buf, ',')
			}
			buf = append(buf, keys[i]...)
			buf = append(buf, ':')
			var err error
			buf, err = json.Append(buf, jsonValue(v), 0)
			if err != nil {
				return err
			}
		}
		buf = append(buf, '}')
		if !j.array {
			buf = append(buf, '\n')
		}
		_, err := bw.Write(buf)
		return err
	})
	if err != nil {
		return err
	}
	if j.array {
		bw.WriteString("]\n")
	}
	return bw.Flush()
}
