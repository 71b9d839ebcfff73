package storage

import (
	"fmt"
	"os"
	"slices"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/format"
	"github.com/segmentio/encoding/json"

	"github.com/vegasq/quiver/internal/errs"
	"github.com/vegasq/quiver/types"
)

// columnOrderKey holds the arrow column order in the key-value metadata of
// files written by WriteFile. Parquet groups order their fields by name.
const columnOrderKey = "quiver.columns"

// parquetNode maps an arrow field to a parquet schema node.
func parquetNode(field arrow.Field) (parquet.Node, error) {
	var node parquet.Node
	switch dt := field.Type.(type) {
	case *arrow.BooleanType:
		node = parquet.Leaf(parquet.BooleanType)
	case *arrow.Int16Type:
		node = parquet.Int(16)
	case *arrow.Int32Type:
		node = parquet.Int(32)
	case *arrow.Int64Type:
		node = parquet.Int(64)
	case *arrow.Float32Type:
		node = parquet.Leaf(parquet.FloatType)
	case *arrow.Float64Type:
		node = parquet.Leaf(parquet.DoubleType)
	case *arrow.StringType:
		node = parquet.String()
	case *arrow.BinaryType:
		node = parquet.Leaf(parquet.ByteArrayType)
	case *arrow.FixedSizeBinaryType:
		node = parquet.Leaf(parquet.FixedLenByteArrayType(dt.ByteWidth))
	case *arrow.Date32Type:
		node = parquet.Date()
	case *arrow.TimestampType:
		switch dt.Unit {
		case arrow.Millisecond:
			node = parquet.Timestamp(parquet.Millisecond)
		case arrow.Microsecond:
			node = parquet.Timestamp(parquet.Microsecond)
		}
	}
	if node == nil {
		return nil, fmt.Errorf("%w: column %s of type %s", errs.ErrUnsupportedStorageType, field.Name, field.Type)
	}
	if field.Nullable {
		node = parquet.Optional(node)
	}
	return node, nil
}

// parquetSchema returns the parquet schema for schema together with the
// parquet column index of every arrow column.
func parquetSchema(schema *arrow.Schema) (*parquet.Schema, []int, error) {
	group := make(parquet.Group, schema.NumFields())
	for _, f := range schema.Fields() {
		node, err := parquetNode(f)
		if err != nil {
			return nil, nil, err
		}
		group[f.Name] = node
	}

	pq := parquet.NewSchema("quiver", group)
	leaves := make([]int, schema.NumFields())
	for i, f := range schema.Fields() {
		leaves[i] = slices.IndexFunc(pq.Fields(), func(pf parquet.Field) bool { return pf.Name() == f.Name })
	}
	return pq, leaves, nil
}

// arrowType maps a parquet leaf to the logical type it is read as.
func arrowType(field parquet.Field) (arrow.DataType, error) {
	if !field.Leaf() || field.Repeated() {
		return nil, fmt.Errorf("%w: nested or repeated column %s", errs.ErrUnsupportedStorageType, field.Name())
	}

	typ := field.Type()
	lt := typ.LogicalType()
	switch typ.Kind() {
	case parquet.Boolean:
		return types.Boolean, nil
	case parquet.Int32:
		switch {
		case lt == nil:
			return types.Int32, nil
		case lt.Date != nil:
			return types.Date32, nil
		case lt.Integer != nil && lt.Integer.IsSigned && lt.Integer.BitWidth == 16:
			return types.Int16, nil
		case lt.Integer != nil && lt.Integer.IsSigned && lt.Integer.BitWidth == 32:
			return types.Int32, nil
		}
	case parquet.Int64:
		switch {
		case lt == nil:
			return types.Int64, nil
		case lt.Timestamp != nil:
			return timestampType(lt.Timestamp.Unit), nil
		case lt.Integer != nil && lt.Integer.IsSigned && lt.Integer.BitWidth == 64:
			return types.Int64, nil
		}
	case parquet.Float:
		return types.Float32, nil
	case parquet.Double:
		return types.Float64, nil
	case parquet.ByteArray:
		switch {
		case lt == nil:
			return types.Binary, nil
		case lt.UTF8 != nil, lt.Enum != nil, lt.Json != nil:
			return types.String, nil
		}
	case parquet.FixedLenByteArray:
		if lt == nil {
			return types.FixedSizeBinary(typ.Length()), nil
		}
	}
	return nil, fmt.Errorf("%w: column %s of parquet type %s", errs.ErrUnsupportedStorageType, field.Name(), typ)
}

func timestampType(unit format.TimeUnit) arrow.DataType {
	switch {
	case unit.Millis != nil:
		return types.Timestamp(arrow.Millisecond)
	case unit.Nanos != nil:
		return types.Timestamp(arrow.Nanosecond)
	}
	return types.Timestamp(arrow.Microsecond)
}

// fileSchema is the arrow view of a parquet file: the arrow schema in
// column order and, for each arrow column, its parquet column index.
type fileSchema struct {
	schema  *arrow.Schema
	columns []int
}

func readFileSchema(f *parquet.File) (*fileSchema, error) {
	pqFields := f.Schema().Fields()
	fields := make([]arrow.Field, len(pqFields))
	for i, pf := range pqFields {
		dt, err := arrowType(pf)
		if err != nil {
			return nil, err
		}
		fields[i] = arrow.Field{Name: pf.Name(), Type: dt, Nullable: pf.Optional()}
	}

	columns := make([]int, len(fields))
	for i := range columns {
		columns[i] = i
	}

	if order, ok := f.Lookup(columnOrderKey); ok {
		var names []string
		if err := json.Unmarshal([]byte(order), &names); err != nil {
			return nil, fmt.Errorf("decode %s metadata: %w", columnOrderKey, err)
		}
		if reordered, ok := reorder(fields, names); ok {
			columns = reordered
			ordered := make([]arrow.Field, len(fields))
			for i, c := range columns {
				ordered[i] = fields[c]
			}
			fields = ordered
		}
	}
	return &fileSchema{schema: arrow.NewSchema(fields, nil), columns: columns}, nil
}

// reorder returns, for each name, the index of the field of that name. It
// fails when names is not a permutation of the field names.
func reorder(fields []arrow.Field, names []string) ([]int, bool) {
	if len(names) != len(fields) {
		return nil, false
	}
	out := make([]int, len(names))
	for i, name := range names {
		idx := slices.IndexFunc(fields, func(f arrow.Field) bool { return f.Name == name })
		if idx < 0 {
			return nil, false
		}
		out[i] = idx
	}
	return out, true
}

// SchemaInfo represents metadata about a single column in a Parquet file.
type SchemaInfo struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	PhysicalType string `json:"physical_type"`
	LogicalType  string `json:"logical_type"`
	Required     bool   `json:"required"`
	Optional     bool   `json:"optional"`
	Repeated     bool   `json:"repeated"`
}

// ExtractSchemaInfo describes every leaf column of the Parquet file at path.
// Type is the quiver type the column is read as, or UNSUPPORTED. Nested
// columns use dot notation (e.g. "address.street").
func ExtractSchemaInfo(path string) ([]SchemaInfo, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	pf, err := openParquet(file)
	if err != nil {
		return nil, err
	}

	var infos []SchemaInfo
	for _, field := range pf.Schema().Fields() {
		infos = append(infos, extractFieldInfo(field, "", false)...)
	}
	return infos, nil
}

// extractFieldInfo describes the leaves below field. Groups contribute their
// name as a prefix and pass their repetition down.
func extractFieldInfo(field parquet.Field, prefix string, parentRepeated bool) []SchemaInfo {
	name := field.Name()
	if prefix != "" {
		name = prefix + "." + name
	}
	repeated := parentRepeated || field.Repeated()

	if !field.Leaf() {
		var infos []SchemaInfo
		for _, child := range field.Fields() {
			infos = append(infos, extractFieldInfo(child, name, repeated)...)
		}
		return infos
	}

	info := SchemaInfo{
		Name:         name,
		Type:         "UNSUPPORTED",
		PhysicalType: physicalTypeName(field.Type().Kind()),
		Required:     field.Required(),
		Optional:     field.Optional(),
		Repeated:     repeated,
	}
	if lt := field.Type().LogicalType(); lt != nil {
		info.LogicalType = lt.String()
	}
	if !repeated {
		if dt, err := arrowType(field); err == nil {
			info.Type = types.Name(dt)
		}
	}
	return []SchemaInfo{info}
}

func physicalTypeName(kind parquet.Kind) string {
	switch kind {
	case parquet.Boolean:
		return "BOOLEAN"
	case parquet.Int32:
		return "INT32"
	case parquet.Int64:
		return "INT64"
	case parquet.Int96:
		return "INT96"
	case parquet.Float:
		return "FLOAT"
	case parquet.Double:
		return "DOUBLE"
	case parquet.ByteArray:
		return "BYTE_ARRAY"
	case parquet.FixedLenByteArray:
		return "FIXED_LEN_BYTE_ARRAY"
	default:
		return "UNKNOWN"
	}
}
