package types

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/vegasq/quiver/internal/errs"
)

// ParseSQLType resolves a SQL type name as written in CAST(expr AS name).
//
// FLOAT(p) reads p as a storage width in bits: up to 32 is Float32, up to 64
// is Float64. Unknown names fail with errs.ErrUnsupportedCast.
func ParseSQLType(name string) (arrow.DataType, error) {
	norm := strings.ToLower(strings.Join(strings.Fields(name), ""))

	if base, arg, ok := splitParam(norm); ok {
		switch base {
		case "float":
			p, err := strconv.Atoi(arg)
			if err != nil || p < 1 {
				return nil, fmt.Errorf("%w: invalid float precision %q", errs.ErrUnsupportedCast, arg)
			}
			switch {
			case p <= 32:
				return Float32, nil
			case p <= 64:
				return Float64, nil
			}
			return nil, fmt.Errorf("%w: float precision %d exceeds 64", errs.ErrUnsupportedCast, p)
		case "varchar", "char":
			return String, nil
		case "timestamp":
			unit, err := parseUnit(arg)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", errs.ErrUnsupportedCast, err)
			}
			return Timestamp(unit), nil
		}
		return nil, fmt.Errorf("%w: unknown type %q", errs.ErrUnsupportedCast, name)
	}

	switch norm {
	case "boolean", "bool":
		return Boolean, nil
	case "smallint", "int2":
		return Int16, nil
	case "int", "integer", "int4":
		return Int32, nil
	case "bigint", "int8":
		return Int64, nil
	case "real", "float4":
		return Float32, nil
	case "float", "double", "doubleprecision", "float8":
		return Float64, nil
	case "varchar", "text", "string", "char":
		return String, nil
	case "bytea", "binary", "varbinary", "blob":
		return Binary, nil
	case "date":
		return Date32, nil
	case "timestamp":
		return Timestamp(arrow.Microsecond), nil
	}
	return nil, fmt.Errorf("%w: unknown type %q", errs.ErrUnsupportedCast, name)
}

// ParseTypeName resolves the short type names accepted when registering
// UDFs, such as "int32", "float" or "timestamp[ms]". "int" means int64 and
// "float" means float64.
func ParseTypeName(name string) (arrow.DataType, error) {
	norm := strings.ToLower(strings.TrimSpace(name))

	if strings.HasPrefix(norm, "timestamp[") && strings.HasSuffix(norm, "]") {
		unit, err := parseUnit(norm[len("timestamp[") : len(norm)-1])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errs.ErrInvalidArgument, err)
		}
		return Timestamp(unit), nil
	}
	if strings.HasPrefix(norm, "fixed_size_binary[") && strings.HasSuffix(norm, "]") {
		width, err := strconv.Atoi(norm[len("fixed_size_binary[") : len(norm)-1])
		if err != nil || width < 1 {
			return nil, fmt.Errorf("%w: invalid fixed_size_binary width in %q", errs.ErrInvalidArgument, name)
		}
		return FixedSizeBinary(width), nil
	}

	switch norm {
	case "bool", "boolean":
		return Boolean, nil
	case "int16":
		return Int16, nil
	case "int32":
		return Int32, nil
	case "int64", "int":
		return Int64, nil
	case "float32":
		return Float32, nil
	case "float64", "float", "double":
		return Float64, nil
	case "utf8", "string", "str":
		return String, nil
	case "binary", "bytes":
		return Binary, nil
	case "date32", "date":
		return Date32, nil
	case "timestamp":
		return Timestamp(arrow.Microsecond), nil
	}
	return nil, fmt.Errorf("%w: unknown type name %q", errs.ErrInvalidArgument, name)
}

func splitParam(s string) (base, arg string, ok bool) {
	open := strings.IndexByte(s, '(')
	if open < 0 || !strings.HasSuffix(s, ")") {
		return "", "", false
	}
	return s[:open], s[open+1 : len(s)-1], true
}

func parseUnit(s string) (arrow.TimeUnit, error) {
	switch s {
	case "s", "0":
		return arrow.Second, nil
	case "ms", "3":
		return arrow.Millisecond, nil
	case "us", "6":
		return arrow.Microsecond, nil
	case "ns", "9":
		return arrow.Nanosecond, nil
	}
	return 0, fmt.Errorf("unknown time unit %q", s)
}
