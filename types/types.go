// Package types describes the logical column types quiver operates on.
//
// Logical types are plain arrow.DataType values. This package knows which of
// them the engine supports, how they print, how numeric operands are
// coerced to a common type and which casts are legal.
package types

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
)

var (
	Boolean = arrow.FixedWidthTypes.Boolean
	Int16   = arrow.PrimitiveTypes.Int16
	Int32   = arrow.PrimitiveTypes.Int32
	Int64   = arrow.PrimitiveTypes.Int64
	Float32 = arrow.PrimitiveTypes.Float32
	Float64 = arrow.PrimitiveTypes.Float64
	String  = arrow.BinaryTypes.String
	Binary  = arrow.BinaryTypes.Binary
	Date32  = arrow.FixedWidthTypes.Date32
	Null    = arrow.Null
)

// Timestamp returns a timezone-less timestamp type with the given unit.
func Timestamp(unit arrow.TimeUnit) arrow.DataType {
	return &arrow.TimestampType{Unit: unit}
}

// FixedSizeBinary returns a fixed-length binary type of width bytes.
func FixedSizeBinary(width int) arrow.DataType {
	return &arrow.FixedSizeBinaryType{ByteWidth: width}
}

// IsSupported reports whether dt is one of the engine's logical types.
func IsSupported(dt arrow.DataType) bool {
	switch dt.ID() {
	case arrow.NULL, arrow.BOOL, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.FLOAT32, arrow.FLOAT64, arrow.STRING, arrow.BINARY,
		arrow.FIXED_SIZE_BINARY, arrow.DATE32, arrow.TIMESTAMP:
		return true
	}
	return false
}

func IsInteger(dt arrow.DataType) bool {
	switch dt.ID() {
	case arrow.INT16, arrow.INT32, arrow.INT64:
		return true
	}
	return false
}

func IsFloat(dt arrow.DataType) bool {
	switch dt.ID() {
	case arrow.FLOAT32, arrow.FLOAT64:
		return true
	}
	return false
}

func IsNumeric(dt arrow.DataType) bool {
	return IsInteger(dt) || IsFloat(dt)
}

func IsTemporal(dt arrow.DataType) bool {
	switch dt.ID() {
	case arrow.DATE32, arrow.TIMESTAMP:
		return true
	}
	return false
}

// IsOrderable reports whether values of dt have a total order usable by
// comparisons, sorting and MIN/MAX.
func IsOrderable(dt arrow.DataType) bool {
	switch dt.ID() {
	case arrow.BOOL, arrow.STRING, arrow.BINARY, arrow.FIXED_SIZE_BINARY:
		return true
	}
	return IsNumeric(dt) || IsTemporal(dt)
}

// Name returns the display name used in generated column names, for example
// the "Int32" in "CAST(a AS Int32)".
func Name(dt arrow.DataType) string {
	switch dt.ID() {
	case arrow.NULL:
		return "Null"
	case arrow.BOOL:
		return "Boolean"
	case arrow.INT16:
		return "Int16"
	case arrow.INT32:
		return "Int32"
	case arrow.INT64:
		return "Int64"
	case arrow.FLOAT32:
		return "Float32"
	case arrow.FLOAT64:
		return "Float64"
	case arrow.STRING:
		return "Utf8"
	case arrow.BINARY:
		return "Binary"
	case arrow.FIXED_SIZE_BINARY:
		return fmt.Sprintf("FixedSizeBinary(%d)", dt.(*arrow.FixedSizeBinaryType).ByteWidth)
	case arrow.DATE32:
		return "Date32"
	case arrow.TIMESTAMP:
		return fmt.Sprintf("Timestamp(%s)", unitName(dt.(*arrow.TimestampType).Unit))
	}
	return dt.String()
}

func unitName(unit arrow.TimeUnit) string {
	switch unit {
	case arrow.Second:
		return "Second"
	case arrow.Millisecond:
		return "Millisecond"
	case arrow.Microsecond:
		return "Microsecond"
	default:
		return "Nanosecond"
	}
}

func integerRank(dt arrow.DataType) int {
	switch dt.ID() {
	case arrow.INT16:
		return 1
	case arrow.INT32:
		return 2
	case arrow.INT64:
		return 3
	}
	return 0
}

// CommonNumeric returns the type two numeric operands are coerced to before
// arithmetic or comparison. NULL takes the type of the other operand.
//
// Integers widen to the wider integer. Float32 survives only when paired with
// Float32 or Int16; every other mix involving a float becomes Float64.
func CommonNumeric(a, b arrow.DataType) (arrow.DataType, bool) {
	switch {
	case a.ID() == arrow.NULL && b.ID() == arrow.NULL:
		return Int64, true
	case a.ID() == arrow.NULL && IsNumeric(b):
		return b, true
	case b.ID() == arrow.NULL && IsNumeric(a):
		return a, true
	case !IsNumeric(a) || !IsNumeric(b):
		return nil, false
	}

	if IsInteger(a) && IsInteger(b) {
		if integerRank(a) >= integerRank(b) {
			return a, true
		}
		return b, true
	}

	f32 := func(dt arrow.DataType) bool {
		return dt.ID() == arrow.FLOAT32 || dt.ID() == arrow.INT16
	}
	if f32(a) && f32(b) {
		return Float32, true
	}
	return Float64, true
}

// ImplicitlyCoercible reports whether a value of type from may be used where
// type to is declared without an explicit cast.
func ImplicitlyCoercible(from, to arrow.DataType) bool {
	if arrow.TypeEqual(from, to) || from.ID() == arrow.NULL {
		return true
	}
	common, ok := CommonNumeric(from, to)
	return ok && arrow.TypeEqual(common, to)
}

// CanCast reports whether CAST(from AS to) is defined.
func CanCast(from, to arrow.DataType) bool {
	if !IsSupported(from) || !IsSupported(to) {
		return false
	}
	if from.ID() == arrow.NULL || arrow.TypeEqual(from, to) {
		return true
	}

	numericLike := func(dt arrow.DataType) bool {
		return IsNumeric(dt) || dt.ID() == arrow.BOOL
	}

	switch to.ID() {
	case arrow.NULL:
		return false
	case arrow.STRING:
		return from.ID() != arrow.FIXED_SIZE_BINARY
	case arrow.BINARY:
		return from.ID() == arrow.STRING || from.ID() == arrow.FIXED_SIZE_BINARY
	case arrow.FIXED_SIZE_BINARY:
		return false
	case arrow.DATE32:
		return from.ID() == arrow.STRING || from.ID() == arrow.TIMESTAMP
	case arrow.TIMESTAMP:
		return from.ID() == arrow.STRING || from.ID() == arrow.DATE32 ||
			from.ID() == arrow.TIMESTAMP || from.ID() == arrow.INT64
	}

	// to is numeric or boolean from here on
	switch {
	case numericLike(from):
		return true
	case from.ID() == arrow.STRING:
		return true
	case from.ID() == arrow.TIMESTAMP:
		return to.ID() == arrow.INT64
	}
	return false
}
