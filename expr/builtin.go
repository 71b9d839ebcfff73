package expr

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/vegasq/quiver/internal/errs"
	"github.com/vegasq/quiver/types"
)

func builtins() []Function {
	return []Function{
		// Math functions
		&AbsFunc{},
		&SignFunc{},
		&CeilFunc{},
		&FloorFunc{},
		&RoundFunc{},
		&SqrtFunc{},

		// String functions
		&UpperFunc{},
		&LowerFunc{},
		&LengthFunc{},
		&TrimFunc{},
		&LTrimFunc{},
		&RTrimFunc{},
		&ReverseFunc{},
		&ConcatFunc{},
	}
}

// resolveNumeric accepts a single numeric argument and keeps its type.
func resolveNumeric(name string, args []arrow.DataType) ([]arrow.DataType, arrow.DataType, error) {
	if len(args) != 1 {
		return nil, nil, fmt.Errorf("%w: %s expects 1 argument, got %d", errs.ErrTypeMismatch, name, len(args))
	}
	dt := args[0]
	if dt.ID() == arrow.NULL {
		dt = types.Float64
	}
	if !types.IsNumeric(dt) {
		return nil, nil, fmt.Errorf("%w: %s expects a numeric argument, got %s", errs.ErrTypeMismatch, name, types.Name(dt))
	}
	return []arrow.DataType{dt}, dt, nil
}

// resolveFloat accepts numeric arguments, computing in Float64.
func resolveFloat(name string, args []arrow.DataType) ([]arrow.DataType, arrow.DataType, error) {
	params := make([]arrow.DataType, len(args))
	for i, dt := range args {
		if dt.ID() != arrow.NULL && !types.IsNumeric(dt) {
			return nil, nil, fmt.Errorf("%w: argument %d of %s must be numeric, got %s", errs.ErrTypeMismatch, i+1, name, types.Name(dt))
		}
		params[i] = types.Float64
	}
	return params, types.Float64, nil
}

// resolveString accepts string arguments.
func resolveString(name string, args []arrow.DataType, ret arrow.DataType) ([]arrow.DataType, arrow.DataType, error) {
	params := make([]arrow.DataType, len(args))
	for i, dt := range args {
		if dt.ID() != arrow.NULL && dt.ID() != arrow.STRING {
			return nil, nil, fmt.Errorf("%w: argument %d of %s must be a string, got %s", errs.ErrTypeMismatch, i+1, name, types.Name(dt))
		}
		params[i] = types.String
	}
	return params, ret, nil
}

// Math Functions

// AbsFunc returns the absolute value of a number
type AbsFunc struct{}

func (f *AbsFunc) Name() string  { return "ABS" }
func (f *AbsFunc) MinArity() int { return 1 }
func (f *AbsFunc) MaxArity() int { return 1 }
func (f *AbsFunc) Resolve(args []arrow.DataType) ([]arrow.DataType, arrow.DataType, error) {
	return resolveNumeric("ABS", args)
}
func (f *AbsFunc) Evaluate(args []any) (any, error) {
	switch n := args[0].(type) {
	case int16:
		if n == math.MinInt16 {
			return nil, fmt.Errorf("ABS: %w: %d", errs.ErrNumericOverflow, n)
		}
		return max(n, -n), nil
	case int32:
		if n == math.MinInt32 {
			return nil, fmt.Errorf("ABS: %w: %d", errs.ErrNumericOverflow, n)
		}
		return max(n, -n), nil
	case int64:
		if n == math.MinInt64 {
			return nil, fmt.Errorf("ABS: %w: %d", errs.ErrNumericOverflow, n)
		}
		return max(n, -n), nil
	case float32:
		return float32(math.Abs(float64(n))), nil
	case float64:
		return math.Abs(n), nil
	}
	return nil, fmt.Errorf("ABS: %w: %T", errs.ErrTypeMismatch, args[0])
}

// SignFunc returns -1, 0 or 1 depending on the sign of a number
type SignFunc struct{}

func (f *SignFunc) Name() string  { return "SIGN" }
func (f *SignFunc) MinArity() int { return 1 }
func (f *SignFunc) MaxArity() int { return 1 }
func (f *SignFunc) Resolve(args []arrow.DataType) ([]arrow.DataType, arrow.DataType, error) {
	return resolveNumeric("SIGN", args)
}
func (f *SignFunc) Evaluate(args []any) (any, error) {
	switch n := args[0].(type) {
	case int16:
		return int16(sign(float64(n))), nil
	case int32:
		return int32(sign(float64(n))), nil
	case int64:
		return int64(sign(float64(n))), nil
	case float32:
		return float32(sign(float64(n))), nil
	case float64:
		return sign(n), nil
	}
	return nil, fmt.Errorf("SIGN: %w: %T", errs.ErrTypeMismatch, args[0])
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return x // keeps 0, -0 and NaN
}

// CeilFunc returns the smallest integer greater than or equal to a number
type CeilFunc struct{}

func (f *CeilFunc) Name() string  { return "CEIL" }
func (f *CeilFunc) MinArity() int { return 1 }
func (f *CeilFunc) MaxArity() int { return 1 }
func (f *CeilFunc) Resolve(args []arrow.DataType) ([]arrow.DataType, arrow.DataType, error) {
	if len(args) != 1 {
		return nil, nil, fmt.Errorf("%w: CEIL expects 1 argument, got %d", errs.ErrTypeMismatch, len(args))
	}
	return resolveFloat("CEIL", args)
}
func (f *CeilFunc) Evaluate(args []any) (any, error) {
	return math.Ceil(args[0].(float64)), nil
}

// FloorFunc returns the largest integer less than or equal to a number
type FloorFunc struct{}

func (f *FloorFunc) Name() string  { return "FLOOR" }
func (f *FloorFunc) MinArity() int { return 1 }
func (f *FloorFunc) MaxArity() int { return 1 }
func (f *FloorFunc) Resolve(args []arrow.DataType) ([]arrow.DataType, arrow.DataType, error) {
	if len(args) != 1 {
		return nil, nil, fmt.Errorf("%w: FLOOR expects 1 argument, got %d", errs.ErrTypeMismatch, len(args))
	}
	return resolveFloat("FLOOR", args)
}
func (f *FloorFunc) Evaluate(args []any) (any, error) {
	return math.Floor(args[0].(float64)), nil
}

// RoundFunc rounds a number to the specified number of decimal places
type RoundFunc struct{}

func (f *RoundFunc) Name() string  { return "ROUND" }
func (f *RoundFunc) MinArity() int { return 1 }
func (f *RoundFunc) MaxArity() int { return 2 }
func (f *RoundFunc) Resolve(args []arrow.DataType) ([]arrow.DataType, arrow.DataType, error) {
	if len(args) < 1 || len(args) > 2 {
		return nil, nil, fmt.Errorf("%w: ROUND expects 1 or 2 arguments, got %d", errs.ErrTypeMismatch, len(args))
	}
	params, ret, err := resolveFloat("ROUND", args[:1])
	if err != nil {
		return nil, nil, err
	}
	if len(args) == 2 {
		if args[1].ID() != arrow.NULL && !types.IsInteger(args[1]) {
			return nil, nil, fmt.Errorf("%w: ROUND decimals must be an integer, got %s", errs.ErrTypeMismatch, types.Name(args[1]))
		}
		params = append(params, types.Int64)
	}
	return params, ret, nil
}
func (f *RoundFunc) Evaluate(args []any) (any, error) {
	num := args[0].(float64)

	// Default to 0 decimal places
	decimals := int64(0)
	if len(args) == 2 {
		decimals = args[1].(int64)
	}

	multiplier := math.Pow(10, float64(decimals))
	return math.Round(num*multiplier) / multiplier, nil
}

// SqrtFunc returns the square root
type SqrtFunc struct{}

func (f *SqrtFunc) Name() string  { return "SQRT" }
func (f *SqrtFunc) MinArity() int { return 1 }
func (f *SqrtFunc) MaxArity() int { return 1 }
func (f *SqrtFunc) Resolve(args []arrow.DataType) ([]arrow.DataType, arrow.DataType, error) {
	if len(args) != 1 {
		return nil, nil, fmt.Errorf("%w: SQRT expects 1 argument, got %d", errs.ErrTypeMismatch, len(args))
	}
	return resolveFloat("SQRT", args)
}
func (f *SqrtFunc) Evaluate(args []any) (any, error) {
	num := args[0].(float64)
	if num < 0 {
		return nil, fmt.Errorf("SQRT: negative number")
	}
	return math.Sqrt(num), nil
}

// String Functions

// UpperFunc converts a string to uppercase
type UpperFunc struct{}

func (f *UpperFunc) Name() string  { return "UPPER" }
func (f *UpperFunc) MinArity() int { return 1 }
func (f *UpperFunc) MaxArity() int { return 1 }
func (f *UpperFunc) Resolve(args []arrow.DataType) ([]arrow.DataType, arrow.DataType, error) {
	return resolveUnaryString("UPPER", args, types.String)
}
func (f *UpperFunc) Evaluate(args []any) (any, error) {
	return strings.ToUpper(args[0].(string)), nil
}

// LowerFunc converts a string to lowercase
type LowerFunc struct{}

func (f *LowerFunc) Name() string  { return "LOWER" }
func (f *LowerFunc) MinArity() int { return 1 }
func (f *LowerFunc) MaxArity() int { return 1 }
func (f *LowerFunc) Resolve(args []arrow.DataType) ([]arrow.DataType, arrow.DataType, error) {
	return resolveUnaryString("LOWER", args, types.String)
}
func (f *LowerFunc) Evaluate(args []any) (any, error) {
	return strings.ToLower(args[0].(string)), nil
}

// LengthFunc returns the number of characters in a string
type LengthFunc struct{}

func (f *LengthFunc) Name() string  { return "LENGTH" }
func (f *LengthFunc) MinArity() int { return 1 }
func (f *LengthFunc) MaxArity() int { return 1 }
func (f *LengthFunc) Resolve(args []arrow.DataType) ([]arrow.DataType, arrow.DataType, error) {
	return resolveUnaryString("LENGTH", args, types.Int64)
}
func (f *LengthFunc) Evaluate(args []any) (any, error) {
	return int64(utf8.RuneCountInString(args[0].(string))), nil
}

// TrimFunc trims whitespace from both ends of a string
type TrimFunc struct{}

func (f *TrimFunc) Name() string  { return "TRIM" }
func (f *TrimFunc) MinArity() int { return 1 }
func (f *TrimFunc) MaxArity() int { return 1 }
func (f *TrimFunc) Resolve(args []arrow.DataType) ([]arrow.DataType, arrow.DataType, error) {
	return resolveUnaryString("TRIM", args, types.String)
}
func (f *TrimFunc) Evaluate(args []any) (any, error) {
	return strings.TrimSpace(args[0].(string)), nil
}

// LTrimFunc trims whitespace from the left side of a string
type LTrimFunc struct{}

func (f *LTrimFunc) Name() string  { return "LTRIM" }
func (f *LTrimFunc) MinArity() int { return 1 }
func (f *LTrimFunc) MaxArity() int { return 1 }
func (f *LTrimFunc) Resolve(args []arrow.DataType) ([]arrow.DataType, arrow.DataType, error) {
	return resolveUnaryString("LTRIM", args, types.String)
}
func (f *LTrimFunc) Evaluate(args []any) (any, error) {
	return strings.TrimLeft(args[0].(string), " \t\n\r"), nil
}

// RTrimFunc trims whitespace from the right side of a string
type RTrimFunc struct{}

func (f *RTrimFunc) Name() string  { return "RTRIM" }
func (f *RTrimFunc) MinArity() int { return 1 }
func (f *RTrimFunc) MaxArity() int { return 1 }
func (f *RTrimFunc) Resolve(args []arrow.DataType) ([]arrow.DataType, arrow.DataType, error) {
	return resolveUnaryString("RTRIM", args, types.String)
}
func (f *RTrimFunc) Evaluate(args []any) (any, error) {
	return strings.TrimRight(args[0].(string), " \t\n\r"), nil
}

// ReverseFunc reverses a string
type ReverseFunc struct{}

func (f *ReverseFunc) Name() string  { return "REVERSE" }
func (f *ReverseFunc) MinArity() int { return 1 }
func (f *ReverseFunc) MaxArity() int { return 1 }
func (f *ReverseFunc) Resolve(args []arrow.DataType) ([]arrow.DataType, arrow.DataType, error) {
	return resolveUnaryString("REVERSE", args, types.String)
}
func (f *ReverseFunc) Evaluate(args []any) (any, error) {
	runes := []rune(args[0].(string))
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return string(runes), nil
}

// ConcatFunc concatenates multiple strings. Non-string arguments are cast to
// strings first.
type ConcatFunc struct{}

func (f *ConcatFunc) Name() string  { return "CONCAT" }
func (f *ConcatFunc) MinArity() int { return 1 }
func (f *ConcatFunc) MaxArity() int { return -1 } // variadic
func (f *ConcatFunc) Resolve(args []arrow.DataType) ([]arrow.DataType, arrow.DataType, error) {
	if len(args) == 0 {
		return nil, nil, fmt.Errorf("%w: CONCAT expects at least 1 argument", errs.ErrTypeMismatch)
	}
	params := make([]arrow.DataType, len(args))
	for i, dt := range args {
		if !types.CanCast(dt, types.String) {
			return nil, nil, fmt.Errorf("%w: argument %d of CONCAT cannot be converted to a string", errs.ErrTypeMismatch, i+1)
		}
		params[i] = types.String
	}
	return params, types.String, nil
}
func (f *ConcatFunc) Evaluate(args []any) (any, error) {
	var builder strings.Builder
	for _, arg := range args {
		builder.WriteString(arg.(string))
	}
	return builder.String(), nil
}

func resolveUnaryString(name string, args []arrow.DataType, ret arrow.DataType) ([]arrow.DataType, arrow.DataType, error) {
	if len(args) != 1 {
		return nil, nil, fmt.Errorf("%w: %s expects 1 argument, got %d", errs.ErrTypeMismatch, name, len(args))
	}
	return resolveString(name, args, ret)
}
