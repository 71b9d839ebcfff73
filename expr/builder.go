package expr

import "github.com/apache/arrow-go/v18/arrow"

func binary(op Op, l, r Expr) *Binary { return &Binary{Op: op, Left: l, Right: r} }

// Add returns l + r.
func Add(l, r Expr) Expr { return binary(OpAdd, l, r) }

// Sub returns l - r.
func Sub(l, r Expr) Expr { return binary(OpSub, l, r) }

// Mul returns l * r.
func Mul(l, r Expr) Expr { return binary(OpMul, l, r) }

// Div returns l / r. Integer division truncates; a zero divisor is an
// execution error.
func Div(l, r Expr) Expr { return binary(OpDiv, l, r) }

// Mod returns l % r.
func Mod(l, r Expr) Expr { return binary(OpMod, l, r) }

// Eq returns l = r.
func Eq(l, r Expr) Expr { return binary(OpEq, l, r) }

// NotEq returns l <> r.
func NotEq(l, r Expr) Expr { return binary(OpNotEq, l, r) }

// Lt returns l < r.
func Lt(l, r Expr) Expr { return binary(OpLt, l, r) }

// LtEq returns l <= r.
func LtEq(l, r Expr) Expr { return binary(OpLtEq, l, r) }

// Gt returns l > r.
func Gt(l, r Expr) Expr { return binary(OpGt, l, r) }

// GtEq returns l >= r.
func GtEq(l, r Expr) Expr { return binary(OpGtEq, l, r) }

// And returns l AND r.
func And(l, r Expr) Expr { return binary(OpAnd, l, r) }

// Or returns l OR r.
func Or(l, r Expr) Expr { return binary(OpOr, l, r) }

// NewBinary builds a binary expression from an operator value.
func NewBinary(op Op, l, r Expr) Expr { return binary(op, l, r) }

// NotExpr returns NOT e.
func NotExpr(e Expr) Expr { return &Not{Input: e} }

// Neg returns -e.
func Neg(e Expr) Expr { return &Negative{Input: e} }

// IsNullExpr returns e IS NULL, which is never null itself.
func IsNullExpr(e Expr) Expr { return &IsNull{Input: e} }

// IsNotNullExpr returns e IS NOT NULL.
func IsNotNullExpr(e Expr) Expr { return &IsNull{Input: e, Negated: true} }

// CastTo converts e to dt.
func CastTo(e Expr, dt arrow.DataType) Expr { return &Cast{Input: e, To: dt} }

// As names the output of e.
func As(e Expr, name string) Expr { return &Alias{Input: e, Name: name} }

// CallFunc calls a function resolved by name at bind time.
func CallFunc(name string, args ...Expr) Expr { return &Call{Name: name, Args: args} }

// CallUDF calls udf directly, without registering it anywhere.
func CallUDF(udf *UDF, args ...Expr) (Expr, error) {
	fn, err := newUDFFunction(*udf)
	if err != nil {
		return nil, err
	}
	return &Call{Name: udf.Name, Args: args, fn: fn}, nil
}

// Count counts the non-null values of e.
func Count(e Expr) Expr { return &Aggregate{Func: AggCount, Arg: e} }

// CountAll counts rows, like COUNT(*).
func CountAll() Expr { return &Aggregate{Func: AggCount} }

// Sum adds the non-null values of e. It is null for a group without any.
func Sum(e Expr) Expr { return &Aggregate{Func: AggSum, Arg: e} }

// Avg averages the non-null values of e as Float64.
func Avg(e Expr) Expr { return &Aggregate{Func: AggAvg, Arg: e} }

// Min returns the smallest non-null value of e.
func Min(e Expr) Expr { return &Aggregate{Func: AggMin, Arg: e} }

// Max returns the largest non-null value of e.
func Max(e Expr) Expr { return &Aggregate{Func: AggMax, Arg: e} }
