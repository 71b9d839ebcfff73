package expr

import "fmt"

// Op denotes the operator of a Binary expression.
type Op int

// Recognized values of Op.
const (
	OpInvalid Op = iota

	OpAdd // Addition (+).
	OpSub // Subtraction (-).
	OpMul // Multiplication (*).
	OpDiv // Division (/).
	OpMod // Modulo (%).

	OpEq    // Equality (=).
	OpNotEq // Inequality (<>).
	OpLt    // Less than (<).
	OpLtEq  // Less than or equal (<=).
	OpGt    // Greater than (>).
	OpGtEq  // Greater than or equal (>=).

	OpAnd // Logical AND.
	OpOr  // Logical OR.
)

var opStrings = map[Op]string{
	OpInvalid: "invalid",

	OpAdd: "+",
	OpSub: "-",
	OpMul: "*",
	OpDiv: "/",
	OpMod: "%",

	OpEq:    "=",
	OpNotEq: "<>",
	OpLt:    "<",
	OpLtEq:  "<=",
	OpGt:    ">",
	OpGtEq:  ">=",

	OpAnd: "AND",
	OpOr:  "OR",
}

// String returns the SQL spelling of the operator.
func (op Op) String() string {
	if s, ok := opStrings[op]; ok {
		return s
	}
	return fmt.Sprintf("Op(%d)", op)
}

func (op Op) IsArithmetic() bool { return op >= OpAdd && op <= OpMod }
func (op Op) IsComparison() bool { return op >= OpEq && op <= OpGtEq }
func (op Op) IsLogical() bool    { return op == OpAnd || op == OpOr }

// AggregateFunc denotes the function of an Aggregate expression.
type AggregateFunc int

// Recognized values of AggregateFunc.
const (
	AggCount AggregateFunc = iota
	AggSum
	AggAvg
	AggMin
	AggMax
)

var aggregateFuncStrings = map[AggregateFunc]string{
	AggCount: "COUNT",
	AggSum:   "SUM",
	AggAvg:   "AVG",
	AggMin:   "MIN",
	AggMax:   "MAX",
}

func (f AggregateFunc) String() string {
	if s, ok := aggregateFuncStrings[f]; ok {
		return s
	}
	return fmt.Sprintf("AggregateFunc(%d)", f)
}

// LookupAggregate resolves an upper-case aggregate function name.
func LookupAggregate(name string) (AggregateFunc, bool) {
	for f, s := range aggregateFuncStrings {
		if s == name {
			return f, true
		}
	}
	return 0, false
}
