// Package expr implements quiver's expression trees: construction, binding
// against a schema, and column-at-a-time evaluation over arrow records.
//
// Expressions are immutable. Builders such as Col, Lit and Add return
// unbound trees; Bind resolves column references and function names,
// inserts implicit casts and returns a new, typed tree. Only bound trees can
// be evaluated.
//
// Null handling follows one rule: every operator propagates null
// element-wise, so a null operand at row i yields a null result at row i.
// IS [NOT] NULL is the only operator that inspects validity itself. Nulls are
// never replaced by empty strings or zero values.
package expr

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/vegasq/quiver/types"
)

// Expr is a node of an expression tree.
type Expr interface {
	fmt.Stringer

	// Type returns the result type of a bound expression, or nil when the
	// expression has not been bound.
	Type() arrow.DataType

	// Children returns the direct sub-expressions.
	Children() []Expr

	withChildren(children []Expr) Expr
}

// Column references an input column by name. Binding fills in its position
// and type.
type Column struct {
	Name  string
	Index int

	typ arrow.DataType
}

// Col returns an unbound reference to the named column.
func Col(name string) *Column {
	return &Column{Name: name, Index: -1}
}

func (c *Column) String() string           { return c.Name }
func (c *Column) Type() arrow.DataType     { return c.typ }
func (c *Column) Children() []Expr         { return nil }
func (c *Column) withChildren([]Expr) Expr { return c }

// Literal is a constant. A nil Value is the typed or untyped NULL.
type Literal struct {
	Value any

	typ arrow.DataType
}

// Lit returns a literal, inferring its type from the Go value. Go int
// becomes Int64 and time.Time becomes a microsecond timestamp.
func Lit(v any) *Literal {
	switch x := v.(type) {
	case nil:
		return &Literal{typ: types.Null}
	case bool:
		return &Literal{Value: x, typ: types.Boolean}
	case int:
		return &Literal{Value: int64(x), typ: types.Int64}
	case int16:
		return &Literal{Value: x, typ: types.Int16}
	case int32:
		return &Literal{Value: x, typ: types.Int32}
	case int64:
		return &Literal{Value: x, typ: types.Int64}
	case float32:
		return &Literal{Value: x, typ: types.Float32}
	case float64:
		return &Literal{Value: x, typ: types.Float64}
	case string:
		return &Literal{Value: x, typ: types.String}
	case []byte:
		return &Literal{Value: x, typ: types.Binary}
	case arrow.Date32:
		return &Literal{Value: x, typ: types.Date32}
	case time.Time:
		return &Literal{Value: x, typ: types.Timestamp(arrow.Microsecond)}
	}
	// left untyped; binding reports the unsupported value
	return &Literal{Value: v}
}

// TypedLit returns a literal with an explicit type. The value must be
// storable in a column of that type.
func TypedLit(v any, dt arrow.DataType) *Literal {
	return &Literal{Value: v, typ: dt}
}

func (l *Literal) String() string {
	switch v := l.Value.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'"
	case []byte:
		return fmt.Sprintf("X'%x'", v)
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case time.Time:
		return "'" + v.Format(time.RFC3339Nano) + "'"
	}
	return fmt.Sprint(l.Value)
}

func (l *Literal) Type() arrow.DataType     { return l.typ }
func (l *Literal) Children() []Expr         { return nil }
func (l *Literal) withChildren([]Expr) Expr { return l }

// Binary applies an arithmetic, comparison or boolean operator.
type Binary struct {
	Op          Op
	Left, Right Expr

	typ arrow.DataType
}

func (b *Binary) String() string {
	return operand(b.Left) + " " + b.Op.String() + " " + operand(b.Right)
}

func (b *Binary) Type() arrow.DataType { return b.typ }
func (b *Binary) Children() []Expr     { return []Expr{b.Left, b.Right} }
func (b *Binary) withChildren(c []Expr) Expr {
	return &Binary{Op: b.Op, Left: c[0], Right: c[1], typ: b.typ}
}

// operand renders a child of an operator, parenthesising nested operators so
// that display names stay unambiguous.
func operand(e Expr) string {
	switch e.(type) {
	case *Binary, *Negative, *Not, *IsNull:
		return "(" + e.String() + ")"
	}
	return e.String()
}

// Not negates a boolean.
type Not struct {
	Input Expr
}

func (n *Not) String() string             { return "NOT " + operand(n.Input) }
func (n *Not) Type() arrow.DataType       { return typeOf(n.Input, types.Boolean) }
func (n *Not) Children() []Expr           { return []Expr{n.Input} }
func (n *Not) withChildren(c []Expr) Expr { return &Not{Input: c[0]} }

// Negative is arithmetic negation.
type Negative struct {
	Input Expr
}

func (n *Negative) String() string             { return "-" + operand(n.Input) }
func (n *Negative) Type() arrow.DataType       { return n.Input.Type() }
func (n *Negative) Children() []Expr           { return []Expr{n.Input} }
func (n *Negative) withChildren(c []Expr) Expr { return &Negative{Input: c[0]} }

// IsNull tests validity. It never yields null.
type IsNull struct {
	Input   Expr
	Negated bool
}

func (n *IsNull) String() string {
	if n.Negated {
		return operand(n.Input) + " IS NOT NULL"
	}
	return operand(n.Input) + " IS NULL"
}

func (n *IsNull) Type() arrow.DataType { return typeOf(n.Input, types.Boolean) }
func (n *IsNull) Children() []Expr     { return []Expr{n.Input} }
func (n *IsNull) withChildren(c []Expr) Expr {
	return &IsNull{Input: c[0], Negated: n.Negated}
}

// Cast converts its input to another type.
type Cast struct {
	Input Expr
	To    arrow.DataType

	// implicit casts are inserted by binding and keep the display name of
	// their input.
	implicit bool
}

func (c *Cast) String() string {
	if c.implicit {
		return c.Input.String()
	}
	return "CAST(" + c.Input.String() + " AS " + types.Name(c.To) + ")"
}

func (c *Cast) Type() arrow.DataType { return typeOf(c.Input, c.To) }
func (c *Cast) Children() []Expr     { return []Expr{c.Input} }
func (c *Cast) withChildren(ch []Expr) Expr {
	return &Cast{Input: ch[0], To: c.To, implicit: c.implicit}
}

// Implicit reports whether the cast was inserted by binding.
func (c *Cast) Implicit() bool { return c.implicit }

// Call invokes a built-in function or UDF.
type Call struct {
	Name string
	Args []Expr

	fn  Function
	typ arrow.DataType
}

func (c *Call) String() string {
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = a.String()
	}
	return c.Name + "(" + strings.Join(args, ", ") + ")"
}

func (c *Call) Type() arrow.DataType { return c.typ }
func (c *Call) Children() []Expr     { return c.Args }
func (c *Call) withChildren(ch []Expr) Expr {
	return &Call{Name: c.Name, Args: ch, fn: c.fn, typ: c.typ}
}

// Function returns the function a bound call resolved to.
func (c *Call) Function() Function { return c.fn }

// Aggregate is an aggregate function application. It can only appear in the
// aggregate list of an aggregation; a nil Arg means COUNT(*).
type Aggregate struct {
	Func AggregateFunc
	Arg  Expr

	typ arrow.DataType
}

func (a *Aggregate) String() string {
	if a.Arg == nil {
		return a.Func.String() + "(*)"
	}
	return a.Func.String() + "(" + a.Arg.String() + ")"
}

func (a *Aggregate) Type() arrow.DataType { return a.typ }
func (a *Aggregate) Children() []Expr {
	if a.Arg == nil {
		return nil
	}
	return []Expr{a.Arg}
}

func (a *Aggregate) withChildren(c []Expr) Expr {
	out := &Aggregate{Func: a.Func, typ: a.typ}
	if len(c) > 0 {
		out.Arg = c[0]
	}
	return out
}

// Alias renames the output of an expression.
type Alias struct {
	Input Expr
	Name  string
}

func (a *Alias) String() string             { return a.Input.String() + " AS " + a.Name }
func (a *Alias) Type() arrow.DataType       { return a.Input.Type() }
func (a *Alias) Children() []Expr           { return []Expr{a.Input} }
func (a *Alias) withChildren(c []Expr) Expr { return &Alias{Input: c[0], Name: a.Name} }

// typeOf returns dt once e is bound and nil before.
func typeOf(e Expr, dt arrow.DataType) arrow.DataType {
	if e.Type() == nil {
		return nil
	}
	return dt
}

// OutputName is the column name an expression produces in a projection or
// aggregation.
func OutputName(e Expr) string {
	switch e := e.(type) {
	case *Alias:
		return e.Name
	case *Column:
		return e.Name
	}
	return e.String()
}

// Unalias strips any top-level aliases.
func Unalias(e Expr) Expr {
	for {
		a, ok := e.(*Alias)
		if !ok {
			return e
		}
		e = a.Input
	}
}

// Walk visits e and its descendants in pre-order until fn returns false.
func Walk(e Expr, fn func(Expr) bool) {
	if !fn(e) {
		return
	}
	for _, c := range e.Children() {
		Walk(c, fn)
	}
}

// Transform rebuilds e top-down. When fn returns true its replacement is
// used as is and not descended into.
func Transform(e Expr, fn func(Expr) (Expr, bool)) Expr {
	if out, ok := fn(e); ok {
		return out
	}
	children := e.Children()
	if len(children) == 0 {
		return e
	}
	rewritten := make([]Expr, len(children))
	for i, c := range children {
		rewritten[i] = Transform(c, fn)
	}
	return e.withChildren(rewritten)
}

// ContainsAggregate reports whether e has an Aggregate node.
func ContainsAggregate(e Expr) bool {
	found := false
	Walk(e, func(n Expr) bool {
		if _, ok := n.(*Aggregate); ok {
			found = true
		}
		return !found
	})
	return found
}
