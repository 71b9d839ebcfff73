package expr

import (
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/vegasq/quiver/internal/arrowutil"
	"github.com/vegasq/quiver/internal/errs"
	"github.com/vegasq/quiver/types"
)

// Binder resolves expressions against an input schema.
type Binder struct {
	Schema    *arrow.Schema
	Functions FunctionResolver

	// AllowAggregates permits Aggregate nodes at the top of the expression
	// (below an optional alias). Aggregates never nest.
	AllowAggregates bool
}

// Bind resolves e against schema with aggregates disallowed.
func Bind(e Expr, schema *arrow.Schema, funcs FunctionResolver) (Expr, error) {
	b := &Binder{Schema: schema, Functions: funcs}
	return b.Bind(e)
}

// Bind returns a typed copy of e. Column references are resolved to schema
// positions, calls to functions, and implicit casts are inserted so that
// operands of every operator share a type.
func (b *Binder) Bind(e Expr) (Expr, error) {
	return b.bind(e, b.AllowAggregates)
}

func (b *Binder) bind(e Expr, aggregates bool) (Expr, error) {
	switch e := e.(type) {
	case *Column:
		return b.bindColumn(e)
	case *Literal:
		return bindLiteral(e)
	case *Alias:
		in, err := b.bind(e.Input, aggregates)
		if err != nil {
			return nil, err
		}
		return &Alias{Input: in, Name: e.Name}, nil
	case *Binary:
		return b.bindBinary(e)
	case *Not:
		in, err := b.bind(e.Input, false)
		if err != nil {
			return nil, err
		}
		in, err = expectBoolean(in, "NOT")
		if err != nil {
			return nil, err
		}
		return &Not{Input: in}, nil
	case *Negative:
		in, err := b.bind(e.Input, false)
		if err != nil {
			return nil, err
		}
		if in.Type().ID() == arrow.NULL {
			in = implicitCast(in, types.Int64)
		}
		if !types.IsNumeric(in.Type()) {
			return nil, fmt.Errorf("%w: cannot negate %s", errs.ErrTypeMismatch, types.Name(in.Type()))
		}
		return &Negative{Input: in}, nil
	case *IsNull:
		in, err := b.bind(e.Input, false)
		if err != nil {
			return nil, err
		}
		return &IsNull{Input: in, Negated: e.Negated}, nil
	case *Cast:
		return b.bindCast(e)
	case *Call:
		return b.bindCall(e)
	case *Aggregate:
		if !aggregates {
			return nil, fmt.Errorf("%w: aggregate %s is not allowed here", errs.ErrInvalidArgument, e)
		}
		return b.bindAggregate(e)
	}
	return nil, fmt.Errorf("%w: unknown expression %T", errs.ErrInvalidArgument, e)
}

func (b *Binder) bindColumn(c *Column) (Expr, error) {
	idx := b.Schema.FieldIndices(c.Name)
	if len(idx) == 0 {
		// unique case-insensitive match
		for i, f := range b.Schema.Fields() {
			if strings.EqualFold(f.Name, c.Name) {
				idx = append(idx, i)
			}
		}
		if len(idx) != 1 {
			return nil, fmt.Errorf("%w: column %q not found (available: %s)",
				errs.ErrUnresolvedColumn, c.Name, strings.Join(fieldNames(b.Schema), ", "))
		}
	}
	field := b.Schema.Field(idx[0])
	return &Column{Name: field.Name, Index: idx[0], typ: field.Type}, nil
}

func fieldNames(schema *arrow.Schema) []string {
	names := make([]string, schema.NumFields())
	for i, f := range schema.Fields() {
		names[i] = f.Name
	}
	return names
}

func bindLiteral(l *Literal) (Expr, error) {
	if l.typ == nil {
		return nil, fmt.Errorf("%w: unsupported literal value of type %T", errs.ErrTypeMismatch, l.Value)
	}
	if !types.IsSupported(l.typ) {
		return nil, fmt.Errorf("%w: unsupported literal type %s", errs.ErrTypeMismatch, l.typ)
	}
	if l.Value == nil {
		return l, nil
	}

	// the value must be storable in a column of its declared type
	bldr := array.NewBuilder(memory.DefaultAllocator, l.typ)
	defer bldr.Release()
	if err := arrowutil.Append(bldr, l.Value); err != nil {
		return nil, err
	}
	return l, nil
}

func (b *Binder) bindBinary(e *Binary) (Expr, error) {
	left, err := b.bind(e.Left, false)
	if err != nil {
		return nil, err
	}
	right, err := b.bind(e.Right, false)
	if err != nil {
		return nil, err
	}
	lt, rt := left.Type(), right.Type()

	switch {
	case e.Op.IsArithmetic():
		common, ok := types.CommonNumeric(lt, rt)
		if !ok {
			return nil, fmt.Errorf("%w: cannot apply %s to %s and %s",
				errs.ErrTypeMismatch, e.Op, types.Name(lt), types.Name(rt))
		}
		return &Binary{Op: e.Op, Left: implicitCast(left, common), Right: implicitCast(right, common), typ: common}, nil

	case e.Op.IsComparison():
		common, ok := comparisonType(lt, rt)
		if !ok {
			return nil, fmt.Errorf("%w: cannot compare %s with %s",
				errs.ErrTypeMismatch, types.Name(lt), types.Name(rt))
		}
		return &Binary{Op: e.Op, Left: implicitCast(left, common), Right: implicitCast(right, common), typ: types.Boolean}, nil

	case e.Op.IsLogical():
		if left, err = expectBoolean(left, e.Op.String()); err != nil {
			return nil, err
		}
		if right, err = expectBoolean(right, e.Op.String()); err != nil {
			return nil, err
		}
		return &Binary{Op: e.Op, Left: left, Right: right, typ: types.Boolean}, nil
	}
	return nil, fmt.Errorf("%w: unknown operator %s", errs.ErrInvalidArgument, e.Op)
}

// comparisonType returns the type both sides of a comparison are cast to.
func comparisonType(a, b arrow.DataType) (arrow.DataType, bool) {
	if common, ok := types.CommonNumeric(a, b); ok {
		return common, true
	}
	if a.ID() == arrow.NULL {
		return b, types.IsOrderable(b)
	}
	if b.ID() == arrow.NULL {
		return a, types.IsOrderable(a)
	}

	if arrow.TypeEqual(a, b) {
		return a, types.IsOrderable(a)
	}

	switch {
	case a.ID() == arrow.TIMESTAMP && b.ID() == arrow.TIMESTAMP:
		ua, ub := a.(*arrow.TimestampType).Unit, b.(*arrow.TimestampType).Unit
		return types.Timestamp(max(ua, ub)), true
	case types.IsTemporal(a) && b.ID() == arrow.STRING:
		return a, true
	case types.IsTemporal(b) && a.ID() == arrow.STRING:
		return b, true
	case a.ID() == arrow.DATE32 && b.ID() == arrow.TIMESTAMP:
		return b, true
	case a.ID() == arrow.TIMESTAMP && b.ID() == arrow.DATE32:
		return a, true
	case isBinaryLike(a) && isBinaryLike(b):
		return types.Binary, true
	}
	return nil, false
}

func isBinaryLike(dt arrow.DataType) bool {
	return dt.ID() == arrow.BINARY || dt.ID() == arrow.FIXED_SIZE_BINARY
}

func expectBoolean(e Expr, op string) (Expr, error) {
	switch e.Type().ID() {
	case arrow.BOOL:
		return e, nil
	case arrow.NULL:
		return implicitCast(e, types.Boolean), nil
	}
	return nil, fmt.Errorf("%w: %s expects a boolean operand, got %s", errs.ErrTypeMismatch, op, types.Name(e.Type()))
}

// implicitCast converts e to dt unless it already has that type.
func implicitCast(e Expr, dt arrow.DataType) Expr {
	if arrow.TypeEqual(e.Type(), dt) {
		return e
	}
	return &Cast{Input: e, To: dt, implicit: true}
}

func (b *Binder) bindCast(c *Cast) (Expr, error) {
	in, err := b.bind(c.Input, false)
	if err != nil {
		return nil, err
	}
	if c.To == nil || !types.IsSupported(c.To) || c.To.ID() == arrow.NULL {
		return nil, fmt.Errorf("%w: unsupported target type %v", errs.ErrUnsupportedCast, c.To)
	}
	if !types.CanCast(in.Type(), c.To) {
		return nil, fmt.Errorf("%w: cannot cast %s to %s",
			errs.ErrUnsupportedCast, types.Name(in.Type()), types.Name(c.To))
	}
	return &Cast{Input: in, To: c.To, implicit: c.implicit}, nil
}

func (b *Binder) bindCall(c *Call) (Expr, error) {
	fn := c.fn
	if fn == nil {
		if _, ok := LookupAggregate(strings.ToUpper(c.Name)); ok {
			return nil, fmt.Errorf("%w: aggregate %s is not allowed here", errs.ErrInvalidArgument, c.Name)
		}
		var ok bool
		if b.Functions != nil {
			fn, ok = b.Functions.Function(c.Name)
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s", errs.ErrUnknownFunction, c.Name)
		}
	}

	if len(c.Args) < fn.MinArity() || (fn.MaxArity() >= 0 && len(c.Args) > fn.MaxArity()) {
		return nil, fmt.Errorf("%w: %s called with %d arguments", errs.ErrTypeMismatch, c.Name, len(c.Args))
	}

	args := make([]Expr, len(c.Args))
	argTypes := make([]arrow.DataType, len(c.Args))
	for i, a := range c.Args {
		bound, err := b.bind(a, false)
		if err != nil {
			return nil, err
		}
		args[i] = bound
		argTypes[i] = bound.Type()
	}

	params, ret, err := fn.Resolve(argTypes)
	if err != nil {
		return nil, err
	}
	for i := range args {
		args[i] = implicitCast(args[i], params[i])
	}
	return &Call{Name: c.Name, Args: args, fn: fn, typ: ret}, nil
}

func (b *Binder) bindAggregate(a *Aggregate) (Expr, error) {
	if a.Arg == nil {
		if a.Func != AggCount {
			return nil, fmt.Errorf("%w: %s(*) is not supported", errs.ErrInvalidArgument, a.Func)
		}
		return &Aggregate{Func: AggCount, typ: types.Int64}, nil
	}

	arg, err := b.bind(a.Arg, false)
	if err != nil {
		return nil, err
	}
	dt := arg.Type()

	switch a.Func {
	case AggCount:
		return &Aggregate{Func: a.Func, Arg: arg, typ: types.Int64}, nil
	case AggSum, AggAvg:
		if dt.ID() == arrow.NULL {
			arg, dt = implicitCast(arg, types.Int64), types.Int64
		}
		if !types.IsNumeric(dt) {
			return nil, fmt.Errorf("%w: %s expects a numeric argument, got %s", errs.ErrTypeMismatch, a.Func, types.Name(dt))
		}
		ret := types.Float64
		if a.Func == AggSum && types.IsInteger(dt) {
			ret = types.Int64
		}
		return &Aggregate{Func: a.Func, Arg: arg, typ: ret}, nil
	case AggMin, AggMax:
		if dt.ID() == arrow.NULL {
			arg, dt = implicitCast(arg, types.Int64), types.Int64
		}
		if !types.IsOrderable(dt) {
			return nil, fmt.Errorf("%w: %s cannot order %s", errs.ErrTypeMismatch, a.Func, types.Name(dt))
		}
		return &Aggregate{Func: a.Func, Arg: arg, typ: dt}, nil
	}
	return nil, fmt.Errorf("%w: unknown aggregate %s", errs.ErrInvalidArgument, a.Func)
}

// Columns returns the names of the columns e references, in first-seen
// order.
func Columns(e Expr) []string {
	var names []string
	seen := make(map[string]bool)
	Walk(e, func(n Expr) bool {
		if c, ok := n.(*Column); ok && !seen[c.Name] {
			seen[c.Name] = true
			names = append(names, c.Name)
		}
		return true
	})
	return names
}
