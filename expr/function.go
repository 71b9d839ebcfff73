package expr

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/vegasq/quiver/internal/errs"
	"github.com/vegasq/quiver/types"
)

// Function is a scalar function callable from expressions.
type Function interface {
	// Name returns the function name (case-insensitive)
	Name() string
	// MinArity returns the minimum number of arguments
	MinArity() int
	// MaxArity returns the maximum number of arguments (-1 for unlimited)
	MaxArity() int
	// Resolve checks the argument types of a call site and returns the types
	// the arguments are coerced to along with the result type.
	Resolve(args []arrow.DataType) (params []arrow.DataType, ret arrow.DataType, err error)
}

// RowFunction is evaluated once per row. Arguments arrive as Go values;
// Date32 and timestamp arguments are passed as UTC time.Time.
type RowFunction interface {
	Function
	Evaluate(args []any) (any, error)
}

// NullAccepting is implemented by row functions that want to see null
// arguments (as nil) instead of having the engine produce null for them.
type NullAccepting interface {
	AcceptsNulls() bool
}

// VectorFunction is evaluated once per batch over whole arrays.
type VectorFunction interface {
	Function
	EvaluateArrays(args []arrow.Array) (arrow.Array, error)
}

// FunctionResolver finds functions by name during binding.
type FunctionResolver interface {
	Function(name string) (Function, bool)
}

// Convention selects how a UDF is called.
type Convention int

const (
	// ScalarConvention calls the UDF once per row with Go values. The engine
	// passes nil for null arguments and stores a nil result as null.
	ScalarConvention Convention = iota

	// ArrayConvention calls the UDF once per batch with whole arrays,
	// validity included. The UDF is responsible for null-correct output.
	ArrayConvention
)

func (c Convention) String() string {
	if c == ArrayConvention {
		return "array"
	}
	return "scalar"
}

// ScalarFunc is the callable of a scalar-convention UDF.
type ScalarFunc func(args ...any) (any, error)

// ArrayFunc is the callable of an array-convention UDF. It must return an
// array of the declared return type with the same length as its inputs.
type ArrayFunc func(args ...arrow.Array) (arrow.Array, error)

// UDF describes a user-defined function.
type UDF struct {
	Name       string
	ArgTypes   []arrow.DataType
	ReturnType arrow.DataType
	Convention Convention

	// Scalar is required for ScalarConvention, Array for ArrayConvention.
	Scalar ScalarFunc
	Array  ArrayFunc
}

func newUDFFunction(udf UDF) (Function, error) {
	if udf.Name == "" {
		return nil, fmt.Errorf("%w: function name cannot be empty", errs.ErrInvalidArgument)
	}
	if udf.ReturnType == nil {
		return nil, fmt.Errorf("%w: function %s has no return type", errs.ErrInvalidArgument, udf.Name)
	}

	unsupported := errs.ErrInvalidArgument
	if udf.Convention == ArrayConvention {
		unsupported = errs.ErrUnsupportedArrayUDF
	}
	check := func(dt arrow.DataType) error {
		if dt == nil || dt.ID() == arrow.NULL || !types.IsSupported(dt) {
			return fmt.Errorf("%w: function %s cannot exchange values of type %v", unsupported, udf.Name, dt)
		}
		return nil
	}
	if err := check(udf.ReturnType); err != nil {
		return nil, err
	}
	for _, dt := range udf.ArgTypes {
		if err := check(dt); err != nil {
			return nil, err
		}
	}

	switch udf.Convention {
	case ScalarConvention:
		if udf.Scalar == nil {
			return nil, fmt.Errorf("%w: scalar function %s has no callable", errs.ErrInvalidArgument, udf.Name)
		}
		return &scalarUDF{udf: udf}, nil
	case ArrayConvention:
		if udf.Array == nil {
			return nil, fmt.Errorf("%w: array function %s has no callable", errs.ErrInvalidArgument, udf.Name)
		}
		return &arrayUDF{udf: udf}, nil
	}
	return nil, fmt.Errorf("%w: unknown calling convention %d", errs.ErrInvalidArgument, udf.Convention)
}

// resolveSignature checks call-site argument types against a fixed
// signature.
func resolveSignature(name string, declared []arrow.DataType, ret arrow.DataType, args []arrow.DataType) ([]arrow.DataType, arrow.DataType, error) {
	if len(args) != len(declared) {
		return nil, nil, fmt.Errorf("%w: %s expects %d arguments, got %d", errs.ErrTypeMismatch, name, len(declared), len(args))
	}
	for i, arg := range args {
		if !types.ImplicitlyCoercible(arg, declared[i]) {
			return nil, nil, fmt.Errorf("%w: argument %d of %s is %s, want %s",
				errs.ErrTypeMismatch, i+1, name, types.Name(arg), types.Name(declared[i]))
		}
	}
	return declared, ret, nil
}

type scalarUDF struct {
	udf UDF
}

func (f *scalarUDF) Name() string       { return f.udf.Name }
func (f *scalarUDF) MinArity() int      { return len(f.udf.ArgTypes) }
func (f *scalarUDF) MaxArity() int      { return len(f.udf.ArgTypes) }
func (f *scalarUDF) AcceptsNulls() bool { return true }

func (f *scalarUDF) Resolve(args []arrow.DataType) ([]arrow.DataType, arrow.DataType, error) {
	return resolveSignature(f.udf.Name, f.udf.ArgTypes, f.udf.ReturnType, args)
}

func (f *scalarUDF) Evaluate(args []any) (any, error) {
	return f.udf.Scalar(args...)
}

type arrayUDF struct {
	udf UDF
}

func (f *arrayUDF) Name() string  { return f.udf.Name }
func (f *arrayUDF) MinArity() int { return len(f.udf.ArgTypes) }
func (f *arrayUDF) MaxArity() int { return len(f.udf.ArgTypes) }

func (f *arrayUDF) Resolve(args []arrow.DataType) ([]arrow.DataType, arrow.DataType, error) {
	return resolveSignature(f.udf.Name, f.udf.ArgTypes, f.udf.ReturnType, args)
}

func (f *arrayUDF) EvaluateArrays(args []arrow.Array) (arrow.Array, error) {
	return f.udf.Array(args...)
}

// Registry manages the functions visible to one engine context. It starts
// with the built-in functions; UDFs are added with Register.
type Registry struct {
	mu        sync.RWMutex
	functions map[string]Function
}

var _ FunctionResolver = (*Registry)(nil)

// NewRegistry creates a registry holding the built-in functions.
func NewRegistry() *Registry {
	r := &Registry{
		functions: make(map[string]Function),
	}
	for _, f := range builtins() {
		r.functions[strings.ToUpper(f.Name())] = f
	}
	return r
}

// Register adds a UDF. Names are case-insensitive and must not collide with
// a built-in, an aggregate or a previously registered UDF.
func (r *Registry) Register(udf UDF) error {
	fn, err := newUDFFunction(udf)
	if err != nil {
		return err
	}

	key := strings.ToUpper(udf.Name)
	if _, ok := LookupAggregate(key); ok {
		return fmt.Errorf("%w: %s is an aggregate function", errs.ErrDuplicateUDF, udf.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.functions[key]; exists {
		return fmt.Errorf("%w: %s", errs.ErrDuplicateUDF, udf.Name)
	}
	r.functions[key] = fn
	return nil
}

// Function retrieves a function by name (case-insensitive).
func (r *Registry) Function(name string) (Function, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, exists := r.functions[strings.ToUpper(name)]
	return f, exists
}

// Names returns the upper-cased names of all functions, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.functions))
	for name := range r.functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
