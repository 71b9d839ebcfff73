// Package errs defines the error taxonomy shared by every quiver package.
//
// Callers match errors with errors.Is against the sentinels below. Sentinels
// are wrapped with fmt.Errorf("%w: ...") to attach detail.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrTableNotFound is returned when a query or lookup names an unknown table.
	ErrTableNotFound = errors.New("table not found")

	// ErrDuplicateTable is returned when a table name is registered twice.
	ErrDuplicateTable = errors.New("table already registered")

	// ErrDuplicateUDF is returned when a function name is registered twice.
	ErrDuplicateUDF = errors.New("function already registered")

	// ErrUnresolvedColumn is returned when an expression references a column
	// absent from the schema it is bound against.
	ErrUnresolvedColumn = errors.New("unresolved column")

	// ErrUnknownFunction is returned for calls to neither a built-in nor a UDF.
	ErrUnknownFunction = errors.New("unknown function")

	// ErrTypeMismatch is returned when an operator or function is applied to
	// operand types that cannot be coerced to what it accepts.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrUnsupportedCast is returned for unrecognized or unsupported cast targets.
	ErrUnsupportedCast = errors.New("unsupported cast")

	// ErrUnsupportedSQL is returned for SQL outside the supported grammar.
	ErrUnsupportedSQL = errors.New("unsupported SQL")

	// ErrUnsupportedArrayUDF is returned when an array UDF's output cannot be
	// represented as a column of the declared type and length.
	ErrUnsupportedArrayUDF = errors.New("unsupported array UDF result")

	// ErrExecution is matched by every *ExecutionError.
	ErrExecution = errors.New("execution error")

	ErrInvalidArgument        = errors.New("invalid argument")
	ErrNumericOverflow        = errors.New("numeric overflow")
	ErrSchemaMismatch         = errors.New("schema mismatch")
	ErrUnsupportedStorageType = errors.New("type not supported by storage")
)

// ExecutionError reports a failure raised while running a query, such as a
// failing UDF callable or a value that cannot be cast.
type ExecutionError struct {
	Op  string
	Err error
}

// NewExecutionError wraps err as a failure of op.
func NewExecutionError(op string, err error) *ExecutionError {
	return &ExecutionError{Op: op, Err: err}
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution error in %s: %v", e.Op, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrExecution) hold for every ExecutionError.
func (e *ExecutionError) Is(target error) bool {
	return target == ErrExecution
}
