package quiver

import "github.com/vegasq/quiver/internal/errs"

// Errors returned by quiver. Match them with errors.Is.
var (
	ErrTableNotFound          = errs.ErrTableNotFound
	ErrDuplicateTable         = errs.ErrDuplicateTable
	ErrDuplicateUDF           = errs.ErrDuplicateUDF
	ErrUnresolvedColumn       = errs.ErrUnresolvedColumn
	ErrUnknownFunction        = errs.ErrUnknownFunction
	ErrTypeMismatch           = errs.ErrTypeMismatch
	ErrUnsupportedCast        = errs.ErrUnsupportedCast
	ErrUnsupportedSQL         = errs.ErrUnsupportedSQL
	ErrUnsupportedArrayUDF    = errs.ErrUnsupportedArrayUDF
	ErrExecution              = errs.ErrExecution
	ErrInvalidArgument        = errs.ErrInvalidArgument
	ErrNumericOverflow        = errs.ErrNumericOverflow
	ErrSchemaMismatch         = errs.ErrSchemaMismatch
	ErrUnsupportedStorageType = errs.ErrUnsupportedStorageType
)

// ExecutionError reports a failure raised while a query runs.
type ExecutionError = errs.ExecutionError
