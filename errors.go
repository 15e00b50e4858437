package coredb

import "github.com/coredb/coredb/internal/sqlerr"

// Error is an engine failure tagged with a five-character SQLSTATE
// code, re-exported so callers never need to import internal/sqlerr
// directly. Compare with errors.Is against the sentinels below.
type Error = sqlerr.Error

// Sentinel errors matching the SQLSTATE codes this package raises.
// Compare with errors.Is(err, coredb.ErrSerializationFailure); message
// text is call-site detail and never part of the comparison.
var (
	ErrActiveTransaction             = sqlerr.ErrActiveTransaction
	ErrInFailedTransaction           = sqlerr.ErrInFailedTransaction
	ErrInvalidTransactionTermination = sqlerr.ErrInvalidTransactionTermination
	ErrSerializationFailure          = sqlerr.ErrSerializationFailure
	ErrSyntax                        = sqlerr.ErrSyntax
	ErrUndefinedTable                = sqlerr.ErrUndefinedTable
	ErrDuplicateTable                = sqlerr.ErrDuplicateTable
	ErrNotNullViolation              = sqlerr.ErrNotNullViolation
	ErrDivisionByZero                = sqlerr.ErrDivisionByZero
	ErrUndefinedFunction             = sqlerr.ErrUndefinedFunction
)
