// Package sqlerr defines the engine's error surface: every failure
// that crosses a statement boundary carries a SQLSTATE code alongside
// its message, per the host API's error contract. The top-level
// coredb package re-exports Error and the sentinels under its own
// names so callers never import this package directly.
package sqlerr

import "fmt"

// Error is an engine failure tagged with a five-character SQLSTATE
// code. Two Errors compare equal under errors.Is when their Codes
// match, regardless of Message, so callers can test
// errors.Is(err, sqlerr.ErrSerializationFailure) even though the
// message carries per-call detail.
type Error struct {
	Code    string
	Message string
	Err     error // wrapped cause, if any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports code equality so sentinel comparisons work regardless of
// each Error's specific message.
func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == te.Code
}

// New constructs an Error with the given SQLSTATE code and message.
func New(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf constructs an Error with a formatted message.
func Newf(code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an Error that also carries an underlying cause.
func Wrap(code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// Sentinels for errors.Is comparisons; each carries a representative
// message only, the specific message is filled in by Newf at the call
// site that raises it.
var (
	ErrActiveTransaction             = New("25001", "a transaction is already active")
	ErrInFailedTransaction           = New("25P02", "current transaction is aborted, commands ignored until end of transaction block")
	ErrInvalidTransactionTermination = New("2D000", "invalid transaction termination")
	ErrSerializationFailure          = New("40001", "could not serialize access due to concurrent update")
	ErrSyntax                        = New("42601", "syntax error")
	ErrUndefinedTable                = New("42P01", "undefined table")
	ErrDuplicateTable                = New("42P07", "table already exists")
	ErrNotNullViolation              = New("23502", "null value violates not-null constraint")
	ErrDivisionByZero                = New("22012", "division by zero")
	ErrUndefinedFunction             = New("42883", "undefined function")
)
