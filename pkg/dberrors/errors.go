// Package dberrors provides structured error handling for the Pulseboard
// data-access layer
package dberrors

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeConnection represents connection errors
	ErrorTypeConnection ErrorType = "connection"
	// ErrorTypeAcquireTimeout represents pool acquisition timeout errors
	ErrorTypeAcquireTimeout ErrorType = "acquire_timeout"
	// ErrorTypeQuery represents query execution errors
	ErrorTypeQuery ErrorType = "query"
	// ErrorTypeTransaction represents transaction errors
	ErrorTypeTransaction ErrorType = "transaction"
	// ErrorTypeClosed represents operations attempted after close
	ErrorTypeClosed ErrorType = "closed"
	// ErrorTypeHealth represents health check errors
	ErrorTypeHealth ErrorType = "health"
	// ErrorTypeInternal represents internal system errors
	ErrorTypeInternal ErrorType = "internal"
)

// Error represents a structured error with context
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	// Rollback carries a rollback failure that occurred while handling
	// Cause inside a transaction. Nil for every other error type.
	Rollback error
	Details  map[string]interface{}
	Stack    []StackFrame
}

// StackFrame represents a single frame in the call stack
type StackFrame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Rollback != nil {
		return fmt.Sprintf("%s: %s: %v (rollback failed: %v)", e.Type, e.Message, e.Cause, e.Rollback)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a key-value detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new error with the given type and message
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	// If already our error type, preserve the stack
	var existingErr *Error
	if errors.As(err, &existingErr) {
		return &Error{
			Type:    errType,
			Message: message,
			Cause:   err,
			Stack:   existingErr.Stack,
		}
	}

	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// NewAcquireTimeout creates an error for a pool acquisition that exceeded
// the configured wait
func NewAcquireTimeout(cause error) *Error {
	return &Error{
		Type:    ErrorTypeAcquireTimeout,
		Message: "connection acquisition timed out",
		Cause:   cause,
		Stack:   captureStack(2),
	}
}

// NewQueryError creates an error for a failed statement execution. The
// statement text and parameters are recorded in truncated form so callers
// can diagnose the failure without unbounded log growth.
func NewQueryError(cause error, statement string, params []interface{}) *Error {
	e := &Error{
		Type:    ErrorTypeQuery,
		Message: "query execution failed",
		Cause:   cause,
		Stack:   captureStack(2),
	}
	return e.
		WithDetail("statement", TruncateStatement(statement)).
		WithDetail("params", TruncateParams(params))
}

// NewTransactionError creates an error for a callback that failed inside a
// transaction. cause is the callback's original failure and is always
// reachable through Unwrap; rollbackErr, when non-nil, records that the
// rollback attempt itself also failed.
func NewTransactionError(cause error, rollbackErr error) *Error {
	return &Error{
		Type:     ErrorTypeTransaction,
		Message:  "transaction failed",
		Cause:    cause,
		Rollback: rollbackErr,
		Stack:    captureStack(2),
	}
}

// NewClosed creates an error for an operation attempted after Close
func NewClosed(op string) *Error {
	return New(ErrorTypeClosed, fmt.Sprintf("%s called on closed manager", op))
}

// IsRetryable returns true if the error is retryable by the caller. The
// manager itself never retries.
func IsRetryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}

	switch e.Type {
	case ErrorTypeAcquireTimeout, ErrorTypeConnection:
		return true
	default:
		return false
	}
}

// IsType checks if the error is of the given type
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

// IsAcquireTimeout reports whether err is a pool acquisition timeout
func IsAcquireTimeout(err error) bool {
	return IsType(err, ErrorTypeAcquireTimeout)
}

// IsClosed reports whether err is an operation-after-close error
func IsClosed(err error) bool {
	return IsType(err, ErrorTypeClosed)
}

// RollbackFailure returns the rollback error recorded on a transaction
// error, or nil when the rollback succeeded or err is not a transaction
// error.
func RollbackFailure(err error) error {
	var e *Error
	if !errors.As(err, &e) {
		return nil
	}
	return e.Rollback
}

// captureStack captures the current call stack
func captureStack(skip int) []StackFrame {
	const maxFrames = 32
	frames := make([]StackFrame, 0, maxFrames)

	for i := skip; i < maxFrames+skip; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		frames = append(frames, StackFrame{
			Function: fn.Name(),
			File:     file,
			Line:     line,
		})
	}

	return frames
}
