// services/finance-service/internal/domain/errors/errors.domain.go
package errors

import (
	"context"
	stdErrors "errors"
	"fmt"
)

// Standard Sentinel Errors
// These allow the transport layer (gRPC/CLI) to map lifecycle failures
// to status codes without string matching.
var (
	// Caller errors
	ErrValidation             = stdErrors.New("validation failed")
	ErrNotFound               = stdErrors.New("document not found")
	ErrStatusChangeNotAllowed = stdErrors.New("status changes must use the dedicated lifecycle operation")
	ErrInvalidOperation       = stdErrors.New("invalid operation")

	// State machine errors. Distinct so callers can say "already finalized"
	// differently from "wrong next step".
	ErrInvalidTransition = stdErrors.New("invalid status transition")
	ErrTerminalState     = stdErrors.New("document is in a terminal state")

	// Retryable / server errors
	ErrNumberGenerationExhausted = stdErrors.New("document number generation exhausted")
	ErrConcurrentModification    = stdErrors.New("document was modified concurrently")
	ErrTimeout                   = stdErrors.New("operation timed out")

	// ErrDuplicateDocumentNumber is raised by stores when the unique constraint on
	// document_number fires. The create path consumes it as a collision retry signal.
	ErrDuplicateDocumentNumber = stdErrors.New("duplicate document number")
)

// ValidationError describes malformed caller input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation error: %s", e.Message)
	}
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// TransitionError is returned when the status machine rejects a move.
// Err is either ErrInvalidTransition or ErrTerminalState.
type TransitionError struct {
	From string
	To   string
	Err  error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%v: %s -> %s", e.Err, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return e.Err }

// OperationError explains why an otherwise well-formed request cannot run
// against the document in its current state.
type OperationError struct {
	Op      string
	Message string
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *OperationError) Is(target error) bool { return target == ErrInvalidOperation }

// NewOperationError creates a new OperationError.
func NewOperationError(op, message string) *OperationError {
	return &OperationError{Op: op, Message: message}
}

// NotFound wraps ErrNotFound with the missing entity for the log line.
func NotFound(entity string, id fmt.Stringer) error {
	return fmt.Errorf("%w: %s %s", ErrNotFound, entity, id)
}

// WrapTimeout converts deadline expiry into the retryable ErrTimeout kind.
// Any other error is returned unchanged.
func WrapTimeout(err error) error {
	if err == nil {
		return nil
	}
	if stdErrors.Is(err, context.DeadlineExceeded) && !stdErrors.Is(err, ErrTimeout) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}

// IsRetryable reports whether the caller may safely retry the whole operation
// from fresh data.
func IsRetryable(err error) bool {
	return stdErrors.Is(err, ErrTimeout) || stdErrors.Is(err, ErrConcurrentModification)
}
