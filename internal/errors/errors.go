// Package errors defines the domain error taxonomy shared across the
// settlement services. Handlers map codes to HTTP statuses; services wrap
// these with entity context via fmt.Errorf and %w.
package errors

import "fmt"

type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

// WithDetail returns an error wrapping the domain error with extra
// context, keeping errors.Is checks against the sentinel working.
func (e *DomainError) WithDetail(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{error(e)}, args...)...)
}

var (
	ErrNotFound = &DomainError{
		Code:    "NOT_FOUND",
		Message: "resource not found",
	}
	ErrInvalidState = &DomainError{
		Code:    "INVALID_STATE",
		Message: "operation not allowed in current state",
	}
	ErrUnauthorized = &DomainError{
		Code:    "UNAUTHORIZED",
		Message: "unauthorized",
	}
	ErrInsufficientBalance = &DomainError{
		Code:    "INSUFFICIENT_BALANCE",
		Message: "insufficient available balance",
	}
	ErrConflict = &DomainError{
		Code:    "CONFLICT",
		Message: "conflicting concurrent write",
	}
	ErrTransportFailure = &DomainError{
		Code:    "TRANSPORT_FAILURE",
		Message: "external transfer rail unreachable or rejected",
	}
	ErrValidation = &DomainError{
		Code:    "VALIDATION",
		Message: "invalid input",
	}
)
