package errors

import (
	"errors"
	"fmt"
)

var (
	// Account errors
	ErrAccountNotFound   = errors.New("account not found")
	ErrAccountInactive   = errors.New("account is not active")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrSameAccount       = errors.New("source and destination accounts must differ")

	// Auth errors
	ErrAuthUnavailable = errors.New("authentication token unavailable")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrBadCredentials  = errors.New("invalid credentials")

	// Transport errors
	ErrCircuitOpen        = errors.New("circuit breaker open")
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")

	// Validation errors
	ErrValidationFailed = errors.New("validation failed")
	ErrInvalidInput     = errors.New("invalid input")
	ErrInvalidAmount    = errors.New("invalid amount")
)

// DomainError wraps errors with additional context
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ValidationError is raised locally, before anything goes over the wire.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
}

// Is lets callers match any ValidationError with errors.Is(err, ErrValidationFailed).
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NetworkError reports a transport-level failure that survived every retry.
type NetworkError struct {
	Method   string
	URL      string
	Attempts int
	Err      error
}

func (e *NetworkError) Error() string {
	if e.Attempts == 0 {
		return fmt.Sprintf("network error: %s %s was not sent: %v", e.Method, e.URL, e.Err)
	}
	return fmt.Sprintf("network error: %s %s failed after %d attempt(s): %v", e.Method, e.URL, e.Attempts, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// RemoteError reports a non-2xx response the caller cannot treat as a domain outcome.
type RemoteError struct {
	Operation  string
	StatusCode int
	Body       string
	Attempts   int
}

func (e *RemoteError) Error() string {
	op := e.Operation
	if op == "" {
		op = "request"
	}
	if e.Body == "" {
		return fmt.Sprintf("%s failed: HTTP %d", op, e.StatusCode)
	}
	return fmt.Sprintf("%s failed: HTTP %d - %s", op, e.StatusCode, e.Body)
}

// Retryable reports whether the status is a server-side failure.
func (e *RemoteError) Retryable() bool {
	return e.StatusCode >= 500
}

// Is matches ErrMaxRetriesExceeded once a retryable failure has used more than one attempt.
func (e *RemoteError) Is(target error) bool {
	return target == ErrMaxRetriesExceeded && e.Retryable() && e.Attempts > 1
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNetwork reports whether err carries a NetworkError.
func IsNetwork(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// IsRemote reports whether err carries a RemoteError.
func IsRemote(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}
