package llm

import (
	"errors"
	"fmt"
)

// ErrorType classifies a completion failure for retry decisions.
type ErrorType string

const (
	ErrorTypeAuth          ErrorType = "auth"
	ErrorTypeRateLimit     ErrorType = "rate_limit"
	ErrorTypeTransient     ErrorType = "transient"
	ErrorTypeBadPrompt     ErrorType = "bad_prompt"
	ErrorTypeEmptyResponse ErrorType = "empty_response"
	ErrorTypeUnknown       ErrorType = "unknown"
)

// Error is a classified completion failure.
type Error struct {
	Cause   error
	Type    ErrorType
	Message string
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// ShouldRetry reports whether the failure class is worth retrying.
func (e *Error) ShouldRetry() bool {
	switch e.Type {
	case ErrorTypeRateLimit, ErrorTypeTransient, ErrorTypeEmptyResponse:
		return true
	default:
		return false
	}
}

// NewError creates a classified error without an underlying cause.
func NewError(errType ErrorType, format string, args ...any) *Error {
	return &Error{Type: errType, Message: fmt.Sprintf(format, args...)}
}

// NewErrorWithCause creates a classified error wrapping an underlying cause.
func NewErrorWithCause(errType ErrorType, cause error, format string, args ...any) *Error {
	return &Error{Type: errType, Cause: cause, Message: fmt.Sprintf(format, args...)}
}

// AsError extracts a classified *Error from an error chain, if present.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
