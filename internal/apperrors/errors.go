package apperrors

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest marks a missing or empty required input.
	ErrInvalidRequest = errors.New("request.invalid")
	// ErrUnauthenticated marks an unresolvable bearer token or an upstream invalid-token signal.
	ErrUnauthenticated = errors.New("auth.unauthenticated")
)

// Error pairs a taxonomy kind with the message shown to the caller.
type Error struct {
	Kind    error
	Message string
	Details any
	Err     error
}

func (failure *Error) Error() string {
	if failure.Err != nil {
		return fmt.Sprintf("%s: %s: %v", failure.Kind, failure.Message, failure.Err)
	}
	return fmt.Sprintf("%s: %s", failure.Kind, failure.Message)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (failure *Error) Unwrap() []error {
	wrapped := make([]error, 0, 2)
	if failure.Kind != nil {
		wrapped = append(wrapped, failure.Kind)
	}
	if failure.Err != nil {
		wrapped = append(wrapped, failure.Err)
	}
	return wrapped
}

// InvalidRequest builds an ErrInvalidRequest failure.
func InvalidRequest(message string) *Error {
	return &Error{Kind: ErrInvalidRequest, Message: message}
}

// Unauthenticated builds an ErrUnauthenticated failure, optionally carrying upstream details and cause.
func Unauthenticated(message string, details any, cause error) *Error {
	return &Error{Kind: ErrUnauthenticated, Message: message, Details: details, Err: cause}
}
