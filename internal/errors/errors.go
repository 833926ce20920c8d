// Package errors defines the error taxonomy shared by the backend client,
// the task poller and the commands.
//
// Every failure a command can report falls into one of three groups:
// local validation (nothing was sent), transport (no response arrived) and
// application (the backend answered with an error). Auth, not-found and
// timeout codes refine the last two.
package errors

import (
	"errors"
)

const (
	ErrCodeValidation   = "VALIDATION_ERROR"
	ErrCodeTransport    = "TRANSPORT_ERROR"
	ErrCodeApplication  = "APPLICATION_ERROR"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeTimeout      = "TIMEOUT"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

// AppError is an error with a taxonomy code and a user-facing message.
// Err keeps the underlying cause for logging; it is not part of Error().
type AppError struct {
	Code    string
	Message string
	Err     error
}

// New creates an AppError.
func New(code, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

func (a *AppError) Error() string {
	if a.Message != "" {
		return a.Message
	}
	if a.Err != nil {
		return a.Err.Error()
	}
	return a.Code
}

func (a *AppError) Unwrap() error {
	return a.Err
}

// Validation returns a VALIDATION_ERROR with the given message.
func Validation(message string) *AppError {
	return New(ErrCodeValidation, message, nil)
}

// Application returns an APPLICATION_ERROR with the given message.
func Application(message string) *AppError {
	return New(ErrCodeApplication, message, nil)
}

// CodeOf returns the code of the first AppError in err's chain,
// or ErrCodeInternal if there is none.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code string) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

// Cause returns the wrapped cause of an AppError, or err itself.
func Cause(err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Err != nil {
		return appErr.Err
	}
	return err
}
