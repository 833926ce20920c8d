// Package exitcode defines exit codes for the CLI.
package exitcode

import (
	"context"
	"errors"

	apperrors "rita/internal/errors"
)

const (
	// Success indicates successful completion.
	Success = 0

	// UserError indicates a user error (bad args, empty input, not found).
	UserError = 1

	// AuthError indicates a missing or rejected session.
	AuthError = 2

	// BackendError indicates the backend answered with an error,
	// or a task ended FAILED.
	BackendError = 3

	// NetworkError indicates the backend could not be reached.
	NetworkError = 4
)

// FromError maps an error to an exit code.
func FromError(err error) int {
	if err == nil {
		return Success
	}
	if errors.Is(err, context.Canceled) {
		return UserError
	}
	switch apperrors.CodeOf(err) {
	case apperrors.ErrCodeValidation, apperrors.ErrCodeNotFound:
		return UserError
	case apperrors.ErrCodeUnauthorized:
		return AuthError
	case apperrors.ErrCodeTransport:
		return NetworkError
	default:
		return BackendError
	}
}
