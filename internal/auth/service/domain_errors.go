package service

import (
	"errors"
	"fmt"
	"net/http"

	commonerrors "github.com/AlibekovAA/social-auth/internal/common/errors"
)

var (
	ErrDuplicateEmail = commonerrors.NewDomainError(
		"DUPLICATE_EMAIL",
		commonerrors.CategoryConflict,
		http.StatusConflict,
		"user with this email already exists",
	)

	ErrDuplicateUsername = commonerrors.NewDomainError(
		"DUPLICATE_USERNAME",
		commonerrors.CategoryConflict,
		http.StatusConflict,
		"username is already taken",
	)

	// ErrInvalidCredentials is returned for both an unknown email and a wrong
	// password.
	ErrInvalidCredentials = commonerrors.NewDomainError(
		"INVALID_CREDENTIALS",
		commonerrors.CategoryUnauthorized,
		http.StatusUnauthorized,
		"invalid email or password",
	)

	// ErrInvalidToken covers every access or refresh token rejection.
	ErrInvalidToken = commonerrors.ErrInvalidToken

	ErrServiceUnavailable = commonerrors.NewDomainError(
		"SERVICE_UNAVAILABLE",
		commonerrors.CategoryExternal,
		http.StatusServiceUnavailable,
		"service temporarily unavailable",
	)
)

// handleCircuitBreakerError turns an open circuit into a 503 for callers.
func handleCircuitBreakerError(err error) error {
	if errors.Is(err, commonerrors.ErrCircuitOpen) {
		return ErrServiceUnavailable.WithCause(err)
	}
	return err
}

// newInternalError hides the cause behind the generic 500. The action ends
// up in logs through the wrapped cause, never in the response.
func newInternalError(action string, cause error) commonerrors.DomainError {
	return commonerrors.ErrInternalError.WithCause(fmt.Errorf("%s: %w", action, cause))
}
