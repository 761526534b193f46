package errors

import (
	"errors"
	"fmt"
)

// Common error types for the session service
var (
	// Refresh token errors
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrTokenReuseDetected  = errors.New("refresh token reuse detected")
	ErrRefreshTokenExpired = errors.New("refresh token expired")

	// Session errors
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionRevoked  = errors.New("session revoked")

	// Storage errors
	ErrPersistence         = errors.New("persistence failure")
	ErrDuplicateTokenHash  = errors.New("duplicate token hash")
	ErrDenylistUnavailable = errors.New("denylist unavailable")

	// General errors
	ErrNotFound    = errors.New("not found")
	ErrInternal    = errors.New("internal error")
	ErrUnsupported = errors.New("unsupported operation")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// IsAuthFailure reports whether err should map to an authentication-failure
// response. Reuse detection is included: the caller still rejects the
// request, the server side has already revoked the full session set.
func IsAuthFailure(err error) bool {
	return errors.Is(err, ErrInvalidRefreshToken) ||
		errors.Is(err, ErrTokenReuseDetected) ||
		errors.Is(err, ErrRefreshTokenExpired) ||
		errors.Is(err, ErrSessionRevoked)
}
