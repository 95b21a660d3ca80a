// internal/apperr/apperr.go
package apperr

import (
	"errors"
	"fmt"
)

// Error kinds. Domain packages wrap one of these so that transport code can
// classify failures with errors.Is without knowing every sentinel.
var (
	ErrNotFound      = errors.New("not found")
	ErrInvalid       = errors.New("invalid input")
	ErrConflict      = errors.New("conflict")
	ErrUnprocessable = errors.New("rule violation")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrRateLimited   = errors.New("rate limit exceeded")
)

// Invalidf returns a validation error carrying a formatted message.
func Invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// Rulef returns a business-rule violation carrying a formatted message.
func Rulef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnprocessable, fmt.Sprintf(format, args...))
}

// NotFoundf returns a not-found error carrying a formatted message.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// Kind reports which error kind err belongs to, or nil for an unclassified error.
func Kind(err error) error {
	for _, kind := range []error{ErrNotFound, ErrInvalid, ErrConflict, ErrUnprocessable, ErrUnauthorized, ErrForbidden, ErrRateLimited} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
