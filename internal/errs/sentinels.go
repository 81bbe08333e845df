// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across store/service/transport layers.
var (
	// ErrNotFound indicates the referenced message, conversation or user does not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden indicates the caller is not allowed to act on the entity.
	ErrForbidden = errors.New("forbidden")

	// ErrValidation indicates a missing or malformed identifier in a request payload.
	ErrValidation = errors.New("validation failed")

	// ErrUnauthorized indicates a failed handshake or request authentication.
	ErrUnauthorized = errors.New("unauthorized")
)

// IsClientVisible reports whether err should be reported back to the caller
// rather than only logged server-side.
func IsClientVisible(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrUnauthorized)
}

// Public returns the text shown to clients for err. Details of wrapped
// errors stay server-side.
func Public(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return ErrNotFound.Error()
	case errors.Is(err, ErrForbidden):
		return ErrForbidden.Error()
	case errors.Is(err, ErrUnauthorized):
		return ErrUnauthorized.Error()
	case errors.Is(err, ErrValidation):
		return ErrValidation.Error()
	default:
		return "internal error"
	}
}
