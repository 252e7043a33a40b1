package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by repo and service functions when the requested
// resource does not exist in the datastore.
// Handlers should map this to HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned by service functions when input fails business
// rule validation (e.g. missing required field, malformed trip code).
// Handlers should map this to HTTP 422 Unprocessable Entity.
var ErrValidation = errors.New("validation error")

// ErrInvalidState is returned when an operation is not allowed for the
// current state of a record, e.g. approving a request that is no longer Pending.
// Handlers should map this to HTTP 409 Conflict.
var ErrInvalidState = errors.New("invalid state")

// ErrForbidden is returned when the caller lacks admin privilege.
// It wraps ErrInvalidState so callers that only check the broader
// category still match.
var ErrForbidden = fmt.Errorf("%w: admin privilege required", ErrInvalidState)

// ErrConflict is returned when a write lost a race: the trip revision changed
// between read and write, or a trip code is already taken.
var ErrConflict = errors.New("conflict")

// ErrTransientStore marks a datastore failure (unavailable, timeout, aborted
// transaction). Nothing was committed; the caller may retry.
// Handlers should map this to HTTP 503.
var ErrTransientStore = errors.New("datastore unavailable")

// Validationf builds an ErrValidation-wrapped error with a formatted detail.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// IsDomainError reports whether err already belongs to the domain taxonomy.
// Services use it to decide whether a store error must be wrapped as
// ErrTransientStore.
func IsDomainError(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrTransientStore)
}
