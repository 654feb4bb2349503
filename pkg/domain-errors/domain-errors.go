package domainerrors

import "errors"

// Code represents a pipeline error category independent of transport layer.
// These codes describe what went wrong in business terms, not HTTP terms.
type Code string

const (
	// CodeAuth covers cluster authentication failures: bad key or cluster,
	// malformed auth response, or a credential rejected by the API.
	CodeAuth Code = "auth_failed"
	// CodeAPI covers any non-2xx or malformed body outside authentication.
	CodeAPI Code = "api_error"
	// CodeTimeout is returned when a report job never becomes ready within
	// the poll ceiling.
	CodeTimeout Code = "timeout"
	// CodeValidation covers bad request parameters rejected before any
	// network call (invalid date ranges, empty company selection).
	CodeValidation Code = "validation_failed"

	// CodeConflict is returned when an operation is valid but the target is
	// in the wrong state for it, such as exporting a run with no bookings.
	CodeConflict Code = "conflict"

	CodeNotFound Code = "not_found"
	CodeInternal Code = "internal_error"
)

// Error wraps domain or infrastructure failures with a stable code.
// It is transport-agnostic and can be used across client, collector,
// and aggregation layers.
type Error struct {
	Code    Code
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Code)
}

// Unwrap implements error unwrapping for error chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is enables errors.Is() to match errors by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new domain error with the given code and message.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap creates a new domain error wrapping an existing error.
// If the wrapped error is already a domain error, the original code is preserved.
func Wrap(err error, code Code, msg string) error {
	var existing *Error
	if errors.As(err, &existing) {
		return &Error{Code: existing.Code, Message: msg, Err: err}
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// HasCode checks if an error is a domain error with the given code.
func HasCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
