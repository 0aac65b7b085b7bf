package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrPermissionDenied = errors.New("permission denied")
	ErrValidation       = errors.New("validation failed")
	ErrInvalidRole      = errors.New("invalid role")
	ErrUnauthenticated  = errors.New("unauthenticated")
)

// Validation returns an error wrapping ErrValidation with a human-readable detail.
// The detail is safe to show to API callers.
func Validation(format string, args ...any) error {
	return &detailError{kind: ErrValidation, detail: fmt.Sprintf(format, args...)}
}

// Forbidden returns an error wrapping ErrPermissionDenied with a human-readable detail.
func Forbidden(format string, args ...any) error {
	return &detailError{kind: ErrPermissionDenied, detail: fmt.Sprintf(format, args...)}
}

// Detail returns the caller-facing detail attached by Validation or Forbidden,
// or an empty string for any other error.
func Detail(err error) string {
	var de *detailError
	if errors.As(err, &de) {
		return de.detail
	}
	return ""
}

type detailError struct {
	kind   error
	detail string
}

func (e *detailError) Error() string {
	return e.kind.Error() + ": " + e.detail
}

func (e *detailError) Unwrap() error {
	return e.kind
}
