// Package validation distinguishes input errors, caught before any store
// call, from errors the external store returned. The API layer maps the
// former to 400 responses and passes the latter through verbatim.
package validation

import (
	"errors"
	"fmt"
)

// Error marks a request rejected before reaching the store.
type Error struct {
	msg string
}

func (e *Error) Error() string { return e.msg }

// Errorf builds a validation error.
func Errorf(format string, args ...any) error {
	return &Error{msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err originated from input validation.
func IsValidation(err error) bool {
	var v *Error
	return errors.As(err, &v)
}
