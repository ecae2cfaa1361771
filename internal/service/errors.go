package service

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials is returned on any login failure so a caller
	// cannot tell whether the email or the password was wrong.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrNotFound covers both a missing record and a record owned by
	// another user; the two outcomes are deliberately indistinguishable.
	ErrNotFound = errors.New("not found")
)

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
