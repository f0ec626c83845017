package relay

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the store holds no matching row.
	ErrNotFound = errors.New("no messages found")
	// ErrInvalidField is wrapped by FieldError for values of the wrong type or
	// out of the column range.
	ErrInvalidField = errors.New("invalid field")

	errTrailingData = errors.New("data after the JSON value")
	errNotObject    = errors.New("body is not a JSON object")
)

// FieldError reports a request field that cannot be stored.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *FieldError) Unwrap() error {
	return ErrInvalidField
}
