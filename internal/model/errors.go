package model

import (
	"errors"
	"fmt"
)

// ErrTemplate marks description-template rendering failures. A malformed
// template or a missing context field aborts bill generation loudly rather
// than producing an empty description.
var ErrTemplate = errors.New("template render failed")

// ValidationError reports an invalid entity field. The message carries the
// underlying cause verbatim so rule and parameter errors are not swallowed.
type ValidationError struct {
	Err     error
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Field, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func validationErr(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

func validationWrap(field, message string, err error) error {
	return &ValidationError{Field: field, Message: message, Err: err}
}
