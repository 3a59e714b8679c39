package action

import (
	"errors"
	"fmt"
)

// MissingFieldError reports that a field required by an action kind's
// contract is absent from the payload. It is fatal for the single action
// only; callers are expected to log it and continue with the next action.
type MissingFieldError struct {
	// Kind is the action kind whose contract was violated.
	Kind Kind

	// Field is the dotted path of the missing field (e.g. "data.card.id").
	Field string
}

// Error implements the error interface.
func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s: missing field %s", e.Kind, e.Field)
}

// UnrecognizedShapeError reports a payload that has no usable kind tag.
type UnrecognizedShapeError struct {
	Reason string
}

// Error implements the error interface.
func (e *UnrecognizedShapeError) Error() string {
	return fmt.Sprintf("unrecognized action shape: %s", e.Reason)
}

// IsMissingField returns true if err is or wraps a MissingFieldError.
func IsMissingField(err error) bool {
	var mf *MissingFieldError
	return errors.As(err, &mf)
}

// IsUnrecognizedShape returns true if err is or wraps an UnrecognizedShapeError.
func IsUnrecognizedShape(err error) bool {
	var us *UnrecognizedShapeError
	return errors.As(err, &us)
}

func missing(kind Kind, field string) *MissingFieldError {
	return &MissingFieldError{Kind: kind, Field: field}
}
