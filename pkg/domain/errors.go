package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the model layer. Callers match them with errors.Is;
// every failure returned by the stores wraps exactly one of these.
var (
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrParentNotFound       = errors.New("parent not found")
	ErrCodeSpaceExhausted   = errors.New("code space exhausted")
	ErrInvalidAttributeType = errors.New("invalid attribute type")
	ErrInvalidConnection    = errors.New("invalid connection")
	ErrPersistenceFailed    = errors.New("persistence failed")
	ErrUnknownBehavior      = errors.New("unknown behavior")
)

// PersistenceError reports a failed load or save of one bucket. It matches
// both ErrPersistenceFailed and the underlying cause.
type PersistenceError struct {
	Bucket string
	Op     string
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Bucket, e.Err)
}

// Unwrap exposes the cause alongside ErrPersistenceFailed.
func (e *PersistenceError) Unwrap() []error {
	return []error{ErrPersistenceFailed, e.Err}
}
