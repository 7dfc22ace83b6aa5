package property

import (
	"errors"
	"fmt"
)

// Sentinel errors for property registration and access.
var (
	ErrContextBinding    = errors.New("context binding failed")
	ErrEmptyPropertyName = errors.New("property name is empty")
	ErrPropertyExists    = errors.New("property already registered")
	ErrInvalidValue      = errors.New("stored property value is not a mapping")
)

// ContextBindingError reports a turn that cannot be resolved against a
// Table, such as a nil turn or one without conversation identity. It matches
// ErrContextBinding under errors.Is.
type ContextBindingError struct {
	Reason string
}

func (e *ContextBindingError) Error() string {
	return fmt.Sprintf("%v: %s", ErrContextBinding, e.Reason)
}

func (e *ContextBindingError) Is(target error) bool {
	return target == ErrContextBinding
}

// PersistenceCommitError reports a failed write of a conversation document.
// Working memory keeps the values that failed to persist.
type PersistenceCommitError struct {
	Key string
	Err error
}

func (e *PersistenceCommitError) Error() string {
	return fmt.Sprintf("commit conversation state %s: %v", e.Key, e.Err)
}

func (e *PersistenceCommitError) Unwrap() error {
	return e.Err
}
