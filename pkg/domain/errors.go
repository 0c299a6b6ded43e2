package domain

import "fmt"

// ValidationError reports a caller-supplied record that cannot be accepted.
// No state is changed when it is returned.
type ValidationError struct {
	Entity EntityType
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s %s", e.Entity, e.Field, e.Reason)
}

// PersistenceError wraps an I/O failure while loading or saving the document.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// WrapPersistence returns nil for a nil err and a *PersistenceError otherwise.
// An error that already is a PersistenceError is returned unchanged.
func WrapPersistence(op string, err error) error {
	if err == nil {
		return nil
	}
	if pe, ok := err.(*PersistenceError); ok {
		return pe
	}
	return &PersistenceError{Op: op, Err: err}
}
