package domain

import "fmt"

// ValidationError reports bad create-time input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// NotFoundError reports a lookup miss. Key names the field that was searched.
type NotFoundError struct {
	Key   string
	Value string
}

func (e *NotFoundError) Error() string {
	return "Payment not found"
}

// InvalidStateError reports a transition attempted from a non-pending state.
type InvalidStateError struct {
	PublicID string
	From     Status
	To       Status
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("Payment is not in pending status (status %s, requested %s)", e.From, e.To)
}

// ConflictError reports a write that lost a race or clashes with an existing record.
type ConflictError struct {
	ID     string
	Reason string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("payment %s conflict: %s", e.ID, e.Reason)
}

// StorageError wraps a failure of the persistence layer.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
