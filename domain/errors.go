package domain

import "fmt"

// ValidationError rejects user input; callers should surface it so the action
// can be blocked (for example, keeping a creation form open).
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError indicates a stale or unknown task or column reference.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// PersistenceError wraps a failure against the durable board slot.
type PersistenceError struct {
	Op   string
	Slot string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s on slot %s: %v", e.Op, e.Slot, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// TaskNotFound builds the NotFoundError used for missing tasks.
func TaskNotFound(id string) error { return &NotFoundError{Kind: "task", ID: id} }

// UnknownColumn builds the ValidationError used for column ids outside the fixed set.
func UnknownColumn(id ColumnID) error {
	return &ValidationError{Field: "column", Reason: fmt.Sprintf("unknown column %q", id)}
}
