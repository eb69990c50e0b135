package fault

import "fmt"

// The four error kinds every store operation can return. All of them are
// plain values: callers match with errors.As and keep going. None of them
// leaves stored state partially mutated, and PersistenceError in particular
// does not roll back the in-memory change it reports on.

// ValidationError marks malformed input to a creating or rating operation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewValidation builds a ValidationError for a single field.
func NewValidation(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// InvalidTransitionError marks an operation invoked against a request that
// is not in the required source state. The request is left untouched.
type InvalidTransitionError struct {
	RequestID string
	From      string
	Op        string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("request %s: cannot %s from status %s", e.RequestID, e.Op, e.From)
}

// NotFoundError marks a reference to an id absent from the owning collection.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// PersistenceError reports that durable storage rejected a write. The
// in-memory mutation it accompanies has already been applied and stands;
// the error exists for observability and retry, not for rollback.
type PersistenceError struct {
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
