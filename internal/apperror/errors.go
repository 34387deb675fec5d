// Package apperror defines the domain error taxonomy surfaced to API callers.
package apperror

import "fmt"

// ValidationError reports a missing or malformed input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// NotFoundError reports a resource that does not exist or is not owned by the caller.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// InvalidStateError reports an operation the current state does not allow,
// such as checking out an empty cart.
type InvalidStateError struct {
	Reason string
}

func (e *InvalidStateError) Error() string {
	return e.Reason
}

// InvalidTransitionError reports an order status change outside the transition table.
type InvalidTransitionError struct {
	OrderID   string
	Current   string
	Requested string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("order %s cannot transition from %s to %s", e.OrderID, e.Current, e.Requested)
}

// ConflictError reports a write that lost a race against a concurrent writer.
// Current holds the canonical state observed after the race, when known.
type ConflictError struct {
	Resource string
	ID       string
	Current  string
	Err      error
}

func (e *ConflictError) Error() string {
	if e.Current != "" {
		return fmt.Sprintf("%s %s was modified concurrently (current status: %s)", e.Resource, e.ID, e.Current)
	}
	return fmt.Sprintf("%s %s was modified concurrently", e.Resource, e.ID)
}

func (e *ConflictError) Unwrap() error { return e.Err }
