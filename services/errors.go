package services

import "fmt"

// The workflow distinguishes exactly three failure kinds. Handlers map them to
// 400, 403 and 409; anything else is a server fault.

// ValidationError reports malformed or out-of-range input. Always recoverable
// by the caller.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func validationf(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// AuthorizationError means the actor is not allowed to perform the requested
// action. It carries no detail on purpose: the response never leaks which
// check failed.
type AuthorizationError struct{}

func (e *AuthorizationError) Error() string { return "forbidden" }

var ErrForbidden = &AuthorizationError{}

// StateConflictError means the order's current status does not permit the
// requested transition, or the freelancer+date slot is already taken.
type StateConflictError struct {
	Message string
}

func (e *StateConflictError) Error() string { return e.Message }

func conflictf(format string, args ...interface{}) *StateConflictError {
	return &StateConflictError{Message: fmt.Sprintf(format, args...)}
}
