package reconstruction

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure modes the annealing chain can hit. All of
// them terminate the chain; Step never recovers locally.
var (
	// ErrDescriptorMismatch reports two trackers with differing descriptor
	// or direction sets passed to a cost function.
	ErrDescriptorMismatch = errors.New("trackers carry different descriptor sets")

	// ErrZeroBaseline reports a weighted cost factory where some descriptor
	// has zero baseline distance, which would divide by zero.
	ErrZeroBaseline = errors.New("descriptor baseline distance is zero")

	// ErrNoInterface reports an interface sampler that exhausted its retry
	// budget without finding a phase boundary.
	ErrNoInterface = errors.New("no phase interface found")

	// ErrHomogeneousGrid reports a swap proposal on a grid containing a
	// single phase, where no opposing-phase pair exists.
	ErrHomogeneousGrid = errors.New("grid is single-phase")

	// ErrRollbackDrift reports a post-rollback cost that does not match the
	// pre-proposal cost, indicating a tracker, modifier or sampler bug.
	ErrRollbackDrift = errors.New("cost changed across modify/reject cycle")
)

// Error is a reconstruction error carrying operation and component context.
type Error struct {
	// Message describes the error that occurred.
	Message string
	// Op is the operation that caused the error.
	Op string
	// Component is the component where the error occurred.
	Component string
	// Err is the underlying error that triggered this one, if any.
	Err error
}

// Error returns the string representation of the error.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var prefix string
	if e.Component != "" && e.Op != "" {
		prefix = fmt.Sprintf("%s: %s", e.Component, e.Op)
	} else if e.Component != "" {
		prefix = e.Component
	} else if e.Op != "" {
		prefix = e.Op
	}

	if e.Err != nil {
		if prefix != "" {
			return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}

	if prefix != "" {
		return fmt.Sprintf("%s: %s", prefix, e.Message)
	}
	return e.Message
}

// Unwrap returns the underlying error, if any.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// WithOperation adds operation context to the error.
func (e *Error) WithOperation(op string) *Error {
	e.Op = op
	return e
}

// WithComponent adds component context to the error.
func (e *Error) WithComponent(component string) *Error {
	e.Component = component
	return e
}

// NewError creates a new reconstruction error with the given message.
func NewError(message string) *Error {
	return &Error{Message: message}
}

// NewErrorf creates a new reconstruction error with a formatted message.
func NewErrorf(format string, args ...interface{}) *Error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}

// WrapError wraps an existing error with additional context.
// If err is nil, WrapError returns nil.
func WrapError(err error, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Message: message, Err: err}
}

// WrapErrorf wraps an existing error with additional formatted context.
// If err is nil, WrapErrorf returns nil.
func WrapErrorf(err error, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	return &Error{Message: fmt.Sprintf(format, args...), Err: err}
}
