package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidParams is returned when solve parameters fail validation.
var ErrInvalidParams = errors.New("invalid solve parameters")

// ErrFileNotFound is returned when a requested interchange file does not exist.
var ErrFileNotFound = errors.New("file not found")

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrIterationOutOfRange is returned when an iteration index does not exist in a result.
var ErrIterationOutOfRange = errors.New("iteration index out of range")

// ErrSolverUnavailable is returned when the configured solver backend cannot be reached.
var ErrSolverUnavailable = errors.New("solver unavailable")

// ValidationError represents a single field validation failure.
type ValidationError struct {
	Key    string // Field name
	Reason string // Human-readable reason for failure
	Value  any    // The value that failed validation
}

func (e *ValidationError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("field %q: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("field %q: %s (got %v)", e.Key, e.Reason, e.Value)
}

// Unwrap lets callers match any validation failure with errors.Is(err, ErrInvalidParams).
func (e *ValidationError) Unwrap() error {
	return ErrInvalidParams
}

// AggregateError represents multiple validation failures.
type AggregateError struct {
	Errors []error
}

func (e *AggregateError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	msg := fmt.Sprintf("%d validation errors:\n", len(e.Errors))
	for i, err := range e.Errors {
		msg += fmt.Sprintf("  %d. %s\n", i+1, err.Error())
	}
	return msg
}

// Unwrap exposes the individual failures to errors.Is and errors.As.
func (e *AggregateError) Unwrap() []error {
	return e.Errors
}

// ValidationErrors returns all validation errors if err is an AggregateError.
// Otherwise returns nil.
func ValidationErrors(err error) []error {
	var aggr *AggregateError
	if errors.As(err, &aggr) {
		return aggr.Errors
	}
	return nil
}
