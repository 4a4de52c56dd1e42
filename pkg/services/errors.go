// Package services provides standardized error types for service layer
// operations.
package services

import (
	"errors"
	"fmt"
)

// Business logic errors. These indicate client errors (4xx responses).
var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrTitleRequired  = errors.New("workflow title is required")
	ErrWorkflowNil    = errors.New("workflow cannot be nil")
	ErrEmptyWorkflow  = errors.New("workflow must have at least one node")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a validation ServiceError.
func NewValidationError(op string, err error) *ServiceError {
	return &ServiceError{Op: op, Err: err}
}

// IsValidationError checks whether an error is one of the client-error
// sentinels.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrTitleRequired) ||
		errors.Is(err, ErrWorkflowNil) ||
		errors.Is(err, ErrEmptyWorkflow)
}
