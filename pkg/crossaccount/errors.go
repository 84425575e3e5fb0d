package crossaccount

import (
	"errors"
	"fmt"
)

// ErrorCategory categorizes errors for handling and reporting.
type ErrorCategory string

const (
	// ErrCategoryValidation indicates a malformed definition entry or
	// invalid input. Fatal to the current file's processing.
	ErrCategoryValidation ErrorCategory = "validation"
	// ErrCategoryNotFound indicates a missing registry row or remote
	// resource. On delete paths this is treated as success.
	ErrCategoryNotFound ErrorCategory = "not_found"
	// ErrCategoryRemote indicates an identity, storage or pub/sub API
	// failure. Surfaced to the invoking infrastructure; redelivery is the
	// recovery mechanism.
	ErrCategoryRemote ErrorCategory = "remote"
	// ErrCategoryConflict indicates a resource conflict.
	ErrCategoryConflict ErrorCategory = "conflict"
	// ErrCategoryInternal indicates a bug or unexpected local failure.
	ErrCategoryInternal ErrorCategory = "internal"
)

// Error is a structured error with category and resource context.
type Error struct {
	// Category classifies the error type.
	Category ErrorCategory

	// Message is a human-readable error message.
	Message string

	// Operation is the operation that failed.
	Operation string

	// ResourceType is the type of resource involved.
	ResourceType string

	// ResourceID is the ID of the resource involved.
	ResourceID string

	// Cause is the underlying error.
	Cause error

	// Retryable indicates whether redelivery can succeed.
	Retryable bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Category, e.Message)
	if e.ResourceType != "" {
		msg = fmt.Sprintf("[%s] %s (%s %s)", e.Category, e.Message, e.ResourceType, e.ResourceID)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is checks if the target error matches this error's category.
func (e *Error) Is(target error) bool {
	var xerr *Error
	if errors.As(target, &xerr) {
		return e.Category == xerr.Category
	}
	return false
}

// NewError creates a new Error.
func NewError(category ErrorCategory, message string) *Error {
	return &Error{
		Category: category,
		Message:  message,
	}
}

// WithOperation sets the operation.
func (e *Error) WithOperation(op string) *Error {
	e.Operation = op
	return e
}

// WithResource sets the resource type and ID.
func (e *Error) WithResource(resourceType, resourceID string) *Error {
	e.ResourceType = resourceType
	e.ResourceID = resourceID
	return e
}

// WithCause sets the underlying error.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// Convenience constructors for common error types

// ErrValidation creates a validation error.
func ErrValidation(message string) *Error {
	return NewError(ErrCategoryValidation, message)
}

// ErrNotFound creates a not found error.
func ErrNotFound(resourceType, resourceID string) *Error {
	return NewError(ErrCategoryNotFound, fmt.Sprintf("%s not found: %s", resourceType, resourceID)).
		WithResource(resourceType, resourceID)
}

// ErrRemote creates a remote-system error.
func ErrRemote(message string) *Error {
	return NewError(ErrCategoryRemote, message).WithRetryable(true)
}

// ErrConflict creates a conflict error.
func ErrConflict(resourceType, resourceID string) *Error {
	return NewError(ErrCategoryConflict, fmt.Sprintf("%s already exists: %s", resourceType, resourceID)).
		WithResource(resourceType, resourceID)
}

// ErrInternal creates an internal error.
func ErrInternal(message string) *Error {
	return NewError(ErrCategoryInternal, message)
}

// IsCategory checks if an error is of a specific category.
func IsCategory(err error, category ErrorCategory) bool {
	var xerr *Error
	if errors.As(err, &xerr) {
		return xerr.Category == category
	}
	return false
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool {
	return IsCategory(err, ErrCategoryNotFound)
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var xerr *Error
	if errors.As(err, &xerr) {
		return xerr.Retryable
	}
	return false
}
