package services

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a ServiceError for the HTTP layer
type ErrorKind string

const (
	ErrKindNotFound        ErrorKind = "NOT_FOUND"
	ErrKindConflict        ErrorKind = "CONFLICT"
	ErrKindInvalidArgument ErrorKind = "INVALID_ARGUMENT"
	ErrKindInternal        ErrorKind = "INTERNAL"
)

// ServiceError is returned by every inventory service. Message is safe to
// show to clients; Err carries the underlying cause for logs.
type ServiceError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func newNotFound(format string, args ...interface{}) error {
	return &ServiceError{Kind: ErrKindNotFound, Message: fmt.Sprintf(format, args...)}
}

func newConflict(format string, args ...interface{}) error {
	return &ServiceError{Kind: ErrKindConflict, Message: fmt.Sprintf(format, args...)}
}

func newInvalid(format string, args ...interface{}) error {
	return &ServiceError{Kind: ErrKindInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

// internalError wraps an unexpected error. Errors that are already typed
// pass through unchanged.
func internalError(message string, err error) error {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return err
	}
	var capErr *CapacityError
	if errors.As(err, &capErr) {
		return err
	}
	return &ServiceError{Kind: ErrKindInternal, Message: message, Err: err}
}

// CapacityError reports that fewer units are free than requested
type CapacityError struct {
	Available int
	Requested int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("only %d available, requested %d", e.Available, e.Requested)
}

// KindOf returns the kind of err. Untyped errors are internal.
func KindOf(err error) ErrorKind {
	var capErr *CapacityError
	if errors.As(err, &capErr) {
		return ErrKindConflict
	}
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.Kind
	}
	return ErrKindInternal
}
