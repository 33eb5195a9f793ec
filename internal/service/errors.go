package service

import (
	"errors"
	"fmt"
)

// Service-level sentinel errors.
var (
	// ErrUnsupportedMedia indicates the uploaded file's extension maps to
	// neither a photo nor a video format.
	ErrUnsupportedMedia = errors.New("unsupported media format")

	// ErrEmptyUpload indicates the uploaded body contained no bytes.
	ErrEmptyUpload = errors.New("upload is empty")

	// ErrUnknownTaskType indicates a task enqueue request named a type no
	// handler is registered for. Rejecting it at enqueue time beats letting
	// the executor dead-letter it later.
	ErrUnknownTaskType = errors.New("unknown task type")

	// ErrEmptyQuery indicates a search request with no query text.
	ErrEmptyQuery = errors.New("search query is empty")
)

// ServiceError wraps errors from the service layer with operation context.
type ServiceError struct {
	// Operation is the operation that failed (e.g., "ingest", "enqueue_task")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for ServiceError.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("%s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError creates a new ServiceError.
func NewServiceError(operation, message string, err error) *ServiceError {
	return &ServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
