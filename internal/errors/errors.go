// Package errors provides error code definitions shared across taskdock.
package errors

import "fmt"

// ErrorCode identifies a class of failure.
type ErrorCode string

const (
	// General errors
	ErrInternal   ErrorCode = "INTERNAL_ERROR"
	ErrInvalid    ErrorCode = "INVALID_INPUT"
	ErrNotFound   ErrorCode = "NOT_FOUND"
	ErrValidation ErrorCode = "VALIDATION_ERROR"

	// Storage errors
	ErrDatabase  ErrorCode = "DATABASE_ERROR"
	ErrMigration ErrorCode = "MIGRATION_FAILED"

	// Task errors
	ErrTaskNotFound ErrorCode = "TASK_NOT_FOUND"
	ErrTaskInvalid  ErrorCode = "TASK_INVALID"

	// Sync errors
	ErrSyncUnreachable ErrorCode = "SYNC_UNREACHABLE"
	ErrSyncTransport   ErrorCode = "SYNC_TRANSPORT_FAILED"
	ErrSyncRejected    ErrorCode = "SYNC_ITEM_REJECTED"
	ErrSyncMalformed   ErrorCode = "SYNC_MALFORMED_RESPONSE"
	ErrSyncPermanent   ErrorCode = "SYNC_PERMANENT_FAILURE"
	ErrSyncInProgress  ErrorCode = "SYNC_IN_PROGRESS"
	ErrQueueNotFound   ErrorCode = "QUEUE_ITEM_NOT_FOUND"
)

// AppError represents an application error with code and message.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an error code.
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Is checks if an error carries a specific code.
func Is(err error, code ErrorCode) bool {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code == code
	}
	return false
}
