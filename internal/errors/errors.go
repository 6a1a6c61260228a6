package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a clipstash error code.
type ErrorCode string

const (
	ErrInvalidRequest  ErrorCode = "INVALID_REQUEST"  // 400
	ErrConfig          ErrorCode = "CONFIG"           // 400
	ErrNotFound        ErrorCode = "NOT_FOUND"        // 404
	ErrCancelled       ErrorCode = "CANCELLED"        // 499
	ErrStorageWrite    ErrorCode = "STORAGE_WRITE"    // 500
	ErrIndexCorruption ErrorCode = "INDEX_CORRUPTION" // 500
	ErrInternal        ErrorCode = "INTERNAL"         // 500
	ErrProvider        ErrorCode = "PROVIDER"         // 502
)

// ClipError represents a structured error with code, status, and details.
type ClipError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
	Err     error
}

// Error implements the error interface.
func (e *ClipError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *ClipError) Unwrap() error {
	return e.Err
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *ClipError {
	return &ClipError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewConfig creates a 400 error for a malformed settings file.
func NewConfig(path string, err error) *ClipError {
	return &ClipError{
		Code:    ErrConfig,
		Status:  400,
		Message: fmt.Sprintf("settings file %s is invalid: %v", path, err),
		Details: map[string]any{"path": path},
		Err:     err,
	}
}

// NewNotFound creates a 404 error for an item id that has no body on disk.
func NewNotFound(id string) *ClipError {
	return &ClipError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("item not found: %s", id),
		Details: map[string]any{"id": id},
	}
}

// NewCancelled creates a 499 error when the caller's context ends first.
func NewCancelled(err error) *ClipError {
	return &ClipError{
		Code:    ErrCancelled,
		Status:  499,
		Message: "operation cancelled",
		Err:     err,
	}
}

// NewStorageWrite creates a 500 error for a failed body write or index commit.
func NewStorageWrite(op string, err error) *ClipError {
	return &ClipError{
		Code:    ErrStorageWrite,
		Status:  500,
		Message: fmt.Sprintf("%s failed: %v", op, err),
		Details: map[string]any{"op": op},
		Err:     err,
	}
}

// NewIndexCorruption creates a 500 error for an unreadable or malformed index.
func NewIndexCorruption(path string, err error) *ClipError {
	return &ClipError{
		Code:    ErrIndexCorruption,
		Status:  500,
		Message: fmt.Sprintf("index %s is corrupt: %v", path, err),
		Details: map[string]any{"path": path},
		Err:     err,
	}
}

// NewProvider creates a 502 error for a failed or timed-out OCR/LLM call.
func NewProvider(provider string, err error) *ClipError {
	return &ClipError{
		Code:    ErrProvider,
		Status:  502,
		Message: fmt.Sprintf("%s provider: %v", provider, err),
		Details: map[string]any{"provider": provider},
		Err:     err,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *ClipError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &ClipError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
		Err:     err,
	}
}

// Is checks if err (or anything it wraps) is a ClipError with the given code.
func Is(err error, code ErrorCode) bool {
	var cErr *ClipError
	if stderrors.As(err, &cErr) {
		return cErr.Code == code
	}
	return false
}

// Code returns the error code carried by err, or ErrInternal for foreign errors.
func Code(err error) ErrorCode {
	var cErr *ClipError
	if stderrors.As(err, &cErr) {
		return cErr.Code
	}
	return ErrInternal
}
