package utils

import (
	"errors"
	"fmt"
)

type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Origin  error  `json:"-"` // Original error that caused this error, if any
}

func (appErr *AppError) Error() string {
	if appErr.Origin != nil {
		return appErr.Message + ": " + appErr.Origin.Error()
	}
	return appErr.Message
}

func (appErr *AppError) Unwrap() error {
	return appErr.Origin
}

// Standard error codes for the application
const (
	// Resource errors
	ErrNotFound     = "NOT_FOUND"
	ErrInvalidInput = "INVALID_INPUT"

	// Content validation errors
	ErrEmptyContent   = "EMPTY_CONTENT"
	ErrContentTooLong = "CONTENT_TOO_LONG"

	// Authentication/Authorization errors
	ErrUnauthorized   = "UNAUTHORIZED"
	ErrForbidden      = "FORBIDDEN" // Authenticated but not the owner
	ErrNotParticipant = "NOT_PARTICIPANT"
	ErrInvalidToken   = "INVALID_TOKEN"

	// Actor communication errors
	ErrActorTimeout = "ACTOR_TIMEOUT"

	// Persistence errors
	ErrTransientStore  = "TRANSIENT_STORE"
	ErrVersionConflict = "VERSION_CONFLICT"
)

// Error creation helper functions
func NewAppError(code string, message string, originalErr error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Origin:  originalErr,
	}
}

func NewNotFoundError(what string) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: what + " not found",
	}
}

func NewNotParticipantError() *AppError {
	return &AppError{
		Code:    ErrNotParticipant,
		Message: "user is not a participant in this conversation",
	}
}

func NewForbiddenError(reason string) *AppError {
	return &AppError{
		Code:    ErrForbidden,
		Message: reason,
	}
}

func NewUnauthorizedError(reason string) *AppError {
	return &AppError{
		Code:    ErrUnauthorized,
		Message: "Unauthorized: " + reason,
	}
}

func NewContentTooLongError(limit int) *AppError {
	return &AppError{
		Code:    ErrContentTooLong,
		Message: fmt.Sprintf("message exceeds %d characters", limit),
	}
}

func NewTransientStoreError(operation string, err error) *AppError {
	return &AppError{
		Code:    ErrTransientStore,
		Message: "store unavailable during " + operation,
		Origin:  err,
	}
}

func NewActorTimeoutError(actorName string) *AppError {
	return &AppError{
		Code:    ErrActorTimeout,
		Message: "Actor communication timeout: " + actorName,
	}
}

// IsErrorCode reports whether err, or anything it wraps, is an AppError with code.
func IsErrorCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// IsValidationError groups the content and input errors surfaced as ValidationError.
func IsValidationError(err error) bool {
	return IsErrorCode(err, ErrInvalidInput) ||
		IsErrorCode(err, ErrEmptyContent) ||
		IsErrorCode(err, ErrContentTooLong)
}

// AsAppError returns err as an AppError, wrapping unknown errors as transient store failures.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return NewAppError(ErrTransientStore, "unexpected failure", err)
}

// AppErrorToHTTPStatus converts an AppError code to an HTTP status code.
func AppErrorToHTTPStatus(errorCode string) int {
	switch errorCode {
	case ErrNotFound:
		return 404 // http.StatusNotFound
	case ErrInvalidInput, ErrEmptyContent, ErrContentTooLong:
		return 400 // http.StatusBadRequest
	case ErrUnauthorized, ErrInvalidToken:
		return 401 // http.StatusUnauthorized
	case ErrForbidden, ErrNotParticipant:
		return 403 // http.StatusForbidden
	case ErrVersionConflict:
		return 409 // http.StatusConflict
	case ErrTransientStore:
		return 503 // http.StatusServiceUnavailable
	case ErrActorTimeout:
		return 504 // http.StatusGatewayTimeout
	default:
		return 500 // http.StatusInternalServerError for unknown errors
	}
}
