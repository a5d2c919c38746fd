package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	CodeValidation       ErrorCode = "VALIDATION_ERROR"
	CodeNotFound         ErrorCode = "NOT_FOUND"
	CodeForbidden        ErrorCode = "FORBIDDEN"
	CodeInvalidState     ErrorCode = "INVALID_STATE"
	CodeCapacityExceeded ErrorCode = "CAPACITY_EXCEEDED"
	CodeAlreadyJoined    ErrorCode = "ALREADY_JOINED"
	CodeNotEnrolled      ErrorCode = "NOT_ENROLLED"
	CodeInternal         ErrorCode = "INTERNAL"
)

// AppError is a caller-facing failure. Business rule violations are never
// retried; only Internal wraps infrastructure faults.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

// Is matches any *AppError carrying the same code, so callers can write
// errors.Is(err, apperrors.NotFound("")).
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

func Validation(message string) *AppError { return New(CodeValidation, message) }

func NotFound(message string) *AppError { return New(CodeNotFound, message) }

func Forbidden(message string) *AppError { return New(CodeForbidden, message) }

func InvalidState(message string) *AppError { return New(CodeInvalidState, message) }

func CapacityExceeded(message string) *AppError { return New(CodeCapacityExceeded, message) }

func AlreadyJoined(message string) *AppError { return New(CodeAlreadyJoined, message) }

func NotEnrolled(message string) *AppError { return New(CodeNotEnrolled, message) }

func Internal(err error, message string) *AppError { return Wrap(err, CodeInternal, message) }

// CodeOf extracts the code of err, defaulting to CodeInternal for foreign errors.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// HTTPStatus maps an error code onto the status the HTTP layer responds with.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeForbidden:
		return http.StatusForbidden
	case CodeValidation, CodeInvalidState, CodeCapacityExceeded, CodeAlreadyJoined, CodeNotEnrolled:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
