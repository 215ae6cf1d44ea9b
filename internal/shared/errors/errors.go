// Package errors defines the application error type carried from domain
// code to the HTTP layer, with hub-compatible error codes.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes surfaced in the X-Error-Code response header.
const (
	CodeBadRequest       = "BadRequest"
	CodeUnauthorized     = "Unauthorized"
	CodeForbidden        = "Forbidden"
	CodeNotFound         = "NotFound"
	CodeRepoNotFound     = "RepoNotFound"
	CodeRevisionNotFound = "RevisionNotFound"
	CodeEntryNotFound    = "EntryNotFound"
	CodeUserNotFound     = "UserNotFound"
	CodeInvalidRepoID    = "InvalidRepoId"
	CodeRepoExists       = "RepoExists"
	CodeConflict         = "Conflict"
	CodeQuotaExceeded    = "QuotaExceeded"
	CodeUpstream         = "UpstreamUnavailable"
	CodeIntegrity        = "IntegrityError"
	CodeInternal         = "InternalError"
)

// Common error types.
var (
	ErrNotFound      = errors.New("resource not found")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrBadRequest    = errors.New("bad request")
	ErrConflict      = errors.New("resource conflict")
	ErrQuotaExceeded = errors.New("quota exceeded")
	ErrUpstream      = errors.New("upstream unavailable")
)

// AppError represents an application error with HTTP status and error code.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Err        error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports whether target matches this error.
func (e *AppError) Is(target error) bool {
	if t, ok := target.(*AppError); ok {
		return e.Code == t.Code
	}
	return errors.Is(e.Err, target)
}

// New creates a new application error.
func New(code string, message string, statusCode int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Err:        err,
	}
}

// Common error constructors.

// NotAuthenticated creates a 401 error.
func NotAuthenticated(message string) *AppError {
	if message == "" {
		message = "authentication required"
	}
	return &AppError{
		Code:       CodeUnauthorized,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
		Err:        ErrUnauthorized,
	}
}

// Forbidden creates a 403 error.
func Forbidden(message string) *AppError {
	if message == "" {
		message = "access denied"
	}
	return &AppError{
		Code:       CodeForbidden,
		Message:    message,
		StatusCode: http.StatusForbidden,
		Err:        ErrForbidden,
	}
}

// NotFound creates a generic 404 error.
func NotFound(resource string) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: http.StatusNotFound,
		Err:        ErrNotFound,
	}
}

// RepoNotFound creates a 404 error for a missing repository.
func RepoNotFound(repoID string) *AppError {
	return &AppError{
		Code:       CodeRepoNotFound,
		Message:    fmt.Sprintf("Repository %s not found", repoID),
		StatusCode: http.StatusNotFound,
		Err:        ErrNotFound,
	}
}

// RevisionNotFound creates a 404 error for a missing branch, tag or commit.
func RevisionNotFound(revision string) *AppError {
	return &AppError{
		Code:       CodeRevisionNotFound,
		Message:    fmt.Sprintf("Revision %s not found", revision),
		StatusCode: http.StatusNotFound,
		Err:        ErrNotFound,
	}
}

// EntryNotFound creates a 404 error for a missing file or folder.
func EntryNotFound(path string) *AppError {
	return &AppError{
		Code:       CodeEntryNotFound,
		Message:    fmt.Sprintf("Entry %s not found", path),
		StatusCode: http.StatusNotFound,
		Err:        ErrNotFound,
	}
}

// UserNotFound creates a 404 error for a missing user or organization.
func UserNotFound(name string) *AppError {
	return &AppError{
		Code:       CodeUserNotFound,
		Message:    fmt.Sprintf("User %s not found", name),
		StatusCode: http.StatusNotFound,
		Err:        ErrNotFound,
	}
}

// RepoExists creates a 409 error for a duplicate repository.
func RepoExists(repoID string) *AppError {
	return &AppError{
		Code:       CodeRepoExists,
		Message:    fmt.Sprintf("Repository %s already exists", repoID),
		StatusCode: http.StatusConflict,
		Err:        ErrConflict,
	}
}

// InvalidRepoID creates a 400 error for a malformed repository id.
func InvalidRepoID(message string) *AppError {
	return &AppError{
		Code:       CodeInvalidRepoID,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Err:        ErrBadRequest,
	}
}

// BadRequest creates a 400 error.
func BadRequest(message string) *AppError {
	return &AppError{
		Code:       CodeBadRequest,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Err:        ErrBadRequest,
	}
}

// Conflict creates a 409 error.
func Conflict(message string) *AppError {
	return &AppError{
		Code:       CodeConflict,
		Message:    message,
		StatusCode: http.StatusConflict,
		Err:        ErrConflict,
	}
}

// QuotaExceeded creates a 413 error.
func QuotaExceeded(message string) *AppError {
	return &AppError{
		Code:       CodeQuotaExceeded,
		Message:    message,
		StatusCode: http.StatusRequestEntityTooLarge,
		Err:        ErrQuotaExceeded,
	}
}

// Upstream creates a 502 error for blob or versioned store failures.
func Upstream(message string, err error) *AppError {
	if message == "" {
		message = "upstream service unavailable"
	}
	return &AppError{
		Code:       CodeUpstream,
		Message:    message,
		StatusCode: http.StatusBadGateway,
		Err:        err,
	}
}

// Integrity creates a 400 error for content that fails verification,
// such as a multipart size mismatch or a missing LFS blob at verify time.
func Integrity(message string) *AppError {
	return &AppError{
		Code:       CodeIntegrity,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Err:        ErrBadRequest,
	}
}

// Internal creates a 500 error.
func Internal(message string, err error) *AppError {
	if message == "" {
		message = "internal server error"
	}
	return &AppError{
		Code:       CodeInternal,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Err:        err,
	}
}

// WithError wraps an underlying error.
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

// GetStatusCode returns the appropriate HTTP status code for an error.
func GetStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrQuotaExceeded):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
