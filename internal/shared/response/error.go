package response

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kohakuhub/server/internal/shared/errors"
)

// Error header names set on hub-compatible error responses.
const (
	ErrorCodeHeader    = "X-Error-Code"
	ErrorMessageHeader = "X-Error-Message"
)

// ErrorResponse represents a standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// WriteError maps an error to a hub-compatible error response.
// Application errors carry their own status and code; anything else
// becomes a 500 with the request id as correlation identifier.
func WriteError(c *gin.Context, err error) {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		c.Header(ErrorCodeHeader, appErr.Code)
		c.Header(ErrorMessageHeader, appErr.Message)
		c.JSON(appErr.StatusCode, ErrorResponse{Error: appErr.Message})
		return
	}

	status := errors.GetStatusCode(err)
	if status >= http.StatusInternalServerError {
		msg := "internal server error"
		if requestID := c.GetString("request_id"); requestID != "" {
			msg += " (request " + requestID + ")"
		}
		c.Header(ErrorCodeHeader, errors.CodeInternal)
		c.JSON(status, ErrorResponse{Error: msg})
		return
	}
	c.JSON(status, ErrorResponse{Error: err.Error()})
}

// Error sends an error response with the given status code.
func Error(c *gin.Context, status int, message string) {
	c.JSON(status, ErrorResponse{Error: message})
}

// ErrorWithCode sends an error response and sets the X-Error-Code header.
func ErrorWithCode(c *gin.Context, status int, code, message string) {
	c.Header(ErrorCodeHeader, code)
	c.Header(ErrorMessageHeader, message)
	c.JSON(status, ErrorResponse{Error: message})
}

// ErrorWithDetails sends an error response with additional details.
func ErrorWithDetails(c *gin.Context, status int, message string, details any) {
	c.JSON(status, ErrorResponse{Error: message, Details: details})
}

// BadRequest sends a 400 Bad Request response.
func BadRequest(c *gin.Context, message string) {
	ErrorWithCode(c, http.StatusBadRequest, errors.CodeBadRequest, message)
}

// Unauthorized sends a 401 Unauthorized response.
func Unauthorized(c *gin.Context, message string) {
	if message == "" {
		message = "authentication required"
	}
	ErrorWithCode(c, http.StatusUnauthorized, errors.CodeUnauthorized, message)
}

// Forbidden sends a 403 Forbidden response.
func Forbidden(c *gin.Context, message string) {
	if message == "" {
		message = "access denied"
	}
	ErrorWithCode(c, http.StatusForbidden, errors.CodeForbidden, message)
}

// NotFound sends a 404 Not Found response.
func NotFound(c *gin.Context, message string) {
	if message == "" {
		message = "not found"
	}
	ErrorWithCode(c, http.StatusNotFound, errors.CodeNotFound, message)
}

// Conflict sends a 409 Conflict response.
func Conflict(c *gin.Context, message string) {
	ErrorWithCode(c, http.StatusConflict, errors.CodeConflict, message)
}

// InternalError sends a 500 Internal Server Error response.
func InternalError(c *gin.Context, message string) {
	if message == "" {
		message = "internal server error"
	}
	ErrorWithCode(c, http.StatusInternalServerError, errors.CodeInternal, message)
}
