package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kohakuhub/server/internal/utils/requestctx"
)

const (
	// RequestIDHeader carries the request id on requests and responses.
	// Error reports from hub clients quote it, so it is always echoed.
	RequestIDHeader = "X-Request-ID"
	// TraceIDHeader is sent by huggingface_hub clients when no explicit
	// request id is set. It is accepted as a fallback so client-side and
	// server-side logs correlate.
	TraceIDHeader = "X-Amzn-Trace-Id"
	// RequestIDKey is the gin context key for the request id.
	RequestIDKey = "request_id"

	maxRequestIDLen = 128
)

// RequestID assigns every request an id: the client's X-Request-ID when
// present, its trace id otherwise, a fresh uuid as the last resort.
// Oversized or non-printable client values are replaced, not trusted.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := sanitizeRequestID(c.GetHeader(RequestIDHeader))
		if requestID == "" {
			requestID = sanitizeRequestID(c.GetHeader(TraceIDHeader))
		}
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set(RequestIDKey, requestID)
		c.Header(RequestIDHeader, requestID)
		c.Request = c.Request.WithContext(requestctx.WithRequestID(c.Request.Context(), requestID))

		c.Next()
	}
}

// GetRequestID returns the request id from the gin context.
func GetRequestID(c *gin.Context) string {
	if id, exists := c.Get(RequestIDKey); exists {
		return id.(string)
	}
	return ""
}

func sanitizeRequestID(id string) string {
	if id == "" || len(id) > maxRequestIDLen {
		return ""
	}
	for i := 0; i < len(id); i++ {
		ch := id[i]
		if ch <= 0x20 || ch >= 0x7f {
			return ""
		}
	}
	return id
}
