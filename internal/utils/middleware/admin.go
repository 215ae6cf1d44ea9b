package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"
	"github.com/kohakuhub/server/internal/shared/response"
	"golang.org/x/crypto/sha3"
)

// AdminTokenHeader carries the admin credential.
const AdminTokenHeader = "X-Admin-Token"

// AdminAuth returns a middleware that gates the admin API behind a
// static token. The comparison runs over SHA3-512 digests so timing
// reveals nothing about the configured token.
func AdminAuth(enabled bool, adminToken string) gin.HandlerFunc {
	want := sha3.Sum512([]byte(adminToken))

	return func(c *gin.Context) {
		if !enabled {
			response.NotFound(c, "admin API disabled")
			c.Abort()
			return
		}

		got := sha3.Sum512([]byte(c.GetHeader(AdminTokenHeader)))
		if adminToken == "" || subtle.ConstantTimeCompare(want[:], got[:]) != 1 {
			response.Forbidden(c, "admin token required")
			c.Abort()
			return
		}

		c.Next()
	}
}
