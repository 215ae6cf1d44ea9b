package middleware

import (
	"context"
	"encoding/base64"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kohakuhub/server/internal/model"
	"github.com/kohakuhub/server/internal/shared/response"
	"github.com/kohakuhub/server/internal/utils/requestctx"
)

const (
	// AuthorizationHeader is the header key for authorization.
	AuthorizationHeader = "Authorization"
	// BearerPrefix is the prefix for bearer tokens.
	BearerPrefix = "Bearer "
	// BasicPrefix is the prefix for basic auth used by git clients.
	BasicPrefix = "Basic "
	// UserKey is the context key for the authenticated user.
	UserKey = "auth_user"
)

// TokenAuthenticator resolves an opaque API token to a user.
type TokenAuthenticator interface {
	Authenticate(ctx context.Context, token string) (*model.User, error)
}

// Auth returns a middleware that resolves API tokens to users.
// Tokens arrive either as a bearer token or as the password of a
// basic auth pair, which is what git and git-lfs clients send.
// If optional is true, the middleware will not abort on missing or
// invalid tokens; handlers then see an anonymous request.
func Auth(authenticator TokenAuthenticator, optional bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ExtractToken(c)
		if token == "" {
			if !optional {
				response.Unauthorized(c, "")
				c.Abort()
				return
			}
			c.Next()
			return
		}

		user, err := authenticator.Authenticate(c.Request.Context(), token)
		if err != nil || user == nil {
			if !optional {
				response.Unauthorized(c, "invalid or expired token")
				c.Abort()
				return
			}
			c.Next()
			return
		}

		// Set user info in context
		c.Set(UserKey, user)
		c.Request = c.Request.WithContext(requestctx.WithPrincipal(c.Request.Context(), requestctx.Principal{
			UserID:   user.ID,
			Username: user.Username,
		}))

		c.Next()
	}
}

// RequireAuth returns a middleware that requires a valid token.
func RequireAuth(authenticator TokenAuthenticator) gin.HandlerFunc {
	return Auth(authenticator, false)
}

// OptionalAuth returns a middleware that resolves tokens when present.
func OptionalAuth(authenticator TokenAuthenticator) gin.HandlerFunc {
	return Auth(authenticator, true)
}

// ExtractToken extracts the API token from the Authorization header.
// Bearer tokens are returned as-is. For basic auth the password half
// of the pair is the token.
func ExtractToken(c *gin.Context) string {
	authHeader := c.GetHeader(AuthorizationHeader)
	if authHeader == "" {
		return ""
	}

	if strings.HasPrefix(authHeader, BearerPrefix) {
		return strings.TrimPrefix(authHeader, BearerPrefix)
	}

	if strings.HasPrefix(authHeader, BasicPrefix) {
		raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(authHeader, BasicPrefix))
		if err != nil {
			return ""
		}
		if _, password, found := strings.Cut(string(raw), ":"); found {
			return password
		}
	}

	return ""
}

// GetUser returns the authenticated user from context.
// Returns nil for anonymous requests.
func GetUser(c *gin.Context) *model.User {
	if val, exists := c.Get(UserKey); exists {
		if user, ok := val.(*model.User); ok {
			return user
		}
	}
	return nil
}

// GetUserID returns the authenticated user id, or 0 for anonymous requests.
func GetUserID(c *gin.Context) int64 {
	if user := GetUser(c); user != nil {
		return user.ID
	}
	return 0
}

// GetUsername returns the authenticated username, or "" for anonymous requests.
func GetUsername(c *gin.Context) string {
	if user := GetUser(c); user != nil {
		return user.Username
	}
	return ""
}

// IsAuthenticated returns true if the request carries a valid user.
func IsAuthenticated(c *gin.Context) bool {
	return GetUser(c) != nil
}
