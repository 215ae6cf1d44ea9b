package middleware

import (
	"context"

	"github.com/kohakuhub/server/internal/model"
)

// AuthenticatorFunc adapts a plain function to the TokenAuthenticator
// interface, used to plug in auth.Domain.Authenticate.
type AuthenticatorFunc func(ctx context.Context, token string) (*model.User, error)

// Authenticate implements TokenAuthenticator.
func (f AuthenticatorFunc) Authenticate(ctx context.Context, token string) (*model.User, error) {
	return f(ctx, token)
}

// Compile-time check
var _ TokenAuthenticator = (AuthenticatorFunc)(nil)
