package auth

import (
	"context"
	"encoding/hex"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/sha3"

	"github.com/kohakuhub/server/internal/model"
	"github.com/kohakuhub/server/internal/port/outbound"
	apperr "github.com/kohakuhub/server/internal/shared/errors"
)

// DefaultPrincipalTTL bounds how long a token-hash -> user resolution may be
// served from cache after the token row changed.
const DefaultPrincipalTTL = 60 * time.Second

// Domain resolves API tokens to principals. Tokens are opaque values issued
// by the auth service; only their SHA3-512 hash is stored.
type Domain struct {
	tokens     outbound.TokenStore
	users      outbound.UserStore
	principals outbound.PrincipalCache
	cacheTTL   time.Duration
	logger     *zap.Logger
}

// NewDomain creates a new auth domain. principals may be nil when no cache
// is configured.
func NewDomain(
	tokens outbound.TokenStore,
	users outbound.UserStore,
	principals outbound.PrincipalCache,
	logger *zap.Logger,
) *Domain {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Domain{
		tokens:     tokens,
		users:      users,
		principals: principals,
		cacheTTL:   DefaultPrincipalTTL,
		logger:     logger,
	}
}

// TokenHash returns the SHA3-512 hex digest of a token value. This is the
// only form in which tokens exist at rest.
func TokenHash(token string) string {
	sum := sha3.Sum512([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Authenticate resolves a presented token to its active user.
func (d *Domain) Authenticate(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, apperr.NotAuthenticated("")
	}

	hash := TokenHash(token)

	if user, ok := d.fromCache(ctx, hash); ok {
		return user, nil
	}

	row, err := d.tokens.FindByHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, apperr.NotAuthenticated("invalid API token")
	}

	user, err := d.users.FindByID(ctx, row.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil || user.IsOrg {
		return nil, apperr.NotAuthenticated("invalid API token")
	}
	if !user.IsActive {
		return nil, apperr.Forbidden("account is disabled")
	}

	// Best-effort bookkeeping; a failure here must not fail the request.
	if err := d.tokens.Touch(ctx, row.ID, time.Now()); err != nil {
		d.logger.Debug("Token touch failed", zap.Int64("token_id", row.ID), zap.Error(err))
	}
	if d.principals != nil {
		if err := d.principals.SetUserID(ctx, hash, user.ID, d.cacheTTL); err != nil {
			d.logger.Debug("Principal cache set failed", zap.Error(err))
		}
	}

	return user, nil
}

// fromCache serves a principal from the cache, verifying the user still
// exists and is active.
func (d *Domain) fromCache(ctx context.Context, hash string) (*model.User, bool) {
	if d.principals == nil {
		return nil, false
	}

	userID, err := d.principals.GetUserID(ctx, hash)
	if err != nil {
		if !errors.Is(err, outbound.ErrCacheMiss) {
			d.logger.Debug("Principal cache get failed", zap.Error(err))
		}
		return nil, false
	}

	user, err := d.users.FindByID(ctx, userID)
	if err != nil || user == nil || !user.IsActive {
		return nil, false
	}
	return user, true
}

// WhoAmI builds the whoami-v2 document for an authenticated user.
func (d *Domain) WhoAmI(ctx context.Context, user *model.User) (*model.WhoAmI, error) {
	orgs, err := d.users.ListOrgsOf(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	out := &model.WhoAmI{
		Name:          user.Username,
		Type:          "user",
		EmailVerified: user.EmailVerified,
		Orgs:          make([]model.WhoAmIOrg, 0, len(orgs)),
		Auth: model.WhoAmIAuth{
			Type:        "access_token",
			AccessToken: model.WhoAmIToken{Role: "write"},
		},
	}
	if user.Email != nil {
		out.Email = *user.Email
	}
	for _, org := range orgs {
		out.Orgs = append(out.Orgs, model.WhoAmIOrg{Name: org.Username, Type: "org"})
	}
	return out, nil
}
