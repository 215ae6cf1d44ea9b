package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/kohakuhub/server/internal/model"
	"github.com/kohakuhub/server/internal/port/outbound"
)

// tokenAdapter implements outbound.TokenStore.
type tokenAdapter struct {
	db *gorm.DB
}

// NewTokenAdapter creates a new token store adapter.
func NewTokenAdapter(db *gorm.DB) outbound.TokenStore {
	return &tokenAdapter{db: db}
}

func (a *tokenAdapter) FindByHash(ctx context.Context, hash string) (*model.Token, error) {
	var token model.Token
	err := a.db.WithContext(ctx).First(&token, "token_hash = ?", hash).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &token, nil
}

func (a *tokenAdapter) Touch(ctx context.Context, tokenID int64, when time.Time) error {
	return a.db.WithContext(ctx).Model(&model.Token{}).
		Where("id = ?", tokenID).
		UpdateColumn("last_used_at", when).Error
}

// Compile-time check
var _ outbound.TokenStore = (*tokenAdapter)(nil)
