package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/kohakuhub/server/internal/model"
	"github.com/kohakuhub/server/internal/port/outbound"
)

// userAdapter implements outbound.UserStore.
type userAdapter struct {
	db *gorm.DB
}

// NewUserAdapter creates a new user store adapter.
func NewUserAdapter(db *gorm.DB) outbound.UserStore {
	return &userAdapter{db: db}
}

func (a *userAdapter) Create(ctx context.Context, user *model.User) error {
	return a.db.WithContext(ctx).Create(user).Error
}

func (a *userAdapter) Update(ctx context.Context, user *model.User) error {
	return a.db.WithContext(ctx).Save(user).Error
}

func (a *userAdapter) FindByID(ctx context.Context, id int64) (*model.User, error) {
	var user model.User
	err := a.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (a *userAdapter) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	err := a.db.WithContext(ctx).First(&user, "username = ?", username).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (a *userAdapter) FindByNormalizedName(ctx context.Context, normalized string) (*model.User, error) {
	var user model.User
	err := a.db.WithContext(ctx).First(&user, "normalized_name = ?", normalized).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (a *userAdapter) AddUsedBytes(ctx context.Context, userID int64, private bool, delta int64) error {
	column := usedBytesColumn(private)
	return a.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", userID).
		UpdateColumn(column, gorm.Expr("GREATEST("+column+" + ?, 0)", delta)).Error
}

func (a *userAdapter) SetUsedBytes(ctx context.Context, userID int64, private bool, used int64) error {
	return a.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", userID).
		UpdateColumn(usedBytesColumn(private), used).Error
}

func (a *userAdapter) OrgRole(ctx context.Context, userID, orgID int64) (model.OrgRole, bool, error) {
	var membership model.UserOrganization
	err := a.db.WithContext(ctx).
		Where("user_id = ? AND organization_id = ?", userID, orgID).
		First(&membership).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return membership.Role, true, nil
}

func (a *userAdapter) ListOrgsOf(ctx context.Context, userID int64) ([]*model.User, error) {
	var orgs []*model.User
	err := a.db.WithContext(ctx).
		Joins("JOIN user_organizations ON user_organizations.organization_id = users.id").
		Where("user_organizations.user_id = ?", userID).
		Order("users.username ASC").
		Find(&orgs).Error
	return orgs, err
}

func (a *userAdapter) Counts(ctx context.Context) (int64, int64, error) {
	var users, orgs int64
	if err := a.db.WithContext(ctx).Model(&model.User{}).Where("is_org = ?", false).Count(&users).Error; err != nil {
		return 0, 0, err
	}
	if err := a.db.WithContext(ctx).Model(&model.User{}).Where("is_org = ?", true).Count(&orgs).Error; err != nil {
		return 0, 0, err
	}
	return users, orgs, nil
}

func usedBytesColumn(private bool) string {
	if private {
		return "private_used_bytes"
	}
	return "public_used_bytes"
}

// Compile-time check
var _ outbound.UserStore = (*userAdapter)(nil)
