package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/kohakuhub/server/internal/model"
	"github.com/kohakuhub/server/internal/port/outbound"
)

// stagingAdapter implements outbound.StagingStore.
type stagingAdapter struct {
	db *gorm.DB
}

// NewStagingAdapter creates a new staging upload store adapter.
func NewStagingAdapter(db *gorm.DB) outbound.StagingStore {
	return &stagingAdapter{db: db}
}

func (a *stagingAdapter) Create(ctx context.Context, upload *model.StagingUpload) error {
	return a.db.WithContext(ctx).Create(upload).Error
}

func (a *stagingAdapter) FindByUploadID(ctx context.Context, uploadID string) (*model.StagingUpload, error) {
	var upload model.StagingUpload
	err := a.db.WithContext(ctx).First(&upload, "upload_id = ?", uploadID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &upload, nil
}

func (a *stagingAdapter) Delete(ctx context.Context, uploadID string) error {
	return a.db.WithContext(ctx).
		Where("upload_id = ?", uploadID).
		Delete(&model.StagingUpload{}).Error
}

func (a *stagingAdapter) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res := a.db.WithContext(ctx).
		Where("created_at < ?", before).
		Delete(&model.StagingUpload{})
	return res.RowsAffected, res.Error
}

// Compile-time check
var _ outbound.StagingStore = (*stagingAdapter)(nil)
