package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kohakuhub/server/internal/model"
	"github.com/kohakuhub/server/internal/port/outbound"
)

// fileAdapter implements outbound.FileStore.
type fileAdapter struct {
	db *gorm.DB
}

// NewFileAdapter creates a new file store adapter.
func NewFileAdapter(db *gorm.DB) outbound.FileStore {
	return &fileAdapter{db: db}
}

func (a *fileAdapter) Upsert(ctx context.Context, file *model.File) error {
	return a.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "repository_id"}, {Name: "path_in_repo"}},
			DoUpdates: clause.AssignmentColumns([]string{"size", "sha256", "lfs", "is_deleted", "owner_id", "updated_at"}),
		}).
		Create(file).Error
}

func (a *fileAdapter) Find(ctx context.Context, repoID int64, path string) (*model.File, error) {
	var file model.File
	err := a.db.WithContext(ctx).
		Where("repository_id = ? AND path_in_repo = ?", repoID, path).
		First(&file).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &file, nil
}

func (a *fileAdapter) FindActiveLFS(ctx context.Context, sha256 string, size int64) (*model.File, error) {
	var file model.File
	err := a.db.WithContext(ctx).
		Where("sha256 = ? AND size = ? AND lfs = ? AND is_deleted = ?", sha256, size, true, false).
		First(&file).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &file, nil
}

func (a *fileAdapter) FindActiveLFSInRepo(ctx context.Context, repoID int64, sha256 string) (*model.File, error) {
	var file model.File
	err := a.db.WithContext(ctx).
		Where("repository_id = ? AND sha256 = ? AND lfs = ? AND is_deleted = ?", repoID, sha256, true, false).
		First(&file).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &file, nil
}

func (a *fileAdapter) CountActiveLFSRefs(ctx context.Context, sha256 string) (int64, error) {
	var count int64
	err := a.db.WithContext(ctx).Model(&model.File{}).
		Where("sha256 = ? AND lfs = ? AND is_deleted = ?", sha256, true, false).
		Count(&count).Error
	return count, err
}

func (a *fileAdapter) ListActive(ctx context.Context, repoID int64, limit, offset int) ([]*model.File, error) {
	query := a.db.WithContext(ctx).
		Where("repository_id = ? AND is_deleted = ?", repoID, false).
		Order("path_in_repo ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var files []*model.File
	err := query.Find(&files).Error
	return files, err
}

func (a *fileAdapter) ListActiveByPrefix(ctx context.Context, repoID int64, prefix string) ([]*model.File, error) {
	var files []*model.File
	err := a.db.WithContext(ctx).
		Where("repository_id = ? AND is_deleted = ? AND path_in_repo LIKE ?", repoID, false, escapeLike(prefix)+"%").
		Order("path_in_repo ASC").
		Find(&files).Error
	return files, err
}

func (a *fileAdapter) SoftDelete(ctx context.Context, repoID int64, path string) error {
	return a.db.WithContext(ctx).Model(&model.File{}).
		Where("repository_id = ? AND path_in_repo = ?", repoID, path).
		UpdateColumn("is_deleted", true).Error
}

func (a *fileAdapter) SoftDeleteByPrefix(ctx context.Context, repoID int64, prefix string) (int64, error) {
	res := a.db.WithContext(ctx).Model(&model.File{}).
		Where("repository_id = ? AND is_deleted = ? AND path_in_repo LIKE ?", repoID, false, escapeLike(prefix)+"%").
		UpdateColumn("is_deleted", true)
	return res.RowsAffected, res.Error
}

func (a *fileAdapter) DeleteHard(ctx context.Context, repoID int64, path string) error {
	return a.db.WithContext(ctx).
		Where("repository_id = ? AND path_in_repo = ?", repoID, path).
		Delete(&model.File{}).Error
}

func (a *fileAdapter) SumActiveSize(ctx context.Context, repoID int64) (int64, error) {
	var total int64
	err := a.db.WithContext(ctx).Model(&model.File{}).
		Where("repository_id = ? AND is_deleted = ?", repoID, false).
		Select("COALESCE(SUM(size), 0)").
		Scan(&total).Error
	return total, err
}

// escapeLike escapes LIKE metacharacters so prefixes containing % or _
// match literally.
func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}

// Compile-time check
var _ outbound.FileStore = (*fileAdapter)(nil)
