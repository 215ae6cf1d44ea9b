package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/kohakuhub/server/internal/model"
	"github.com/kohakuhub/server/internal/port/outbound"
)

// lfsHistoryAdapter implements outbound.LFSHistoryStore.
type lfsHistoryAdapter struct {
	db *gorm.DB
}

// NewLFSHistoryAdapter creates a new LFS history store adapter.
func NewLFSHistoryAdapter(db *gorm.DB) outbound.LFSHistoryStore {
	return &lfsHistoryAdapter{db: db}
}

func (a *lfsHistoryAdapter) Insert(ctx context.Context, row *model.LFSObjectHistory) error {
	return a.db.WithContext(ctx).Create(row).Error
}

func (a *lfsHistoryAdapter) ListByRepoPath(ctx context.Context, repoID int64, path string) ([]*model.LFSObjectHistory, error) {
	var rows []*model.LFSObjectHistory
	err := a.db.WithContext(ctx).
		Where("repository_id = ? AND path_in_repo = ?", repoID, path).
		Order("created_at DESC, id DESC").
		Find(&rows).Error
	return rows, err
}

func (a *lfsHistoryAdapter) ListByCommit(ctx context.Context, repoID int64, commitID string) ([]*model.LFSObjectHistory, error) {
	var rows []*model.LFSObjectHistory
	err := a.db.WithContext(ctx).
		Where("repository_id = ? AND commit_id = ?", repoID, commitID).
		Order("path_in_repo ASC").
		Find(&rows).Error
	return rows, err
}

func (a *lfsHistoryAdapter) DistinctOIDs(ctx context.Context, repoID int64) ([]string, error) {
	var oids []string
	err := a.db.WithContext(ctx).Model(&model.LFSObjectHistory{}).
		Distinct("sha256").
		Where("repository_id = ?", repoID).
		Order("sha256 ASC").
		Pluck("sha256", &oids).Error
	return oids, err
}

func (a *lfsHistoryAdapter) CountByOID(ctx context.Context, sha256 string, repoID *int64) (int64, error) {
	query := a.db.WithContext(ctx).Model(&model.LFSObjectHistory{}).Where("sha256 = ?", sha256)
	if repoID != nil {
		query = query.Where("repository_id = ?", *repoID)
	}

	var count int64
	err := query.Count(&count).Error
	return count, err
}

func (a *lfsHistoryAdapter) DeleteByOID(ctx context.Context, sha256 string, repoID *int64) (int64, error) {
	query := a.db.WithContext(ctx).Where("sha256 = ?", sha256)
	if repoID != nil {
		query = query.Where("repository_id = ?", *repoID)
	}

	res := query.Delete(&model.LFSObjectHistory{})
	return res.RowsAffected, res.Error
}

func (a *lfsHistoryAdapter) TotalDistinctSize(ctx context.Context) (int64, error) {
	var total int64
	err := a.db.WithContext(ctx).
		Raw("SELECT COALESCE(SUM(size), 0) FROM (SELECT DISTINCT sha256, size FROM lfs_object_history) AS distinct_objects").
		Scan(&total).Error
	return total, err
}

// Compile-time check
var _ outbound.LFSHistoryStore = (*lfsHistoryAdapter)(nil)
