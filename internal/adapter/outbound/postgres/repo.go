package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/kohakuhub/server/internal/model"
	"github.com/kohakuhub/server/internal/port/outbound"
)

// repoAdapter implements outbound.RepoStore.
type repoAdapter struct {
	db *gorm.DB
}

// NewRepoAdapter creates a new repository store adapter.
func NewRepoAdapter(db *gorm.DB) outbound.RepoStore {
	return &repoAdapter{db: db}
}

func (a *repoAdapter) Create(ctx context.Context, repo *model.Repository) error {
	return a.db.WithContext(ctx).Create(repo).Error
}

func (a *repoAdapter) Update(ctx context.Context, repo *model.Repository) error {
	return a.db.WithContext(ctx).Save(repo).Error
}

func (a *repoAdapter) FindByID(ctx context.Context, id int64) (*model.Repository, error) {
	var repo model.Repository
	err := a.db.WithContext(ctx).First(&repo, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &repo, nil
}

func (a *repoAdapter) Find(ctx context.Context, repoType model.RepoType, namespace, name string) (*model.Repository, error) {
	var repo model.Repository
	err := a.db.WithContext(ctx).
		Where("repo_type = ? AND namespace = ? AND name = ?", repoType, namespace, name).
		First(&repo).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &repo, nil
}

func (a *repoAdapter) List(ctx context.Context, filter outbound.RepoFilter) ([]*model.Repository, error) {
	query := a.db.WithContext(ctx).Model(&model.Repository{})

	if filter.Type != nil {
		query = query.Where("repo_type = ?", *filter.Type)
	}
	if filter.Namespace != "" {
		query = query.Where("namespace = ?", filter.Namespace)
	}
	if filter.Author != "" {
		query = query.Where("namespace = ?", filter.Author)
	}

	// Visibility: public rows always; private rows only for the given user's
	// own namespace memberships, resolved by the caller into owner ids.
	if len(filter.VisibleOwnerIDs) > 0 {
		query = query.Where("private = ? OR owner_id IN ?", false, filter.VisibleOwnerIDs)
	} else {
		query = query.Where("private = ?", false)
	}

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var repos []*model.Repository
	err := query.Order("created_at DESC").Find(&repos).Error
	return repos, err
}

func (a *repoAdapter) Rename(ctx context.Context, repoID int64, namespace, name, fullID string, ownerID int64) error {
	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Repository{}).
			Where("id = ?", repoID).
			Updates(map[string]interface{}{
				"namespace": namespace,
				"name":      name,
				"full_id":   fullID,
				"owner_id":  ownerID,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Model(&model.File{}).
			Where("repository_id = ?", repoID).
			UpdateColumn("owner_id", ownerID).Error
	})
}

func (a *repoAdapter) DeleteCascade(ctx context.Context, repoID int64) error {
	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("repository_id = ?", repoID).Delete(&model.File{}).Error; err != nil {
			return err
		}
		if err := tx.Where("repository_id = ?", repoID).Delete(&model.Commit{}).Error; err != nil {
			return err
		}
		if err := tx.Where("repository_id = ?", repoID).Delete(&model.LFSObjectHistory{}).Error; err != nil {
			return err
		}
		if err := tx.Where("repository_id = ?", repoID).Delete(&model.StagingUpload{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Repository{}, "id = ?", repoID).Error
	})
}

func (a *repoAdapter) SetUsedBytes(ctx context.Context, repoID, used int64) error {
	return a.db.WithContext(ctx).Model(&model.Repository{}).
		Where("id = ?", repoID).
		UpdateColumn("used_bytes", used).Error
}

func (a *repoAdapter) IncrementDownloads(ctx context.Context, repoID int64) error {
	return a.db.WithContext(ctx).Model(&model.Repository{}).
		Where("id = ?", repoID).
		UpdateColumn("downloads", gorm.Expr("downloads + 1")).Error
}

func (a *repoAdapter) SumUsedByNamespace(ctx context.Context, namespace string, private bool) (int64, error) {
	var total int64
	err := a.db.WithContext(ctx).Model(&model.Repository{}).
		Where("namespace = ? AND private = ?", namespace, private).
		Select("COALESCE(SUM(used_bytes), 0)").
		Scan(&total).Error
	return total, err
}

func (a *repoAdapter) CountByType(ctx context.Context) (map[model.RepoType]int64, error) {
	var rows []struct {
		RepoType model.RepoType
		Total    int64
	}
	err := a.db.WithContext(ctx).Model(&model.Repository{}).
		Select("repo_type, COUNT(*) AS total").
		Group("repo_type").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[model.RepoType]int64, len(rows))
	for _, row := range rows {
		counts[row.RepoType] = row.Total
	}
	return counts, nil
}

func (a *repoAdapter) TotalUsedBytes(ctx context.Context) (int64, error) {
	var total int64
	err := a.db.WithContext(ctx).Model(&model.Repository{}).
		Select("COALESCE(SUM(used_bytes), 0)").
		Scan(&total).Error
	return total, err
}

// Compile-time check
var _ outbound.RepoStore = (*repoAdapter)(nil)
