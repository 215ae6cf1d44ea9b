package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/kohakuhub/server/internal/model"
	"github.com/kohakuhub/server/internal/port/outbound"
)

// commitAdapter implements outbound.CommitStore.
type commitAdapter struct {
	db *gorm.DB
}

// NewCommitAdapter creates a new commit store adapter.
func NewCommitAdapter(db *gorm.DB) outbound.CommitStore {
	return &commitAdapter{db: db}
}

func (a *commitAdapter) Create(ctx context.Context, commit *model.Commit) error {
	return a.db.WithContext(ctx).Create(commit).Error
}

func (a *commitAdapter) FindByCommitID(ctx context.Context, repoID int64, commitID string) (*model.Commit, error) {
	var commit model.Commit
	err := a.db.WithContext(ctx).
		Where("repository_id = ? AND commit_id = ?", repoID, commitID).
		First(&commit).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &commit, nil
}

func (a *commitAdapter) FindByCommitIDs(ctx context.Context, repoID int64, commitIDs []string) (map[string]*model.Commit, error) {
	if len(commitIDs) == 0 {
		return map[string]*model.Commit{}, nil
	}

	var commits []*model.Commit
	err := a.db.WithContext(ctx).
		Where("repository_id = ? AND commit_id IN ?", repoID, commitIDs).
		Find(&commits).Error
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*model.Commit, len(commits))
	for _, c := range commits {
		byID[c.CommitID] = c
	}
	return byID, nil
}

// Compile-time check
var _ outbound.CommitStore = (*commitAdapter)(nil)
