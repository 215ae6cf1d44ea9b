// Package branch implements branch and tag operations on top of the
// versioned store: create/delete, revert, merge, and the history-preserving
// reset. Commits minted here bypass the commit engine, so every mutation
// ends with the same catalog bookkeeping the engine performs.
package branch

import (
	"context"
	stderrors "errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kohakuhub/server/internal/domain/repo"
	"github.com/kohakuhub/server/internal/model"
	"github.com/kohakuhub/server/internal/port/outbound"
	apperr "github.com/kohakuhub/server/internal/shared/errors"
)

// HistorySync keeps the file catalog and LFS bookkeeping in step with
// commits minted outside the commit engine. The gc domain satisfies it.
type HistorySync interface {
	TrackCommitLFSObjects(ctx context.Context, r *model.Repository, commitID string) error
	SyncFileTable(ctx context.Context, r *model.Repository, ref string) error
	CheckCommitRangeRecoverability(ctx context.Context, r *model.Repository, branch, target string) (bool, []model.CommitRecoverability, error)
}

// Domain implements branch algebra.
type Domain struct {
	store   outbound.VersionedStore
	commits outbound.CommitStore
	sync    HistorySync
	cfg     *Config
	logger  *zap.Logger
}

// NewDomain creates a new branch domain.
func NewDomain(store outbound.VersionedStore, commits outbound.CommitStore, sync HistorySync, cfg *Config, logger *zap.Logger) *Domain {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	_ = cfg.Validate()
	return &Domain{
		store:   store,
		commits: commits,
		sync:    sync,
		cfg:     cfg,
		logger:  logger,
	}
}

func (d *Domain) storeName(r *model.Repository) string {
	return repo.LakeFSName(d.cfg.NamespacePrefix, r.RepoType, r.FullID, r.ID)
}

// CreateBranch creates a branch at the requested revision (default branch
// HEAD when omitted).
func (d *Domain) CreateBranch(ctx context.Context, r *model.Repository, req *model.CreateBranchRequest) error {
	if req == nil || req.Branch == "" {
		return apperr.BadRequest("branch name is required")
	}
	source := d.cfg.DefaultBranch
	if req.Revision != nil && *req.Revision != "" {
		source = *req.Revision
	}

	if err := d.store.CreateBranch(ctx, d.storeName(r), req.Branch, source); err != nil {
		switch {
		case stderrors.Is(err, outbound.ErrConflict):
			return apperr.Conflict(fmt.Sprintf("branch %s already exists", req.Branch))
		case stderrors.Is(err, outbound.ErrNotFound):
			return apperr.RevisionNotFound(source)
		default:
			return apperr.Upstream("branch creation failed", err)
		}
	}

	d.logger.Info("Branch created",
		zap.String("repo", r.FullID),
		zap.String("branch", req.Branch),
		zap.String("source", source))
	return nil
}

// DeleteBranch removes a branch. The default branch is protected.
func (d *Domain) DeleteBranch(ctx context.Context, r *model.Repository, branchName string) error {
	if branchName == d.cfg.DefaultBranch {
		return apperr.BadRequest(fmt.Sprintf("cannot delete the default branch %s", branchName))
	}

	if err := d.store.DeleteBranch(ctx, d.storeName(r), branchName); err != nil {
		if stderrors.Is(err, outbound.ErrNotFound) {
			return apperr.RevisionNotFound(branchName)
		}
		return apperr.Upstream("branch deletion failed", err)
	}

	d.logger.Info("Branch deleted",
		zap.String("repo", r.FullID),
		zap.String("branch", branchName))
	return nil
}

// CreateTag pins a revision (default branch HEAD when omitted) under a tag
// and returns the tagged commit id.
func (d *Domain) CreateTag(ctx context.Context, r *model.Repository, req *model.CreateTagRequest) (string, error) {
	if req == nil || req.Tag == "" {
		return "", apperr.BadRequest("tag name is required")
	}
	ref := d.cfg.DefaultBranch
	if req.Revision != nil && *req.Revision != "" {
		ref = *req.Revision
	}

	commitID, err := d.store.CreateTag(ctx, d.storeName(r), req.Tag, ref)
	if err != nil {
		switch {
		case stderrors.Is(err, outbound.ErrConflict):
			return "", apperr.Conflict(fmt.Sprintf("tag %s already exists", req.Tag))
		case stderrors.Is(err, outbound.ErrNotFound):
			return "", apperr.RevisionNotFound(ref)
		default:
			return "", apperr.Upstream("tag creation failed", err)
		}
	}

	d.logger.Info("Tag created",
		zap.String("repo", r.FullID),
		zap.String("tag", req.Tag),
		zap.String("commit_id", commitID))
	return commitID, nil
}

// DeleteTag removes a tag.
func (d *Domain) DeleteTag(ctx context.Context, r *model.Repository, tag string) error {
	if err := d.store.DeleteTag(ctx, d.storeName(r), tag); err != nil {
		if stderrors.Is(err, outbound.ErrNotFound) {
			return apperr.RevisionNotFound(tag)
		}
		return apperr.Upstream("tag deletion failed", err)
	}

	d.logger.Info("Tag deleted",
		zap.String("repo", r.FullID),
		zap.String("tag", tag))
	return nil
}

// Revert creates a commit undoing the given ref on the branch and returns
// the new branch HEAD.
func (d *Domain) Revert(ctx context.Context, user *model.User, r *model.Repository, branchName string, req *model.RevertRequest) (string, error) {
	if req == nil || req.Ref == "" {
		return "", apperr.BadRequest("ref to revert is required")
	}
	name := d.storeName(r)

	if err := d.store.Revert(ctx, name, branchName, req.Ref, req.ParentNumber); err != nil {
		switch {
		case stderrors.Is(err, outbound.ErrConflict):
			return "", apperr.Conflict(fmt.Sprintf(
				"reverting %s conflicts with the current contents of %s; resolve the conflicting paths first or revert a more recent commit", req.Ref, branchName))
		case stderrors.Is(err, outbound.ErrNotFound):
			return "", apperr.RevisionNotFound(req.Ref)
		default:
			return "", apperr.Upstream("revert failed", err)
		}
	}

	head, err := d.store.GetBranchHead(ctx, name, branchName)
	if err != nil {
		return "", apperr.Upstream("reading branch head after revert failed", err)
	}

	d.postProcess(ctx, user, r, branchName, head)

	d.logger.Info("Commit reverted",
		zap.String("repo", r.FullID),
		zap.String("branch", branchName),
		zap.String("ref", req.Ref),
		zap.String("new_head", head))
	return head, nil
}

// Merge merges sourceRef into destBranch and returns the merge commit id.
// An empty diff is rejected unless allow_empty is set, in which case the
// current destination HEAD is returned untouched.
func (d *Domain) Merge(ctx context.Context, user *model.User, r *model.Repository, sourceRef, destBranch string, req *model.MergeRequest) (string, error) {
	if req == nil {
		req = &model.MergeRequest{}
	}
	switch req.Strategy {
	case outbound.MergeStrategyDefault, outbound.MergeStrategySourceWins, outbound.MergeStrategyDestWins:
	default:
		return "", apperr.BadRequest(fmt.Sprintf("unknown merge strategy %q", req.Strategy))
	}
	if req.SquashMerge {
		return "", apperr.BadRequest("squash merges are not supported; merge without squash_merge")
	}
	name := d.storeName(r)

	page, err := d.store.DiffRefs(ctx, name, destBranch, sourceRef, outbound.DiffOptions{Amount: 1})
	if err != nil {
		if stderrors.Is(err, outbound.ErrNotFound) {
			return "", apperr.RevisionNotFound(sourceRef)
		}
		return "", apperr.Upstream("merge diff failed", err)
	}
	if len(page.Entries) == 0 {
		if !req.AllowEmpty {
			return "", apperr.BadRequest(fmt.Sprintf("nothing to merge from %s into %s", sourceRef, destBranch))
		}
		head, err := d.store.GetBranchHead(ctx, name, destBranch)
		if err != nil {
			return "", apperr.Upstream("reading branch head failed", err)
		}
		return head, nil
	}

	opts := outbound.MergeOptions{Strategy: req.Strategy, Metadata: req.Metadata}
	if req.Message != nil {
		opts.Message = *req.Message
	}
	mergeID, err := d.store.Merge(ctx, name, sourceRef, destBranch, opts)
	if err != nil {
		switch {
		case stderrors.Is(err, outbound.ErrConflict):
			return "", apperr.Conflict(fmt.Sprintf(
				"merging %s into %s conflicts; retry with strategy source-wins or dest-wins", sourceRef, destBranch))
		case stderrors.Is(err, outbound.ErrNotFound):
			return "", apperr.RevisionNotFound(sourceRef)
		default:
			return "", apperr.Upstream("merge failed", err)
		}
	}

	d.postProcess(ctx, user, r, destBranch, mergeID)

	d.logger.Info("Branches merged",
		zap.String("repo", r.FullID),
		zap.String("source", sourceRef),
		zap.String("dest", destBranch),
		zap.String("merge_commit", mergeID))
	return mergeID, nil
}

// postProcess runs the catalog bookkeeping for a store-minted commit: LFS
// tracking against the parent, then the hub Commit row. The commit already
// exists, so failures are logged and left to reconciliation.
func (d *Domain) postProcess(ctx context.Context, user *model.User, r *model.Repository, branchName, commitID string) {
	if err := d.sync.TrackCommitLFSObjects(ctx, r, commitID); err != nil {
		d.logger.Error("LFS tracking after branch operation failed",
			zap.String("commit_id", commitID), zap.Error(err))
	}

	message := ""
	if record, err := d.store.GetCommit(ctx, d.storeName(r), commitID); err == nil {
		message = record.Message
	} else {
		d.logger.Warn("Reading commit record failed",
			zap.String("commit_id", commitID), zap.Error(err))
	}

	row := &model.Commit{
		CommitID:     commitID,
		RepositoryID: r.ID,
		RepoType:     r.RepoType,
		Branch:       branchName,
		Message:      message,
	}
	if user != nil {
		row.AuthorID = &user.ID
		row.Username = user.Username
	}
	if err := d.commits.Create(ctx, row); err != nil {
		d.logger.Error("Commit record insert failed",
			zap.String("commit_id", commitID), zap.Error(err))
	}
}
