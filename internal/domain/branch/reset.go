package branch

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/kohakuhub/server/internal/model"
	"github.com/kohakuhub/server/internal/port/outbound"
	apperr "github.com/kohakuhub/server/internal/shared/errors"
)

// Reset rewrites the branch contents to match the target commit while
// keeping history: the difference between target and HEAD is replayed as a
// forward commit instead of moving the branch pointer. Returns the new HEAD,
// or a non-nil blocked report when missing LFS content makes the range
// unrecoverable and force was not set.
func (d *Domain) Reset(ctx context.Context, user *model.User, r *model.Repository, branchName string, req *model.ResetRequest) (string, *model.ResetBlockedResponse, error) {
	if req == nil || req.Ref == "" {
		return "", nil, apperr.BadRequest("target ref is required")
	}
	if branchName == d.cfg.DefaultBranch && !req.Force {
		return "", nil, apperr.BadRequest(fmt.Sprintf("resetting %s requires force", branchName))
	}
	name := d.storeName(r)

	targetRec, err := d.store.GetCommit(ctx, name, req.Ref)
	if err != nil {
		if stderrors.Is(err, outbound.ErrNotFound) {
			return "", nil, apperr.RevisionNotFound(req.Ref)
		}
		return "", nil, apperr.Upstream("target commit lookup failed", err)
	}
	target := targetRec.ID

	head, err := d.store.GetBranchHead(ctx, name, branchName)
	if err != nil {
		if stderrors.Is(err, outbound.ErrNotFound) {
			return "", nil, apperr.RevisionNotFound(branchName)
		}
		return "", nil, apperr.Upstream("branch head lookup failed", err)
	}
	if head == target {
		return "", nil, apperr.BadRequest(fmt.Sprintf("branch %s is already at %s", branchName, shortID(target)))
	}

	if !req.Force {
		blocked, err := d.recoverabilityReport(ctx, r, branchName, target)
		if err != nil {
			return "", nil, err
		}
		if blocked != nil {
			return "", blocked, nil
		}
	}

	changed, err := d.replayDiff(ctx, name, branchName, target, head)
	if err != nil {
		return "", nil, err
	}
	if !changed {
		return "", nil, apperr.BadRequest(fmt.Sprintf("branch %s already matches %s", branchName, shortID(target)))
	}

	message := fmt.Sprintf("Reset to %s", shortID(target))
	if req.Message != nil && *req.Message != "" {
		message = *req.Message
	}
	record, err := d.store.Commit(ctx, name, branchName, message, map[string]string{"reset_to": target})
	if err != nil {
		if stderrors.Is(err, outbound.ErrConflict) {
			return "", nil, apperr.Conflict(err.Error())
		}
		return "", nil, apperr.Upstream("reset commit failed", err)
	}

	if err := d.sync.SyncFileTable(ctx, r, record.ID); err != nil {
		d.logger.Error("File table sync after reset failed",
			zap.String("commit_id", record.ID), zap.Error(err))
	}

	row := &model.Commit{
		CommitID:     record.ID,
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
			zap.String("commit_id", record.ID), zap.Error(err))
	}

	d.logger.Info("Branch reset",
		zap.String("repo", r.FullID),
		zap.String("branch", branchName),
		zap.String("target", target),
		zap.String("new_head", record.ID))
	return record.ID, nil, nil
}

// recoverabilityReport checks every commit between HEAD and target and
// builds the blocked response when any LFS content is gone.
func (d *Domain) recoverabilityReport(ctx context.Context, r *model.Repository, branchName, target string) (*model.ResetBlockedResponse, error) {
	ok, reports, err := d.sync.CheckCommitRangeRecoverability(ctx, r, branchName, target)
	if err != nil {
		return nil, err
	}
	if ok {
		return nil, nil
	}

	missingSet := map[string]struct{}{}
	var affected []string
	for _, rep := range reports {
		if rep.OK {
			continue
		}
		affected = append(affected, rep.CommitID)
		for _, p := range rep.Missing {
			missingSet[p] = struct{}{}
		}
	}
	missing := make([]string, 0, len(missingSet))
	for p := range missingSet {
		missing = append(missing, p)
	}
	sort.Strings(missing)

	return &model.ResetBlockedResponse{
		Error:           "reset would strand commits whose LFS content is no longer in the blob store; pass force to reset anyway",
		MissingFiles:    missing,
		AffectedCommits: affected,
	}, nil
}

// replayDiff stages the target state onto the branch: paths only in HEAD
// are deleted, paths missing or different in HEAD are rewritten from the
// target. Reports whether anything was staged.
func (d *Domain) replayDiff(ctx context.Context, name, branchName, target, head string) (bool, error) {
	changed := false
	after := ""
	for {
		page, err := d.store.DiffRefs(ctx, name, target, head, outbound.DiffOptions{After: after, Amount: d.cfg.DiffPageSize})
		if err != nil {
			return false, apperr.Upstream("reset diff failed", err)
		}

		for _, entry := range page.Entries {
			switch entry.Type {
			case outbound.DiffAdded:
				if err := d.store.DeleteObject(ctx, name, branchName, entry.Path); err != nil {
					return false, apperr.Upstream(fmt.Sprintf("deleting %s failed", entry.Path), err)
				}
			case outbound.DiffRemoved, outbound.DiffChanged:
				content, err := d.store.GetObject(ctx, name, target, entry.Path)
				if err != nil {
					return false, apperr.Upstream(fmt.Sprintf("reading %s at target failed", entry.Path), err)
				}
				if _, err := d.store.UploadObject(ctx, name, branchName, entry.Path, content); err != nil {
					return false, apperr.Upstream(fmt.Sprintf("restoring %s failed", entry.Path), err)
				}
			}
			changed = true
		}

		if !page.HasMore {
			break
		}
		after = page.NextAfter
	}
	return changed, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
