package gc

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/kohakuhub/server/internal/model"
	"github.com/kohakuhub/server/internal/port/outbound"
	apperr "github.com/kohakuhub/server/internal/shared/errors"
)

// commitLogPage is the page size for branch history walks.
const commitLogPage = 100

// CheckLFSRecoverability probes the blob store for every LFS object the
// commit recorded and returns whether all are present, plus the sorted paths
// whose content is gone.
func (d *Domain) CheckLFSRecoverability(ctx context.Context, repoID int64, commitID string) (bool, []string, error) {
	rows, err := d.history.ListByCommit(ctx, repoID, commitID)
	if err != nil {
		return false, nil, err
	}
	if len(rows) == 0 {
		return true, nil, nil
	}

	var (
		mu      sync.Mutex
		missing []string
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.ProbeConcurrency)
	for _, row := range rows {
		g.Go(func() error {
			ok, err := d.blobs.Exists(ctx, model.LFSObjectKey(row.SHA256))
			if err != nil {
				return err
			}
			if !ok {
				mu.Lock()
				missing = append(missing, row.PathInRepo)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return false, nil, err
	}

	sort.Strings(missing)
	return len(missing) == 0, missing, nil
}

// CheckCommitRangeRecoverability walks branch history from HEAD down to
// target (inclusive) and checks every commit on the way. Resetting a branch
// past a commit whose LFS content is gone would strand it, so this runs as
// the precheck.
func (d *Domain) CheckCommitRangeRecoverability(ctx context.Context, r *model.Repository, branch, target string) (bool, []model.CommitRecoverability, error) {
	name := d.storeName(r)

	var results []model.CommitRecoverability
	allOK := true
	found := false
	after := ""
	for {
		page, err := d.store.LogCommits(ctx, name, branch, outbound.LogOptions{After: after, Amount: commitLogPage})
		if err != nil {
			return false, nil, err
		}
		for _, c := range page.Commits {
			ok, missing, err := d.CheckLFSRecoverability(ctx, r.ID, c.ID)
			if err != nil {
				return false, nil, err
			}
			results = append(results, model.CommitRecoverability{CommitID: c.ID, OK: ok, Missing: missing})
			if !ok {
				allOK = false
			}
			if c.ID == target {
				found = true
				break
			}
		}
		if found || !page.HasMore {
			break
		}
		after = page.NextAfter
	}

	if !found {
		return false, nil, apperr.RevisionNotFound(target)
	}
	return allOK, results, nil
}
