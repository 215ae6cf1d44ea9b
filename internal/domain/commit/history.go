package commit

import (
	"bytes"
	"context"
	"path"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
	"go.uber.org/zap"

	"github.com/kohakuhub/server/internal/domain/repo"
	"github.com/kohakuhub/server/internal/model"
	"github.com/kohakuhub/server/internal/port/outbound"
	"github.com/kohakuhub/server/internal/utils/pagination"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 1000
	diffPageSize        = 1000
)

// History lists commits reachable from ref, newest first, enriched with hub
// authorship where a catalog record exists.
func (d *Domain) History(ctx context.Context, r *model.Repository, ref string, limit int, after string) (*model.CommitList, error) {
	storeName := repo.LakeFSName(d.cfg.NamespacePrefix, r.RepoType, r.FullID, r.ID)

	page, err := d.store.LogCommits(ctx, storeName, ref, outbound.LogOptions{
		After:  after,
		Amount: pagination.ClampLimit(limit, defaultHistoryLimit, maxHistoryLimit),
	})
	if err != nil {
		return nil, d.storeErr(err, ref)
	}

	ids := make([]string, 0, len(page.Commits))
	for _, c := range page.Commits {
		ids = append(ids, c.ID)
	}
	rows, err := d.commits.FindByCommitIDs(ctx, r.ID, ids)
	if err != nil {
		d.logger.Warn("Commit record lookup failed",
			zap.String("repo", r.FullID), zap.Error(err))
		rows = nil
	}

	out := &model.CommitList{
		Commits:    make([]model.CommitDetail, 0, len(page.Commits)),
		HasMore:    page.HasMore,
		NextCursor: page.NextAfter,
	}
	for i := range page.Commits {
		rec := &page.Commits[i]
		out.Commits = append(out.Commits, d.commitDetail(rec, rows[rec.ID]))
	}
	return out, nil
}

// commitDetail merges a store commit with its hub catalog record. The store
// carries the summary line; the catalog adds authorship and the description
// body.
func (d *Domain) commitDetail(rec *outbound.CommitRecord, row *model.Commit) model.CommitDetail {
	title, _, _ := strings.Cut(rec.Message, "\n")
	detail := model.CommitDetail{
		ID:      rec.ID,
		OID:     rec.ID,
		Title:   title,
		Message: rec.Message,
		Date:    rec.CreationDate,
		Author:  rec.Committer,
		Parents: rec.Parents,
	}
	if detail.Parents == nil {
		detail.Parents = []string{}
	}
	if row != nil {
		if row.Username != "" {
			detail.Author = row.Username
		}
		if row.Description != "" {
			detail.Message += "\n\n" + row.Description
		}
	}
	return detail
}

// Detail returns one commit and its per-file changes against the first
// parent. includeText adds textual diffs for non-LFS files within the
// configured size cap.
func (d *Domain) Detail(ctx context.Context, r *model.Repository, commitID string, includeText bool) (*model.CommitInfo, error) {
	storeName := repo.LakeFSName(d.cfg.NamespacePrefix, r.RepoType, r.FullID, r.ID)

	rec, err := d.store.GetCommit(ctx, storeName, commitID)
	if err != nil {
		return nil, d.storeErr(err, commitID)
	}

	row, err := d.commits.FindByCommitID(ctx, r.ID, rec.ID)
	if err != nil {
		d.logger.Warn("Commit record lookup failed",
			zap.String("repo", r.FullID), zap.Error(err))
		row = nil
	}

	entries, err := d.changedEntries(ctx, storeName, rec)
	if err != nil {
		return nil, err
	}

	parent := ""
	if len(rec.Parents) > 0 {
		parent = rec.Parents[0]
	}

	files := make([]model.CommitDiffEntry, 0, len(entries))
	for _, entry := range entries {
		files = append(files, d.diffEntry(ctx, storeName, rec.ID, parent, entry, includeText))
	}

	return &model.CommitInfo{
		Commit: d.commitDetail(rec, row),
		Files:  files,
	}, nil
}

// changedEntries diffs the commit against its first parent. A parentless
// commit reports its full tree as additions.
func (d *Domain) changedEntries(ctx context.Context, storeName string, rec *outbound.CommitRecord) ([]outbound.DiffEntry, error) {
	var out []outbound.DiffEntry

	if len(rec.Parents) == 0 {
		after := ""
		for {
			page, err := d.store.ListObjects(ctx, storeName, rec.ID, outbound.ListOptions{
				After:  after,
				Amount: diffPageSize,
			})
			if err != nil {
				return nil, d.storeErr(err, rec.ID)
			}
			for _, obj := range page.Objects {
				if obj.PathType != outbound.PathTypeObject {
					continue
				}
				out = append(out, outbound.DiffEntry{
					Path:      obj.Path,
					PathType:  outbound.PathTypeObject,
					Type:      outbound.DiffAdded,
					SizeBytes: obj.SizeBytes,
				})
			}
			if !page.HasMore {
				return out, nil
			}
			after = page.NextAfter
		}
	}

	after := ""
	for {
		page, err := d.store.DiffRefs(ctx, storeName, rec.Parents[0], rec.ID, outbound.DiffOptions{
			After:  after,
			Amount: diffPageSize,
		})
		if err != nil {
			return nil, d.storeErr(err, rec.ID)
		}
		for _, entry := range page.Entries {
			if entry.PathType == outbound.PathTypeCommonPrefix {
				continue
			}
			out = append(out, entry)
		}
		if !page.HasMore {
			return out, nil
		}
		after = page.NextAfter
	}
}

// diffEntry builds the wire entry for one changed path. Stat and content
// failures degrade the entry instead of failing the whole request.
func (d *Domain) diffEntry(ctx context.Context, storeName, commitID, parent string, entry outbound.DiffEntry, includeText bool) model.CommitDiffEntry {
	out := model.CommitDiffEntry{
		Path:      entry.Path,
		Type:      entry.Type,
		SizeBytes: entry.SizeBytes,
	}

	var cur, prev *outbound.ObjectStat
	if entry.Type != outbound.DiffRemoved {
		stat, err := d.store.StatObject(ctx, storeName, commitID, entry.Path)
		if err != nil {
			d.logger.Debug("Diff stat failed",
				zap.String("path", entry.Path), zap.Error(err))
		} else {
			cur = stat
			out.SizeBytes = stat.SizeBytes
			if key, ok := model.BlobKeyFromAddress(stat.PhysicalAddress); ok && model.IsLFSKey(key) {
				out.IsLFS = true
				out.SHA256 = path.Base(key)
			}
		}
	}

	prevLFS := false
	if entry.Type != outbound.DiffAdded && parent != "" {
		stat, err := d.store.StatObject(ctx, storeName, parent, entry.Path)
		if err != nil {
			d.logger.Debug("Diff parent stat failed",
				zap.String("path", entry.Path), zap.Error(err))
		} else {
			prev = stat
			size := stat.SizeBytes
			out.PreviousSize = &size
			if key, ok := model.BlobKeyFromAddress(stat.PhysicalAddress); ok && model.IsLFSKey(key) {
				prevLFS = true
				out.PreviousSHA256 = path.Base(key)
			}
		}
	}

	if !includeText || out.IsLFS || prevLFS {
		return out
	}
	if cur != nil && cur.SizeBytes > d.cfg.DiffMaxBytes {
		return out
	}
	if prev != nil && prev.SizeBytes > d.cfg.DiffMaxBytes {
		return out
	}

	var curText, prevText []byte
	if cur != nil {
		b, err := d.store.GetObject(ctx, storeName, commitID, entry.Path)
		if err != nil {
			d.logger.Debug("Diff content read failed",
				zap.String("path", entry.Path), zap.Error(err))
			return out
		}
		curText = b
	}
	if prev != nil {
		b, err := d.store.GetObject(ctx, storeName, parent, entry.Path)
		if err != nil {
			d.logger.Debug("Diff parent content read failed",
				zap.String("path", entry.Path), zap.Error(err))
			return out
		}
		prevText = b
	}
	// Binary content gets sizes only.
	if bytes.IndexByte(curText, 0) >= 0 || bytes.IndexByte(prevText, 0) >= 0 {
		return out
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(string(prevText), string(curText), true)
	diffs = dmp.DiffCleanupSemantic(diffs)
	out.Diff = dmp.PatchToText(dmp.PatchMake(string(prevText), diffs))
	return out
}
