package gc

import (
	"context"
	"path"

	"github.com/kohakuhub/server/internal/model"
	"github.com/kohakuhub/server/internal/port/outbound"
)

// SyncFileTable rebuilds the File table for one repository from a full
// listing at ref: every listed object is upserted (with an LFS history row
// when content-addressed), and active rows whose path vanished from the
// listing are tombstoned. This is the recovery path when per-commit diffs
// are unavailable, e.g. the first commit or after a reset.
func (d *Domain) SyncFileTable(ctx context.Context, r *model.Repository, ref string) error {
	name := d.storeName(r)

	seen := make(map[string]struct{})
	after := ""
	for {
		page, err := d.store.ListObjects(ctx, name, ref, outbound.ListOptions{
			After:  after,
			Amount: d.cfg.SyncPageSize,
		})
		if err != nil {
			return err
		}
		for i := range page.Objects {
			obj := &page.Objects[i]
			if obj.PathType != outbound.PathTypeObject {
				continue
			}
			seen[obj.Path] = struct{}{}
			if err := d.recordObject(ctx, r, obj, ref); err != nil {
				return err
			}
		}
		if !page.HasMore {
			break
		}
		after = page.NextAfter
	}

	active, err := d.files.ListActiveByPrefix(ctx, r.ID, "")
	if err != nil {
		return err
	}
	for _, f := range active {
		if _, ok := seen[f.PathInRepo]; ok {
			continue
		}
		if err := d.files.SoftDelete(ctx, r.ID, f.PathInRepo); err != nil {
			return err
		}
	}
	return nil
}

// TrackCommitLFSObjects updates the File table and LFS history for one new
// commit by diffing it against its first parent. Parentless commits fall
// back to a full sync.
func (d *Domain) TrackCommitLFSObjects(ctx context.Context, r *model.Repository, commitID string) error {
	name := d.storeName(r)

	commit, err := d.store.GetCommit(ctx, name, commitID)
	if err != nil {
		return err
	}
	if len(commit.Parents) == 0 {
		return d.SyncFileTable(ctx, r, commitID)
	}
	parent := commit.Parents[0]

	after := ""
	for {
		page, err := d.store.DiffRefs(ctx, name, parent, commitID, outbound.DiffOptions{
			After:  after,
			Amount: d.cfg.SyncPageSize,
		})
		if err != nil {
			return err
		}
		for _, entry := range page.Entries {
			if entry.PathType != outbound.PathTypeObject {
				continue
			}
			switch entry.Type {
			case outbound.DiffRemoved:
				if err := d.files.SoftDelete(ctx, r.ID, entry.Path); err != nil {
					return err
				}
			case outbound.DiffAdded, outbound.DiffChanged:
				stat, err := d.store.StatObject(ctx, name, commitID, entry.Path)
				if err != nil {
					return err
				}
				if err := d.recordObject(ctx, r, stat, commitID); err != nil {
					return err
				}
			}
		}
		if !page.HasMore {
			break
		}
		after = page.NextAfter
	}
	return nil
}

// recordObject upserts the File row for one stored object and, when the
// object lives under the content-addressed LFS layout, appends a history
// row. LFS-ness is read off the physical address rather than size rules so
// synced rows agree with how the content was actually uploaded.
func (d *Domain) recordObject(ctx context.Context, r *model.Repository, stat *outbound.ObjectStat, commitID string) error {
	isLFS := false
	sha := stat.Checksum
	if key, ok := model.BlobKeyFromAddress(stat.PhysicalAddress); ok && model.IsLFSKey(key) {
		isLFS = true
		sha = path.Base(key)
	}

	row := &model.File{
		RepositoryID: r.ID,
		PathInRepo:   stat.Path,
		Size:         stat.SizeBytes,
		SHA256:       sha,
		LFS:          isLFS,
		OwnerID:      r.OwnerID,
	}
	if err := d.files.Upsert(ctx, row); err != nil {
		return err
	}
	if !isLFS {
		return nil
	}

	var fileID *int64
	if row.ID != 0 {
		fileID = &row.ID
	}
	return d.TrackLFSObject(ctx, r.ID, stat.Path, sha, stat.SizeBytes, commitID, fileID)
}
