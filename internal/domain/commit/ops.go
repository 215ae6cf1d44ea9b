package commit

import (
	"context"
	"encoding/base64"
	stderrors "errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kohakuhub/server/internal/model"
	"github.com/kohakuhub/server/internal/port/outbound"
	apperr "github.com/kohakuhub/server/internal/shared/errors"
)

// applyFile stores inline base64 content as a regular (non-LFS) object.
func (d *Domain) applyFile(ctx context.Context, st *commitState, op *fileOp) error {
	if op.Path == "" {
		return apperr.BadRequest("file operation requires a path")
	}
	if !strings.HasPrefix(op.Encoding, "base64") {
		return apperr.BadRequest(fmt.Sprintf("file %s requires base64 encoding, got %q", op.Path, op.Encoding))
	}
	content, err := base64.StdEncoding.DecodeString(op.Content)
	if err != nil {
		return apperr.BadRequest(fmt.Sprintf("file %s carries invalid base64: %v", op.Path, err))
	}
	size := int64(len(content))

	// Content that belongs in LFS must never arrive inline: accepting it
	// would duplicate large bytes into the versioned store silently.
	rules := st.repo.EffectiveLFSRules(d.cfg.DefaultRules)
	if rules.ShouldUseLFS(op.Path, size) {
		return apperr.BadRequest(fmt.Sprintf(
			"file %s (%d bytes) matches the repository LFS rules and must be uploaded as an LFS object", op.Path, size))
	}

	sha := gitBlobSHA1(content)

	existing, err := d.files.Find(ctx, st.repo.ID, op.Path)
	if err != nil {
		return err
	}
	if existing != nil && !existing.IsDeleted && existing.SHA256 == sha && existing.Size == size {
		// Identical live content: skip the upload entirely.
		return nil
	}

	if _, err := d.store.UploadObject(ctx, st.storeName, st.branch, op.Path, content); err != nil {
		return d.storeErr(err, st.branch)
	}

	if err := d.files.Upsert(ctx, &model.File{
		RepositoryID: st.repo.ID,
		PathInRepo:   op.Path,
		Size:         size,
		SHA256:       sha,
		LFS:          false,
		IsDeleted:    false,
		OwnerID:      st.repo.OwnerID,
	}); err != nil {
		return err
	}

	st.filesChanged = true
	return nil
}

// applyLFSFile links already-uploaded LFS content to a path on the branch.
// No bytes move: the blob store object becomes the path's physical address.
func (d *Domain) applyLFSFile(ctx context.Context, st *commitState, op *lfsFileOp) error {
	if op.Path == "" || op.OID == "" {
		return apperr.BadRequest("lfsFile operation requires path and oid")
	}
	if op.Algo != "" && op.Algo != "sha256" {
		return apperr.BadRequest(fmt.Sprintf("lfsFile %s uses unsupported hash algorithm %q", op.Path, op.Algo))
	}
	if !model.IsValidLFSOID(op.OID) {
		return apperr.BadRequest(fmt.Sprintf("lfsFile %s carries a malformed oid", op.Path))
	}

	key := model.LFSObjectKey(op.OID)
	address := fmt.Sprintf("s3://%s/%s", d.blobs.Bucket(), key)

	existing, err := d.files.Find(ctx, st.repo.ID, op.Path)
	if err != nil {
		return err
	}

	// Same oid at the same path: either a restore of a tombstoned row or a
	// pure repeat.
	if existing != nil && existing.SHA256 == op.OID && existing.Size == op.Size {
		if existing.IsDeleted {
			if _, err := d.store.LinkPhysicalAddress(ctx, st.storeName, st.branch, op.Path, address, op.OID, op.Size); err != nil {
				return d.storeErr(err, st.branch)
			}
			existing.IsDeleted = false
			if err := d.files.Upsert(ctx, existing); err != nil {
				return err
			}
			st.filesChanged = true
			// The original history row still covers this oid at this
			// path; a resurrection is not a new version.
			return nil
		}
		st.pending = append(st.pending, pendingLFS{
			path:   op.Path,
			oid:    op.OID,
			size:   op.Size,
			fileID: &existing.ID,
		})
		return nil
	}

	info, err := d.blobs.Head(ctx, key)
	if err != nil {
		if stderrors.Is(err, outbound.ErrObjectNotFound) {
			return apperr.BadRequest(fmt.Sprintf("LFS object %s for %s has not been uploaded", op.OID, op.Path))
		}
		return apperr.Upstream("LFS object lookup failed", err)
	}
	size := op.Size
	if info.Size != size {
		d.logger.Warn("LFS size corrected from store metadata",
			zap.String("path", op.Path),
			zap.Int64("declared", size),
			zap.Int64("stored", info.Size))
		size = info.Size
	}

	pending := pendingLFS{path: op.Path, oid: op.OID, size: size}
	if existing != nil && !existing.IsDeleted && existing.SHA256 != op.OID {
		pending.oldSHA256 = existing.SHA256
	}

	if _, err := d.store.LinkPhysicalAddress(ctx, st.storeName, st.branch, op.Path, address, op.OID, size); err != nil {
		return d.storeErr(err, st.branch)
	}

	file := &model.File{
		RepositoryID: st.repo.ID,
		PathInRepo:   op.Path,
		Size:         size,
		SHA256:       op.OID,
		LFS:          true,
		IsDeleted:    false,
		OwnerID:      st.repo.OwnerID,
	}
	if err := d.files.Upsert(ctx, file); err != nil {
		return err
	}
	if existing != nil {
		pending.fileID = &existing.ID
	}

	st.pending = append(st.pending, pending)
	st.filesChanged = true
	return nil
}

// applyDeletedFile removes one path. The store delete is best-effort; the
// catalog row is tombstoned, never dropped, so LFS history keeps its anchor
// and a later re-upload of the same oid restores cleanly.
func (d *Domain) applyDeletedFile(ctx context.Context, st *commitState, op *deletedFileOp) error {
	if op.Path == "" {
		return apperr.BadRequest("deletedFile operation requires a path")
	}

	if err := d.store.DeleteObject(ctx, st.storeName, st.branch, op.Path); err != nil {
		d.logger.Warn("Store delete failed",
			zap.String("path", op.Path), zap.Error(err))
	}
	if err := d.files.SoftDelete(ctx, st.repo.ID, op.Path); err != nil {
		return err
	}

	st.filesChanged = true
	return nil
}

// applyDeletedFolder removes everything under a prefix, paging the listing
// and deleting concurrently.
func (d *Domain) applyDeletedFolder(ctx context.Context, st *commitState, op *deletedFolderOp) error {
	if op.Path == "" {
		return apperr.BadRequest("deletedFolder operation requires a path")
	}
	prefix := strings.TrimSuffix(op.Path, "/") + "/"

	deleted := 0
	after := ""
	for {
		page, err := d.store.ListObjects(ctx, st.storeName, st.branch, outbound.ListOptions{
			Prefix: prefix,
			After:  after,
			Amount: d.cfg.DeletePageSize,
		})
		if err != nil {
			return d.storeErr(err, st.branch)
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(d.cfg.DeleteConcurrency)
		for _, obj := range page.Objects {
			g.Go(func() error {
				return d.store.DeleteObject(gctx, st.storeName, st.branch, obj.Path)
			})
		}
		if err := g.Wait(); err != nil {
			return d.storeErr(err, st.branch)
		}
		deleted += len(page.Objects)

		if !page.HasMore {
			break
		}
		after = page.NextAfter
	}

	if _, err := d.files.SoftDeleteByPrefix(ctx, st.repo.ID, prefix); err != nil {
		return err
	}

	if deleted > 0 {
		st.filesChanged = true
	}
	return nil
}

// applyCopyFile duplicates a path by linking the source object's physical
// address at the destination, so LFS and regular content both copy without
// byte movement.
func (d *Domain) applyCopyFile(ctx context.Context, st *commitState, op *copyFileOp) error {
	if op.Path == "" || op.SrcPath == "" {
		return apperr.BadRequest("copyFile operation requires path and srcPath")
	}
	srcRev := op.SrcRevision
	if srcRev == "" {
		srcRev = st.branch
	}

	stat, err := d.store.StatObject(ctx, st.storeName, srcRev, op.SrcPath)
	if err != nil {
		if stderrors.Is(err, outbound.ErrNotFound) {
			return apperr.EntryNotFound(op.SrcPath)
		}
		return d.storeErr(err, st.branch)
	}

	if _, err := d.store.LinkPhysicalAddress(ctx, st.storeName, st.branch, op.Path, stat.PhysicalAddress, stat.Checksum, stat.SizeBytes); err != nil {
		return d.storeErr(err, st.branch)
	}

	srcFile, err := d.files.Find(ctx, st.repo.ID, op.SrcPath)
	if err != nil {
		return err
	}

	file := &model.File{
		RepositoryID: st.repo.ID,
		PathInRepo:   op.Path,
		IsDeleted:    false,
		OwnerID:      st.repo.OwnerID,
	}
	if srcFile != nil && !srcFile.IsDeleted {
		file.Size = srcFile.Size
		file.SHA256 = srcFile.SHA256
		file.LFS = srcFile.LFS
	} else {
		rules := st.repo.EffectiveLFSRules(d.cfg.DefaultRules)
		file.Size = stat.SizeBytes
		file.SHA256 = stat.Checksum
		file.LFS = rules.ShouldUseLFS(op.Path, stat.SizeBytes)
	}
	if err := d.files.Upsert(ctx, file); err != nil {
		return err
	}

	if file.LFS {
		st.pending = append(st.pending, pendingLFS{
			path: op.Path,
			oid:  file.SHA256,
			size: file.Size,
		})
	}

	st.filesChanged = true
	return nil
}
