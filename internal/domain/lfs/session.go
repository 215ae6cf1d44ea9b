package lfs

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

// Complete finishes a multipart session: it assembles the parts, verifies
// the stored size against the declared one and retires the staging row.
// Part casing has already been normalized by the request decoder.
func (d *Domain) Complete(ctx context.Context, repo *model.Repository, uploadID string, req *model.LFSCompleteRequest) (*model.LFSObjectStatus, error) {
	session, err := d.staging.FindByUploadID(ctx, uploadID)
	if err != nil {
		return nil, err
	}
	if session == nil || session.RepositoryID != repo.ID {
		return nil, apperr.NotFound(fmt.Sprintf("upload session %s", uploadID))
	}
	if len(req.Parts) == 0 {
		return nil, apperr.BadRequest("completion requires at least one part")
	}

	parts := make([]outbound.CompletedPart, 0, len(req.Parts))
	for _, p := range req.Parts {
		if p.PartNumber <= 0 || p.ETag == "" {
			return nil, apperr.BadRequest(fmt.Sprintf("invalid part entry: number=%d etag=%q", p.PartNumber, p.ETag))
		}
		parts = append(parts, outbound.CompletedPart{
			PartNumber: int32(p.PartNumber),
			ETag:       p.ETag,
		})
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].PartNumber < parts[j].PartNumber })

	info, err := d.blobs.CompleteMultipart(ctx, session.LFSKey, uploadID, parts)
	if err != nil {
		return nil, apperr.Upstream("multipart completion failed", err)
	}

	if info.Size != session.Size {
		// The key is content-addressed by the declared oid; an object of
		// the wrong size under it would poison every future dedup probe.
		if derr := d.blobs.Delete(ctx, session.LFSKey); derr != nil {
			d.logger.Error("Corrupt LFS object left in store",
				zap.String("key", session.LFSKey), zap.Error(derr))
		}
		d.deleteSession(ctx, uploadID)
		return nil, apperr.Integrity(fmt.Sprintf(
			"uploaded size %d does not match declared size %d for %s",
			info.Size, session.Size, session.SHA256))
	}

	d.deleteSession(ctx, uploadID)

	d.logger.Info("LFS multipart upload completed",
		zap.String("oid", session.SHA256),
		zap.Int64("size", info.Size),
		zap.Int("parts", len(parts)))

	return &model.LFSObjectStatus{Size: info.Size, ETag: info.ETag}, nil
}

// Verify confirms an uploaded object is present with the declared size.
func (d *Domain) Verify(ctx context.Context, repo *model.Repository, req *model.LFSVerifyRequest) (*model.LFSObjectStatus, error) {
	if !model.IsValidLFSOID(req.OID) {
		return nil, apperr.BadRequest("oid must be a lowercase hex sha256")
	}

	info, err := d.blobs.Head(ctx, model.LFSObjectKey(req.OID))
	if err != nil {
		if stderrors.Is(err, outbound.ErrObjectNotFound) {
			return nil, apperr.NotFound(fmt.Sprintf("LFS object %s", req.OID))
		}
		return nil, apperr.Upstream("object verification failed", err)
	}
	if info.Size != req.Size {
		return nil, apperr.Integrity(fmt.Sprintf(
			"stored size %d does not match declared size %d for %s",
			info.Size, req.Size, req.OID))
	}

	return &model.LFSObjectStatus{Size: info.Size, ETag: info.ETag}, nil
}

func (d *Domain) deleteSession(ctx context.Context, uploadID string) {
	if err := d.staging.Delete(ctx, uploadID); err != nil {
		d.logger.Warn("Staging row delete failed",
			zap.String("upload_id", uploadID), zap.Error(err))
	}
}
