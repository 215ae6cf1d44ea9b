// Package lfs implements the Git-LFS batch protocol: it plans uploads and
// downloads against the content-addressed blob store, switching to multipart
// transfers for very large objects. Bytes never pass through the service;
// every action is a presigned URL the client uses directly.
package lfs

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"path"
	"strconv"

	"go.uber.org/zap"

	"github.com/kohakuhub/server/internal/model"
	"github.com/kohakuhub/server/internal/port/outbound"
	apperr "github.com/kohakuhub/server/internal/shared/errors"
)

// maxUploadParts is the S3 part-count ceiling. Chunk size grows as needed so
// no object ever plans more parts than this.
const maxUploadParts = 10000

// QuotaChecker admits or rejects new bytes for a namespace. The repo domain
// satisfies it.
type QuotaChecker interface {
	CheckQuota(ctx context.Context, namespace string, addBytes int64, private bool) error
}

// Domain implements LFS batch planning and multipart session handling.
type Domain struct {
	files   outbound.FileStore
	staging outbound.StagingStore
	blobs   outbound.BlobStore
	quota   QuotaChecker
	cfg     *Config
	logger  *zap.Logger
}

// NewDomain creates a new lfs domain.
func NewDomain(
	files outbound.FileStore,
	staging outbound.StagingStore,
	blobs outbound.BlobStore,
	quota QuotaChecker,
	cfg *Config,
	logger *zap.Logger,
) *Domain {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	_ = cfg.Validate()
	return &Domain{
		files:   files,
		staging: staging,
		blobs:   blobs,
		quota:   quota,
		cfg:     cfg,
		logger:  logger,
	}
}

// lfsEndpoint is the repo's LFS URL prefix, e.g.
// https://hub.example.com/models/org/repo.git/info/lfs.
func (d *Domain) lfsEndpoint(repo *model.Repository) string {
	return fmt.Sprintf("%s/%s/%s.git/info/lfs", d.cfg.BaseURL, repo.RepoType.Plural(), repo.FullID)
}

// Batch plans one LFS batch request. Object-level failures are reported in
// the per-object error stanza; an error return means the whole batch failed.
// The caller has already enforced read or write permission.
func (d *Domain) Batch(ctx context.Context, repo *model.Repository, req *model.LFSBatchRequest, isBrowser bool) (*model.LFSBatchResponse, error) {
	resp := &model.LFSBatchResponse{
		Transfer: "basic",
		Objects:  make([]model.LFSBatchObject, 0, len(req.Objects)),
		HashAlgo: "sha256",
	}

	switch req.Operation {
	case model.LFSOperationUpload:
		// One quota decision covers the whole batch: the client either
		// uploads everything or nothing useful.
		var total int64
		for _, obj := range req.Objects {
			if obj.Size > 0 {
				total += obj.Size
			}
		}
		if err := d.quota.CheckQuota(ctx, repo.Namespace, total, repo.Private); err != nil {
			var appErr *apperr.AppError
			if !stderrors.As(err, &appErr) || appErr.Code != apperr.CodeQuotaExceeded {
				return nil, err
			}
			for _, obj := range req.Objects {
				resp.Objects = append(resp.Objects, model.LFSBatchObject{
					OID:  obj.OID,
					Size: obj.Size,
					Error: &model.LFSObjectError{
						Code:    413,
						Message: appErr.Message,
					},
				})
			}
			return resp, nil
		}
		revision := ""
		if req.Ref != nil {
			revision = req.Ref.Name
		}
		for _, obj := range req.Objects {
			resp.Objects = append(resp.Objects, d.planUpload(ctx, repo, obj, revision, isBrowser))
		}

	case model.LFSOperationDownload:
		for _, obj := range req.Objects {
			resp.Objects = append(resp.Objects, d.planDownload(ctx, repo, obj))
		}

	default:
		return nil, apperr.BadRequest(fmt.Sprintf("unsupported LFS operation %q", req.Operation))
	}

	return resp, nil
}

// planUpload plans the transfer of one object: skip when the content is
// already present, multipart above the threshold, single presigned PUT
// otherwise.
func (d *Domain) planUpload(ctx context.Context, repo *model.Repository, obj model.LFSObjectSpec, revision string, isBrowser bool) model.LFSBatchObject {
	out := model.LFSBatchObject{OID: obj.OID, Size: obj.Size}

	if !model.IsValidLFSOID(obj.OID) {
		out.Error = &model.LFSObjectError{Code: 422, Message: "oid must be a lowercase hex sha256"}
		return out
	}
	if obj.Size < 0 {
		out.Error = &model.LFSObjectError{Code: 422, Message: "size must be non-negative"}
		return out
	}

	key := model.LFSObjectKey(obj.OID)

	// The store is content-addressed and global: bytes already present
	// under this oid never need a second upload, whichever repo wrote
	// them.
	exists, err := d.blobs.Exists(ctx, key)
	if err != nil {
		d.logger.Warn("LFS existence probe failed",
			zap.String("oid", obj.OID), zap.Error(err))
		out.Error = &model.LFSObjectError{Code: 500, Message: "internal error"}
		return out
	}
	if !exists {
		file, ferr := d.files.FindActiveLFS(ctx, obj.OID, obj.Size)
		if ferr != nil {
			out.Error = &model.LFSObjectError{Code: 500, Message: "internal error"}
			return out
		}
		exists = file != nil
	}
	if exists {
		// No actions: the client skips the upload.
		return out
	}

	if obj.Size > d.cfg.MultipartThresholdBytes {
		return d.planMultipart(ctx, repo, obj, key, revision)
	}
	return d.planSinglePut(ctx, repo, obj, key, isBrowser)
}

// planSinglePut presigns one PUT whose signature pins the content hash, so
// the store itself rejects bytes that do not match the oid.
func (d *Domain) planSinglePut(ctx context.Context, repo *model.Repository, obj model.LFSObjectSpec, key string, isBrowser bool) model.LFSBatchObject {
	out := model.LFSBatchObject{OID: obj.OID, Size: obj.Size}

	raw, err := hex.DecodeString(obj.OID)
	if err != nil {
		out.Error = &model.LFSObjectError{Code: 422, Message: "oid must be a lowercase hex sha256"}
		return out
	}

	opts := outbound.PresignPutOptions{
		Expires:        d.cfg.UploadExpiry,
		ChecksumSHA256: base64.StdEncoding.EncodeToString(raw),
	}
	if isBrowser {
		// Browsers send Content-Type unconditionally, so it must be part
		// of the signature or the store rejects the request.
		opts.ContentType = "application/octet-stream"
	}

	presigned, err := d.blobs.PresignPut(ctx, key, opts)
	if err != nil {
		d.logger.Warn("LFS upload presign failed",
			zap.String("oid", obj.OID), zap.Error(err))
		out.Error = &model.LFSObjectError{Code: 500, Message: "failed to generate upload URL"}
		return out
	}

	expiresIn := int(d.cfg.UploadExpiry.Seconds())
	out.Actions = map[string]*model.LFSAction{
		"upload": {
			Href:      presigned.URL,
			Header:    presigned.Headers,
			ExpiresIn: expiresIn,
		},
		"verify": {
			Href:      d.lfsEndpoint(repo) + "/verify",
			ExpiresIn: expiresIn,
		},
	}
	return out
}

// planMultipart opens a multipart session, presigns every part and records
// a staging row so completion can recover the key and expected digest from
// the upload id alone.
func (d *Domain) planMultipart(ctx context.Context, repo *model.Repository, obj model.LFSObjectSpec, key, revision string) model.LFSBatchObject {
	out := model.LFSBatchObject{OID: obj.OID, Size: obj.Size}

	chunk := d.chunkSize(obj.Size)
	numParts := int32((obj.Size + chunk - 1) / chunk)

	uploadID, err := d.blobs.CreateMultipart(ctx, key)
	if err != nil {
		d.logger.Warn("LFS multipart create failed",
			zap.String("oid", obj.OID), zap.Error(err))
		out.Error = &model.LFSObjectError{Code: 500, Message: "failed to start multipart upload"}
		return out
	}

	// Part URLs travel in the header map under their part numbers; the
	// chunk_size entry is how clients recognize a multipart plan.
	header := make(map[string]string, int(numParts)+2)
	for part := int32(1); part <= numParts; part++ {
		presigned, perr := d.blobs.PresignPart(ctx, key, uploadID, part, d.cfg.UploadExpiry)
		if perr != nil {
			d.logger.Warn("LFS part presign failed",
				zap.String("oid", obj.OID), zap.Int32("part", part), zap.Error(perr))
			d.abortMultipart(ctx, key, uploadID)
			out.Error = &model.LFSObjectError{Code: 500, Message: "failed to generate upload URL"}
			return out
		}
		header[strconv.Itoa(int(part))] = presigned.URL
	}
	header["chunk_size"] = strconv.FormatInt(chunk, 10)
	header["upload_id"] = uploadID

	if err := d.staging.Create(ctx, &model.StagingUpload{
		RepositoryID: repo.ID,
		RepoType:     repo.RepoType,
		Revision:     revision,
		UploadID:     uploadID,
		LFSKey:       key,
		SHA256:       obj.OID,
		Size:         obj.Size,
	}); err != nil {
		d.logger.Error("LFS staging record failed",
			zap.String("oid", obj.OID), zap.Error(err))
		d.abortMultipart(ctx, key, uploadID)
		out.Error = &model.LFSObjectError{Code: 500, Message: "internal error"}
		return out
	}

	expiresIn := int(d.cfg.UploadExpiry.Seconds())
	out.Actions = map[string]*model.LFSAction{
		"upload": {
			Href:      d.lfsEndpoint(repo) + "/complete/" + uploadID,
			Header:    header,
			ExpiresIn: expiresIn,
		},
		"verify": {
			Href:      d.lfsEndpoint(repo) + "/verify",
			ExpiresIn: expiresIn,
		},
	}
	return out
}

// chunkSize returns the part size for an object, growing the configured
// chunk (rounded up to a whole MiB) when the object would exceed the store
// part limit.
func (d *Domain) chunkSize(size int64) int64 {
	chunk := d.cfg.MultipartChunkBytes
	if (size+chunk-1)/chunk <= maxUploadParts {
		return chunk
	}
	const mib = int64(1 << 20)
	chunk = (size + maxUploadParts - 1) / maxUploadParts
	return (chunk + mib - 1) / mib * mib
}

func (d *Domain) abortMultipart(ctx context.Context, key, uploadID string) {
	if err := d.blobs.AbortMultipart(ctx, key, uploadID); err != nil {
		d.logger.Warn("LFS multipart abort failed",
			zap.String("key", key), zap.String("upload_id", uploadID), zap.Error(err))
	}
}

// planDownload presigns a GET for one object the repository references. An
// oid the repository never committed is a per-object 404, even when the
// global store happens to hold it.
func (d *Domain) planDownload(ctx context.Context, repo *model.Repository, obj model.LFSObjectSpec) model.LFSBatchObject {
	out := model.LFSBatchObject{OID: obj.OID, Size: obj.Size}

	file, err := d.files.FindActiveLFSInRepo(ctx, repo.ID, obj.OID)
	if err != nil {
		out.Error = &model.LFSObjectError{Code: 500, Message: "internal error"}
		return out
	}
	if file == nil {
		out.Error = &model.LFSObjectError{Code: 404, Message: "object not found"}
		return out
	}
	out.Size = file.Size

	presigned, err := d.blobs.PresignGet(ctx, model.LFSObjectKey(obj.OID), outbound.PresignGetOptions{
		Expires:          d.cfg.DownloadExpiry,
		DownloadFilename: path.Base(file.PathInRepo),
	})
	if err != nil {
		d.logger.Warn("LFS download presign failed",
			zap.String("oid", obj.OID), zap.Error(err))
		out.Error = &model.LFSObjectError{Code: 500, Message: "failed to generate download URL"}
		return out
	}

	out.Actions = map[string]*model.LFSAction{
		"download": {
			Href:      presigned.URL,
			ExpiresIn: int(d.cfg.DownloadExpiry.Seconds()),
		},
	}
	return out
}
