// Package commit implements the hub commit engine: it streams an NDJSON
// operation list, applies each operation to the versioned store and the file
// catalog, commits the branch, and runs the post-commit bookkeeping (commit
// record, LFS history, retention GC, usage ledgers).
package commit

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kohakuhub/server/internal/domain/repo"
	"github.com/kohakuhub/server/internal/model"
	"github.com/kohakuhub/server/internal/port/outbound"
	apperr "github.com/kohakuhub/server/internal/shared/errors"
)

// scannerInitialBuffer is the starting NDJSON line buffer; it grows up to
// the configured body cap.
const scannerInitialBuffer = 1024 * 1024

// LFSTracker records LFS usage history and prunes old versions. The gc
// domain satisfies it.
type LFSTracker interface {
	TrackLFSObject(ctx context.Context, repoID int64, pathInRepo, sha256 string, size int64, commitID string, fileID *int64) error
	RunGCForFile(ctx context.Context, r *model.Repository, pathInRepo, commitID string) error
}

// UsageSync rebuilds usage ledgers after content changes. The repo domain
// satisfies it.
type UsageSync interface {
	RecalculateUsed(ctx context.Context, repo *model.Repository) error
}

// Domain implements the commit engine.
type Domain struct {
	files   outbound.FileStore
	commits outbound.CommitStore
	store   outbound.VersionedStore
	blobs   outbound.BlobStore
	tracker LFSTracker
	usage   UsageSync
	cfg     *Config
	logger  *zap.Logger
}

// NewDomain creates a new commit domain.
func NewDomain(
	files outbound.FileStore,
	commits outbound.CommitStore,
	store outbound.VersionedStore,
	blobs outbound.BlobStore,
	tracker LFSTracker,
	usage UsageSync,
	cfg *Config,
	logger *zap.Logger,
) *Domain {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	_ = cfg.Validate()
	return &Domain{
		files:   files,
		commits: commits,
		store:   store,
		blobs:   blobs,
		tracker: tracker,
		usage:   usage,
		cfg:     cfg,
		logger:  logger,
	}
}

// pendingLFS is one LFS reference awaiting post-commit history tracking.
// oldSHA256 is set only when the operation replaced live content at the
// path, which is what makes the path eligible for retention GC.
type pendingLFS struct {
	path      string
	oid       string
	size      int64
	fileID    *int64
	oldSHA256 string
}

// commitState accumulates the effect of one NDJSON body.
type commitState struct {
	repo         *model.Repository
	storeName    string
	branch       string
	header       header
	filesChanged bool
	pending      []pendingLFS
}

// Commit streams one NDJSON body and applies it to the branch. The caller
// has already resolved the repository and enforced write permission.
func (d *Domain) Commit(ctx context.Context, user *model.User, r *model.Repository, branch string, body io.Reader) (*model.CommitResponse, error) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, scannerInitialBuffer), d.cfg.MaxBodyBytes)

	st := &commitState{
		repo:      r,
		storeName: repo.LakeFSName(d.cfg.NamespacePrefix, r.RepoType, r.FullID, r.ID),
		branch:    branch,
	}

	headerSeen := false
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var env operationEnvelope
		if err := json.Unmarshal(line, &env); err != nil {
			return nil, apperr.BadRequest(fmt.Sprintf("malformed NDJSON line: %v", err))
		}

		if !headerSeen {
			if env.Key != "header" {
				return nil, apperr.BadRequest("commit body must start with a header line")
			}
			if err := json.Unmarshal(env.Value, &st.header); err != nil {
				return nil, apperr.BadRequest(fmt.Sprintf("malformed commit header: %v", err))
			}
			headerSeen = true
			continue
		}

		decode := func(v any) error {
			if uerr := json.Unmarshal(env.Value, v); uerr != nil {
				return apperr.BadRequest(fmt.Sprintf("malformed %s operation: %v", env.Key, uerr))
			}
			return nil
		}

		var err error
		switch env.Key {
		case "header":
			err = apperr.BadRequest("duplicate header line")
		case "file":
			var op fileOp
			if err = decode(&op); err == nil {
				err = d.applyFile(ctx, st, &op)
			}
		case "lfsFile":
			var op lfsFileOp
			if err = decode(&op); err == nil {
				err = d.applyLFSFile(ctx, st, &op)
			}
		case "deletedFile":
			var op deletedFileOp
			if err = decode(&op); err == nil {
				err = d.applyDeletedFile(ctx, st, &op)
			}
		case "deletedFolder":
			var op deletedFolderOp
			if err = decode(&op); err == nil {
				err = d.applyDeletedFolder(ctx, st, &op)
			}
		case "copyFile":
			var op copyFileOp
			if err = decode(&op); err == nil {
				err = d.applyCopyFile(ctx, st, &op)
			}
		default:
			// Unknown operation keys are ignored.
		}
		if err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		if stderrors.Is(err, bufio.ErrTooLong) {
			return nil, apperr.BadRequest("commit line exceeds the body size limit")
		}
		return nil, apperr.BadRequest(fmt.Sprintf("failed to read commit body: %v", err))
	}
	if !headerSeen {
		return nil, apperr.BadRequest("commit body must start with a header line")
	}

	return d.finalize(ctx, user, st)
}

// finalize commits staged changes and runs post-commit bookkeeping. Once the
// versioned-store commit succeeds the commit exists; bookkeeping failures
// are logged and reconciled later rather than surfaced.
func (d *Domain) finalize(ctx context.Context, user *model.User, st *commitState) (*model.CommitResponse, error) {
	if !st.filesChanged {
		head, err := d.store.GetBranchHead(ctx, st.storeName, st.branch)
		if err != nil {
			return nil, d.storeErr(err, st.branch)
		}
		return d.commitResponse(st.repo, head), nil
	}

	message := strings.TrimSpace(st.header.Summary)
	if message == "" {
		message = "Upload files"
	}
	metadata := map[string]string{}
	if st.header.Description != "" {
		metadata["description"] = st.header.Description
	}

	record, err := d.store.Commit(ctx, st.storeName, st.branch, message, metadata)
	if err != nil {
		return nil, d.storeErr(err, st.branch)
	}

	d.awaitVisibility(ctx, st.storeName, record.ID)

	row := &model.Commit{
		CommitID:     record.ID,
		RepositoryID: st.repo.ID,
		RepoType:     st.repo.RepoType,
		Branch:       st.branch,
		Message:      message,
		Description:  st.header.Description,
	}
	if user != nil {
		row.AuthorID = &user.ID
		row.Username = user.Username
	}
	if err := d.commits.Create(ctx, row); err != nil {
		d.logger.Error("Commit record insert failed",
			zap.String("commit_id", record.ID), zap.Error(err))
	}

	for _, p := range st.pending {
		if err := d.tracker.TrackLFSObject(ctx, st.repo.ID, p.path, p.oid, p.size, record.ID, p.fileID); err != nil {
			d.logger.Error("LFS history insert failed",
				zap.String("path", p.path), zap.String("oid", p.oid), zap.Error(err))
		}
	}
	for _, p := range st.pending {
		if p.oldSHA256 == "" {
			continue
		}
		if err := d.tracker.RunGCForFile(ctx, st.repo, p.path, record.ID); err != nil {
			d.logger.Warn("Retention GC failed",
				zap.String("path", p.path), zap.Error(err))
		}
	}
	if err := d.usage.RecalculateUsed(ctx, st.repo); err != nil {
		d.logger.Warn("Usage recalculation failed",
			zap.Int64("repo_id", st.repo.ID), zap.Error(err))
	}

	d.logger.Info("Commit created",
		zap.String("repo", st.repo.FullID),
		zap.String("branch", st.branch),
		zap.String("commit_id", record.ID),
		zap.Int("lfs_tracked", len(st.pending)))

	return d.commitResponse(st.repo, record.ID), nil
}

// awaitVisibility polls until the commit is readable. The store may take a
// while to propagate large commits; writing history rows against an
// invisible commit would confuse readers racing the poll.
func (d *Domain) awaitVisibility(ctx context.Context, storeName, commitID string) {
	for attempt := 0; attempt < d.cfg.PollAttempts; attempt++ {
		if _, err := d.store.GetCommit(ctx, storeName, commitID); err == nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(d.cfg.PollInterval):
		}
	}
	d.logger.Warn("Commit still not visible after polling",
		zap.String("store", storeName), zap.String("commit_id", commitID))
}

func (d *Domain) commitResponse(r *model.Repository, commitID string) *model.CommitResponse {
	prefix := d.cfg.BaseURL
	if r.RepoType != model.RepoTypeModel {
		prefix += "/" + r.RepoType.Plural()
	}
	return &model.CommitResponse{
		CommitURL: fmt.Sprintf("%s/%s/commit/%s", prefix, r.FullID, commitID),
		CommitOID: commitID,
	}
}

// Preupload classifies candidate files into regular and LFS transfers and
// flags the ones whose identical content is already live at the path.
func (d *Domain) Preupload(ctx context.Context, r *model.Repository, req *model.PreuploadRequest) (*model.PreuploadResponse, error) {
	rules := r.EffectiveLFSRules(d.cfg.DefaultRules)

	out := &model.PreuploadResponse{Files: make([]model.PreuploadResult, 0, len(req.Files))}
	for _, f := range req.Files {
		result := model.PreuploadResult{Path: f.Path, UploadMode: model.UploadModeRegular}
		if rules.ShouldUseLFS(f.Path, f.Size) {
			result.UploadMode = model.UploadModeLFS
		}

		if f.SHA256 != "" {
			existing, err := d.files.Find(ctx, r.ID, f.Path)
			if err != nil {
				return nil, err
			}
			if existing != nil && !existing.IsDeleted && existing.SHA256 == f.SHA256 && existing.Size == f.Size {
				result.ShouldIgnore = true
				result.OID = existing.SHA256
			}
		}

		out.Files = append(out.Files, result)
	}
	return out, nil
}

// storeErr maps versioned-store sentinels onto hub error codes.
func (d *Domain) storeErr(err error, branch string) error {
	switch {
	case stderrors.Is(err, outbound.ErrNotFound):
		return apperr.RevisionNotFound(branch)
	case stderrors.Is(err, outbound.ErrConflict):
		return apperr.Conflict(err.Error())
	default:
		return apperr.Upstream("versioned store operation failed", err)
	}
}

// gitBlobSHA1 hashes content the way git hashes a blob object.
func gitBlobSHA1(content []byte) string {
	h := sha1.New()
	fmt.Fprintf(h, "blob %d\x00", len(content))
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}
