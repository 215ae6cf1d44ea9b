// Package gc implements LFS retention and storage garbage collection: it
// keeps the per-commit LFS usage ledger, prunes old object versions past the
// configured keep window, and reclaims blobs no repository references.
package gc

import (
	"context"

	"go.uber.org/zap"

	"github.com/kohakuhub/server/internal/domain/repo"
	"github.com/kohakuhub/server/internal/model"
	"github.com/kohakuhub/server/internal/port/outbound"
)

// Domain implements LFS history tracking, retention GC and repository
// storage cleanup.
type Domain struct {
	files   outbound.FileStore
	history outbound.LFSHistoryStore
	blobs   outbound.BlobStore
	store   outbound.VersionedStore
	cfg     *Config
	logger  *zap.Logger
}

// NewDomain creates a new gc domain.
func NewDomain(
	files outbound.FileStore,
	history outbound.LFSHistoryStore,
	blobs outbound.BlobStore,
	store outbound.VersionedStore,
	cfg *Config,
	logger *zap.Logger,
) *Domain {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	_ = cfg.Validate()
	return &Domain{
		files:   files,
		history: history,
		blobs:   blobs,
		store:   store,
		cfg:     cfg,
		logger:  logger,
	}
}

// storeName derives the versioned-store repository name.
func (d *Domain) storeName(r *model.Repository) string {
	return repo.LakeFSName(d.cfg.NamespacePrefix, r.RepoType, r.FullID, r.ID)
}

// TrackLFSObject records that commitID referenced the given oid at
// pathInRepo. Every commit appends a row, even when the oid repeats;
// retention reduces by unique oid later, so reverts and merges never count
// as new versions. fileID may be nil when the File row is unknown.
func (d *Domain) TrackLFSObject(ctx context.Context, repoID int64, pathInRepo, sha256 string, size int64, commitID string, fileID *int64) error {
	return d.history.Insert(ctx, &model.LFSObjectHistory{
		RepositoryID: repoID,
		FileID:       fileID,
		PathInRepo:   pathInRepo,
		SHA256:       sha256,
		Size:         size,
		CommitID:     commitID,
	})
}

// OldLFSVersions returns the oids at (repoID, pathInRepo) older than the
// keepK most recent unique ones, newest first. History rows that repeat an
// oid collapse into its first (newest) occurrence.
func (d *Domain) OldLFSVersions(ctx context.Context, repoID int64, pathInRepo string, keepK int) ([]string, error) {
	rows, err := d.history.ListByRepoPath(ctx, repoID, pathInRepo)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(rows))
	unique := make([]string, 0, len(rows))
	for _, row := range rows {
		if _, ok := seen[row.SHA256]; ok {
			continue
		}
		seen[row.SHA256] = struct{}{}
		unique = append(unique, row.SHA256)
	}

	if keepK < 0 {
		keepK = 0
	}
	if len(unique) <= keepK {
		return nil, nil
	}
	return unique[keepK:], nil
}

// CleanupLFSObject deletes the blob for sha256 when nothing references it
// anymore, then purges the matching history rows. With repoID set the purge
// is scoped to that repository; with repoID nil the oid must additionally
// have no history row anywhere. Returns whether the blob was deleted.
func (d *Domain) CleanupLFSObject(ctx context.Context, sha256 string, repoID *int64) (bool, error) {
	refs, err := d.files.CountActiveLFSRefs(ctx, sha256)
	if err != nil {
		return false, err
	}
	if refs > 0 {
		return false, nil
	}

	if repoID == nil {
		count, err := d.history.CountByOID(ctx, sha256, nil)
		if err != nil {
			return false, err
		}
		if count > 0 {
			return false, nil
		}
	}

	if err := d.blobs.Delete(ctx, model.LFSObjectKey(sha256)); err != nil {
		return false, err
	}
	if _, err := d.history.DeleteByOID(ctx, sha256, repoID); err != nil {
		return false, err
	}
	return true, nil
}

// RunGCForFile prunes LFS versions of one path past the repository's
// effective keep window. A disabled AutoGC turns this into a no-op; cleanup
// failures are logged and skipped so one stuck oid never blocks a commit.
func (d *Domain) RunGCForFile(ctx context.Context, r *model.Repository, pathInRepo, commitID string) error {
	if !d.cfg.AutoGC {
		return nil
	}

	rules := r.EffectiveLFSRules(d.cfg.DefaultRules)
	old, err := d.OldLFSVersions(ctx, r.ID, pathInRepo, rules.KeepVersions)
	if err != nil {
		return err
	}

	for _, oid := range old {
		deleted, err := d.CleanupLFSObject(ctx, oid, &r.ID)
		if err != nil {
			d.logger.Warn("lfs cleanup failed",
				zap.String("repo", r.FullID),
				zap.String("path", pathInRepo),
				zap.String("oid", oid),
				zap.Error(err))
			continue
		}
		if deleted {
			d.logger.Info("lfs version pruned",
				zap.String("repo", r.FullID),
				zap.String("path", pathInRepo),
				zap.String("oid", oid),
				zap.String("commit", commitID))
		}
	}
	return nil
}

// CleanupRepositoryStorage reclaims everything a deleted repository held:
// its content prefix in the blob store, the blobs of its LFS oids (kept when
// another repository still uses them), and its history rows.
//
// The repo's own File rows are tombstoned before the per-oid pass so they do
// not count as live references during the global cleanup; the caller drops
// the rows for good afterwards.
func (d *Domain) CleanupRepositoryStorage(ctx context.Context, r *model.Repository) error {
	prefix := d.storeName(r) + "/"
	if _, err := d.blobs.DeletePrefix(ctx, prefix); err != nil {
		d.logger.Warn("prefix delete failed",
			zap.String("repo", r.FullID),
			zap.String("prefix", prefix),
			zap.Error(err))
	}

	if _, err := d.files.SoftDeleteByPrefix(ctx, r.ID, ""); err != nil {
		return err
	}

	oids, err := d.history.DistinctOIDs(ctx, r.ID)
	if err != nil {
		return err
	}
	for _, oid := range oids {
		if _, err := d.history.DeleteByOID(ctx, oid, &r.ID); err != nil {
			d.logger.Warn("history purge failed",
				zap.String("repo", r.FullID),
				zap.String("oid", oid),
				zap.Error(err))
			continue
		}
		if _, err := d.CleanupLFSObject(ctx, oid, nil); err != nil {
			d.logger.Warn("lfs cleanup failed",
				zap.String("repo", r.FullID),
				zap.String("oid", oid),
				zap.Error(err))
		}
	}
	return nil
}

// Compile-time checks.
var _ repo.StorageCleaner = (*Domain)(nil)
