package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kohakuhub/server/internal/model"
	"github.com/kohakuhub/server/internal/port/outbound"
	apperr "github.com/kohakuhub/server/internal/shared/errors"
)

// StorageCleaner removes a deleted repository's blobs and LFS bookkeeping.
// The gc domain satisfies it.
type StorageCleaner interface {
	CleanupRepositoryStorage(ctx context.Context, repo *model.Repository) error
}

// Domain implements repository naming, permissions, quota and lifecycle.
type Domain struct {
	repos   outbound.RepoStore
	users   outbound.UserStore
	files   outbound.FileStore
	commits outbound.CommitStore
	store   outbound.VersionedStore
	blobs   outbound.BlobStore
	cleaner StorageCleaner
	cfg     *Config
	logger  *zap.Logger
}

// NewDomain creates a new repository domain. cleaner may be nil; repository
// deletion then leaves orphaned blobs behind.
func NewDomain(
	repos outbound.RepoStore,
	users outbound.UserStore,
	files outbound.FileStore,
	commits outbound.CommitStore,
	store outbound.VersionedStore,
	blobs outbound.BlobStore,
	cleaner StorageCleaner,
	cfg *Config,
	logger *zap.Logger,
) *Domain {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	_ = cfg.Validate()
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Domain{
		repos:   repos,
		users:   users,
		files:   files,
		commits: commits,
		store:   store,
		blobs:   blobs,
		cleaner: cleaner,
		cfg:     cfg,
		logger:  logger,
	}
}

// Get finds a repository or reports it missing.
func (d *Domain) Get(ctx context.Context, repoType model.RepoType, namespace, name string) (*model.Repository, error) {
	repo, err := d.repos.Find(ctx, repoType, namespace, name)
	if err != nil {
		return nil, err
	}
	if repo == nil {
		return nil, apperr.RepoNotFound(namespace + "/" + name)
	}
	return repo, nil
}

// StoreName returns the versioned-store repository name for a catalog row.
func (d *Domain) StoreName(repo *model.Repository) string {
	return LakeFSName(d.cfg.NamespacePrefix, repo.RepoType, repo.FullID, repo.ID)
}

// DefaultBranch returns the branch new repositories start with.
func (d *Domain) DefaultBranch() string {
	return d.cfg.DefaultBranch
}

// RepoURL returns the canonical page URL for a repository. Models live at
// the root; other types under their plural segment.
func (d *Domain) RepoURL(repoType model.RepoType, fullID string) string {
	base := strings.TrimRight(d.cfg.BaseURL, "/")
	if repoType == model.RepoTypeModel {
		return base + "/" + fullID
	}
	return base + "/" + repoType.Plural() + "/" + fullID
}

// storageNamespace is the blob-store location backing one store name.
func (d *Domain) storageNamespace(storeName string) string {
	return fmt.Sprintf("s3://%s/%s", d.blobs.Bucket(), storeName)
}

// ===== Lifecycle =====

// Create registers a repository and provisions its versioned-store backing.
func (d *Domain) Create(ctx context.Context, user *model.User, req *model.CreateRepoRequest) (*model.CreateRepoResponse, error) {
	if user == nil {
		return nil, apperr.NotAuthenticated("")
	}
	if req == nil || req.Name == "" {
		return nil, apperr.BadRequest("name is required")
	}
	if !req.Type.IsValid() {
		return nil, apperr.BadRequest(fmt.Sprintf("invalid repository type %q", req.Type))
	}

	namespace := user.Username
	if req.Organization != nil && *req.Organization != "" {
		namespace = *req.Organization
	}
	if err := ValidateNamespace(namespace); err != nil {
		return nil, err
	}
	if err := ValidateRepoName(req.Name); err != nil {
		return nil, err
	}

	owner, err := d.users.FindByUsername(ctx, namespace)
	if err != nil {
		return nil, err
	}
	if owner == nil {
		return nil, apperr.UserNotFound(namespace)
	}
	if err := d.requireNamespace(ctx, namespace, user, accessWrite); err != nil {
		return nil, err
	}

	fullID := namespace + "/" + req.Name
	existing, err := d.repos.Find(ctx, req.Type, namespace, req.Name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperr.RepoExists(fullID)
	}

	row := &model.Repository{
		RepoType:  req.Type,
		Namespace: namespace,
		Name:      req.Name,
		FullID:    fullID,
		Private:   req.Private,
		OwnerID:   owner.ID,
	}
	if err := d.repos.Create(ctx, row); err != nil {
		return nil, apperr.Internal("failed to create repository", err)
	}

	storeName := d.StoreName(row)
	if err := d.store.CreateRepository(ctx, storeName, d.storageNamespace(storeName), d.cfg.DefaultBranch); err != nil {
		if rbErr := d.repos.DeleteCascade(ctx, row.ID); rbErr != nil {
			d.logger.Error("Repository row rollback failed",
				zap.String("repo", fullID), zap.Error(rbErr))
		}
		return nil, apperr.Upstream("failed to provision repository storage", err)
	}

	d.logger.Info("Repository created",
		zap.String("repo", fullID),
		zap.String("type", string(req.Type)),
		zap.Bool("private", req.Private))

	return &model.CreateRepoResponse{
		URL:    d.RepoURL(req.Type, fullID),
		RepoID: fullID,
	}, nil
}

// Delete removes a repository everywhere: versioned store, blob store and
// catalog. Blob cleanup failures are logged, not surfaced.
func (d *Domain) Delete(ctx context.Context, user *model.User, req *model.DeleteRepoRequest) error {
	if user == nil {
		return apperr.NotAuthenticated("")
	}
	if req == nil || req.Name == "" {
		return apperr.BadRequest("name is required")
	}
	if !req.Type.IsValid() {
		return apperr.BadRequest(fmt.Sprintf("invalid repository type %q", req.Type))
	}

	namespace := user.Username
	if req.Organization != nil && *req.Organization != "" {
		namespace = *req.Organization
	}

	repo, err := d.Get(ctx, req.Type, namespace, req.Name)
	if err != nil {
		return err
	}
	if err := d.CheckRepoDelete(ctx, repo, user); err != nil {
		return err
	}

	storeName := d.StoreName(repo)
	if err := d.store.DeleteRepository(ctx, storeName); err != nil && !errors.Is(err, outbound.ErrNotFound) {
		return apperr.Upstream("failed to delete repository storage", err)
	}

	if d.cleaner != nil {
		if err := d.cleaner.CleanupRepositoryStorage(ctx, repo); err != nil {
			d.logger.Warn("Repository blob cleanup failed",
				zap.String("repo", repo.FullID), zap.Error(err))
		}
	}

	if err := d.repos.DeleteCascade(ctx, repo.ID); err != nil {
		return apperr.Internal("failed to delete repository records", err)
	}

	d.syncNamespaceUsage(ctx, repo.Namespace, repo.Private)

	d.logger.Info("Repository deleted",
		zap.String("repo", repo.FullID),
		zap.String("type", string(repo.RepoType)))
	return nil
}

// Move renames a repository. Store content migrates to the name derived
// from the new identity first, then the catalog renames atomically, then
// old blobs are cleaned up best-effort. A crash between the first two steps
// leaves the store under the new name while the catalog points at the old
// one, which is detectable and reconciled manually.
func (d *Domain) Move(ctx context.Context, user *model.User, req *model.MoveRepoRequest) (*model.OperationResponse, error) {
	if user == nil {
		return nil, apperr.NotAuthenticated("")
	}
	if req == nil || req.FromRepo == "" || req.ToRepo == "" {
		return nil, apperr.BadRequest("fromRepo and toRepo are required")
	}
	if !req.Type.IsValid() {
		return nil, apperr.BadRequest(fmt.Sprintf("invalid repository type %q", req.Type))
	}
	if req.FromRepo == req.ToRepo {
		return nil, apperr.BadRequest("source and destination are the same repository")
	}

	fromNS, fromName, err := ParseFullID(req.FromRepo)
	if err != nil {
		return nil, err
	}
	toNS, toName, err := ParseFullID(req.ToRepo)
	if err != nil {
		return nil, err
	}

	repo, err := d.Get(ctx, req.Type, fromNS, fromName)
	if err != nil {
		return nil, err
	}
	if err := d.CheckRepoDelete(ctx, repo, user); err != nil {
		return nil, err
	}
	if err := d.requireNamespace(ctx, toNS, user, accessWrite); err != nil {
		return nil, err
	}

	newOwner, err := d.users.FindByUsername(ctx, toNS)
	if err != nil {
		return nil, err
	}
	if newOwner == nil {
		return nil, apperr.UserNotFound(toNS)
	}

	existing, err := d.repos.Find(ctx, req.Type, toNS, toName)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperr.RepoExists(req.ToRepo)
	}

	if toNS != fromNS {
		if err := d.CheckQuota(ctx, toNS, repo.UsedBytes, repo.Private); err != nil {
			return nil, err
		}
	}

	newFullID := toNS + "/" + toName
	oldStore := d.StoreName(repo)
	newStore := LakeFSName(d.cfg.NamespacePrefix, repo.RepoType, newFullID, repo.ID)

	if err := d.migrateStore(ctx, repo, oldStore, newStore); err != nil {
		return nil, err
	}

	if err := d.repos.Rename(ctx, repo.ID, toNS, toName, newFullID, newOwner.ID); err != nil {
		d.logger.Error("Catalog rename failed after store migration",
			zap.String("from", repo.FullID),
			zap.String("to", newFullID),
			zap.String("store", newStore),
			zap.Error(err))
		return nil, apperr.Internal("failed to rename repository", err)
	}

	if _, err := d.blobs.DeletePrefix(ctx, oldStore+"/"); err != nil {
		d.logger.Warn("Old repository prefix cleanup failed",
			zap.String("prefix", oldStore+"/"), zap.Error(err))
	}

	d.syncNamespaceUsage(ctx, fromNS, repo.Private)
	d.syncNamespaceUsage(ctx, toNS, repo.Private)

	d.logger.Info("Repository moved",
		zap.String("from", req.FromRepo),
		zap.String("to", newFullID))

	return &model.OperationResponse{
		Success: true,
		Message: fmt.Sprintf("Moved %s to %s", req.FromRepo, newFullID),
		URL:     d.RepoURL(req.Type, newFullID),
	}, nil
}

// Squash collapses a repository's history into a single commit while
// preserving the current tree. Content is staged under a temporary store
// name, the canonical name is dropped and recreated, and the tree is copied
// back. The catalog row never changes.
func (d *Domain) Squash(ctx context.Context, user *model.User, req *model.SquashRepoRequest) (*model.OperationResponse, error) {
	if user == nil {
		return nil, apperr.NotAuthenticated("")
	}
	if req == nil || req.Repo == "" {
		return nil, apperr.BadRequest("repo is required")
	}
	if !req.Type.IsValid() {
		return nil, apperr.BadRequest(fmt.Sprintf("invalid repository type %q", req.Type))
	}

	namespace, name, err := ParseFullID(req.Repo)
	if err != nil {
		return nil, err
	}
	repo, err := d.Get(ctx, req.Type, namespace, name)
	if err != nil {
		return nil, err
	}
	if err := d.CheckRepoDelete(ctx, repo, user); err != nil {
		return nil, err
	}

	branch := d.cfg.DefaultBranch
	storeName := d.StoreName(repo)
	tmpName := LakeFSName(d.cfg.NamespacePrefix, repo.RepoType, repo.FullID+"-squash-tmp", repo.ID)

	// Stage the current tree under the temporary name.
	if err := d.store.CreateRepository(ctx, tmpName, d.storageNamespace(tmpName), branch); err != nil {
		return nil, apperr.Upstream("failed to provision squash staging", err)
	}
	copied, err := d.copyTree(ctx, storeName, tmpName, branch)
	if err != nil {
		d.dropStore(ctx, tmpName)
		return nil, err
	}
	if copied > 0 {
		meta := map[string]string{"squash_source": repo.FullID}
		if _, err := d.store.Commit(ctx, tmpName, branch, "Squash staging", meta); err != nil {
			d.dropStore(ctx, tmpName)
			return nil, apperr.Upstream("failed to stage squashed content", err)
		}
	}

	// Drop the canonical name and its blob prefix, then recreate it. The
	// store releases deleted names asynchronously, so creation is polled.
	if err := d.store.DeleteRepository(ctx, storeName); err != nil && !errors.Is(err, outbound.ErrNotFound) {
		d.dropStore(ctx, tmpName)
		return nil, apperr.Upstream("failed to drop repository history", err)
	}
	if _, err := d.blobs.DeletePrefix(ctx, storeName+"/"); err != nil {
		d.logger.Warn("Squash prefix cleanup failed",
			zap.String("prefix", storeName+"/"), zap.Error(err))
	}
	if err := d.recreateStore(ctx, storeName, branch); err != nil {
		d.logger.Error("Squash recreate failed; content parked",
			zap.String("repo", repo.FullID),
			zap.String("parked", tmpName),
			zap.Error(err))
		return nil, err
	}

	if copied > 0 {
		if _, err := d.copyTree(ctx, tmpName, storeName, branch); err != nil {
			d.logger.Error("Squash restore failed; content parked",
				zap.String("repo", repo.FullID),
				zap.String("parked", tmpName),
				zap.Error(err))
			return nil, err
		}
		meta := map[string]string{"squashed": "true"}
		if _, err := d.store.Commit(ctx, storeName, branch, "Squash repository history", meta); err != nil {
			d.logger.Error("Squash restore commit failed; content parked",
				zap.String("repo", repo.FullID),
				zap.String("parked", tmpName),
				zap.Error(err))
			return nil, apperr.Upstream("failed to commit squashed content", err)
		}
	}

	d.dropStore(ctx, tmpName)
	if _, err := d.blobs.DeletePrefix(ctx, tmpName+"/"); err != nil {
		d.logger.Warn("Squash staging cleanup failed",
			zap.String("prefix", tmpName+"/"), zap.Error(err))
	}

	d.recordSquashCommit(ctx, repo, user, storeName, branch)

	d.logger.Info("Repository squashed", zap.String("repo", repo.FullID))

	return &model.OperationResponse{
		Success: true,
		Message: fmt.Sprintf("Squashed %s", repo.FullID),
		URL:     d.RepoURL(req.Type, repo.FullID),
	}, nil
}

// ===== Store migration =====

// migrateStore copies the default branch of oldStore into a freshly created
// newStore and drops the source. On failure the destination is removed so
// the operation can be retried.
func (d *Domain) migrateStore(ctx context.Context, repo *model.Repository, oldStore, newStore string) error {
	branch := d.cfg.DefaultBranch

	if err := d.store.CreateRepository(ctx, newStore, d.storageNamespace(newStore), branch); err != nil {
		return apperr.Upstream("failed to provision destination storage", err)
	}

	migrated, err := d.copyTree(ctx, oldStore, newStore, branch)
	if err != nil {
		d.dropStore(ctx, newStore)
		return err
	}
	if migrated > 0 {
		meta := map[string]string{"migrated_from": repo.FullID}
		if _, err := d.store.Commit(ctx, newStore, branch, fmt.Sprintf("Migrate from %s", repo.FullID), meta); err != nil {
			d.dropStore(ctx, newStore)
			return apperr.Upstream("failed to commit migrated content", err)
		}
	}

	if err := d.store.DeleteRepository(ctx, oldStore); err != nil && !errors.Is(err, outbound.ErrNotFound) {
		d.logger.Warn("Source store delete failed after migration",
			zap.String("store", oldStore), zap.Error(err))
	}
	return nil
}

// copyTree recreates every object of src's branch in dst. LFS objects are
// re-linked by physical address; regular objects are copied through memory.
// It returns how many objects it moved.
func (d *Domain) copyTree(ctx context.Context, src, dst, branch string) (int, error) {
	migrated := 0
	after := ""
	for {
		page, err := d.store.ListObjects(ctx, src, branch, outbound.ListOptions{
			After:  after,
			Amount: d.cfg.MigratePageSize,
		})
		if err != nil {
			return migrated, apperr.Upstream("failed to list source objects", err)
		}

		for _, obj := range page.Objects {
			if obj.PathType != outbound.PathTypeObject {
				continue
			}
			key, ok := model.BlobKeyFromAddress(obj.PhysicalAddress)
			if ok && model.IsLFSKey(key) {
				if _, err := d.store.LinkPhysicalAddress(ctx, dst, branch, obj.Path, obj.PhysicalAddress, obj.Checksum, obj.SizeBytes); err != nil {
					return migrated, apperr.Upstream(fmt.Sprintf("failed to link %s", obj.Path), err)
				}
			} else {
				content, err := d.store.GetObject(ctx, src, branch, obj.Path)
				if err != nil {
					return migrated, apperr.Upstream(fmt.Sprintf("failed to read %s", obj.Path), err)
				}
				if _, err := d.store.UploadObject(ctx, dst, branch, obj.Path, content); err != nil {
					return migrated, apperr.Upstream(fmt.Sprintf("failed to copy %s", obj.Path), err)
				}
			}
			migrated++
		}

		if !page.HasMore {
			return migrated, nil
		}
		after = page.NextAfter
	}
}

// recreateStore polls repository creation until the store releases the name.
func (d *Domain) recreateStore(ctx context.Context, storeName, branch string) error {
	var last error
	for attempt := 0; attempt < d.cfg.SquashPollAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d.cfg.SquashPollInterval):
			}
		}
		last = d.store.CreateRepository(ctx, storeName, d.storageNamespace(storeName), branch)
		if last == nil {
			return nil
		}
	}
	return apperr.Upstream("storage did not release the repository name", last)
}

// dropStore deletes a store name, best-effort.
func (d *Domain) dropStore(ctx context.Context, storeName string) {
	if err := d.store.DeleteRepository(ctx, storeName); err != nil && !errors.Is(err, outbound.ErrNotFound) {
		d.logger.Warn("Store cleanup failed", zap.String("store", storeName), zap.Error(err))
	}
}

// recordSquashCommit writes the catalog record for the collapsed history's
// single commit, best-effort.
func (d *Domain) recordSquashCommit(ctx context.Context, repo *model.Repository, user *model.User, storeName, branch string) {
	head, err := d.store.GetBranchHead(ctx, storeName, branch)
	if err != nil {
		d.logger.Warn("Squash head lookup failed",
			zap.String("repo", repo.FullID), zap.Error(err))
		return
	}
	row := &model.Commit{
		CommitID:     head,
		RepositoryID: repo.ID,
		RepoType:     repo.RepoType,
		Branch:       branch,
		AuthorID:     &user.ID,
		Username:     user.Username,
		Message:      "Squash repository history",
	}
	if err := d.commits.Create(ctx, row); err != nil {
		d.logger.Warn("Squash commit record failed",
			zap.String("repo", repo.FullID), zap.Error(err))
	}
}
