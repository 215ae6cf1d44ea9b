package outbound

import (
	"context"
	"time"

	"github.com/kohakuhub/server/internal/model"
)

// Metadata store ports. Find* methods return (nil, nil) when no row matches;
// errors are reserved for infrastructure failures.

// ===== User Store Port =====

// RepoFilter narrows repository listings.
type RepoFilter struct {
	Type      *model.RepoType
	Namespace string
	// Author matches the namespace column (HF "author" query parameter).
	Author string
	// VisibleOwnerIDs adds private repos owned by any of these ids (the
	// viewer and the organizations the viewer belongs to).
	VisibleOwnerIDs []int64
	Limit           int
	Offset          int
}

// UserStore persists users and organizations (one table).
type UserStore interface {
	// Create inserts a new user or organization row.
	Create(ctx context.Context, user *model.User) error

	// Update saves changed user fields.
	Update(ctx context.Context, user *model.User) error

	// FindByID finds a user by id.
	FindByID(ctx context.Context, id int64) (*model.User, error)

	// FindByUsername finds a user by exact username.
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// FindByNormalizedName finds a user by normalized name.
	FindByNormalizedName(ctx context.Context, normalized string) (*model.User, error)

	// AddUsedBytes atomically adjusts one visibility ledger.
	AddUsedBytes(ctx context.Context, userID int64, private bool, delta int64) error

	// SetUsedBytes overwrites one visibility ledger.
	SetUsedBytes(ctx context.Context, userID int64, private bool, used int64) error

	// OrgRole returns the member role of userID inside orgID, if any.
	OrgRole(ctx context.Context, userID, orgID int64) (model.OrgRole, bool, error)

	// ListOrgsOf lists organizations the user belongs to.
	ListOrgsOf(ctx context.Context, userID int64) ([]*model.User, error)

	// Counts returns (users, organizations) totals.
	Counts(ctx context.Context) (int64, int64, error)
}

// TokenStore reads API tokens written by the auth service.
type TokenStore interface {
	// FindByHash finds a token row by its SHA3-512 hex hash.
	FindByHash(ctx context.Context, hash string) (*model.Token, error)

	// Touch records a use of the token.
	Touch(ctx context.Context, tokenID int64, when time.Time) error
}

// ===== Repository Store Port =====

// RepoStore persists repository catalog rows.
type RepoStore interface {
	// Create inserts a repository row.
	Create(ctx context.Context, repo *model.Repository) error

	// Update saves changed repository fields.
	Update(ctx context.Context, repo *model.Repository) error

	// FindByID finds a repository by numeric id.
	FindByID(ctx context.Context, id int64) (*model.Repository, error)

	// Find finds a repository by (type, namespace, name).
	Find(ctx context.Context, repoType model.RepoType, namespace, name string) (*model.Repository, error)

	// List lists repositories per filter, newest first.
	List(ctx context.Context, filter RepoFilter) ([]*model.Repository, error)

	// Rename atomically updates namespace/name/full id and the denormalized
	// owner on the repo and its files.
	Rename(ctx context.Context, repoID int64, namespace, name, fullID string, ownerID int64) error

	// DeleteCascade removes the repository row and every dependent row
	// (files, commits, LFS history, staging uploads) in one transaction.
	DeleteCascade(ctx context.Context, repoID int64) error

	// SetUsedBytes overwrites the repository usage counter.
	SetUsedBytes(ctx context.Context, repoID, used int64) error

	// IncrementDownloads bumps the download counter.
	IncrementDownloads(ctx context.Context, repoID int64) error

	// SumUsedByNamespace sums used bytes over a namespace's repos of one
	// visibility class.
	SumUsedByNamespace(ctx context.Context, namespace string, private bool) (int64, error)

	// CountByType returns repository totals per type.
	CountByType(ctx context.Context) (map[model.RepoType]int64, error)

	// TotalUsedBytes sums usage across every repository.
	TotalUsedBytes(ctx context.Context) (int64, error)
}

// ===== File Store Port =====

// FileStore persists the per-path catalog.
type FileStore interface {
	// Upsert inserts or updates the row keyed by (repository, path).
	Upsert(ctx context.Context, file *model.File) error

	// Find returns the row at (repoID, path) regardless of deletion state.
	Find(ctx context.Context, repoID int64, path string) (*model.File, error)

	// FindActiveLFS finds any live LFS row with the oid and size, across
	// all repositories (the blob store is global).
	FindActiveLFS(ctx context.Context, sha256 string, size int64) (*model.File, error)

	// FindActiveLFSInRepo finds a live LFS row by oid inside one repo.
	FindActiveLFSInRepo(ctx context.Context, repoID int64, sha256 string) (*model.File, error)

	// CountActiveLFSRefs counts live LFS rows referencing the oid anywhere.
	CountActiveLFSRefs(ctx context.Context, sha256 string) (int64, error)

	// ListActive lists live rows of a repository.
	ListActive(ctx context.Context, repoID int64, limit, offset int) ([]*model.File, error)

	// ListActiveByPrefix lists live rows under a path prefix.
	ListActiveByPrefix(ctx context.Context, repoID int64, prefix string) ([]*model.File, error)

	// SoftDelete tombstones the row at (repoID, path).
	SoftDelete(ctx context.Context, repoID int64, path string) error

	// SoftDeleteByPrefix tombstones every live row under prefix.
	SoftDeleteByPrefix(ctx context.Context, repoID int64, prefix string) (int64, error)

	// DeleteHard removes the row entirely (table resync paths only).
	DeleteHard(ctx context.Context, repoID int64, path string) error

	// SumActiveSize sums sizes of live rows.
	SumActiveSize(ctx context.Context, repoID int64) (int64, error)
}

// ===== Commit Store Port =====

// CommitStore persists hub-side commit records.
type CommitStore interface {
	// Create inserts a commit record.
	Create(ctx context.Context, commit *model.Commit) error

	// FindByCommitID finds a record by versioned-store commit id.
	FindByCommitID(ctx context.Context, repoID int64, commitID string) (*model.Commit, error)

	// FindByCommitIDs batch-resolves records for history enrichment.
	FindByCommitIDs(ctx context.Context, repoID int64, commitIDs []string) (map[string]*model.Commit, error)
}

// ===== LFS History Store Port =====

// LFSHistoryStore persists the append-only LFS usage log.
type LFSHistoryStore interface {
	// Insert appends one usage row.
	Insert(ctx context.Context, row *model.LFSObjectHistory) error

	// ListByRepoPath lists rows for (repo, path), newest first.
	ListByRepoPath(ctx context.Context, repoID int64, path string) ([]*model.LFSObjectHistory, error)

	// ListByCommit lists rows recorded for one commit of a repo.
	ListByCommit(ctx context.Context, repoID int64, commitID string) ([]*model.LFSObjectHistory, error)

	// DistinctOIDs lists the distinct oids a repository ever referenced.
	DistinctOIDs(ctx context.Context, repoID int64) ([]string, error)

	// CountByOID counts rows for an oid, globally or within one repo.
	CountByOID(ctx context.Context, sha256 string, repoID *int64) (int64, error)

	// DeleteByOID purges rows for an oid, globally or within one repo.
	DeleteByOID(ctx context.Context, sha256 string, repoID *int64) (int64, error)

	// TotalDistinctSize sums sizes over distinct oids (admin stats).
	TotalDistinctSize(ctx context.Context) (int64, error)
}

// ===== Staging Store Port =====

// StagingStore persists in-flight multipart upload sessions.
type StagingStore interface {
	// Create records a new multipart session.
	Create(ctx context.Context, upload *model.StagingUpload) error

	// FindByUploadID resolves a session by the store's upload id.
	FindByUploadID(ctx context.Context, uploadID string) (*model.StagingUpload, error)

	// Delete removes a finished session.
	Delete(ctx context.Context, uploadID string) error

	// DeleteExpired reaps sessions created before the cutoff.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
