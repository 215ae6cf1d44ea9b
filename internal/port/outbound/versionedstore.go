package outbound

import (
	"context"
	"time"
)

// ===== Versioned Store Port =====

// Path types reported by the versioned store.
const (
	PathTypeObject       = "object"
	PathTypeCommonPrefix = "common_prefix"
)

// Diff entry types.
const (
	DiffAdded   = "added"
	DiffRemoved = "removed"
	DiffChanged = "changed"
)

// Merge strategies.
const (
	MergeStrategyDefault    = ""
	MergeStrategySourceWins = "source-wins"
	MergeStrategyDestWins   = "dest-wins"
)

// ObjectStat describes one object at a ref.
type ObjectStat struct {
	Path            string
	PathType        string
	PhysicalAddress string
	Checksum        string
	SizeBytes       int64
	Mtime           time.Time
	ContentType     string
}

// CommitRecord is a commit as the versioned store reports it.
type CommitRecord struct {
	ID           string
	Message      string
	Committer    string
	CreationDate time.Time
	Parents      []string
	Metadata     map[string]string
}

// DiffEntry is one changed path between two refs.
type DiffEntry struct {
	Path      string
	PathType  string
	Type      string
	SizeBytes int64
}

// ListOptions pages an object listing.
type ListOptions struct {
	Prefix    string
	Delimiter string
	After     string
	Amount    int
}

// LogOptions pages a commit log. Objects, when set, restricts the log to
// commits that touched those paths.
type LogOptions struct {
	After   string
	Amount  int
	Objects []string
}

// DiffOptions pages a ref diff.
type DiffOptions struct {
	Prefix string
	After  string
	Amount int
}

// MergeOptions controls a merge.
type MergeOptions struct {
	Message  string
	Metadata map[string]string
	Strategy string
}

// ObjectPage is one page of an object listing.
type ObjectPage struct {
	Objects   []ObjectStat
	NextAfter string
	HasMore   bool
}

// CommitPage is one page of a commit log.
type CommitPage struct {
	Commits   []CommitRecord
	NextAfter string
	HasMore   bool
}

// DiffPage is one page of a ref diff.
type DiffPage struct {
	Entries   []DiffEntry
	NextAfter string
	HasMore   bool
}

// VersionedStore wraps the remote versioning layer (LakeFS). All methods
// block on network I/O and honor ctx; implementations retry transient
// failures and surface ErrNotFound / ErrConflict / ErrUpstream.
type VersionedStore interface {
	// CreateRepository creates a repo whose content lives under the given
	// storage namespace, with an initial default branch.
	CreateRepository(ctx context.Context, name, storageNamespace, defaultBranch string) error

	// DeleteRepository removes the repo record (content cleanup is the
	// caller's problem).
	DeleteRepository(ctx context.Context, name string) error

	// CreateBranch creates a branch at sourceRef.
	CreateBranch(ctx context.Context, repo, name, sourceRef string) error

	// DeleteBranch removes a branch.
	DeleteBranch(ctx context.Context, repo, name string) error

	// GetBranchHead resolves a branch to its current commit id.
	GetBranchHead(ctx context.Context, repo, branch string) (string, error)

	// CreateTag pins ref under a tag name and returns the commit id.
	CreateTag(ctx context.Context, repo, tag, ref string) (string, error)

	// DeleteTag removes a tag.
	DeleteTag(ctx context.Context, repo, tag string) error

	// ListObjects lists objects at ref, paginated.
	ListObjects(ctx context.Context, repo, ref string, opts ListOptions) (*ObjectPage, error)

	// StatObject returns metadata for one path at ref.
	StatObject(ctx context.Context, repo, ref, path string) (*ObjectStat, error)

	// GetObject returns the bytes for one path at ref.
	GetObject(ctx context.Context, repo, ref, path string) ([]byte, error)

	// UploadObject stages new content for path on branch.
	UploadObject(ctx context.Context, repo, branch, path string, content []byte) (*ObjectStat, error)

	// LinkPhysicalAddress registers an existing blob (s3://bucket/key) as
	// the content of path on branch without copying bytes.
	LinkPhysicalAddress(ctx context.Context, repo, branch, path, physicalAddress, checksum string, sizeBytes int64) (*ObjectStat, error)

	// DeleteObject unstages/removes path on branch.
	DeleteObject(ctx context.Context, repo, branch, path string) error

	// Commit commits staged changes on branch.
	Commit(ctx context.Context, repo, branch, message string, metadata map[string]string) (*CommitRecord, error)

	// GetCommit fetches one commit by id.
	GetCommit(ctx context.Context, repo, commitID string) (*CommitRecord, error)

	// LogCommits walks history from ref, newest first, paginated.
	LogCommits(ctx context.Context, repo, ref string, opts LogOptions) (*CommitPage, error)

	// DiffRefs diffs rightRef against leftRef, paginated.
	DiffRefs(ctx context.Context, repo, leftRef, rightRef string, opts DiffOptions) (*DiffPage, error)

	// Revert creates a commit undoing ref on branch; conflicts surface as
	// ErrConflict.
	Revert(ctx context.Context, repo, branch, ref string, parentNumber int) error

	// Merge merges sourceRef into destBranch and returns the merge commit
	// id; conflicts surface as ErrConflict.
	Merge(ctx context.Context, repo, sourceRef, destBranch string, opts MergeOptions) (string, error)
}
