package model

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// lfsKeyPrefix is the content-addressed LFS layout in the blob store. It is
// an external contract: existing deployments have content under it, so the
// shape must never change.
const lfsKeyPrefix = "lfs"

// LFSPointerVersion is the first line of every Git-LFS pointer file.
const LFSPointerVersion = "https://git-lfs.github.com/spec/v1"

var lfsOIDPattern = regexp.MustCompile(`^[a-f0-9]{64}$`)

// IsValidLFSOID reports whether s is a lowercase hex SHA-256.
func IsValidLFSOID(s string) bool {
	return lfsOIDPattern.MatchString(s)
}

// LFSObjectKey returns the blob-store key for an LFS oid, sharded by the
// first four hex characters: lfs/{oid[0:2]}/{oid[2:4]}/{oid}.
func LFSObjectKey(oid string) string {
	if len(oid) < 4 {
		return lfsKeyPrefix + "/" + oid
	}
	return fmt.Sprintf("%s/%s/%s/%s", lfsKeyPrefix, oid[0:2], oid[2:4], oid)
}

// IsLFSKey reports whether a blob-store key lies in the LFS layout.
func IsLFSKey(key string) bool {
	return strings.HasPrefix(key, lfsKeyPrefix+"/")
}

// BlobKeyFromAddress extracts the bucket-relative key from an
// s3://bucket/key physical address.
func BlobKeyFromAddress(address string) (string, bool) {
	rest, ok := strings.CutPrefix(address, "s3://")
	if !ok {
		return "", false
	}
	_, key, ok := strings.Cut(rest, "/")
	if !ok || key == "" {
		return "", false
	}
	return key, true
}

// LFSPointer renders the canonical Git-LFS pointer file for an object.
func LFSPointer(oid string, size int64) string {
	return fmt.Sprintf("version %s\noid sha256:%s\nsize %d\n", LFSPointerVersion, oid, size)
}

// ===== LFS Object History =====

// LFSObjectHistory is one observed usage of an LFS oid by a commit. The
// commit path appends unconditionally; retention GC is the only reader that
// reduces it (by unique oid). FileID is nullable so history survives file
// soft-deletion and repo-path churn.
type LFSObjectHistory struct {
	ID           int64     `json:"id" gorm:"primaryKey"`
	RepositoryID int64     `json:"repository_id" gorm:"not null;index:idx_lfs_hist_repo_path"`
	FileID       *int64    `json:"file_id"`
	PathInRepo   string    `json:"path_in_repo" gorm:"not null;index:idx_lfs_hist_repo_path"`
	SHA256       string    `json:"sha256" gorm:"column:sha256;not null;index"`
	Size         int64     `json:"size"`
	CommitID     string    `json:"commit_id" gorm:"index"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName returns the database table name.
func (LFSObjectHistory) TableName() string {
	return "lfs_object_history"
}

// ===== Staging Uploads =====

// StagingUpload tracks an in-flight multipart LFS upload so the completion
// endpoint can recover the target key and expected oid from the upload id.
type StagingUpload struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	RepositoryID int64     `json:"repository_id" gorm:"not null;index"`
	RepoType     RepoType  `json:"repo_type"`
	Revision     string    `json:"revision"`
	PathInRepo   string    `json:"path_in_repo"`
	UploadID     string    `json:"upload_id" gorm:"uniqueIndex;not null"`
	LFSKey       string    `json:"lfs_key" gorm:"not null"`
	SHA256       string    `json:"sha256" gorm:"column:sha256;not null;index"`
	Size         int64     `json:"size"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName returns the database table name.
func (StagingUpload) TableName() string {
	return "staging_uploads"
}
