package model

import (
	"path"
	"strings"
	"time"
)

// ===== Repository Types =====

// RepoType represents the kind of repository.
type RepoType string

const (
	RepoTypeModel   RepoType = "model"
	RepoTypeDataset RepoType = "dataset"
	RepoTypeSpace   RepoType = "space"
)

// IsValid reports whether the type is one of the known kinds.
func (t RepoType) IsValid() bool {
	switch t {
	case RepoTypeModel, RepoTypeDataset, RepoTypeSpace:
		return true
	}
	return false
}

// Plural returns the URL path segment for the type ("models", ...).
func (t RepoType) Plural() string {
	return string(t) + "s"
}

// RepoTypeFromPlural maps a URL path segment back to a RepoType.
func RepoTypeFromPlural(plural string) (RepoType, bool) {
	switch plural {
	case "models":
		return RepoTypeModel, true
	case "datasets":
		return RepoTypeDataset, true
	case "spaces":
		return RepoTypeSpace, true
	}
	return "", false
}

// ===== Repository Entity =====

// Repository is the catalog row for one hub repository. The versioned store
// keeps the actual content under a name derived from (type, full id, ID), so
// the numeric ID is part of the external storage identity.
type Repository struct {
	ID                int64     `json:"id" gorm:"primaryKey"`
	RepoType          RepoType  `json:"repo_type" gorm:"not null;uniqueIndex:idx_repo_type_ns_name"`
	Namespace         string    `json:"namespace" gorm:"not null;uniqueIndex:idx_repo_type_ns_name;index"`
	Name              string    `json:"name" gorm:"not null;uniqueIndex:idx_repo_type_ns_name"`
	FullID            string    `json:"full_id" gorm:"not null;index"`
	Private           bool      `json:"private" gorm:"default:false"`
	OwnerID           int64     `json:"owner_id" gorm:"not null;index"`
	QuotaBytes        *int64    `json:"quota_bytes"`
	UsedBytes         int64     `json:"used_bytes" gorm:"default:0"`
	Downloads         int64     `json:"downloads" gorm:"default:0"`
	LFSThresholdBytes *int64    `json:"lfs_threshold_bytes"`
	LFSSuffixPatterns []string  `json:"lfs_suffix_patterns" gorm:"serializer:json"`
	LFSKeepVersions   *int      `json:"lfs_keep_versions"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// TableName returns the database table name.
func (Repository) TableName() string {
	return "repositories"
}

// ===== LFS Rules =====

// LFSRules is the resolved per-repository LFS policy: which uploads must go
// through LFS and how many historical versions per path GC keeps.
type LFSRules struct {
	ThresholdBytes int64
	SuffixPatterns []string
	KeepVersions   int
}

// EffectiveLFSRules resolves the repository's policy with precedence
// repo override -> supplied defaults.
func (r *Repository) EffectiveLFSRules(defaults LFSRules) LFSRules {
	rules := defaults
	if r.LFSThresholdBytes != nil {
		rules.ThresholdBytes = *r.LFSThresholdBytes
	}
	if len(r.LFSSuffixPatterns) > 0 {
		rules.SuffixPatterns = r.LFSSuffixPatterns
	}
	if r.LFSKeepVersions != nil {
		rules.KeepVersions = *r.LFSKeepVersions
	}
	return rules
}

// ShouldUseLFS reports whether a file at pathInRepo with the given size must
// be stored through LFS. Size is strictly greater-than: a file at exactly
// the threshold stays regular.
func (rules LFSRules) ShouldUseLFS(pathInRepo string, size int64) bool {
	if size > rules.ThresholdBytes {
		return true
	}
	base := path.Base(pathInRepo)
	for _, pattern := range rules.SuffixPatterns {
		if strings.HasPrefix(pattern, ".") {
			if strings.HasSuffix(base, pattern) {
				return true
			}
			continue
		}
		if ok, err := path.Match(pattern, base); err == nil && ok {
			return true
		}
	}
	return false
}
