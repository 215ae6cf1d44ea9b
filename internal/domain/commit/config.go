package commit

import (
	"time"

	"github.com/kohakuhub/server/internal/model"
)

// Config holds commit engine configuration.
type Config struct {
	// BaseURL is the externally visible service URL used in commit URLs.
	BaseURL string

	// NamespacePrefix prefixes every versioned-store repository name.
	NamespacePrefix string

	// DefaultRules applies to repositories without their own LFS
	// overrides.
	DefaultRules model.LFSRules

	// PollAttempts and PollInterval bound the visibility wait after a
	// versioned-store commit. Large commits can take a while to appear.
	PollAttempts int
	PollInterval time.Duration

	// MaxBodyBytes caps a single NDJSON line (and therefore any inline
	// file payload).
	MaxBodyBytes int

	// DeletePageSize is the listing page size for folder deletions.
	DeletePageSize int

	// DeleteConcurrency caps parallel store deletes during folder
	// deletions.
	DeleteConcurrency int

	// DiffMaxBytes caps either side of a textual diff. Larger files are
	// reported without diff content.
	DiffMaxBytes int64
}

// DefaultConfig returns a default configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:         "http://localhost:8080",
		NamespacePrefix: "hub",
		DefaultRules: model.LFSRules{
			ThresholdBytes: 10 * 1024 * 1024,
			KeepVersions:   5,
		},
		PollAttempts:      120,
		PollInterval:      500 * time.Millisecond,
		MaxBodyBytes:      100 * 1024 * 1024,
		DeletePageSize:    1000,
		DeleteConcurrency: 20,
		DiffMaxBytes:      1024 * 1024,
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.NamespacePrefix == "" {
		c.NamespacePrefix = "hub"
	}
	if c.DefaultRules.ThresholdBytes <= 0 {
		c.DefaultRules.ThresholdBytes = 10 * 1024 * 1024
	}
	if c.DefaultRules.KeepVersions <= 0 {
		c.DefaultRules.KeepVersions = 5
	}
	if c.PollAttempts <= 0 {
		c.PollAttempts = 120
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 500 * time.Millisecond
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 100 * 1024 * 1024
	}
	if c.DeletePageSize <= 0 || c.DeletePageSize > 1000 {
		c.DeletePageSize = 1000
	}
	if c.DeleteConcurrency <= 0 {
		c.DeleteConcurrency = 20
	}
	if c.DiffMaxBytes <= 0 {
		c.DiffMaxBytes = 1024 * 1024
	}
	return nil
}
