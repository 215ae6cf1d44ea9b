package gc

import "github.com/kohakuhub/server/internal/model"

// Config holds garbage-collection and retention configuration.
type Config struct {
	// NamespacePrefix prefixes every versioned-store repository name and
	// must match the repo domain's prefix.
	NamespacePrefix string

	// AutoGC enables retention pruning after commits. When false, history
	// still accumulates but nothing is deleted.
	AutoGC bool

	// DefaultRules applies to repositories without their own overrides.
	DefaultRules model.LFSRules

	// ProbeConcurrency caps parallel blob existence probes during
	// recoverability checks.
	ProbeConcurrency int

	// SyncPageSize is the page size for full listings and diffs. The
	// versioned store caps pages at 10000.
	SyncPageSize int
}

// DefaultConfig returns a default configuration.
func DefaultConfig() *Config {
	return &Config{
		NamespacePrefix: "hub",
		AutoGC:          true,
		DefaultRules: model.LFSRules{
			ThresholdBytes: 10 * 1024 * 1024,
			KeepVersions:   5,
		},
		ProbeConcurrency: 20,
		SyncPageSize:     1000,
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
	if c.ProbeConcurrency <= 0 {
		c.ProbeConcurrency = 20
	}
	if c.SyncPageSize <= 0 || c.SyncPageSize > 10000 {
		c.SyncPageSize = 1000
	}
	return nil
}
