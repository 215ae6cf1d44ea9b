package repo

import "time"

// Config holds repository domain configuration.
type Config struct {
	// BaseURL is the externally visible service URL used in repo URLs.
	BaseURL string

	// NamespacePrefix prefixes every versioned-store repository name.
	NamespacePrefix string

	// DefaultBranch is the initial branch of new repositories.
	DefaultBranch string

	// DownloadExpiry bounds presigned resolve URLs.
	DownloadExpiry time.Duration

	// MigratePageSize is the listing page size used while migrating
	// repository content between store names.
	MigratePageSize int

	// SquashPollAttempts and SquashPollInterval bound the wait for the
	// store to release a deleted repository name during a squash.
	SquashPollAttempts int
	SquashPollInterval time.Duration
}

// DefaultConfig returns a default configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:            "http://localhost:8080",
		NamespacePrefix:    "hub",
		DefaultBranch:      "main",
		DownloadExpiry:     time.Hour,
		MigratePageSize:    1000,
		SquashPollAttempts: 30,
		SquashPollInterval: time.Second,
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.NamespacePrefix == "" {
		c.NamespacePrefix = "hub"
	}
	if c.DefaultBranch == "" {
		c.DefaultBranch = "main"
	}
	if c.DownloadExpiry <= 0 {
		c.DownloadExpiry = time.Hour
	}
	if c.MigratePageSize <= 0 || c.MigratePageSize > 1000 {
		c.MigratePageSize = 1000
	}
	if c.SquashPollAttempts <= 0 {
		c.SquashPollAttempts = 30
	}
	if c.SquashPollInterval <= 0 {
		c.SquashPollInterval = time.Second
	}
	return nil
}
