package gitbridge

// Config holds git bridge configuration.
type Config struct {
	// NamespacePrefix prefixes every versioned-store repository name and
	// must match the repo domain's prefix.
	NamespacePrefix string

	// DefaultBranch is the branch the bridge serves.
	DefaultBranch string

	// BaseURL is this service's external URL, used for the injected
	// .lfsconfig so Git-LFS clients come back here for content.
	BaseURL string

	// ListPageSize is the page size for full listings. The versioned
	// store caps pages at 10000.
	ListPageSize int

	// EmailDomain synthesizes committer emails for Git commit objects,
	// since the versioned store only records usernames.
	EmailDomain string
}

// DefaultConfig returns a default configuration.
func DefaultConfig() *Config {
	return &Config{
		NamespacePrefix: "hub",
		DefaultBranch:   "main",
		BaseURL:         "http://localhost:8080",
		ListPageSize:    1000,
		EmailDomain:     "kohakuhub.local",
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
	if c.ListPageSize <= 0 || c.ListPageSize > 10000 {
		c.ListPageSize = 1000
	}
	if c.EmailDomain == "" {
		c.EmailDomain = "kohakuhub.local"
	}
	return nil
}
