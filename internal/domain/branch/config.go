package branch

// Config holds branch operation configuration.
type Config struct {
	// NamespacePrefix prefixes every versioned-store repository name.
	NamespacePrefix string

	// DefaultBranch is the protected branch; deleting it is refused and
	// resetting it requires force.
	DefaultBranch string

	// DiffPageSize is the page size for reset diff replays.
	DiffPageSize int
}

// DefaultConfig returns a default configuration.
func DefaultConfig() *Config {
	return &Config{
		NamespacePrefix: "hub",
		DefaultBranch:   "main",
		DiffPageSize:    1000,
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
	if c.DiffPageSize <= 0 || c.DiffPageSize > 1000 {
		c.DiffPageSize = 1000
	}
	return nil
}
