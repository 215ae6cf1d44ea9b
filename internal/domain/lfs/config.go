package lfs

import "time"

// Config holds LFS transfer planning configuration.
type Config struct {
	// BaseURL is the externally visible service URL used to build verify
	// and completion hrefs.
	BaseURL string

	// MultipartThresholdBytes is the size above which uploads switch to
	// multipart transfers.
	MultipartThresholdBytes int64

	// MultipartChunkBytes is the preferred part size. It grows when the
	// object would otherwise exceed the store's part-count limit.
	MultipartChunkBytes int64

	// UploadExpiry bounds presigned upload URLs. Multipart sessions live
	// at least this long.
	UploadExpiry time.Duration

	// DownloadExpiry bounds presigned download URLs.
	DownloadExpiry time.Duration
}

// DefaultConfig returns a default configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:                 "http://localhost:8080",
		MultipartThresholdBytes: 5 * 1024 * 1024 * 1024,
		MultipartChunkBytes:     64 * 1024 * 1024,
		UploadExpiry:            24 * time.Hour,
		DownloadExpiry:          time.Hour,
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.MultipartThresholdBytes <= 0 {
		c.MultipartThresholdBytes = 5 * 1024 * 1024 * 1024
	}
	if c.MultipartChunkBytes <= 0 {
		c.MultipartChunkBytes = 64 * 1024 * 1024
	}
	if c.UploadExpiry <= 0 {
		c.UploadExpiry = 24 * time.Hour
	}
	if c.DownloadExpiry <= 0 {
		c.DownloadExpiry = time.Hour
	}
	return nil
}
