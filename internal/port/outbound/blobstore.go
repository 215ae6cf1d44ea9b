package outbound

import (
	"context"
	"time"
)

// ===== Blob Store Port =====

// PresignPutOptions controls a presigned upload URL.
type PresignPutOptions struct {
	Expires time.Duration
	// ContentType, when set, becomes part of the signature so the client
	// must send exactly this Content-Type header.
	ContentType string
	// ChecksumSHA256 is the base64 raw digest; when set the signature
	// requires a matching x-amz-checksum-sha256 header and the store
	// rejects bytes that do not hash to it.
	ChecksumSHA256 string
}

// PresignGetOptions controls a presigned download URL.
type PresignGetOptions struct {
	Expires time.Duration
	// DownloadFilename, when set, is returned to the browser via
	// response-content-disposition.
	DownloadFilename string
}

// PresignedURL is a signed request the client performs directly against the
// blob store.
type PresignedURL struct {
	URL       string
	Method    string
	Headers   map[string]string
	ExpiresAt time.Time
}

// ObjectInfo describes a stored blob.
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
}

// CompletedPart identifies one finished multipart part.
type CompletedPart struct {
	PartNumber int32
	ETag       string
}

// BlobStore is the S3-compatible object store the service fronts. Bytes
// never flow through the application: clients talk to the store directly
// with URLs presigned here.
type BlobStore interface {
	// Bucket returns the configured bucket name, used to build physical
	// addresses (s3://bucket/key) for the versioned store.
	Bucket() string

	// PresignPut returns a signed single-request upload URL.
	PresignPut(ctx context.Context, key string, opts PresignPutOptions) (*PresignedURL, error)

	// PresignGet returns a signed download URL.
	PresignGet(ctx context.Context, key string, opts PresignGetOptions) (*PresignedURL, error)

	// CreateMultipart starts a multipart upload and returns its id.
	CreateMultipart(ctx context.Context, key string) (string, error)

	// PresignPart returns a signed URL for one part of a multipart upload.
	PresignPart(ctx context.Context, key, uploadID string, partNumber int32, expires time.Duration) (*PresignedURL, error)

	// CompleteMultipart assembles the parts and returns the final object.
	CompleteMultipart(ctx context.Context, key, uploadID string, parts []CompletedPart) (*ObjectInfo, error)

	// AbortMultipart abandons a multipart upload.
	AbortMultipart(ctx context.Context, key, uploadID string) error

	// Head returns object metadata or ErrObjectNotFound.
	Head(ctx context.Context, key string) (*ObjectInfo, error)

	// Exists reports whether the key holds an object.
	Exists(ctx context.Context, key string) (bool, error)

	// List returns up to limit objects under prefix in key order. The
	// second return value reports whether more objects follow.
	List(ctx context.Context, prefix string, limit int) ([]ObjectInfo, bool, error)

	// Delete removes one object. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes every object under prefix, paginating and
	// batching; it returns the number deleted and tolerates partial
	// failures.
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}
