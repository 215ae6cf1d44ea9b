// Package s3 implements the blob store port against any S3-compatible
// object store (MinIO, R2, AWS).
package s3

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/kohakuhub/server/internal/port/outbound"
	"github.com/kohakuhub/server/internal/shared/config"
)

const deleteBatchSize = 1000

// BlobStoreAdapter implements outbound.BlobStore.
type BlobStoreAdapter struct {
	client *s3.Client
	bucket string

	// presigner signs URLs against the public endpoint so they remain
	// valid for clients outside the deployment network. When no public
	// endpoint is configured it signs against the internal one.
	presigner *s3.PresignClient
}

// New creates a new blob store adapter.
func New(cfg *config.S3Config) (*BlobStoreAdapter, error) {
	if cfg.Endpoint == "" || cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" || cfg.Bucket == "" {
		return nil, errors.New("incomplete S3 configuration")
	}

	client, err := newClient(cfg, cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	presignTarget := client
	if cfg.PublicEndpoint != "" && cfg.PublicEndpoint != cfg.Endpoint {
		presignTarget, err = newClient(cfg, cfg.PublicEndpoint)
		if err != nil {
			return nil, err
		}
	}

	return &BlobStoreAdapter{
		client:    client,
		bucket:    cfg.Bucket,
		presigner: s3.NewPresignClient(presignTarget),
	}, nil
}

func newClient(cfg *config.S3Config, endpoint string) (*s3.Client, error) {
	creds := credentials.NewStaticCredentialsProvider(
		cfg.AccessKeyID,
		cfg.SecretAccessKey,
		"",
	)

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithCredentialsProvider(creds),
		awsconfig.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true // MinIO and R2 require path-style URLs
	}), nil
}

// Bucket returns the configured bucket name.
func (a *BlobStoreAdapter) Bucket() string {
	return a.bucket
}

// PresignPut generates a presigned URL for uploading an object.
func (a *BlobStoreAdapter) PresignPut(ctx context.Context, key string, opts outbound.PresignPutOptions) (*outbound.PresignedURL, error) {
	input := &s3.PutObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}
	if opts.ChecksumSHA256 != "" {
		input.ChecksumSHA256 = aws.String(opts.ChecksumSHA256)
		input.ChecksumAlgorithm = types.ChecksumAlgorithmSha256
	}

	req, err := a.presigner.PresignPutObject(ctx, input, func(po *s3.PresignOptions) {
		po.Expires = opts.Expires
	})
	if err != nil {
		return nil, fmt.Errorf("presign put: %w", err)
	}

	return &outbound.PresignedURL{
		URL:       req.URL,
		Method:    req.Method,
		Headers:   signedHeaders(req.SignedHeader),
		ExpiresAt: time.Now().Add(opts.Expires),
	}, nil
}

// PresignGet generates a presigned URL for downloading an object.
func (a *BlobStoreAdapter) PresignGet(ctx context.Context, key string, opts outbound.PresignGetOptions) (*outbound.PresignedURL, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	}
	if opts.DownloadFilename != "" {
		disposition := fmt.Sprintf("attachment; filename=%q", opts.DownloadFilename)
		input.ResponseContentDisposition = aws.String(disposition)
	}

	req, err := a.presigner.PresignGetObject(ctx, input, func(po *s3.PresignOptions) {
		po.Expires = opts.Expires
	})
	if err != nil {
		return nil, fmt.Errorf("presign get: %w", err)
	}

	return &outbound.PresignedURL{
		URL:       req.URL,
		Method:    req.Method,
		ExpiresAt: time.Now().Add(opts.Expires),
	}, nil
}

// CreateMultipart starts a multipart upload and returns its id.
func (a *BlobStoreAdapter) CreateMultipart(ctx context.Context, key string) (string, error) {
	result, err := a.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", fmt.Errorf("create multipart upload: %w", err)
	}
	return aws.ToString(result.UploadId), nil
}

// PresignPart generates a presigned URL for one part of a multipart upload.
func (a *BlobStoreAdapter) PresignPart(ctx context.Context, key, uploadID string, partNumber int32, expires time.Duration) (*outbound.PresignedURL, error) {
	req, err := a.presigner.PresignUploadPart(ctx, &s3.UploadPartInput{
		Bucket:     aws.String(a.bucket),
		Key:        aws.String(key),
		UploadId:   aws.String(uploadID),
		PartNumber: aws.Int32(partNumber),
	}, func(po *s3.PresignOptions) {
		po.Expires = expires
	})
	if err != nil {
		return nil, fmt.Errorf("presign part %d: %w", partNumber, err)
	}

	return &outbound.PresignedURL{
		URL:       req.URL,
		Method:    req.Method,
		ExpiresAt: time.Now().Add(expires),
	}, nil
}

// CompleteMultipart assembles the uploaded parts into the final object.
func (a *BlobStoreAdapter) CompleteMultipart(ctx context.Context, key, uploadID string, parts []outbound.CompletedPart) (*outbound.ObjectInfo, error) {
	completed := make([]types.CompletedPart, len(parts))
	for i, p := range parts {
		completed[i] = types.CompletedPart{
			ETag:       aws.String(p.ETag),
			PartNumber: aws.Int32(p.PartNumber),
		}
	}

	result, err := a.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(a.bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: completed,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("complete multipart upload: %w", err)
	}

	// The completion response has no size, so stat the final object.
	info, err := a.Head(ctx, key)
	if err != nil {
		return nil, err
	}
	if etag := aws.ToString(result.ETag); etag != "" {
		info.ETag = normalizeETag(etag)
	}
	return info, nil
}

// AbortMultipart abandons a multipart upload.
func (a *BlobStoreAdapter) AbortMultipart(ctx context.Context, key, uploadID string) error {
	_, err := a.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(a.bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	})
	if err != nil {
		return fmt.Errorf("abort multipart upload: %w", err)
	}
	return nil
}

// Head returns object metadata, or outbound.ErrObjectNotFound.
func (a *BlobStoreAdapter) Head(ctx context.Context, key string) (*outbound.ObjectInfo, error) {
	result, err := a.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		var nf *types.NotFound
		if errors.As(err, &nsk) || errors.As(err, &nf) {
			return nil, outbound.ErrObjectNotFound
		}
		return nil, fmt.Errorf("head object: %w", err)
	}

	info := &outbound.ObjectInfo{
		Key:         key,
		Size:        aws.ToInt64(result.ContentLength),
		ETag:        normalizeETag(aws.ToString(result.ETag)),
		ContentType: aws.ToString(result.ContentType),
	}
	if result.LastModified != nil {
		info.LastModified = *result.LastModified
	}
	return info, nil
}

// Exists reports whether the key holds an object.
func (a *BlobStoreAdapter) Exists(ctx context.Context, key string) (bool, error) {
	_, err := a.Head(ctx, key)
	if err != nil {
		if errors.Is(err, outbound.ErrObjectNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Delete removes one object. S3 treats deleting a missing key as success.
func (a *BlobStoreAdapter) Delete(ctx context.Context, key string) error {
	_, err := a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

// List returns up to limit objects under prefix in key order.
func (a *BlobStoreAdapter) List(ctx context.Context, prefix string, limit int) ([]outbound.ObjectInfo, bool, error) {
	if limit <= 0 || limit > deleteBatchSize {
		limit = deleteBatchSize
	}

	out, err := a.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(a.bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, false, fmt.Errorf("list objects: %w", err)
	}

	objects := make([]outbound.ObjectInfo, 0, len(out.Contents))
	for _, obj := range out.Contents {
		info := outbound.ObjectInfo{
			Key:  aws.ToString(obj.Key),
			Size: aws.ToInt64(obj.Size),
			ETag: normalizeETag(aws.ToString(obj.ETag)),
		}
		if obj.LastModified != nil {
			info.LastModified = *obj.LastModified
		}
		objects = append(objects, info)
	}
	return objects, aws.ToBool(out.IsTruncated), nil
}

// DeletePrefix removes every object under prefix in batches of 1000.
func (a *BlobStoreAdapter) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	paginator := s3.NewListObjectsV2Paginator(a.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(a.bucket),
		Prefix: aws.String(prefix),
	})

	var toDelete []types.ObjectIdentifier
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return 0, fmt.Errorf("list objects: %w", err)
		}
		for _, obj := range page.Contents {
			toDelete = append(toDelete, types.ObjectIdentifier{Key: obj.Key})
		}
	}

	deleted := 0
	for i := 0; i < len(toDelete); i += deleteBatchSize {
		end := i + deleteBatchSize
		if end > len(toDelete) {
			end = len(toDelete)
		}

		_, err := a.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(a.bucket),
			Delete: &types.Delete{
				Objects: toDelete[i:end],
				Quiet:   aws.Bool(true),
			},
		})
		if err != nil {
			return deleted, fmt.Errorf("delete objects: %w", err)
		}
		deleted += end - i
	}

	return deleted, nil
}

// normalizeETag strips the quotes S3 wraps around ETag values.
func normalizeETag(etag string) string {
	return strings.Trim(etag, `"`)
}

// signedHeaders flattens the headers a presigned request obliges the
// client to send, minus transport ones the client sets anyway.
func signedHeaders(h http.Header) map[string]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for name, values := range h {
		if strings.EqualFold(name, "Host") || strings.EqualFold(name, "Content-Length") {
			continue
		}
		if len(values) > 0 {
			out[name] = values[0]
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Compile-time check
var _ outbound.BlobStore = (*BlobStoreAdapter)(nil)
