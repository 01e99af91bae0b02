package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/gostream/pipeline/internal/domain/repository"
)

// partSize is the multipart upload chunk size, matching the reference
// implementation's object storage layer.
const partSize = 10 * 1024 * 1024 // 10 MiB

// downloadChunkSize bounds how much of a large object StreamGet buffers
// per read when relaying to a writer.
const downloadChunkSize = 8 * 1024 * 1024 // 8 MiB

// objectReader abstracts minio.Object for testability.
// *minio.Object satisfies this interface.
type objectReader interface {
	io.ReadCloser
	Stat() (minio.ObjectInfo, error)
}

// minioClient defines the interface for MinIO operations.
// This abstraction allows for easier unit testing with mocks.
type minioClient interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	FPutObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	PresignedPutObject(ctx context.Context, bucketName, objectName string, expiry time.Duration) (*url.URL, error)
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expiry time.Duration, reqParams url.Values) (*url.URL, error)
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (objectReader, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
}

// minioClientAdapter wraps *minio.Client to implement minioClient interface.
// This is necessary because *minio.Client.GetObject returns *minio.Object,
// but our interface returns objectReader for testability.
type minioClientAdapter struct {
	client *minio.Client
}

func (a *minioClientAdapter) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	return a.client.BucketExists(ctx, bucketName)
}

func (a *minioClientAdapter) MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error {
	return a.client.MakeBucket(ctx, bucketName, opts)
}

func (a *minioClientAdapter) FPutObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	return a.client.FPutObject(ctx, bucketName, objectName, filePath, opts)
}

func (a *minioClientAdapter) PresignedPutObject(ctx context.Context, bucketName, objectName string, expiry time.Duration) (*url.URL, error) {
	return a.client.PresignedPutObject(ctx, bucketName, objectName, expiry)
}

func (a *minioClientAdapter) PresignedGetObject(ctx context.Context, bucketName, objectName string, expiry time.Duration, reqParams url.Values) (*url.URL, error) {
	return a.client.PresignedGetObject(ctx, bucketName, objectName, expiry, reqParams)
}

func (a *minioClientAdapter) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	return a.client.PutObject(ctx, bucketName, objectName, reader, objectSize, opts)
}

func (a *minioClientAdapter) GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (objectReader, error) {
	return a.client.GetObject(ctx, bucketName, objectName, opts)
}

func (a *minioClientAdapter) RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error {
	return a.client.RemoveObject(ctx, bucketName, objectName, opts)
}

func (a *minioClientAdapter) StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error) {
	return a.client.StatObject(ctx, bucketName, objectName, opts)
}

// ClientConfig holds configuration for the MinIO client.
type ClientConfig struct {
	Endpoint       string
	PublicEndpoint string // Optional: external-facing endpoint for presigned URLs
	AccessKey      string
	SecretKey      string
	UseSSL         bool
}

// Client wraps a MinIO client and implements repository.ObjectStorage
// across the raw/thumbnails/processed buckets the pipeline depends on.
type Client struct {
	client          minioClient
	presignedClient minioClient // Separate client for presigned URLs (may use public endpoint)
}

// NewClient creates a new MinIO client. It does not touch any bucket;
// callers must call EnsureBucket for each bucket the pipeline uses before
// relying on it, mirroring the reference implementation's startup check.
func NewClient(cfg ClientConfig) (*Client, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	adapter := &minioClientAdapter{client: client}

	var presignedAdapter minioClient = adapter
	if cfg.PublicEndpoint != "" {
		presignedClient, err := minio.New(cfg.PublicEndpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
			Secure: cfg.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create presigned minio client: %w", err)
		}
		presignedAdapter = &minioClientAdapter{client: presignedClient}
	}

	return &Client{client: adapter, presignedClient: presignedAdapter}, nil
}

// EnsureBucket creates the named bucket if it does not already exist.
func (c *Client) EnsureBucket(ctx context.Context, bucket string) error {
	exists, err := c.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if exists {
		return nil
	}
	if err := c.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("%w: %s: %v", repository.ErrBucketNotFound, bucket, err)
	}
	return nil
}

// StreamPut uploads the contents of r to bucket/key. The minio-go SDK
// handles multipart chunking internally once the object size exceeds
// partSize, so it's only threaded through PutObjectOptions for clarity.
func (c *Client) StreamPut(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) error {
	_, err := c.client.PutObject(ctx, bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
		PartSize:    partSize,
	})
	if err != nil {
		return fmt.Errorf("failed to upload object %s/%s: %w", bucket, key, err)
	}
	return nil
}

// StreamGet writes the contents of bucket/key to w in downloadChunkSize
// chunks rather than buffering the whole object in memory.
func (c *Client) StreamGet(ctx context.Context, bucket, key string, w io.Writer) error {
	obj, err := c.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to get object %s/%s: %w", bucket, key, err)
	}
	defer obj.Close()

	if _, err := obj.Stat(); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return repository.ErrObjectNotFound
		}
		return fmt.Errorf("failed to stat object %s/%s: %w", bucket, key, err)
	}

	buf := make([]byte, downloadChunkSize)
	if _, err := io.CopyBuffer(w, obj, buf); err != nil {
		return fmt.Errorf("failed to stream object %s/%s: %w", bucket, key, err)
	}
	return nil
}

// PutFile uploads the local file at localPath to bucket/key, used by the
// Upload stage to push a rendered HLS directory tree file by file.
func (c *Client) PutFile(ctx context.Context, bucket, key, localPath string) error {
	contentType := contentTypeFor(localPath)
	_, err := c.client.FPutObject(ctx, bucket, key, localPath, minio.PutObjectOptions{
		ContentType: contentType,
		PartSize:    partSize,
	})
	if err != nil {
		return fmt.Errorf("failed to upload file %s to %s/%s: %w", localPath, bucket, key, err)
	}
	return nil
}

// Delete removes an object from the named bucket.
func (c *Client) Delete(ctx context.Context, bucket, key string) error {
	if err := c.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete object %s/%s: %w", bucket, key, err)
	}
	return nil
}

// Exists checks whether an object is present in the named bucket.
func (c *Client) Exists(ctx context.Context, bucket, key string) (bool, error) {
	_, err := c.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return false, nil
		}
		return false, fmt.Errorf("failed to check object existence %s/%s: %w", bucket, key, err)
	}
	return true, nil
}

// PresignedGet creates a time-limited download URL via the presigned
// client, which may be configured with a public-facing endpoint.
func (c *Client) PresignedGet(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	presignedURL, err := c.presignedClient.PresignedGetObject(ctx, bucket, key, ttl, make(url.Values))
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned download URL for %s/%s: %w", bucket, key, err)
	}
	return presignedURL.String(), nil
}

// PresignedPut creates a time-limited upload URL via the presigned client.
func (c *Client) PresignedPut(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	presignedURL, err := c.presignedClient.PresignedPutObject(ctx, bucket, key, ttl)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned upload URL for %s/%s: %w", bucket, key, err)
	}
	return presignedURL.String(), nil
}

// Ping verifies the MinIO connection is alive by checking bucket access.
func (c *Client) Ping(ctx context.Context, bucket string) error {
	if _, err := c.client.BucketExists(ctx, bucket); err != nil {
		return fmt.Errorf("failed to ping minio: %w", err)
	}
	return nil
}

func contentTypeFor(path string) string {
	switch {
	case hasSuffix(path, ".m3u8"):
		return "application/vnd.apple.mpegurl"
	case hasSuffix(path, ".ts"):
		return "video/mp2t"
	default:
		return "application/octet-stream"
	}
}

func hasSuffix(path, suffix string) bool {
	if len(path) < len(suffix) {
		return false
	}
	return path[len(path)-len(suffix):] == suffix
}

// Compile-time verification that Client implements repository.ObjectStorage.
var _ repository.ObjectStorage = (*Client)(nil)
