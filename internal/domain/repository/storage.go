package repository

import (
	"context"
	"io"
	"time"
)

// ObjectStorage defines the interface for object storage operations used by
// the pipeline stages. Implementations should be provided by the
// infrastructure layer (e.g., MinIO, S3). Every method is bucket-scoped:
// the pipeline works across at least a raw bucket (source uploads) and a
// processed bucket (segments, playlists), per spec.md §6.
type ObjectStorage interface {
	// EnsureBucket creates the named bucket if it does not already exist.
	// Called once at startup for each bucket the pipeline depends on.
	EnsureBucket(ctx context.Context, bucket string) error

	// StreamPut uploads the contents of r to bucket/key, using multipart
	// upload for large objects. size is the total byte count when known
	// (-1 if the reader's length is not known ahead of time).
	StreamPut(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) error

	// StreamGet writes the contents of bucket/key to w, fetching in
	// chunks rather than buffering the whole object in memory.
	StreamGet(ctx context.Context, bucket, key string, w io.Writer) error

	// PutFile uploads the local file at localPath to bucket/key, used by
	// the Upload stage to push an entire rendered workspace directory tree.
	PutFile(ctx context.Context, bucket, key, localPath string) error

	// Delete removes an object from the named bucket.
	Delete(ctx context.Context, bucket, key string) error

	// Exists checks whether an object is present in the named bucket.
	Exists(ctx context.Context, bucket, key string) (bool, error)

	// PresignedGet creates a time-limited URL for downloading bucket/key.
	// The status endpoint does not use it: it returns the stored manifest_url.
	PresignedGet(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)

	// PresignedPut creates a time-limited URL for direct client upload,
	// used by the upload-intake endpoint ahead of pipeline dispatch.
	PresignedPut(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
}

// ObjectInfo contains metadata about a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
}
