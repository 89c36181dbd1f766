package storage

import (
	"context"
	"io"
)

// ObjectStorage defines the object storage operations used to publish rendered booklets.
// It is kept small so MinIO and other S3-compatible backends can be swapped freely.
type ObjectStorage interface {
	// EnsureBucket creates the bucket when it does not exist.
	EnsureBucket(ctx context.Context, bucket string) error

	// PutObject uploads sizeBytes bytes from reader under objectKey.
	PutObject(ctx context.Context, bucket, objectKey string, reader io.Reader, sizeBytes int64, contentType string) error

	// StatObject returns size and ETag for an object.
	StatObject(ctx context.Context, bucket, objectKey string) (ObjectStat, error)
}

// ObjectStat contains object metadata used for validation.
type ObjectStat struct {
	SizeBytes   int64
	ETag        string
	ContentType string
}
