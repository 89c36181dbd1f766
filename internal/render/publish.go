package render

import (
	"context"
	"os"
	"path"

	"go.uber.org/zap"

	"tuackng/internal/common/storage"
	appErr "tuackng/pkg/errors"
	"tuackng/pkg/utils/logger"
)

const pdfContentType = "application/pdf"

// Publisher uploads a promoted booklet and returns where it was stored.
type Publisher interface {
	Publish(ctx context.Context, contestName, day, pdfPath string) (string, error)
}

// ObjectPublisher publishes booklets to S3-compatible object storage.
type ObjectPublisher struct {
	store  storage.ObjectStorage
	bucket string
	prefix string
}

// NewObjectPublisher creates a publisher writing under prefix in bucket.
func NewObjectPublisher(store storage.ObjectStorage, bucket, prefix string) *ObjectPublisher {
	return &ObjectPublisher{store: store, bucket: bucket, prefix: prefix}
}

// ObjectKey returns <prefix>/<contest>/<day>/<day>.pdf.
func ObjectKey(prefix, contestName, day string) string {
	return path.Join(prefix, contestName, day, day+".pdf")
}

// Publish uploads the file at pdfPath.
func (p *ObjectPublisher) Publish(ctx context.Context, contestName, day, pdfPath string) (string, error) {
	key := ObjectKey(p.prefix, contestName, day)

	file, err := os.Open(pdfPath)
	if err != nil {
		return "", appErr.FilesystemFailure(err, "open", pdfPath)
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return "", appErr.FilesystemFailure(err, "stat", pdfPath)
	}

	if err := p.store.EnsureBucket(ctx, p.bucket); err != nil {
		return "", appErr.Wrapf(err, appErr.PublishFailed, "prepare bucket %s failed", p.bucket)
	}
	if err := p.store.PutObject(ctx, p.bucket, key, file, info.Size(), pdfContentType); err != nil {
		return "", appErr.Wrapf(err, appErr.PublishFailed, "upload %s failed", key).
			WithDetail("bucket", p.bucket).
			WithDetail("key", key)
	}
	logger.Info(ctx, "booklet published", zap.String("bucket", p.bucket), zap.String("key", key),
		zap.Int64("size", info.Size()))
	return key, nil
}
