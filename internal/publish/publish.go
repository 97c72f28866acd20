// Package publish uploads the merged catalog artifact to a blob bucket.
package publish

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"gocloud.dev/blob"

	// Bucket URL schemes resolved at runtime.
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
)

// Upload copies the file at path into the bucket addressed by bucketURL
// under key. The URL scheme selects the driver (file://, gs://).
func Upload(ctx context.Context, bucketURL, key, path string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return fmt.Errorf("open bucket %s: %w", bucketURL, err)
	}
	defer bucket.Close()

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open artifact %s: %w", path, err)
	}
	defer file.Close()

	w, err := bucket.NewWriter(ctx, key, nil)
	if err != nil {
		return fmt.Errorf("open bucket writer %s: %w", key, err)
	}
	if _, err := io.Copy(w, file); err != nil {
		_ = w.Close()
		return fmt.Errorf("upload %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize upload %s: %w", key, err)
	}

	logger.Info("artifact published",
		zap.String("bucket", bucketURL),
		zap.String("key", key),
	)
	return nil
}
