package publish_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocloud.dev/blob"

	"github.com/playcatalog/harvester/internal/publish"
)

func TestUpload(t *testing.T) {
	bucketDir := t.TempDir()
	bucketURL := "file://" + bucketDir

	artifact := filepath.Join(t.TempDir(), "app_ids_main.txt")
	require.NoError(t, os.WriteFile(artifact, []byte("com.example.a\ncom.example.b\n"), 0o600))

	ctx := context.Background()
	require.NoError(t, publish.Upload(ctx, bucketURL, "app_ids_main.txt", artifact, nil))

	bucket, err := blob.OpenBucket(ctx, bucketURL)
	require.NoError(t, err)
	defer bucket.Close()

	data, err := bucket.ReadAll(ctx, "app_ids_main.txt")
	require.NoError(t, err)
	assert.Equal(t, "com.example.a\ncom.example.b\n", string(data))
}

func TestUploadMissingArtifact(t *testing.T) {
	bucketURL := "file://" + t.TempDir()
	err := publish.Upload(context.Background(), bucketURL,
		"missing.txt", filepath.Join(t.TempDir(), "missing.txt"), nil)
	assert.ErrorContains(t, err, "open artifact")
}

func TestUploadBadBucketURL(t *testing.T) {
	artifact := filepath.Join(t.TempDir(), "out.txt")
	require.NoError(t, os.WriteFile(artifact, []byte("x\n"), 0o600))

	err := publish.Upload(context.Background(), "bogus://nowhere", "out.txt", artifact, nil)
	assert.ErrorContains(t, err, "open bucket")
}
