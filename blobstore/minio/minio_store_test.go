package minio

import (
	"context"
	"os"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/arriba/blobstore"
)

func TestKey(t *testing.T) {
	s := NewStore(nil, "b", "arriba/")
	assert.Equal(t, "arriba/Tables/bugs/0.bin", s.key("Tables/bugs/0.bin"))
	assert.Equal(t, "Tables/bugs/0.bin", NewStore(nil, "b", "").key("Tables/bugs/0.bin"))
}

// TestMinioStore_Integration requires a running MinIO instance.
// Skip if not available.
func TestMinioStore_Integration(t *testing.T) {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("Skipping MinIO integration test: MINIO_ENDPOINT not set")
	}
	bucket := "test-arriba"

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
		Secure: false,
	})
	require.NoError(t, err)

	ctx := context.Background()
	if _, err := client.ListBuckets(ctx); err != nil {
		t.Skipf("MinIO not available: %v", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	require.NoError(t, err)
	if !exists {
		require.NoError(t, client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}))
	}

	store := NewStore(client, bucket, "test-prefix/")

	data := []byte("hello minio world")
	require.NoError(t, blobstore.Put(ctx, store, "Tables/t/0.bin", data))

	got, err := blobstore.ReadAll(ctx, store, "Tables/t/0.bin")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	names, err := store.List(ctx, "Tables/t/")
	require.NoError(t, err)
	assert.Contains(t, names, "Tables/t/0.bin")

	w, err := store.Create(ctx, "Tables/t/1.bin")
	require.NoError(t, err)
	_, err = w.Write([]byte("discard me"))
	require.NoError(t, err)
	require.NoError(t, w.Abort())
	_, err = store.Open(ctx, "Tables/t/1.bin")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)

	require.NoError(t, store.Delete(ctx, "Tables/t/0.bin"))
	_, err = store.Open(ctx, "Tables/t/0.bin")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}
