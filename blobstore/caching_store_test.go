package blobstore

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingStore struct {
	Store
	opens int
}

func (c *countingStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	c.opens++
	return c.Store.Open(ctx, name)
}

func TestCachingStore(t *testing.T) {
	ctx := context.Background()
	inner := &countingStore{Store: NewMemoryStore()}
	require.NoError(t, Put(ctx, inner, "Tables/t/0.bin", []byte("v1")))

	s, err := NewCachingStore(inner, 8, 0)
	require.NoError(t, err)

	for range 3 {
		data, err := ReadAll(ctx, s, "Tables/t/0.bin")
		require.NoError(t, err)
		assert.Equal(t, "v1", string(data))
	}
	assert.Equal(t, 1, inner.opens)
	hits, misses := s.Stats()
	assert.Equal(t, int64(2), hits)
	assert.Equal(t, int64(1), misses)

	t.Run("rewrite invalidates", func(t *testing.T) {
		require.NoError(t, Put(ctx, s, "Tables/t/0.bin", []byte("v2")))
		data, err := ReadAll(ctx, s, "Tables/t/0.bin")
		require.NoError(t, err)
		assert.Equal(t, "v2", string(data))
	})

	t.Run("delete invalidates", func(t *testing.T) {
		require.NoError(t, s.Delete(ctx, "Tables/t/0.bin"))
		_, err := s.Open(ctx, "Tables/t/0.bin")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestCachingStoreSkipsLargeBlobs(t *testing.T) {
	ctx := context.Background()
	inner := &countingStore{Store: NewMemoryStore()}
	require.NoError(t, Put(ctx, inner, "big", []byte("0123456789")))

	s, err := NewCachingStore(inner, 8, 4)
	require.NoError(t, err)

	for range 2 {
		_, err := ReadAll(ctx, s, "big")
		require.NoError(t, err)
	}
	assert.Equal(t, 2, inner.opens)
}

func TestNewCachingStoreRejectsZeroEntries(t *testing.T) {
	_, err := NewCachingStore(NewMemoryStore(), 0, 0)
	assert.Error(t, err)
}
