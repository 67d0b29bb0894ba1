package blobstore

import (
	"bytes"
	"context"
	"io"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachingStore wraps a Store and caches whole blobs read through Open.
//
// Entries are dropped when the blob is rewritten or deleted through the
// CachingStore. Writes that bypass it are not observed.
type CachingStore struct {
	inner    Store
	cache    *lru.Cache[string, []byte]
	maxBytes int

	mu     sync.Mutex
	hits   int64
	misses int64
}

// NewCachingStore creates a CachingStore holding up to entries blobs.
// Blobs larger than maxBlobBytes are never cached; 0 means no size limit.
func NewCachingStore(inner Store, entries, maxBlobBytes int) (*CachingStore, error) {
	c, err := lru.New[string, []byte](entries)
	if err != nil {
		return nil, err
	}
	return &CachingStore{inner: inner, cache: c, maxBytes: maxBlobBytes}, nil
}

// Open returns the cached blob or reads it from the inner store.
func (s *CachingStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if data, ok := s.cache.Get(name); ok {
		s.count(true)
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	s.count(false)

	data, err := ReadAll(ctx, s.inner, name)
	if err != nil {
		return nil, err
	}
	if s.maxBytes <= 0 || len(data) <= s.maxBytes {
		s.cache.Add(name, data)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Create invalidates name and creates the blob in the inner store.
func (s *CachingStore) Create(ctx context.Context, name string) (WritableBlob, error) {
	s.cache.Remove(name)
	w, err := s.inner.Create(ctx, name)
	if err != nil {
		return nil, err
	}
	return &invalidatingBlob{WritableBlob: w, store: s, name: name}, nil
}

// Delete invalidates name and deletes it from the inner store.
func (s *CachingStore) Delete(ctx context.Context, name string) error {
	s.cache.Remove(name)
	return s.inner.Delete(ctx, name)
}

// List passes through to the inner store.
func (s *CachingStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}

// Stats returns the number of cache hits and misses.
func (s *CachingStore) Stats() (hits, misses int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits, s.misses
}

func (s *CachingStore) count(hit bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if hit {
		s.hits++
	} else {
		s.misses++
	}
}

// invalidatingBlob drops the cache entry again on Close, since a reader may
// have cached the old content while the write was in progress.
type invalidatingBlob struct {
	WritableBlob
	store *CachingStore
	name  string
}

func (b *invalidatingBlob) Close() error {
	err := b.WritableBlob.Close()
	b.store.cache.Remove(b.name)
	return err
}
