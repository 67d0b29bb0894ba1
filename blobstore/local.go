package blobstore

import (
	"context"
	"errors"
	"io"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hupe1980/arriba/internal/fs"
)

// TempSuffix is appended to a blob name while LocalStore writes it.
const TempSuffix = ".new"

// LocalStore implements Store using the local file system.
//
// Create writes to "<name>.new" and Close renames that file over "<name>".
// Renames that fail because the target is briefly held by another process
// are retried with exponential backoff.
type LocalStore struct {
	root     string
	fs       fs.FileSystem
	attempts int
	backoff  time.Duration
}

// LocalOption configures a LocalStore.
type LocalOption func(*LocalStore)

// WithFileSystem replaces the file system, typically with a fault-injecting
// one in tests.
func WithFileSystem(fsys fs.FileSystem) LocalOption {
	return func(s *LocalStore) {
		if fsys != nil {
			s.fs = fsys
		}
	}
}

// WithRenameRetry sets how often a failed rename is attempted and the first
// backoff delay, which doubles after every attempt.
func WithRenameRetry(attempts int, backoff time.Duration) LocalOption {
	return func(s *LocalStore) {
		s.attempts = max(attempts, 1)
		s.backoff = backoff
	}
}

// NewLocalStore creates a new LocalStore rooted at the given directory.
func NewLocalStore(root string, optFns ...LocalOption) *LocalStore {
	s := &LocalStore{
		root:     root,
		fs:       fs.Default,
		attempts: 5,
		backoff:  10 * time.Millisecond,
	}
	for _, fn := range optFns {
		fn(s)
	}
	return s
}

// Root returns the directory the store is rooted at.
func (s *LocalStore) Root() string { return s.root }

func (s *LocalStore) path(name string) string {
	return filepath.Join(s.root, filepath.FromSlash(name))
}

// Create creates a new writable blob.
func (s *LocalStore) Create(ctx context.Context, name string) (WritableBlob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	final := s.path(name)
	if err := s.fs.MkdirAll(filepath.Dir(final), 0o755); err != nil {
		return nil, err
	}
	tmp := final + TempSuffix
	f, err := s.fs.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &localWritableBlob{store: s, ctx: ctx, f: f, tmp: tmp, final: final}, nil
}

// Open opens a blob for reading.
func (s *LocalStore) Open(_ context.Context, name string) (io.ReadCloser, error) {
	f, err := s.fs.OpenFile(s.path(name), os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// List returns the blobs in the directory named by prefix up to its last
// slash whose base name starts with the rest of prefix. It does not
// descend into subdirectories.
func (s *LocalStore) List(_ context.Context, prefix string) ([]string, error) {
	dir, base := path.Split(prefix)
	entries, err := s.fs.ReadDir(s.path(dir))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), base) {
			continue
		}
		names = append(names, dir+e.Name())
	}
	slices.Sort(names)
	return names, nil
}

// Delete removes a blob.
func (s *LocalStore) Delete(_ context.Context, name string) error {
	err := s.fs.Remove(s.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// Lock takes an exclusive lock on the file name until unlock is called.
// A lock held by another process fails with fs.ErrLocked.
func (s *LocalStore) Lock(_ context.Context, name string) (func() error, error) {
	p := s.path(name)
	if err := s.fs.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return nil, err
	}
	return fs.Lock(p)
}

func (s *LocalStore) rename(ctx context.Context, oldpath, newpath string) error {
	delay := s.backoff
	var err error
	for attempt := 0; attempt < s.attempts; attempt++ {
		if err = s.fs.Rename(oldpath, newpath); err == nil {
			return nil
		}
		if attempt == s.attempts-1 {
			break
		}
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return errors.Join(err, ctx.Err())
		case <-t.C:
		}
		delay *= 2
	}
	return err
}

type localWritableBlob struct {
	store *LocalStore
	ctx   context.Context
	f     fs.File
	tmp   string
	final string
	done  atomic.Bool
}

func (b *localWritableBlob) Write(p []byte) (int, error) {
	if b.done.Load() {
		return 0, os.ErrClosed
	}
	return b.f.Write(p)
}

// Close syncs the temporary file and renames it over the target. On failure
// the temporary file is removed and the previous blob is left untouched.
func (b *localWritableBlob) Close() error {
	if !b.done.CompareAndSwap(false, true) {
		return os.ErrClosed
	}
	if err := b.f.Sync(); err != nil {
		_ = b.f.Close()
		return errors.Join(err, b.store.fs.Remove(b.tmp))
	}
	if err := b.f.Close(); err != nil {
		return errors.Join(err, b.store.fs.Remove(b.tmp))
	}
	if err := b.store.rename(b.ctx, b.tmp, b.final); err != nil {
		return errors.Join(err, b.store.fs.Remove(b.tmp))
	}
	return nil
}

func (b *localWritableBlob) Abort() error {
	if !b.done.CompareAndSwap(false, true) {
		return nil
	}
	_ = b.f.Close()
	err := b.store.fs.Remove(b.tmp)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
