package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"strings"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies `errors.Is(err, ErrNotFound)`.
// The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// ErrConflict is returned by Committer.Commit when another writer committed
// the same or a later generation first.
var ErrConflict = errors.New("blobstore: concurrent commit detected")

// Store is a flat namespace of immutable blobs.
// Implementations must be safe for concurrent use.
type Store interface {
	// Create starts writing the blob name. The blob replaces any existing
	// blob of that name when the returned WritableBlob is closed.
	Create(ctx context.Context, name string) (WritableBlob, error)
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	// List returns the sorted names of blobs starting with prefix.
	List(ctx context.Context, prefix string) ([]string, error)
	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error
}

// WritableBlob is a blob being written.
type WritableBlob interface {
	io.Writer
	// Close commits the blob.
	Close() error
	// Abort discards everything written. Abort after Close is a no-op.
	Abort() error
}

// Locker is implemented by stores that can take an exclusive lock on a name.
type Locker interface {
	Lock(ctx context.Context, name string) (unlock func() error, err error)
}

// Committer is implemented by stores that record a monotonically increasing
// generation per key, so that concurrent savers are detected.
type Committer interface {
	// Generation returns the last committed generation of key, or 0.
	Generation(ctx context.Context, key string) (uint64, error)
	// Commit records generation for key. It fails with ErrConflict unless
	// generation is greater than every generation committed before.
	Commit(ctx context.Context, key string, generation uint64) error
}

// Put writes data to name in one step.
func Put(ctx context.Context, s Store, name string, data []byte) error {
	w, err := s.Create(ctx, name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return errors.Join(err, w.Abort())
	}
	return w.Close()
}

// ReadAll returns the content of name.
func ReadAll(ctx context.Context, s Store, name string) ([]byte, error) {
	r, err := s.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()
	return io.ReadAll(r)
}

// Join joins a root prefix and a name with a single slash, keeping a
// trailing slash of name so that directory-style List prefixes stay exact.
func Join(root, name string) string {
	root = strings.TrimSuffix(root, "/")
	name = strings.TrimPrefix(name, "/")
	switch {
	case root == "":
		return name
	case name == "":
		return root + "/"
	default:
		return root + "/" + name
	}
}
