package fs

import (
	"errors"
	"os"
)

// ErrLocked is returned by Lock when another process holds the lock.
var ErrLocked = errors.New("fs: lock is held by another process")

// Lock takes an exclusive, non-blocking advisory lock on the file at path,
// creating it if needed. The returned function releases the lock.
func Lock(path string) (unlock func() error, err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	if err := lockFile(f); err != nil {
		_ = f.Close()
		return nil, err
	}
	return func() error {
		uerr := unlockFile(f)
		return errors.Join(uerr, f.Close())
	}, nil
}
