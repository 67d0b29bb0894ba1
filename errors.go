package arriba

import (
	"errors"
	"fmt"

	"github.com/hupe1980/arriba/blobstore"
	"github.com/hupe1980/arriba/internal/binfmt"
	"github.com/hupe1980/arriba/internal/fs"
	"github.com/hupe1980/arriba/partition"
)

var (
	// ErrInvalidTableName is returned by Save and Load for names that cannot
	// be used as a directory name.
	ErrInvalidTableName = errors.New("invalid table name")

	// ErrCorrupt is returned when a table file or manifest fails validation.
	ErrCorrupt = errors.New("corrupt table data")

	// ErrConflict is returned by Save when another writer saved the table
	// after it was loaded.
	ErrConflict = errors.New("table was saved concurrently")

	// ErrLocked is returned when another process holds the table lock.
	ErrLocked = errors.New("table is locked")

	// Errors of the partition layer, re-exported for errors.Is.
	ErrDuplicatePrimaryKey = partition.ErrDuplicatePrimaryKey
	ErrMissingIDColumn     = partition.ErrMissingIDColumn
	ErrUnknownColumn       = partition.ErrUnknownColumn
	ErrPartitionFull       = partition.ErrPartitionFull
	ErrRoutingViolation    = partition.ErrRoutingViolation
	ErrIDColumnInUse       = partition.ErrIDColumnInUse
	ErrNullID              = partition.ErrNullID
	ErrNaNID               = partition.ErrNaNID
)

// PartitionError reports a failure of one partition during a fan-out
// operation.
//
// The original underlying error can be accessed via errors.Unwrap.
type PartitionError struct {
	Partition string
	cause     error
}

func (e *PartitionError) Error() string {
	return fmt.Sprintf("partition %q: %v", e.Partition, e.cause)
}

func (e *PartitionError) Unwrap() error { return e.cause }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, binfmt.ErrCorrupt) || errors.Is(err, binfmt.ErrVersion) || errors.Is(err, binfmt.ErrUnknownCompression) {
		if errors.Is(err, ErrCorrupt) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if errors.Is(err, blobstore.ErrConflict) && !errors.Is(err, ErrConflict) {
		return fmt.Errorf("%w: %w", ErrConflict, err)
	}
	if errors.Is(err, fs.ErrLocked) && !errors.Is(err, ErrLocked) {
		return fmt.Errorf("%w: %w", ErrLocked, err)
	}

	return err
}
