package partition

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidMask is returned for malformed masks.
	ErrInvalidMask = errors.New("invalid partition mask")

	// ErrDuplicatePrimaryKey is returned when a second primary-key column is
	// added.
	ErrDuplicatePrimaryKey = errors.New("partition already has a primary key column")

	// ErrMissingIDColumn is returned when rows are written before a primary
	// key column exists, or a batch does not carry the primary key.
	ErrMissingIDColumn = errors.New("missing ID column")

	// ErrUnknownColumn is returned when a strict write references a column
	// the partition does not have.
	ErrUnknownColumn = errors.New("unknown column")

	// ErrPartitionFull is returned when a write would exceed MaxItems rows.
	ErrPartitionFull = errors.New("partition is full")

	// ErrRoutingViolation is returned when a row's ID hash does not belong to
	// the partition it was sent to.
	ErrRoutingViolation = errors.New("partition routing violation")

	// ErrIDColumnInUse is returned when removing or retyping the ID column
	// would orphan stored rows.
	ErrIDColumnInUse = errors.New("ID column is in use")

	// ErrNullID is returned for rows without an identifier.
	ErrNullID = errors.New("row ID must not be null")

	// ErrNaNID is returned for float IDs that are NaN.
	ErrNaNID = errors.New("row ID must not be NaN")
)

// RoutingError reports a row that hashed outside the partition it was
// written to. It matches ErrRoutingViolation with errors.Is.
type RoutingError struct {
	ID   string
	Hash uint32
	Mask Mask
}

func (e *RoutingError) Error() string {
	return fmt.Sprintf("routing violation: ID %q (hash 0x%08x) does not belong to partition %q", e.ID, e.Hash, e.Mask)
}

func (e *RoutingError) Unwrap() error { return ErrRoutingViolation }

// RowError wraps a per-row failure of AddOrUpdate with the offending row
// identifier, column and value.
//
// The original underlying error can be accessed via errors.Unwrap.
type RowError struct {
	Row    int
	ID     string
	Column string
	Value  string
	cause  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d (ID %q): column %q value %q: %v", e.Row, e.ID, e.Column, e.Value, e.cause)
}

func (e *RowError) Unwrap() error { return e.cause }
