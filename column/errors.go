package column

import (
	"errors"
	"fmt"

	"github.com/hupe1980/arriba/value"
)

var (
	// ErrEmptyName is returned for a column without a name.
	ErrEmptyName = errors.New("column name must not be empty")

	// ErrKindMismatch is returned when a persisted column blob does not
	// match the kind the column was created with.
	ErrKindMismatch = errors.New("column kind mismatch")
)

// KindError indicates a column declared with an unusable kind.
type KindError struct {
	Column string
	Kind   value.Kind
}

func (e *KindError) Error() string {
	return fmt.Sprintf("column %q: unsupported kind %s", e.Column, e.Kind)
}

// ConvertError reports a stored value that does not convert to the kind a
// column is being altered to.
type ConvertError struct {
	LID   int
	Value value.Value
	cause error
}

func (e *ConvertError) Error() string {
	return fmt.Sprintf("LID %d: %v", e.LID, e.cause)
}

func (e *ConvertError) Unwrap() error { return e.cause }
