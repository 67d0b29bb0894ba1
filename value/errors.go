package value

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConversion is the root error of every failed conversion.
	ErrInvalidConversion = errors.New("invalid conversion")

	// ErrUnsupportedType is returned by Of for Go types without a Kind.
	ErrUnsupportedType = errors.New("unsupported value type")

	// ErrUnknownKind is returned when parsing an unknown kind name or code.
	ErrUnknownKind = errors.New("unknown kind")

	// ErrOutOfRange is returned when a number does not fit the target kind.
	ErrOutOfRange = errors.New("value out of range")
)

// ConversionError describes a value that could not be converted to a kind.
//
// It matches ErrInvalidConversion with errors.Is. The original underlying
// error (if any) is also reachable through errors.Is / errors.As.
type ConversionError struct {
	From  Kind
	To    Kind
	Text  string
	cause error
}

func (e *ConversionError) Error() string {
	msg := fmt.Sprintf("cannot convert %s %q to %s", e.From, e.Text, e.To)
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *ConversionError) Unwrap() []error {
	if e.cause == nil {
		return []error{ErrInvalidConversion}
	}
	return []error{ErrInvalidConversion, e.cause}
}
