package binfmt

import (
	"bytes"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
)

var (
	// ErrCorrupt is returned when an envelope or field fails validation.
	ErrCorrupt = errors.New("binfmt: corrupt data")

	// ErrUnknownCompression is returned for unknown compression codes.
	ErrUnknownCompression = errors.New("binfmt: unknown compression")

	// ErrVersion is returned for envelopes written by a newer format.
	ErrVersion = errors.New("binfmt: unsupported version")
)

// Magic opens every envelope.
var Magic = [4]byte{'A', 'R', 'B', '1'}

// Version is the current envelope version.
const Version uint8 = 1

const headerSize = 4 + 1 + 1 + 4 + 4 + 4

var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// CRC32C computes the CRC32-Castagnoli checksum of data.
func CRC32C(data []byte) uint32 {
	return crc32.Checksum(data, crc32cTable)
}

// ChecksumMismatchError is returned when the stored checksum does not match
// the payload. It matches ErrCorrupt with errors.Is.
type ChecksumMismatchError struct {
	Expected uint32
	Actual   uint32
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch: expected 0x%08x, got 0x%08x", e.Expected, e.Actual)
}

func (e *ChecksumMismatchError) Unwrap() error { return ErrCorrupt }

// Encode writes payload wrapped in an envelope using compression c.
func Encode(w io.Writer, payload []byte, c Compression) error {
	if uint64(len(payload)) > MaxBlobSize {
		return fmt.Errorf("%w: payload of %d bytes", ErrCorrupt, len(payload))
	}
	body, used, err := compress(payload, c)
	if err != nil {
		return err
	}

	bw := NewWriter(w)
	bw.Raw(Magic[:])
	bw.U8(Version)
	bw.U8(uint8(used))
	bw.U32(uint32(len(payload)))
	bw.U32(uint32(len(body)))
	bw.U32(CRC32C(payload))
	bw.Raw(body)
	return bw.Err()
}

// Decode reads one envelope from r and returns the verified payload.
func Decode(r io.Reader) ([]byte, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("%w: short header: %w", ErrCorrupt, err)
	}

	hr := NewReader(bytes.NewReader(header[:]))
	var magic [4]byte
	copy(magic[:], hr.Raw(4))
	version := hr.U8()
	c := Compression(hr.U8())
	rawLen := hr.U32()
	bodyLen := hr.U32()
	sum := hr.U32()
	if err := hr.Err(); err != nil {
		return nil, err
	}

	if magic != Magic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrCorrupt, magic[:])
	}
	if version > Version {
		return nil, fmt.Errorf("%w: %d", ErrVersion, version)
	}
	if rawLen > MaxBlobSize || bodyLen > MaxBlobSize {
		return nil, fmt.Errorf("%w: length out of range", ErrCorrupt)
	}

	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("%w: short body: %w", ErrCorrupt, err)
	}

	payload, err := decompress(body, c, int(rawLen))
	if err != nil {
		return nil, err
	}
	if len(payload) != int(rawLen) {
		return nil, fmt.Errorf("%w: decoded %d bytes, want %d", ErrCorrupt, len(payload), rawLen)
	}
	if actual := CRC32C(payload); actual != sum {
		return nil, &ChecksumMismatchError{Expected: sum, Actual: actual}
	}
	return payload, nil
}
