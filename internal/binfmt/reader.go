package binfmt

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// MaxBlobSize bounds any single length-prefixed field.
const MaxBlobSize = 1 << 30

type byteReader interface {
	io.Reader
	io.ByteReader
}

// Reader reads little-endian primitives written by Writer. The first error
// is sticky: later calls return zero values and Err reports it.
type Reader struct {
	r   byteReader
	err error
	buf [8]byte
}

// NewReader creates a Reader on r. r is buffered unless it already
// implements io.ByteReader.
func NewReader(r io.Reader) *Reader {
	br, ok := r.(byteReader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &Reader{r: br}
}

// Err returns the first read error. A truncated stream reports
// io.ErrUnexpectedEOF.
func (br *Reader) Err() error { return br.err }

// Fail records err unless an error is already recorded.
func (br *Reader) Fail(err error) {
	if br.err == nil {
		br.err = err
	}
}

func (br *Reader) fill(p []byte) bool {
	if br.err != nil {
		return false
	}
	if _, err := io.ReadFull(br.r, p); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		br.err = err
		return false
	}
	return true
}

// Raw reads exactly n bytes.
func (br *Reader) Raw(n int) []byte {
	if n < 0 || n > MaxBlobSize {
		br.Fail(fmt.Errorf("%w: length %d", ErrCorrupt, n))
		return nil
	}
	p := make([]byte, n)
	if !br.fill(p) {
		return nil
	}
	return p
}

// U8 reads one byte.
func (br *Reader) U8() uint8 {
	if !br.fill(br.buf[:1]) {
		return 0
	}
	return br.buf[0]
}

// Bool reads a bool written by Writer.Bool.
func (br *Reader) Bool() bool { return br.U8() != 0 }

// U16 reads a uint16.
func (br *Reader) U16() uint16 {
	if !br.fill(br.buf[:2]) {
		return 0
	}
	return binary.LittleEndian.Uint16(br.buf[:2])
}

// U32 reads a uint32.
func (br *Reader) U32() uint32 {
	if !br.fill(br.buf[:4]) {
		return 0
	}
	return binary.LittleEndian.Uint32(br.buf[:4])
}

// I32 reads an int32.
func (br *Reader) I32() int32 { return int32(br.U32()) }

// U64 reads a uint64.
func (br *Reader) U64() uint64 {
	if !br.fill(br.buf[:8]) {
		return 0
	}
	return binary.LittleEndian.Uint64(br.buf[:8])
}

// I64 reads an int64.
func (br *Reader) I64() int64 { return int64(br.U64()) }

// F64 reads a float64.
func (br *Reader) F64() float64 { return math.Float64frombits(br.U64()) }

// Uvarint reads an unsigned varint.
func (br *Reader) Uvarint() uint64 {
	if br.err != nil {
		return 0
	}
	v, err := binary.ReadUvarint(br.r)
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		br.err = err
		return 0
	}
	return v
}

// Bytes reads a length-prefixed byte slice.
func (br *Reader) Bytes() []byte {
	n := br.Uvarint()
	if br.err != nil {
		return nil
	}
	if n > MaxBlobSize {
		br.Fail(fmt.Errorf("%w: length %d", ErrCorrupt, n))
		return nil
	}
	return br.Raw(int(n))
}

// String reads a length-prefixed string.
func (br *Reader) String() string {
	return string(br.Bytes())
}
