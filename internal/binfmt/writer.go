package binfmt

import (
	"encoding/binary"
	"io"
	"math"
)

// Writer writes little-endian primitives. The first error is sticky: later
// calls become no-ops and Err reports it.
type Writer struct {
	w   io.Writer
	err error
	buf [binary.MaxVarintLen64]byte
	n   int64
}

// NewWriter creates a Writer on w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Err returns the first write error.
func (bw *Writer) Err() error { return bw.err }

// Len returns the number of bytes written so far.
func (bw *Writer) Len() int64 { return bw.n }

// Raw writes p unchanged.
func (bw *Writer) Raw(p []byte) {
	if bw.err != nil {
		return
	}
	n, err := bw.w.Write(p)
	bw.n += int64(n)
	bw.err = err
}

// U8 writes one byte.
func (bw *Writer) U8(v uint8) {
	bw.buf[0] = v
	bw.Raw(bw.buf[:1])
}

// Bool writes a bool as one byte.
func (bw *Writer) Bool(v bool) {
	if v {
		bw.U8(1)
	} else {
		bw.U8(0)
	}
}

// U16 writes a uint16.
func (bw *Writer) U16(v uint16) {
	binary.LittleEndian.PutUint16(bw.buf[:2], v)
	bw.Raw(bw.buf[:2])
}

// U32 writes a uint32.
func (bw *Writer) U32(v uint32) {
	binary.LittleEndian.PutUint32(bw.buf[:4], v)
	bw.Raw(bw.buf[:4])
}

// I32 writes an int32.
func (bw *Writer) I32(v int32) { bw.U32(uint32(v)) }

// U64 writes a uint64.
func (bw *Writer) U64(v uint64) {
	binary.LittleEndian.PutUint64(bw.buf[:8], v)
	bw.Raw(bw.buf[:8])
}

// I64 writes an int64.
func (bw *Writer) I64(v int64) { bw.U64(uint64(v)) }

// F64 writes a float64 by its IEEE bits.
func (bw *Writer) F64(v float64) { bw.U64(math.Float64bits(v)) }

// Uvarint writes an unsigned varint.
func (bw *Writer) Uvarint(v uint64) {
	n := binary.PutUvarint(bw.buf[:], v)
	bw.Raw(bw.buf[:n])
}

// Bytes writes a uvarint length followed by p.
func (bw *Writer) Bytes(p []byte) {
	bw.Uvarint(uint64(len(p)))
	bw.Raw(p)
}

// String writes a uvarint length followed by s.
func (bw *Writer) String(s string) {
	bw.Uvarint(uint64(len(s)))
	if bw.err != nil {
		return
	}
	n, err := io.WriteString(bw.w, s)
	bw.n += int64(n)
	bw.err = err
}
