package partition

import (
	"fmt"
	"strings"

	"github.com/hupe1980/arriba/internal/binfmt"
)

// MaxMaskBits is the largest prefix length a Mask can have.
const MaxMaskBits = 32

// Mask selects the slice of the 32-bit hash space whose top BitCount bits
// equal the top BitCount bits of Value.
//
// Masks produced by BuildSet(n) are disjoint and together cover every hash,
// so each hash belongs to exactly one partition of a table.
type Mask struct {
	BitCount uint8
	Value    uint32
}

// All matches every hash.
var All = Mask{}

// NewMask validates and returns a mask.
func NewMask(bitCount uint8, v uint32) (Mask, error) {
	if bitCount > MaxMaskBits {
		return Mask{}, fmt.Errorf("%w: bit count %d", ErrInvalidMask, bitCount)
	}
	if v&^prefixBits(bitCount) != 0 {
		return Mask{}, fmt.Errorf("%w: value 0x%08x has bits below the %d-bit prefix", ErrInvalidMask, v, bitCount)
	}
	return Mask{BitCount: bitCount, Value: v}, nil
}

func prefixBits(bitCount uint8) uint32 {
	if bitCount == 0 {
		return 0
	}
	return ^uint32(0) << (MaxMaskBits - uint32(bitCount))
}

// Matches reports whether hash falls in the mask.
func (m Mask) Matches(hash uint32) bool {
	return hash&prefixBits(m.BitCount) == m.Value
}

// Index returns the position of m within BuildSet(m.BitCount).
func (m Mask) Index() int {
	return IndexOfHash(m.Value, m.BitCount)
}

// String returns the binary prefix, e.g. "01" for the second mask of
// BuildSet(2). All renders as the empty string.
func (m Mask) String() string {
	var sb strings.Builder
	sb.Grow(int(m.BitCount))
	for i := uint8(0); i < m.BitCount; i++ {
		if m.Value&(1<<(MaxMaskBits-1-uint32(i))) != 0 {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

// ParseMask parses the output of Mask.String.
func ParseMask(s string) (Mask, error) {
	if len(s) > MaxMaskBits {
		return Mask{}, fmt.Errorf("%w: %q is longer than %d bits", ErrInvalidMask, s, MaxMaskBits)
	}
	var v uint32
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '0':
		case '1':
			v |= 1 << (MaxMaskBits - 1 - uint32(i))
		default:
			return Mask{}, fmt.Errorf("%w: %q is not a binary prefix", ErrInvalidMask, s)
		}
	}
	return Mask{BitCount: uint8(len(s)), Value: v}, nil
}

// BuildSet returns the 2^bitCount masks of the given prefix length in
// binary-string order.
func BuildSet(bitCount uint8) []Mask {
	if bitCount > MaxMaskBits {
		bitCount = MaxMaskBits
	}
	count := uint64(1) << bitCount
	set := make([]Mask, count)
	for k := range set {
		var v uint32
		if bitCount > 0 {
			v = uint32(k) << (MaxMaskBits - uint32(bitCount))
		}
		set[k] = Mask{BitCount: bitCount, Value: v}
	}
	return set
}

// IndexOfHash returns the index into BuildSet(bitCount) of the mask that
// matches hash.
func IndexOfHash(hash uint32, bitCount uint8) int {
	if bitCount == 0 {
		return 0
	}
	return int(hash >> (MaxMaskBits - uint32(bitCount)))
}

func writeMask(w *binfmt.Writer, m Mask) {
	w.U8(m.BitCount)
	w.U32(m.Value)
}

func readMask(r *binfmt.Reader) Mask {
	bitCount := r.U8()
	v := r.U32()
	if r.Err() != nil {
		return Mask{}
	}
	m, err := NewMask(bitCount, v)
	if err != nil {
		r.Fail(fmt.Errorf("%w: %w", binfmt.ErrCorrupt, err))
	}
	return m
}
