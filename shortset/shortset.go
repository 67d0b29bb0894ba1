package shortset

import (
	"errors"
	"iter"
	"math/bits"
)

// MaxCapacity is the largest capacity a ShortSet can have.
const MaxCapacity = 1<<16 - 1

const wordBits = 64

// ErrBufferTooShort is returned by OrDense when the packed buffer holds
// fewer bits than claimed.
var ErrBufferTooShort = errors.New("shortset: dense buffer too short")

// ShortSet is a fixed-capacity bitset over [0, capacity).
//
// Word i holds the values [i*64, i*64+64) with the most significant bit
// first, so scanning with a leading-zero count yields ascending values.
// Bits at or beyond capacity are never observable.
//
// ShortSet is not safe for concurrent mutation.
type ShortSet struct {
	capacity uint16
	words    []uint64
}

// New creates an empty ShortSet able to hold values in [0, capacity).
// capacity is clamped to [0, MaxCapacity].
func New(capacity int) *ShortSet {
	capacity = min(max(capacity, 0), MaxCapacity)
	return &ShortSet{
		capacity: uint16(capacity),
		words:    make([]uint64, wordCount(capacity)),
	}
}

func wordCount(capacity int) int {
	return (capacity + wordBits - 1) / wordBits
}

func bitOf(v uint16) uint64 {
	return 1 << (wordBits - 1 - uint(v)%wordBits)
}

// Capacity returns the exclusive upper bound of storable values.
func (s *ShortSet) Capacity() int { return int(s.capacity) }

// Add inserts v. Values at or beyond capacity are ignored.
func (s *ShortSet) Add(v uint16) {
	if v >= s.capacity {
		return
	}
	s.words[v/wordBits] |= bitOf(v)
}

// Remove deletes v.
func (s *ShortSet) Remove(v uint16) {
	if v >= s.capacity {
		return
	}
	s.words[v/wordBits] &^= bitOf(v)
}

// Contains reports whether v is in the set.
func (s *ShortSet) Contains(v uint16) bool {
	if v >= s.capacity {
		return false
	}
	return s.words[v/wordBits]&bitOf(v) != 0
}

// Clear removes every value.
func (s *ShortSet) Clear() {
	clear(s.words)
}

// Not complements the set within [0, capacity).
func (s *ShortSet) Not() {
	for i := range s.words {
		s.words[i] = ^s.words[i]
	}
	s.clearExtra()
}

// Or adds every value of other. Words of s beyond other's storage are
// left untouched.
func (s *ShortSet) Or(other *ShortSet) {
	n := min(len(s.words), len(other.words))
	for i := 0; i < n; i++ {
		s.words[i] |= other.words[i]
	}
	s.clearExtra()
}

// And keeps only values also in other. Words of s beyond other's storage
// are left untouched.
func (s *ShortSet) And(other *ShortSet) {
	n := min(len(s.words), len(other.words))
	for i := 0; i < n; i++ {
		s.words[i] &= other.words[i]
	}
	s.clearExtra()
}

// AndNot removes every value of other. Words of s beyond other's storage
// are left untouched.
func (s *ShortSet) AndNot(other *ShortSet) {
	n := min(len(s.words), len(other.words))
	for i := 0; i < n; i++ {
		s.words[i] &^= other.words[i]
	}
}

// OrNot adds every value in [0, other.Capacity()) that other does not
// contain. Values of s at or beyond other's capacity are left untouched.
func (s *ShortSet) OrNot(other *ShortSet) {
	n := min(len(s.words), len(other.words))
	for i := 0; i < n; i++ {
		s.words[i] |= ^other.words[i] & other.validMask(i)
	}
	s.clearExtra()
}

// FromAnd sets s to the intersection of a and b. Words of s beyond the
// shorter operand are cleared since the intersection is empty there.
func (s *ShortSet) FromAnd(a, b *ShortSet) {
	n := min(len(a.words), len(b.words), len(s.words))
	for i := 0; i < n; i++ {
		s.words[i] = a.words[i] & b.words[i]
	}
	clear(s.words[n:])
	s.clearExtra()
}

// validMask returns the bits of word i that lie below capacity.
func (s *ShortSet) validMask(i int) uint64 {
	if i < len(s.words)-1 {
		return ^uint64(0)
	}
	rem := uint(s.capacity) % wordBits
	if rem == 0 {
		return ^uint64(0)
	}
	return ^uint64(0) << (wordBits - rem)
}

func (s *ShortSet) clearExtra() {
	if last := len(s.words) - 1; last >= 0 {
		s.words[last] &= s.validMask(last)
	}
}

// Count returns the number of values in the set.
func (s *ShortSet) Count() int {
	count := 0
	for _, w := range s.words {
		count += bits.OnesCount64(w)
	}
	return count
}

// IsEmpty reports whether the set has no values.
func (s *ShortSet) IsEmpty() bool {
	for _, w := range s.words {
		if w != 0 {
			return false
		}
	}
	return true
}

// Values returns the values in ascending order.
func (s *ShortSet) Values() []uint16 {
	return s.AppendValues(make([]uint16, 0, s.Count()))
}

// AppendValues appends the values in ascending order to dst.
func (s *ShortSet) AppendValues(dst []uint16) []uint16 {
	for i, w := range s.words {
		base := uint16(i * wordBits)
		for w != 0 {
			lz := LeadingZeros(w)
			dst = append(dst, base+uint16(lz))
			w &^= 1 << (wordBits - 1 - lz)
		}
	}
	return dst
}

// All returns an iterator over the values in ascending order.
func (s *ShortSet) All() iter.Seq[uint16] {
	return func(yield func(uint16) bool) {
		for i, w := range s.words {
			base := uint16(i * wordBits)
			for w != 0 {
				lz := LeadingZeros(w)
				if !yield(base + uint16(lz)) {
					return
				}
				w &^= 1 << (wordBits - 1 - lz)
			}
		}
	}
}

// Backward returns an iterator over the values in descending order.
func (s *ShortSet) Backward() iter.Seq[uint16] {
	return func(yield func(uint16) bool) {
		for i := len(s.words) - 1; i >= 0; i-- {
			w := s.words[i]
			base := uint16(i * wordBits)
			for w != 0 {
				tz := bits.TrailingZeros64(w)
				if !yield(base + uint16(wordBits-1-tz)) {
					return
				}
				w &^= 1 << tz
			}
		}
	}
}

// OrSparse adds each listed value. Values at or beyond capacity are
// skipped.
func (s *ShortSet) OrSparse(values []uint16) {
	for _, v := range values {
		if v < s.capacity {
			s.words[v/wordBits] |= bitOf(v)
		}
	}
}

// OrSparse32 is OrSparse for uint32 inputs, as produced by roaring bitmaps.
func (s *ShortSet) OrSparse32(values []uint32) {
	for _, v := range values {
		if v < uint32(s.capacity) {
			s.words[v/wordBits] |= bitOf(uint16(v))
		}
	}
}

// OrDense ORs a packed MSB-first buffer whose first validBits bits are
// meaningful. The buffer length is validated once up front.
func (s *ShortSet) OrDense(words []uint64, validBits int) error {
	if validBits < 0 || wordCount(validBits) > len(words) {
		return ErrBufferTooShort
	}
	validBits = min(validBits, int(s.capacity))
	n := wordCount(validBits)
	for i := 0; i < n; i++ {
		w := words[i]
		if i == n-1 {
			if rem := uint(validBits) % wordBits; rem != 0 {
				w &= ^uint64(0) << (wordBits - rem)
			}
		}
		s.words[i] |= w
	}
	return nil
}

// Clone returns a deep copy of s.
func (s *ShortSet) Clone() *ShortSet {
	c := &ShortSet{capacity: s.capacity, words: make([]uint64, len(s.words))}
	copy(c.words, s.words)
	return c
}

// Equal reports whether s and other have the same capacity and values.
func (s *ShortSet) Equal(other *ShortSet) bool {
	if s.capacity != other.capacity {
		return false
	}
	for i := range s.words {
		if s.words[i] != other.words[i] {
			return false
		}
	}
	return true
}

// LeadingZeros returns the number of leading zero bits in word; 64 for an
// all-zero word.
func LeadingZeros(word uint64) int {
	return bits.LeadingZeros64(word)
}
