package shortset

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rangeValues(lo, hi int) []uint16 {
	out := make([]uint16, 0, hi-lo)
	for v := lo; v < hi; v++ {
		out = append(out, uint16(v))
	}
	return out
}

func TestAddRemoveValues(t *testing.T) {
	s := New(100)
	s.Add(15)
	s.Add(64)
	assert.Equal(t, []uint16{15, 64}, s.Values())
	assert.True(t, s.Contains(64))

	s.Remove(64)
	assert.Equal(t, []uint16{15}, s.Values())
	assert.Equal(t, 1, s.Count())
}

func TestOutOfRangeIsNoop(t *testing.T) {
	s := New(10)
	s.Add(10)
	s.Add(500)
	assert.False(t, s.Contains(10))
	assert.True(t, s.IsEmpty())
	s.Remove(500)
	assert.Equal(t, 0, s.Count())
}

func TestNotStaysWithinCapacity(t *testing.T) {
	s := New(10)
	s.Not()
	assert.Equal(t, rangeValues(0, 10), s.Values())
	assert.Equal(t, 10, s.Count())

	s.Not()
	assert.True(t, s.IsEmpty())
}

func TestAndPreservesBitsBeyondSmallerOperand(t *testing.T) {
	s2 := New(120)
	s2.Not()
	s3 := New(64)
	s3.Not()

	s2.And(s3)
	assert.True(t, s2.Contains(63))
	for v := uint16(64); v < 120; v++ {
		assert.True(t, s2.Contains(v), "value %d", v)
	}
	assert.Equal(t, 120, s2.Count())
}

func TestAndClearsWithinSharedWords(t *testing.T) {
	a := New(128)
	a.Not()
	b := New(128)
	b.Add(3)
	b.Add(70)

	a.And(b)
	assert.Equal(t, []uint16{3, 70}, a.Values())
}

func TestOr(t *testing.T) {
	big := New(200)
	big.Add(150)
	small := New(64)
	small.Add(1)
	small.Add(63)

	big.Or(small)
	assert.Equal(t, []uint16{1, 63, 150}, big.Values())

	// Bits of a wider operand never leak past capacity.
	tiny := New(10)
	wide := New(64)
	wide.Not()
	tiny.Or(wide)
	assert.Equal(t, rangeValues(0, 10), tiny.Values())
}

func TestAndNot(t *testing.T) {
	s := New(130)
	s.Not()
	other := New(64)
	other.Not()

	s.AndNot(other)
	assert.Equal(t, rangeValues(64, 130), s.Values())
}

func TestOrNot(t *testing.T) {
	s := New(128)
	s.Add(100)
	other := New(10)
	other.Add(2)

	s.OrNot(other)
	want := []uint16{0, 1, 3, 4, 5, 6, 7, 8, 9, 100}
	assert.Equal(t, want, s.Values())
}

func TestFromAnd(t *testing.T) {
	a := New(200)
	a.Not()
	b := New(64)
	b.Add(5)
	b.Add(40)

	s := New(200)
	s.Add(199)
	s.FromAnd(a, b)
	assert.Equal(t, []uint16{5, 40}, s.Values())
}

func TestSparseLoad(t *testing.T) {
	s := New(70)
	s.OrSparse([]uint16{69, 3, 70, 1000})
	assert.Equal(t, []uint16{3, 69}, s.Values())

	s.OrSparse32([]uint32{4, 70000})
	assert.Equal(t, []uint16{3, 4, 69}, s.Values())
}

func TestDenseLoad(t *testing.T) {
	s := New(100)
	buf := []uint64{1 << 63, ^uint64(0)}

	require.NoError(t, s.OrDense(buf, 70))
	want := append([]uint16{0}, rangeValues(64, 70)...)
	assert.Equal(t, want, s.Values())

	assert.ErrorIs(t, s.OrDense(buf, 129), ErrBufferTooShort)
	assert.ErrorIs(t, s.OrDense(buf, -1), ErrBufferTooShort)
}

func TestIterators(t *testing.T) {
	s := New(300)
	for _, v := range []uint16{0, 63, 64, 127, 255, 299} {
		s.Add(v)
	}

	assert.Equal(t, s.Values(), slices.Collect(s.All()))

	desc := slices.Collect(s.Backward())
	assert.Equal(t, []uint16{299, 255, 127, 64, 63, 0}, desc)

	var first []uint16
	for v := range s.All() {
		first = append(first, v)
		if len(first) == 2 {
			break
		}
	}
	assert.Equal(t, []uint16{0, 63}, first)
}

func TestCountReflectsCurrentState(t *testing.T) {
	s := New(64)
	assert.Equal(t, 0, s.Count())
	s.Add(1)
	assert.Equal(t, 1, s.Count())
	s.Clear()
	assert.Equal(t, 0, s.Count())
}

func TestLeadingZeros(t *testing.T) {
	assert.Equal(t, 64, LeadingZeros(0))
	assert.Equal(t, 0, LeadingZeros(1<<63))
	assert.Equal(t, 63, LeadingZeros(1))
}

func TestCloneEqual(t *testing.T) {
	s := New(90)
	s.Add(89)
	c := s.Clone()
	assert.True(t, s.Equal(c))
	c.Add(1)
	assert.False(t, s.Equal(c))
	assert.False(t, s.Equal(New(91)))
}

func TestCapacityClamp(t *testing.T) {
	assert.Equal(t, MaxCapacity, New(1<<20).Capacity())
	assert.Equal(t, 0, New(-5).Capacity())

	s := New(MaxCapacity)
	s.Not()
	assert.Equal(t, MaxCapacity, s.Count())
	assert.False(t, s.Contains(MaxCapacity))
}
