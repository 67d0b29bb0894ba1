package partition

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSetStrings(t *testing.T) {
	var names []string
	for _, m := range BuildSet(2) {
		names = append(names, m.String())
	}
	assert.Equal(t, []string{"00", "01", "10", "11"}, names)

	all := BuildSet(0)
	require.Len(t, all, 1)
	assert.Equal(t, "", all[0].String())
	assert.Equal(t, All, all[0])
	assert.True(t, all[0].Matches(0xDEADBEEF))
}

func TestEveryHashHasExactlyOneMask(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	hashes := []uint32{0, 1, 0x7FFFFFFF, 0x80000000, 0xFFFFFFFF}
	for i := 0; i < 500; i++ {
		hashes = append(hashes, rng.Uint32())
	}

	for bits := uint8(0); bits <= 8; bits++ {
		set := BuildSet(bits)
		require.Len(t, set, 1<<bits)
		for _, h := range hashes {
			idx := IndexOfHash(h, bits)
			require.True(t, set[idx].Matches(h), "bits=%d hash=0x%08x", bits, h)

			matches := 0
			for _, m := range set {
				if m.Matches(h) {
					matches++
				}
			}
			require.Equal(t, 1, matches, "bits=%d hash=0x%08x", bits, h)
		}
	}
}

func TestMaskIndexAndParse(t *testing.T) {
	for i, m := range BuildSet(3) {
		assert.Equal(t, i, m.Index())

		back, err := ParseMask(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, back)
	}

	_, err := ParseMask("01x")
	assert.ErrorIs(t, err, ErrInvalidMask)
}

func TestNewMaskValidation(t *testing.T) {
	m, err := NewMask(1, 0x80000000)
	require.NoError(t, err)
	assert.Equal(t, "1", m.String())

	_, err = NewMask(1, 0x40000000)
	assert.ErrorIs(t, err, ErrInvalidMask)

	_, err = NewMask(33, 0)
	assert.ErrorIs(t, err, ErrInvalidMask)

	full, err := NewMask(32, 0x12345678)
	require.NoError(t, err)
	assert.True(t, full.Matches(0x12345678))
	assert.False(t, full.Matches(0x12345679))
}
