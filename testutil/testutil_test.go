package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/arriba/block"
	"github.com/hupe1980/arriba/value"
)

func TestBugs(t *testing.T) {
	rng := NewRNG(4711)

	b := rng.Bugs(10, 100)

	require.Equal(t, 100, b.RowCount())
	require.Equal(t, len(BugColumns), b.ColumnCount())
	assert.Equal(t, value.Int(10), b.Value(0, 0))
	assert.Equal(t, value.Int(109), b.Value(99, 0))

	for r := 0; r < b.RowCount(); r++ {
		p, ok := b.Value(r, 2).AsInt()
		require.True(t, ok)
		assert.GreaterOrEqual(t, p, int64(0))
		assert.Less(t, p, int64(4))
	}
}

func TestBugsMatchesDetails(t *testing.T) {
	details := BugDetails()
	require.Len(t, details, len(BugColumns))
	for i, d := range details {
		assert.Equal(t, BugColumns[i].Name, d.Name)
		assert.Equal(t, BugColumns[i].Kind, d.Kind)
	}
}

func TestReset(t *testing.T) {
	rng := NewRNG(4711)
	b1 := rng.Bugs(1, 20)

	rng.Reset()
	b2 := rng.Bugs(1, 20)

	assert.Equal(t, block.Rows(b1), block.Rows(b2))
}

func TestZipf(t *testing.T) {
	rng := NewRNG(4711)

	counts := make([]int, 5)
	for range 1000 {
		counts[rng.Zipf(5, 1.5)]++
	}

	assert.Greater(t, counts[0], counts[4])
}

func TestCountWhere(t *testing.T) {
	b, err := block.FromRows([]block.ColumnSpec{{Name: "N"}}, [][]any{{1}, {2}, {3}})
	require.NoError(t, err)

	n := CountWhere(b, 0, func(v value.Value) bool {
		i, _ := v.AsInt()
		return i >= 2
	})
	assert.Equal(t, 2, n)
}
