package block

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/arriba/value"
)

func TestFromRows(t *testing.T) {
	cols := []ColumnSpec{{Name: "ID", Kind: value.KindInt}, {Name: "Title"}}
	b, err := FromRows(cols, [][]any{
		{"1", "first"},
		{2, nil},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, b.RowCount())
	assert.Equal(t, 2, b.ColumnCount())
	assert.Equal(t, value.Int(1), b.Value(0, 0))
	assert.Equal(t, value.String("first"), b.Value(0, 1))
	assert.True(t, b.Value(1, 1).IsNull())
	assert.Equal(t, 1, b.IndexOfColumn("title"))
	assert.Equal(t, -1, b.IndexOfColumn("missing"))
}

func TestFromRowsErrors(t *testing.T) {
	cols := []ColumnSpec{{Name: "ID", Kind: value.KindInt}}

	_, err := FromRows(cols, [][]any{{1, 2}})
	assert.ErrorIs(t, err, ErrShape)

	_, err = FromRows(cols, [][]any{{"abc"}})
	assert.ErrorIs(t, err, value.ErrInvalidConversion)
}

func TestSelect(t *testing.T) {
	b, err := FromRows([]ColumnSpec{{Name: "ID"}}, [][]any{{10}, {11}, {12}})
	require.NoError(t, err)

	view := Select(b, []int{2, 0})
	assert.Equal(t, 2, view.RowCount())
	assert.Equal(t, 1, view.ColumnCount())
	assert.Equal(t, value.Int(12), view.Value(0, 0))
	assert.Equal(t, value.Int(10), view.Value(1, 0))
	assert.Equal(t, 0, view.IndexOfColumn("id"))

	assert.Equal(t, [][]value.Value{{value.Int(12)}, {value.Int(10)}}, Rows(view))
}

func TestEmptyBlock(t *testing.T) {
	b := New(nil, 0)
	assert.Equal(t, 0, b.RowCount())
	assert.Equal(t, 0, b.ColumnCount())
}
