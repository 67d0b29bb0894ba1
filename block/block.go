// Package block provides DataBlock, the columnar batch submitted to
// AddOrUpdate, and read-only views over it.
package block

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/arriba/value"
)

// ErrShape is returned when rows do not match the declared columns.
var ErrShape = errors.New("block: row width does not match columns")

// ColumnSpec names a block column and its declared kind. KindNull means
// "infer from the values".
type ColumnSpec struct {
	Name string
	Kind value.Kind
}

// ReadOnly is the read surface of a columnar batch.
type ReadOnly interface {
	RowCount() int
	ColumnCount() int
	Column(i int) ColumnSpec
	// IndexOfColumn returns the position of the named column (compared
	// case-insensitively) or -1.
	IndexOfColumn(name string) int
	Value(row, col int) value.Value
}

// DataBlock is a mutable column-major batch.
type DataBlock struct {
	columns []ColumnSpec
	values  [][]value.Value
}

// New creates a DataBlock with rowCount null rows.
func New(columns []ColumnSpec, rowCount int) *DataBlock {
	b := &DataBlock{
		columns: append([]ColumnSpec(nil), columns...),
		values:  make([][]value.Value, len(columns)),
	}
	for i := range b.values {
		b.values[i] = make([]value.Value, rowCount)
	}
	return b
}

// FromRows builds a DataBlock from row-major Go values. Cells are wrapped
// with value.Of and converted to the declared column kind when one is set.
func FromRows(columns []ColumnSpec, rows [][]any) (*DataBlock, error) {
	b := New(columns, len(rows))
	for r, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("%w: row %d has %d values, want %d", ErrShape, r, len(row), len(columns))
		}
		for c, cell := range row {
			v, err := value.Of(cell)
			if err != nil {
				return nil, fmt.Errorf("row %d column %q: %w", r, columns[c].Name, err)
			}
			if k := columns[c].Kind; k != value.KindNull && !v.IsNull() {
				if v, err = value.Convert(v, k); err != nil {
					return nil, fmt.Errorf("row %d column %q: %w", r, columns[c].Name, err)
				}
			}
			b.values[c][r] = v
		}
	}
	return b, nil
}

// Set stores v at (row, col).
func (b *DataBlock) Set(row, col int, v value.Value) {
	b.values[col][row] = v
}

// RowCount implements ReadOnly.
func (b *DataBlock) RowCount() int {
	if len(b.values) == 0 {
		return 0
	}
	return len(b.values[0])
}

// ColumnCount implements ReadOnly.
func (b *DataBlock) ColumnCount() int { return len(b.columns) }

// Column implements ReadOnly.
func (b *DataBlock) Column(i int) ColumnSpec { return b.columns[i] }

// IndexOfColumn implements ReadOnly.
func (b *DataBlock) IndexOfColumn(name string) int {
	return indexOf(b, name)
}

// Value implements ReadOnly.
func (b *DataBlock) Value(row, col int) value.Value {
	return b.values[col][row]
}

func indexOf(b ReadOnly, name string) int {
	for i := 0; i < b.ColumnCount(); i++ {
		if strings.EqualFold(b.Column(i).Name, name) {
			return i
		}
	}
	return -1
}

type selection struct {
	ReadOnly
	rows []int
}

// Select returns a view of b containing the given rows in the given order.
// The view shares storage with b.
func Select(b ReadOnly, rows []int) ReadOnly {
	return &selection{ReadOnly: b, rows: rows}
}

func (s *selection) RowCount() int { return len(s.rows) }

func (s *selection) Value(row, col int) value.Value {
	return s.ReadOnly.Value(s.rows[row], col)
}

// Rows materializes b as row-major Go-comparable values, mainly for tests
// and debugging.
func Rows(b ReadOnly) [][]value.Value {
	out := make([][]value.Value, b.RowCount())
	for r := range out {
		row := make([]value.Value, b.ColumnCount())
		for c := range row {
			row[c] = b.Value(r, c)
		}
		out[r] = row
	}
	return out
}
