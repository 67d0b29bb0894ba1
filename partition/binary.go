package partition

import (
	"fmt"
	"io"

	"github.com/hupe1980/arriba/column"
	"github.com/hupe1980/arriba/internal/binfmt"
)

// maxColumns bounds the column count accepted from a partition file.
const maxColumns = 1 << 12

// Encode serializes the partition:
//
//	[mask][item count u16][column count i32] then per column [details blob][column blob]
//
// The details blob is length-prefixed MessagePack, so readers can skip
// fields they do not know.
func (p *Partition) Encode(w io.Writer) error {
	bw := binfmt.NewWriter(w)
	writeMask(bw, p.mask)
	bw.U16(uint16(p.count))
	bw.I32(int32(len(p.columns)))
	for _, c := range p.columns {
		blob, err := c.Details().MarshalMsg(nil)
		if err != nil {
			return err
		}
		bw.Bytes(blob)
		c.Encode(bw)
	}
	return bw.Err()
}

// Decode replaces the partition's contents with a serialized partition.
// On error the partition is left unchanged.
func (p *Partition) Decode(r io.Reader) error {
	br := binfmt.NewReader(r)
	mask := readMask(br)
	count := int(br.U16())
	n := int(br.I32())
	if err := br.Err(); err != nil {
		return err
	}
	if count > MaxItems {
		return fmt.Errorf("%w: %d rows exceed partition capacity", binfmt.ErrCorrupt, count)
	}
	if n < 0 || n > maxColumns {
		return fmt.Errorf("%w: column count %d", binfmt.ErrCorrupt, n)
	}

	next := &Partition{mask: mask, count: count, idColumn: -1}
	for i := 0; i < n; i++ {
		blob := br.Bytes()
		if err := br.Err(); err != nil {
			return err
		}
		var d column.Details
		if _, err := d.UnmarshalMsg(blob); err != nil {
			return fmt.Errorf("%w: column %d details: %w", binfmt.ErrCorrupt, i, err)
		}

		c, err := column.New(d, count)
		if err != nil {
			return fmt.Errorf("%w: %w", binfmt.ErrCorrupt, err)
		}
		c.Decode(br)
		if err := br.Err(); err != nil {
			return fmt.Errorf("column %q: %w", d.Name, err)
		}
		if c.Count() != count {
			return fmt.Errorf("%w: column %q has %d rows, expected %d", binfmt.ErrCorrupt, d.Name, c.Count(), count)
		}

		if d.IsPrimaryKey {
			if next.idColumn >= 0 {
				return fmt.Errorf("%w: %w", binfmt.ErrCorrupt, ErrDuplicatePrimaryKey)
			}
			next.idColumn = len(next.columns)
		}
		next.columns = append(next.columns, c)
	}
	if count > 0 && next.idColumn < 0 {
		return fmt.Errorf("%w: %w", binfmt.ErrCorrupt, ErrMissingIDColumn)
	}

	*p = *next
	return nil
}
