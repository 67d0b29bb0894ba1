// Package column implements the typed per-column storage of a partition.
//
// Each column is an array indexed by LID. Primary-key columns keep a
// value-to-LID map so AddOrUpdate can resolve identifiers without boxing;
// indexed columns keep roaring postings per value which are rebuilt once per
// batch in Commit.
package column

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/arriba/execution"
	"github.com/hupe1980/arriba/internal/binfmt"
	"github.com/hupe1980/arriba/shortset"
	"github.com/hupe1980/arriba/value"
)

// Column stores one value per row slot.
type Column interface {
	Details() Details
	// UpdateDetails replaces metadata that does not change storage (alias,
	// default, indexed). Name and kind are ignored.
	UpdateDetails(d Details)
	Kind() value.Kind
	Count() int
	// SetSize grows the column with default values or truncates it.
	SetSize(n int)
	Get(lid int) value.Value
	// Set converts v to the column kind and stores it at lid.
	Set(lid int, v value.Value) error
	// TryGetIndexOf resolves a value to its LID. Only primary-key columns
	// support the lookup; others always report false.
	TryGetIndexOf(v value.Value) (int, bool)
	// Move copies the value at src into dst.
	Move(dst, src int)
	// Commit flushes deferred index work. Called once per batch.
	Commit()
	Where(op Operator, operand value.Value, result *shortset.ShortSet, details *execution.Details)
	VerifyConsistency(level execution.Level, details *execution.Details)
	Encode(w *binfmt.Writer)
	Decode(r *binfmt.Reader)
}

// New creates an empty column for details.
func New(d Details, capacity int) (Column, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	switch d.Kind {
	case value.KindBool:
		return newTyped(d, boolOps, capacity), nil
	case value.KindInt:
		return newTyped(d, intOps, capacity), nil
	case value.KindFloat:
		return newTyped(d, floatOps, capacity), nil
	case value.KindString:
		return newTyped(d, stringOps, capacity), nil
	case value.KindTime:
		return newTyped(d, timeOps, capacity), nil
	case value.KindUUID:
		return newTyped(d, uuidOps, capacity), nil
	default:
		return nil, &KindError{Column: d.Name, Kind: d.Kind}
	}
}

// Convert builds a column of kind to.Kind holding every value of src
// converted. A value that does not convert takes the default of the new
// column when it is the default of src; otherwise Convert stops and returns
// a *ConvertError naming its LID.
func Convert(src Column, to Details) (Column, error) {
	dst, err := New(to, src.Count())
	if err != nil {
		return nil, err
	}
	dst.SetSize(src.Count())
	def := src.Details().DefaultValue()
	for lid := 0; lid < src.Count(); lid++ {
		v := src.Get(lid)
		if err := dst.Set(lid, v); err != nil {
			if !value.Equal(v, def) {
				return nil, &ConvertError{LID: lid, Value: v, cause: err}
			}
			_ = dst.Set(lid, value.Null())
		}
	}
	dst.Commit()
	return dst, nil
}

type typed[T comparable] struct {
	details  Details
	ops      *ops[T]
	values   []T
	def      T
	index    map[T]int
	postings map[T]*roaring.Bitmap
	dirty    bool
}

func newTyped[T comparable](d Details, o *ops[T], capacity int) *typed[T] {
	c := &typed[T]{
		details: d,
		ops:     o,
		values:  make([]T, 0, capacity),
		def:     o.unwrap(d.DefaultValue()),
	}
	if d.IsPrimaryKey {
		c.index = make(map[T]int, capacity)
	}
	return c
}

func (c *typed[T]) Details() Details { return c.details }

func (c *typed[T]) UpdateDetails(d Details) {
	d.Name = c.details.Name
	d.Kind = c.details.Kind
	wasIndexed := c.details.Indexed
	c.details = d
	c.def = c.ops.unwrap(d.DefaultValue())
	switch {
	case d.IsPrimaryKey && c.index == nil:
		c.index = make(map[T]int, len(c.values))
		for lid, v := range c.values {
			c.index[v] = lid
		}
	case !d.IsPrimaryKey:
		c.index = nil
	}
	if d.Indexed && !wasIndexed {
		c.dirty = true
		c.Commit()
	} else if !d.Indexed {
		c.postings = nil
	}
}

func (c *typed[T]) Kind() value.Kind { return c.ops.kind }

func (c *typed[T]) Count() int { return len(c.values) }

func (c *typed[T]) SetSize(n int) {
	switch {
	case n > len(c.values):
		for len(c.values) < n {
			c.values = append(c.values, c.def)
		}
	case n < len(c.values):
		if c.index != nil {
			for lid := n; lid < len(c.values); lid++ {
				if at, ok := c.index[c.values[lid]]; ok && at == lid {
					delete(c.index, c.values[lid])
				}
			}
		}
		clear(c.values[n:])
		c.values = c.values[:n]
	default:
		return
	}
	c.dirty = true
}

func (c *typed[T]) Get(lid int) value.Value {
	return c.ops.wrap(c.values[lid])
}

func (c *typed[T]) convert(v value.Value) (T, error) {
	if v.IsNull() {
		return c.def, nil
	}
	conv, err := value.Convert(v, c.ops.kind)
	if err != nil {
		var zero T
		return zero, err
	}
	return c.ops.unwrap(conv), nil
}

func (c *typed[T]) Set(lid int, v value.Value) error {
	t, err := c.convert(v)
	if err != nil {
		return err
	}
	c.store(lid, t)
	return nil
}

func (c *typed[T]) store(lid int, t T) {
	if c.index != nil {
		if at, ok := c.index[c.values[lid]]; ok && at == lid {
			delete(c.index, c.values[lid])
		}
		c.index[t] = lid
	}
	c.values[lid] = t
	c.dirty = true
}

func (c *typed[T]) TryGetIndexOf(v value.Value) (int, bool) {
	if c.index == nil || v.IsNull() {
		return -1, false
	}
	t, err := c.convert(v)
	if err != nil {
		return -1, false
	}
	lid, ok := c.index[t]
	return lid, ok
}

func (c *typed[T]) Move(dst, src int) {
	if dst == src {
		return
	}
	c.store(dst, c.values[src])
}

func (c *typed[T]) Commit() {
	if !c.dirty {
		return
	}
	c.dirty = false
	if !c.details.Indexed {
		return
	}
	postings := make(map[T]*roaring.Bitmap)
	for lid, v := range c.values {
		bm, ok := postings[v]
		if !ok {
			bm = roaring.New()
			postings[v] = bm
		}
		bm.Add(uint32(lid))
	}
	for _, bm := range postings {
		bm.RunOptimize()
	}
	c.postings = postings
}

func (c *typed[T]) Where(op Operator, operand value.Value, result *shortset.ShortSet, details *execution.Details) {
	if op.textual() {
		text := operand.Text()
		for lid, v := range c.values {
			if op.matchText(c.ops.wrap(v).Text(), text) {
				result.Add(uint16(lid))
			}
		}
		return
	}

	t, err := c.convert(operand)
	if err != nil {
		details.AddError("column %q: %v", c.details.Name, err)
		return
	}

	if op == Equal {
		if c.index != nil {
			if lid, ok := c.index[t]; ok {
				result.Add(uint16(lid))
			}
			return
		}
		if c.postings != nil && !c.dirty {
			if bm, ok := c.postings[t]; ok {
				result.OrSparse32(bm.ToArray())
			}
			return
		}
	}

	for lid, v := range c.values {
		if op.matchOrder(c.ops.compare(v, t)) {
			result.Add(uint16(lid))
		}
	}
}

func (c *typed[T]) VerifyConsistency(level execution.Level, details *execution.Details) {
	if c.index != nil {
		if len(c.index) != len(c.values) {
			details.AddError("column %q: index holds %d entries for %d rows (duplicate primary key?)",
				c.details.Name, len(c.index), len(c.values))
		}
		for lid, v := range c.values {
			if at, ok := c.index[v]; !ok || at != lid {
				details.AddError("column %q: value %s at LID %d not indexed", c.details.Name, c.ops.wrap(v), lid)
				break
			}
		}
	}

	if level < execution.Full || c.postings == nil || c.dirty {
		return
	}
	var total uint64
	for _, bm := range c.postings {
		total += bm.GetCardinality()
	}
	if total != uint64(len(c.values)) {
		details.AddError("column %q: postings cover %d of %d rows", c.details.Name, total, len(c.values))
		return
	}
	for lid, v := range c.values {
		if bm, ok := c.postings[v]; !ok || !bm.Contains(uint32(lid)) {
			details.AddError("column %q: LID %d missing from postings", c.details.Name, lid)
			return
		}
	}
}

func (c *typed[T]) Encode(w *binfmt.Writer) {
	w.U8(uint8(c.ops.kind))
	w.U32(uint32(len(c.values)))
	for _, v := range c.values {
		c.ops.write(w, v)
	}
}

func (c *typed[T]) Decode(r *binfmt.Reader) {
	kind := value.Kind(r.U8())
	count := int(r.U32())
	if r.Err() != nil {
		return
	}
	if kind != c.ops.kind {
		r.Fail(fmt.Errorf("%w: column %q stored as %s, want %s", ErrKindMismatch, c.details.Name, kind, c.ops.kind))
		return
	}
	if count > shortset.MaxCapacity {
		r.Fail(fmt.Errorf("%w: column %q has %d rows", binfmt.ErrCorrupt, c.details.Name, count))
		return
	}

	values := make([]T, count)
	for i := range values {
		values[i] = c.ops.read(r)
	}
	if r.Err() != nil {
		return
	}

	c.values = values
	if c.index != nil {
		c.index = make(map[T]int, count)
		for lid, v := range values {
			c.index[v] = lid
		}
	}
	c.dirty = true
	c.Commit()
}
