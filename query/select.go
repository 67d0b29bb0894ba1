package query

import (
	"fmt"
	"slices"
	"strings"

	"github.com/hupe1980/arriba/partition"
	"github.com/hupe1980/arriba/value"
)

// SelectQuery returns column values of matching rows, optionally ordered
// and paged.
type SelectQuery struct {
	// Columns to return. Empty selects every column.
	Columns    []string
	Where      Predicate
	OrderBy    string
	Descending bool
	Skip       int
	// Count limits the number of returned rows. Zero means no limit.
	Count int
}

// SelectResult is the result of a SelectQuery.
type SelectResult struct {
	Base
	Columns []string        `json:"columns"`
	Rows    [][]value.Value `json:"-"`
	// Total is the number of matching rows before paging.
	Total int `json:"total"`

	keys []value.Value
}

func (q SelectQuery) limit() int {
	if q.Count <= 0 {
		return -1
	}
	return q.Skip + q.Count
}

func (q SelectQuery) less(a, b value.Value) int {
	c := value.Compare(a, b)
	if q.Descending {
		return -c
	}
	return c
}

// Compute implements Query.
func (q SelectQuery) Compute(p *partition.Partition) *SelectResult {
	r := &SelectResult{Base: newBase()}
	set := matches(p, q.Where, r.Details)
	lids := set.Values()
	r.Total = len(lids)

	r.Columns = q.Columns
	if len(r.Columns) == 0 {
		for _, d := range p.ColumnDetails() {
			r.Columns = append(r.Columns, d.Name)
		}
	}

	if q.OrderBy != "" {
		oc, ok := p.Column(q.OrderBy)
		if !ok {
			r.Details.AddError("unknown column %q", q.OrderBy)
			return r
		}
		keyed := make([]keyedLID, len(lids))
		for i, lid := range lids {
			keyed[i] = keyedLID{lid: lid, key: oc.Get(int(lid))}
		}
		slices.SortStableFunc(keyed, func(a, b keyedLID) int { return q.less(a.key, b.key) })
		if n := q.limit(); n >= 0 && len(keyed) > n {
			keyed = keyed[:n]
		}
		lids = lids[:len(keyed)]
		r.keys = make([]value.Value, len(keyed))
		for i, k := range keyed {
			lids[i] = k.lid
			r.keys[i] = k.key
		}
	} else if n := q.limit(); n >= 0 && len(lids) > n {
		lids = lids[:n]
	}

	cols := make([]func(lid int) value.Value, len(r.Columns))
	for i, name := range r.Columns {
		c, ok := p.Column(name)
		if !ok {
			r.Details.AddError("unknown column %q", name)
			cols[i] = func(int) value.Value { return value.Null() }
			continue
		}
		cols[i] = c.Get
	}

	r.Rows = make([][]value.Value, len(lids))
	for i, lid := range lids {
		row := make([]value.Value, len(cols))
		for j, get := range cols {
			row[j] = get(int(lid))
		}
		r.Rows[i] = row
	}
	return r
}

type keyedLID struct {
	lid uint16
	key value.Value
}

// Merge implements Query. Ordered results are merged by sort key.
func (q SelectQuery) Merge(a, b *SelectResult) *SelectResult {
	a.merge(&b.Base)
	a.Total += b.Total
	if len(a.Columns) == 0 {
		a.Columns = b.Columns
	}

	if q.OrderBy == "" || len(a.keys) != len(a.Rows) || len(b.keys) != len(b.Rows) {
		a.Rows = append(a.Rows, b.Rows...)
		a.keys = nil
	} else {
		rows := make([][]value.Value, 0, len(a.Rows)+len(b.Rows))
		keys := make([]value.Value, 0, len(rows))
		i, j := 0, 0
		for i < len(a.Rows) || j < len(b.Rows) {
			if j >= len(b.Rows) || (i < len(a.Rows) && q.less(a.keys[i], b.keys[j]) <= 0) {
				rows, keys = append(rows, a.Rows[i]), append(keys, a.keys[i])
				i++
			} else {
				rows, keys = append(rows, b.Rows[j]), append(keys, b.keys[j])
				j++
			}
		}
		a.Rows, a.keys = rows, keys
	}

	if n := q.limit(); n >= 0 && len(a.Rows) > n {
		a.Rows = a.Rows[:n]
		if a.keys != nil {
			a.keys = a.keys[:n]
		}
	}
	return a
}

// RequireMerge implements Query.
func (SelectQuery) RequireMerge() bool { return false }

// Finish implements Finisher by applying Skip.
func (q SelectQuery) Finish(r *SelectResult) *SelectResult {
	skip := min(max(q.Skip, 0), len(r.Rows))
	r.Rows = r.Rows[skip:]
	r.keys = nil
	return r
}

// CacheKey implements Cacheable.
func (q SelectQuery) CacheKey() string {
	return fmt.Sprintf("select:%s|%s|%s|%t|%d|%d",
		strings.Join(q.Columns, ","), whereKey(q.Where), q.OrderBy, q.Descending, q.Skip, q.Count)
}
