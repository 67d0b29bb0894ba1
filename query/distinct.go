package query

import (
	"fmt"
	"slices"

	"github.com/hupe1980/arriba/partition"
	"github.com/hupe1980/arriba/value"
)

// DistinctQuery counts the distinct values of a column over matching rows.
type DistinctQuery struct {
	Column string
	Where  Predicate
	// Limit caps the number of returned values. Zero means no limit.
	Limit int
}

// DistinctValue is one value with the number of rows holding it.
type DistinctValue struct {
	Value value.Value `json:"value"`
	Count int         `json:"count"`
}

// DistinctResult is the result of a DistinctQuery. Values are ordered by
// descending count, then ascending value.
type DistinctResult struct {
	Base
	Values []DistinctValue `json:"values"`

	counts map[string]*DistinctValue
}

// Compute implements Query.
func (q DistinctQuery) Compute(p *partition.Partition) *DistinctResult {
	r := &DistinctResult{Base: newBase(), counts: make(map[string]*DistinctValue)}
	c, ok := p.Column(q.Column)
	if !ok {
		r.Details.AddError("unknown column %q", q.Column)
		return r
	}
	for lid := range matches(p, q.Where, r.Details).All() {
		r.add(c.Get(int(lid)), 1)
	}
	return r
}

func (r *DistinctResult) add(v value.Value, n int) {
	if r.counts == nil {
		r.counts = make(map[string]*DistinctValue)
	}
	key := v.Kind().String() + ":" + v.Text()
	if dv, ok := r.counts[key]; ok {
		dv.Count += n
		return
	}
	r.counts[key] = &DistinctValue{Value: v, Count: n}
}

// Merge implements Query.
func (DistinctQuery) Merge(a, b *DistinctResult) *DistinctResult {
	a.merge(&b.Base)
	for _, dv := range b.counts {
		a.add(dv.Value, dv.Count)
	}
	return a
}

// RequireMerge implements Query. Values are only materialized by Finish.
func (DistinctQuery) RequireMerge() bool { return true }

// Finish implements Finisher.
func (q DistinctQuery) Finish(r *DistinctResult) *DistinctResult {
	r.Values = make([]DistinctValue, 0, len(r.counts))
	for _, dv := range r.counts {
		r.Values = append(r.Values, *dv)
	}
	slices.SortFunc(r.Values, func(a, b DistinctValue) int {
		if a.Count != b.Count {
			return b.Count - a.Count
		}
		return value.Compare(a.Value, b.Value)
	})
	if q.Limit > 0 && len(r.Values) > q.Limit {
		r.Values = r.Values[:q.Limit]
	}
	r.counts = nil
	return r
}

// CacheKey implements Cacheable.
func (q DistinctQuery) CacheKey() string {
	return fmt.Sprintf("distinct:%s|%s|%d", q.Column, whereKey(q.Where), q.Limit)
}
