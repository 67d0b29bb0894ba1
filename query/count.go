package query

import "github.com/hupe1980/arriba/partition"

// CountQuery counts matching rows.
type CountQuery struct {
	Where Predicate
}

// CountResult is the result of a CountQuery.
type CountResult struct {
	Base
	Count int `json:"count"`
}

// Compute implements Query.
func (q CountQuery) Compute(p *partition.Partition) *CountResult {
	r := &CountResult{Base: newBase()}
	r.Count = matches(p, q.Where, r.Details).Count()
	return r
}

// Merge implements Query.
func (CountQuery) Merge(a, b *CountResult) *CountResult {
	a.Count += b.Count
	a.merge(&b.Base)
	return a
}

// RequireMerge implements Query.
func (CountQuery) RequireMerge() bool { return false }

// CacheKey implements Cacheable.
func (q CountQuery) CacheKey() string { return "count:" + whereKey(q.Where) }
