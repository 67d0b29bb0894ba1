// Package query defines the predicates and queries a table evaluates per
// partition.
//
// A Query computes a partial result for one partition and knows how to
// merge two partial results. The table computes every partition in
// parallel, merges the partials pairwise and finally calls Finish when the
// query implements Finisher.
package query

import (
	"time"

	"github.com/hupe1980/arriba/execution"
	"github.com/hupe1980/arriba/partition"
	"github.com/hupe1980/arriba/shortset"
)

// Result is the common surface of query results.
type Result interface {
	ExecutionDetails() *execution.Details
	SetRuntime(d time.Duration)
}

// Query computes a per-partition result and merges partials.
type Query[T Result] interface {
	Compute(p *partition.Partition) T
	// Merge combines two partials. It may reuse a and must return the
	// combined result.
	Merge(a, b T) T
	// RequireMerge reports whether results must go through the merge path
	// even when the table has a single partition.
	RequireMerge() bool
}

// Finisher is implemented by queries that post-process the merged result
// (skip rows, compute averages, apply limits).
type Finisher[T Result] interface {
	Finish(r T) T
}

// Cacheable is implemented by queries whose results may be cached until the
// next write. Equal keys must mean equal results.
type Cacheable interface {
	CacheKey() string
}

// Base carries the fields every result shares. Embed it by value.
type Base struct {
	Details *execution.Details `json:"details"`
	Runtime time.Duration      `json:"runtime"`
}

func newBase() Base {
	return Base{Details: execution.New()}
}

// ExecutionDetails implements Result.
func (b *Base) ExecutionDetails() *execution.Details { return b.Details }

// SetRuntime implements Result.
func (b *Base) SetRuntime(d time.Duration) { b.Runtime = d }

func (b *Base) merge(other *Base) {
	if b.Details == nil {
		b.Details = execution.New()
	}
	b.Details.Merge(other.Details)
}

// matches evaluates where against p. A nil predicate matches every row.
func matches(p *partition.Partition, where Predicate, details *execution.Details) *shortset.ShortSet {
	set := shortset.New(p.Count())
	if where == nil {
		where = All()
	}
	where.Evaluate(p, set, details)
	return set
}

func whereKey(where Predicate) string {
	if where == nil {
		return describe(All())
	}
	return describe(where)
}
