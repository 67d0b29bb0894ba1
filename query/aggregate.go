package query

import (
	"fmt"
	"strings"

	"github.com/hupe1980/arriba/partition"
	"github.com/hupe1980/arriba/value"
)

// AggregateFunc names an aggregate function.
type AggregateFunc uint8

const (
	Count AggregateFunc = iota
	Sum
	Min
	Max
	Avg
)

func (f AggregateFunc) String() string {
	switch f {
	case Count:
		return "count"
	case Sum:
		return "sum"
	case Min:
		return "min"
	case Max:
		return "max"
	case Avg:
		return "avg"
	default:
		return fmt.Sprintf("AggregateFunc(%d)", uint8(f))
	}
}

// ParseAggregateFunc parses the names returned by AggregateFunc.String.
func ParseAggregateFunc(name string) (AggregateFunc, error) {
	for f := Count; f <= Avg; f++ {
		if strings.EqualFold(name, f.String()) {
			return f, nil
		}
	}
	return 0, fmt.Errorf("query: unknown aggregate function %q", name)
}

// AggregateQuery computes one aggregate over a column of matching rows.
// Null cells are ignored.
type AggregateQuery struct {
	Column string
	Func   AggregateFunc
	Where  Predicate
}

// AggregateResult is the result of an AggregateQuery. Value is null when no
// non-null cell matched (Count returns zero instead).
type AggregateResult struct {
	Base
	Value value.Value `json:"value"`

	count int
	sum   float64
	min   value.Value
	max   value.Value
}

func (q AggregateQuery) numeric() bool { return q.Func == Sum || q.Func == Avg }

// Compute implements Query.
func (q AggregateQuery) Compute(p *partition.Partition) *AggregateResult {
	r := &AggregateResult{Base: newBase()}
	c, ok := p.Column(q.Column)
	if !ok {
		r.Details.AddError("unknown column %q", q.Column)
		return r
	}
	if q.numeric() {
		if k := c.Kind(); k != value.KindInt && k != value.KindFloat {
			r.Details.AddError("%s requires a numeric column, %q is %s", q.Func, q.Column, k)
			return r
		}
	}

	for lid := range matches(p, q.Where, r.Details).All() {
		v := c.Get(int(lid))
		if v.IsNull() {
			continue
		}
		r.count++
		if f, ok := v.Numeric(); ok {
			r.sum += f
		}
		if r.min.IsNull() || value.Compare(v, r.min) < 0 {
			r.min = v
		}
		if r.max.IsNull() || value.Compare(v, r.max) > 0 {
			r.max = v
		}
	}
	return r
}

// Merge implements Query.
func (AggregateQuery) Merge(a, b *AggregateResult) *AggregateResult {
	a.merge(&b.Base)
	a.count += b.count
	a.sum += b.sum
	if !b.min.IsNull() && (a.min.IsNull() || value.Compare(b.min, a.min) < 0) {
		a.min = b.min
	}
	if !b.max.IsNull() && (a.max.IsNull() || value.Compare(b.max, a.max) > 0) {
		a.max = b.max
	}
	return a
}

// RequireMerge implements Query. Value is only set by Finish.
func (AggregateQuery) RequireMerge() bool { return true }

// Finish implements Finisher.
func (q AggregateQuery) Finish(r *AggregateResult) *AggregateResult {
	switch q.Func {
	case Count:
		r.Value = value.Int(int64(r.count))
	case Sum:
		if r.count > 0 {
			r.Value = value.Float(r.sum)
		}
	case Avg:
		if r.count > 0 {
			r.Value = value.Float(r.sum / float64(r.count))
		}
	case Min:
		r.Value = r.min
	case Max:
		r.Value = r.max
	default:
		r.Details.AddError("unknown aggregate function %s", q.Func)
	}
	return r
}

// CacheKey implements Cacheable.
func (q AggregateQuery) CacheKey() string {
	return fmt.Sprintf("aggregate:%s|%s|%s", q.Func, q.Column, whereKey(q.Where))
}
