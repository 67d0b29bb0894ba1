package arriba

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/arriba/query"
)

// Query evaluates q on every partition of t and returns the merged result.
//
// Partitions are computed in parallel under the table's read lock and the
// partial results are merged pairwise as they complete. A table with a
// single partition returns its result directly unless q.RequireMerge
// reports otherwise. When q implements query.Finisher, Finish is applied to
// the merged result.
//
// Semantic problems (unknown columns, denied columns) are reported on the
// result's execution details; the error is only set when ctx is done.
func Query[T query.Result](ctx context.Context, t *Table, q query.Query[T]) (T, error) {
	start := time.Now()
	r, cached, err := runQuery(ctx, t, q)
	duration := time.Since(start)

	name := queryName(q)
	t.opts.metricsCollector.RecordQuery(name, duration, cached, err)
	t.logger.LogQuery(ctx, name, duration, cached, err)
	return r, err
}

func runQuery[T query.Result](ctx context.Context, t *Table, q query.Query[T]) (T, bool, error) {
	var zero T

	t.mu.RLock()
	defer t.mu.RUnlock()

	key, cacheable := t.cacheKey(q)
	if cacheable {
		if v, ok := t.cache.Get(key); ok {
			if r, ok := v.(T); ok {
				return r, true, nil
			}
		}
	}

	start := time.Now()
	r, err := computeLocked(ctx, t, q)
	if err != nil {
		return zero, false, err
	}
	if f, ok := q.(query.Finisher[T]); ok {
		r = f.Finish(r)
	}
	r.SetRuntime(time.Since(start))

	if cacheable {
		t.cache.Add(key, r)
	}
	return r, false, nil
}

func computeLocked[T query.Result](ctx context.Context, t *Table, q query.Query[T]) (T, error) {
	var zero T

	if len(t.partitions) == 1 && !q.RequireMerge() {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		return q.Compute(t.partitions[0]), nil
	}

	pool := &mergePool[T]{merge: q.Merge}
	err := t.fanOut(ctx, true, len(t.partitions), func(_ context.Context, i int) error {
		pool.add(q.Compute(t.partitions[i]))
		return nil
	})
	if err != nil {
		return zero, err
	}
	return pool.result(), nil
}

func (t *Table) cacheKey(q any) (string, bool) {
	if t.cache == nil {
		return "", false
	}
	c, ok := q.(query.Cacheable)
	if !ok {
		return "", false
	}
	return fmt.Sprintf("%T|%s", q, c.CacheKey()), true
}

func queryName(q any) string {
	name := fmt.Sprintf("%T", q)
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// mergePool merges partial results pairwise as partitions finish. A partial
// either parks in pending or takes a parked one and merges with it outside
// the lock; the merged result re-enters the pool.
type mergePool[T any] struct {
	mu      sync.Mutex
	pending []T
	merge   func(a, b T) T
}

func (m *mergePool[T]) add(r T) {
	for {
		m.mu.Lock()
		n := len(m.pending)
		if n == 0 {
			m.pending = append(m.pending, r)
			m.mu.Unlock()
			return
		}
		other := m.pending[n-1]
		m.pending = m.pending[:n-1]
		m.mu.Unlock()

		r = m.merge(other, r)
	}
}

// result merges whatever is left. It must only be called after every add
// has returned.
func (m *mergePool[T]) result() T {
	m.mu.Lock()
	defer m.mu.Unlock()

	var r T
	for i, p := range m.pending {
		if i == 0 {
			r = p
			continue
		}
		r = m.merge(r, p)
	}
	m.pending = nil
	return r
}
