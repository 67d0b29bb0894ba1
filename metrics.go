package arriba

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems; package
// telemetry provides a Prometheus implementation.
type MetricsCollector interface {
	// RecordAddOrUpdate is called after each AddOrUpdate with the number of
	// rows in the batch.
	RecordAddOrUpdate(rows int, duration time.Duration, err error)

	// RecordDelete is called after each Delete with the number of removed
	// rows.
	RecordDelete(deleted int, duration time.Duration, err error)

	// RecordQuery is called after each query. name identifies the query
	// type and cached reports whether the result came from the query cache.
	RecordQuery(name string, duration time.Duration, cached bool, err error)

	// RecordSave is called after each Save with the number of partition
	// files and bytes written.
	RecordSave(partitions int, bytes int64, duration time.Duration, err error)

	// RecordLoad is called after each Load with the number of partition
	// files and bytes read.
	RecordLoad(partitions int, bytes int64, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordAddOrUpdate(int, time.Duration, error)    {}
func (NoopMetricsCollector) RecordDelete(int, time.Duration, error)         {}
func (NoopMetricsCollector) RecordQuery(string, time.Duration, bool, error) {}
func (NoopMetricsCollector) RecordSave(int, int64, time.Duration, error)    {}
func (NoopMetricsCollector) RecordLoad(int, int64, time.Duration, error)    {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	AddOrUpdateCount  atomic.Int64
	AddOrUpdateRows   atomic.Int64
	AddOrUpdateErrors atomic.Int64
	DeleteCount       atomic.Int64
	DeletedRows       atomic.Int64
	DeleteErrors      atomic.Int64
	QueryCount        atomic.Int64
	QueryCacheHits    atomic.Int64
	QueryErrors       atomic.Int64
	QueryTotalNanos   atomic.Int64
	SaveCount         atomic.Int64
	SaveBytes         atomic.Int64
	SaveErrors        atomic.Int64
	LoadCount         atomic.Int64
	LoadBytes         atomic.Int64
	LoadErrors        atomic.Int64
}

// RecordAddOrUpdate implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAddOrUpdate(rows int, _ time.Duration, err error) {
	b.AddOrUpdateCount.Add(1)
	if err != nil {
		b.AddOrUpdateErrors.Add(1)
		return
	}
	b.AddOrUpdateRows.Add(int64(rows))
}

// RecordDelete implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDelete(deleted int, _ time.Duration, err error) {
	b.DeleteCount.Add(1)
	b.DeletedRows.Add(int64(deleted))
	if err != nil {
		b.DeleteErrors.Add(1)
	}
}

// RecordQuery implements MetricsCollector.
func (b *BasicMetricsCollector) RecordQuery(_ string, duration time.Duration, cached bool, err error) {
	b.QueryCount.Add(1)
	b.QueryTotalNanos.Add(duration.Nanoseconds())
	if cached {
		b.QueryCacheHits.Add(1)
	}
	if err != nil {
		b.QueryErrors.Add(1)
	}
}

// RecordSave implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSave(_ int, bytes int64, _ time.Duration, err error) {
	b.SaveCount.Add(1)
	b.SaveBytes.Add(bytes)
	if err != nil {
		b.SaveErrors.Add(1)
	}
}

// RecordLoad implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLoad(_ int, bytes int64, _ time.Duration, err error) {
	b.LoadCount.Add(1)
	b.LoadBytes.Add(bytes)
	if err != nil {
		b.LoadErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		AddOrUpdateCount:  b.AddOrUpdateCount.Load(),
		AddOrUpdateRows:   b.AddOrUpdateRows.Load(),
		AddOrUpdateErrors: b.AddOrUpdateErrors.Load(),
		DeleteCount:       b.DeleteCount.Load(),
		DeletedRows:       b.DeletedRows.Load(),
		DeleteErrors:      b.DeleteErrors.Load(),
		QueryCount:        b.QueryCount.Load(),
		QueryCacheHits:    b.QueryCacheHits.Load(),
		QueryErrors:       b.QueryErrors.Load(),
		QueryAvgNanos:     b.getAvgQueryNanos(),
		SaveCount:         b.SaveCount.Load(),
		SaveBytes:         b.SaveBytes.Load(),
		SaveErrors:        b.SaveErrors.Load(),
		LoadCount:         b.LoadCount.Load(),
		LoadBytes:         b.LoadBytes.Load(),
		LoadErrors:        b.LoadErrors.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgQueryNanos() int64 {
	count := b.QueryCount.Load()
	if count == 0 {
		return 0
	}
	return b.QueryTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	AddOrUpdateCount  int64
	AddOrUpdateRows   int64
	AddOrUpdateErrors int64
	DeleteCount       int64
	DeletedRows       int64
	DeleteErrors      int64
	QueryCount        int64
	QueryCacheHits    int64
	QueryErrors       int64
	QueryAvgNanos     int64
	SaveCount         int64
	SaveBytes         int64
	SaveErrors        int64
	LoadCount         int64
	LoadBytes         int64
	LoadErrors        int64
}
