// Package telemetry exports table metrics to Prometheus.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/arriba"
)

const namespace = "arriba"

// PrometheusCollector implements arriba.MetricsCollector with Prometheus
// metrics. Every series carries the table name as a constant label.
type PrometheusCollector struct {
	opLatency *prometheus.HistogramVec
	ops       *prometheus.CounterVec
	rows      *prometheus.CounterVec
	bytes     *prometheus.CounterVec
	queries   *prometheus.CounterVec
}

var _ arriba.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheusCollector creates a collector for the table name and
// registers its metrics with reg. A nil reg uses prometheus.DefaultRegisterer.
func NewPrometheusCollector(reg prometheus.Registerer, table string) (*PrometheusCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	labels := prometheus.Labels{"table": table}

	c := &PrometheusCollector{
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "operation_latency_seconds",
			Help:        "Latency of table operations.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: labels,
		}, []string{"op", "status"}),
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "operations_total",
			Help:        "Table operations by outcome.",
			ConstLabels: labels,
		}, []string{"op", "status"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "rows_total",
			Help:        "Rows written or deleted.",
			ConstLabels: labels,
		}, []string{"op"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "io_bytes_total",
			Help:        "Partition file bytes written by Save and read by Load.",
			ConstLabels: labels,
		}, []string{"op"}),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "queries_total",
			Help:        "Queries by type and cache outcome.",
			ConstLabels: labels,
		}, []string{"query", "cache"}),
	}

	for _, m := range []prometheus.Collector{c.opLatency, c.ops, c.rows, c.bytes, c.queries} {
		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func (c *PrometheusCollector) observe(op string, d time.Duration, err error) {
	s := status(err)
	c.opLatency.WithLabelValues(op, s).Observe(d.Seconds())
	c.ops.WithLabelValues(op, s).Inc()
}

// RecordAddOrUpdate implements arriba.MetricsCollector.
func (c *PrometheusCollector) RecordAddOrUpdate(rows int, d time.Duration, err error) {
	c.observe("add_or_update", d, err)
	if err == nil {
		c.rows.WithLabelValues("add_or_update").Add(float64(rows))
	}
}

// RecordDelete implements arriba.MetricsCollector.
func (c *PrometheusCollector) RecordDelete(deleted int, d time.Duration, err error) {
	c.observe("delete", d, err)
	c.rows.WithLabelValues("delete").Add(float64(deleted))
}

// RecordQuery implements arriba.MetricsCollector.
func (c *PrometheusCollector) RecordQuery(name string, d time.Duration, cached bool, err error) {
	c.observe("query", d, err)
	cache := "miss"
	if cached {
		cache = "hit"
	}
	c.queries.WithLabelValues(name, cache).Inc()
}

// RecordSave implements arriba.MetricsCollector.
func (c *PrometheusCollector) RecordSave(_ int, bytes int64, d time.Duration, err error) {
	c.observe("save", d, err)
	c.bytes.WithLabelValues("save").Add(float64(bytes))
}

// RecordLoad implements arriba.MetricsCollector.
func (c *PrometheusCollector) RecordLoad(_ int, bytes int64, d time.Duration, err error) {
	c.observe("load", d, err)
	c.bytes.WithLabelValues("load").Add(float64(bytes))
}
