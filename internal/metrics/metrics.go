// Package metrics exposes Prometheus counters for the ledger engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	settlements *prometheus.CounterVec
	bulk        *prometheus.CounterVec
	cache       *prometheus.CounterVec
	rpc         *prometheus.HistogramVec
}

// New creates the counters and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "expenseledger",
			Name:      "settlement_operations_total",
			Help:      "Settlement ledger operations by operation and outcome.",
		}, []string{"op", "outcome"}),
		bulk: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "expenseledger",
			Name:      "bulk_expenses_total",
			Help:      "Expenses processed by the bulk allocator by outcome.",
		}, []string{"outcome"}),
		cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "expenseledger",
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by kind and result.",
		}, []string{"kind", "result"}),
		rpc: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "expenseledger",
			Name:      "rpc_duration_seconds",
			Help:      "RPC latency by procedure and code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"procedure", "code"}),
	}
	reg.MustRegister(m.settlements, m.bulk, m.cache, m.rpc)
	return m
}

// Settlement counts one settlement ledger operation.
func (m *Metrics) Settlement(op string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.settlements.WithLabelValues(op, outcome).Inc()
}

// Bulk counts applied and skipped expenses of one batch.
func (m *Metrics) Bulk(applied, skipped int) {
	if m == nil {
		return
	}
	m.bulk.WithLabelValues("applied").Add(float64(applied))
	m.bulk.WithLabelValues("skipped").Add(float64(skipped))
}

// CacheLookup counts a cache hit or miss for kind ("allocation", "stats").
func (m *Metrics) CacheLookup(kind string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cache.WithLabelValues(kind, result).Inc()
}

// RPC observes one call. code is "ok" or a Connect error code.
func (m *Metrics) RPC(procedure, code string, d time.Duration) {
	if m == nil {
		return
	}
	m.rpc.WithLabelValues(procedure, code).Observe(d.Seconds())
}
