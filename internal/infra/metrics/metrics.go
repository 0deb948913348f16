package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles the service counters behind one prometheus registry.
type Registry struct {
	reg *prometheus.Registry

	RecalcTotal      prometheus.Counter
	RecalcLatencySec prometheus.Histogram
	VersionConflicts prometheus.Counter
	Freezes          prometheus.Counter
	Unfreezes        prometheus.Counter
	CacheHits        prometheus.Counter
	CacheMisses      prometheus.Counter
	CacheInvalidated prometheus.Counter
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()

	recalc := prometheus.NewCounter(prometheus.CounterOpts{Name: "costing_recalc_total"})
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "costing_recalc_latency_seconds",
		Buckets: prometheus.DefBuckets,
	})
	conflicts := prometheus.NewCounter(prometheus.CounterOpts{Name: "costing_version_conflicts_total"})
	freezes := prometheus.NewCounter(prometheus.CounterOpts{Name: "costing_batch_freezes_total"})
	unfreezes := prometheus.NewCounter(prometheus.CounterOpts{Name: "costing_batch_unfreezes_total"})
	hits := prometheus.NewCounter(prometheus.CounterOpts{Name: "costing_refcache_hits_total"})
	misses := prometheus.NewCounter(prometheus.CounterOpts{Name: "costing_refcache_misses_total"})
	invalidated := prometheus.NewCounter(prometheus.CounterOpts{Name: "costing_refcache_invalidated_total"})

	r.MustRegister(recalc, latency, conflicts, freezes, unfreezes, hits, misses, invalidated)
	return &Registry{
		reg:              r,
		RecalcTotal:      recalc,
		RecalcLatencySec: latency,
		VersionConflicts: conflicts,
		Freezes:          freezes,
		Unfreezes:        unfreezes,
		CacheHits:        hits,
		CacheMisses:      misses,
		CacheInvalidated: invalidated,
	}
}

func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
