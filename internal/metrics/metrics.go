// Package metrics provides Prometheus metrics for the ranking core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricRankRequests      = "rank_requests_total"
	MetricRankDuration      = "rank_duration_seconds"
	MetricRankCandidates    = "rank_candidates_total"
	MetricCandidatesDropped = "rank_candidates_dropped_total"
	MetricCacheHits         = "score_cache_hits_total"
	MetricCacheMisses       = "score_cache_misses_total"
	MetricCacheErrors       = "score_cache_errors_total"
	MetricSessionResolved   = "session_resolutions_total"
)

// Metrics contains Prometheus metrics for ranking operations.
// All operations are thread-safe.
type Metrics struct {
	rankRequests      prometheus.Counter
	rankDuration      prometheus.Histogram
	rankCandidates    prometheus.Counter
	candidatesDropped *prometheus.CounterVec
	cacheHits         *prometheus.CounterVec
	cacheMisses       *prometheus.CounterVec
	cacheErrors       *prometheus.CounterVec
	sessionResolved   *prometheus.CounterVec
}

// NewMetrics creates and returns a new Metrics instance with all collectors
// initialized. The metrics are not registered; call Register to register them
// with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		rankRequests: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricRankRequests,
				Help: "Total number of ranking requests processed",
			},
		),
		rankDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    MetricRankDuration,
				Help:    "Ranking pipeline duration in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
		),
		rankCandidates: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricRankCandidates,
				Help: "Total number of candidates scored across all ranking requests",
			},
		),
		candidatesDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricCandidatesDropped,
				Help: "Total number of candidates dropped from ranking by reason",
			},
			[]string{"reason"},
		),
		cacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricCacheHits,
				Help: "Total number of score cache hits by backend",
			},
			[]string{"backend"},
		),
		cacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricCacheMisses,
				Help: "Total number of score cache misses by backend",
			},
			[]string{"backend"},
		),
		cacheErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricCacheErrors,
				Help: "Total number of score cache errors (degraded to miss) by backend",
			},
			[]string{"backend"},
		),
		sessionResolved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricSessionResolved,
				Help: "Total number of session resolutions by outcome",
			},
			[]string{"outcome"},
		),
	}
}

// Register registers all collectors with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Collectors returns all collectors for custom registration.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.rankRequests,
		m.rankDuration,
		m.rankCandidates,
		m.candidatesDropped,
		m.cacheHits,
		m.cacheMisses,
		m.cacheErrors,
		m.sessionResolved,
	}
}

// ObserveRank records one completed ranking pass.
// candidates: the number of candidates scored in this pass.
// seconds: wall time of the pipeline.
func (m *Metrics) ObserveRank(candidates int, seconds float64) {
	m.rankRequests.Inc()
	m.rankDuration.Observe(seconds)
	m.rankCandidates.Add(float64(candidates))
}

// IncCandidatesDropped increments the dropped-candidate counter.
// reason: why the candidate was dropped (e.g., "dimension_mismatch", "missing_vector").
func (m *Metrics) IncCandidatesDropped(reason string, n int) {
	if n > 0 {
		m.candidatesDropped.WithLabelValues(reason).Add(float64(n))
	}
}

// IncCacheHit increments the cache hit counter for a backend.
func (m *Metrics) IncCacheHit(backend string) {
	m.cacheHits.WithLabelValues(backend).Inc()
}

// IncCacheMiss increments the cache miss counter for a backend.
func (m *Metrics) IncCacheMiss(backend string) {
	m.cacheMisses.WithLabelValues(backend).Inc()
}

// IncCacheError increments the cache error counter for a backend.
func (m *Metrics) IncCacheError(backend string) {
	m.cacheErrors.WithLabelValues(backend).Inc()
}

// IncSessionResolved increments the session resolution counter.
// outcome: "new" or "continuing".
func (m *Metrics) IncSessionResolved(outcome string) {
	m.sessionResolved.WithLabelValues(outcome).Inc()
}
