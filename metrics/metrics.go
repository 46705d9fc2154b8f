package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RateLimitDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratelimit_decisions_total",
			Help: "Total number of rate limiter decisions",
		},
		[]string{"decision"},
	)

	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	CacheEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cache_entries",
			Help: "Current number of cache entries",
		},
		[]string{"cache_type"},
	)

	AuditDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "audit_duration_seconds",
			Help:    "Duration of full page audits",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// RecordDecision records the outcome of one rate limiter check.
func RecordDecision(allowed bool) {
	if allowed {
		RateLimitDecisions.WithLabelValues("allowed").Inc()
	} else {
		RateLimitDecisions.WithLabelValues("denied").Inc()
	}
}

// RecordCacheHit records a hit for the named cache.
func RecordCacheHit(cacheType string) {
	CacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss records a miss for the named cache.
func RecordCacheMiss(cacheType string) {
	CacheMisses.WithLabelValues(cacheType).Inc()
}

// UpdateCacheEntries updates the entry gauge for the named cache.
func UpdateCacheEntries(cacheType string, entries int) {
	CacheEntries.WithLabelValues(cacheType).Set(float64(entries))
}

// TimeAudit returns a stop function that observes the audit duration.
func TimeAudit() func() {
	timer := prometheus.NewTimer(AuditDuration)
	return func() {
		timer.ObserveDuration()
	}
}
