// Package metrics declares the Prometheus collectors of the feed service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tgfeed_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// Media cache and resolver
	MediaCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tgfeed_media_cache_hits_total",
		Help: "Media URL lookups answered from the cache",
	})
	MediaCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tgfeed_media_cache_misses_total",
		Help: "Media URL lookups that missed or found an expired entry",
	})
	MediaResolves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tgfeed_media_resolve_total",
			Help: "External media resolution calls by outcome",
		},
		[]string{"outcome"}, // ok, error, not_found, breaker_open
	)

	// Ingestion
	IngestedMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tgfeed_ingested_messages_total",
			Help: "Inbound channel messages by outcome",
		},
		[]string{"outcome"}, // stored, store_error, rejected
	)

	// Feed
	FeedRowsFetched = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tgfeed_feed_rows_fetched",
		Help:    "Raw rows fetched per page request",
		Buckets: []float64{1, 10, 50, 100, 200, 400, 800},
	})

	// Stats
	StatsResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tgfeed_stats_results_total",
			Help: "Subscriber count lookups by answering source",
		},
		[]string{"source"}, // live, stored, none
	)
)

// RecordHTTPRequest observes one API request.
func RecordHTTPRequest(method, route, status string, d time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, route, status).Observe(d.Seconds())
}
