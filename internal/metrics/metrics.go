// Package metrics exposes Prometheus counters for the listing pipeline,
// the saved-items store and the saved-collection service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Listing pipeline
	PagesFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redreader_pages_fetched_total",
			Help: "Listing pages fetched, by outcome",
		},
		[]string{"status"},
	)

	EntriesNormalized = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redreader_entries_normalized_total",
			Help: "Raw listing entries processed, by result kind (image, video, embed, skipped)",
		},
		[]string{"kind"},
	)

	DuplicatesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "redreader_duplicates_dropped_total",
			Help: "Items dropped because their id was already in the session",
		},
	)

	StaleResponsesDiscarded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "redreader_stale_responses_discarded_total",
			Help: "Listing responses discarded because the session was reset while they were in flight",
		},
	)

	// Saved-items store
	SavedMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redreader_saved_mutations_total",
			Help: "Saved-items mutations, by operation, backend and outcome",
		},
		[]string{"operation", "backend", "status"},
	)

	// Saved-collection service
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redreader_http_requests_total",
			Help: "Total number of HTTP requests served",
		},
		[]string{"method", "route", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redreader_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)
