package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProductsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_products_created_total",
		Help: "Total number of products created",
	})

	PriceChangesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_price_changes_total",
		Help: "Total number of listing price changes",
	})

	PriceResolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_price_resolutions_total",
		Help: "Total number of resolved prices by source",
	}, []string{"source"})

	PriceResolutionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "catalog_price_resolution_latency_seconds",
		Help:    "Latency of price resolution",
		Buckets: prometheus.DefBuckets,
	})

	GraphMutationsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_graph_mutations_rejected_total",
		Help: "Total number of rejected bundle or collection mutations",
	}, []string{"graph", "reason"})

	BundleExpansionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_bundle_expansions_total",
		Help: "Total number of bundle expansions",
	})

	SuggestionRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_suggestion_requests_total",
		Help: "Total number of suggestion requests",
	}, []string{"kind"})

	EventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_events_published_total",
		Help: "Total number of catalog events published",
	}, []string{"event_type"})

	EventsPublishFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_events_publish_failed_total",
		Help: "Total number of catalog events that failed to publish",
	}, []string{"event_type"})

	EventsRecordedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_events_recorded_total",
		Help: "Total number of consumed catalog events recorded",
	}, []string{"event_type"})

	LockWaitLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "catalog_graph_lock_wait_seconds",
		Help:    "Time spent acquiring the graph mutation lock",
		Buckets: prometheus.DefBuckets,
	})

	RateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "http_rate_limited_total",
		Help: "Total number of requests rejected by the rate limiter",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
