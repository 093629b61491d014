package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ==========================================================================
	// HTTP Metrics
	// ==========================================================================
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	// ==========================================================================
	// Fetcher Metrics
	// ==========================================================================
	FetchAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetch_attempts_total",
			Help: "Outbound fetch attempts by outcome",
		},
		[]string{"outcome"},
	)

	FetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fetch_duration_seconds",
			Help:    "Outbound fetch duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	// ==========================================================================
	// Parser Metrics
	// ==========================================================================
	VehiclesParsedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vehicles_parsed_total",
			Help: "Vehicles extracted from HTML by strategy",
		},
		[]string{"strategy"},
	)

	ExtractorCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "extractor_calls_total",
			Help: "Renderer cascade calls by tier and outcome",
		},
		[]string{"tier", "outcome"},
	)

	// ==========================================================================
	// Reconciliation Metrics
	// ==========================================================================
	VehiclesReconciled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vehicles_reconciled_total",
			Help: "Reconciliation outcomes per vehicle",
		},
		[]string{"outcome"}, // "new", "updated", "sold", "skipped"
	)

	PipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_runs_total",
			Help: "Pipeline invocations by final snapshot status",
		},
		[]string{"status"},
	)

	PipelineDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pipeline_duration_seconds",
			Help:    "End-to-end per-tenant pipeline duration",
			Buckets: []float64{1, 5, 10, 30, 60, 90, 120},
		},
	)

	SitemapCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitemap_cache_lookups_total",
			Help: "Sitemap cache lookups by result",
		},
		[]string{"result"}, // "hit", "miss", "error_cached"
	)

	// ==========================================================================
	// Database Metrics
	// ==========================================================================
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_query_total",
			Help: "Total number of database queries",
		},
		[]string{"query_type", "table"},
	)

	DBConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_active",
			Help: "Number of active database connections",
		},
	)

	// ==========================================================================
	// SSE Metrics
	// ==========================================================================
	SSEConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sse_connections_active",
			Help: "Number of active SSE subscribers",
		},
	)

	SSEEventsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sse_events_sent_total",
			Help: "Total scrape events broadcast to subscribers",
		},
	)
)
