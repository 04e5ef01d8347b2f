package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Web server metrics.
var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mika_http_requests_total",
		Help: "Total HTTP requests by route, method, and status code",
	}, []string{"route", "method", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mika_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"route", "method"})
)

// Admission metrics.
var (
	RateLimitRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mika_rate_limit_rejections_total",
		Help: "Rate limit rejections by scope (sender, group, or ip)",
	}, []string{"scope"})

	DuplicatesSuppressed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mika_duplicates_suppressed_total",
		Help: "Messages suppressed as near-duplicates",
	})

	MessagesFiltered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mika_messages_filtered_total",
		Help: "Messages rejected by the content filter, by reason",
	}, []string{"reason"})
)

// Catalog metrics.
var (
	CatalogRefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mika_catalog_refresh_total",
		Help: "Catalog refresh attempts by source and result",
	}, []string{"source", "result"})

	CatalogRefreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mika_catalog_refresh_duration_seconds",
		Help:    "Catalog refresh duration in seconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	})

	CatalogQueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mika_catalog_queries_total",
		Help: "Catalog fuzzy queries by result (hit or miss)",
	}, []string{"result"})

	CatalogEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mika_catalog_entries",
		Help: "Number of entries in the current catalog snapshot",
	})
)

// LLM and conversation metrics.
var (
	LLMCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mika_llm_calls_total",
		Help: "LLM completion calls by provider and result",
	}, []string{"provider", "result"})

	LLMCallDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mika_llm_call_duration_seconds",
		Help:    "LLM completion call duration in seconds",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30},
	})

	ConversationsStored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mika_conversations_stored_total",
		Help: "Conversations persisted after a successful reply",
	})
)

// Database pool metrics (gauges updated periodically).
var (
	DBPoolTotalConns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mika_db_pool_total_conns",
		Help: "Total number of connections in the pool",
	})

	DBPoolIdleConns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mika_db_pool_idle_conns",
		Help: "Number of idle connections in the pool",
	})

	DBPoolAcquiredConns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mika_db_pool_acquired_conns",
		Help: "Number of acquired connections in the pool",
	})

	DBPoolMaxConns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mika_db_pool_max_conns",
		Help: "Max connections configured for the pool",
	})
)
