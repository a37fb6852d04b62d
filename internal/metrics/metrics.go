// Monolith - Telemetry Ingest, Evaluation, and Fan-Out Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/monolith

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for the event engine. Every worker
// component records its queue depth, throughput, and failure counts
// here; the HTTP adapter serves the registry at GET /metrics.

var (
	// Ingest pipeline
	IngestAccepted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "monolith_ingest_accepted_total",
			Help: "Readings accepted by the ingest pipeline queue",
		},
	)

	IngestDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "monolith_ingest_dropped_total",
			Help: "Readings dropped during ingest validation or fan-out",
		},
		[]string{"reason"}, // "unknown_node", "unknown_sensor", "decode", "attempts_exhausted"
	)

	IngestRequeued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "monolith_ingest_requeued_total",
			Help: "Readings re-queued after a refused stream fan-out submit",
		},
	)

	// Queue depth per worker component
	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "monolith_queue_depth",
			Help: "Current number of queued items per worker component",
		},
		[]string{"component"}, // "pipeline", "fanout", "store", "rules", "dispatch"
	)

	// Stream fan-out
	StreamPackages = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "monolith_stream_packages_total",
			Help: "Stream packages broadcast to subscribers",
		},
	)

	StreamSendFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "monolith_stream_send_failures_total",
			Help: "Failed per-subscriber package writes",
		},
	)

	StreamOverflowDrops = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "monolith_stream_overflow_drops_total",
			Help: "Readings dropped by fan-out queue overflow protection",
		},
	)

	StreamSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "monolith_stream_subscribers",
			Help: "Currently registered stream subscribers",
		},
	)

	// Metrics store
	StoreRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "monolith_store_request_duration_seconds",
			Help:    "Metric store request processing time by request type",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"request"}, // "store", "nodes", "sensors", "range", "after", "before"
	)

	StoreRequestErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "monolith_store_request_errors_total",
			Help: "Metric store request failures by request type",
		},
		[]string{"request"},
	)

	StorePurges = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "monolith_store_purges_total",
			Help: "Expired-metric purge sweeps executed",
		},
	)

	StoreTimeouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "monolith_store_request_timeouts_total",
			Help: "Fetch requests abandoned by their caller before completion",
		},
	)

	// Rule engine
	RuleInvocations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "monolith_rule_invocations_total",
			Help: "Rule script entrypoint invocations",
		},
	)

	RuleFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "monolith_rule_failures_total",
			Help: "Rule script invocations that raised an error",
		},
	)

	RuleReloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "monolith_rule_reloads_total",
			Help: "Rule script hot reloads by outcome",
		},
		[]string{"outcome"}, // "success", "failure"
	)

	// Action dispatch
	DispatchSends = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "monolith_dispatch_sends_total",
			Help: "Action dispatch attempts by outcome",
		},
		[]string{"outcome"}, // "sent", "dropped", "rejected"
	)

	DispatchRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "monolith_dispatch_retries_total",
			Help: "Short-write retries while sending actions",
		},
	)

	// Alerts
	AlertSends = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "monolith_alert_sends_total",
			Help: "Alerts forwarded to the SMS backend",
		},
	)

	AlertSuppressions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "monolith_alert_suppressions_total",
			Help: "Alerts suppressed by the limiter",
		},
		[]string{"reason"}, // "cooldown", "max_sends", "no_backend", "backend_error"
	)

	// HTTP adapter
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "monolith_api_requests_total",
			Help: "HTTP API requests by method, route pattern, and status",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "monolith_api_request_duration_seconds",
			Help:    "HTTP API request duration by route pattern",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "route"},
	)
)

// RecordAPIRequest records one served HTTP request.
func RecordAPIRequest(method, route string, status int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordStoreRequest records one processed metric store request.
func RecordStoreRequest(request string, duration time.Duration, err error) {
	StoreRequestDuration.WithLabelValues(request).Observe(duration.Seconds())
	if err != nil {
		StoreRequestErrors.WithLabelValues(request).Inc()
	}
}

// SetQueueDepth updates the queue depth gauge for a component.
func SetQueueDepth(component string, depth int) {
	QueueDepth.WithLabelValues(component).Set(float64(depth))
}
