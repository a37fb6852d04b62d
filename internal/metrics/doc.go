// Monolith - Telemetry Ingest, Evaluation, and Fan-Out Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/monolith

/*
Package metrics provides Prometheus metrics collection and export for
observability.

All instruments are registered on the default registry via promauto and
exported as package-level variables; worker components record directly
against them.

# Metrics Endpoint

Metrics are exposed at the /metrics endpoint in Prometheus text format:

	curl http://localhost:8080/metrics

# Available Metrics

Ingest pipeline:
  - monolith_ingest_accepted_total: readings accepted into the pipeline queue (counter)
  - monolith_ingest_dropped_total: readings dropped (counter)
    Labels: reason (unknown_node, unknown_sensor, decode, attempts_exhausted)
  - monolith_ingest_requeued_total: readings re-queued after a refused fan-out submit (counter)

Worker queues:
  - monolith_queue_depth: queued items per worker component (gauge)
    Labels: component (pipeline, fanout, store, rules, dispatch)

Stream fan-out:
  - monolith_stream_packages_total: packages broadcast (counter)
  - monolith_stream_send_failures_total: failed per-subscriber writes (counter)
  - monolith_stream_overflow_drops_total: readings dropped by overflow protection (counter)
  - monolith_stream_subscribers: registered subscribers (gauge)

Metric store:
  - monolith_store_request_duration_seconds: request processing time (histogram)
    Labels: request (store, nodes, sensors, range, after, before)
  - monolith_store_request_errors_total: failed requests (counter)
  - monolith_store_purges_total: expired-metric purge sweeps (counter)
  - monolith_store_request_timeouts_total: fetches abandoned by their caller (counter)

Rule engine:
  - monolith_rule_invocations_total: script entrypoint invocations (counter)
  - monolith_rule_failures_total: invocations that raised an error (counter)
  - monolith_rule_reloads_total: hot reloads (counter)
    Labels: outcome (success, failure)

Action dispatch:
  - monolith_dispatch_sends_total: dispatch attempts (counter)
    Labels: outcome (sent, dropped, rejected)
  - monolith_dispatch_retries_total: short-write retries (counter)

Alerts:
  - monolith_alert_sends_total: alerts forwarded to the SMS backend (counter)
  - monolith_alert_suppressions_total: alerts suppressed by the limiter (counter)
    Labels: reason (cooldown, max_sends, no_backend, backend_error)

HTTP adapter:
  - monolith_api_requests_total: requests by method, route pattern, status (counter)
  - monolith_api_request_duration_seconds: request duration (histogram)

# Cardinality

Route labels use the chi route pattern, not the raw URL path, so
submission payloads embedded in the path do not fan out into new series.
Reasons and outcomes are fixed constants.

# Thread Safety

All recording functions are safe for concurrent use; the Prometheus
client handles synchronization internally.
*/
package metrics
