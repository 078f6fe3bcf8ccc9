// PulseStream - Video Hosting with Asynchronous Content Moderation
// Copyright 2026 PulseStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulsedev/pulsestream

/*
Package metrics provides Prometheus metrics collection and export for observability.

The package instruments the application with counters, gauges and histograms
covering:

  - HTTP request latency and throughput
  - Video upload volume and sizes
  - Moderation pipeline run outcomes, durations and poll counts
  - BadgerDB store operation performance
  - Response cache hit/miss rates
  - WebSocket connection counts
  - Circuit breaker state for the moderation provider

# Metrics Endpoint

Metrics are exposed at the /metrics endpoint in Prometheus text format:

	curl http://localhost:5000/metrics

# Usage

All metrics are registered via promauto at package load; record them through
the exported variables or the helper functions:

	metrics.RecordAPIRequest("GET", "/api/v1/videos", "200", duration)
	metrics.RecordPipelineRun("flagged", elapsed, polls)
	metrics.CacheHits.WithLabelValues("response").Inc()

All recording functions are thread-safe and designed for concurrent use from
multiple goroutines. Labels are kept low-cardinality: endpoint paths are route
patterns, never raw URLs, and per-user or per-video labels are avoided.
*/
package metrics
