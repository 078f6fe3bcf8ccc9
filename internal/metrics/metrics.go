// PulseStream - Video Hosting with Asynchronous Content Moderation
// Copyright 2026 PulseStream Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulsedev/pulsestream

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus Metrics Integration for Production Observability
// This package provides instrumentation for:
// - Video store performance (BadgerDB)
// - API endpoint latency and throughput
// - Moderation pipeline runs and polling
// - Response cache efficiency
// - WebSocket connections

var (
	// Store Metrics
	StoreOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "badger_op_duration_seconds",
			Help:    "Duration of BadgerDB operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "collection"},
	)

	StoreOpErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "badger_op_errors_total",
			Help: "Total number of BadgerDB operation errors",
		},
		[]string{"operation", "collection"},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// Upload Metrics
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_uploads_total",
			Help: "Total number of video uploads",
		},
		[]string{"result"}, // "accepted", "rejected", "store_error"
	)

	UploadBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "video_upload_bytes",
			Help:    "Size of uploaded video files in bytes",
			Buckets: []float64{1e6, 5e6, 10e6, 50e6, 100e6, 250e6, 500e6, 1e9},
		},
	)

	// Moderation Pipeline Metrics
	PipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_runs_total",
			Help: "Total number of moderation pipeline runs by outcome",
		},
		[]string{"outcome"}, // "safe", "flagged", "failed", "timeout"
	)

	PipelineRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pipeline_run_duration_seconds",
			Help:    "End-to-end duration of moderation pipeline runs in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
	)

	PipelinePollIterations = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pipeline_poll_iterations",
			Help:    "Number of status polls per moderation job",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250},
		},
	)

	PipelineActiveJobs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pipeline_active_jobs",
			Help: "Current number of in-flight moderation jobs",
		},
	)

	ModerationAPICallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "moderation_api_call_duration_seconds",
			Help:    "Duration of moderation provider API calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"}, // "start", "get"
	)

	RecoveredVideosTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recovered_videos_total",
			Help: "Total number of stuck videos force-completed by recovery",
		},
	)

	// Cache Metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"}, // "response"
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	CacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cache_entries",
			Help: "Current number of cached entries",
		},
		[]string{"cache_type"},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_evictions_total",
			Help: "Total number of cache evictions (TTL expiry or flush)",
		},
		[]string{"cache_type"},
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)

	WSErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_errors_total",
			Help: "Total number of WebSocket errors",
		},
		[]string{"error_type"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	// Messaging Metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Total number of messages published to the internal bus",
		},
		[]string{"topic"},
	)

	EventsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_consumed_total",
			Help: "Total number of messages consumed from the internal bus",
		},
		[]string{"topic"},
	)

	EventsParseFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "events_parse_failed_total",
			Help: "Total number of messages that failed to parse",
		},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// RecordStoreOp records a store operation metric
func RecordStoreOp(operation, collection string, duration time.Duration, err error) {
	StoreOpDuration.WithLabelValues(operation, collection).Observe(duration.Seconds())
	if err != nil {
		StoreOpErrors.WithLabelValues(operation, collection).Inc()
	}
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordPipelineRun records the outcome and timing of a moderation run
func RecordPipelineRun(outcome string, duration time.Duration, polls int) {
	PipelineRunsTotal.WithLabelValues(outcome).Inc()
	PipelineRunDuration.Observe(duration.Seconds())
	PipelinePollIterations.Observe(float64(polls))
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
