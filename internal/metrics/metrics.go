// Tripstream - Realtime Sync for Legacy Trip-Approval Workflows
// Copyright 2026 Relaywire
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/relaywire/tripstream

// Package metrics defines the Prometheus collectors for Tripstream. All
// collectors are registered with the default registry via promauto and
// exposed through the /metrics endpoint.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// API metrics
var (
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tripstream_api_requests_total",
			Help: "Total number of API requests by method, path and status code",
		},
		[]string{"method", "path", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tripstream_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tripstream_api_active_requests",
			Help: "Number of API requests currently in flight",
		},
	)
)

// WebSocket metrics
var (
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tripstream_ws_connections",
			Help: "Number of connected websocket clients",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tripstream_ws_messages_sent_total",
			Help: "Total websocket messages queued for delivery",
		},
	)

	WSMessagesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tripstream_ws_messages_dropped_total",
			Help: "Total websocket messages dropped because a send buffer was full",
		},
	)
)

// Store metrics
var (
	StoreMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tripstream_store_mutations_total",
			Help: "Total repository mutations by operation",
		},
		[]string{"operation"},
	)

	StorePersistFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tripstream_store_persist_failures_total",
			Help: "Total failed durable snapshot writes",
		},
	)

	StorePersistDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tripstream_store_persist_duration_seconds",
			Help:    "Duration of synchronous durable snapshot writes",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Client sync metrics
var (
	SyncPushes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tripstream_sync_pushes_total",
			Help: "Total debounced push attempts by result (ok, validation_error, unreachable)",
		},
		[]string{"result"},
	)

	SyncBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tripstream_sync_breaker_state",
			Help: "Sync client circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)
)

// TrackActiveRequest adjusts the in-flight request gauge.
func TrackActiveRequest(start bool) {
	if start {
		APIActiveRequests.Inc()
		return
	}
	APIActiveRequests.Dec()
}

// RecordAPIRequest records a completed API request.
func RecordAPIRequest(method, path, status string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, path, status).Inc()
	APIRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
