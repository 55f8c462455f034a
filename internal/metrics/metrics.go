// Shotcaster - Self-Hosted Upload and Screenshot Manager
// Copyright 2026 Shotcaster Contributors
// SPDX-License-Identifier: MIT
// https://github.com/shotcaster/shotcaster

// Package metrics provides Prometheus instrumentation for:
//   - SSE broadcast fan-out and client lifecycle
//   - Geo-resolution cache efficiency and upstream calls
//   - API endpoint latency and throughput
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SSE Broadcast Metrics
	SSEClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sse_clients",
			Help: "Current number of registered SSE clients",
		},
	)

	SSEBroadcastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sse_broadcasts_total",
			Help: "Total number of broadcast calls by event name",
		},
		[]string{"event"},
	)

	SSEClientRemovals = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sse_client_removals_total",
			Help: "Total number of client removals by reason",
		},
		[]string{"reason"}, // "disconnect", "send_failed", "ping_failed", "capacity", "inactive"
	)

	// Geo Cache Metrics
	GeoCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "geo_cache_hits_total",
			Help: "Total number of geo memory cache hits",
		},
	)

	GeoCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "geo_cache_misses_total",
			Help: "Total number of geo memory cache misses",
		},
	)

	GeoCacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "geo_cache_entries",
			Help: "Current number of entries in the geo memory cache",
		},
	)

	GeoUpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geo_upstream_requests_total",
			Help: "Total number of upstream batch lookup requests by outcome",
		},
		[]string{"outcome"}, // "success", "failure", "rate_limited", "rejected"
	)

	GeoSnapshotWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geo_snapshot_writes_total",
			Help: "Total number of disk snapshot writes by outcome",
		},
		[]string{"outcome"}, // "success", "failure"
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

	// Access Log Metrics
	AccessLogInserts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "access_log_inserts_total",
			Help: "Total number of access log rows written by outcome",
		},
		[]string{"outcome"}, // "success", "failure"
	)
)

// RecordAPIRequest records metrics for one completed API request.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest increments or decrements the active request gauge.
func TrackActiveRequest(active bool) {
	if active {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
