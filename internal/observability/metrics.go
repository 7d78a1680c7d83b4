// Package observability carries the bridge's Prometheus metrics and the
// health snapshot served by the server_health tool.
package observability

import (
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records upstream API traffic and per-operation outcomes. It owns a
// private registry so tests can construct as many instances as they like.
type Metrics struct {
	registry *prometheus.Registry

	apiRequests *prometheus.CounterVec
	apiDuration *prometheus.HistogramVec
	operations  *prometheus.CounterVec
	opDuration  *prometheus.HistogramVec

	// Cheap counters for the health snapshot, kept outside the registry so
	// reading them needs no gather pass.
	opsServed atomic.Uint64
	opsFailed atomic.Uint64
}

// NewMetrics builds and registers all collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "qolaba_api_requests_total",
			Help: "Upstream API requests by endpoint, method and status.",
		}, []string{"endpoint", "method", "status"}),
		apiDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "qolaba_api_request_duration_seconds",
			Help:    "Upstream API request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint", "method"}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "qolaba_operations_total",
			Help: "Tool operations by name and outcome kind.",
		}, []string{"operation", "outcome"}),
		opDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "qolaba_operation_duration_seconds",
			Help:    "End-to-end operation latency including retries.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	m.registry.MustRegister(m.apiRequests, m.apiDuration, m.operations, m.opDuration)
	return m
}

// Registry exposes the underlying registry for future scrape endpoints.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// RecordAPIRequest records one upstream attempt. Status 0 means the request
// never produced an HTTP response.
func (m *Metrics) RecordAPIRequest(endpoint, method string, status int, elapsed time.Duration) {
	m.apiRequests.WithLabelValues(endpoint, method, strconv.Itoa(status)).Inc()
	m.apiDuration.WithLabelValues(endpoint, method).Observe(elapsed.Seconds())
}

// RecordOperation records one completed tool invocation. outcome is "success"
// or the envelope's failure kind.
func (m *Metrics) RecordOperation(operation, outcome string, elapsed time.Duration) {
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.opDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
	m.opsServed.Add(1)
	if outcome != "success" {
		m.opsFailed.Add(1)
	}
}

// Counts returns the served/failed operation totals for the health snapshot.
func (m *Metrics) Counts() (served, failed uint64) {
	return m.opsServed.Load(), m.opsFailed.Load()
}
