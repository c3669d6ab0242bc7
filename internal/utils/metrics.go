// internal/utils/metrics.go
package utils

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "kaika"

// MetricsCollector owns a private prometheus registry with the service metrics.
type MetricsCollector struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	connects        *prometheus.CounterVec
	purchases       *prometheus.CounterVec
	submissions     prometheus.Counter
	rewards         prometheus.Counter
	ignored         *prometheus.CounterVec
	activeSessions  prometheus.Gauge
	wsClients       prometheus.Gauge
	flowDuration    *prometheus.HistogramVec
	events          *prometheus.CounterVec
}

var (
	globalMetrics *MetricsCollector
	metricsOnce   sync.Once
)

// GetMetricsCollector returns the process wide collector.
func GetMetricsCollector() *MetricsCollector {
	metricsOnce.Do(func() {
		globalMetrics = NewMetricsCollector()
	})
	return globalMetrics
}

// NewMetricsCollector builds an isolated collector; tests use one each.
func NewMetricsCollector() *MetricsCollector {
	m := &MetricsCollector{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Name: "http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace, Name: "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		connects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Name: "device_connect_total",
			Help: "Simulated device pairing attempts by outcome.",
		}, []string{"outcome"}),
		purchases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Name: "purchases_total",
			Help: "Simulated purchases by outcome.",
		}, []string{"outcome"}),
		submissions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace, Name: "collection_submissions_total",
			Help: "Completed data collection submissions.",
		}),
		rewards: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace, Name: "rewards_kaika_total",
			Help: "KAIKA credited by purchases and submissions.",
		}),
		ignored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Name: "ignored_operations_total",
			Help: "Operations dropped because a precondition did not hold.",
		}, []string{"operation", "reason"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace, Name: "active_sessions",
			Help: "Open simulation sessions.",
		}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace, Name: "websocket_clients",
			Help: "Connected WebSocket clients.",
		}),
		flowDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace, Name: "flow_duration_seconds",
			Help:    "Wall time of simulated multi-phase flows.",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 3, 4, 5, 7, 10},
		}, []string{"flow"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Name: "events_total",
			Help: "Session events published by type.",
		}, []string{"type"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests, m.requestDuration, m.connects, m.purchases, m.submissions,
		m.rewards, m.ignored, m.activeSessions, m.wsClients, m.flowDuration, m.events,
	)
	return m
}

// Handler serves the registry in the prometheus exposition format.
func (m *MetricsCollector) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *MetricsCollector) RecordAPIRequest(route, method string, statusCode int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.requests.WithLabelValues(route, method, strconv.Itoa(statusCode)).Inc()
	m.requestDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}

func (m *MetricsCollector) RecordConnect(outcome string) {
	m.connects.WithLabelValues(outcome).Inc()
}

func (m *MetricsCollector) RecordPurchase(outcome string, reward int64) {
	m.purchases.WithLabelValues(outcome).Inc()
	if reward > 0 {
		m.rewards.Add(float64(reward))
	}
}

func (m *MetricsCollector) RecordSubmission(reward int64) {
	m.submissions.Inc()
	if reward > 0 {
		m.rewards.Add(float64(reward))
	}
}

func (m *MetricsCollector) RecordIgnored(operation, reason string) {
	m.ignored.WithLabelValues(operation, reason).Inc()
}

func (m *MetricsCollector) IncActiveSessions() { m.activeSessions.Inc() }

func (m *MetricsCollector) DecActiveSessions() { m.activeSessions.Dec() }

func (m *MetricsCollector) SetWebSocketClients(n int) { m.wsClients.Set(float64(n)) }

func (m *MetricsCollector) ObserveFlow(flow string, duration time.Duration) {
	m.flowDuration.WithLabelValues(flow).Observe(duration.Seconds())
}

func (m *MetricsCollector) RecordEvent(eventType string) {
	m.events.WithLabelValues(eventType).Inc()
}
