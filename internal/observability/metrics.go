package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the client and the
// companion server.
type Metrics struct {
	ActiveSessions   prometheus.Gauge
	Connects         *prometheus.CounterVec
	InboundEvents    *prometheus.CounterVec
	OutboundMessages *prometheus.CounterVec
	ToolCalls        *prometheus.CounterVec
	CatalogRequests  *prometheus.CounterVec
	CredentialMints  *prometheus.CounterVec
	ConnectLatency   prometheus.Histogram
	ToolLatency      prometheus.Histogram

	latency *latencyWindow
}

func NewMetrics(namespace string) *Metrics {
	return NewMetricsWith(namespace, prometheus.DefaultRegisterer)
}

// NewMetricsWith registers the instruments on reg. Tests pass a fresh
// registry so repeated construction does not collide.
func NewMetricsWith(namespace string, reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of open realtime sessions.",
		}),
		Connects: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connects_total",
			Help:      "Realtime connect attempts by outcome.",
		}, []string{"outcome"}),
		InboundEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbound_events_total",
			Help:      "Control-channel events received by type.",
		}, []string{"type"}),
		OutboundMessages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbound_messages_total",
			Help:      "Control-channel messages sent by type and result.",
		}, []string{"type", "result"}),
		ToolCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool invocations by tool and result.",
		}, []string{"tool", "result"}),
		CatalogRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_requests_total",
			Help:      "Catalog recommend requests by result.",
		}, []string{"result"}),
		CredentialMints: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credential_mints_total",
			Help:      "Ephemeral credential requests by result.",
		}, []string{"result"}),
		ConnectLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "connect_latency_ms",
			Help:      "Time from connect request to channel open in milliseconds.",
			Buckets:   []float64{250, 500, 1000, 1500, 2500, 4000, 8000},
		}),
		ToolLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_latency_ms",
			Help:      "Tool execution latency in milliseconds.",
			Buckets:   []float64{50, 100, 250, 500, 1000, 2500, 5000},
		}),
		latency: newLatencyWindow(256),
	}
}

func (m *Metrics) ObserveConnect(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Connects.WithLabelValues(outcome).Inc()
	if outcome == "ok" {
		m.ConnectLatency.Observe(float64(d.Milliseconds()))
		m.latency.Observe("connect", d)
	}
}

func (m *Metrics) ObserveInbound(eventType string) {
	if m == nil {
		return
	}
	m.InboundEvents.WithLabelValues(eventType).Inc()
}

func (m *Metrics) ObserveOutbound(msgType string, err error) {
	if m == nil {
		return
	}
	result := "sent"
	if err != nil {
		result = "dropped"
	}
	m.OutboundMessages.WithLabelValues(msgType, result).Inc()
}

func (m *Metrics) ObserveToolCall(tool, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.ToolCalls.WithLabelValues(tool, result).Inc()
	if result == "ok" {
		m.ToolLatency.Observe(float64(d.Milliseconds()))
		m.latency.Observe("tool_call", d)
	}
}

// ObserveTurn records the gap between a committed user transcript and the
// first assistant transcript delta.
func (m *Metrics) ObserveTurn(d time.Duration) {
	if m == nil {
		return
	}
	m.latency.Observe("turn_first_text", d)
}

func (m *Metrics) ObserveCatalog(result string) {
	if m == nil {
		return
	}
	m.CatalogRequests.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveCredentialMint(result string) {
	if m == nil {
		return
	}
	m.CredentialMints.WithLabelValues(result).Inc()
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.ActiveSessions.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.ActiveSessions.Dec()
}

func (m *Metrics) LatencySnapshot() LatencySnapshot {
	if m == nil {
		return LatencySnapshot{}
	}
	return m.latency.Snapshot()
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
