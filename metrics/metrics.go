// Package metrics exposes Prometheus instrumentation for the backend
// connection, frame routing, pages and browser clients.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects Prometheus metrics for the client. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	framesReceived     *prometheus.CounterVec
	framesDropped      *prometheus.CounterVec
	requestsSent       *prometheus.CounterVec
	connectionState    *prometheus.GaugeVec
	reconnects         *prometheus.CounterVec
	validationRejected *prometheus.CounterVec
	pages              prometheus.Gauge
	browserClients     prometheus.Gauge
}

var (
	metricsOnce sync.Once
	metricsInst *Metrics
)

// connectionStates lists every state label so the gauge can be zeroed.
var connectionStates = []string{"connecting", "open", "closed", "errored"}

// New returns the process-wide metrics collector, registering it with the
// default registry on first use.
func New() *Metrics {
	metricsOnce.Do(func() {
		metricsInst = &Metrics{
			framesReceived: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "matchup_frames_received_total",
					Help: "Inbound frames decoded, by label",
				},
				[]string{"label"},
			),
			framesDropped: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "matchup_frames_dropped_total",
					Help: "Inbound frames discarded, by reason",
				},
				[]string{"reason"},
			),
			requestsSent: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "matchup_requests_sent_total",
					Help: "Outbound requests written to the socket, by action",
				},
				[]string{"action"},
			),
			connectionState: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "matchup_connection_state",
					Help: "Current backend connection state (1 for the active state)",
				},
				[]string{"state"},
			),
			reconnects: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "matchup_reconnect_attempts_total",
					Help: "Reconnect attempts, by result",
				},
				[]string{"result"},
			),
			validationRejected: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "matchup_validation_rejected_total",
					Help: "Queries rejected locally before reaching the backend, by kind",
				},
				[]string{"kind"},
			),
			pages: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "matchup_pages",
					Help: "Pages currently held by the page manager",
				},
			),
			browserClients: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "matchup_browser_clients",
					Help: "Browser WebSocket clients connected to the push hub",
				},
			),
		}
	})
	return metricsInst
}

// FrameReceived counts a decoded frame.
func (m *Metrics) FrameReceived(label string) {
	if m == nil {
		return
	}
	m.framesReceived.WithLabelValues(label).Inc()
}

// FrameDropped counts a discarded frame.
func (m *Metrics) FrameDropped(reason string) {
	if m == nil {
		return
	}
	m.framesDropped.WithLabelValues(reason).Inc()
}

// RequestSent counts an outbound request.
func (m *Metrics) RequestSent(action string) {
	if m == nil {
		return
	}
	m.requestsSent.WithLabelValues(action).Inc()
}

// ConnectionState marks state as the current one.
func (m *Metrics) ConnectionState(state string) {
	if m == nil {
		return
	}
	for _, s := range connectionStates {
		v := 0.0
		if s == state {
			v = 1
		}
		m.connectionState.WithLabelValues(s).Set(v)
	}
}

// Reconnect counts a reconnect attempt.
func (m *Metrics) Reconnect(ok bool) {
	if m == nil {
		return
	}
	result := "failed"
	if ok {
		result = "succeeded"
	}
	m.reconnects.WithLabelValues(result).Inc()
}

// ValidationRejected counts a query refused before any network call.
func (m *Metrics) ValidationRejected(kind string) {
	if m == nil {
		return
	}
	m.validationRejected.WithLabelValues(kind).Inc()
}

// Pages records the number of live pages.
func (m *Metrics) Pages(n int) {
	if m == nil {
		return
	}
	m.pages.Set(float64(n))
}

// BrowserClients records the number of connected browser clients.
func (m *Metrics) BrowserClients(n int) {
	if m == nil {
		return
	}
	m.browserClients.Set(float64(n))
}
