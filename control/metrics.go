// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Prometheus collectors for the transport. A nil *Metrics is valid and
// records nothing, so the transport can run without observability wiring.

package control

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Direction labels.
const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// Metrics holds the registry and the transport meters.
type Metrics struct {
	Registry *prometheus.Registry

	messages       *prometheus.CounterVec
	bytes          *prometheus.CounterVec
	handshakes     *prometheus.CounterVec
	protocolErrors *prometheus.CounterVec
	pending        *prometheus.GaugeVec
	disconnects    prometheus.Counter
	state          prometheus.Gauge
}

// NewMetrics creates a private registry with the emulink meters.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "emulink_messages_total",
			Help: "Messages exchanged with the emulator.",
		}, []string{"role", "direction"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "emulink_bytes_total",
			Help: "Bytes exchanged with the emulator.",
		}, []string{"direction"}),
		handshakes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "emulink_handshakes_total",
			Help: "Channel handshakes by result.",
		}, []string{"result"}),
		protocolErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "emulink_protocol_errors_total",
			Help: "Protocol violations by kind.",
		}, []string{"kind"}),
		pending: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "emulink_pending_messages",
			Help: "Outbound messages queued behind the in-flight write.",
		}, []string{"role"}),
		disconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "emulink_disconnects_total",
			Help: "Transport teardowns.",
		}),
		state: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "emulink_state",
			Help: "Lifecycle state of the current transport (0 awaiting, 1 connected, 2 disconnected).",
		}),
	}

	reg.MustRegister(m.messages, m.bytes, m.handshakes, m.protocolErrors, m.pending, m.disconnects, m.state)
	return m
}

// Message records one framed message of n bytes.
func (m *Metrics) Message(role, direction string, n int) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(role, direction).Inc()
	m.bytes.WithLabelValues(direction).Add(float64(n))
}

// Handshake records a handshake outcome.
func (m *Metrics) Handshake(result string) {
	if m == nil {
		return
	}
	m.handshakes.WithLabelValues(result).Inc()
}

// ProtocolError records a protocol violation.
func (m *Metrics) ProtocolError(kind string) {
	if m == nil {
		return
	}
	m.protocolErrors.WithLabelValues(kind).Inc()
}

// Pending sets the queue depth for a channel role.
func (m *Metrics) Pending(role string, n int) {
	if m == nil {
		return
	}
	m.pending.WithLabelValues(role).Set(float64(n))
}

// Disconnect records a teardown.
func (m *Metrics) Disconnect() {
	if m == nil {
		return
	}
	m.disconnects.Inc()
}

// State publishes the lifecycle state as its numeric value.
func (m *Metrics) State(s int) {
	if m == nil {
		return
	}
	m.state.Set(float64(s))
}
