package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tonyboom3d/exact-view-framework/internal/bridge"
)

const namespace = "checkout"

// Metrics owns a private registry so tests and multiple instances do not
// collide on the global one.
type Metrics struct {
	reg *prometheus.Registry

	bridgeRequests *prometheus.CounterVec
	bridgePending  prometheus.Gauge
	framesDropped  *prometheus.CounterVec
	checkouts      *prometheus.CounterVec
	polls          *prometheus.CounterVec
	recoveries     *prometheus.CounterVec
	sessions       prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		bridgeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "requests_total",
			Help:      "Correlated bridge requests by message type and outcome.",
		}, []string{"type", "outcome"}),
		bridgePending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "pending_requests",
			Help:      "Bridge requests waiting for a host response.",
		}),
		framesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "frames_dropped_total",
			Help:      "Inbound frames discarded by reason.",
		}, []string{"reason"}),
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Checkout submissions by final status.",
		}, []string{"status"}),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "outcomes_total",
			Help:      "Pending payment polls by outcome.",
		}, []string{"phase"}),
		recoveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recovery",
			Name:      "outcomes_total",
			Help:      "Stored pending payments checked on session open, by outcome.",
		}, []string{"kind"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Open checkout sessions.",
		}),
	}

	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.bridgeRequests,
		m.bridgePending,
		m.framesDropped,
		m.checkouts,
		m.polls,
		m.recoveries,
		m.sessions,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

func (m *Metrics) RequestSettled(t bridge.MessageType, outcome string) {
	m.bridgeRequests.WithLabelValues(string(t), outcome).Inc()
}

func (m *Metrics) PendingRequests(n int) { m.bridgePending.Set(float64(n)) }

func (m *Metrics) FrameDropped(reason string) { m.framesDropped.WithLabelValues(reason).Inc() }

func (m *Metrics) CheckoutFinished(status string) { m.checkouts.WithLabelValues(status).Inc() }

func (m *Metrics) PollFinished(phase string) { m.polls.WithLabelValues(phase).Inc() }

func (m *Metrics) Recovered(kind string) { m.recoveries.WithLabelValues(kind).Inc() }

func (m *Metrics) ActiveSessions(n int) { m.sessions.Set(float64(n)) }
