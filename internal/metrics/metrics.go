package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "roriagent"

// Metrics holds the collectors shared by the decoder, bridge, approval
// engine and host. One instance is built per process and injected.
type Metrics struct {
	registry *prometheus.Registry

	KeysDecoded       prometheus.Counter
	PastesCompleted   prometheus.Counter
	SequenceResyncs   prometheus.Counter
	SequenceOverflows prometheus.Counter

	BridgeQueued     prometheus.Counter
	BridgeDelivered  prometheus.Counter
	BridgeFailures   prometheus.Counter
	BridgeQueueDepth prometheus.Gauge

	ApprovalRequests    *prometheus.CounterVec
	ApprovalDecisions   *prometheus.CounterVec
	ApprovalTransitions *prometheus.CounterVec

	ToolCalls     *prometheus.CounterVec
	EventsDropped prometheus.Counter
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		KeysDecoded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "terminal", Name: "keys_decoded_total",
			Help: "Key events emitted by the input decoder.",
		}),
		PastesCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "terminal", Name: "pastes_completed_total",
			Help: "Bracketed pastes delivered.",
		}),
		SequenceResyncs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "terminal", Name: "sequence_resyncs_total",
			Help: "Corrupt escape prefixes discarded while resynchronizing.",
		}),
		SequenceOverflows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "terminal", Name: "sequence_overflows_total",
			Help: "Partial escape sequences dropped for exceeding the buffer bound.",
		}),
		BridgeQueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "bridge", Name: "queued_total",
			Help: "Messages queued while the host was not ready or draining.",
		}),
		BridgeDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "bridge", Name: "delivered_total",
			Help: "Messages handed to the host handler.",
		}),
		BridgeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "bridge", Name: "handler_failures_total",
			Help: "Deliveries whose handler returned an error.",
		}),
		BridgeQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "bridge", Name: "queue_depth",
			Help: "Messages currently waiting for delivery.",
		}),
		ApprovalRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "approval", Name: "requests_total",
			Help: "Approval requests accepted, by kind and whether new or update.",
		}, []string{"kind", "change"}),
		ApprovalDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "approval", Name: "decisions_total",
			Help: "Decisions committed, by action.",
		}, []string{"action"}),
		ApprovalTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "approval", Name: "rejected_transitions_total",
			Help: "Invalid transitions turned into no-ops, by reason.",
		}, []string{"reason"}),
		ToolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "host", Name: "tool_calls_total",
			Help: "Tool calls run by the host, by tool and outcome.",
		}, []string{"tool", "outcome"}),
		EventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "host", Name: "ui_events_dropped_total",
			Help: "Host events the UI channel refused.",
		}),
	}
	reg.MustRegister(
		m.KeysDecoded, m.PastesCompleted, m.SequenceResyncs, m.SequenceOverflows,
		m.BridgeQueued, m.BridgeDelivered, m.BridgeFailures, m.BridgeQueueDepth,
		m.ApprovalRequests, m.ApprovalDecisions, m.ApprovalTransitions,
		m.ToolCalls, m.EventsDropped,
	)
	return m
}

// Registry exposes the underlying registry for gathering.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// OrNew returns m, or a private instance when m is nil.
func OrNew(m *Metrics) *Metrics {
	if m == nil {
		return New()
	}
	return m
}
