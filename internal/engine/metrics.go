package engine

import "github.com/prometheus/client_golang/prometheus"

// Metrics collects the observability surface for the dispatcher layer. It
// is wired from the pack's prometheus/client_golang dependency
// (DimaJoyti-ai-agentic-crypto-browser/pkg/observability); the matching
// core itself (internal/book) never touches this — metrics are an ambient
// concern of the dispatcher boundary, not of the state machine.
type Metrics struct {
	registry        *prometheus.Registry
	ordersProcessed *prometheus.CounterVec
	tradesExecuted  *prometheus.CounterVec
}

// NewMetrics builds a Metrics collector backed by its own registry, so an
// Engine can be embedded in a process that already runs its own Prometheus
// registry without collector-name collisions.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ordersProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ember",
			Subsystem: "engine",
			Name:      "orders_processed_total",
			Help:      "Orders accepted by Submit, labelled by symbol.",
		}, []string{"symbol"}),
		tradesExecuted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ember",
			Subsystem: "engine",
			Name:      "trades_executed_total",
			Help:      "Trades emitted by the matching core, labelled by symbol.",
		}, []string{"symbol"}),
	}
	m.registry.MustRegister(m.ordersProcessed, m.tradesExecuted)
	return m
}

// Registry exposes the underlying Prometheus registry so a process can
// serve it over /metrics via promhttp.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
