package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the relay counters on a private registry so several
// instances can coexist in one process (tests, mainly).
type Metrics struct {
	registry      *prometheus.Registry
	registrations *prometheus.CounterVec
	routed        *prometheus.CounterVec
	rejected      *prometheus.CounterVec
	delivered     *prometheus.CounterVec
	failed        *prometheus.CounterVec
}

// New returns a Metrics collector with zeroed counters.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		registrations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_token_registrations_total",
			Help: "Push tokens registered, by recipient kind.",
		}, []string{"kind"}),
		routed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_notifications_routed_total",
			Help: "Inbound events that passed validation, by direction.",
		}, []string{"direction"}),
		rejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_notifications_rejected_total",
			Help: "Inbound events rejected before delivery, by direction and reason.",
		}, []string{"direction", "reason"}),
		delivered: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_notifications_delivered_total",
			Help: "Notifications acknowledged by the push provider.",
		}, []string{"direction", "provider"}),
		failed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_notifications_failed_total",
			Help: "Notifications the push provider failed to deliver.",
		}, []string{"direction", "provider"}),
	}
}

func (m *Metrics) IncRegistered(kind string)               { m.registrations.WithLabelValues(kind).Inc() }
func (m *Metrics) IncRouted(direction string)              { m.routed.WithLabelValues(direction).Inc() }
func (m *Metrics) IncRejected(direction, reason string)    { m.rejected.WithLabelValues(direction, reason).Inc() }
func (m *Metrics) IncDelivered(direction, provider string) { m.delivered.WithLabelValues(direction, provider).Inc() }
func (m *Metrics) IncFailed(direction, provider string)    { m.failed.WithLabelValues(direction, provider).Inc() }

// Registry exposes the underlying registry, e.g. for gathering in tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the counters in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
