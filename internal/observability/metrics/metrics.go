package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PortalMetrics expone los contadores del core (agenda, consentimientos,
// divulgación). Los métodos toleran receiver nil para no obligar a inyectar
// métricas en tests de services.
type PortalMetrics struct {
	registry *prometheus.Registry

	bookingsTotal        *prometheus.CounterVec
	bookingConflicts     prometheus.Counter
	consentTransitions   *prometheus.CounterVec
	grantsRevokedTotal   prometheus.Counter
	disclosuresTotal     *prometheus.CounterVec
	disclosuresWithheld  prometheus.Counter
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDurations *prometheus.HistogramVec
}

func New() *PortalMetrics {
	m := &PortalMetrics{
		registry: prometheus.NewRegistry(),
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "schedule",
			Name:      "bookings_total",
			Help:      "Total booking attempts by outcome",
		}, []string{"outcome"}),
		bookingConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "schedule",
			Name:      "booking_conflicts_total",
			Help:      "Bookings rejected by the overlap guard",
		}),
		consentTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "consents",
			Name:      "transitions_total",
			Help:      "Consent request state transitions",
		}, []string{"to"}),
		grantsRevokedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "consents",
			Name:      "grants_revoked_total",
			Help:      "Access grants flipped to revoked",
		}),
		disclosuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "records",
			Name:      "disclosures_total",
			Help:      "Record views served, by viewer role",
		}, []string{"role"}),
		disclosuresWithheld: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "records",
			Name:      "disclosures_withheld_total",
			Help:      "Documents withheld because sanitization could not be verified",
		}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route pattern and status",
		}, []string{"method", "route", "status"}),
		httpRequestDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "portal",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route pattern",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	m.registry.MustRegister(
		m.bookingsTotal,
		m.bookingConflicts,
		m.consentTransitions,
		m.grantsRevokedTotal,
		m.disclosuresTotal,
		m.disclosuresWithheld,
		m.httpRequestsTotal,
		m.httpRequestDurations,
	)
	return m
}

// Handler sirve /metrics sobre el registry propio (no el global).
func (m *PortalMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *PortalMetrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
}

func (m *PortalMetrics) ObserveBookingConflict() {
	if m == nil {
		return
	}
	m.bookingConflicts.Inc()
}

func (m *PortalMetrics) ObserveConsentTransition(to string) {
	if m == nil {
		return
	}
	m.consentTransitions.WithLabelValues(to).Inc()
}

func (m *PortalMetrics) ObserveGrantRevoked() {
	if m == nil {
		return
	}
	m.grantsRevokedTotal.Inc()
}

func (m *PortalMetrics) ObserveDisclosure(role string) {
	if m == nil {
		return
	}
	m.disclosuresTotal.WithLabelValues(role).Inc()
}

func (m *PortalMetrics) ObserveDisclosureWithheld() {
	if m == nil {
		return
	}
	m.disclosuresWithheld.Inc()
}

func (m *PortalMetrics) ObserveHTTPRequest(method, route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, route, status).Inc()
	m.httpRequestDurations.WithLabelValues(method, route).Observe(seconds)
}
