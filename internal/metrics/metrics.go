// Package metrics exposes Prometheus counters for the development backend.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Login outcomes.
const (
	OutcomeCodeSent  = "code_sent"
	OutcomeInvalid   = "invalid_credentials"
	OutcomeLocked    = "locked"
	OutcomeVerified  = "verified"
	OutcomeRejected  = "rejected"
	OutcomeExpired   = "expired"
	OutcomeResent    = "resent"
	OutcomeThrottled = "throttled"
)

// Metrics tracks auth outcomes on its own registry.
type Metrics struct {
	reg *prometheus.Registry

	Logins   *prometheus.CounterVec
	Verifies *prometheus.CounterVec
	Resends  *prometheus.CounterVec
	Logouts  prometheus.Counter
}

// New creates a Metrics instance with all counters registered.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		Logins: f.NewCounterVec(prometheus.CounterOpts{
			Name: "resqwave_focal_logins_total",
			Help: "Focal login attempts by outcome",
		}, []string{"outcome"}),
		Verifies: f.NewCounterVec(prometheus.CounterOpts{
			Name: "resqwave_focal_verifications_total",
			Help: "One-time code verifications by outcome",
		}, []string{"outcome"}),
		Resends: f.NewCounterVec(prometheus.CounterOpts{
			Name: "resqwave_focal_resends_total",
			Help: "One-time code resends by outcome",
		}, []string{"outcome"}),
		Logouts: f.NewCounter(prometheus.CounterOpts{
			Name: "resqwave_logouts_total",
			Help: "Session tokens revoked by logout",
		}),
	}
}

// Login records a login outcome.
func (m *Metrics) Login(outcome string) {
	m.Logins.WithLabelValues(outcome).Inc()
}

// Verify records a verification outcome.
func (m *Metrics) Verify(outcome string) {
	m.Verifies.WithLabelValues(outcome).Inc()
}

// Resend records a resend outcome.
func (m *Metrics) Resend(outcome string) {
	m.Resends.WithLabelValues(outcome).Inc()
}

// Logout records a revoked session.
func (m *Metrics) Logout() {
	m.Logouts.Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
