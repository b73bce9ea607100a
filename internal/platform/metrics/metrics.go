package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values for gate decisions.
const (
	OutcomeAllow    = "allow"
	OutcomeRedirect = "redirect"
	OutcomeError    = "error"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	GateDecisions        *prometheus.CounterVec
	IdentityLookups      *prometheus.CounterVec
	IdentityLookupMs     prometheus.Histogram
	ActivitySaveFailures prometheus.Counter
	PageViewsRecorded    *prometheus.CounterVec
	SessionSaves         *prometheus.CounterVec
	LoginAttempts        *prometheus.CounterVec
}

// New creates and registers all metrics on reg. Tests pass a fresh
// prometheus.NewRegistry() so repeated construction does not collide.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		GateDecisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "webgate_gate_decisions_total",
			Help: "Gate step outcomes by step name",
		}, []string{"step", "outcome"}),
		IdentityLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "webgate_identity_lookups_total",
			Help: "Identity resolutions by result (identified, anonymous, error)",
		}, []string{"result"}),
		IdentityLookupMs: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "webgate_identity_lookup_duration_ms",
			Help:    "Latency of person store lookups during identity resolution in milliseconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50},
		}),
		ActivitySaveFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "webgate_activity_save_failures_total",
			Help: "Activity timestamp writes that failed and were swallowed",
		}),
		PageViewsRecorded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "webgate_page_views_total",
			Help: "Page views handed to the recorder by result",
		}, []string{"result"}),
		SessionSaves: f.NewCounterVec(prometheus.CounterOpts{
			Name: "webgate_session_saves_total",
			Help: "Session persistence attempts by result",
		}, []string{"result"}),
		LoginAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "webgate_login_attempts_total",
			Help: "Login form submissions by result (ok, rejected, throttled)",
		}, []string{"result"}),
	}
}

// ObserveDecision counts one gate step outcome. Safe on a nil receiver.
func (m *Metrics) ObserveDecision(step, outcome string) {
	if m == nil {
		return
	}
	m.GateDecisions.WithLabelValues(step, outcome).Inc()
}

// ObserveIdentityLookup records a person store lookup. Safe on a nil receiver.
func (m *Metrics) ObserveIdentityLookup(result string, durationMs float64) {
	if m == nil {
		return
	}
	m.IdentityLookups.WithLabelValues(result).Inc()
	m.IdentityLookupMs.Observe(durationMs)
}

// IncrementActivitySaveFailures counts a swallowed activity write failure.
func (m *Metrics) IncrementActivitySaveFailures() {
	if m == nil {
		return
	}
	m.ActivitySaveFailures.Inc()
}

// ObservePageView counts a page view by result ("recorded" or "failed").
func (m *Metrics) ObservePageView(result string) {
	if m == nil {
		return
	}
	m.PageViewsRecorded.WithLabelValues(result).Inc()
}

// ObserveSessionSave counts a session write by result ("ok" or "error").
func (m *Metrics) ObserveSessionSave(result string) {
	if m == nil {
		return
	}
	m.SessionSaves.WithLabelValues(result).Inc()
}

// ObserveLoginAttempt counts a login submission by result. Safe on a nil receiver.
func (m *Metrics) ObserveLoginAttempt(result string) {
	if m == nil {
		return
	}
	m.LoginAttempts.WithLabelValues(result).Inc()
}
