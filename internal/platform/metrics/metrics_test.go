package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsCountOnFreshRegistry(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveDecision("require_activation", OutcomeRedirect)
	m.ObserveDecision("require_activation", OutcomeRedirect)
	m.ObserveIdentityLookup("identified", 1.5)
	m.IncrementActivitySaveFailures()
	m.ObservePageView("recorded")
	m.ObserveSessionSave("ok")
	m.ObserveLoginAttempt("throttled")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.GateDecisions.WithLabelValues("require_activation", OutcomeRedirect)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IdentityLookups.WithLabelValues("identified")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActivitySaveFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PageViewsRecorded.WithLabelValues("recorded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionSaves.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LoginAttempts.WithLabelValues("throttled")))
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveDecision("x", OutcomeAllow)
		m.ObserveIdentityLookup("anonymous", 0)
		m.IncrementActivitySaveFailures()
		m.ObservePageView("failed")
		m.ObserveSessionSave("error")
		m.ObserveLoginAttempt("ok")
	})
}
