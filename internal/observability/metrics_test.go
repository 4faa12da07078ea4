package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry(), "admin")

	m.RecordGuardDecision("EXPIRED")
	m.RecordGuardDecision("EXPIRED")
	m.RecordRenewal("success")
	m.RecordLogout("scoped")
	m.RecordRequest("/app/*", "GET", 200, 10*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.guardDecisions.WithLabelValues("EXPIRED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.renewals.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.logouts.WithLabelValues("scoped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("/app/*", "GET", "200")))
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordGuardDecision("AUTHENTICATED")
		m.RecordRenewal("denied")
		m.RecordLogout("full")
		m.RecordError("/", "GET", "X")
	})
}
