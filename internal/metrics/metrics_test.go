package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()
	m.Login(OutcomeCodeSent)
	m.Login(OutcomeCodeSent)
	m.Login(OutcomeLocked)
	m.Verify(OutcomeRejected)
	m.Logout()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Logins.WithLabelValues(OutcomeCodeSent)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Logins.WithLabelValues(OutcomeLocked)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Verifies.WithLabelValues(OutcomeRejected)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Logouts))
}

func TestHandler(t *testing.T) {
	m := New()
	m.Resend(OutcomeThrottled)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `resqwave_focal_resends_total{outcome="throttled"} 1`)
}

func TestNew_Independent(t *testing.T) {
	// Separate registries, so two instances never collide.
	a, b := New(), New()
	a.Logout()
	assert.Equal(t, 0.0, testutil.ToFloat64(b.Logouts))
}
