package prometheus

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/authcore"
)

type fakeSource struct {
	snapshot authcore.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() authcore.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                      { return f.dropped }

func populated() fakeSource {
	return fakeSource{
		snapshot: authcore.MetricsSnapshot{
			Counters: map[authcore.MetricID]uint64{
				authcore.MetricLoginSuccess: 7,
			},
			Histograms: map[authcore.MetricID][]uint64{
				authcore.MetricValidateLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	}
}

func TestCollectorValues(t *testing.T) {
	exp := NewExporter(populated())

	want := `
# HELP authcore_login_success_total Successful password logins.
# TYPE authcore_login_success_total counter
authcore_login_success_total 7
# HELP authcore_audit_dropped_total Dropped audit events due to dispatcher backpressure.
# TYPE authcore_audit_dropped_total counter
authcore_audit_dropped_total 2
`
	require.NoError(t, testutil.CollectAndCompare(exp, strings.NewReader(want),
		"authcore_login_success_total", "authcore_audit_dropped_total"))
	assert.Greater(t, testutil.CollectAndCount(exp), 20)
}

func TestHandlerServesHistogram(t *testing.T) {
	h, err := Handler(populated())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	out := string(body)

	assert.Contains(t, out, `authcore_validate_latency_seconds_bucket{le="0.005"} 1`)
	assert.Contains(t, out, `authcore_validate_latency_seconds_bucket{le="+Inf"} 36`)
	assert.Contains(t, out, "authcore_validate_latency_seconds_count 36")
}

func TestDisabledHistogramOmitted(t *testing.T) {
	exp := NewExporter(fakeSource{snapshot: authcore.MetricsSnapshot{
		Counters:   map[authcore.MetricID]uint64{},
		Histograms: map[authcore.MetricID][]uint64{},
	}})
	require.NoError(t, testutil.CollectAndCompare(exp, strings.NewReader(`
# HELP authcore_store_failure_total Operations failed by a backing store.
# TYPE authcore_store_failure_total counter
authcore_store_failure_total 0
`), "authcore_store_failure_total"))
	assert.Equal(t, 0, testutil.CollectAndCount(exp, "authcore_validate_latency_seconds"))
}
