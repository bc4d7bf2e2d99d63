package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.Armed("armed")
	m.Armed("armed")
	m.Armed("missed")
	m.Fired("delivered")
	m.Cancelled("batch")
	m.Recovered("armed", 3)
	m.Recovered("failed", 0)
	m.Task("memory", "done")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.armed.WithLabelValues("armed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.armed.WithLabelValues("missed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fired.WithLabelValues("delivered")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cancelled.WithLabelValues("batch")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.recovered.WithLabelValues("armed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tasks.WithLabelValues("memory", "done")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.recovered), "zero adds create no series")
}

func TestNew_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)

	_, err = New(reg)
	assert.Error(t, err)
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Armed("armed")
		m.Cancelled("alarm")
		m.Fired("failed")
		m.Recovered("armed", 1)
		m.Task("sqlite", "dropped")
	})
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)
	m.Fired("suppressed")

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `brewlog_alarms_fired_total{outcome="suppressed"} 1`))
}
