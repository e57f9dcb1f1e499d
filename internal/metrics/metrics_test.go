package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goldenbatch/internal/models"
)

func TestRecordAnalysis(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := New(registry)
	require.NoError(t, err)

	m.RecordAnalysis(models.AnalysisResult{
		RiskLabel:   "High Risk",
		HealthTier:  models.TierModerate,
		HealthScore: 70,
		OutOfRange:  []models.Parameter{models.ParamTemperature, models.ParamPH},
	})

	assert.Equal(t, float64(1), testutil.ToFloat64(m.analysesTotal.WithLabelValues("High Risk", "moderate deviation")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.outOfRangeTotal.WithLabelValues("temperature")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.outOfRangeTotal.WithLabelValues("ph")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.outOfRangeTotal.WithLabelValues("pressure")))
}

func TestRecordReloadAndGauge(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := New(registry)
	require.NoError(t, err)

	m.RecordReload(nil)
	m.RecordReload(errors.New("boom"))
	m.RecordReload(errors.New("boom"))
	m.SetArtifactsLoaded(true)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.artifactReloadsTotal.WithLabelValues("success")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.artifactReloadsTotal.WithLabelValues("error")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.artifactsLoaded))

	m.SetArtifactsLoaded(false)
	assert.Equal(t, float64(0), testutil.ToFloat64(m.artifactsLoaded))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordAnalysis(models.AnalysisResult{})
		m.RecordAnalysisError("x")
		m.RecordReload(nil)
		m.SetArtifactsLoaded(true)
	})
}

func TestHandlerExposesMetrics(t *testing.T) {
	m, err := New(prometheus.NewRegistry())
	require.NoError(t, err)
	m.RecordAnalysisError("invalid_input")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `goldenbatch_analysis_errors_total{reason="invalid_input"} 1`)
}
