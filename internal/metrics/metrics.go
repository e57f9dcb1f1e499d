// Package metrics exposes goldenbatch Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"goldenbatch/internal/models"
)

// Metrics holds the analysis and artifact collectors.
type Metrics struct {
	registry *prometheus.Registry

	analysesTotal       *prometheus.CounterVec
	analysisErrorsTotal *prometheus.CounterVec
	outOfRangeTotal     *prometheus.CounterVec
	healthScore         prometheus.Histogram

	artifactReloadsTotal *prometheus.CounterVec
	artifactsLoaded      prometheus.Gauge
}

// New creates the collectors and registers them on registry.
func New(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) initMetrics() {
	m.analysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goldenbatch_analyses_total",
			Help: "Total number of completed batch analyses",
		},
		[]string{"risk", "tier"},
	)

	m.analysisErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goldenbatch_analysis_errors_total",
			Help: "Total number of failed batch analyses",
		},
		[]string{"reason"},
	)

	m.outOfRangeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goldenbatch_out_of_range_total",
			Help: "Total number of parameters flagged out of range",
		},
		[]string{"parameter"},
	)

	m.healthScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name: "goldenbatch_health_score",
			Help: "Distribution of batch health scores",
			// 0, 10, ..., 100
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)

	m.artifactReloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goldenbatch_artifact_reloads_total",
			Help: "Total number of artifact reload attempts",
		},
		[]string{"result"}, // result: success, error
	)

	m.artifactsLoaded = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "goldenbatch_artifacts_loaded",
			Help: "1 when an artifact bundle is active, 0 otherwise",
		},
	)
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.analysesTotal.Describe(ch)
	m.analysisErrorsTotal.Describe(ch)
	m.outOfRangeTotal.Describe(ch)
	m.healthScore.Describe(ch)
	m.artifactReloadsTotal.Describe(ch)
	m.artifactsLoaded.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.analysesTotal.Collect(ch)
	m.analysisErrorsTotal.Collect(ch)
	m.outOfRangeTotal.Collect(ch)
	m.healthScore.Collect(ch)
	m.artifactReloadsTotal.Collect(ch)
	m.artifactsLoaded.Collect(ch)
}

// RecordAnalysis counts a finished analysis. Nil receivers are no-ops so
// callers can run without metrics.
func (m *Metrics) RecordAnalysis(r models.AnalysisResult) {
	if m == nil {
		return
	}
	m.analysesTotal.WithLabelValues(r.RiskLabel, string(r.HealthTier)).Inc()
	m.healthScore.Observe(r.HealthScore)
	for _, p := range r.OutOfRange {
		m.outOfRangeTotal.WithLabelValues(string(p)).Inc()
	}
}

func (m *Metrics) RecordAnalysisError(reason string) {
	if m == nil {
		return
	}
	m.analysisErrorsTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordReload(err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.artifactReloadsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) SetArtifactsLoaded(loaded bool) {
	if m == nil {
		return
	}
	if loaded {
		m.artifactsLoaded.Set(1)
	} else {
		m.artifactsLoaded.Set(0)
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
