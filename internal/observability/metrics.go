package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/i474232898/agri-risk-engine/internal/risk"
)

const namespace = "agri_risk"

// Metrics holds the Prometheus collectors for source fetches, assessments and
// the scheduled watch list. It implements risk.Recorder.
type Metrics struct {
	SourceFetches       *prometheus.CounterVec   // labels: source, outcome={ok,cached,error,timeout,panic,disabled}
	SourceFetchDuration *prometheus.HistogramVec // labels: source
	Assessments         *prometheus.CounterVec   // labels: level={low,medium,high,failed}
	AssessmentDuration  prometheus.Histogram
	WatchLevel          *prometheus.GaugeVec // labels: target, crop; 0 low, 1 medium, 2 high
	WatchRuns           *prometheus.CounterVec
}

func newMetrics() *Metrics {
	return &Metrics{
		SourceFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_fetches_total",
			Help:      "Source fetches by source and outcome.",
		}, []string{"source", "outcome"}),
		SourceFetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_fetch_duration_seconds",
			Help:      "Duration of source fetches, cache hits included.",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}, []string{"source"}),
		Assessments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assessments_total",
			Help:      "Completed assessments by overall risk level.",
		}, []string{"level"}),
		AssessmentDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "assessment_duration_seconds",
			Help:      "End-to-end duration of an assessment.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		WatchLevel: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "watch_risk_level",
			Help:      "Latest overall risk level of each watch target (0 low, 1 medium, 2 high).",
		}, []string{"target", "crop"}),
		WatchRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "watch_runs_total",
			Help:      "Scheduled watch assessments by result.",
		}, []string{"result"}),
	}
}

// NewMetrics creates and registers all metrics with reg. A nil reg means the
// default Prometheus registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := newMetrics()
	reg.MustRegister(
		m.SourceFetches,
		m.SourceFetchDuration,
		m.Assessments,
		m.AssessmentDuration,
		m.WatchLevel,
		m.WatchRuns,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics so tests can build as many
// as they like.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func (m *Metrics) ObserveFetch(source, outcome string, d time.Duration) {
	m.SourceFetches.WithLabelValues(source, outcome).Inc()
	m.SourceFetchDuration.WithLabelValues(source).Observe(d.Seconds())
}

func (m *Metrics) ObserveAssessment(level string, d time.Duration) {
	m.Assessments.WithLabelValues(level).Inc()
	if d > 0 {
		m.AssessmentDuration.Observe(d.Seconds())
	}
}

// SetWatchLevel exports the latest level of a scheduled watch target.
func (m *Metrics) SetWatchLevel(target string, crop risk.Crop, level risk.Level) {
	m.WatchLevel.WithLabelValues(target, string(crop)).Set(LevelValue(level))
	m.WatchRuns.WithLabelValues("ok").Inc()
}

// WatchFailed counts a scheduled assessment that returned an error.
func (m *Metrics) WatchFailed() {
	m.WatchRuns.WithLabelValues("error").Inc()
}

// LevelValue maps a level onto the gauge scale.
func LevelValue(l risk.Level) float64 {
	switch l {
	case risk.LevelHigh:
		return 2
	case risk.LevelMedium:
		return 1
	default:
		return 0
	}
}
