// Package metrics holds the Prometheus collectors for evaluations.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Evaluation outcomes used as the "outcome" label.
const (
	OutcomeScored          = "scored"
	OutcomeDataUnavailable = "data_unavailable"
	OutcomeSchemaMismatch  = "schema_mismatch"
	OutcomeNotFound        = "not_found"
	OutcomeUnavailable     = "source_unavailable"
	OutcomeInvalid         = "invalid"
	OutcomeError           = "error"
)

type Metrics struct {
	Evaluations    *prometheus.CounterVec
	FinalScore     prometheus.Histogram
	Duration       prometheus.Histogram
	PopulationSize prometheus.Gauge
	SinkFailures   *prometheus.CounterVec
}

// New registers the collectors with reg. Pass prometheus.DefaultRegisterer
// to expose them on the default /metrics handler.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Evaluations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "riskscore",
			Name:      "evaluations_total",
			Help:      "Risk evaluations by outcome.",
		}, []string{"outcome"}),
		FinalScore: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "riskscore",
			Name:      "final_risk_score",
			Help:      "Distribution of final risk scores.",
			Buckets:   prometheus.LinearBuckets(0, 10, 11),
		}),
		Duration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "riskscore",
			Name:      "evaluation_duration_seconds",
			Help:      "Time spent on one evaluation, fetch included.",
			Buckets:   prometheus.DefBuckets,
		}),
		PopulationSize: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "riskscore",
			Name:      "population_size",
			Help:      "Records in the most recently used reference population.",
		}),
		SinkFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "riskscore",
			Name:      "sink_failures_total",
			Help:      "Best-effort side effects that failed, by sink.",
		}, []string{"sink"}),
	}
}

// Observe records one finished evaluation.
func (m *Metrics) Observe(outcome string, started time.Time) {
	m.Evaluations.WithLabelValues(outcome).Inc()
	m.Duration.Observe(time.Since(started).Seconds())
}
