// Package metrics exposes Prometheus collectors for network extraction and
// objective evaluation.
//
// All methods are safe to call on a nil *Metrics, which records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "vpgen"

// Outcome label values.
const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
)

// Metrics groups the collectors registered by New.
type Metrics struct {
	Extractions        *prometheus.CounterVec
	ExtractionDuration prometheus.Histogram
	NetworkSize        *prometheus.GaugeVec
	Evaluations        *prometheus.CounterVec
	EvaluationDuration prometheus.Histogram
	BestObjective      prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Extractions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_total",
			Help:      "Network extractions by outcome.",
		}, []string{"outcome"}),
		ExtractionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extraction_duration_seconds",
			Help:      "Time spent extracting a network from the graph.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		NetworkSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "network_size",
			Help:      "Size of the last extracted network.",
		}, []string{"part"}),
		Evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Objective evaluations by outcome.",
		}, []string{"outcome"}),
		EvaluationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evaluation_duration_seconds",
			Help:      "Time spent simulating and scoring one virtual patient.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 16),
		}),
		BestObjective: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "best_objective",
			Help:      "Lowest summed objective seen by the running search.",
		}),
	}
	reg.MustRegister(m.Extractions, m.ExtractionDuration, m.NetworkSize, m.Evaluations, m.EvaluationDuration, m.BestObjective)
	return m
}

// ObserveExtraction records one extraction.
func (m *Metrics) ObserveExtraction(d time.Duration, entities, reactions int, err error) {
	if m == nil {
		return
	}
	m.Extractions.WithLabelValues(outcome(err)).Inc()
	m.ExtractionDuration.Observe(d.Seconds())
	if err == nil {
		m.NetworkSize.WithLabelValues("entities").Set(float64(entities))
		m.NetworkSize.WithLabelValues("reactions").Set(float64(reactions))
	}
}

// ObserveEvaluation records one objective evaluation.
func (m *Metrics) ObserveEvaluation(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.Evaluations.WithLabelValues(outcome(err)).Inc()
	m.EvaluationDuration.Observe(d.Seconds())
}

// SetBest records the best objective value found so far.
func (m *Metrics) SetBest(v float64) {
	if m == nil {
		return
	}
	m.BestObjective.Set(v)
}

// Handler serves the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func outcome(err error) string {
	if err != nil {
		return OutcomeFailed
	}
	return OutcomeOK
}
