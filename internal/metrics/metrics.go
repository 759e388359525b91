// Package metrics defines Prometheus instrumentation for the generation
// pipeline. All recording methods are safe on a nil *Metrics, so components
// can run uninstrumented.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "framewise"

// Checkpoint events
const (
	CheckpointSaved   = "saved"
	CheckpointResumed = "resumed"
	CheckpointCleared = "cleared"
)

// Metrics holds the pipeline collectors
type Metrics struct {
	// GenerationsTotal counts model calls. Labels: model, outcome (success, error)
	GenerationsTotal *prometheus.CounterVec

	// GenerationErrorsTotal counts failed model calls. Labels: kind
	GenerationErrorsTotal *prometheus.CounterVec

	// GenerationDuration measures model call latency. Labels: model
	GenerationDuration *prometheus.HistogramVec

	RetriesTotal   *prometheus.CounterVec
	FallbacksTotal prometheus.Counter

	// CheckpointsTotal counts checkpoint lifecycle events. Labels: event
	CheckpointsTotal *prometheus.CounterVec

	ConflictsTotal      prometheus.Counter
	CitationErrorsTotal *prometheus.CounterVec
	Effectiveness       prometheus.Histogram
	ActiveGenerations   prometheus.Gauge
}

// New registers the collectors on reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		GenerationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "generations_total",
				Help:      "Model calls by model and outcome",
			},
			[]string{"model", "outcome"},
		),
		GenerationErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "generation_errors_total",
				Help:      "Failed model calls by error kind",
			},
			[]string{"kind"},
		),
		GenerationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "generation_duration_seconds",
				Help:      "Model call latency",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
			},
			[]string{"model"},
		),
		RetriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retries_total",
				Help:      "Retries of retryable model failures",
			},
			[]string{"model"},
		),
		FallbacksTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallbacks_total",
			Help:      "Moves to the next model in the fallback chain",
		}),
		CheckpointsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "checkpoints_total",
				Help:      "Partial-content checkpoint events",
			},
			[]string{"event"},
		),
		ConflictsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "framing_conflicts_total",
			Help:      "Framing conflicts surfaced to callers",
		}),
		CitationErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "citation_errors_total",
				Help:      "Rejected citations by kind",
			},
			[]string{"kind"},
		),
		Effectiveness: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "effectiveness_score",
			Help:      "Framing effectiveness of returned content",
			Buckets:   prometheus.LinearBuckets(10, 10, 10),
		}),
		ActiveGenerations: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_generations",
			Help:      "Pipeline runs in progress",
		}),
	}
}

// Handler serves the metrics gathered by g
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// RecordGeneration records one model call
func (m *Metrics) RecordGeneration(model string, seconds float64, err error, kind string) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
		if kind == "" {
			kind = "unknown"
		}
		m.GenerationErrorsTotal.WithLabelValues(kind).Inc()
	}
	m.GenerationsTotal.WithLabelValues(model, outcome).Inc()
	m.GenerationDuration.WithLabelValues(model).Observe(seconds)
}

func (m *Metrics) RecordRetry(model string) {
	if m == nil {
		return
	}
	m.RetriesTotal.WithLabelValues(model).Inc()
}

func (m *Metrics) RecordFallback() {
	if m == nil {
		return
	}
	m.FallbacksTotal.Inc()
}

// RecordCheckpoint records a checkpoint event (saved, resumed, cleared)
func (m *Metrics) RecordCheckpoint(event string) {
	if m == nil {
		return
	}
	m.CheckpointsTotal.WithLabelValues(event).Inc()
}

func (m *Metrics) RecordConflict() {
	if m == nil {
		return
	}
	m.ConflictsTotal.Inc()
}

func (m *Metrics) RecordCitationError(kind string) {
	if m == nil {
		return
	}
	m.CitationErrorsTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveEffectiveness(score int) {
	if m == nil {
		return
	}
	m.Effectiveness.Observe(float64(score))
}

// GenerationStarted increments the active gauge and returns a func that
// decrements it
func (m *Metrics) GenerationStarted() func() {
	if m == nil {
		return func() {}
	}
	m.ActiveGenerations.Inc()
	return m.ActiveGenerations.Dec
}
