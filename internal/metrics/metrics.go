// Package metrics exposes Prometheus counters for the analysis cache and the
// edit engine.
package metrics

import (
	"net/http"
	"time"

	"resumelab/api/internal/mutation"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "resumelab"

// Analysis outcomes.
const (
	ResultHit      = "hit"
	ResultMiss     = "miss"
	ResultUncached = "uncached"
)

// Metrics is safe for concurrent use. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// AnalysesTotal counts analyze requests by cache result.
	AnalysesTotal *prometheus.CounterVec
	// EvaluatorSeconds measures evaluator round trips.
	EvaluatorSeconds prometheus.Histogram
	// EditsTotal counts edit operations by kind and outcome (applied, skipped).
	EditsTotal *prometheus.CounterVec
}

// New registers the collectors on a fresh registry, alongside the Go runtime
// and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		AnalysesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Analyze requests by cache result",
		}, []string{"result"}),
		EvaluatorSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evaluator_duration_seconds",
			Help:      "Evaluator round trip duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 9), // 250ms to ~64s
		}),
		EditsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "edits_total",
			Help:      "Edit operations by kind and outcome",
		}, []string{"kind", "outcome"}),
	}
}

func (m *Metrics) RecordAnalysis(result string) {
	if m == nil {
		return
	}
	m.AnalysesTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveEvaluator(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.EvaluatorSeconds.Observe(elapsed.Seconds())
}

func (m *Metrics) RecordReport(report mutation.Report) {
	if m == nil {
		return
	}
	for _, outcome := range report.Outcomes {
		label := "applied"
		if !outcome.Applied {
			label = "skipped"
		}
		m.EditsTotal.WithLabelValues(string(outcome.Kind), label).Inc()
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
