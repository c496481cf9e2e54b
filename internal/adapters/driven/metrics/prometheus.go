// Package metrics exports pipeline metrics in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/custodia-labs/sercha-tube/internal/core/ports/driven"
)

const namespace = "sercha_tube"

// Verify interface compliance
var _ driven.PipelineMetrics = (*Prometheus)(nil)

// Prometheus implements driven.PipelineMetrics on its own registry
type Prometheus struct {
	registry *prometheus.Registry

	stageDuration *prometheus.HistogramVec
	ingestions    *prometheus.CounterVec
	asks          *prometheus.CounterVec
}

// NewPrometheus creates the collectors, plus Go runtime and process
// collectors, on a fresh registry.
func NewPrometheus() *Prometheus {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Prometheus{
		registry: reg,

		// StageDuration measures each pipeline step.
		stageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Duration of pipeline stages in seconds",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"pipeline", "stage"},
		),

		// Ingestions counts finished ingestions.
		ingestions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ingestions_total",
				Help:      "Total number of finished ingestions",
			},
			[]string{"status", "kind"},
		),

		// Asks counts answered, not_processed and failed questions.
		asks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "asks_total",
				Help:      "Total number of questions by outcome",
			},
			[]string{"outcome", "kind"},
		),
	}
}

// ObserveStage records one stage duration.
func (p *Prometheus) ObserveStage(pipeline, stage string, d time.Duration) {
	p.stageDuration.WithLabelValues(pipeline, stage).Observe(d.Seconds())
}

// IngestionFinished counts an ingestion outcome.
func (p *Prometheus) IngestionFinished(status, kind string) {
	p.ingestions.WithLabelValues(status, kind).Inc()
}

// AskFinished counts a question outcome.
func (p *Prometheus) AskFinished(outcome, kind string) {
	p.asks.WithLabelValues(outcome, kind).Inc()
}

// Handler serves the registry for GET /metrics.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// Registry exposes the registry so other components can add collectors.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}
