// Package telemetry holds the Prometheus metrics for the decision pipeline
// and an end-of-run snapshot logger for batch invocations that exit before
// anything could scrape them.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog/log"
)

// Metrics registers every launchgate metric on its own registry so batch
// runs and tests never collide on the global default.
type Metrics struct {
	registry *prometheus.Registry

	PillarDuration *prometheus.HistogramVec
	CacheHits      *prometheus.CounterVec
	CacheMisses    *prometheus.CounterVec
	CacheErrors    *prometheus.CounterVec
	FitOutcomes    *prometheus.CounterVec
	Verdicts       *prometheus.CounterVec
	RunsTotal      prometheus.Counter
	ActiveRuns     prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		PillarDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "launchgate_pillar_duration_seconds",
				Help:    "Duration of each pillar analysis in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"pillar", "result"},
		),
		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "launchgate_cache_hits_total",
				Help: "Artifact cache hits by pillar",
			},
			[]string{"pillar"},
		),
		CacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "launchgate_cache_misses_total",
				Help: "Artifact cache misses by pillar",
			},
			[]string{"pillar"},
		),
		CacheErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "launchgate_cache_errors_total",
				Help: "Artifact cache degradations treated as misses, by pillar",
			},
			[]string{"pillar"},
		),
		FitOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "launchgate_model_fit_outcomes_total",
				Help: "Forecast model fit outcomes (fitted, insufficient_data, data_quality, fit_error)",
			},
			[]string{"outcome"},
		),
		Verdicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "launchgate_forecast_verdicts_total",
				Help: "Reliability verdicts attached to forecast artifacts",
			},
			[]string{"verdict"},
		),
		RunsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "launchgate_runs_total",
				Help: "Completed decision pipeline runs",
			},
		),
		ActiveRuns: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "launchgate_active_runs",
				Help: "Pipeline runs currently in flight",
			},
		),
	}

	m.registry.MustRegister(
		m.PillarDuration, m.CacheHits, m.CacheMisses, m.CacheErrors,
		m.FitOutcomes, m.Verdicts, m.RunsTotal, m.ActiveRuns,
	)
	return m
}

// Registry exposes the underlying registry for the serve surface.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// LogSnapshot gathers every metric family and logs counter and gauge totals,
// giving batch runs a telemetry record without a scrape.
func (m *Metrics) LogSnapshot() {
	families, err := m.registry.Gather()
	if err != nil {
		log.Warn().Err(err).Msg("metrics snapshot failed")
		return
	}
	for _, fam := range families {
		for _, metric := range fam.GetMetric() {
			ev := log.Debug().Str("metric", fam.GetName())
			for _, lp := range metric.GetLabel() {
				ev = ev.Str(lp.GetName(), lp.GetValue())
			}
			switch fam.GetType() {
			case dto.MetricType_COUNTER:
				ev.Float64("value", metric.GetCounter().GetValue()).Msg("metric snapshot")
			case dto.MetricType_GAUGE:
				ev.Float64("value", metric.GetGauge().GetValue()).Msg("metric snapshot")
			case dto.MetricType_HISTOGRAM:
				h := metric.GetHistogram()
				ev.Uint64("count", h.GetSampleCount()).Float64("sum", h.GetSampleSum()).Msg("metric snapshot")
			default:
				ev.Msg("metric snapshot")
			}
		}
	}
}
