// Package metrics defines the Prometheus metrics surfaced by the
// forensics shadow pipeline.
package metrics

import (
	dto "github.com/prometheus/client_model/go"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds the Prometheus collectors for one pipeline instance.
type Registry struct {
	PhaseDuration    *prometheus.HistogramVec
	PhaseOutcomes    *prometheus.CounterVec
	FusedSignals     *prometheus.CounterVec
	AnomaliesFlagged *prometheus.CounterVec
	CausalEdges      *prometheus.CounterVec
	WorkerFallbacks  prometheus.Counter
	RunsTotal        *prometheus.CounterVec
}

// NewRegistry constructs and registers the forensics shadow pipeline's
// metric collectors against the given registerer.
func NewRegistry(reg prometheus.Registerer) *Registry {
	m := &Registry{
		PhaseDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "forensics_phase_duration_seconds",
				Help:    "Duration of each forensics shadow pipeline phase in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"phase", "status"},
		),
		PhaseOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forensics_phase_outcomes_total",
				Help: "Total forensics shadow pipeline phase executions by outcome",
			},
			[]string{"phase", "status"},
		),
		FusedSignals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forensics_fused_signals_total",
				Help: "Total fused signals produced, by domain",
			},
			[]string{"domain"},
		),
		AnomaliesFlagged: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forensics_anomalies_flagged_total",
				Help: "Total calibrated anomalies flagged, by domain and severity",
			},
			[]string{"domain", "severity"},
		),
		CausalEdges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forensics_causal_edges_total",
				Help: "Total causal edges discovered, by domain",
			},
			[]string{"domain"},
		),
		WorkerFallbacks: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "forensics_worker_fallbacks_total",
				Help: "Total times worker offload fell back to local compute",
			},
		),
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forensics_runs_total",
				Help: "Total forensics shadow runs, by domain and status",
			},
			[]string{"domain", "status"},
		),
	}

	if reg != nil {
		reg.MustRegister(m.PhaseDuration, m.PhaseOutcomes, m.FusedSignals, m.AnomaliesFlagged, m.CausalEdges, m.WorkerFallbacks, m.RunsTotal)
	}
	return m
}

// PhaseOutcomeCount reads back the current counter value for one
// (phase, status) label pair, for diagnostics surfaces that need a
// raw number rather than a scrape-time export.
func (m *Registry) PhaseOutcomeCount(phase, status string) float64 {
	metric := &dto.Metric{}
	if err := m.PhaseOutcomes.WithLabelValues(phase, status).Write(metric); err != nil {
		return 0
	}
	return metric.GetCounter().GetValue()
}
