// Package orchestrator sequences the forensics shadow pipeline's
// phases behind a phase-trace DAG.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/forensics-shadow/internal/forensics/anomaly"
	"github.com/sawpanic/forensics-shadow/internal/forensics/blackboard"
	"github.com/sawpanic/forensics-shadow/internal/forensics/causal"
	"github.com/sawpanic/forensics-shadow/internal/forensics/domain"
	"github.com/sawpanic/forensics-shadow/internal/forensics/fusion"
	"github.com/sawpanic/forensics-shadow/internal/forensics/metrics"
	"github.com/sawpanic/forensics-shadow/internal/forensics/policy"
	"github.com/sawpanic/forensics-shadow/internal/forensics/topology"
	"github.com/sawpanic/forensics-shadow/internal/forensics/workerclient"
)

// WorkerClient is the subset of workerclient.Client the orchestrator
// needs, duck-typed so tests can disable or stub offload.
type WorkerClient interface {
	Enabled() bool
	Fuse(ctx context.Context, dom string, signals []domain.Signal, alpha float64) ([]domain.FusedSignal, bool)
	Anomaly(ctx context.Context, dom string, signals []domain.Signal, alpha float64) ([]domain.CalibratedAnomaly, bool)
}

var _ WorkerClient = (*workerclient.Client)(nil)

// Request is the input to a single shadow-pipeline invocation.
type Request struct {
	Domain      string
	Signals     []domain.RawSignal
	EvidenceIDs []string
	Alpha       float64
	Persist     bool
}

// Result bundles the run record alongside its constituent artifacts,
// matching the RunForensicsShadow response shape.
type Result struct {
	Run          domain.Run
	FusedSignals []domain.FusedSignal
	Anomalies    []domain.CalibratedAnomaly
	CausalEdges  []domain.CausalEdge
	Trace        []domain.PhaseTraceEntry
}

// Orchestrator wires the blackboard, topology, fusion, anomaly,
// causal, and policy components into the full pipeline.
type Orchestrator struct {
	Blackboard *blackboard.Blackboard
	Selector   *policy.Selector
	Detector   *anomaly.Detector
	Deriver    *topology.Deriver
	Worker     WorkerClient
	Metrics    *metrics.Registry
}

// New constructs a fully wired Orchestrator.
func New(bb *blackboard.Blackboard, selector *policy.Selector, worker WorkerClient) *Orchestrator {
	return &Orchestrator{
		Blackboard: bb,
		Selector:   selector,
		Detector:   anomaly.NewDetector(bb),
		Deriver:    topology.NewDeriver(bb),
		Worker:     worker,
	}
}

// WithMetrics attaches a metrics registry and returns the Orchestrator
// for chaining.
func (o *Orchestrator) WithMetrics(m *metrics.Registry) *Orchestrator {
	o.Metrics = m
	return o
}

// Run executes one forensics shadow pass. A failure in an analysis
// phase yields a failed run record (still persisted when Persist is
// true) returned together with an error wrapping ErrPhaseFailure.
// Request-shape failures that precede any phase execution return the
// error without a run record.
func (o *Orchestrator) Run(ctx context.Context, req Request) (Result, error) {
	if req.Alpha <= 0 {
		req.Alpha = 0.05
	}

	signals, err := domain.NormalizeBatch(req.Signals, req.Domain, req.EvidenceIDs)
	if err != nil {
		return Result{}, err
	}

	run := domain.Run{
		RunID:     uuid.NewString(),
		Domain:    req.Domain,
		StartedAt: time.Now(),
	}
	var trace []domain.PhaseTraceEntry
	var workerUsed, workerFellBack bool

	o.recordPhase(&trace, "ingest-signals", nil, func() (int, error) {
		return len(signals), nil
	})
	o.recordPhase(&trace, "extract-pole", nil, func() (int, error) {
		count := 0
		for _, s := range signals {
			if s.Value != 0 {
				count++
			}
		}
		return count, nil
	})

	var diag domain.TopologyDiagnostics
	topoErr := o.recordPhase(&trace, "topology-tda", []string{"ingest-signals", "extract-pole"}, func() (int, error) {
		derived, d, err := o.Deriver.Derive(ctx, req.Domain, signals)
		if err != nil {
			return 0, err
		}
		diag = d
		signals = append(signals, derived...)
		return len(derived), nil
	})
	if topoErr != nil {
		return o.fail(ctx, run, trace, req.Persist, topoErr)
	}
	log.Ctx(ctx).Debug().
		Str("run_id", run.RunID).
		Float64("tsi", diag.TSI).
		Int("beta1", diag.Beta1).
		Int("components", diag.ComponentCount).
		Int("hyperedges", diag.HyperedgeCount).
		Int("nodes", diag.NodeCount).
		Msg("topology diagnostics")

	var stateHash string
	var order []domain.PolicyAction
	policyErr := o.recordPhase(&trace, "policy-select", []string{"topology-tda"}, func() (int, error) {
		selected, h, err := o.Selector.Select(ctx, req.Domain, req.Alpha, signals)
		order = selected
		stateHash = h
		return len(order), err
	})
	if policyErr != nil {
		return o.fail(ctx, run, trace, req.Persist, policyErr)
	}

	var fused []domain.FusedSignal
	var anomalies []domain.CalibratedAnomaly
	for _, action := range order {
		start := time.Now()
		switch action {
		case domain.ActionFusion:
			err := o.recordPhase(&trace, string(domain.ActionFusion), []string{"policy-select"}, func() (int, error) {
				if o.Worker != nil && o.Worker.Enabled() {
					if remote, ok := o.Worker.Fuse(ctx, req.Domain, signals, req.Alpha); ok {
						workerUsed = true
						fused = remote
						return len(fused), nil
					}
					workerFellBack = true
				}
				fused = fusion.Fuse(signals)
				return len(fused), nil
			})
			if updateErr := o.Selector.Update(ctx, req.Domain, stateHash, action, err == nil, len(fused), time.Since(start).Seconds()); updateErr != nil {
				log.Ctx(ctx).Warn().Err(updateErr).Msg("policy update failed")
			}
			if err != nil {
				return o.fail(ctx, run, trace, req.Persist, err)
			}
		case domain.ActionAnomaly:
			err := o.recordPhase(&trace, string(domain.ActionAnomaly), []string{"policy-select"}, func() (int, error) {
				if o.Worker != nil && o.Worker.Enabled() {
					if remote, ok := o.Worker.Anomaly(ctx, req.Domain, signals, req.Alpha); ok {
						workerUsed = true
						anomalies = remote
						return len(anomalies), nil
					}
					workerFellBack = true
				}
				var detectErr error
				anomalies, detectErr = o.Detector.Detect(ctx, signals, req.Alpha)
				return len(anomalies), detectErr
			})
			if updateErr := o.Selector.Update(ctx, req.Domain, stateHash, action, err == nil, len(anomalies), time.Since(start).Seconds()); updateErr != nil {
				log.Ctx(ctx).Warn().Err(updateErr).Msg("policy update failed")
			}
			if err != nil {
				return o.fail(ctx, run, trace, req.Persist, err)
			}
		}
	}

	var causalEdges []domain.CausalEdge
	_ = o.recordPhase(&trace, "causal-discovery", []string{string(domain.ActionFusion), string(domain.ActionAnomaly)}, func() (int, error) {
		causalEdges = causal.Discover(signals)
		return len(causalEdges), nil
	})

	run.Status = domain.RunCompleted
	run.CompletedAt = time.Now()
	run.Fused = fused
	run.Anomalies = anomalies
	run.CausalEdges = causalEdges
	run.Trace = trace
	run.WorkerMode = workerMode(workerUsed, workerFellBack)

	_ = o.recordPhase(&trace, "persist-results", []string{string(domain.ActionFusion), string(domain.ActionAnomaly)}, func() (int, error) {
		run.Trace = trace
		if !req.Persist {
			return 0, nil
		}
		if err := o.Blackboard.SaveRun(ctx, run); err != nil {
			return 0, fmt.Errorf("persist run: %w", err)
		}
		return 1, nil
	})
	run.Trace = trace

	if o.Metrics != nil {
		o.Metrics.RunsTotal.WithLabelValues(req.Domain, string(run.Status)).Inc()
		o.Metrics.FusedSignals.WithLabelValues(req.Domain).Add(float64(len(fused)))
		o.Metrics.CausalEdges.WithLabelValues(req.Domain).Add(float64(len(causalEdges)))
		for _, a := range anomalies {
			if a.IsAnomaly {
				o.Metrics.AnomaliesFlagged.WithLabelValues(req.Domain, string(a.Severity)).Inc()
			}
		}
		if workerFellBack {
			o.Metrics.WorkerFallbacks.Inc()
		}
	}

	return Result{Run: run, FusedSignals: fused, Anomalies: anomalies, CausalEdges: causalEdges, Trace: trace}, nil
}

func (o *Orchestrator) fail(ctx context.Context, run domain.Run, trace []domain.PhaseTraceEntry, persist bool, cause error) (Result, error) {
	run.Status = domain.RunFailed
	run.CompletedAt = time.Now()
	run.Error = cause.Error()
	run.Trace = trace

	if persist && o.Blackboard != nil {
		if err := o.Blackboard.SaveRun(ctx, run); err != nil {
			log.Ctx(ctx).Warn().Err(err).Msg("failed to persist failed run")
		}
	}
	if o.Metrics != nil {
		o.Metrics.RunsTotal.WithLabelValues(run.Domain, string(run.Status)).Inc()
	}
	return Result{Run: run, Trace: trace}, fmt.Errorf("%w: %s", domain.ErrPhaseFailure, cause.Error())
}

func workerMode(used, fellBack bool) string {
	switch {
	case used && fellBack:
		return "mixed"
	case used:
		return "remote"
	case fellBack:
		return "mixed"
	default:
		return ""
	}
}

// recordPhase runs fn, appending a PhaseTraceEntry describing its
// outcome and observing it in the metrics registry when attached. The
// returned error is also returned to the caller so it can decide
// whether to halt the pipeline.
func (o *Orchestrator) recordPhase(trace *[]domain.PhaseTraceEntry, name string, parents []string, fn func() (int, error)) error {
	start := time.Now()
	_, err := fn()
	entry := domain.PhaseTraceEntry{
		Phase:        name,
		StartedAt:    start,
		CompletedAt:  time.Now(),
		ParentPhases: parents,
	}
	entry.ElapsedMs = entry.CompletedAt.Sub(entry.StartedAt).Milliseconds()
	status := "success"
	if err != nil {
		entry.Status = domain.PhaseFailed
		entry.Error = err.Error()
		status = "failed"
	} else {
		entry.Status = domain.PhaseSuccess
	}
	*trace = append(*trace, entry)

	if o.Metrics != nil {
		elapsed := entry.CompletedAt.Sub(entry.StartedAt).Seconds()
		o.Metrics.PhaseDuration.WithLabelValues(name, status).Observe(elapsed)
		o.Metrics.PhaseOutcomes.WithLabelValues(name, status).Inc()
	}
	return err
}
