// Package api implements the forensics shadow pipeline's external
// operations.
package api

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sawpanic/forensics-shadow/internal/forensics/blackboard"
	"github.com/sawpanic/forensics-shadow/internal/forensics/domain"
	"github.com/sawpanic/forensics-shadow/internal/forensics/orchestrator"
)

// Service exposes the forensics shadow pipeline's RPCs over the
// wired Orchestrator and Blackboard.
type Service struct {
	Orchestrator *orchestrator.Orchestrator
	Blackboard   *blackboard.Blackboard
}

// New constructs a Service.
func New(o *orchestrator.Orchestrator, bb *blackboard.Blackboard) *Service {
	return &Service{Orchestrator: o, Blackboard: bb}
}

// RunForensicsShadowRequest is the RunForensicsShadow input.
type RunForensicsShadowRequest struct {
	Domain      string
	Signals     []domain.RawSignal
	Alpha       float64
	Persist     bool
	EvidenceIDs []string
}

// RunForensicsShadow executes one full pipeline pass.
func (s *Service) RunForensicsShadow(ctx context.Context, req RunForensicsShadowRequest) (orchestrator.Result, error) {
	alpha := req.Alpha
	if alpha <= 0 {
		alpha = 0.05
	}
	persist := req.Persist
	return s.Orchestrator.Run(ctx, orchestrator.Request{
		Domain:      req.Domain,
		Signals:     req.Signals,
		Alpha:       alpha,
		Persist:     persist,
		EvidenceIDs: req.EvidenceIDs,
	})
}

// GetForensicsRun returns a persisted run plus its artifact counts.
func (s *Service) GetForensicsRun(ctx context.Context, runID string) (domain.Run, int, int, error) {
	if strings.TrimSpace(runID) == "" {
		return domain.Run{}, 0, 0, fmt.Errorf("%w: run_id is required", domain.ErrInvalidArgument)
	}
	run, ok, err := s.Blackboard.GetRun(ctx, runID)
	if err != nil {
		return domain.Run{}, 0, 0, err
	}
	if !ok {
		return domain.Run{}, 0, 0, fmt.Errorf("%w: run %q", domain.ErrNotFound, runID)
	}
	return run, len(run.Fused), len(run.Anomalies), nil
}

// ListFusedSignalsRequest filters the ListFusedSignals RPC.
type ListFusedSignalsRequest struct {
	RunID          string
	Domain         string
	Region         string
	MinScore       float64
	MinProbability float64
	Limit          int
}

// ListFusedSignals returns the fused signals for a run, identified
// either directly by run_id or by looking up the most recent run for
// a domain.
func (s *Service) ListFusedSignals(ctx context.Context, req ListFusedSignalsRequest) (domain.Run, []domain.FusedSignal, error) {
	run, err := s.resolveRun(ctx, req.RunID, req.Domain)
	if err != nil {
		return domain.Run{}, nil, err
	}

	limit := req.Limit
	if limit <= 0 || limit > 500 {
		limit = 500
	}

	out := make([]domain.FusedSignal, 0, len(run.Fused))
	for _, f := range run.Fused {
		if req.Region != "" && f.Region != req.Region {
			continue
		}
		if f.Score < req.MinScore {
			continue
		}
		if f.Probability < req.MinProbability {
			continue
		}
		out = append(out, f)
		if len(out) >= limit {
			break
		}
	}
	return run, out, nil
}

// ListCalibratedAnomaliesRequest filters the ListCalibratedAnomalies RPC.
type ListCalibratedAnomaliesRequest struct {
	RunID         string
	Domain        string
	SignalType    string
	Region        string
	AnomaliesOnly bool
	MaxPValue     float64
	MinAbsLegacyZ float64
	Limit         int
}

// ListCalibratedAnomalies returns the calibrated anomalies for a run.
// SignalType supports a trailing "*" prefix match and the sentinel
// "topology" meaning "topology_*".
func (s *Service) ListCalibratedAnomalies(ctx context.Context, req ListCalibratedAnomaliesRequest) (domain.Run, []domain.CalibratedAnomaly, error) {
	run, err := s.resolveRun(ctx, req.RunID, req.Domain)
	if err != nil {
		return domain.Run{}, nil, err
	}

	typeFilter := req.SignalType
	if typeFilter == "topology" {
		typeFilter = "topology_*"
	}

	limit := req.Limit
	if limit <= 0 {
		limit = len(run.Anomalies)
	}

	out := make([]domain.CalibratedAnomaly, 0, len(run.Anomalies))
	for _, a := range run.Anomalies {
		if typeFilter != "" && !matchSignalType(typeFilter, a.SignalType) {
			continue
		}
		if req.Region != "" && a.Region != req.Region {
			continue
		}
		if req.AnomaliesOnly && !a.IsAnomaly {
			continue
		}
		if req.MaxPValue > 0 && a.PValue > req.MaxPValue {
			continue
		}
		if req.MinAbsLegacyZ > 0 && abs(a.LegacyZScore) < req.MinAbsLegacyZ {
			continue
		}
		out = append(out, a)
		if len(out) >= limit {
			break
		}
	}
	return run, out, nil
}

func matchSignalType(filter, signalType string) bool {
	if strings.HasSuffix(filter, "*") {
		return strings.HasPrefix(signalType, strings.TrimSuffix(filter, "*"))
	}
	return filter == signalType
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// GetForensicsTrace returns a run's phase trace.
func (s *Service) GetForensicsTrace(ctx context.Context, runID string) (domain.Run, []domain.PhaseTraceEntry, error) {
	run, _, _, err := s.GetForensicsRun(ctx, runID)
	if err != nil {
		return domain.Run{}, nil, err
	}
	return run, run.Trace, nil
}

// ListForensicsRunsRequest filters the ListForensicsRuns RPC.
type ListForensicsRunsRequest struct {
	Domain string
	Status string
	Limit  int
	Offset int
}

// ListForensicsRuns returns run summaries for a domain.
func (s *Service) ListForensicsRuns(ctx context.Context, req ListForensicsRunsRequest) ([]domain.RunSummary, error) {
	return s.Blackboard.ListRunSummaries(ctx, req.Domain, domain.RunStatus(req.Status), req.Limit, req.Offset)
}

// GetForensicsPolicy returns Q-table entries for a domain.
func (s *Service) GetForensicsPolicy(ctx context.Context, dom, stateHash string, limit int) ([]domain.PolicyEntry, error) {
	return s.Blackboard.ListPolicy(ctx, dom, stateHash, limit)
}

// TopologySummary is the GetForensicsTopologySummary response payload.
type TopologySummary struct {
	Run       domain.Run
	Alerts    []domain.TopologyAlert
	Trends    map[string][]domain.TopologyTrendPoint
	Baselines []domain.BaselineEntry
}

var topologyTrendMetrics = []string{"topology_tsi", "topology_beta1", "topology_cycle_risk"}

// GetForensicsTopologySummaryRequest filters the topology summary RPC.
type GetForensicsTopologySummaryRequest struct {
	RunID         string
	Domain        string
	AlertLimit    int
	HistoryLimit  int
	BaselineLimit int
	AnomaliesOnly bool
}

// GetForensicsTopologySummary surfaces topology diagnostics for a run
// alongside cross-run trend lines and current baselines.
func (s *Service) GetForensicsTopologySummary(ctx context.Context, req GetForensicsTopologySummaryRequest) (TopologySummary, error) {
	run, err := s.resolveRun(ctx, req.RunID, req.Domain)
	if err != nil {
		return TopologySummary{}, err
	}

	alertLimit := req.AlertLimit
	if alertLimit <= 0 {
		alertLimit = 50
	}
	var alerts []domain.TopologyAlert
	for _, a := range run.Anomalies {
		if !strings.HasPrefix(a.SignalType, "topology_") {
			continue
		}
		if req.AnomaliesOnly && !a.IsAnomaly {
			continue
		}
		alerts = append(alerts, domain.TopologyAlert{
			RunID: run.RunID, Domain: run.Domain, Metric: a.SignalType,
			Value: a.Value, Region: a.Region,
		})
		if len(alerts) >= alertLimit {
			break
		}
	}

	historyLimit := req.HistoryLimit
	if historyLimit <= 0 || historyLimit > 200 {
		historyLimit = 50
	}
	trends, err := s.buildTrends(ctx, run.Domain, historyLimit)
	if err != nil {
		return TopologySummary{}, err
	}

	baselineLimit := req.BaselineLimit
	if baselineLimit <= 0 {
		baselineLimit = len(topologyTrendMetrics)
	}
	// Baselines are keyed per (domain, region, signal_type), so fetch
	// one entry per (metric, region) pair the run actually produced —
	// topology_cycle_risk baselines live under their own regions, not
	// "global".
	var baselines []domain.BaselineEntry
	seenBaseline := make(map[string]bool)
	fetchBaseline := func(region, metric string) {
		if len(baselines) >= baselineLimit {
			return
		}
		pair := region + "|" + metric
		if seenBaseline[pair] {
			return
		}
		seenBaseline[pair] = true
		entry, ok, berr := s.Blackboard.GetBaseline(ctx, run.Domain, region, metric)
		if berr == nil && ok {
			baselines = append(baselines, entry)
		}
	}
	for _, a := range run.Anomalies {
		for _, metric := range topologyTrendMetrics {
			if a.SignalType == metric {
				fetchBaseline(a.Region, metric)
			}
		}
	}
	for _, metric := range topologyTrendMetrics {
		fetchBaseline("global", metric)
	}

	return TopologySummary{Run: run, Alerts: alerts, Trends: trends, Baselines: baselines}, nil
}

func (s *Service) buildTrends(ctx context.Context, dom string, historyLimit int) (map[string][]domain.TopologyTrendPoint, error) {
	summaries, err := s.Blackboard.ListRunSummaries(ctx, dom, "", historyLimit, 0)
	if err != nil {
		return nil, err
	}

	trends := make(map[string][]domain.TopologyTrendPoint, len(topologyTrendMetrics))
	for _, summary := range summaries {
		run, ok, rerr := s.Blackboard.GetRun(ctx, summary.RunID)
		if rerr != nil || !ok {
			continue
		}
		for _, a := range run.Anomalies {
			for _, metric := range topologyTrendMetrics {
				if a.SignalType == metric {
					trends[metric] = append(trends[metric], domain.TopologyTrendPoint{
						CompletedAt: run.CompletedAt, Value: a.Value,
					})
				}
			}
		}
	}
	for metric := range trends {
		sort.Slice(trends[metric], func(i, j int) bool {
			return trends[metric][i].CompletedAt.Before(trends[metric][j].CompletedAt)
		})
	}
	return trends, nil
}

// SubmitForensicsFeedback persists operator feedback through the
// blackboard. Feedback is not yet folded back into calibration; this
// stores the record so a future calibration pass can consume it.
func (s *Service) SubmitForensicsFeedback(ctx context.Context, sourceID, signalType string, isTruePositive bool) (bool, error) {
	if strings.TrimSpace(sourceID) == "" || strings.TrimSpace(signalType) == "" {
		return false, fmt.Errorf("%w: source_id and signal_type are required", domain.ErrInvalidArgument)
	}
	record := domain.FeedbackRecord{
		SourceID:       sourceID,
		SignalType:     signalType,
		IsTruePositive: isTruePositive,
		SubmittedAt:    time.Now(),
	}
	if err := s.Blackboard.SaveFeedback(ctx, record); err != nil {
		return false, fmt.Errorf("save feedback: %w", err)
	}
	return true, nil
}

// ListForensicsFeedback returns the most recent operator feedback
// records, newest first.
func (s *Service) ListForensicsFeedback(ctx context.Context, limit int) ([]domain.FeedbackRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.Blackboard.ListFeedback(ctx, limit)
}

func (s *Service) resolveRun(ctx context.Context, runID, dom string) (domain.Run, error) {
	if strings.TrimSpace(runID) != "" {
		run, ok, err := s.Blackboard.GetRun(ctx, runID)
		if err != nil {
			return domain.Run{}, err
		}
		if !ok {
			return domain.Run{}, fmt.Errorf("%w: run %q", domain.ErrNotFound, runID)
		}
		return run, nil
	}
	if strings.TrimSpace(dom) == "" {
		return domain.Run{}, fmt.Errorf("%w: run_id or domain is required", domain.ErrInvalidArgument)
	}
	summaries, err := s.Blackboard.ListRunSummaries(ctx, dom, "", 1, 0)
	if err != nil {
		return domain.Run{}, err
	}
	if len(summaries) == 0 {
		return domain.Run{}, fmt.Errorf("%w: no runs for domain %q", domain.ErrNotFound, dom)
	}
	run, ok, err := s.Blackboard.GetRun(ctx, summaries[0].RunID)
	if err != nil {
		return domain.Run{}, err
	}
	if !ok {
		return domain.Run{}, fmt.Errorf("%w: run %q", domain.ErrNotFound, summaries[0].RunID)
	}
	return run, nil
}
