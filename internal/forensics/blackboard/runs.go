package blackboard

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sawpanic/forensics-shadow/internal/forensics/domain"
)

const runHistoryCap = 1000

func runKey(runID string) string      { return "run:" + runID }
func runHistoryKey(dom string) string { return "run-history:" + dom }
func globalRunHistoryKey() string     { return "run-history:__global__" }

// SaveRun persists a run record and appends its summary to the
// per-domain and global run-history rings.
func (b *Blackboard) SaveRun(ctx context.Context, run domain.Run) error {
	buf, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}
	if err := b.store.SetJSONWithTTL(ctx, b.key(runKey(run.RunID)), buf, TTLRunRecord); err != nil {
		return err
	}

	summary := summarize(run)
	if err := b.appendRunHistory(ctx, runHistoryKey(run.Domain), summary); err != nil {
		return err
	}
	return b.appendRunHistory(ctx, globalRunHistoryKey(), summary)
}

func (b *Blackboard) appendRunHistory(ctx context.Context, scope string, summary domain.RunSummary) error {
	fullKey := b.key(scope)
	mu := b.lockFor(fullKey)
	mu.Lock()
	defer mu.Unlock()

	ring, err := b.loadRunHistoryRing(ctx, fullKey)
	if err != nil {
		return err
	}
	ring.Push(summary)

	buf, err := json.Marshal(ring)
	if err != nil {
		return fmt.Errorf("marshal run history ring: %w", err)
	}
	return b.store.SetJSONWithTTL(ctx, fullKey, buf, TTLRunHistory)
}

func (b *Blackboard) loadRunHistoryRing(ctx context.Context, fullKey string) (*Ring[domain.RunSummary], error) {
	raw, ok, err := b.store.GetJSON(ctx, fullKey)
	if err != nil || !ok {
		return NewRing[domain.RunSummary](runHistoryCap), nil
	}
	var ring Ring[domain.RunSummary]
	if jsonErr := json.Unmarshal(raw, &ring); jsonErr != nil || ring.Cap == 0 {
		return NewRing[domain.RunSummary](runHistoryCap), nil
	}
	return &ring, nil
}

// GetRun fetches a run record by ID.
func (b *Blackboard) GetRun(ctx context.Context, runID string) (domain.Run, bool, error) {
	raw, ok, err := b.store.GetJSON(ctx, b.key(runKey(runID)))
	if err != nil || !ok {
		return domain.Run{}, false, nil
	}
	var run domain.Run
	if jsonErr := json.Unmarshal(raw, &run); jsonErr != nil {
		return domain.Run{}, false, nil
	}
	return run, true, nil
}

// ListRunSummaries returns a page of run summaries for a domain (or
// the global history when dom == ""), optionally filtered by status,
// most-recent first.
func (b *Blackboard) ListRunSummaries(ctx context.Context, dom string, status domain.RunStatus, limit, offset int) ([]domain.RunSummary, error) {
	scope := globalRunHistoryKey()
	if dom != "" {
		scope = runHistoryKey(dom)
	}
	ring, err := b.loadRunHistoryRing(ctx, b.key(scope))
	if err != nil {
		return nil, err
	}

	filtered := make([]domain.RunSummary, 0, len(ring.Items))
	for i := len(ring.Items) - 1; i >= 0; i-- {
		s := ring.Items[i]
		if status != "" && s.Status != status {
			continue
		}
		filtered = append(filtered, s)
	}

	if offset >= len(filtered) {
		return []domain.RunSummary{}, nil
	}
	filtered = filtered[offset:]
	if limit > 0 && len(filtered) > limit {
		filtered = filtered[:limit]
	}
	return filtered, nil
}

func summarize(run domain.Run) domain.RunSummary {
	s := domain.RunSummary{
		RunID:        run.RunID,
		Domain:       run.Domain,
		StartedAt:    run.StartedAt,
		CompletedAt:  run.CompletedAt,
		Status:       run.Status,
		FusedCount:   len(run.Fused),
		AnomalyCount: len(run.Anomalies),
		MinPValue:    1.0,
	}
	for _, f := range run.Fused {
		if f.Score > s.MaxFusedScore {
			s.MaxFusedScore = f.Score
		}
	}
	for _, a := range run.Anomalies {
		if a.IsAnomaly {
			s.AnomalyFlaggedCount++
		}
		if a.PValue < s.MinPValue {
			s.MinPValue = a.PValue
		}
	}
	if len(run.Anomalies) == 0 {
		s.MinPValue = 0
	}
	return s
}
