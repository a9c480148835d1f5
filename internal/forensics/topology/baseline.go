package topology

import (
	"context"
	"math"

	"github.com/sawpanic/forensics-shadow/internal/forensics/domain"
)

// BaselineStore is the subset of the blackboard the topology deriver
// needs: per-(domain,region,signal_type) Welford baselines.
type BaselineStore interface {
	GetBaseline(ctx context.Context, domain, region, signalType string) (domain.BaselineEntry, bool, error)
	UpdateBaseline(ctx context.Context, domain, region, signalType string, x float64) (domain.BaselineEntry, error)
}

var baselineTrackedTypes = map[string]bool{
	"topology_tsi":        true,
	"topology_beta1":      true,
	"topology_cycle_risk": true,
}

const minBaselineSamplesForDelta = 6
const baselineDeltaZThreshold = 0.25

// emitBaselineDeltas consults the baseline store for each candidate
// signal (restricted to the tracked topology metric types) and emits
// a <signal_type>_baseline_delta signal when drift is significant,
// then updates the baseline via Welford. Each signal's own region
// keys its baseline, so per-region topology_cycle_risk signals track
// independent running statistics.
func emitBaselineDeltas(ctx context.Context, store BaselineStore, candidates []domain.Signal) []domain.Signal {
	var out []domain.Signal
	for _, s := range candidates {
		if !baselineTrackedTypes[s.SignalType] {
			continue
		}

		entry, ok, err := store.GetBaseline(ctx, s.Domain, s.Region, s.SignalType)
		if err == nil && ok && entry.Count >= minBaselineSamplesForDelta && entry.StdDev > 1e-9 {
			z := (s.Value - entry.Mean) / entry.StdDev
			if math.Abs(z) > baselineDeltaZThreshold {
				out = append(out, domain.Signal{
					SourceID:   "topology:baseline:" + s.Domain,
					Region:     s.Region,
					Domain:     s.Domain,
					SignalType: s.SignalType + "_baseline_delta",
					Value:      domain.Clamp(math.Abs(z)*12, 0, 100),
					Confidence: s.Confidence,
					ObservedAt: s.ObservedAt,
				})
			}
		}

		if store != nil {
			_, _ = store.UpdateBaseline(ctx, s.Domain, s.Region, s.SignalType, s.Value)
		}
	}
	return out
}
