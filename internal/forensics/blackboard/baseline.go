package blackboard

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/sawpanic/forensics-shadow/internal/forensics/domain"
)

func baselineKey(dom, region, signalType string) string {
	return fmt.Sprintf("baseline:%s:%s:%s", dom, region, signalType)
}

// GetBaseline returns the current Welford moment state for a
// (domain, region, signal_type) metric key, ok=false when no baseline
// exists yet.
func (b *Blackboard) GetBaseline(ctx context.Context, dom, region, signalType string) (domain.BaselineEntry, bool, error) {
	scope := baselineKey(dom, region, signalType)
	raw, ok, err := b.store.GetJSON(ctx, b.key(scope))
	if err != nil || !ok {
		return domain.BaselineEntry{}, false, nil
	}
	var entry domain.BaselineEntry
	if jsonErr := json.Unmarshal(raw, &entry); jsonErr != nil {
		return domain.BaselineEntry{}, false, nil
	}
	return entry, true, nil
}

// UpdateBaseline applies one Welford update with value x and returns
// the resulting entry.
func (b *Blackboard) UpdateBaseline(ctx context.Context, dom, region, signalType string, x float64) (domain.BaselineEntry, error) {
	scope := baselineKey(dom, region, signalType)
	fullKey := b.key(scope)

	mu := b.lockFor(fullKey)
	mu.Lock()
	defer mu.Unlock()

	existing, ok, err := b.GetBaseline(ctx, dom, region, signalType)
	if err != nil {
		return domain.BaselineEntry{}, err
	}

	entry := existing
	if !ok {
		entry = domain.BaselineEntry{
			Domain: dom, Region: region, SignalType: signalType,
			MinValue: x, MaxValue: x,
		}
	}

	newCount := entry.Count + 1
	delta := x - entry.Mean
	newMean := entry.Mean + delta/float64(newCount)
	delta2 := x - newMean
	newM2 := entry.M2 + delta*delta2

	entry.Count = newCount
	entry.Mean = newMean
	entry.M2 = newM2
	if newCount > 1 {
		entry.StdDev = math.Sqrt(newM2 / float64(newCount-1))
	} else {
		entry.StdDev = 0
	}
	if x < entry.MinValue || newCount == 1 {
		entry.MinValue = x
	}
	if x > entry.MaxValue || newCount == 1 {
		entry.MaxValue = x
	}
	entry.LastValue = x
	entry.LastUpdated = time.Now()

	buf, err := json.Marshal(entry)
	if err != nil {
		return domain.BaselineEntry{}, fmt.Errorf("marshal baseline: %w", err)
	}
	if err := b.store.SetJSONWithTTL(ctx, fullKey, buf, TTLTopology); err != nil {
		return domain.BaselineEntry{}, err
	}
	return entry, nil
}
