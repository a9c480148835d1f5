package blackboard

import (
	"context"
	"encoding/json"
	"fmt"
)

const calibrationCap = 200

// CalibrationHistory is the ring-buffered value/timestamp history for
// one (domain, signal_type, region) metric key.
type CalibrationHistory struct {
	Values     *Ring[float64] `json:"values"`
	Timestamps *Ring[int64]   `json:"timestamps"`
}

func calibrationKey(domain, signalType, region string) string {
	return fmt.Sprintf("calibration:%s:%s:%s", domain, signalType, region)
}

// GetCalibrationHistory returns the current value/timestamp rings.
// A backing-store miss or timeout yields an empty history rather than
// an error.
func (b *Blackboard) GetCalibrationHistory(ctx context.Context, domain, signalType, region string) (CalibrationHistory, error) {
	scope := calibrationKey(domain, signalType, region)
	raw, ok, err := b.store.GetJSON(ctx, b.key(scope))
	if err != nil {
		return CalibrationHistory{Values: NewRing[float64](calibrationCap), Timestamps: NewRing[int64](calibrationCap)}, nil
	}
	if !ok {
		return CalibrationHistory{Values: NewRing[float64](calibrationCap), Timestamps: NewRing[int64](calibrationCap)}, nil
	}
	var h CalibrationHistory
	if jsonErr := json.Unmarshal(raw, &h); jsonErr != nil || h.Values == nil || h.Timestamps == nil {
		return CalibrationHistory{Values: NewRing[float64](calibrationCap), Timestamps: NewRing[int64](calibrationCap)}, nil
	}
	return h, nil
}

// AppendCalibration atomically pushes value/observedAt onto the
// metric's history ring, evicting from the front at capacity 200.
func (b *Blackboard) AppendCalibration(ctx context.Context, domain, signalType, region string, value float64, observedAt int64) error {
	scope := calibrationKey(domain, signalType, region)
	fullKey := b.key(scope)

	mu := b.lockFor(fullKey)
	mu.Lock()
	defer mu.Unlock()

	hist, err := b.GetCalibrationHistory(ctx, domain, signalType, region)
	if err != nil {
		return err
	}
	hist.Values.Push(value)
	hist.Timestamps.Push(observedAt)

	buf, err := json.Marshal(hist)
	if err != nil {
		return fmt.Errorf("marshal calibration history: %w", err)
	}
	return b.store.SetJSONWithTTL(ctx, fullKey, buf, TTLCalibration)
}
