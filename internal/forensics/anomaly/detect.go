package anomaly

import (
	"context"
	"fmt"
	"sort"

	"github.com/sawpanic/forensics-shadow/internal/forensics/blackboard"
	"github.com/sawpanic/forensics-shadow/internal/forensics/domain"
)

// HistoryStore is the subset of the Blackboard's calibration API the
// detector needs, duck-typed so tests can supply an in-memory double.
type HistoryStore interface {
	GetCalibrationHistory(ctx context.Context, domain, signalType, region string) (blackboard.CalibrationHistory, error)
	AppendCalibration(ctx context.Context, domain, signalType, region string, value float64, observedAt int64) error
}

// Detector scores signals for anomalies via dual-nonconformity
// conformal prediction, consulting and updating per-metric history.
type Detector struct {
	History HistoryStore
}

// NewDetector constructs a Detector backed by the given history store
// (normally the process Blackboard).
func NewDetector(history HistoryStore) *Detector {
	return &Detector{History: history}
}

// Detect scores every signal against its (domain, signal_type, region)
// calibration history and returns calibrated anomalies sorted by
// ascending p-value. History is consulted before the
// observed value is appended, so the first value for a metric key is
// never flagged.
func (d *Detector) Detect(ctx context.Context, signals []domain.Signal, alpha float64) ([]domain.CalibratedAnomaly, error) {
	out := make([]domain.CalibratedAnomaly, 0, len(signals))

	for _, s := range signals {
		hist, err := d.History.GetCalibrationHistory(ctx, s.Domain, s.SignalType, s.Region)
		if err != nil {
			return nil, fmt.Errorf("fetch calibration history: %w", err)
		}
		values := hist.Values.Items
		timestamps := hist.Timestamps.Items

		pValueValue, ncm, center := valueNonconformity(values, s.Value)
		pValueTiming, ncmTiming := timingNonconformity(timestamps, s.ObservedAt)
		pCombined := combine(pValueValue, pValueTiming)

		calibrationCount := len(values)
		isAnomaly := calibrationCount >= minCalibrationCountForFlag && pCombined <= alpha

		var intervalMs int64
		if len(timestamps) > 0 {
			intervalMs = s.ObservedAt - timestamps[len(timestamps)-1]
		}

		out = append(out, domain.CalibratedAnomaly{
			SourceID:            s.SourceID,
			Domain:              s.Domain,
			Region:              s.Region,
			SignalType:          s.SignalType,
			Value:               s.Value,
			PValue:              pCombined,
			Alpha:               alpha,
			LegacyZScore:        legacyZScore(values, s.Value),
			IsAnomaly:           isAnomaly,
			Severity:            severity(isAnomaly, pCombined, alpha),
			CalibrationCount:    calibrationCount,
			CalibrationCenter:   center,
			Nonconformity:       ncm,
			PValueValue:         pValueValue,
			PValueTiming:        pValueTiming,
			TimingNonconformity: ncmTiming,
			IntervalMs:          intervalMs,
			ObservedAt:          s.ObservedAt,
		})

		if err := d.History.AppendCalibration(ctx, s.Domain, s.SignalType, s.Region, s.Value, s.ObservedAt); err != nil {
			return nil, fmt.Errorf("append calibration history: %w", err)
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].PValue < out[j].PValue })
	return out, nil
}

func severity(isAnomaly bool, p, alpha float64) domain.Severity {
	if !isAnomaly {
		return domain.SeverityUnspecified
	}
	switch {
	case p <= alpha/5:
		return domain.SeverityHigh
	case p <= alpha/2:
		return domain.SeverityMedium
	default:
		return domain.SeverityLow
	}
}
