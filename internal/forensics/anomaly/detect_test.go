package anomaly

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/forensics-shadow/internal/forensics/blackboard"
	"github.com/sawpanic/forensics-shadow/internal/forensics/domain"
)

type fakeHistoryStore struct {
	values     map[string][]float64
	timestamps map[string][]int64
}

func newFakeHistoryStore() *fakeHistoryStore {
	return &fakeHistoryStore{values: map[string][]float64{}, timestamps: map[string][]int64{}}
}

func historyKey(dom, signalType, region string) string { return dom + "|" + signalType + "|" + region }

func (f *fakeHistoryStore) GetCalibrationHistory(ctx context.Context, dom, signalType, region string) (blackboard.CalibrationHistory, error) {
	k := historyKey(dom, signalType, region)
	values := blackboard.NewRing[float64](200)
	for _, v := range f.values[k] {
		values.Push(v)
	}
	timestamps := blackboard.NewRing[int64](200)
	for _, ts := range f.timestamps[k] {
		timestamps.Push(ts)
	}
	return blackboard.CalibrationHistory{Values: values, Timestamps: timestamps}, nil
}

func (f *fakeHistoryStore) AppendCalibration(ctx context.Context, dom, signalType, region string, value float64, observedAt int64) error {
	k := historyKey(dom, signalType, region)
	f.values[k] = append(f.values[k], value)
	f.timestamps[k] = append(f.timestamps[k], observedAt)
	return nil
}

func seedSignal(dom, signalType, region string, value float64, observedAt int64) domain.Signal {
	return domain.Signal{
		SourceID:   "seed",
		Domain:     dom,
		Region:     region,
		SignalType: signalType,
		Value:      value,
		Confidence: 1,
		ObservedAt: observedAt,
	}
}

// TestDetectFlagsExtremeOutlierAfterCalibration seeds 100 values
// cycling through {48..52} at 60 s spacing, then submits 300; it must
// be flagged as a high-severity anomaly with a tiny p-value and a
// nonconformity reflecting the full excursion from the median.
func TestDetectFlagsExtremeOutlierAfterCalibration(t *testing.T) {
	store := newFakeHistoryStore()
	det := NewDetector(store)
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		v := float64(48 + i%5)
		_, err := det.Detect(ctx, []domain.Signal{seedSignal("infrastructure", "latency_ms", "us-east", v, int64(60_000*(i+1)))}, 0.1)
		require.NoError(t, err)
	}

	outlier := seedSignal("infrastructure", "latency_ms", "us-east", 300, int64(60_000*101))
	out, err := det.Detect(ctx, []domain.Signal{outlier}, 0.1)
	require.NoError(t, err)
	require.Len(t, out, 1)

	a := out[0]
	assert.True(t, a.IsAnomaly)
	assert.Equal(t, domain.SeverityHigh, a.Severity)
	assert.Equal(t, 100, a.CalibrationCount)
	assert.LessOrEqual(t, a.PValue, 0.02)
	assert.Greater(t, a.Nonconformity, 200.0)
	assert.GreaterOrEqual(t, a.CalibrationCenter, 47.0)
	assert.LessOrEqual(t, a.CalibrationCenter, 53.0)
}

// TestDetectNullDistributionRespectsAlpha checks the conformal
// exchangeability guarantee: for draws from the same distribution as
// the calibration set, the empirical type-I count over 50 null tests
// at alpha=0.1 stays within the binomial 3-sigma bound of 15.
func TestDetectNullDistributionRespectsAlpha(t *testing.T) {
	store := newFakeHistoryStore()
	det := NewDetector(store)
	ctx := context.Background()

	for i := 0; i < 60; i++ {
		v := float64(48 + i%5)
		_, err := det.Detect(ctx, []domain.Signal{seedSignal("infrastructure", "queue_depth", "us-east", v, int64(60_000*(i+1)))}, 0.1)
		require.NoError(t, err)
	}

	flagged := 0
	for i := 0; i < 50; i++ {
		v := float64(48 + (60+i)%5)
		out, err := det.Detect(ctx, []domain.Signal{seedSignal("infrastructure", "queue_depth", "us-east", v, int64(60_000*(61+i)))}, 0.1)
		require.NoError(t, err)
		require.Len(t, out, 1)
		if out[0].IsAnomaly {
			flagged++
		}
	}
	assert.LessOrEqual(t, flagged, 15)
}

// TestDetectDoesNotFlagUnderCalibratedMetric seeds only five values,
// below the minimum-calibration-count gate, so even an enormous
// nonconformity must not be flagged.
func TestDetectDoesNotFlagUnderCalibratedMetric(t *testing.T) {
	store := newFakeHistoryStore()
	det := NewDetector(store)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := det.Detect(ctx, []domain.Signal{seedSignal("infrastructure", "cpu_pct", "us-east", 20, int64(1000*(i+1)))}, 0.05)
		require.NoError(t, err)
	}

	outlier := seedSignal("infrastructure", "cpu_pct", "us-east", 9999, int64(1000*6))
	out, err := det.Detect(ctx, []domain.Signal{outlier}, 0.05)
	require.NoError(t, err)
	require.Len(t, out, 1)

	assert.False(t, out[0].IsAnomaly)
	assert.Equal(t, domain.SeverityUnspecified, out[0].Severity)
}

func TestDetectFirstValueForMetricNeverFlagged(t *testing.T) {
	store := newFakeHistoryStore()
	det := NewDetector(store)
	ctx := context.Background()

	out, err := det.Detect(ctx, []domain.Signal{seedSignal("infrastructure", "disk_io", "us-east", 123456, 1)}, 0.05)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.False(t, out[0].IsAnomaly)
	assert.Equal(t, 0, out[0].CalibrationCount)
}

func TestDetectSortsAscendingByPValue(t *testing.T) {
	store := newFakeHistoryStore()
	det := NewDetector(store)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		_, err := det.Detect(ctx, []domain.Signal{seedSignal("infrastructure", "mem_pct", "us-east", 40, int64(1000*(i+1)))}, 0.05)
		require.NoError(t, err)
	}

	batch := []domain.Signal{
		seedSignal("infrastructure", "mem_pct", "us-east", 41, int64(1000*21)),
		seedSignal("infrastructure", "mem_pct", "us-east", 9000, int64(1000*22)),
	}
	out, err := det.Detect(ctx, batch, 0.05)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.LessOrEqual(t, out[0].PValue, out[1].PValue)
}
