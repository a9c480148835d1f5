package blackboard

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendCalibrationEvictsAtCapacity(t *testing.T) {
	store := NewMapBackingStore()
	b := New(store, "")
	ctx := context.Background()

	for i := 0; i < calibrationCap+10; i++ {
		err := b.AppendCalibration(ctx, "infrastructure", "latency_ms", "us-east", float64(i), int64(i))
		require.NoError(t, err)
	}

	hist, err := b.GetCalibrationHistory(ctx, "infrastructure", "latency_ms", "us-east")
	require.NoError(t, err)
	assert.Len(t, hist.Values.Items, calibrationCap)
	assert.Len(t, hist.Timestamps.Items, calibrationCap)
	assert.Equal(t, float64(10), hist.Values.Items[0])
	assert.Equal(t, float64(calibrationCap+9), hist.Values.Items[calibrationCap-1])
}

// TestAppendCalibrationIsSafeUnderConcurrency drives many goroutines
// appending to the same metric key, which requires that
// read-modify-write on a ring be atomic per metric key. The ring must
// end up with exactly one entry per append, never fewer (a lost
// update) nor more (a duplicated write).
func TestAppendCalibrationIsSafeUnderConcurrency(t *testing.T) {
	store := NewMapBackingStore()
	b := New(store, "")
	ctx := context.Background()

	const n = 150
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := b.AppendCalibration(ctx, "infrastructure", "cpu_pct", "us-east", float64(i), int64(i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	hist, err := b.GetCalibrationHistory(ctx, "infrastructure", "cpu_pct", "us-east")
	require.NoError(t, err)
	assert.Len(t, hist.Values.Items, n)
	assert.Len(t, hist.Timestamps.Items, n)
}

func TestGetCalibrationHistoryMissingReturnsEmptyRings(t *testing.T) {
	store := NewMapBackingStore()
	b := New(store, "")
	hist, err := b.GetCalibrationHistory(context.Background(), "infrastructure", "unknown", "us-east")
	require.NoError(t, err)
	assert.Empty(t, hist.Values.Items)
	assert.Empty(t, hist.Timestamps.Items)
}
