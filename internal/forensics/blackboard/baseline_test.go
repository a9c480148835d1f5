package blackboard

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBaselineUpdateIsWelfordIdempotent checks the dispersion
// idempotence law: feeding an extreme outlier and then the series
// mean must not leave stdDev below what a single update alone
// produces, since the outlier's dispersion should persist in M2.
func TestBaselineUpdateIsWelfordIdempotent(t *testing.T) {
	store := NewMapBackingStore()
	b := New(store, "")
	ctx := context.Background()

	single, err := b.UpdateBaseline(ctx, "infrastructure", "us-east", "latency_ms", 50)
	require.NoError(t, err)
	assert.Equal(t, 0.0, single.StdDev)

	outlierEntry, err := b.UpdateBaseline(ctx, "infrastructure", "us-east", "cpu_pct", 500)
	require.NoError(t, err)
	meanEntry, err := b.UpdateBaseline(ctx, "infrastructure", "us-east", "cpu_pct", 50)
	require.NoError(t, err)

	assert.Equal(t, int64(2), meanEntry.Count)
	assert.GreaterOrEqual(t, meanEntry.StdDev, outlierEntry.StdDev)
	assert.Equal(t, 500.0, meanEntry.MaxValue)
	assert.Equal(t, 50.0, meanEntry.MinValue)
	assert.Equal(t, 50.0, meanEntry.LastValue)
}

func TestBaselineUpdateTracksMinMaxAcrossMultipleValues(t *testing.T) {
	store := NewMapBackingStore()
	b := New(store, "")
	ctx := context.Background()

	values := []float64{10, -5, 100, 42}
	var lastStdDev float64
	for _, v := range values {
		e, err := b.UpdateBaseline(ctx, "finance", "global", "flow_index", v)
		require.NoError(t, err)
		lastStdDev = e.StdDev
	}
	final, ok, err := b.GetBaseline(ctx, "finance", "global", "flow_index")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, -5.0, final.MinValue)
	assert.Equal(t, 100.0, final.MaxValue)
	assert.Equal(t, int64(4), final.Count)
	assert.Equal(t, lastStdDev, final.StdDev)
}

func TestGetBaselineMissingReturnsNotOK(t *testing.T) {
	store := NewMapBackingStore()
	b := New(store, "")
	_, ok, err := b.GetBaseline(context.Background(), "infrastructure", "us-east", "unknown_metric")
	require.NoError(t, err)
	assert.False(t, ok)
}
