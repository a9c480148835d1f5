package causal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/forensics-shadow/internal/forensics/domain"
)

func causalSignal(signalType string, value float64, observedAt int64) domain.Signal {
	return domain.Signal{
		SourceID:   "src-" + signalType,
		Domain:     "infrastructure",
		Region:     "global",
		SignalType: signalType,
		Value:      value,
		Confidence: 1,
		ObservedAt: observedAt,
	}
}

// TestDiscoverFindsCausalCascade reproduces a clean A-leads-B cascade:
// probe_a fires in four buckets, each immediately followed (one bucket
// later) by probe_b, against a twenty-bucket span. The resulting edge
// must have the exact support count and delay, and a causal score in
// the narrow band the lift/MDL formula produces for this geometry.
func TestDiscoverFindsCausalCascade(t *testing.T) {
	const bucket = int64(1_800_000)
	const base = int64(1000)

	var signals []domain.Signal
	for _, idx := range []int64{0, 5, 10, 15} {
		signals = append(signals, causalSignal("probe_a", 100, base+idx*bucket))
	}
	for _, idx := range []int64{1, 6, 11, 16} {
		signals = append(signals, causalSignal("probe_b", 100, base+idx*bucket))
	}
	signals = append(signals, causalSignal("probe_c", 1, base+19*bucket+500))

	edges := Discover(signals)
	require.NotEmpty(t, edges)

	var found *domain.CausalEdge
	for i := range edges {
		if edges[i].Cause == "probe_a" && edges[i].Effect == "probe_b" {
			found = &edges[i]
		}
	}
	require.NotNil(t, found, "expected a probe_a -> probe_b edge")

	assert.Equal(t, 4, found.SupportCount)
	assert.Equal(t, int64(1_800_000), found.DelayMs)
	assert.InDelta(t, 0.2947, found.CausalScore, 0.005)
	assert.Greater(t, found.ConditionalLift, 1.0)

	for _, e := range edges {
		assert.False(t, e.Cause == "probe_b" && e.Effect == "probe_a")
	}
}

// TestDiscoverFindsNoEdgeForSynchronousSignals checks that three
// signal types firing in lockstep (no lag) produce no causal edges in
// either direction: co-activation is only scored at lookback offsets
// of one bucket or more, and with firings three buckets apart each
// pair reaches only two lagged co-activations, below the minimum
// support of four.
func TestDiscoverFindsNoEdgeForSynchronousSignals(t *testing.T) {
	const bucket = int64(1_800_000)
	const base = int64(1000)

	var signals []domain.Signal
	for _, idx := range []int64{0, 3, 6} {
		signals = append(signals, causalSignal("sync_x", 100, base+idx*bucket))
		signals = append(signals, causalSignal("sync_y", 100, base+idx*bucket))
		signals = append(signals, causalSignal("sync_z", 100, base+idx*bucket))
	}

	edges := Discover(signals)
	assert.Empty(t, edges)
}

func TestDiscoverReturnsNilBelowMinimumSignalCount(t *testing.T) {
	var signals []domain.Signal
	for i := 0; i < 5; i++ {
		signals = append(signals, causalSignal("only_type", 10, int64(i)*1000))
	}
	assert.Nil(t, Discover(signals))
}

func TestDiscoverReturnsNilBelowMinimumTypeDiversity(t *testing.T) {
	var signals []domain.Signal
	for i := 0; i < 10; i++ {
		signals = append(signals, causalSignal("type_a", 10, int64(i)*1000))
	}
	for i := 0; i < 5; i++ {
		signals = append(signals, causalSignal("type_b", 10, int64(i)*1000))
	}
	assert.Nil(t, Discover(signals))
}

func TestDiscoverEdgeBoundsAndCap(t *testing.T) {
	const bucket = int64(1_800_000)
	const base = int64(1000)

	var signals []domain.Signal
	for _, idx := range []int64{0, 5, 10, 15} {
		signals = append(signals, causalSignal("probe_a", 100, base+idx*bucket))
	}
	for _, idx := range []int64{1, 6, 11, 16} {
		signals = append(signals, causalSignal("probe_b", 100, base+idx*bucket))
	}
	signals = append(signals, causalSignal("probe_c", 1, base+19*bucket+500))

	edges := Discover(signals)
	require.LessOrEqual(t, len(edges), 40)
	for _, e := range edges {
		assert.GreaterOrEqual(t, e.CausalScore, 0.15)
		assert.LessOrEqual(t, e.CausalScore, 1.0)
		assert.GreaterOrEqual(t, e.SupportCount, 4)
		assert.Greater(t, e.ConditionalLift, 1.0)
		assert.GreaterOrEqual(t, e.DelayMs, int64(0))
	}
	for i := 1; i < len(edges); i++ {
		assert.GreaterOrEqual(t, edges[i-1].CausalScore, edges[i].CausalScore)
	}
}
