package fusion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/forensics-shadow/internal/forensics/domain"
)

func buildSignal(source, signalType string, value float64, observedAt int64) domain.Signal {
	return domain.Signal{
		SourceID:    source,
		Domain:      "infrastructure",
		Region:      "global",
		SignalType:  signalType,
		Value:       value,
		Confidence:  1,
		ObservedAt:  observedAt,
		EvidenceIDs: map[string]bool{},
	}
}

// TestFuseDiscriminatesHighFromLowSources reproduces the weak-supervision
// scenario: twelve sources across three labelers, six reporting values
// at the 70th-percentile labeling threshold (100) and six well below
// it. The fused
// probability of the high group must exceed the low group's, with a
// clean separation around the midpoint.
func TestFuseDiscriminatesHighFromLowSources(t *testing.T) {
	types := []string{"probe_a", "probe_b", "probe_c"}
	var signals []domain.Signal
	for i := 0; i < 6; i++ {
		src := "high-" + string(rune('a'+i))
		for _, ty := range types {
			signals = append(signals, buildSignal(src, ty, 100, int64(1000+i)))
		}
	}
	for i := 0; i < 6; i++ {
		src := "low-" + string(rune('a'+i))
		for _, ty := range types {
			signals = append(signals, buildSignal(src, ty, 10, int64(2000+i)))
		}
	}

	out := Fuse(signals)
	require.Len(t, out, 12)

	var highSum, lowSum float64
	highCount, lowCount := 0, 0
	for _, fs := range out {
		if len(fs.SourceID) >= 4 && fs.SourceID[:4] == "high" {
			highSum += fs.Probability
			highCount++
		} else {
			lowSum += fs.Probability
			lowCount++
		}
	}
	require.Equal(t, 6, highCount)
	require.Equal(t, 6, lowCount)

	highMean := highSum / float64(highCount)
	lowMean := lowSum / float64(lowCount)

	assert.Greater(t, highMean, 0.52)
	assert.Less(t, lowMean, 0.48)
	assert.Greater(t, highMean, lowMean)
}

func TestFuseEmptyInputReturnsNil(t *testing.T) {
	assert.Nil(t, Fuse(nil))
}

func TestFuseContributorWeightsSumToOne(t *testing.T) {
	var signals []domain.Signal
	for i := 0; i < 4; i++ {
		src := "s" + string(rune('a'+i))
		signals = append(signals, buildSignal(src, "t1", 50+float64(i), 1))
		signals = append(signals, buildSignal(src, "t2", 80+float64(i), 1))
	}
	out := Fuse(signals)
	for _, fs := range out {
		var sum float64
		for _, c := range fs.Contributors {
			sum += c.LearnedWeight
		}
		if len(fs.Contributors) > 0 {
			assert.InDelta(t, 1.0, sum, 1e-9)
		}
	}
}

func TestFuseScoreAndProbabilityBounds(t *testing.T) {
	var signals []domain.Signal
	for i := 0; i < 5; i++ {
		src := "s" + string(rune('a'+i))
		signals = append(signals, buildSignal(src, "t1", float64(10*i+1), 1))
	}
	out := Fuse(signals)
	for _, fs := range out {
		assert.GreaterOrEqual(t, fs.Score, 0.0)
		assert.LessOrEqual(t, fs.Score, 100.0)
		assert.GreaterOrEqual(t, fs.Probability, 0.0)
		assert.LessOrEqual(t, fs.Probability, 1.0)
		assert.LessOrEqual(t, fs.ConfidenceLower, fs.Probability)
		assert.GreaterOrEqual(t, fs.ConfidenceUpper, fs.Probability)
	}
}

// TestFuseProbabilityMonotonicInPositiveLabels compares two sources
// that are identical except one casts an additional above-threshold
// vote on a third labeler: with the labeler set fixed, the extra
// positive label must not decrease the fused probability.
func TestFuseProbabilityMonotonicInPositiveLabels(t *testing.T) {
	types := []string{"probe_a", "probe_b", "probe_c"}
	var signals []domain.Signal
	for i := 0; i < 5; i++ {
		src := "bg-high-" + string(rune('a'+i))
		for _, ty := range types {
			signals = append(signals, buildSignal(src, ty, 100, 1))
		}
	}
	for i := 0; i < 5; i++ {
		src := "bg-low-" + string(rune('a'+i))
		for _, ty := range types {
			signals = append(signals, buildSignal(src, ty, 10, 1))
		}
	}
	signals = append(signals,
		buildSignal("two-votes", "probe_a", 100, 1),
		buildSignal("two-votes", "probe_b", 100, 1),
		buildSignal("three-votes", "probe_a", 100, 1),
		buildSignal("three-votes", "probe_b", 100, 1),
		buildSignal("three-votes", "probe_c", 100, 1),
	)

	out := Fuse(signals)
	byID := map[string]domain.FusedSignal{}
	for _, fs := range out {
		byID[fs.SourceID] = fs
	}
	require.Contains(t, byID, "two-votes")
	require.Contains(t, byID, "three-votes")
	assert.GreaterOrEqual(t, byID["three-votes"].Probability, byID["two-votes"].Probability)
}

func TestFuseContributorsSortedByContribution(t *testing.T) {
	var signals []domain.Signal
	for i := 0; i < 5; i++ {
		src := "s" + string(rune('a'+i))
		signals = append(signals, buildSignal(src, "t1", float64(30*i+10), 1))
		signals = append(signals, buildSignal(src, "t2", float64(5*i+2), 1))
		signals = append(signals, buildSignal(src, "t3", float64(12*i+4), 1))
	}
	out := Fuse(signals)
	require.NotEmpty(t, out)
	for _, fs := range out {
		for i := 1; i < len(fs.Contributors); i++ {
			assert.GreaterOrEqual(t, fs.Contributors[i-1].Contribution, fs.Contributors[i].Contribution)
		}
	}
}

func TestFuseIsDeterministic(t *testing.T) {
	var signals []domain.Signal
	for i := 0; i < 6; i++ {
		src := "s" + string(rune('a'+i))
		signals = append(signals, buildSignal(src, "t1", float64(20*i+5), 1))
		signals = append(signals, buildSignal(src, "t2", float64(15*i+3), 1))
	}
	first := Fuse(signals)
	second := Fuse(signals)
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].SourceID, second[i].SourceID)
		assert.InDelta(t, first[i].Probability, second[i].Probability, 1e-12)
	}
}
