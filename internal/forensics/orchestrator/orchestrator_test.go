package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/forensics-shadow/internal/forensics/blackboard"
	"github.com/sawpanic/forensics-shadow/internal/forensics/domain"
	"github.com/sawpanic/forensics-shadow/internal/forensics/policy"
)

func rawSignal(source, signalType string, value float64, observedAt int64) domain.RawSignal {
	return domain.RawSignal{
		SourceID:   source,
		SignalType: signalType,
		Value:      value,
		HasValue:   true,
		Confidence: 1,
		HasConf:    true,
		ObservedAt: observedAt,
	}
}

func newTestOrchestrator() *Orchestrator {
	bb := blackboard.New(blackboard.NewMapBackingStore(), "")
	selector := policy.NewSelector(bb, true, true, 0.15, 0.2)
	return New(bb, selector, nil)
}

// TestRunProducesCompletedRunWithTrace drives a full pipeline pass and
// checks that every phase of the trace DAG is represented, the run
// completes successfully, and invariants on fused signals hold end to
// end.
func TestRunProducesCompletedRunWithTrace(t *testing.T) {
	o := newTestOrchestrator()

	var raw []domain.RawSignal
	for i := 0; i < 8; i++ {
		src := "src-" + string(rune('a'+i))
		raw = append(raw, rawSignal(src, "latency_ms", float64(10*(i+1)), int64(1000+i)))
		raw = append(raw, rawSignal(src, "cpu_pct", float64(5*(i+1)), int64(1000+i)))
	}

	res, err := o.Run(context.Background(), Request{
		Domain:  "infrastructure",
		Signals: raw,
		Alpha:   0.05,
		Persist: true,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.RunCompleted, res.Run.Status)
	assert.NotEmpty(t, res.Run.RunID)

	phases := map[string]bool{}
	for _, entry := range res.Trace {
		phases[entry.Phase] = true
		assert.Equal(t, domain.PhaseSuccess, entry.Status)
	}
	for _, want := range []string{"ingest-signals", "extract-pole", "topology-tda", "policy-select", "causal-discovery", "persist-results"} {
		assert.True(t, phases[want], "expected phase %q in trace", want)
	}
	assert.True(t, phases[string(domain.ActionFusion)])
	assert.True(t, phases[string(domain.ActionAnomaly)])

	for _, fs := range res.FusedSignals {
		assert.GreaterOrEqual(t, fs.ConfidenceLower, 0.0)
		assert.LessOrEqual(t, fs.ConfidenceLower, fs.Probability)
		assert.LessOrEqual(t, fs.Probability, fs.ConfidenceUpper)
		assert.LessOrEqual(t, fs.ConfidenceUpper, 1.0)
		assert.GreaterOrEqual(t, fs.Score, 0.0)
		assert.LessOrEqual(t, fs.Score, 100.0)
	}

	saved, ok, err := o.Blackboard.GetRun(context.Background(), res.Run.RunID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, res.Run.RunID, saved.RunID)
}

func TestRunFailsWholeBatchOnEmptyInput(t *testing.T) {
	o := newTestOrchestrator()
	_, err := o.Run(context.Background(), Request{Domain: "infrastructure", Persist: false})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmptyBatch)
}

func TestRunDefaultsNonPositiveAlpha(t *testing.T) {
	o := newTestOrchestrator()
	res, err := o.Run(context.Background(), Request{
		Domain:  "infrastructure",
		Signals: []domain.RawSignal{rawSignal("s1", "latency_ms", 10, 1000)},
		Alpha:   0,
		Persist: false,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RunCompleted, res.Run.Status)
}

// TestRunIsDeterministicForFixedInput checks determinism across two
// invocations sharing no blackboard state (each
// gets its own fresh in-memory store), confirming the fused and
// anomaly outputs do not depend on hidden global state.
func TestRunIsDeterministicForFixedInput(t *testing.T) {
	build := func() []domain.RawSignal {
		var raw []domain.RawSignal
		for i := 0; i < 6; i++ {
			src := "src-" + string(rune('a'+i))
			raw = append(raw, rawSignal(src, "latency_ms", float64(10*(i+1)), int64(1000+i)))
		}
		return raw
	}

	o1 := newTestOrchestrator()
	res1, err := o1.Run(context.Background(), Request{Domain: "infrastructure", Signals: build(), Alpha: 0.05, Persist: false})
	require.NoError(t, err)

	o2 := newTestOrchestrator()
	res2, err := o2.Run(context.Background(), Request{Domain: "infrastructure", Signals: build(), Alpha: 0.05, Persist: false})
	require.NoError(t, err)

	require.Equal(t, len(res1.FusedSignals), len(res2.FusedSignals))
	for i := range res1.FusedSignals {
		assert.Equal(t, res1.FusedSignals[i].SourceID, res2.FusedSignals[i].SourceID)
		assert.InDelta(t, res1.FusedSignals[i].Probability, res2.FusedSignals[i].Probability, 1e-12)
	}
}
