package policy

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/forensics-shadow/internal/forensics/domain"
)

type fakePolicyStore struct {
	entries map[string]domain.PolicyEntry
}

func newFakePolicyStore() *fakePolicyStore {
	return &fakePolicyStore{entries: map[string]domain.PolicyEntry{}}
}

func policyKey(dom, stateHash string, action domain.PolicyAction) string {
	return dom + "|" + stateHash + "|" + string(action)
}

func (f *fakePolicyStore) GetPolicy(ctx context.Context, dom, stateHash string, action domain.PolicyAction) (domain.PolicyEntry, bool, error) {
	entry, ok := f.entries[policyKey(dom, stateHash, action)]
	return entry, ok, nil
}

func (f *fakePolicyStore) UpdatePolicy(ctx context.Context, dom, stateHash string, action domain.PolicyAction, reward, learningRate float64) (domain.PolicyEntry, error) {
	k := policyKey(dom, stateHash, action)
	entry := f.entries[k]
	entry.Action = action
	entry.QValue = entry.QValue + learningRate*(reward-entry.QValue)
	f.entries[k] = entry
	return entry, nil
}

func sampleSignals() []domain.Signal {
	return []domain.Signal{
		{SourceID: "s1", Domain: "infrastructure", Region: "us-east", SignalType: "latency_ms", Value: 10, ObservedAt: 1},
		{SourceID: "s2", Domain: "infrastructure", Region: "us-east", SignalType: "cpu_pct", Value: 20, ObservedAt: 2},
	}
}

func TestStateHashDeterministic(t *testing.T) {
	signals := sampleSignals()
	a := StateHash("infrastructure", 0.05, signals)
	b := StateHash("infrastructure", 0.05, signals)
	assert.Equal(t, a, b)
	assert.Len(t, a, 8)
}

func TestStateHashChangesWithInputs(t *testing.T) {
	signals := sampleSignals()
	base := StateHash("infrastructure", 0.05, signals)

	assert.NotEqual(t, base, StateHash("maritime", 0.05, signals))
	assert.NotEqual(t, base, StateHash("infrastructure", 0.10, signals))

	extra := append(append([]domain.Signal(nil), signals...), domain.Signal{SourceID: "s3", Region: "eu-west", SignalType: "disk_io"})
	assert.NotEqual(t, base, StateHash("infrastructure", 0.05, extra))
}

func TestRewardNegativeOnFailure(t *testing.T) {
	assert.Equal(t, -1.0, Reward(false, 1000, 5))
}

func TestRewardPositiveOnSuccessAndIncreasesWithRows(t *testing.T) {
	low := Reward(true, 1, 1)
	high := Reward(true, 1000, 1)
	assert.Greater(t, high, low)
	assert.Greater(t, low, 0.0)
}

func TestSelectFixedOrderWhenNotDynamic(t *testing.T) {
	store := newFakePolicyStore()
	s := NewSelector(store, false, true, 0.15, 0.2)
	order, hash, err := s.Select(context.Background(), "infrastructure", 0.05, sampleSignals())
	require.NoError(t, err)
	assert.NotEmpty(t, hash)
	assert.Equal(t, []domain.PolicyAction{domain.ActionFusion, domain.ActionAnomaly}, order)
}

func TestSelectPicksHigherQValueActionFirst(t *testing.T) {
	store := newFakePolicyStore()
	s := NewSelector(store, true, true, 0, 0.2) // epsilon 0 -> no exploration
	s.Rand = rand.New(rand.NewSource(1))

	signals := sampleSignals()
	hash := StateHash("infrastructure", 0.05, signals)
	store.entries[policyKey("infrastructure", hash, domain.ActionAnomaly)] = domain.PolicyEntry{QValue: 5}
	store.entries[policyKey("infrastructure", hash, domain.ActionFusion)] = domain.PolicyEntry{QValue: 1}

	order, _, err := s.Select(context.Background(), "infrastructure", 0.05, signals)
	require.NoError(t, err)
	assert.Equal(t, domain.ActionAnomaly, order[0])
}

func TestUpdateNoOpWhenLearningDisabled(t *testing.T) {
	store := newFakePolicyStore()
	s := NewSelector(store, false, false, 0.15, 0.2)
	err := s.Update(context.Background(), "infrastructure", "abc", domain.ActionFusion, true, 10, 1)
	require.NoError(t, err)
	assert.Empty(t, store.entries)
}

func TestUpdateMovesQValueTowardReward(t *testing.T) {
	store := newFakePolicyStore()
	s := NewSelector(store, true, true, 0.15, 0.5)
	err := s.Update(context.Background(), "infrastructure", "abc", domain.ActionFusion, true, 100, 1)
	require.NoError(t, err)
	entry, ok, err := store.GetPolicy(context.Background(), "infrastructure", "abc", domain.ActionFusion)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Greater(t, entry.QValue, 0.0)
}

func TestUpdateLearnsEvenWhenSelectionIsFixed(t *testing.T) {
	store := newFakePolicyStore()
	s := NewSelector(store, false, true, 0.15, 0.5)
	err := s.Update(context.Background(), "infrastructure", "abc", domain.ActionFusion, true, 100, 1)
	require.NoError(t, err)
	entry, ok, err := store.GetPolicy(context.Background(), "infrastructure", "abc", domain.ActionFusion)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Greater(t, entry.QValue, 0.0)
}
