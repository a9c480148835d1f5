package policy

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/sawpanic/forensics-shadow/internal/forensics/domain"
)

// Store is the subset of the Blackboard's Q-table API the selector
// needs, duck-typed so tests can supply an in-memory double.
type Store interface {
	GetPolicy(ctx context.Context, dom, stateHash string, action domain.PolicyAction) (domain.PolicyEntry, bool, error)
	UpdatePolicy(ctx context.Context, dom, stateHash string, action domain.PolicyAction, reward, learningRate float64) (domain.PolicyEntry, error)
}

var fixedOrder = []domain.PolicyAction{domain.ActionFusion, domain.ActionAnomaly}

// Selector picks and updates the ordering of the fusion/anomaly
// phases via an ε-greedy tabular Q-learning policy. Dynamic and
// LearningEnabled are independent knobs (dynamic_policy_enabled and
// policy_learning_enabled): a deployment can run the fixed order while
// still accumulating Q-table experience for a later switch-over, or
// run the dynamic order off a frozen table with learning turned off.
type Selector struct {
	Store           Store
	Epsilon         float64
	LearningRate    float64
	Dynamic         bool
	LearningEnabled bool
	Rand            *rand.Rand
}

// NewSelector constructs a Selector with the given configuration.
// A nil Rand falls back to a process-global source.
func NewSelector(store Store, dynamic, learningEnabled bool, epsilon, learningRate float64) *Selector {
	return &Selector{Store: store, Epsilon: epsilon, LearningRate: learningRate, Dynamic: dynamic, LearningEnabled: learningEnabled}
}

// Select returns the ordering of [fusion, anomaly] to run, and the
// state hash used to key the decision (so the caller can later report
// rewards back through Update).
func (s *Selector) Select(ctx context.Context, dom string, alpha float64, signals []domain.Signal) ([]domain.PolicyAction, string, error) {
	stateHash := StateHash(dom, alpha, signals)
	if !s.Dynamic {
		return append([]domain.PolicyAction(nil), fixedOrder...), stateHash, nil
	}

	fusionEntry, _, err := s.Store.GetPolicy(ctx, dom, stateHash, domain.ActionFusion)
	if err != nil {
		return nil, "", fmt.Errorf("load fusion policy: %w", err)
	}
	anomalyEntry, _, err := s.Store.GetPolicy(ctx, dom, stateHash, domain.ActionAnomaly)
	if err != nil {
		return nil, "", fmt.Errorf("load anomaly policy: %w", err)
	}

	if s.random() < s.epsilon() {
		if s.random() < 0.5 {
			return []domain.PolicyAction{domain.ActionFusion, domain.ActionAnomaly}, stateHash, nil
		}
		return []domain.PolicyAction{domain.ActionAnomaly, domain.ActionFusion}, stateHash, nil
	}

	if anomalyEntry.QValue > fusionEntry.QValue {
		return []domain.PolicyAction{domain.ActionAnomaly, domain.ActionFusion}, stateHash, nil
	}
	return []domain.PolicyAction{domain.ActionFusion, domain.ActionAnomaly}, stateHash, nil
}

// Update reports a phase outcome back into the Q-table.
func (s *Selector) Update(ctx context.Context, dom, stateHash string, action domain.PolicyAction, success bool, outputRows int, elapsedSeconds float64) error {
	if !s.LearningEnabled {
		return nil
	}
	reward := Reward(success, outputRows, elapsedSeconds)
	_, err := s.Store.UpdatePolicy(ctx, dom, stateHash, action, reward, s.learningRate())
	return err
}

// epsilon clamps the configured exploration rate into [0,1]; zero is a
// legal value meaning pure greedy selection.
func (s *Selector) epsilon() float64 {
	if s.Epsilon < 0 {
		return 0
	}
	if s.Epsilon > 1 {
		return 1
	}
	return s.Epsilon
}

func (s *Selector) learningRate() float64 {
	if s.LearningRate > 0 {
		return s.LearningRate
	}
	return 0.2
}

func (s *Selector) random() float64 {
	if s.Rand != nil {
		return s.Rand.Float64()
	}
	return rand.Float64()
}
