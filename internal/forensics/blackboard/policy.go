package blackboard

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/sawpanic/forensics-shadow/internal/forensics/domain"
)

func policyKey(dom, stateHash string, action domain.PolicyAction) string {
	return fmt.Sprintf("policy:%s:%s:%s", dom, stateHash, action)
}

func policyIndexKey(dom string) string {
	return fmt.Sprintf("policy-index:%s", dom)
}

// GetPolicy returns the Q-table row for (domain, state_hash, action),
// ok=false when absent (treated as QValue=0 by callers).
func (b *Blackboard) GetPolicy(ctx context.Context, dom, stateHash string, action domain.PolicyAction) (domain.PolicyEntry, bool, error) {
	raw, ok, err := b.store.GetJSON(ctx, b.key(policyKey(dom, stateHash, action)))
	if err != nil || !ok {
		return domain.PolicyEntry{}, false, nil
	}
	var entry domain.PolicyEntry
	if jsonErr := json.Unmarshal(raw, &entry); jsonErr != nil {
		return domain.PolicyEntry{}, false, nil
	}
	return entry, true, nil
}

// UpdatePolicy applies one Q-learning update to the (domain, state_hash,
// action) cell and persists it.
func (b *Blackboard) UpdatePolicy(ctx context.Context, dom, stateHash string, action domain.PolicyAction, reward, learningRate float64) (domain.PolicyEntry, error) {
	fullKey := b.key(policyKey(dom, stateHash, action))
	mu := b.lockFor(fullKey)
	mu.Lock()
	defer mu.Unlock()

	entry, ok, err := b.GetPolicy(ctx, dom, stateHash, action)
	if err != nil {
		return domain.PolicyEntry{}, err
	}
	if !ok {
		entry = domain.PolicyEntry{Domain: dom, StateHash: stateHash, Action: action}
	}

	entry.QValue = entry.QValue + learningRate*(reward-entry.QValue)
	entry.VisitCount++
	entry.LastReward = reward
	entry.LastUpdated = time.Now()

	buf, err := json.Marshal(entry)
	if err != nil {
		return domain.PolicyEntry{}, fmt.Errorf("marshal policy entry: %w", err)
	}
	if err := b.store.SetJSONWithTTL(ctx, fullKey, buf, TTLPolicy); err != nil {
		return domain.PolicyEntry{}, err
	}

	if err := b.addPolicyIndexEntry(ctx, dom, stateHash, action); err != nil {
		return domain.PolicyEntry{}, err
	}
	return entry, nil
}

// addPolicyIndexEntry records (state_hash, action) in a per-domain
// index so ListPolicy can enumerate rows without scanning the whole
// keyspace — pure key/value backing stores offer no native listing.
func (b *Blackboard) addPolicyIndexEntry(ctx context.Context, dom, stateHash string, action domain.PolicyAction) error {
	idxKey := b.key(policyIndexKey(dom))
	entries, _ := b.loadPolicyIndex(ctx, dom)

	id := stateHash + "|" + string(action)
	for _, e := range entries {
		if e == id {
			return nil
		}
	}
	entries = append(entries, id)

	buf, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshal policy index: %w", err)
	}
	return b.store.SetJSONWithTTL(ctx, idxKey, buf, TTLPolicy)
}

func (b *Blackboard) loadPolicyIndex(ctx context.Context, dom string) ([]string, error) {
	raw, ok, err := b.store.GetJSON(ctx, b.key(policyIndexKey(dom)))
	if err != nil || !ok {
		return nil, nil
	}
	var entries []string
	if jsonErr := json.Unmarshal(raw, &entries); jsonErr != nil {
		return nil, nil
	}
	return entries, nil
}

// ListPolicy returns up to limit Q-table entries for a domain,
// optionally filtered by exact state hash.
func (b *Blackboard) ListPolicy(ctx context.Context, dom, stateHash string, limit int) ([]domain.PolicyEntry, error) {
	ids, err := b.loadPolicyIndex(ctx, dom)
	if err != nil {
		return nil, err
	}
	out := make([]domain.PolicyEntry, 0, len(ids))
	for _, id := range ids {
		var sh string
		var action domain.PolicyAction
		for i := len(id) - 1; i >= 0; i-- {
			if id[i] == '|' {
				sh = id[:i]
				action = domain.PolicyAction(id[i+1:])
				break
			}
		}
		if stateHash != "" && sh != stateHash {
			continue
		}
		entry, ok, gerr := b.GetPolicy(ctx, dom, sh, action)
		if gerr != nil || !ok {
			continue
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastUpdated.After(out[j].LastUpdated) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
