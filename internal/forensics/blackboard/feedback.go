package blackboard

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sawpanic/forensics-shadow/internal/forensics/domain"
)

const feedbackCap = 1000

// feedbackScopeKey is the single scope every feedback record is
// appended under. SubmitForensicsFeedback carries no domain, so
// feedback is not partitioned per domain.
const feedbackScopeKey = "feedback:__global__"

// SaveFeedback appends one operator feedback record to the shared
// feedback ring. Feedback is not yet folded back into calibration;
// this is the storage half of that hook.
func (b *Blackboard) SaveFeedback(ctx context.Context, record domain.FeedbackRecord) error {
	fullKey := b.key(feedbackScopeKey)
	mu := b.lockFor(fullKey)
	mu.Lock()
	defer mu.Unlock()

	ring, err := b.loadFeedbackRing(ctx, fullKey)
	if err != nil {
		return err
	}
	ring.Push(record)

	buf, err := json.Marshal(ring)
	if err != nil {
		return fmt.Errorf("marshal feedback ring: %w", err)
	}
	return b.store.SetJSONWithTTL(ctx, fullKey, buf, TTLCalibration)
}

// ListFeedback returns the most recent feedback records, newest first.
func (b *Blackboard) ListFeedback(ctx context.Context, limit int) ([]domain.FeedbackRecord, error) {
	ring, err := b.loadFeedbackRing(ctx, b.key(feedbackScopeKey))
	if err != nil {
		return nil, err
	}
	out := make([]domain.FeedbackRecord, 0, len(ring.Items))
	for i := len(ring.Items) - 1; i >= 0; i-- {
		out = append(out, ring.Items[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (b *Blackboard) loadFeedbackRing(ctx context.Context, fullKey string) (*Ring[domain.FeedbackRecord], error) {
	raw, ok, err := b.store.GetJSON(ctx, fullKey)
	if err != nil || !ok {
		return NewRing[domain.FeedbackRecord](feedbackCap), nil
	}
	var ring Ring[domain.FeedbackRecord]
	if jsonErr := json.Unmarshal(raw, &ring); jsonErr != nil || ring.Cap == 0 {
		return NewRing[domain.FeedbackRecord](feedbackCap), nil
	}
	return &ring, nil
}
