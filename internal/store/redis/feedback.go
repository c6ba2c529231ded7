package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/untold/internal/domain"
)

// FailedFeedback is an undelivered feedback record kept for operators.
type FailedFeedback struct {
	Feedback domain.Feedback `json:"feedback"`
	Reason   string          `json:"reason"`
	FailedAt time.Time       `json:"failedAt"`
}

// PushFailedFeedback prepends a failed record and trims the list to
// MaxFailedFeedback entries
func (s *Store) PushFailedFeedback(ctx context.Context, fb domain.Feedback, reason string) error {
	data, err := json.Marshal(FailedFeedback{Feedback: fb, Reason: reason, FailedAt: time.Now()})
	if err != nil {
		return fmt.Errorf("failed to marshal feedback: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.LPush(ctx, FailedFeedbackKey(), data)
	pipe.LTrim(ctx, FailedFeedbackKey(), 0, MaxFailedFeedback-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to push failed feedback: %w", err)
	}
	return nil
}

// ListFailedFeedback returns up to limit records, newest first
func (s *Store) ListFailedFeedback(ctx context.Context, limit int64) ([]FailedFeedback, error) {
	if limit <= 0 || limit > MaxFailedFeedback {
		limit = MaxFailedFeedback
	}
	raw, err := s.client.LRange(ctx, FailedFeedbackKey(), 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list failed feedback: %w", err)
	}

	out := make([]FailedFeedback, 0, len(raw))
	for _, r := range raw {
		var f FailedFeedback
		if err := json.Unmarshal([]byte(r), &f); err != nil {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}
