package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MrSnakeDoc/untold/internal/domain"
	"github.com/MrSnakeDoc/untold/internal/session"
	"github.com/redis/go-redis/v9"
)

// SaveSession stores a session snapshot and refreshes its TTL
func (s *Store) SaveSession(ctx context.Context, snap session.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, SessionKey(snap.Diary.ID), data, s.sessionTTL)
	pipe.SAdd(ctx, AllSessionsKey(), snap.Diary.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// GetSession retrieves a session snapshot by diary ID
func (s *Store) GetSession(ctx context.Context, diaryID string) (*session.Snapshot, error) {
	data, err := s.client.Get(ctx, SessionKey(diaryID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: no snapshot for %s", domain.ErrDiaryNotFound, diaryID)
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var snap session.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &snap, nil
}

// GetAllSessions retrieves every live snapshot. IDs whose snapshot has
// expired are pruned from the index set.
func (s *Store) GetAllSessions(ctx context.Context) ([]*session.Snapshot, error) {
	ids, err := s.client.SMembers(ctx, AllSessionsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get session IDs: %w", err)
	}
	if len(ids) == 0 {
		return []*session.Snapshot{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = SessionKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get sessions: %w", err)
	}

	snaps := make([]*session.Snapshot, 0, len(ids))
	var expired []interface{}
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			expired = append(expired, ids[i])
			continue
		}
		var snap session.Snapshot
		if err := json.Unmarshal([]byte(raw), &snap); err != nil {
			// Skip snapshots that can't be decoded
			continue
		}
		snaps = append(snaps, &snap)
	}

	if len(expired) > 0 {
		if err := s.client.SRem(ctx, AllSessionsKey(), expired...).Err(); err != nil {
			return snaps, fmt.Errorf("failed to prune expired sessions: %w", err)
		}
	}
	return snaps, nil
}

// DeleteSession removes a session snapshot
func (s *Store) DeleteSession(ctx context.Context, diaryID string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, SessionKey(diaryID))
	pipe.SRem(ctx, AllSessionsKey(), diaryID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
