package scheduler

import (
	"context"
	"fmt"

	"github.com/MrSnakeDoc/untold/internal/index"
	"github.com/MrSnakeDoc/untold/internal/logger"
	"github.com/MrSnakeDoc/untold/internal/session"
	redisstore "github.com/MrSnakeDoc/untold/internal/store/redis"
)

// SnapshotRestorer makes a cached session live after checking it against
// the durable record.
type SnapshotRestorer interface {
	RestoreSnapshot(ctx context.Context, snap session.Snapshot) error
}

// RedisSyncer restores widgets and session snapshots from Redis into the
// memory index on startup
type RedisSyncer struct {
	store    *redisstore.Store
	index    *index.MemoryIndex
	restorer SnapshotRestorer
	logger   logger.Logger
}

// NewRedisSyncer creates a new Redis syncer.
func NewRedisSyncer(
	store *redisstore.Store,
	idx *index.MemoryIndex,
	restorer SnapshotRestorer,
	log logger.Logger,
) *RedisSyncer {
	return &RedisSyncer{
		store:    store,
		index:    idx,
		restorer: restorer,
		logger:   log,
	}
}

// Sync loads widgets and sessions from Redis. Widgets only fill an empty
// catalog so a settings file loaded first always wins. A snapshot that
// cannot be restored is skipped; the session is rebuilt on first use.
func (rs *RedisSyncer) Sync(ctx context.Context) error {
	rs.logger.Info("syncing widgets and sessions from redis to memory")

	if rs.index.WidgetCount() == 0 {
		ws, err := rs.store.GetAllWidgets(ctx)
		if err != nil {
			return fmt.Errorf("failed to sync widgets: %w", err)
		}
		if len(ws) > 0 {
			rs.index.UpdateWidgets(ws)
		}
		rs.logger.Info("synced widgets from redis",
			logger.Int("count", len(ws)))
	}

	snaps, err := rs.store.GetAllSessions(ctx)
	if err != nil {
		return fmt.Errorf("failed to sync sessions: %w", err)
	}
	restored := 0
	for _, snap := range snaps {
		if err := rs.restorer.RestoreSnapshot(ctx, *snap); err != nil {
			rs.logger.Warn("skipping session snapshot",
				logger.String("diary_id", snap.Diary.ID),
				logger.Error(err))
			continue
		}
		restored++
	}

	rs.logger.Info("synced sessions from redis",
		logger.Int("count", restored),
		logger.Int("skipped", len(snaps)-restored))

	return nil
}
