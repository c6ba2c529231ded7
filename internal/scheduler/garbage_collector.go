package scheduler

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/untold/internal/index"
	"github.com/MrSnakeDoc/untold/internal/logger"
	redisstore "github.com/MrSnakeDoc/untold/internal/store/redis"
)

const (
	// DefaultGCThreshold is the duration after which disabled widgets are deleted
	DefaultGCThreshold = 30 * 24 * time.Hour // 30 days
	// DefaultIdleTTL is how long an unused session stays in memory
	DefaultIdleTTL = 2 * time.Hour
)

// SessionSaver writes a last snapshot of a session before it leaves memory.
type SessionSaver interface {
	SaveSnapshot(ctx context.Context, diaryID string)
}

// GarbageCollector evicts idle sessions from memory and deletes widgets
// that have been disabled for too long
type GarbageCollector struct {
	store     *redisstore.Store
	index     *index.MemoryIndex
	saver     SessionSaver
	logger    logger.Logger
	interval  time.Duration
	idleTTL   time.Duration
	threshold time.Duration
	stopCh    chan struct{}
	now       func() time.Time
}

// NewGarbageCollector creates a new garbage collector. saver may be nil.
func NewGarbageCollector(
	store *redisstore.Store,
	idx *index.MemoryIndex,
	saver SessionSaver,
	log logger.Logger,
	interval time.Duration,
	idleTTL time.Duration,
	threshold time.Duration,
) *GarbageCollector {
	if threshold == 0 {
		threshold = DefaultGCThreshold
	}
	if idleTTL == 0 {
		idleTTL = DefaultIdleTTL
	}

	return &GarbageCollector{
		store:     store,
		index:     idx,
		saver:     saver,
		logger:    log,
		interval:  interval,
		idleTTL:   idleTTL,
		threshold: threshold,
		stopCh:    make(chan struct{}),
		now:       time.Now,
	}
}

// Start begins the periodic garbage collection process
func (gc *GarbageCollector) Start(ctx context.Context) error {
	if err := gc.Collect(ctx); err != nil {
		gc.logger.Warn("initial garbage collection failed",
			logger.Error(err))
	}

	ticker := time.NewTicker(gc.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := gc.Collect(ctx); err != nil {
					gc.logger.Error("garbage collection failed",
						logger.Error(err))
				}
			case <-gc.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the garbage collector
func (gc *GarbageCollector) Stop() {
	close(gc.stopCh)
}

// Collect evicts idle sessions and old disabled widgets
func (gc *GarbageCollector) Collect(ctx context.Context) error {
	evicted := gc.collectSessions(ctx)
	widgetsDeleted := gc.collectWidgets(ctx, gc.now())

	if evicted+widgetsDeleted > 0 {
		gc.logger.Info("garbage collection completed",
			logger.Int("sessions_evicted", evicted),
			logger.Int("widgets_deleted", widgetsDeleted),
			logger.Int("sessions_live", gc.index.SessionCount()))
	} else {
		gc.logger.Debug("no items to garbage collect")
	}

	return nil
}

// collectSessions drops idle sessions from memory. Their snapshot stays
// in Redis until it expires.
func (gc *GarbageCollector) collectSessions(ctx context.Context) int {
	ids := gc.index.IdleSessions(gc.idleTTL)
	for _, id := range ids {
		if gc.saver != nil {
			gc.saver.SaveSnapshot(ctx, id)
		}
		gc.index.DeleteSession(id)
		gc.logger.Debug("evicted idle session",
			logger.String("diary_id", id))
	}
	return len(ids)
}

// collectWidgets removes widgets disabled for longer than the threshold
func (gc *GarbageCollector) collectWidgets(ctx context.Context, now time.Time) int {
	deletedCount := 0

	for _, widget := range gc.index.GetAllWidgets() {
		if !widget.Disabled || widget.UpdatedAt.IsZero() {
			continue
		}

		disabledDuration := now.Sub(widget.UpdatedAt)
		if disabledDuration < gc.threshold {
			continue
		}

		gc.index.DeleteWidget(widget.Name)

		if gc.store != nil {
			if err := gc.store.DeleteWidget(ctx, widget.Name); err != nil {
				gc.logger.Warn("failed to delete widget from redis",
					logger.String("widget", widget.Name),
					logger.Error(err))
			}
		}

		gc.logger.Info("garbage collected disabled widget",
			logger.String("widget", widget.Name),
			logger.String("disabled_for", disabledDuration.String()))

		deletedCount++
	}

	return deletedCount
}
