package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/untold/internal/domain"
	"github.com/MrSnakeDoc/untold/internal/index"
	"github.com/MrSnakeDoc/untold/internal/logger"
	"github.com/MrSnakeDoc/untold/internal/sources/widgets"
	redisstore "github.com/MrSnakeDoc/untold/internal/store/redis"
)

// WidgetReloader handles periodic reloading of the widget settings file
type WidgetReloader struct {
	loader        *widgets.Loader
	mapper        *widgets.Mapper
	store         *redisstore.Store
	index         *index.MemoryIndex
	logger        logger.Logger
	interval      time.Duration
	stopCh        chan struct{}
	manualTrigger chan struct{}
	now           func() time.Time
}

// NewWidgetReloader creates a new widget settings reloader
func NewWidgetReloader(
	settingsFile string,
	store *redisstore.Store,
	idx *index.MemoryIndex,
	log logger.Logger,
	interval time.Duration,
	manualTrigger chan struct{},
) *WidgetReloader {
	return &WidgetReloader{
		loader:        widgets.NewLoader(settingsFile),
		mapper:        widgets.NewMapper(),
		store:         store,
		index:         idx,
		logger:        log,
		interval:      interval,
		stopCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
		now:           time.Now,
	}
}

// Start loads the settings once, then reloads on every tick or manual
// trigger until stopped
func (wr *WidgetReloader) Start(ctx context.Context) error {
	if err := wr.Reload(ctx); err != nil {
		return fmt.Errorf("initial reload failed: %w", err)
	}

	ticker := time.NewTicker(wr.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := wr.Reload(ctx); err != nil {
					wr.logger.Error("failed to reload widgets",
						logger.Error(err))
				}
			case <-wr.manualTrigger:
				wr.logger.Info("manual reload triggered")
				if err := wr.Reload(ctx); err != nil {
					wr.logger.Error("failed to reload widgets",
						logger.Error(err))
				}
			case <-wr.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the reloader
func (wr *WidgetReloader) Stop() {
	close(wr.stopCh)
}

// Reload reads the settings file and updates index + store. Widgets that
// disappeared from the file are kept as disabled until garbage-collected.
// A failed reload leaves the current catalog in place.
func (wr *WidgetReloader) Reload(ctx context.Context) error {
	wr.logger.Info("reloading widget settings",
		logger.String("file", wr.loader.Path()))

	cfg, err := wr.loader.Load()
	if err != nil {
		return err
	}

	fresh, err := wr.mapper.MapWidgets(cfg)
	if err != nil {
		return err
	}

	wr.logger.Info("loaded widget settings",
		logger.Int("count", len(fresh)))

	names := make(map[string]bool, len(fresh))
	for _, w := range fresh {
		names[w.Name] = true
	}

	// Disable widgets that were removed; the first disable time is kept
	// so the garbage collector can age them out.
	var disabled []*domain.Widget
	for _, existing := range wr.index.GetAllWidgets() {
		if names[existing.Name] {
			continue
		}
		if !existing.Disabled {
			existing.Disabled = true
			existing.UpdatedAt = wr.now()
		}
		disabled = append(disabled, existing)
	}

	if len(disabled) > 0 {
		wr.logger.Info("marking removed widgets as disabled",
			logger.Int("count", len(disabled)))
	}

	all := append(fresh, disabled...)
	wr.index.UpdateWidgets(all)

	// Redis is best effort; the memory index is the primary source
	if wr.store != nil {
		if err := wr.store.SaveWidgetsMany(ctx, all); err != nil {
			wr.logger.Warn("failed to save widgets to redis",
				logger.Error(err))
		}
	}

	return nil
}
