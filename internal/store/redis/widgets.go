package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MrSnakeDoc/untold/internal/domain"
	"github.com/redis/go-redis/v9"
)

// GetWidget retrieves a widget from Redis by name
func (s *Store) GetWidget(ctx context.Context, name string) (*domain.Widget, error) {
	data, err := s.client.Get(ctx, WidgetKey(name)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("widget not found: %s", name)
		}
		return nil, fmt.Errorf("failed to get widget: %w", err)
	}

	var widget domain.Widget
	if err := json.Unmarshal(data, &widget); err != nil {
		return nil, fmt.Errorf("failed to unmarshal widget: %w", err)
	}
	return &widget, nil
}

// GetAllWidgets retrieves all widgets from Redis
func (s *Store) GetAllWidgets(ctx context.Context) ([]*domain.Widget, error) {
	names, err := s.client.SMembers(ctx, AllWidgetsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get widget names: %w", err)
	}

	widgets := make([]*domain.Widget, 0, len(names))
	for _, name := range names {
		widget, err := s.GetWidget(ctx, name)
		if err != nil {
			// Skip widgets that couldn't be retrieved
			continue
		}
		widgets = append(widgets, widget)
	}
	return widgets, nil
}

// DeleteWidget removes a widget from Redis
func (s *Store) DeleteWidget(ctx context.Context, name string) error {
	if err := s.client.Del(ctx, WidgetKey(name)).Err(); err != nil {
		return fmt.Errorf("failed to delete widget: %w", err)
	}
	if err := s.client.SRem(ctx, AllWidgetsKey(), name).Err(); err != nil {
		return fmt.Errorf("failed to remove widget from set: %w", err)
	}
	return nil
}

// SaveWidgetsMany stores multiple widgets in Redis (bulk operation)
func (s *Store) SaveWidgetsMany(ctx context.Context, widgets []*domain.Widget) error {
	pipe := s.client.Pipeline()

	for _, widget := range widgets {
		data, err := json.Marshal(widget)
		if err != nil {
			return fmt.Errorf("failed to marshal widget %s: %w", widget.Name, err)
		}
		pipe.Set(ctx, WidgetKey(widget.Name), data, DefaultWidgetTTL)
		pipe.SAdd(ctx, AllWidgetsKey(), widget.Name)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save widgets: %w", err)
	}
	return nil
}
