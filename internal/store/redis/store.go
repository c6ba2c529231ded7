package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultSessionTTL is the default TTL for session snapshots (48 hours)
	DefaultSessionTTL = 48 * time.Hour
	// DefaultWidgetTTL is the default TTL for widget entries (48 hours)
	DefaultWidgetTTL = 48 * time.Hour
	// MaxFailedFeedback caps the failed feedback list
	MaxFailedFeedback = 1000
)

// Store handles Redis operations for session snapshots, widgets and
// failed feedback
type Store struct {
	client     *redis.Client
	sessionTTL time.Duration
}

// NewStore creates a new Redis store. A zero sessionTTL uses
// DefaultSessionTTL.
func NewStore(client *redis.Client, sessionTTL time.Duration) *Store {
	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionTTL
	}
	return &Store{
		client:     client,
		sessionTTL: sessionTTL,
	}
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
