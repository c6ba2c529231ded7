package deps

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/untold/internal/clients/rl"
	"github.com/MrSnakeDoc/untold/internal/diary"
	"github.com/MrSnakeDoc/untold/internal/domain"
	"github.com/MrSnakeDoc/untold/internal/feedback"
	"github.com/MrSnakeDoc/untold/internal/index"
	"github.com/MrSnakeDoc/untold/internal/logger"
	"github.com/MrSnakeDoc/untold/internal/session"
	redisstore "github.com/MrSnakeDoc/untold/internal/store/redis"
)

// Diaries is the diary composition surface exposed over HTTP.
type Diaries interface {
	Open(ctx context.Context, userID, date string) (session.View, error)
	Get(ctx context.Context, diaryID string) (session.View, error)
	List(ctx context.Context, userID, from, to string) ([]*domain.Diary, error)
	AddCard(ctx context.Context, diaryID string, in domain.CardInput) (*domain.Card, error)
	DeleteCard(ctx context.Context, diaryID, cardID string) error
	Suggest(ctx context.Context, diaryID string) (domain.Layout, error)
	Move(ctx context.Context, diaryID, cardID string, row, col int) (*diary.MoveResult, error)
	Layout(ctx context.Context, diaryID string, which domain.Which) (domain.Layout, error)
	Reward(ctx context.Context, diaryID string) (domain.RewardResult, error)
	Finalize(ctx context.Context, diaryID, finalText string) (*session.FinalizeResult, error)
}

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// FeedbackStats exposes dispatcher counters.
type FeedbackStats interface {
	Stats() feedback.Stats
}

// DeadLetters lists undelivered feedback.
type DeadLetters interface {
	ListFailedFeedback(ctx context.Context, limit int64) ([]redisstore.FailedFeedback, error)
}

type Deps struct {
	Logger        logger.Logger
	StartTime     time.Time
	Version       string
	Commit        string
	BuildDate     string
	GoVersion     string
	TimeNow       func() time.Time                // for testing, defaults to time.Now
	AllowedHosts  []string                        // Host headers allowed to access the server
	AllowedCIDRS  []string                        // IPs allowed to access healthz/readyz/infra endpoints
	TrustProxy    bool                            // true if running behind a trusted reverse proxy (e.g., cloudflared)
	CORSOrigins   []string                        // Origins allowed to call /api from a browser
	APILimit      func(http.Handler) http.Handler // per-IP rate limit for /api, nil disables
	Diaries       Diaries                         // Diary sessions
	Learner       rl.Learner                      // Suggestion and learning collaborator
	LearnerMode   string                          // "remote" or "local-heuristic"
	Database      Pinger                          // Durable store
	RedisClient   *redis.Client                   // Redis client connection, nil when disabled
	DeadLetters   DeadLetters                     // nil when Redis is disabled
	Feedback      FeedbackStats                   // Feedback dispatcher
	MemoryIndex   *index.MemoryIndex              // Live sessions and widget catalog
	WidgetFile    string                          // Widget settings file, empty when not configured
	ReloadTrigger chan struct{}                   // Channel to trigger manual widget reload (nil if disabled)
}
