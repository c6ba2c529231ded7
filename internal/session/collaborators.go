package session

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/untold/internal/domain"
)

// Store is the durable persistence collaborator. Every write also moves
// the diary's UpdatedAt to the time it is given.
type Store interface {
	SaveCard(ctx context.Context, card *domain.Card) error
	DeleteCard(ctx context.Context, diaryID, cardID string, at time.Time) error
	SaveLayouts(ctx context.Context, l domain.LayoutSave) error
	SaveFinalization(ctx context.Context, f domain.Finalization) error
}

// SuggestRequest asks for an AI layout of the given cards.
type SuggestRequest struct {
	DiaryID string
	UserID  string
	Cards   []*domain.Card
}

// Suggester is the layout-suggestion collaborator.
type Suggester interface {
	SuggestLayout(ctx context.Context, req SuggestRequest) (domain.Layout, error)
}

// Sentiment estimates the mood of a text.
type Sentiment interface {
	Analyze(ctx context.Context, text string) (domain.MoodVector, error)
}

// FeedbackQueue accepts feedback for background dispatch. Enqueue must not
// block; it reports whether the payload was accepted.
type FeedbackQueue interface {
	Enqueue(fb domain.Feedback) bool
}

// WidgetCatalog resolves installed widgets by name.
type WidgetCatalog interface {
	Widget(name string) (domain.Widget, bool)
}

// Deps bundles the collaborators of a session. Sentiment, Feedback and
// Widgets are optional.
type Deps struct {
	Store     Store
	Suggester Suggester
	Sentiment Sentiment
	Feedback  FeedbackQueue
	Widgets   WidgetCatalog
	Now       func() time.Time
}
