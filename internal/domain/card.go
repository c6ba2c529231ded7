package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// GridRows and GridCols bound every layout.
	GridRows = 3
	GridCols = 4
)

// Position is a grid cell assignment.
type Position struct {
	Row        int `json:"row"`
	Col        int `json:"col"`
	OrderIndex int `json:"orderIndex"`
}

// InBounds reports whether p lies inside the 3x4 grid.
func (p Position) InBounds() bool {
	return p.Row >= 0 && p.Row < GridRows && p.Col >= 0 && p.Col < GridCols
}

// Card is one placeable unit of diary content.
//
// Everything but Position is immutable after creation. A card without a
// Position is unplaced and never rendered in the grid.
type Card struct {
	ID         string     `json:"id"`
	DiaryID    string     `json:"diaryId"`
	SourceType SourceType `json:"sourceType"`
	Category   string     `json:"category"`
	Content    string     `json:"content"`
	ImageURL   string     `json:"imageUrl,omitempty"`
	Widget     string     `json:"widget,omitempty"` // installed widget name, widget cards only
	Position   *Position  `json:"position,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// Placed reports whether the card currently has a grid cell.
func (c *Card) Placed() bool { return c.Position != nil }

// HasContent reports whether the card carries text or an image.
func (c *Card) HasContent() bool {
	return strings.TrimSpace(c.Content) != "" || c.ImageURL != ""
}

// CardInput carries the caller-supplied fields of a new card.
type CardInput struct {
	SourceType SourceType
	Category   string
	Content    string
	ImageURL   string
	Widget     string
}

// NewCard validates in and returns an unplaced card with a fresh id.
// An empty category falls back to the source default.
func NewCard(diaryID string, in CardInput, now time.Time) (*Card, error) {
	if !in.SourceType.Valid() {
		return nil, Invalid("sourceType", "unknown source")
	}

	content := strings.TrimSpace(in.Content)
	imageURL := strings.TrimSpace(in.ImageURL)

	// Image cards may have empty content and are the only ones with a URL.
	if in.SourceType != SourceImage {
		if content == "" {
			return nil, Invalid("content", "required for "+string(in.SourceType)+" cards")
		}
		if imageURL != "" {
			return nil, Invalid("imageUrl", "only image cards carry an image")
		}
	}
	if in.Widget != "" && in.SourceType != SourceWidget {
		return nil, Invalid("widget", "only widget cards name a widget")
	}

	category := strings.TrimSpace(in.Category)
	if category == "" {
		category = in.SourceType.Info().DefaultCategory
	}

	return &Card{
		ID:         uuid.NewString(),
		DiaryID:    diaryID,
		SourceType: in.SourceType,
		Category:   category,
		Content:    in.Content,
		ImageURL:   imageURL,
		Widget:     in.Widget,
		CreatedAt:  now,
	}, nil
}
