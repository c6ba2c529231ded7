// Package sentiment estimates the mood of diary text.
package sentiment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrSnakeDoc/untold/internal/clients"
	"github.com/MrSnakeDoc/untold/internal/domain"
)

// ErrNoEstimate is returned when the response carries neither a vector
// nor a usable label.
var ErrNoEstimate = errors.New("sentiment response has no estimate")

type request struct {
	Text string `json:"text"`
}

// response accepts both the coarse label shape and the richer
// valence/arousal shape.
type response struct {
	Label        string   `json:"label,omitempty"`
	Valence      *float64 `json:"valence,omitempty" validate:"required_with=Arousal"`
	Arousal      *float64 `json:"arousal,omitempty" validate:"required_with=Valence"`
	EmotionLabel string   `json:"emotionLabel,omitempty"`
}

// Client calls the sentiment endpoint.
type Client struct {
	transport *clients.JSON
	tracer    trace.Tracer
}

// New builds a client for the endpoint at url.
func New(url string, timeout time.Duration) *Client {
	return &Client{
		transport: clients.NewJSON(url, &http.Client{Timeout: timeout}),
		tracer:    otel.Tracer("untold/clients/sentiment"),
	}
}

// Analyze returns the mood of text. A valence/arousal answer is used as is
// (clamped); otherwise the label is mapped. Callers fall back to
// domain.NeutralMood on error.
func (c *Client) Analyze(ctx context.Context, text string) (domain.MoodVector, error) {
	ctx, span := c.tracer.Start(ctx, "sentiment.analyze", trace.WithAttributes(
		attribute.Int("text.length", len(text)),
	))
	defer span.End()

	var resp response
	if err := c.transport.Do(ctx, http.MethodPost, "", request{Text: text}, &resp); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.NeutralMood, &domain.CollaboratorError{
			Collaborator: "sentiment",
			Op:           "analyze",
			StatusCode:   clients.StatusCode(err),
			Err:          err,
		}
	}

	if resp.Valence != nil && resp.Arousal != nil {
		span.SetAttributes(attribute.String("sentiment.source", "vector"))
		return domain.MoodVector{Valence: *resp.Valence, Arousal: *resp.Arousal}.Clamp(), nil
	}
	// The label only matters without a vector.
	if !knownLabel(resp.Label) {
		span.SetStatus(codes.Error, ErrNoEstimate.Error())
		return domain.NeutralMood, fmt.Errorf("%w: label %q", ErrNoEstimate, resp.Label)
	}
	span.SetAttributes(attribute.String("sentiment.label", resp.Label))
	return domain.MoodFromLabel(resp.Label), nil
}

func knownLabel(label string) bool {
	switch label {
	case "positive", "negative", "neutral":
		return true
	}
	return false
}

// Disabled is used when no sentiment endpoint is configured.
type Disabled struct{}

// Analyze always returns the neutral mood.
func (Disabled) Analyze(context.Context, string) (domain.MoodVector, error) {
	return domain.NeutralMood, nil
}
