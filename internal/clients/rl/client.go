// Package rl talks to the layout-suggestion and learning service.
package rl

import (
	"context"
	"encoding/json"
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
	"github.com/MrSnakeDoc/untold/internal/logger"
	"github.com/MrSnakeDoc/untold/internal/session"
)

const (
	pathSuggest  = "/api/rl/suggest-layout"
	pathFeedback = "/api/rl/learn-from-feedback"
	pathTrain    = "/api/rl/batch-train"
	pathStatus   = "/api/rl/learning-status"

	collaborator = "suggestion"
)

// Learner is everything the service needs from the learning collaborator.
type Learner interface {
	session.Suggester
	SendFeedback(ctx context.Context, fb domain.Feedback) error
	BatchTrain(ctx context.Context, req TrainRequest) (*TrainResult, error)
	LearningStatus(ctx context.Context) (*LearningStatus, error)
}

// TrainRequest asks the learning service to train on logged feedback.
type TrainRequest struct {
	UserID   string `json:"userId,omitempty"`
	Episodes int    `json:"episodes,omitempty" validate:"gte=0,lte=100000"`
}

// TrainResult is the learning service answer to a training request.
type TrainResult struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Details json.RawMessage `json:"details,omitempty"`
}

// LearningStatus describes the learning service.
type LearningStatus struct {
	Mode    string          `json:"mode"`
	Ready   bool            `json:"ready"`
	Details json.RawMessage `json:"details,omitempty"`
}

type wirePosition struct {
	Row        *int `json:"row" validate:"required"`
	Col        *int `json:"col" validate:"required"`
	OrderIndex int  `json:"orderIndex"`
}

type suggestRequest struct {
	DiaryID         string   `json:"diaryId"`
	UserID          string   `json:"userId"`
	SelectedCardIDs []string `json:"selectedCardIds"`
}

type suggestResponse struct {
	Success *bool                   `json:"success" validate:"required"`
	Layout  map[string]wirePosition `json:"layout" validate:"omitempty,dive"`
	Message string                  `json:"message,omitempty"`
}

type ackResponse struct {
	Success *bool  `json:"success"`
	Message string `json:"message,omitempty"`
}

type statusResponse struct {
	Mode    string          `json:"mode"`
	Ready   *bool           `json:"ready"`
	Details json.RawMessage `json:"details,omitempty"`
}

// Config configures the HTTP client.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client is the HTTP implementation of Learner.
type Client struct {
	transport *clients.JSON
	tracer    trace.Tracer
	logger    logger.Logger
}

// New builds a client. Timeout bounds each request.
func New(cfg Config, log logger.Logger) *Client {
	return &Client{
		transport: clients.NewJSON(cfg.BaseURL, &http.Client{Timeout: cfg.Timeout}),
		tracer:    otel.Tracer("untold/clients/rl"),
		logger:    log,
	}
}

// SuggestLayout requests an AI layout. success=false and transport
// failures are both errors.
func (c *Client) SuggestLayout(ctx context.Context, req session.SuggestRequest) (domain.Layout, error) {
	ctx, span := c.tracer.Start(ctx, "rl.suggest_layout", trace.WithAttributes(
		attribute.String("diary.id", req.DiaryID),
		attribute.Int("cards", len(req.Cards)),
	))
	defer span.End()

	body := suggestRequest{
		DiaryID:         req.DiaryID,
		UserID:          req.UserID,
		SelectedCardIDs: make([]string, 0, len(req.Cards)),
	}
	for _, card := range req.Cards {
		body.SelectedCardIDs = append(body.SelectedCardIDs, card.ID)
	}

	var resp suggestResponse
	if err := c.transport.Do(ctx, http.MethodPost, pathSuggest, body, &resp); err != nil {
		return nil, c.fail(span, "suggest layout", err)
	}
	if !*resp.Success {
		msg := resp.Message
		if msg == "" {
			msg = "suggestion refused"
		}
		return nil, c.fail(span, "suggest layout", errors.New(msg))
	}

	layout := make(domain.Layout, len(resp.Layout))
	for id, p := range resp.Layout {
		layout[id] = domain.Position{Row: *p.Row, Col: *p.Col, OrderIndex: p.OrderIndex}
	}
	span.SetAttributes(attribute.Int("placed", len(layout)))
	return layout, nil
}

// SendFeedback posts one feedback record. The response body only matters
// for logging.
func (c *Client) SendFeedback(ctx context.Context, fb domain.Feedback) error {
	ctx, span := c.tracer.Start(ctx, "rl.learn_from_feedback", trace.WithAttributes(
		attribute.String("diary.id", fb.DiaryID),
		attribute.String("feedback.type", string(fb.FeedbackType)),
		attribute.Float64("layout.reward", fb.Details.LayoutReward),
	))
	defer span.End()

	var resp ackResponse
	if err := c.transport.Do(ctx, http.MethodPost, pathFeedback, fb, &resp); err != nil {
		return c.fail(span, "learn from feedback", err)
	}
	if resp.Success != nil && !*resp.Success {
		c.logger.Warn("learning service rejected feedback",
			logger.String("diary_id", fb.DiaryID),
			logger.String("message", resp.Message))
	}
	return nil
}

// BatchTrain triggers a training run.
func (c *Client) BatchTrain(ctx context.Context, req TrainRequest) (*TrainResult, error) {
	ctx, span := c.tracer.Start(ctx, "rl.batch_train")
	defer span.End()

	if err := c.transport.Validate.Struct(req); err != nil {
		return nil, domain.Invalid("episodes", err.Error())
	}

	var resp TrainResult
	if err := c.transport.Do(ctx, http.MethodPost, pathTrain, req, &resp); err != nil {
		return nil, c.fail(span, "batch train", err)
	}
	return &resp, nil
}

// LearningStatus reports the learning service state.
func (c *Client) LearningStatus(ctx context.Context) (*LearningStatus, error) {
	ctx, span := c.tracer.Start(ctx, "rl.learning_status")
	defer span.End()

	var resp statusResponse
	if err := c.transport.Do(ctx, http.MethodGet, pathStatus, nil, &resp); err != nil {
		return nil, c.fail(span, "learning status", err)
	}
	st := &LearningStatus{Mode: resp.Mode, Ready: true, Details: resp.Details}
	if resp.Ready != nil {
		st.Ready = *resp.Ready
	}
	if st.Mode == "" {
		st.Mode = "remote"
	}
	return st, nil
}

func (c *Client) fail(span trace.Span, op string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return &domain.CollaboratorError{
		Collaborator: collaborator,
		Op:           op,
		StatusCode:   clients.StatusCode(err),
		Err:          fmt.Errorf("%s: %w", op, err),
	}
}
