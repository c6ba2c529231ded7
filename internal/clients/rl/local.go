package rl

import (
	"context"
	"encoding/json"

	"github.com/MrSnakeDoc/untold/internal/domain"
	"github.com/MrSnakeDoc/untold/internal/logger"
	"github.com/MrSnakeDoc/untold/internal/session"
)

// Local is a Learner that needs no remote service. It suggests a layout by
// source: each non-empty group (widget, chrome, image) takes the next row,
// cards fill columns left to right in the order they were added. Cards that
// do not fit stay unplaced. Feedback is only logged.
type Local struct {
	logger logger.Logger
}

// NewLocal returns the heuristic learner.
func NewLocal(log logger.Logger) *Local {
	return &Local{logger: log}
}

// SuggestLayout implements session.Suggester.
func (l *Local) SuggestLayout(_ context.Context, req session.SuggestRequest) (domain.Layout, error) {
	groups := make(map[domain.SourceType][]*domain.Card, len(domain.SourceTypes))
	for _, c := range req.Cards {
		groups[c.SourceType] = append(groups[c.SourceType], c)
	}

	layout := domain.Layout{}
	row := 0
	for _, src := range domain.SourceTypes {
		cards := groups[src]
		if len(cards) == 0 {
			continue
		}
		if row >= domain.GridRows {
			break
		}
		for col, c := range cards {
			if col >= domain.GridCols {
				break
			}
			layout[c.ID] = domain.Position{Row: row, Col: col, OrderIndex: col}
		}
		row++
	}
	return layout, nil
}

// SendFeedback logs the feedback at debug level.
func (l *Local) SendFeedback(_ context.Context, fb domain.Feedback) error {
	l.logger.Debug("no learning service configured, feedback not sent",
		logger.String("diary_id", fb.DiaryID),
		logger.Float64("reward", fb.Details.LayoutReward))
	return nil
}

// BatchTrain reports that training is unavailable.
func (l *Local) BatchTrain(context.Context, TrainRequest) (*TrainResult, error) {
	return &TrainResult{Success: false, Message: "no learning service configured"}, nil
}

// LearningStatus reports the heuristic mode.
func (l *Local) LearningStatus(context.Context) (*LearningStatus, error) {
	details, _ := json.Marshal(map[string]any{"rows": domain.GridRows, "cols": domain.GridCols})
	return &LearningStatus{Mode: "local-heuristic", Ready: true, Details: details}, nil
}
