package handlers

import (
	"net/http"
	"strconv"

	"github.com/MrSnakeDoc/untold/internal/clients/rl"
	"github.com/MrSnakeDoc/untold/internal/domain"
	"github.com/MrSnakeDoc/untold/internal/httpserver/deps"
	"github.com/MrSnakeDoc/untold/internal/logger"
)

// LearningStatus proxies the learning service status.
func LearningStatus(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := d.Learner.LearningStatus(r.Context())
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

type batchTrainRequest struct {
	UserID   string `json:"userId" validate:"max=128"`
	Episodes int    `json:"episodes" validate:"gte=0,lte=100000"`
}

// BatchTrain asks the learning service to train on logged feedback.
func BatchTrain(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req batchTrainRequest
		if r.ContentLength != 0 {
			if err := decodeJSON(w, r, &req); err != nil {
				writeError(w, d.Logger, err)
				return
			}
		}

		res, err := d.Learner.BatchTrain(r.Context(), rl.TrainRequest{UserID: req.UserID, Episodes: req.Episodes})
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		d.Logger.Info("batch training requested",
			logger.String("user_id", req.UserID),
			logger.Int("episodes", req.Episodes),
			logger.Bool("success", res.Success))
		writeJSON(w, http.StatusOK, res)
	}
}

// FailedFeedback lists feedback the dispatcher could not deliver.
func FailedFeedback(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.DeadLetters == nil {
			writeJSON(w, http.StatusOK, map[string]any{"items": []any{}, "enabled": false})
			return
		}

		limit := int64(50)
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || n <= 0 {
				writeError(w, d.Logger, domain.Invalid("limit", "must be a positive integer"))
				return
			}
			limit = n
		}

		items, err := d.DeadLetters.ListFailedFeedback(r.Context(), limit)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "enabled": true})
	}
}
