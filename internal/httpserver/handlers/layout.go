package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/untold/internal/domain"
	"github.com/MrSnakeDoc/untold/internal/httpserver/deps"
)

type layoutResponse struct {
	Which  domain.Which  `json:"which"`
	Layout domain.Layout `json:"layout"`
}

// Suggest requests an AI layout for the diary cards.
func Suggest(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		layout, err := d.Diaries.Suggest(r.Context(), chi.URLParam(r, "diaryID"))
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, layoutResponse{Which: domain.WhichAI, Layout: layout})
	}
}

type moveRequest struct {
	CardID string `json:"cardId" validate:"required"`
	Row    *int   `json:"row" validate:"required"`
	Col    *int   `json:"col" validate:"required"`
}

// MoveCard places a card in the user layout.
func MoveCard(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req moveRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, d.Logger, err)
			return
		}
		res, err := d.Diaries.Move(r.Context(), chi.URLParam(r, "diaryID"), req.CardID, *req.Row, *req.Col)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// GetLayout exports the layout selected by ?which=ai|user (default user).
func GetLayout(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		which, err := domain.ParseWhich(r.URL.Query().Get("which"))
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		layout, err := d.Diaries.Layout(r.Context(), chi.URLParam(r, "diaryID"), which)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, layoutResponse{Which: which, Layout: layout})
	}
}

// GetReward previews the reward of the current layouts.
func GetReward(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reward, err := d.Diaries.Reward(r.Context(), chi.URLParam(r, "diaryID"))
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, reward)
	}
}
