package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/untold/internal/domain"
	"github.com/MrSnakeDoc/untold/internal/httpserver/deps"
	"github.com/MrSnakeDoc/untold/internal/logger"
)

type addCardRequest struct {
	SourceType string `json:"sourceType" validate:"required"`
	Category   string `json:"category" validate:"max=64"`
	Content    string `json:"content" validate:"max=20000"`
	ImageURL   string `json:"imageUrl" validate:"omitempty,url"`
	Widget     string `json:"widget" validate:"max=64"`
}

// AddCard adds a card to a diary.
func AddCard(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req addCardRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, d.Logger, err)
			return
		}
		src, err := domain.ParseSourceType(req.SourceType)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}

		card, err := d.Diaries.AddCard(r.Context(), chi.URLParam(r, "diaryID"), domain.CardInput{
			SourceType: src,
			Category:   req.Category,
			Content:    req.Content,
			ImageURL:   req.ImageURL,
			Widget:     req.Widget,
		})
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, card)
	}
}

// DeleteCard removes a card from a diary that is not finalized.
func DeleteCard(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		diaryID, cardID := chi.URLParam(r, "diaryID"), chi.URLParam(r, "cardID")
		if err := d.Diaries.DeleteCard(r.Context(), diaryID, cardID); err != nil {
			writeError(w, d.Logger, err)
			return
		}
		d.Logger.Debug("card deleted",
			logger.String("diary_id", diaryID),
			logger.String("card_id", cardID))
		w.WriteHeader(http.StatusNoContent)
	}
}
