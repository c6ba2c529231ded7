package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/untold/internal/httpserver/deps"
)

type finalizeRequest struct {
	FinalText string `json:"finalText" validate:"max=100000"`
}

// Finalize saves the narrative text and finalizes the diary. Empty text is
// rejected by the session.
func Finalize(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req finalizeRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, d.Logger, err)
			return
		}
		res, err := d.Diaries.Finalize(r.Context(), chi.URLParam(r, "diaryID"), req.FinalText)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}
