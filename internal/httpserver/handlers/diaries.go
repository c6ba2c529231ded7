package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/untold/internal/domain"
	"github.com/MrSnakeDoc/untold/internal/httpserver/deps"
)

type openDiaryRequest struct {
	UserID string `json:"userId" validate:"required,max=128"`
	Date   string `json:"date" validate:"required"`
}

// OpenDiary opens (or reopens) the diary of a user's day.
func OpenDiary(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req openDiaryRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, d.Logger, err)
			return
		}
		view, err := d.Diaries.Open(r.Context(), req.UserID, req.Date)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

// GetDiary returns the session view of a diary.
func GetDiary(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := d.Diaries.Get(r.Context(), chi.URLParam(r, "diaryID"))
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

type calendarEntry struct {
	ID     string             `json:"id"`
	Date   string             `json:"date"`
	Status domain.Status      `json:"status"`
	Mood   *domain.MoodVector `json:"moodVector,omitempty"`
	Emoji  string             `json:"emoji,omitempty"`
}

// ListDiaries returns a user's diaries for calendar display. Query
// parameters from and to bound the days (inclusive).
func ListDiaries(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		diaries, err := d.Diaries.List(r.Context(), chi.URLParam(r, "userID"), q.Get("from"), q.Get("to"))
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}

		out := make([]calendarEntry, 0, len(diaries))
		for _, di := range diaries {
			e := calendarEntry{ID: di.ID, Date: di.Date, Status: di.Status, Mood: di.Mood}
			if di.Finalized() && di.Mood != nil {
				e.Emoji = di.Mood.Emoji()
			}
			out = append(out, e)
		}
		writeJSON(w, http.StatusOK, map[string]any{"diaries": out})
	}
}
