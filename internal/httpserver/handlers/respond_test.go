package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MrSnakeDoc/untold/internal/domain"
	"github.com/MrSnakeDoc/untold/internal/logger"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", domain.Invalid("date", "expected YYYY-MM-DD"), http.StatusBadRequest, "validation_error"},
		{"wrapped diary not found", fmt.Errorf("load: %w", domain.ErrDiaryNotFound), http.StatusNotFound, "diary_not_found"},
		{"card not found", domain.ErrCardNotFound, http.StatusNotFound, "card_not_found"},
		{"locked", domain.ErrCardLocked, http.StatusConflict, "card_locked"},
		{"stale", domain.ErrStaleSuggestion, http.StatusConflict, "stale_suggestion"},
		{"collaborator", domain.Unavailable("rl", "suggest", errors.New("timeout")), http.StatusBadGateway, "collaborator_unavailable"},
		{"other", errors.New("disk on fire"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code := classify(tt.err)
			if status != tt.status || code != tt.code {
				t.Errorf("classify() = (%d, %q), want (%d, %q)", status, code, tt.status, tt.code)
			}
		})
	}
}

func TestWriteErrorBody(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, logger.New("error", false), domain.ErrCardLocked)

	var body errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusConflict || body.Error != "card_locked" || body.Message == "" {
		t.Errorf("got %d %+v", rec.Code, body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantField string
	}{
		{"valid", `{"cardId":"c1","row":0,"col":3}`, ""},
		{"empty body", ``, "body"},
		{"malformed", `{"cardId":`, "body"},
		{"unknown field", `{"cardId":"c1","row":0,"col":0,"x":1}`, "body"},
		{"missing required", `{"row":0,"col":0}`, "cardId"},
		{"missing pointer", `{"cardId":"c1","row":0}`, "col"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(tt.body))
			var v moveRequest
			err := decodeJSON(httptest.NewRecorder(), req, &v)

			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("decodeJSON() error = %v", err)
				}
				return
			}
			var verr *domain.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error = %v, want ValidationError", err)
			}
			if verr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", verr.Field, tt.wantField)
			}
		})
	}
}
