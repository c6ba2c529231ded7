package sentiment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MrSnakeDoc/untold/internal/domain"
)

func TestAnalyze(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    domain.MoodVector
		wantErr bool
	}{
		{
			name:   "positive label",
			status: http.StatusOK,
			body:   `{"label":"positive"}`,
			want:   domain.MoodVector{Valence: 0.7, Arousal: 0.4},
		},
		{
			name:   "negative label",
			status: http.StatusOK,
			body:   `{"label":"negative"}`,
			want:   domain.MoodVector{Valence: -0.5, Arousal: 0.3},
		},
		{
			name:   "vector wins over label",
			status: http.StatusOK,
			body:   `{"label":"positive","valence":-0.2,"arousal":0.9,"emotionLabel":"anxious"}`,
			want:   domain.MoodVector{Valence: -0.2, Arousal: 0.9},
		},
		{
			name:   "vector used despite unknown label",
			status: http.StatusOK,
			body:   `{"label":"ecstatic","valence":0.3,"arousal":0.6}`,
			want:   domain.MoodVector{Valence: 0.3, Arousal: 0.6},
		},
		{
			name:   "vector used despite error label",
			status: http.StatusOK,
			body:   `{"label":"error","valence":-0.1,"arousal":0.2}`,
			want:   domain.MoodVector{Valence: -0.1, Arousal: 0.2},
		},
		{
			name:    "half a vector",
			status:  http.StatusOK,
			body:    `{"label":"positive","valence":0.3}`,
			wantErr: true,
		},
		{
			name:   "vector is clamped",
			status: http.StatusOK,
			body:   `{"valence":2.5,"arousal":-1.5}`,
			want:   domain.MoodVector{Valence: 1, Arousal: -1},
		},
		{
			name:    "error label",
			status:  http.StatusOK,
			body:    `{"label":"error"}`,
			wantErr: true,
		},
		{
			name:    "unknown label",
			status:  http.StatusOK,
			body:    `{"label":"ecstatic"}`,
			wantErr: true,
		},
		{
			name:    "empty body",
			status:  http.StatusOK,
			body:    `{}`,
			wantErr: true,
		},
		{
			name:    "server down",
			status:  http.StatusBadGateway,
			body:    `bad gateway`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				var req request
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
					t.Errorf("bad request body: %v %+v", err, req)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			got, err := New(srv.URL, time.Second).Analyze(context.Background(), "오늘은 맑음")
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				if got != domain.NeutralMood {
					t.Errorf("mood on error = %+v, want neutral", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Analyze() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Analyze() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestAnalyzeUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url, 200*time.Millisecond).Analyze(context.Background(), "text")
	if !errors.Is(err, domain.ErrCollaboratorUnavailable) {
		t.Errorf("error = %v, want collaborator unavailable", err)
	}
}
