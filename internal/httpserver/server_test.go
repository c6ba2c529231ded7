package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/MrSnakeDoc/untold/internal/clients/rl"
	"github.com/MrSnakeDoc/untold/internal/config"
	"github.com/MrSnakeDoc/untold/internal/diary"
	"github.com/MrSnakeDoc/untold/internal/domain"
	"github.com/MrSnakeDoc/untold/internal/httpserver/deps"
	"github.com/MrSnakeDoc/untold/internal/index"
	"github.com/MrSnakeDoc/untold/internal/logger"
	"github.com/MrSnakeDoc/untold/internal/session"
	sqlstore "github.com/MrSnakeDoc/untold/internal/store/sql"
)

type feedbackSink struct {
	mu    sync.Mutex
	items []domain.Feedback
}

func (f *feedbackSink) Enqueue(fb domain.Feedback) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, fb)
	return true
}

func newTestServer(t *testing.T) (*httptest.Server, *feedbackSink) {
	t.Helper()
	log := logger.New("error", false)

	store, err := sqlstore.Open(sqlstore.Options{Driver: sqlstore.DriverSQLite, DSN: ":memory:"}, log)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	sink := &feedbackSink{}
	learner := rl.NewLocal(log)
	idx := index.NewMemoryIndex()
	manager := diary.NewManager(store, nil, idx, session.Deps{
		Suggester: learner,
		Feedback:  sink,
		Now:       func() time.Time { return time.Date(2024, 5, 1, 21, 0, 0, 0, time.UTC) },
	}, log)

	cfg := &config.Config{RequestTimeout: 5 * time.Second}
	h := NewRouter(cfg, log, deps.Deps{
		Logger:      log,
		StartTime:   time.Now(),
		Diaries:     manager,
		Learner:     learner,
		LearnerMode: "local-heuristic",
		Database:    store,
		MemoryIndex: idx,
	})

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv, sink
}

func call(t *testing.T, srv *httptest.Server, method, path string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequestWithContext(context.Background(), method, srv.URL+path, &buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if out != nil && resp.StatusCode < 300 && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func TestDiaryFlowOverHTTP(t *testing.T) {
	srv, sink := newTestServer(t)

	var view session.View
	if code := call(t, srv, http.MethodPost, "/api/diaries", map[string]string{"userId": "u1", "date": "2024-05-01"}, &view); code != http.StatusOK {
		t.Fatalf("open: status = %d", code)
	}
	id := view.Diary.ID

	var widget, photo domain.Card
	if code := call(t, srv, http.MethodPost, "/api/diaries/"+id+"/cards", map[string]string{"sourceType": "widget", "content": "weather: sunny"}, &widget); code != http.StatusCreated {
		t.Fatalf("add widget card: status = %d", code)
	}
	if code := call(t, srv, http.MethodPost, "/api/diaries/"+id+"/cards", map[string]string{"sourceType": "image", "imageUrl": "https://img.example/1.jpg"}, &photo); code != http.StatusCreated {
		t.Fatalf("add photo card: status = %d", code)
	}

	var suggested struct {
		Which  domain.Which  `json:"which"`
		Layout domain.Layout `json:"layout"`
	}
	if code := call(t, srv, http.MethodPost, "/api/diaries/"+id+"/suggest", nil, &suggested); code != http.StatusOK {
		t.Fatalf("suggest: status = %d", code)
	}
	if got := suggested.Layout[widget.ID]; got.Row != 0 || got.Col != 0 {
		t.Errorf("widget placed at %+v, want row 0 col 0", got)
	}

	var moved diary.MoveResult
	move := map[string]any{"cardId": photo.ID, "row": 2, "col": 3}
	if code := call(t, srv, http.MethodPost, "/api/diaries/"+id+"/moves", move, &moved); code != http.StatusOK {
		t.Fatalf("move: status = %d", code)
	}
	if moved.State != session.StateLayoutEdited {
		t.Errorf("state = %q, want %q", moved.State, session.StateLayoutEdited)
	}

	var reward domain.RewardResult
	if code := call(t, srv, http.MethodGet, "/api/diaries/"+id+"/reward", nil, &reward); code != http.StatusOK {
		t.Fatalf("reward: status = %d", code)
	}
	if reward.Branch != domain.BranchEdited {
		t.Errorf("branch = %q, want edited", reward.Branch)
	}

	var fin session.FinalizeResult
	if code := call(t, srv, http.MethodPost, "/api/diaries/"+id+"/finalize", map[string]string{"finalText": "a good day"}, &fin); code != http.StatusOK {
		t.Fatalf("finalize: status = %d", code)
	}
	if !fin.Diary.Finalized() {
		t.Errorf("status = %q, want finalized", fin.Diary.Status)
	}
	if len(sink.items) != 1 {
		t.Errorf("feedback enqueued %d times, want 1", len(sink.items))
	}

	if code := call(t, srv, http.MethodDelete, "/api/diaries/"+id+"/cards/"+photo.ID, nil, nil); code != http.StatusConflict {
		t.Errorf("delete after finalize: status = %d, want 409", code)
	}

	var listing struct {
		Diaries []struct {
			ID    string `json:"id"`
			Emoji string `json:"emoji"`
		} `json:"diaries"`
	}
	if code := call(t, srv, http.MethodGet, "/api/users/u1/diaries?from=2024-05-01&to=2024-05-31", nil, &listing); code != http.StatusOK {
		t.Fatalf("list: status = %d", code)
	}
	if len(listing.Diaries) != 1 || listing.Diaries[0].ID != id || listing.Diaries[0].Emoji == "" {
		t.Errorf("listing = %+v", listing.Diaries)
	}
}

func TestErrorStatuses(t *testing.T) {
	srv, _ := newTestServer(t)

	var view session.View
	call(t, srv, http.MethodPost, "/api/diaries", map[string]string{"userId": "u1", "date": "2024-05-01"}, &view)
	id := view.Diary.ID

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"bad date", http.MethodPost, "/api/diaries", map[string]string{"userId": "u1", "date": "01/05/2024"}, http.StatusBadRequest},
		{"missing user", http.MethodPost, "/api/diaries", map[string]string{"date": "2024-05-01"}, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/api/diaries", map[string]string{"userId": "u1", "date": "2024-05-01", "mood": "x"}, http.StatusBadRequest},
		{"unknown diary", http.MethodGet, "/api/diaries/nope", nil, http.StatusNotFound},
		{"unknown source", http.MethodPost, "/api/diaries/" + id + "/cards", map[string]string{"sourceType": "fax"}, http.StatusBadRequest},
		{"unknown card", http.MethodDelete, "/api/diaries/" + id + "/cards/nope", nil, http.StatusNotFound},
		{"move out of bounds", http.MethodPost, "/api/diaries/" + id + "/moves", map[string]any{"cardId": "x", "row": 9, "col": 0}, http.StatusBadRequest},
		{"move without col", http.MethodPost, "/api/diaries/" + id + "/moves", map[string]any{"cardId": "x", "row": 0}, http.StatusBadRequest},
		{"bad which", http.MethodGet, "/api/diaries/" + id + "/layout?which=both", nil, http.StatusBadRequest},
		{"empty final text", http.MethodPost, "/api/diaries/" + id + "/finalize", map[string]string{"finalText": "  "}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := call(t, srv, tt.method, tt.path, tt.body, nil); got != tt.want {
				t.Errorf("status = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestOpsEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/healthz", http.StatusOK},
		{http.MethodGet, "/readyz", http.StatusOK},
		{http.MethodGet, "/infra", http.StatusOK},
		{http.MethodPost, "/reload", http.StatusNotFound},
		{http.MethodGet, "/feedback/failed", http.StatusOK},
		{http.MethodGet, "/api/learning/status", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			if got := call(t, srv, tt.method, tt.path, nil, nil); got != tt.want {
				t.Errorf("status = %d, want %d", got, tt.want)
			}
		})
	}
}
