package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/untold/internal/feedback"
	"github.com/MrSnakeDoc/untold/internal/httpserver/deps"
)

type componentStatus struct {
	OK             bool            `json:"ok"`
	WidgetsLoaded  *int            `json:"widgets_loaded,omitempty"`
	SessionsActive *int            `json:"sessions_active,omitempty"`
	LastReload     string          `json:"last_reload,omitempty"`
	Mode           string          `json:"mode,omitempty"`
	Impact         string          `json:"impact,omitempty"`
	Error          string          `json:"error,omitempty"`
	Queue          *feedback.Stats `json:"queue,omitempty"`
}

type infraResponse struct {
	Mode       string                     `json:"mode"`
	Components map[string]componentStatus `json:"components"`
}

// Infra reports the state of every component the engine depends on.
func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		components := map[string]componentStatus{
			"database": checkDatabase(ctx, d),
			"redis":    checkRedis(ctx, d),
			"learner": {
				OK:   d.Learner != nil,
				Mode: d.LearnerMode,
			},
		}
		if d.MemoryIndex != nil {
			components["widgets"] = widgetStatus(d)
			sessions := d.MemoryIndex.SessionCount()
			components["sessions"] = componentStatus{OK: true, SessionsActive: &sessions}
		}
		if d.Feedback != nil {
			st := d.Feedback.Stats()
			components["feedback"] = componentStatus{OK: st.Dropped == 0, Queue: &st}
		}

		writeJSON(w, http.StatusOK, infraResponse{
			Mode:       determineMode(components),
			Components: components,
		})
	}
}

// determineMode is "critical" without a database, "degraded" when an
// optional component is down and "optimal" otherwise.
func determineMode(components map[string]componentStatus) string {
	if db, ok := components["database"]; ok && !db.OK {
		return "critical"
	}
	for name, c := range components {
		if name == "widgets" && c.Mode == "disabled" {
			continue
		}
		if !c.OK {
			return "degraded"
		}
	}
	return "optimal"
}

func widgetStatus(d deps.Deps) componentStatus {
	count := d.MemoryIndex.WidgetCount()
	lastReload := d.MemoryIndex.GetLastReload()
	lastReloadStr := "never"
	if !lastReload.IsZero() {
		lastReloadStr = lastReload.Format("2006-01-02 15:04:05")
	}
	if d.WidgetFile == "" {
		return componentStatus{OK: true, WidgetsLoaded: &count, LastReload: lastReloadStr, Mode: "disabled", Impact: "widget-names-unchecked"}
	}
	return componentStatus{OK: count > 0, WidgetsLoaded: &count, LastReload: lastReloadStr, Mode: "catalog"}
}

func checkDatabase(ctx context.Context, d deps.Deps) componentStatus {
	if d.Database == nil {
		return componentStatus{OK: false, Error: "not initialized"}
	}
	if err := d.Database.Ping(ctx); err != nil {
		return componentStatus{OK: false, Error: err.Error()}
	}
	return componentStatus{OK: true}
}

func checkRedis(ctx context.Context, d deps.Deps) componentStatus {
	if d.RedisClient == nil {
		return componentStatus{
			OK:     false,
			Mode:   "disabled",
			Impact: "sessions-not-cached",
			Error:  "client not initialized",
		}
	}

	if err := d.RedisClient.Ping(ctx).Err(); err != nil {
		return componentStatus{
			OK:     false,
			Mode:   "degraded",
			Impact: "sessions-not-cached",
			Error:  "timeout",
		}
	}

	return componentStatus{
		OK:     true,
		Mode:   "optimal",
		Impact: "sessions-cached",
	}
}
