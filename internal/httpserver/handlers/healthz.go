package handlers

import (
	"net/http"
	"time"

	"github.com/MrSnakeDoc/untold/internal/httpserver/deps"
)

type buildInfo struct {
	Version   string `json:"version,omitempty"`
	Commit    string `json:"commit,omitempty"`
	BuildDate string `json:"build_date,omitempty"`
	GoVersion string `json:"go_version,omitempty"`
}

type healthzResponse struct {
	Status        string    `json:"status"`
	UptimeSeconds float64   `json:"uptime_seconds"`
	Learner       string    `json:"learner,omitempty"`
	LiveSessions  int       `json:"live_sessions"`
	Build         buildInfo `json:"build"`
}

// Healthz reports liveness only; it never touches a backing service.
func Healthz(d deps.Deps) http.HandlerFunc {
	build := buildInfo{
		Version:   d.Version,
		Commit:    d.Commit,
		BuildDate: d.BuildDate,
		GoVersion: d.GoVersion,
	}
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthzResponse{
			Status:        "ok",
			UptimeSeconds: now(d).Sub(d.StartTime).Seconds(),
			Learner:       d.LearnerMode,
			Build:         build,
		}
		if d.MemoryIndex != nil {
			resp.LiveSessions = d.MemoryIndex.SessionCount()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func now(d deps.Deps) time.Time {
	if d.TimeNow != nil {
		return d.TimeNow()
	}
	return time.Now()
}
