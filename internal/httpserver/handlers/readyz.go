package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/untold/internal/httpserver/deps"
	"github.com/MrSnakeDoc/untold/internal/logger"
)

type readyzResponse struct {
	Ready bool   `json:"ready"`
	Error string `json:"error,omitempty"`
}

// Readyz reports ready once the durable store answers a ping. Redis and
// the learning service are optional and never fail readiness.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.Database == nil {
			writeJSON(w, http.StatusServiceUnavailable, readyzResponse{Error: "database not initialized"})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := d.Database.Ping(ctx); err != nil {
			d.Logger.Warn("readiness check failed", logger.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, readyzResponse{Error: "database unreachable"})
			return
		}
		writeJSON(w, http.StatusOK, readyzResponse{Ready: true})
	}
}
