package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/untold/internal/httpserver/deps"
	"github.com/MrSnakeDoc/untold/internal/logger"
)

type reloadResponse struct {
	Status string `json:"status"`
}

// Reload asks the widget reloader to re-read the settings file. The
// trigger channel holds one pending request; extra requests get 429.
func Reload(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.ReloadTrigger == nil {
			writeJSON(w, http.StatusNotFound, errorResponse{
				Error:   "reload_disabled",
				Message: "no widget settings file configured",
			})
			return
		}

		select {
		case d.ReloadTrigger <- struct{}{}:
			d.Logger.Info("widget reload requested",
				logger.String("remote_ip", r.RemoteAddr),
				logger.String("file", d.WidgetFile))
			writeJSON(w, http.StatusAccepted, reloadResponse{Status: "queued"})
		default:
			d.Logger.Warn("widget reload already pending",
				logger.String("remote_ip", r.RemoteAddr))
			writeJSON(w, http.StatusTooManyRequests, errorResponse{
				Error:   "reload_pending",
				Message: "a widget reload is already queued",
			})
		}
	}
}
