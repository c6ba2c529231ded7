package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/untold/internal/httpserver/deps"
	"github.com/MrSnakeDoc/untold/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/untold/internal/httpserver/mw"
)

func init() { Register("ops", registerOps) }

// registerOps mounts the operational endpoints. Only /healthz is public.
func registerOps(r chi.Router, d deps.Deps) {
	r.Get("/healthz", handlers.Healthz(d))

	internal := r.With(mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger))
	internal.Get("/readyz", handlers.Readyz(d))
	internal.Get("/infra", handlers.Infra(d))
	internal.Get("/feedback/failed", handlers.FailedFeedback(d))
	internal.With(mw.EnforceHost(d.AllowedHosts, d.Logger)).Post("/reload", handlers.Reload(d))
}
