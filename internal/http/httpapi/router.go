package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"server/internal/http/handlers"
	"server/internal/infra"
	"server/internal/middleware"
)

func NewRouter(app *handlers.App, cfg *infra.Config, logger infra.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(logger),
		middleware.CORS(cfg.CORSOrigins),
	)

	r.Get("/healthz", app.Health)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/jobs", app.CreateJob)
		r.Get("/jobs/{job_id}", app.JobStatus)
		r.Get("/usage", app.Usage)
	})

	return r
}
