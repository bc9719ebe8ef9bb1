package handlers

import (
	"encoding/json"
	"net/http"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/service"
)

// App is the handler container. Identity arrives via the X-User-ID and
// X-User-Plan headers set by the edge proxy after authentication.
type App struct {
	Jobs   *service.JobService
	Logger infra.Logger
}

func NewApp(jobs *service.JobService, logger infra.Logger) *App {
	return &App{Jobs: jobs, Logger: logger}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, slug, msg string) {
	a.json(w, code, map[string]string{"error": slug, "message": msg})
}

func (a *App) currentUserID(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}

func (a *App) currentPlan(r *http.Request) domain.Plan {
	if p := r.Header.Get("X-User-Plan"); p != "" {
		return domain.Plan(p)
	}
	return domain.PlanFree
}
