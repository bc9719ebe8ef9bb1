package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"server/internal/domain"
	"server/internal/service"
)

type createJobRequest struct {
	Mode           string          `json:"mode"`
	InputURL       string          `json:"input_url"`
	PromptOverride string          `json:"prompt_override,omitempty"`
	Params         json.RawMessage `json:"params,omitempty"`
}

type createJobResponse struct {
	JobID  string           `json:"job_id"`
	Status domain.JobStatus `json:"status"`
}

func (a *App) CreateJob(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	job, err := a.Jobs.CreateJob(r.Context(), service.CreateJobInput{
		OwnerID:        userID,
		Plan:           a.currentPlan(r),
		Mode:           domain.JobMode(req.Mode),
		InputURL:       req.InputURL,
		PromptOverride: req.PromptOverride,
		Params:         req.Params,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidMode):
			a.error(w, http.StatusBadRequest, "bad_request", "unsupported generation mode")
		case errors.Is(err, domain.ErrQuotaExceeded):
			a.error(w, http.StatusForbidden, "quota_exceeded", "plan quota exceeded")
		case errors.Is(err, domain.ErrConcurrencyLimit):
			a.error(w, http.StatusTooManyRequests, "concurrency_limit", "too many jobs in flight")
		default:
			a.Logger.Error().Err(err).Str("user_id", userID).Msg("create job failed")
			a.error(w, http.StatusInternalServerError, "internal", "failed to queue job")
		}
		return
	}
	a.json(w, http.StatusAccepted, createJobResponse{JobID: job.ID, Status: job.Status})
}

func (a *App) JobStatus(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job_id required")
		return
	}

	view, err := a.Jobs.GetJobStatus(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("job status failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load job")
		return
	}
	a.json(w, http.StatusOK, view)
}

func (a *App) Usage(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}

	stats, err := a.Jobs.UsageStats(r.Context(), userID, a.currentPlan(r))
	if err != nil {
		a.Logger.Error().Err(err).Str("user_id", userID).Msg("usage stats failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load usage")
		return
	}
	a.json(w, http.StatusOK, stats)
}
