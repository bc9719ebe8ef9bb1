// Package service exposes the job core's narrow surface to the HTTP layer:
// job creation with quota admission, enqueueing, and read-only status.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/queue"
	"server/internal/ratelimit"
)

// JobService coordinates the job store, the queue and admission control.
type JobService struct {
	repo   domain.JobRepository
	queue  queue.Queue
	quota  *ratelimit.QuotaTracker
	logger infra.Logger
}

func NewJobService(repo domain.JobRepository, q queue.Queue, quota *ratelimit.QuotaTracker, logger infra.Logger) *JobService {
	return &JobService{repo: repo, queue: q, quota: quota, logger: logger}
}

// CreateJobInput carries everything needed to admit and enqueue a new job.
type CreateJobInput struct {
	OwnerID        string
	Plan           domain.Plan
	Mode           domain.JobMode
	InputURL       string
	PromptOverride string
	Params         []byte
}

// CreateJob runs admission control, persists the QUEUED row and pushes the id
// onto the work queue. On quota denial nothing is created or mutated.
func (s *JobService) CreateJob(ctx context.Context, in CreateJobInput) (*domain.Job, error) {
	if !domain.ValidMode(in.Mode) {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidMode, in.Mode)
	}
	if err := s.quota.CheckAndReserve(ctx, in.OwnerID, in.Plan); err != nil {
		return nil, err
	}

	job := &domain.Job{
		ID:             uuid.NewString(),
		OwnerID:        in.OwnerID,
		Mode:           in.Mode,
		Status:         domain.JobStatusQueued,
		InputURL:       in.InputURL,
		PromptOverride: in.PromptOverride,
		PromptParams:   in.Params,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	if err := s.queue.Enqueue(ctx, job.ID); err != nil {
		// The row exists and the stale machinery cannot see a QUEUED job;
		// surface the error so the caller can retry the enqueue.
		return nil, fmt.Errorf("enqueue job %s: %w", job.ID, err)
	}

	s.logger.Info().Str("job_id", job.ID).Str("owner_id", job.OwnerID).Str("mode", string(job.Mode)).Msg("job created")
	return job, nil
}

// EnqueueNewJob pushes an already-persisted QUEUED job onto the work queue.
// Used when the HTTP layer inserts the row itself.
func (s *JobService) EnqueueNewJob(ctx context.Context, jobID string) error {
	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status != domain.JobStatusQueued {
		return fmt.Errorf("%w: job %s is %s", domain.ErrStateConflict, jobID, job.Status)
	}
	return s.queue.Enqueue(ctx, jobID)
}

// JobStatusView is the read-only projection served to polling UIs.
type JobStatusView struct {
	ID           string           `json:"id"`
	Status       domain.JobStatus `json:"status"`
	Mode         domain.JobMode   `json:"mode"`
	ResultURLs   []string         `json:"result_urls,omitempty"`
	ThumbnailURL string           `json:"thumbnail_url,omitempty"`
	ErrorMessage string           `json:"error_message,omitempty"`
	RetryCount   int              `json:"retry_count"`
	CreatedAt    time.Time        `json:"created_at"`
	StartedAt    *time.Time       `json:"started_at,omitempty"`
	CompletedAt  *time.Time       `json:"completed_at,omitempty"`
}

// GetJobStatus returns the current state of a job.
func (s *JobService) GetJobStatus(ctx context.Context, jobID string) (*JobStatusView, error) {
	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return &JobStatusView{
		ID:           job.ID,
		Status:       job.Status,
		Mode:         job.Mode,
		ResultURLs:   job.ResultURLs,
		ThumbnailURL: job.ThumbnailURL,
		ErrorMessage: job.ErrorMessage,
		RetryCount:   job.RetryCount,
		CreatedAt:    job.CreatedAt,
		StartedAt:    job.StartedAt,
		CompletedAt:  job.CompletedAt,
	}, nil
}

// CheckAndReserveQuota runs admission control without creating a job.
func (s *JobService) CheckAndReserveQuota(ctx context.Context, ownerID string, plan domain.Plan) error {
	return s.quota.CheckAndReserve(ctx, ownerID, plan)
}

// UsageStats reports the owner's quota consumption.
func (s *JobService) UsageStats(ctx context.Context, ownerID string, plan domain.Plan) (ratelimit.UsageStats, error) {
	return s.quota.Stats(ctx, ownerID, plan)
}
