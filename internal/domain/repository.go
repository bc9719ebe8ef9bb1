package domain

import (
	"context"
	"time"
)

// JobRepository defines persistence for job entities. Every status mutation
// is a conditional update on the current status so that the worker loop and
// the stale-job monitor cannot overwrite each other's transitions;
// implementations return ErrStateConflict when the expected status no longer
// holds.
type JobRepository interface {
	Create(ctx context.Context, job *Job) error
	GetByID(ctx context.Context, jobID string) (*Job, error)

	// Claim moves a QUEUED job to PROCESSING and stamps started_at.
	Claim(ctx context.Context, jobID string, now time.Time) (*Job, error)

	// SetProviderJobID records the external generation service's handle.
	SetProviderJobID(ctx context.Context, jobID, providerJobID string) error

	// Complete moves a PROCESSING job to COMPLETED with its result references.
	Complete(ctx context.Context, jobID string, resultURLs []string, thumbnailURL string, now time.Time) error

	// Fail moves a PROCESSING job to FAILED with an error message.
	Fail(ctx context.Context, jobID, errMsg string, now time.Time) error

	// Requeue moves a stale PROCESSING job back to QUEUED, increments
	// retry_count and clears started_at.
	Requeue(ctx context.Context, jobID string, now time.Time) error

	// ListStale returns jobs PROCESSING since before the cutoff.
	ListStale(ctx context.Context, cutoff time.Time) ([]Job, error)

	// CountProcessing returns the ground-truth PROCESSING count for an owner.
	CountProcessing(ctx context.Context, ownerID string) (int, error)

	// OwnersWithActivity returns every owner with a job touched since the
	// given time. The counter recovery task resets counters for all of them,
	// including owners whose true PROCESSING count is zero.
	OwnersWithActivity(ctx context.Context, since time.Time) ([]string, error)
}
