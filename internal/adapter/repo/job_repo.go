package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// JobRepositoryPG implements domain.JobRepository on PostgreSQL. Every status
// mutation carries a status predicate so concurrent actors (worker loops and
// the stale-job monitor) cannot overwrite each other's transitions.
type JobRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewJobRepository creates a new job repository backed by PostgreSQL.
func NewJobRepository(pool *pgxpool.Pool) *JobRepositoryPG {
	return &JobRepositoryPG{pool: pool}
}

const jobColumns = `id, owner_id, mode, status, input_url, prompt_override, prompt_params,
result_urls, thumbnail_url, provider_job_id, retry_count, error_message,
created_at, started_at, completed_at, updated_at`

// Create inserts a new job record in the QUEUED state.
func (r *JobRepositoryPG) Create(ctx context.Context, job *domain.Job) error {
	query := `
INSERT INTO jobs (id, owner_id, mode, status, input_url, prompt_override, prompt_params, retry_count)
VALUES ($1, $2, $3, $4, $5, $6, $7, 0);
`
	_, err := r.pool.Exec(ctx, query,
		job.ID,
		job.OwnerID,
		job.Mode,
		domain.JobStatusQueued,
		job.InputURL,
		job.PromptOverride,
		nullableBytes(job.PromptParams),
	)
	return err
}

// GetByID fetches a job by its identifier.
func (r *JobRepositoryPG) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	query := `
SELECT ` + jobColumns + `
FROM jobs
WHERE id = $1;
`
	job, err := scanJob(r.pool.QueryRow(ctx, query, jobID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

// Claim moves a QUEUED job to PROCESSING and stamps started_at. The status
// predicate makes the claim a compare-and-set: a duplicate delivery or an
// already-terminal job yields ErrStateConflict.
func (r *JobRepositoryPG) Claim(ctx context.Context, jobID string, now time.Time) (*domain.Job, error) {
	query := `
UPDATE jobs
SET status = $2, started_at = $3, updated_at = $3
WHERE id = $1 AND status = $4
RETURNING ` + jobColumns + `;
`
	job, err := scanJob(r.pool.QueryRow(ctx, query, jobID, domain.JobStatusProcessing, now, domain.JobStatusQueued))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrStateConflict
		}
		return nil, err
	}
	return job, nil
}

// SetProviderJobID records the external generation service's handle.
func (r *JobRepositoryPG) SetProviderJobID(ctx context.Context, jobID, providerJobID string) error {
	query := `
UPDATE jobs
SET provider_job_id = $2, updated_at = NOW()
WHERE id = $1;
`
	_, err := r.pool.Exec(ctx, query, jobID, providerJobID)
	return err
}

// Complete moves a PROCESSING job to COMPLETED with its result references.
func (r *JobRepositoryPG) Complete(ctx context.Context, jobID string, resultURLs []string, thumbnailURL string, now time.Time) error {
	query := `
UPDATE jobs
SET status = $2, result_urls = $3, thumbnail_url = $4, completed_at = $5, updated_at = $5
WHERE id = $1 AND status = $6;
`
	tag, err := r.pool.Exec(ctx, query, jobID, domain.JobStatusCompleted, resultURLs, thumbnailURL, now, domain.JobStatusProcessing)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStateConflict
	}
	return nil
}

// Fail moves a PROCESSING job to FAILED with an error message.
func (r *JobRepositoryPG) Fail(ctx context.Context, jobID, errMsg string, now time.Time) error {
	query := `
UPDATE jobs
SET status = $2, error_message = $3, completed_at = $4, updated_at = $4
WHERE id = $1 AND status = $5;
`
	tag, err := r.pool.Exec(ctx, query, jobID, domain.JobStatusFailed, errMsg, now, domain.JobStatusProcessing)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStateConflict
	}
	return nil
}

// Requeue moves a stale PROCESSING job back to QUEUED, increments retry_count
// and clears started_at so the next attempt gets a fresh staleness clock.
func (r *JobRepositoryPG) Requeue(ctx context.Context, jobID string, now time.Time) error {
	query := `
UPDATE jobs
SET status = $2, retry_count = retry_count + 1, started_at = NULL, updated_at = $3
WHERE id = $1 AND status = $4;
`
	tag, err := r.pool.Exec(ctx, query, jobID, domain.JobStatusQueued, now, domain.JobStatusProcessing)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStateConflict
	}
	return nil
}

// ListStale returns jobs PROCESSING since before the cutoff.
func (r *JobRepositoryPG) ListStale(ctx context.Context, cutoff time.Time) ([]domain.Job, error) {
	query := `
SELECT ` + jobColumns + `
FROM jobs
WHERE status = $1 AND started_at IS NOT NULL AND started_at < $2
ORDER BY started_at ASC;
`
	rows, err := r.pool.Query(ctx, query, domain.JobStatusProcessing, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// CountProcessing returns the ground-truth PROCESSING count for an owner.
func (r *JobRepositoryPG) CountProcessing(ctx context.Context, ownerID string) (int, error) {
	query := `
SELECT COUNT(*)
FROM jobs
WHERE owner_id = $1 AND status = $2;
`
	var n int
	if err := r.pool.QueryRow(ctx, query, ownerID, domain.JobStatusProcessing).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// OwnersWithActivity returns every owner with a job touched since the given
// time.
func (r *JobRepositoryPG) OwnersWithActivity(ctx context.Context, since time.Time) ([]string, error) {
	query := `
SELECT DISTINCT owner_id
FROM jobs
WHERE updated_at >= $1;
`
	rows, err := r.pool.Query(ctx, query, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var owners []string
	for rows.Next() {
		var owner string
		if err := rows.Scan(&owner); err != nil {
			return nil, err
		}
		owners = append(owners, owner)
	}
	return owners, rows.Err()
}

func scanJob(row pgx.Row) (*domain.Job, error) {
	var job domain.Job
	if err := row.Scan(
		&job.ID,
		&job.OwnerID,
		&job.Mode,
		&job.Status,
		&job.InputURL,
		&job.PromptOverride,
		&job.PromptParams,
		&job.ResultURLs,
		&job.ThumbnailURL,
		&job.ProviderJobID,
		&job.RetryCount,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.StartedAt,
		&job.CompletedAt,
		&job.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &job, nil
}

func nullableBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}

var _ domain.JobRepository = (*JobRepositoryPG)(nil)
