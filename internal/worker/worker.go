// Package worker contains the three supervised loops of the job core: the
// worker loop draining the queue, the stale-job monitor recovering abandoned
// jobs, and the counter recovery task healing concurrency-counter drift.
// Each loop isolates per-job failures; no single job or owner can stop the
// others from making progress.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/providers/image"
	"server/internal/queue"
	"server/internal/ratelimit"
	"server/internal/storage"
)

// Options wires a Worker's collaborators.
type Options struct {
	Repo           domain.JobRepository
	Queue          queue.Queue
	Counter        *ratelimit.ConcurrencyCounter
	Generator      image.Generator
	Store          storage.Store
	Logger         infra.Logger
	DequeueTimeout time.Duration
}

// Worker drains the job queue and drives each job to a terminal or requeued
// state. Multiple instances may run concurrently; the queue's atomic pop and
// the repository's compare-and-set claim keep each job with one worker.
type Worker struct {
	repo           domain.JobRepository
	queue          queue.Queue
	counter        *ratelimit.ConcurrencyCounter
	generator      image.Generator
	store          storage.Store
	logger         infra.Logger
	dequeueTimeout time.Duration
	now            func() time.Time
}

func New(opts Options) *Worker {
	timeout := opts.DequeueTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Worker{
		repo:           opts.Repo,
		queue:          opts.Queue,
		counter:        opts.Counter,
		generator:      opts.Generator,
		store:          opts.Store,
		logger:         opts.Logger,
		dequeueTimeout: timeout,
		now:            time.Now,
	}
}

// WithClock substitutes the wall clock. Test hook.
func (w *Worker) WithClock(now func() time.Time) *Worker {
	w.now = now
	return w
}

// Run consumes the queue until the context is cancelled. The bounded dequeue
// wait keeps the loop responsive to shutdown.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info().Msg("worker: started")
	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("worker: stopping")
			return ctx.Err()
		default:
		}

		jobID, err := w.queue.Dequeue(ctx, w.dequeueTimeout)
		if err != nil {
			if errors.Is(err, queue.ErrEmpty) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.Error().Err(err).Msg("worker: dequeue failed")
			time.Sleep(time.Second)
			continue
		}

		w.Handle(ctx, jobID)
	}
}

// Handle executes one dequeued job id end to end. Exported so tests can
// drive single iterations without the loop.
func (w *Worker) Handle(ctx context.Context, jobID string) {
	job, err := w.repo.GetByID(ctx, jobID)
	if err != nil {
		w.logger.Error().Err(err).Str("job_id", jobID).Msg("worker: load job failed")
		return
	}

	// Duplicate queue entries can deliver a finished job; discard quietly.
	if job.Status.Terminal() {
		w.logger.Debug().Str("job_id", jobID).Str("status", string(job.Status)).Msg("worker: job already terminal, discarding")
		return
	}

	job, err = w.repo.Claim(ctx, jobID, w.now())
	if err != nil {
		if errors.Is(err, domain.ErrStateConflict) {
			w.logger.Debug().Str("job_id", jobID).Msg("worker: job claimed elsewhere, skipping")
			return
		}
		w.logger.Error().Err(err).Str("job_id", jobID).Msg("worker: claim failed")
		return
	}

	w.logger.Info().Str("job_id", jobID).Str("owner_id", job.OwnerID).Str("mode", string(job.Mode)).Msg("worker: picked job")

	if _, err := w.counter.Incr(ctx, job.OwnerID); err != nil {
		w.logger.Error().Err(err).Str("owner_id", job.OwnerID).Msg("worker: increment concurrent counter failed")
	}
	defer func() {
		if err := w.counter.Decr(ctx, job.OwnerID); err != nil {
			w.logger.Error().Err(err).Str("owner_id", job.OwnerID).Msg("worker: decrement concurrent counter failed")
		}
	}()

	if err := w.execute(ctx, job); err != nil {
		w.logger.Error().Err(err).Str("job_id", jobID).Msg("worker: job failed")
		if failErr := w.repo.Fail(ctx, jobID, err.Error(), w.now()); failErr != nil {
			if errors.Is(failErr, domain.ErrStateConflict) {
				w.logger.Warn().Str("job_id", jobID).Msg("worker: job state changed during failure handling")
			} else {
				w.logger.Error().Err(failErr).Str("job_id", jobID).Msg("worker: mark failed errored")
			}
		}
		return
	}

	w.logger.Info().Str("job_id", jobID).Msg("worker: job completed")
}

// execute runs the generation call and persists the results. Panics from the
// provider or storage surface as errors so one bad job cannot kill the loop.
func (w *Worker) execute(ctx context.Context, job *domain.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during job execution: %v", r)
		}
	}()

	result, err := w.generator.Generate(ctx, image.GenerateRequest{
		JobID:          job.ID,
		InputURL:       job.InputURL,
		Mode:           job.Mode,
		PromptOverride: job.PromptOverride,
		Params:         job.PromptParams,
	})
	if err != nil {
		return fmt.Errorf("generation: %w", err)
	}

	if result.ProviderJobID != "" {
		if err := w.repo.SetProviderJobID(ctx, job.ID, result.ProviderJobID); err != nil {
			w.logger.Warn().Err(err).Str("job_id", job.ID).Msg("worker: record provider job id failed")
		}
	}

	refs := make([]string, 0, len(result.Images))
	for i, data := range result.Images {
		key := fmt.Sprintf("results/%s/result-%02d.png", job.ID, i+1)
		ref, err := w.store.Put(ctx, key, data)
		if err != nil {
			return fmt.Errorf("persist result %d: %w", i+1, err)
		}
		refs = append(refs, ref)
	}
	if len(refs) == 0 {
		return fmt.Errorf("generation returned no results")
	}

	// The first result doubles as the thumbnail reference for listing UIs.
	if err := w.repo.Complete(ctx, job.ID, refs, refs[0], w.now()); err != nil {
		if errors.Is(err, domain.ErrStateConflict) {
			// The stale monitor presumed us dead and requeued or failed the
			// job. Last write wins; drop our result rather than resurrecting.
			w.logger.Warn().Str("job_id", job.ID).Msg("worker: job no longer processing, result dropped")
			return nil
		}
		return fmt.Errorf("mark completed: %w", err)
	}
	return nil
}
