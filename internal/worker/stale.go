package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/queue"
	"server/internal/ratelimit"
)

// StaleMonitorOptions wires a StaleMonitor's collaborators and policy.
type StaleMonitorOptions struct {
	Repo       domain.JobRepository
	Queue      queue.Queue
	Counter    *ratelimit.ConcurrencyCounter
	Logger     infra.Logger
	Threshold  time.Duration
	Interval   time.Duration
	MaxRetries int
}

// StaleMonitor recovers jobs whose worker died or hung mid-execution. It is
// the sole automatic-retry mechanism: explicit failures are never retried,
// only jobs stuck in PROCESSING past the threshold. The retry cap bounds
// total attempts per job at MaxRetries+1.
type StaleMonitor struct {
	repo       domain.JobRepository
	queue      queue.Queue
	counter    *ratelimit.ConcurrencyCounter
	logger     infra.Logger
	threshold  time.Duration
	interval   time.Duration
	maxRetries int
	now        func() time.Time
}

func NewStaleMonitor(opts StaleMonitorOptions) *StaleMonitor {
	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = 15 * time.Minute
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	maxRetries := opts.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &StaleMonitor{
		repo:       opts.Repo,
		queue:      opts.Queue,
		counter:    opts.Counter,
		logger:     opts.Logger,
		threshold:  threshold,
		interval:   interval,
		maxRetries: maxRetries,
		now:        time.Now,
	}
}

// WithClock substitutes the wall clock. Test hook.
func (m *StaleMonitor) WithClock(now func() time.Time) *StaleMonitor {
	m.now = now
	return m
}

// Run sweeps on a fixed interval until the context is cancelled.
func (m *StaleMonitor) Run(ctx context.Context) error {
	m.logger.Info().Dur("interval", m.interval).Dur("threshold", m.threshold).Msg("stale monitor: started")
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info().Msg("stale monitor: stopping")
			return ctx.Err()
		case <-ticker.C:
			if err := m.SweepOnce(ctx); err != nil {
				m.logger.Error().Err(err).Msg("stale monitor: sweep failed")
			}
		}
	}
}

// SweepOnce requeues or fails every job stuck in PROCESSING past the
// threshold. Per-job errors are logged and skipped so one bad row cannot
// block recovery of the rest. The sweep is idempotent: a requeued job leaves
// the stale predicate, and the compare-and-set transitions make concurrent
// sweeps race safely.
func (m *StaleMonitor) SweepOnce(ctx context.Context) error {
	cutoff := m.now().Add(-m.threshold)
	stale, err := m.repo.ListStale(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("list stale jobs: %w", err)
	}

	for _, job := range stale {
		if err := m.handleStale(ctx, job); err != nil {
			m.logger.Error().Err(err).Str("job_id", job.ID).Msg("stale monitor: recover job failed")
		}
	}
	return nil
}

func (m *StaleMonitor) handleStale(ctx context.Context, job domain.Job) error {
	if job.RetryCount < m.maxRetries {
		if err := m.repo.Requeue(ctx, job.ID, m.now()); err != nil {
			if errors.Is(err, domain.ErrStateConflict) {
				// The worker finished (or another sweep won) in the meantime.
				return nil
			}
			return fmt.Errorf("requeue: %w", err)
		}
		m.logger.Warn().Str("job_id", job.ID).Int("retry_count", job.RetryCount+1).Msg("stale monitor: requeued stale job")

		if err := m.counter.Decr(ctx, job.OwnerID); err != nil {
			m.logger.Error().Err(err).Str("owner_id", job.OwnerID).Msg("stale monitor: decrement concurrent counter failed")
		}
		if err := m.queue.Enqueue(ctx, job.ID); err != nil {
			return fmt.Errorf("re-enqueue: %w", err)
		}
		return nil
	}

	msg := fmt.Sprintf("job abandoned after %d attempts (retry limit %d reached)", job.RetryCount+1, m.maxRetries)
	if err := m.repo.Fail(ctx, job.ID, msg, m.now()); err != nil {
		if errors.Is(err, domain.ErrStateConflict) {
			return nil
		}
		return fmt.Errorf("mark failed: %w", err)
	}
	m.logger.Warn().Str("job_id", job.ID).Int("retry_count", job.RetryCount).Msg("stale monitor: retry limit exhausted, job failed")

	if err := m.counter.Decr(ctx, job.OwnerID); err != nil {
		m.logger.Error().Err(err).Str("owner_id", job.OwnerID).Msg("stale monitor: decrement concurrent counter failed")
	}
	return nil
}
