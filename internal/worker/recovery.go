package worker

import (
	"context"
	"fmt"
	"time"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/ratelimit"
)

// CounterRecoveryOptions wires a CounterRecovery task.
type CounterRecoveryOptions struct {
	Repo     domain.JobRepository
	Counter  *ratelimit.ConcurrencyCounter
	Logger   infra.Logger
	Interval time.Duration
	Lookback time.Duration
}

// CounterRecovery periodically overwrites each active owner's concurrency
// counter with the true PROCESSING count from the job store. Workers killed
// between incrementing and decrementing leave the counter drifted; the
// authoritative reset heals any such drift within one interval regardless of
// how it arose.
type CounterRecovery struct {
	repo     domain.JobRepository
	counter  *ratelimit.ConcurrencyCounter
	logger   infra.Logger
	interval time.Duration
	lookback time.Duration
	now      func() time.Time
}

func NewCounterRecovery(opts CounterRecoveryOptions) *CounterRecovery {
	interval := opts.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	lookback := opts.Lookback
	if lookback <= 0 {
		lookback = 24 * time.Hour
	}
	return &CounterRecovery{
		repo:     opts.Repo,
		counter:  opts.Counter,
		logger:   opts.Logger,
		interval: interval,
		lookback: lookback,
		now:      time.Now,
	}
}

// WithClock substitutes the wall clock. Test hook.
func (r *CounterRecovery) WithClock(now func() time.Time) *CounterRecovery {
	r.now = now
	return r
}

// Run reconciles on a fixed interval until the context is cancelled.
func (r *CounterRecovery) Run(ctx context.Context) error {
	r.logger.Info().Dur("interval", r.interval).Msg("counter recovery: started")
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("counter recovery: stopping")
			return ctx.Err()
		case <-ticker.C:
			if err := r.RecoverOnce(ctx); err != nil {
				r.logger.Error().Err(err).Msg("counter recovery: run failed")
			}
		}
	}
}

// RecoverOnce resets the counter of every recently active owner to the job
// store's ground truth. Applying it to an already-consistent owner is a
// no-op. Per-owner errors are logged and skipped.
func (r *CounterRecovery) RecoverOnce(ctx context.Context) error {
	owners, err := r.repo.OwnersWithActivity(ctx, r.now().Add(-r.lookback))
	if err != nil {
		return fmt.Errorf("list active owners: %w", err)
	}

	for _, owner := range owners {
		if err := r.recoverOwner(ctx, owner); err != nil {
			r.logger.Error().Err(err).Str("owner_id", owner).Msg("counter recovery: owner failed")
		}
	}
	return nil
}

func (r *CounterRecovery) recoverOwner(ctx context.Context, ownerID string) error {
	truth, err := r.repo.CountProcessing(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("count processing: %w", err)
	}

	current, err := r.counter.Get(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("read counter: %w", err)
	}
	if current != int64(truth) {
		r.logger.Warn().Str("owner_id", ownerID).Int64("counter", current).Int("actual", truth).Msg("counter recovery: correcting drift")
	}

	if err := r.counter.Reset(ctx, ownerID, int64(truth)); err != nil {
		return fmt.Errorf("reset counter: %w", err)
	}
	return nil
}
