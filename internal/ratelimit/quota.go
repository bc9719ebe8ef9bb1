package ratelimit

import (
	"context"
	"fmt"
	"time"

	"server/internal/domain"
	"server/internal/kv"
)

const (
	dayWindowTTL   = 86400   // seconds
	monthWindowTTL = 2592000 // 30 days; windows are date-keyed, the TTL is hygiene only
)

// QuotaTracker enforces per-plan job quotas over daily or monthly windows and
// the per-plan concurrency cap. Window counters are keyed by owner and date,
// so an elapsed window is simply never read again; no cleanup job is needed.
type QuotaTracker struct {
	store      kv.Store
	concurrent *ConcurrencyCounter
	limits     map[domain.Plan]domain.PlanLimits
	now        func() time.Time
}

func NewQuotaTracker(store kv.Store, concurrent *ConcurrencyCounter, limits map[domain.Plan]domain.PlanLimits) *QuotaTracker {
	if limits == nil {
		limits = domain.DefaultPlanLimits()
	}
	return &QuotaTracker{
		store:      store,
		concurrent: concurrent,
		limits:     limits,
		now:        time.Now,
	}
}

// WithClock substitutes the wall clock. Test hook.
func (t *QuotaTracker) WithClock(now func() time.Time) *QuotaTracker {
	t.now = now
	return t
}

func (t *QuotaTracker) windowKey(ownerID string, period domain.QuotaPeriod) (string, int64) {
	ts := t.now().UTC()
	if period == domain.QuotaPeriodDay {
		return fmt.Sprintf("usage:%s:%s", ownerID, ts.Format("2006-01-02")), dayWindowTTL
	}
	return fmt.Sprintf("usage:%s:%s", ownerID, ts.Format("2006-01")), monthWindowTTL
}

// CheckAndReserve admits or rejects a new job for the owner. On admission the
// window counter is incremented; on rejection nothing is mutated. The request
// that reaches the limit is granted, the one that would exceed it is denied.
func (t *QuotaTracker) CheckAndReserve(ctx context.Context, ownerID string, plan domain.Plan) error {
	limits, ok := t.limits[plan]
	if !ok {
		return fmt.Errorf("no limits configured for plan %q", plan)
	}

	key, ttl := t.windowKey(ownerID, limits.Period)
	used, err := t.store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("read usage %s: %w", key, err)
	}
	if used >= int64(limits.MaxJobs) {
		return fmt.Errorf("%w: %d jobs per %s", domain.ErrQuotaExceeded, limits.MaxJobs, limits.Period)
	}

	running, err := t.concurrent.Get(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("read concurrent %s: %w", ownerID, err)
	}
	if running >= int64(limits.ConcurrentJobs) {
		return fmt.Errorf("%w: %d jobs", domain.ErrConcurrencyLimit, limits.ConcurrentJobs)
	}

	if _, err := t.store.Incr(ctx, key); err != nil {
		return fmt.Errorf("reserve usage %s: %w", key, err)
	}
	if err := t.store.Expire(ctx, key, ttl); err != nil {
		return fmt.Errorf("expire usage %s: %w", key, err)
	}
	return nil
}

// UsageStats summarizes an owner's consumption for polling UIs.
type UsageStats struct {
	Used          int64              `json:"used"`
	MaxJobs       int                `json:"max_jobs"`
	Remaining     int64              `json:"remaining"`
	Period        domain.QuotaPeriod `json:"period"`
	Concurrent    int64              `json:"concurrent"`
	MaxConcurrent int                `json:"max_concurrent"`
}

// Stats reads the owner's current window and concurrency counters.
func (t *QuotaTracker) Stats(ctx context.Context, ownerID string, plan domain.Plan) (UsageStats, error) {
	limits, ok := t.limits[plan]
	if !ok {
		return UsageStats{}, fmt.Errorf("no limits configured for plan %q", plan)
	}

	key, _ := t.windowKey(ownerID, limits.Period)
	used, err := t.store.Get(ctx, key)
	if err != nil {
		return UsageStats{}, fmt.Errorf("read usage %s: %w", key, err)
	}
	running, err := t.concurrent.Get(ctx, ownerID)
	if err != nil {
		return UsageStats{}, fmt.Errorf("read concurrent %s: %w", ownerID, err)
	}

	remaining := int64(limits.MaxJobs) - used
	if remaining < 0 {
		remaining = 0
	}
	return UsageStats{
		Used:          used,
		MaxJobs:       limits.MaxJobs,
		Remaining:     remaining,
		Period:        limits.Period,
		Concurrent:    running,
		MaxConcurrent: limits.ConcurrentJobs,
	}, nil
}
