package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"server/internal/domain"
	"server/internal/kv"
)

func newQuotaFixture(limits map[domain.Plan]domain.PlanLimits) (*QuotaTracker, *ConcurrencyCounter, *kv.MemoryStore) {
	store := kv.NewMemoryStore()
	concurrent := NewConcurrencyCounter(store)
	return NewQuotaTracker(store, concurrent, limits), concurrent, store
}

func TestCheckAndReserveExactBoundary(t *testing.T) {
	ctx := context.Background()
	tracker, _, _ := newQuotaFixture(map[domain.Plan]domain.PlanLimits{
		domain.PlanFree: {MaxJobs: 2, Period: domain.QuotaPeriodDay, ConcurrentJobs: 10},
	})

	// The request that reaches the limit is granted.
	for i := 0; i < 2; i++ {
		if err := tracker.CheckAndReserve(ctx, "owner", domain.PlanFree); err != nil {
			t.Fatalf("reserve %d: %v", i+1, err)
		}
	}
	// The one that would exceed it is denied.
	err := tracker.CheckAndReserve(ctx, "owner", domain.PlanFree)
	if !errors.Is(err, domain.ErrQuotaExceeded) {
		t.Fatalf("err = %v, want ErrQuotaExceeded", err)
	}

	// Denial must not mutate the counter.
	stats, statsErr := tracker.Stats(ctx, "owner", domain.PlanFree)
	if statsErr != nil {
		t.Fatal(statsErr)
	}
	if stats.Used != 2 {
		t.Fatalf("Used = %d after denied request, want 2", stats.Used)
	}
}

func TestCheckAndReserveConcurrencyCap(t *testing.T) {
	ctx := context.Background()
	tracker, concurrent, _ := newQuotaFixture(map[domain.Plan]domain.PlanLimits{
		domain.PlanFree: {MaxJobs: 100, Period: domain.QuotaPeriodDay, ConcurrentJobs: 1},
	})

	if _, err := concurrent.Incr(ctx, "owner"); err != nil {
		t.Fatal(err)
	}

	err := tracker.CheckAndReserve(ctx, "owner", domain.PlanFree)
	if !errors.Is(err, domain.ErrConcurrencyLimit) {
		t.Fatalf("err = %v, want ErrConcurrencyLimit", err)
	}

	stats, statsErr := tracker.Stats(ctx, "owner", domain.PlanFree)
	if statsErr != nil {
		t.Fatal(statsErr)
	}
	if stats.Used != 0 {
		t.Fatalf("Used = %d after concurrency denial, want 0", stats.Used)
	}
}

func TestQuotaWindowsRoll(t *testing.T) {
	ctx := context.Background()
	tracker, _, _ := newQuotaFixture(map[domain.Plan]domain.PlanLimits{
		domain.PlanFree: {MaxJobs: 1, Period: domain.QuotaPeriodDay, ConcurrentJobs: 10},
	})

	day1 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tracker.WithClock(func() time.Time { return day1 })

	if err := tracker.CheckAndReserve(ctx, "owner", domain.PlanFree); err != nil {
		t.Fatalf("day1 reserve: %v", err)
	}
	if err := tracker.CheckAndReserve(ctx, "owner", domain.PlanFree); !errors.Is(err, domain.ErrQuotaExceeded) {
		t.Fatalf("day1 second reserve err = %v, want ErrQuotaExceeded", err)
	}

	// The elapsed window reads as zero the next day; no cleanup required.
	tracker.WithClock(func() time.Time { return day1.Add(24 * time.Hour) })
	if err := tracker.CheckAndReserve(ctx, "owner", domain.PlanFree); err != nil {
		t.Fatalf("day2 reserve: %v", err)
	}
}

func TestMonthlyPlansShareOneWindowPerMonth(t *testing.T) {
	ctx := context.Background()
	tracker, _, _ := newQuotaFixture(map[domain.Plan]domain.PlanLimits{
		domain.PlanPro: {MaxJobs: 2, Period: domain.QuotaPeriodMonth, ConcurrentJobs: 10},
	})

	tracker.WithClock(func() time.Time {
		return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	})
	if err := tracker.CheckAndReserve(ctx, "owner", domain.PlanPro); err != nil {
		t.Fatal(err)
	}

	// Still the same month three weeks later.
	tracker.WithClock(func() time.Time {
		return time.Date(2026, 3, 22, 0, 0, 0, 0, time.UTC)
	})
	if err := tracker.CheckAndReserve(ctx, "owner", domain.PlanPro); err != nil {
		t.Fatal(err)
	}
	if err := tracker.CheckAndReserve(ctx, "owner", domain.PlanPro); !errors.Is(err, domain.ErrQuotaExceeded) {
		t.Fatalf("err = %v, want ErrQuotaExceeded", err)
	}
}

func TestCheckAndReserveUnknownPlan(t *testing.T) {
	tracker, _, _ := newQuotaFixture(map[domain.Plan]domain.PlanLimits{})
	if err := tracker.CheckAndReserve(context.Background(), "owner", domain.Plan("enterprise")); err == nil {
		t.Fatal("unknown plan admitted")
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	tracker, concurrent, _ := newQuotaFixture(map[domain.Plan]domain.PlanLimits{
		domain.PlanPersonal: {MaxJobs: 10, Period: domain.QuotaPeriodMonth, ConcurrentJobs: 3},
	})

	for i := 0; i < 4; i++ {
		if err := tracker.CheckAndReserve(ctx, "owner", domain.PlanPersonal); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := concurrent.Incr(ctx, "owner"); err != nil {
		t.Fatal(err)
	}

	stats, err := tracker.Stats(ctx, "owner", domain.PlanPersonal)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Used != 4 || stats.Remaining != 6 || stats.Concurrent != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if stats.Period != domain.QuotaPeriodMonth || stats.MaxJobs != 10 || stats.MaxConcurrent != 3 {
		t.Fatalf("stats limits = %+v", stats)
	}
}
