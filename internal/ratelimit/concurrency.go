// Package ratelimit implements per-owner admission control: a concurrency
// counter capping simultaneous PROCESSING jobs and a windowed usage quota
// capping jobs per day or month. Both ride on the shared key-value store so
// every worker and API process observes the same counts.
package ratelimit

import (
	"context"
	"fmt"

	"server/internal/kv"
)

// ConcurrencyCounter tracks how many jobs an owner currently has in the
// PROCESSING state. It is eventually consistent with the job store; the
// recovery task overwrites it from ground truth to heal crash-induced drift.
type ConcurrencyCounter struct {
	store kv.Store
}

func NewConcurrencyCounter(store kv.Store) *ConcurrencyCounter {
	return &ConcurrencyCounter{store: store}
}

func concurrentKey(ownerID string) string {
	return "concurrent:" + ownerID
}

// Incr bumps the owner's counter and returns the new value.
func (c *ConcurrencyCounter) Incr(ctx context.Context, ownerID string) (int64, error) {
	n, err := c.store.Incr(ctx, concurrentKey(ownerID))
	if err != nil {
		return 0, fmt.Errorf("incr concurrent %s: %w", ownerID, err)
	}
	return n, nil
}

// Decr lowers the owner's counter, flooring at zero. Crashed workers can make
// decrements outnumber increments; the counter must never read negative.
func (c *ConcurrencyCounter) Decr(ctx context.Context, ownerID string) error {
	n, err := c.store.Decr(ctx, concurrentKey(ownerID))
	if err != nil {
		return fmt.Errorf("decr concurrent %s: %w", ownerID, err)
	}
	if n < 0 {
		if err := c.store.Set(ctx, concurrentKey(ownerID), 0); err != nil {
			return fmt.Errorf("reset concurrent %s: %w", ownerID, err)
		}
	}
	return nil
}

// Get returns the owner's current counter value.
func (c *ConcurrencyCounter) Get(ctx context.Context, ownerID string) (int64, error) {
	return c.store.Get(ctx, concurrentKey(ownerID))
}

// Reset overwrites the counter with an authoritative value. Used by the
// recovery task; an overwrite rather than a relative adjustment so any drift
// is corrected in one step.
func (c *ConcurrencyCounter) Reset(ctx context.Context, ownerID string, value int64) error {
	if value < 0 {
		value = 0
	}
	return c.store.Set(ctx, concurrentKey(ownerID), value)
}
