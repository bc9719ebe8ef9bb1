// Package kv abstracts the shared fast key-value store backing the
// concurrency counters and usage quotas. All operations are atomic single
// commands so independent processes can mutate the same keys without
// client-side locking.
package kv

import "context"

// Store is the contract required by the rate-limit components. A Redis-backed
// implementation is used in production; tests substitute the in-memory one.
type Store interface {
	// Incr atomically increments the integer at key and returns the new value.
	// Missing keys are treated as zero.
	Incr(ctx context.Context, key string) (int64, error)

	// Decr atomically decrements the integer at key and returns the new value.
	Decr(ctx context.Context, key string) (int64, error)

	// Get returns the integer at key, or zero if the key does not exist.
	Get(ctx context.Context, key string) (int64, error)

	// Set overwrites key with the given value.
	Set(ctx context.Context, key string, value int64) error

	// Expire sets the key's time-to-live in seconds. A best-effort hint for
	// storage hygiene; correctness never depends on expiry firing.
	Expire(ctx context.Context, key string, seconds int64) error
}
