package queue

import (
	"context"
	"time"
)

const defaultMemoryCapacity = 1024

// MemoryQueue is a channel-backed Queue for tests and single-process
// development setups.
type MemoryQueue struct {
	ch chan string
}

// NewMemoryQueue creates a queue holding up to capacity ids; capacity <= 0
// selects a default.
func NewMemoryQueue(capacity int) *MemoryQueue {
	if capacity <= 0 {
		capacity = defaultMemoryCapacity
	}
	return &MemoryQueue{ch: make(chan string, capacity)}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, jobID string) error {
	select {
	case q.ch <- jobID:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context, timeout time.Duration) (string, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case id := <-q.ch:
		return id, nil
	case <-timer.C:
		return "", ErrEmpty
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Len reports how many ids are waiting. Test helper.
func (q *MemoryQueue) Len() int {
	return len(q.ch)
}

var _ Queue = (*MemoryQueue)(nil)
