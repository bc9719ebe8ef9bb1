// Package queue provides the FIFO work queue decoupling job submission from
// execution. Only job ids travel through the queue; the job rows themselves
// live in Postgres.
package queue

import (
	"context"
	"errors"
	"time"
)

// ErrEmpty is returned by Dequeue when no job id arrives within the timeout.
var ErrEmpty = errors.New("queue empty")

// Queue is a FIFO list of job ids. Enqueue appends to the tail; Dequeue
// blocks up to its timeout for the head element and removes it atomically.
// The atomic pop is the delivery guarantee: a given id is handed to at most
// one consumer. There is no priority ordering.
type Queue interface {
	Enqueue(ctx context.Context, jobID string) error
	Dequeue(ctx context.Context, timeout time.Duration) (string, error)
}
