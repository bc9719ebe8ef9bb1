package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisQueue implements Queue on a Redis list. RPUSH/BLPOP keep FIFO order,
// and BLPOP's atomic pop is what prevents two workers from claiming the same
// job id.
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue wraps an already-connected client around the given list key.
func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	return &RedisQueue{client: client, key: key}
}

func (q *RedisQueue) Enqueue(ctx context.Context, jobID string) error {
	if err := q.client.RPush(ctx, q.key, jobID).Err(); err != nil {
		return fmt.Errorf("enqueue %s: %w", jobID, err)
	}
	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context, timeout time.Duration) (string, error) {
	vals, err := q.client.BLPop(ctx, timeout, q.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrEmpty
		}
		return "", fmt.Errorf("dequeue: %w", err)
	}
	// BLPOP returns [key, value].
	if len(vals) != 2 {
		return "", ErrEmpty
	}
	return vals[1], nil
}

var _ Queue = (*RedisQueue)(nil)
