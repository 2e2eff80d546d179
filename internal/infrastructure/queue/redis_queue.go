package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"oysloe/pkg/logger"
)

const (
	enqueueTimeout = 500 * time.Millisecond
	popTimeout     = time.Second
)

// RedisQueue is a FIFO list shared by every instance. Jobs survive restarts.
type RedisQueue struct {
	redis  *redis.Client
	key    string
	dlqKey string

	closed chan struct{}
	once   sync.Once
}

func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	return &RedisQueue{
		redis:  client,
		key:    key,
		dlqKey: key + ":dlq",
		closed: make(chan struct{}),
	}
}

func (q *RedisQueue) Enqueue(ctx context.Context, job Job) error {
	select {
	case <-q.closed:
		return ErrClosed
	default:
	}
	b, err := json.Marshal(job)
	if err != nil {
		return err
	}
	// Bound the wait so a slow Redis never stalls the write path.
	ctx, cancel := context.WithTimeout(ctx, enqueueTimeout)
	defer cancel()
	return q.redis.LPush(ctx, q.key, b).Err()
}

func (q *RedisQueue) Dequeue(ctx context.Context) (Job, error) {
	for {
		select {
		case <-q.closed:
			return Job{}, ErrClosed
		case <-ctx.Done():
			return Job{}, ctx.Err()
		default:
		}

		res, err := q.redis.BRPop(ctx, popTimeout, q.key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return Job{}, ctx.Err()
			}
			return Job{}, err
		}

		// BRPOP answers [key, value].
		var job Job
		if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
			// Unreadable payloads are parked raw so nothing popped is dropped.
			if dlqErr := q.redis.RPush(ctx, q.dlqKey, res[1]).Err(); dlqErr != nil {
				logger.Error("Lost malformed job from %s: %v (payload %q)", q.key, dlqErr, res[1])
				return Job{}, fmt.Errorf("dead-letter malformed job: %w", dlqErr)
			}
			logger.Warn("Moved malformed job from %s to %s: %v", q.key, q.dlqKey, err)
			continue
		}
		return job, nil
	}
}

func (q *RedisQueue) DeadLetter(ctx context.Context, job Job) error {
	b, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.redis.RPush(ctx, q.dlqKey, b).Err()
}

func (q *RedisQueue) Close() error {
	q.once.Do(func() { close(q.closed) })
	return nil
}
