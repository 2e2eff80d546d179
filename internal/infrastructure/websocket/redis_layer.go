package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"oysloe/pkg/logger"
)

// RedisLayer fans envelopes out to every instance through Redis pub/sub.
type RedisLayer struct {
	client    *redis.Client
	prefix    string
	ready     chan struct{}
	readyOnce sync.Once
}

func NewRedisLayer(client *redis.Client, prefix string) *RedisLayer {
	return &RedisLayer{
		client: client,
		prefix: prefix,
		ready:  make(chan struct{}),
	}
}

// Ready is closed after the first successful subscription.
func (l *RedisLayer) Ready() <-chan struct{} {
	return l.ready
}

func (l *RedisLayer) Publish(ctx context.Context, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return l.client.Publish(ctx, l.prefix+env.Group, data).Err()
}

// Run resubscribes with capped exponential backoff until ctx is done.
func (l *RedisLayer) Run(ctx context.Context, deliver func(Envelope)) {
	backoff := time.Second
	for {
		subscribed, err := l.listen(ctx, deliver)
		if ctx.Err() != nil {
			return
		}
		if subscribed {
			backoff = time.Second
		}
		logger.Warn("Redis channel layer disconnected: %v (retrying in %s)", err, backoff)

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}
		backoff *= 2
		if backoff > 30*time.Second {
			backoff = 30 * time.Second
		}
	}
}

func (l *RedisLayer) listen(ctx context.Context, deliver func(Envelope)) (bool, error) {
	pubsub := l.client.PSubscribe(ctx, l.prefix+"*")
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return false, err
	}
	l.readyOnce.Do(func() { close(l.ready) })
	logger.Info("Redis channel layer subscribed (pattern: %s*)", l.prefix)

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return true, ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return true, errors.New("subscription channel closed")
			}
			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				logger.Warn("Dropping malformed envelope on %s: %v", msg.Channel, err)
				continue
			}
			deliver(env)
		}
	}
}
