package redis

import (
	"context"
	"fmt"
	"time"

	"oysloe/pkg/logger"

	goredis "github.com/redis/go-redis/v9"
)

// Connect parses a redis:// URL, applies pool settings and pings the server.
func Connect(ctx context.Context, url string) (*goredis.Client, error) {
	opt, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	opt.PoolSize = 10
	opt.MinIdleConns = 2
	opt.MaxRetries = 3
	opt.DialTimeout = 5 * time.Second
	// Reads block in BRPOP and pub/sub receives, so the socket timeout is left to the context.
	opt.ReadTimeout = -1
	opt.WriteTimeout = 3 * time.Second
	opt.ConnMaxIdleTime = 5 * time.Minute

	client := goredis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	logger.Info("Connected to Redis at %s", opt.Addr)
	return client, nil
}
