package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	ActionSendMessage = "send_message"
	ActionCreateRoom  = "create_room"
	ActionConnect     = "connect"
)

// Rule allows PerMinute events with bursts up to Burst.
type Rule struct {
	PerMinute int
	Burst     int
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per user and action.
type RateLimiter struct {
	rules    map[string]Rule
	fallback Rule
	buckets  map[string]*bucket
	mutex    sync.Mutex
}

func NewRateLimiter(rules map[string]Rule) *RateLimiter {
	return &RateLimiter{
		rules:    rules,
		fallback: Rule{PerMinute: 60, Burst: 20},
		buckets:  make(map[string]*bucket),
	}
}

// Allow consumes a token when one is available. A zero PerMinute rule disables limiting.
func (rl *RateLimiter) Allow(userID, action string) bool {
	if rl == nil {
		return true
	}
	rule, ok := rl.rules[action]
	if !ok {
		rule = rl.fallback
	}
	if rule.PerMinute <= 0 {
		return true
	}

	key := userID + ":" + action
	rl.mutex.Lock()
	b, exists := rl.buckets[key]
	if !exists {
		burst := rule.Burst
		if burst <= 0 {
			burst = rule.PerMinute
		}
		b = &bucket{limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(rule.PerMinute)), burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = time.Now()
	rl.mutex.Unlock()

	return b.limiter.Allow()
}

// Sweep drops buckets idle for longer than maxIdle.
func (rl *RateLimiter) Sweep(maxIdle time.Duration) int {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	cutoff := time.Now().Add(-maxIdle)
	removed := 0
	for key, b := range rl.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(rl.buckets, key)
			removed++
		}
	}
	return removed
}

// Run sweeps idle buckets every interval until ctx is done.
func (rl *RateLimiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.Sweep(2 * interval)
		}
	}
}
