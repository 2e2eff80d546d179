package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAllowEnforcesBurstPerUser(t *testing.T) {
	rl := NewRateLimiter(map[string]Rule{ActionCreateRoom: {PerMinute: 1, Burst: 2}})

	assert.True(t, rl.Allow("u1", ActionCreateRoom))
	assert.True(t, rl.Allow("u1", ActionCreateRoom))
	assert.False(t, rl.Allow("u1", ActionCreateRoom))

	// Buckets are per user.
	assert.True(t, rl.Allow("u2", ActionCreateRoom))
}

func TestZeroRuleDisablesLimit(t *testing.T) {
	rl := NewRateLimiter(map[string]Rule{ActionSendMessage: {PerMinute: 0}})
	for i := 0; i < 100; i++ {
		assert.True(t, rl.Allow("u1", ActionSendMessage))
	}
}

func TestNilLimiterAllows(t *testing.T) {
	var rl *RateLimiter
	assert.True(t, rl.Allow("u1", ActionSendMessage))
}

func TestSweepRemovesIdleBuckets(t *testing.T) {
	rl := NewRateLimiter(nil)
	rl.Allow("u1", ActionConnect)

	assert.Equal(t, 0, rl.Sweep(time.Hour))
	assert.Equal(t, 1, rl.Sweep(-time.Second))
}
