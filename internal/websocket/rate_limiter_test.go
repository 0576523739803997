package websocket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_Allow(t *testing.T) {
	limiter := NewRateLimiter(3, time.Minute)
	now := time.Now()
	limiter.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		assert.True(t, limiter.Allow("alice"), "message %d", i)
	}
	assert.False(t, limiter.Allow("alice"))
	assert.True(t, limiter.Allow("bob"), "limits are per user")

	now = now.Add(time.Minute)
	assert.True(t, limiter.Allow("alice"), "new window")
}

func TestRateLimiter_Disabled(t *testing.T) {
	limiter := NewRateLimiter(0, time.Minute)
	assert.Nil(t, limiter)
	for i := 0; i < 1000; i++ {
		assert.True(t, limiter.Allow("alice"))
	}
	limiter.Cleanup()
}

func TestRateLimiter_Cleanup(t *testing.T) {
	limiter := NewRateLimiter(10, time.Minute)
	now := time.Now()
	limiter.now = func() time.Time { return now }

	limiter.Allow("alice")
	limiter.Allow("bob")

	now = now.Add(3 * time.Minute)
	limiter.Allow("bob")

	now = now.Add(3 * time.Minute)
	limiter.Cleanup()
	assert.Equal(t, 1, limiter.tracked())
}
