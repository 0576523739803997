package websocket

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a per-user fixed window counter
type RateLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	clients map[string]*clientLimit
	now     func() time.Time
}

type clientLimit struct {
	messageCount int
	windowStart  time.Time
}

// NewRateLimiter allows limit messages per window for each user.
// A limit of zero or less returns nil, which the gateway treats as disabled.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		return nil
	}
	return &RateLimiter{
		limit:   limit,
		window:  window,
		clients: make(map[string]*clientLimit),
		now:     time.Now,
	}
}

// Allow records one message for username and reports whether it fits
func (rl *RateLimiter) Allow(username string) bool {
	if rl == nil {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	limit, exists := rl.clients[username]
	if !exists {
		rl.clients[username] = &clientLimit{messageCount: 1, windowStart: now}
		return true
	}

	if now.Sub(limit.windowStart) >= rl.window {
		limit.messageCount = 1
		limit.windowStart = now
		return true
	}

	if limit.messageCount >= rl.limit {
		return false
	}
	limit.messageCount++
	return true
}

// Cleanup drops users idle for more than five windows
func (rl *RateLimiter) Cleanup() {
	if rl == nil {
		return
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for username, limit := range rl.clients {
		if now.Sub(limit.windowStart) > 5*rl.window {
			delete(rl.clients, username)
		}
	}
}

// Run calls Cleanup every interval until ctx is done
func (rl *RateLimiter) Run(ctx context.Context, interval time.Duration) {
	if rl == nil {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.Cleanup()
		case <-ctx.Done():
			return
		}
	}
}

func (rl *RateLimiter) tracked() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}
