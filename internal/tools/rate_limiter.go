package tools

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter caps tool executions per key (the principal id) with a token
// bucket that refills maxPerHour tokens per hour.
type RateLimiter struct {
	mu         sync.Mutex
	limiters   map[string]*rate.Limiter
	maxPerHour int
	every      time.Duration
}

// NewRateLimiter returns nil when maxPerHour <= 0, which disables limiting.
func NewRateLimiter(maxPerHour int) *RateLimiter {
	if maxPerHour <= 0 {
		return nil
	}
	return &RateLimiter{
		limiters:   make(map[string]*rate.Limiter),
		maxPerHour: maxPerHour,
		every:      time.Hour / time.Duration(maxPerHour),
	}
}

// Allow returns an error when key has exhausted its budget.
func (rl *RateLimiter) Allow(key string) error {
	rl.mu.Lock()
	l, ok := rl.limiters[key]
	if !ok {
		l = rate.NewLimiter(rate.Every(rl.every), rl.maxPerHour)
		rl.limiters[key] = l
	}
	rl.mu.Unlock()

	if !l.Allow() {
		return fmt.Errorf("tool rate limit exceeded: %d actions/hour for key %s", rl.maxPerHour, key)
	}
	return nil
}
