// Package retry runs remote calls with exponential backoff and jitter.
package retry

import (
	"context"
	"math/rand/v2"
	"time"
)

// Config controls exponential backoff.
type Config struct {
	MaxRetries int           // retry attempts after the first call, 0 = no retry
	BaseDelay  time.Duration // initial backoff delay
	MaxDelay   time.Duration // maximum backoff delay
}

// Default returns the backoff used for HTTP APIs.
func Default() Config {
	return Config{
		MaxRetries: 2,
		BaseDelay:  time.Second,
		MaxDelay:   10 * time.Second,
	}
}

// Do runs fn, retrying while retryable(err) reports true. It returns the
// number of calls made and the last error. ctx cancellation stops the wait
// between attempts.
func Do(ctx context.Context, cfg Config, retryable func(error) bool, fn func() error) (attempts int, err error) {
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		err = fn()
		if err == nil {
			return attempt + 1, nil
		}
		if attempt == cfg.MaxRetries || (retryable != nil && !retryable(err)) {
			return attempt + 1, err
		}

		timer := time.NewTimer(backoffWithJitter(cfg.BaseDelay, cfg.MaxDelay, attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt + 1, err
		case <-timer.C:
		}
	}
	return cfg.MaxRetries + 1, err
}

// backoffWithJitter computes delay = min(base * 2^attempt, max) + jitter(±25%).
func backoffWithJitter(base, max time.Duration, attempt int) time.Duration {
	delay := base << uint(attempt)
	if delay > max || delay <= 0 {
		delay = max
	}

	quarter := delay / 4
	if quarter > 0 {
		jitter := time.Duration(rand.Int64N(int64(quarter*2))) - quarter
		delay += jitter
	}
	return delay
}

// HTTPStatus reports whether an HTTP status is worth retrying.
func HTTPStatus(status int) bool {
	return status == 429 || status >= 500
}
