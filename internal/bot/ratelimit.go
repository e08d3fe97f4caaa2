package bot

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter controls the frequency of requests to the Bot API.
type RateLimiter struct {
	limiter *rate.Limiter

	// additional backoff after a 429
	floodWaitUntil time.Time
	mu             sync.Mutex
}

// NewRateLimiter creates a limiter for outgoing Bot API calls.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// DefaultRateLimiter stays well under Telegram's 30 messages/sec cap.
func DefaultRateLimiter() *RateLimiter {
	return NewRateLimiter(20.0, 5)
}

// Wait blocks until the next request is allowed.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	waitUntil := r.floodWaitUntil
	r.mu.Unlock()

	if time.Now().Before(waitUntil) {
		select {
		case <-time.After(time.Until(waitUntil)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return r.limiter.Wait(ctx)
}

// SetFloodWait sets a pause after Telegram asks us to retry later.
func (r *RateLimiter) SetFloodWait(seconds int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.floodWaitUntil = time.Now().Add(time.Duration(seconds) * time.Second)
}
