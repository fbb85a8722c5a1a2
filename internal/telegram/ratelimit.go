package telegram

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// defaultRPS keeps the session well below what telegram tolerates for a user account.
const defaultRPS = 2.0

// RateLimiter controls the frequency of requests to Telegram API.
// It sits below the crawler's pacing and only smooths bursts of raw calls.
type RateLimiter struct {
	limiter *rate.Limiter

	// additional backoff after FLOOD_WAIT
	floodWaitUntil time.Time
	mu             sync.Mutex
}

// NewRateLimiter creates a rate limiter for Telegram.
// rps <= 0 falls back to the default rate.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if rps <= 0 {
		rps = defaultRPS
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// DefaultRateLimiter returns a limiter with conservative settings.
func DefaultRateLimiter() *RateLimiter {
	return NewRateLimiter(defaultRPS, 1)
}

// Wait blocks until the next request is allowed.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	waitUntil := r.floodWaitUntil
	r.mu.Unlock()

	// if flood wait is active - wait for it
	if d := time.Until(waitUntil); d > 0 {
		t := time.NewTimer(d)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		}
	}

	return r.limiter.Wait(ctx)
}

// SetFloodWait blocks requests for the given seconds.
// An earlier deadline never shortens a pending one.
func (r *RateLimiter) SetFloodWait(seconds int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	until := time.Now().Add(time.Duration(seconds) * time.Second)
	if until.After(r.floodWaitUntil) {
		r.floodWaitUntil = until
	}
}
