package ratelimit

import (
	"context"
	"sync"
	"time"
)

// TokenBucket allows short bursts while holding a steady average rate.
// The source API client runs behind one.
type TokenBucket struct {
	mu       sync.Mutex
	rate     float64
	burst    int
	tokens   float64
	lastFill time.Time
	config   Config
}

// NewTokenBucket creates a bucket filled to capacity.
func NewTokenBucket(cfg Config) *TokenBucket {
	cfg = cfg.withDefaults()
	return &TokenBucket{
		rate:     cfg.RequestsPerSec,
		burst:    cfg.Burst,
		tokens:   float64(cfg.Burst),
		lastFill: time.Now(),
		config:   cfg,
	}
}

// Wait blocks until a token is available or ctx is done.
func (tb *TokenBucket) Wait(ctx context.Context) error {
	tb.mu.Lock()
	tb.refill()

	if tb.tokens >= 1.0 {
		tb.tokens--
		tb.mu.Unlock()
		return nil
	}

	deficit := 1.0 - tb.tokens
	wait := time.Duration(deficit/tb.rate*float64(time.Second)) + time.Nanosecond
	tb.mu.Unlock()

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		tb.mu.Lock()
		tb.refill()
		if tb.tokens >= 1.0 {
			tb.tokens--
		}
		tb.mu.Unlock()
		return nil
	}
}

// Allow consumes a token if one is available.
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()

	if tb.tokens >= 1.0 {
		tb.tokens--
		return true
	}
	return false
}

// RetryAfter returns the backoff delay before retry attempt n.
func (tb *TokenBucket) RetryAfter(attempt int) time.Duration {
	return Backoff(attempt, tb.config)
}

// Reset refills the bucket to capacity.
func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.tokens = float64(tb.burst)
	tb.lastFill = time.Now()
}

// refill credits tokens for elapsed time; call with the lock held.
func (tb *TokenBucket) refill() {
	now := time.Now()
	elapsed := now.Sub(tb.lastFill)
	if elapsed <= 0 {
		return
	}

	tb.tokens += elapsed.Seconds() * tb.rate
	if tb.tokens > float64(tb.burst) {
		tb.tokens = float64(tb.burst)
	}
	tb.lastFill = now
}
