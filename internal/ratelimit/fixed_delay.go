package ratelimit

import (
	"context"
	"sync"
	"time"
)

// FixedDelay enforces a minimum gap between consecutive calls. It is
// the limiter in front of the geocoding service, where the pipeline
// deliberately serializes requests.
type FixedDelay struct {
	mu       sync.Mutex
	delay    time.Duration
	lastCall time.Time
	config   Config
}

// NewFixedDelay creates a fixed-gap limiter.
func NewFixedDelay(cfg Config) *FixedDelay {
	cfg = cfg.withDefaults()
	return &FixedDelay{delay: cfg.FixedDelay, config: cfg}
}

// Wait blocks until the configured gap since the previous call has
// elapsed, or ctx is done.
func (fd *FixedDelay) Wait(ctx context.Context) error {
	fd.mu.Lock()
	wait := fd.pending(time.Now())
	fd.lastCall = time.Now().Add(wait)
	fd.mu.Unlock()

	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Allow reports whether a call may proceed without waiting, and if so
// records it.
func (fd *FixedDelay) Allow() bool {
	fd.mu.Lock()
	defer fd.mu.Unlock()

	now := time.Now()
	if fd.pending(now) > 0 {
		return false
	}
	fd.lastCall = now
	return true
}

// RetryAfter returns the backoff delay before retry attempt n.
func (fd *FixedDelay) RetryAfter(attempt int) time.Duration {
	return Backoff(attempt, fd.config)
}

// Reset forgets the previous call.
func (fd *FixedDelay) Reset() {
	fd.mu.Lock()
	defer fd.mu.Unlock()
	fd.lastCall = time.Time{}
}

// pending returns the remaining gap; call with the lock held.
func (fd *FixedDelay) pending(now time.Time) time.Duration {
	if fd.lastCall.IsZero() {
		return 0
	}
	elapsed := now.Sub(fd.lastCall)
	if elapsed >= fd.delay {
		return 0
	}
	return fd.delay - elapsed
}
