package ratelimit

import (
	"context"
	"sync"
	"time"
)

// FixedWindow caps calls per one-second window. It suits services that
// publish a hard per-second quota rather than a sustained rate.
type FixedWindow struct {
	mu          sync.Mutex
	limit       int
	window      time.Duration
	count       int
	windowStart time.Time
	config      Config
}

// NewFixedWindow creates a limiter allowing RequestsPerSec calls per
// window.
func NewFixedWindow(cfg Config) *FixedWindow {
	cfg = cfg.withDefaults()
	return &FixedWindow{
		limit:       int(cfg.RequestsPerSec),
		window:      time.Second,
		windowStart: time.Now(),
		config:      cfg,
	}
}

// Wait blocks until the current window has a free slot or ctx is done.
func (fw *FixedWindow) Wait(ctx context.Context) error {
	for {
		if fw.Allow() {
			return nil
		}

		wait := fw.untilNextWindow()
		if wait <= 0 {
			continue
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Allow consumes a slot in the current window if one is free.
func (fw *FixedWindow) Allow() bool {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	fw.rollWindow()

	if fw.count < fw.limit {
		fw.count++
		return true
	}
	return false
}

// RetryAfter returns the backoff delay before retry attempt n.
func (fw *FixedWindow) RetryAfter(attempt int) time.Duration {
	return Backoff(attempt, fw.config)
}

// Reset opens a fresh window.
func (fw *FixedWindow) Reset() {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	fw.count = 0
	fw.windowStart = time.Now()
}

func (fw *FixedWindow) untilNextWindow() time.Duration {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	fw.rollWindow()
	if fw.count < fw.limit {
		return 0
	}
	return fw.window - time.Since(fw.windowStart)
}

// rollWindow starts a new window when the current one has expired;
// call with the lock held.
func (fw *FixedWindow) rollWindow() {
	now := time.Now()
	if now.Sub(fw.windowStart) >= fw.window {
		fw.count = 0
		fw.windowStart = now
	}
}
