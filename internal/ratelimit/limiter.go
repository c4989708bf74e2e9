// Package ratelimit provides the throughput controls the pipeline uses
// against external services whose quotas are unknown: a fixed inter-call
// delay, a token bucket, and the backoff schedule used between retries.
package ratelimit

import (
	"context"
	"time"
)

// Limiter gates outbound calls to one external service.
type Limiter interface {
	// Wait blocks until the next call may proceed or ctx is done.
	Wait(ctx context.Context) error
	// Allow reports whether a call may proceed immediately.
	Allow() bool
	// RetryAfter returns the backoff delay before retry attempt n.
	RetryAfter(attempt int) time.Duration
	// Reset clears accumulated state.
	Reset()
}

// Strategy selects a limiter implementation.
type Strategy string

const (
	StrategyTokenBucket Strategy = "token_bucket"
	StrategyFixedDelay  Strategy = "fixed_delay"
	StrategyFixedWindow Strategy = "fixed_window"
)

// New creates a limiter for the given config.
func New(cfg Config) Limiter {
	cfg = cfg.withDefaults()
	switch cfg.Strategy {
	case StrategyFixedDelay:
		return NewFixedDelay(cfg)
	case StrategyFixedWindow:
		return NewFixedWindow(cfg)
	default:
		return NewTokenBucket(cfg)
	}
}
