package ratelimit

import (
	"math"
	"math/rand"
	"time"
)

// Backoff computes the delay before retry attempt n (1-based):
// exponential growth from InitialBackoff, capped at MaxBackoff, with
// +/-25% jitter to spread simultaneous retriers.
func Backoff(attempt int, cfg Config) time.Duration {
	if attempt <= 0 {
		return 0
	}
	if attempt > cfg.MaxRetries {
		return cfg.MaxBackoff
	}

	d := float64(cfg.InitialBackoff) * math.Pow(cfg.BackoffMultiplier, float64(attempt-1))
	if d > float64(cfg.MaxBackoff) {
		d = float64(cfg.MaxBackoff)
	}

	d += d * 0.25 * (2*rand.Float64() - 1)

	if d < 0 {
		d = 0
	}
	if d > float64(cfg.MaxBackoff) {
		d = float64(cfg.MaxBackoff)
	}

	return time.Duration(d)
}
