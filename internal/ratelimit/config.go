package ratelimit

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds limiter and retry-backoff settings for one service.
type Config struct {
	Strategy          Strategy      `yaml:"strategy" json:"strategy"`
	RequestsPerSec    float64       `yaml:"requests_per_second" json:"requests_per_second"`
	Burst             int           `yaml:"burst" json:"burst"`
	FixedDelay        time.Duration `yaml:"fixed_delay" json:"fixed_delay"`
	MaxRetries        int           `yaml:"max_retries" json:"max_retries"`
	InitialBackoff    time.Duration `yaml:"initial_backoff" json:"initial_backoff"`
	MaxBackoff        time.Duration `yaml:"max_backoff" json:"max_backoff"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier" json:"backoff_multiplier"`
}

// DefaultConfig returns conservative defaults suitable for services
// with unpublished quotas.
func DefaultConfig() Config {
	return Config{
		Strategy:          StrategyTokenBucket,
		RequestsPerSec:    3.0,
		Burst:             5,
		FixedDelay:        time.Second,
		MaxRetries:        3,
		InitialBackoff:    time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

func (cfg Config) withDefaults() Config {
	def := DefaultConfig()
	if cfg.Strategy == "" {
		cfg.Strategy = def.Strategy
	}
	if cfg.RequestsPerSec <= 0 {
		cfg.RequestsPerSec = def.RequestsPerSec
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = def.MaxBackoff
	}
	if cfg.BackoffMultiplier <= 0 {
		cfg.BackoffMultiplier = def.BackoffMultiplier
	}
	if cfg.FixedDelay < 0 {
		cfg.FixedDelay = def.FixedDelay
	}
	return cfg
}

// ServiceConfigs maps a service name ("openapi", "geocode") to its
// limiter config.
type ServiceConfigs struct {
	RateLimits map[string]Config `yaml:"rate_limits" json:"rate_limits"`
}

// LoadServiceConfigs parses YAML bytes into ServiceConfigs.
func LoadServiceConfigs(data []byte) (ServiceConfigs, error) {
	var cfgs ServiceConfigs
	if err := yaml.Unmarshal(data, &cfgs); err != nil {
		return ServiceConfigs{}, err
	}
	for name, cfg := range cfgs.RateLimits {
		cfgs.RateLimits[name] = cfg.withDefaults()
	}
	return cfgs, nil
}

// Get returns the limiter config for a service, or defaults when the
// service has no entry.
func (s ServiceConfigs) Get(service string) (Config, error) {
	cfg, ok := s.RateLimits[service]
	if !ok {
		return DefaultConfig(), fmt.Errorf("rate_limits for %s not found", service)
	}
	return cfg.withDefaults(), nil
}
