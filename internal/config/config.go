// Package config loads and validates the importer's YAML configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/careseek/importer/internal/geocode"
	"github.com/careseek/importer/internal/ratelimit"
	"github.com/careseek/importer/internal/sources/batchfile"
	"github.com/careseek/importer/internal/sources/openapi"
)

// Source names accepted by Validate and the CLI.
const (
	SourceAPI  = "api"
	SourceFile = "file"
)

// Database configures the SQLite store.
type Database struct {
	DSN   string `yaml:"dsn"`
	Debug bool   `yaml:"debug"`
}

// File configures batch-file ingestion.
type File struct {
	Path      string   `yaml:"path"`
	Encodings []string `yaml:"encodings"`
	BatchSize int      `yaml:"batch_size"`
}

// Import configures the run itself.
type Import struct {
	StartUnit      int  `yaml:"start_unit"`
	MaxUnits       int  `yaml:"max_units"`
	PageSize       int  `yaml:"page_size"`
	Geocode        bool `yaml:"geocode"`
	AbortThreshold int  `yaml:"abort_threshold"`
}

// Config is the full application configuration.
type Config struct {
	Database   Database                 `yaml:"database"`
	Source     openapi.Config           `yaml:"source"`
	File       File                     `yaml:"file"`
	Geocode    geocode.Config           `yaml:"geocode"`
	Import     Import                   `yaml:"import"`
	RateLimits ratelimit.ServiceConfigs `yaml:",inline"`
}

// Load reads and parses the YAML file at path, filling defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML bytes into a Config, filling defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Database.DSN == "" {
		c.Database.DSN = "facilities.db"
	}
	if len(c.File.Encodings) == 0 {
		c.File.Encodings = batchfile.DefaultEncodings
	}
	if c.File.BatchSize <= 0 {
		c.File.BatchSize = 200
	}
	if c.Import.PageSize <= 0 {
		c.Import.PageSize = 100
	}
	if c.Import.AbortThreshold <= 0 {
		c.Import.AbortThreshold = 5
	}
}

// Validate checks that everything the chosen source needs is present.
// Failures here abort before any run state is created.
func (c *Config) Validate(source string) error {
	switch source {
	case SourceAPI:
		if c.Source.BaseURL == "" {
			return fmt.Errorf("source.base_url is required for the api source")
		}
		if c.Source.ServiceKey == "" {
			return fmt.Errorf("source.service_key is required for the api source")
		}
	case SourceFile:
		if c.File.Path == "" {
			return fmt.Errorf("file.path is required for the file source")
		}
	default:
		return fmt.Errorf("unknown source %q (want %q or %q)", source, SourceAPI, SourceFile)
	}
	if c.Import.Geocode && c.Geocode.BaseURL == "" {
		return fmt.Errorf("geocode.base_url is required when geocoding is enabled")
	}
	return nil
}
