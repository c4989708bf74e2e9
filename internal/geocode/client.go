// Package geocode resolves free-text addresses into coordinates via an
// external lookup service, one address at a time behind a fixed
// inter-call delay.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/careseek/importer/internal/models"
	"github.com/careseek/importer/internal/ratelimit"
)

// Config holds geocoding service settings.
type Config struct {
	BaseURL  string        `yaml:"base_url"`
	APIKey   string        `yaml:"api_key"`
	Timeout  time.Duration `yaml:"timeout"`
	MinDelay time.Duration `yaml:"min_delay"`
}

// Client looks up coordinates for addresses.
type Client struct {
	httpClient *http.Client
	limiter    ratelimit.Limiter
	cfg        Config
}

// defaultMinDelay paces lookups when no delay is configured. The
// service's quota is unknown, so unset never means unthrottled.
const defaultMinDelay = 200 * time.Millisecond

// NewClient creates a geocoding client. Calls are serialized with at
// least cfg.MinDelay between them; zero selects the default and a
// negative value disables the gap.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	delay := cfg.MinDelay
	if delay == 0 {
		delay = defaultMinDelay
	} else if delay < 0 {
		delay = 0
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		limiter:    ratelimit.NewFixedDelay(ratelimit.Config{Strategy: ratelimit.StrategyFixedDelay, FixedDelay: delay}),
		cfg:        cfg,
	}
}

type lookupResponse struct {
	Status  string `json:"status"`
	Results []struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"results"`
}

// GeocodeOne resolves a single address. A response that resolves to no
// result returns (nil, nil): that is an answer, not a failure, and must
// not be retried.
func (c *Client) GeocodeOne(ctx context.Context, address string) (*models.Coordinates, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("address", address)
	if c.cfg.APIKey != "" {
		params.Set("key", c.cfg.APIKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var body lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if body.Status != "OK" || len(body.Results) == 0 {
		return nil, nil
	}

	first := body.Results[0]
	return &models.Coordinates{Latitude: first.Latitude, Longitude: first.Longitude}, nil
}

// GeocodeBatch resolves a set of unique addresses sequentially. Every
// input address gets an entry in the result: coordinates on success,
// nil when the lookup returned nothing or failed. Per-address failures
// are logged and never abort the batch; only context cancellation does.
func (c *Client) GeocodeBatch(ctx context.Context, addresses []string) (map[string]*models.Coordinates, error) {
	results := make(map[string]*models.Coordinates, len(addresses))

	for _, addr := range addresses {
		coords, err := c.GeocodeOne(ctx, addr)
		if err != nil {
			if ctx.Err() != nil {
				return results, ctx.Err()
			}
			log.Warn().Str("address", addr).Err(err).Msg("geocode lookup failed")
			results[addr] = nil
			continue
		}
		results[addr] = coords
	}

	return results, nil
}
