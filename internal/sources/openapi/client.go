// Package openapi fetches facility records from the public open-data
// API one page at a time, normalizing the response shape and mapping
// transport failures onto a fixed error taxonomy at the boundary.
package openapi

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/careseek/importer/internal/models"
	"github.com/careseek/importer/internal/ratelimit"
)

// Config holds the source API settings.
type Config struct {
	BaseURL    string        `yaml:"base_url"`
	ServiceKey string        `yaml:"service_key"`
	Format     string        `yaml:"format"` // "json" or "xml"
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
	PageDelay  time.Duration `yaml:"page_delay"`
}

// Client fetches pages of facility records.
type Client struct {
	httpClient *http.Client
	limiter    ratelimit.Limiter
	cfg        Config

	// sleep is swapped out by tests to observe retry delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient creates a source client gated by the given limiter.
func NewClient(cfg Config, limiter ratelimit.Limiter) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Format == "" {
		cfg.Format = "json"
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
		cfg:        cfg,
		sleep:      sleepCtx,
	}
}

// FetchPage retrieves one page. Transient failures are retried with a
// growing backoff up to MaxRetries; when the attempts are exhausted it
// returns an UnavailableError carrying the page number. Permanent
// failures return immediately.
func (c *Client) FetchPage(ctx context.Context, page, pageSize int) (*Page, error) {
	var lastErr error

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.limiter.RetryAfter(attempt)
			log.Warn().Int("page", page).Int("attempt", attempt).Dur("backoff", delay).
				Msg("retrying page fetch")
			if err := c.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		result, err := c.fetchOnce(ctx, page, pageSize)
		if err == nil {
			return result, nil
		}

		var transient *TransientError
		if !errors.As(err, &transient) {
			return nil, err
		}
		lastErr = err
	}

	return nil, &UnavailableError{Page: page, Err: lastErr}
}

// FetchAll walks pages from 1 until the computed page count or maxPages
// is reached, whichever comes first. maxPages <= 0 means unlimited.
func (c *Client) FetchAll(ctx context.Context, pageSize, maxPages int) ([]models.RawRecord, error) {
	var all []models.RawRecord

	totalPages := 1
	for page := 1; page <= totalPages; page++ {
		if maxPages > 0 && page > maxPages {
			break
		}
		if page > 1 && c.cfg.PageDelay > 0 {
			if err := c.sleep(ctx, c.cfg.PageDelay); err != nil {
				return all, err
			}
		}

		result, err := c.FetchPage(ctx, page, pageSize)
		if err != nil {
			return all, err
		}
		all = append(all, result.Records...)

		if page == 1 {
			totalPages = PageCount(result.TotalCount, pageSize)
		}
	}

	return all, nil
}

// PageCount computes how many pages cover total records.
func PageCount(total, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

func (c *Client) fetchOnce(ctx context.Context, page, pageSize int) (*Page, error) {
	params := url.Values{}
	params.Set("serviceKey", c.cfg.ServiceKey)
	params.Set("pageNo", strconv.Itoa(page))
	params.Set("numOfRows", strconv.Itoa(pageSize))
	params.Set("_type", c.cfg.Format)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, &PermanentError{Err: fmt.Errorf("create request: %w", err)}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// Request-level failures (timeouts included) are worth retrying.
		return nil, &TransientError{Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, &TransientError{Status: resp.StatusCode}
	case resp.StatusCode != http.StatusOK:
		return nil, &PermanentError{Message: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
	}

	var env envelope
	if c.cfg.Format == "xml" {
		err = xml.NewDecoder(resp.Body).Decode(&env)
	} else {
		err = json.NewDecoder(resp.Body).Decode(&envelopeJSON{&env})
	}
	if err != nil {
		return nil, &PermanentError{Err: fmt.Errorf("decode response: %w", err)}
	}

	// The API reports its own failures inside a successful transport
	// response; honor the embedded code over the HTTP status.
	if env.Header.ResultCode != resultCodeOK {
		return nil, &PermanentError{Code: env.Header.ResultCode, Message: env.Header.ResultMsg}
	}

	return env.toPage(), nil
}

// envelopeJSON unwraps the top-level {"response": {...}} JSON nesting.
type envelopeJSON struct {
	env *envelope
}

func (w *envelopeJSON) UnmarshalJSON(data []byte) error {
	var outer struct {
		Response *envelope `json:"response"`
	}
	if err := json.Unmarshal(data, &outer); err != nil {
		return err
	}
	if outer.Response != nil {
		*w.env = *outer.Response
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
