// ABOUTME: HTTP client for the hosted table API with bearer auth and retry/backoff
// ABOUTME: Every request goes through one loop that retries rate limits and 5xx responses
package airtable

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"
)

// DefaultBaseURL is the public API root.
const DefaultBaseURL = "https://api.airtable.com/v0"

// Config holds connection settings and the request pacing knobs.
type Config struct {
	Token   string
	BaseID  string
	BaseURL string

	Timeout        time.Duration
	PageSize       int
	BatchSize      int
	BatchDelay     time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultConfig returns the pacing the API's rate limits call for.
func DefaultConfig() Config {
	return Config{
		BaseURL:        DefaultBaseURL,
		Timeout:        60 * time.Second,
		PageSize:       100,
		BatchSize:      10,
		BatchDelay:     200 * time.Millisecond,
		MaxAttempts:    8,
		InitialBackoff: time.Second,
		MaxBackoff:     20 * time.Second,
	}
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Client talks to one base.
type Client struct {
	cfg    Config
	http   *http.Client
	sleep  Sleeper
	logger *log.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying client. Its transport is wrapped with bearer auth.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithSleeper replaces the real backoff/pacing wait.
func WithSleeper(s Sleeper) Option {
	return func(c *Client) { c.sleep = s }
}

// WithLogger sets the logger used for retry and paging diagnostics.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New validates cfg, fills zero values from DefaultConfig and builds a client.
func New(cfg Config, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, &ConfigurationError{Msg: "missing API token (set AIRTABLE_TOKEN or run `kontakty config init`)"}
	}
	if strings.TrimSpace(cfg.BaseID) == "" {
		return nil, &ConfigurationError{Msg: "missing base id (set AIRTABLE_BASE_ID or run `kontakty config init`)"}
	}

	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.PageSize <= 0 || cfg.PageSize > def.PageSize {
		cfg.PageSize = def.PageSize
	}
	if cfg.BatchSize <= 0 || cfg.BatchSize > def.BatchSize {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.BatchDelay < 0 {
		cfg.BatchDelay = 0
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = def.MaxBackoff
	}

	c := &Client{
		cfg:    cfg,
		sleep:  sleepContext,
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	base := http.DefaultTransport
	if c.http != nil && c.http.Transport != nil {
		base = c.http.Transport
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token, TokenType: "Bearer"})
	c.http = &http.Client{
		Timeout:   cfg.Timeout,
		Transport: &oauth2.Transport{Source: ts, Base: base},
	}

	return c, nil
}

// Config returns the effective configuration.
func (c *Client) Config() Config {
	return c.cfg
}

func (c *Client) tableURL(table string) string {
	return c.cfg.BaseURL + "/" + url.PathEscape(c.cfg.BaseID) + "/" + url.PathEscape(table)
}

func (c *Client) metaURL(parts ...string) string {
	u := c.cfg.BaseURL + "/meta/bases/" + url.PathEscape(c.cfg.BaseID) + "/tables"
	for _, p := range parts {
		u += "/" + url.PathEscape(p)
	}
	return u
}

// do sends one logical request, retrying 429 and 5xx gateway errors with
// doubling backoff. Transport errors are returned without retry.
func (c *Client) do(ctx context.Context, method, rawURL string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	delay := c.cfg.InitialBackoff
	lastStatus := 0

	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
		if err != nil {
			return fmt.Errorf("failed to build request: %w", err)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("failed to %s %s: %w", method, rawURL, err)
		}
		data, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			return fmt.Errorf("failed to read response from %s: %w", rawURL, err)
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			if out != nil && len(data) > 0 {
				if err := json.Unmarshal(data, out); err != nil {
					return fmt.Errorf("failed to decode response from %s: %w", rawURL, err)
				}
			}
			return nil
		}

		if !isRetryableStatus(resp.StatusCode) {
			return newAPIError(method, rawURL, resp.StatusCode, data)
		}

		lastStatus = resp.StatusCode
		if attempt == c.cfg.MaxAttempts {
			break
		}

		c.logger.Debug("retrying request", "method", method, "url", rawURL,
			"status", resp.StatusCode, "attempt", attempt, "wait", delay)
		if err := c.sleep(ctx, delay); err != nil {
			return err
		}
		delay *= 2
		if delay > c.cfg.MaxBackoff {
			delay = c.cfg.MaxBackoff
		}
	}

	return &RetriesExhaustedError{
		Method:     method,
		URL:        rawURL,
		Attempts:   c.cfg.MaxAttempts,
		LastStatus: lastStatus,
	}
}

func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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
