package ratelimit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultTimeout is the per-request HTTP timeout.
	DefaultTimeout = 30 * time.Second
	// DefaultMaxRetries bounds retry attempts for retryable failures.
	DefaultMaxRetries = 3
	// maxBackoff caps a single backoff sleep.
	maxBackoff = 60 * time.Second
	// maxErrorBody bounds how much of an error response is kept.
	maxErrorBody = 512
)

// Client issues rate-limited HTTP requests with retry and backoff.
// 429 honors Retry-After; 5xx and transport errors back off; any other
// HTTP error propagates immediately.
type Client struct {
	limiter    *Limiter
	httpClient *http.Client
	maxRetries int
	sleep      func(ctx context.Context, d time.Duration) error
	jitter     func() float64
	log        zerolog.Logger
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithMaxRetries sets the retry budget for retryable failures.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger attaches a logger.
func WithLogger(log zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.log = log
	}
}

// WithSleepFunc replaces the backoff sleep, for tests.
func WithSleepFunc(fn func(ctx context.Context, d time.Duration) error) ClientOption {
	return func(c *Client) {
		c.sleep = fn
	}
}

// NewClient creates a rate-limited HTTP client.
func NewClient(limiter *Limiter, opts ...ClientOption) *Client {
	c := &Client{
		limiter:    limiter,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		maxRetries: DefaultMaxRetries,
		sleep:      sleepCtx,
		jitter:     func() float64 { return 0.75 + rand.Float64()*0.5 },
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do executes the request produced by build, retrying retryable failures.
// build is called once per attempt so request bodies can be replayed.
func (c *Client) Do(ctx context.Context, api string, build func() (*http.Request, error)) (*http.Response, error) {
	cfg, _ := c.limiter.Config(api)

	var lastErr error
	var lastRetryAfter time.Duration

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := c.backoff(attempt)
			if lastRetryAfter > wait {
				wait = lastRetryAfter
			}
			c.log.Debug().Str("api", api).Int("attempt", attempt).Dur("wait", wait).Msg("retrying request")
			if err := c.sleep(ctx, wait); err != nil {
				return nil, err
			}
			lastRetryAfter = 0
		}

		if err := c.limiter.Acquire(ctx, api); err != nil {
			return nil, err
		}

		req, err := build()
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req = req.WithContext(ctx)

		if req.Header.Get("User-Agent") == "" {
			if cfg.UserAgent != "" {
				req.Header.Set("User-Agent", cfg.UserAgent)
			} else if cfg.RequireUserAgent {
				return nil, fmt.Errorf("api %s requires a user agent and none is configured", api)
			}
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			// Transport failures and timeouts are retryable.
			lastErr = err
			continue
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			lastRetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
			lastErr = fmt.Errorf("status %s", resp.Status)
			drainBody(resp)
		case isRetryableStatus(resp.StatusCode):
			lastErr = fmt.Errorf("status %s", resp.Status)
			drainBody(resp)
		case resp.StatusCode >= 400:
			body := readErrorBody(resp)
			return nil, &HTTPError{StatusCode: resp.StatusCode, Status: resp.Status, Body: body}
		default:
			return resp, nil
		}
	}

	return nil, &RateLimitError{
		API:        api,
		Attempts:   c.maxRetries + 1,
		RetryAfter: lastRetryAfter,
		Last:       lastErr,
	}
}

// GetJSON issues a GET and decodes the JSON response into out.
func (c *Client) GetJSON(ctx context.Context, api, url string, headers map[string]string, out any) error {
	resp, err := c.Do(ctx, api, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		return req, nil
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// PostJSON issues a POST with a JSON body and decodes the response into out.
func (c *Client) PostJSON(ctx context.Context, api, url string, headers map[string]string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	resp, err := c.Do(ctx, api, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		return req, nil
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// PatchJSON issues a PATCH with a JSON body and decodes the response into out.
func (c *Client) PatchJSON(ctx context.Context, api, url string, headers map[string]string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	resp, err := c.Do(ctx, api, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPatch, url, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		return req, nil
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// backoff computes min(60s, 2^attempt seconds x U(0.75, 1.25)).
func (c *Client) backoff(attempt int) time.Duration {
	base := float64(int64(1)<<uint(attempt)) * c.jitter()
	d := time.Duration(base * float64(time.Second))
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}

func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// parseRetryAfter accepts integer seconds or an HTTP-date.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func drainBody(resp *http.Response) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()
}

func readErrorBody(resp *http.Response) string {
	defer resp.Body.Close()
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return string(data)
}
