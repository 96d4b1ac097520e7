// Package ratelimit provides the shared token-bucket registry and the
// retrying HTTP client every outbound API call routes through.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// APIConfig describes one remote API's request budget.
type APIConfig struct {
	Rate             int           // tokens per window
	Per              time.Duration // window length
	UserAgent        string
	RequireUserAgent bool // request fails locally when required and empty
}

// DefaultUserAgent is attached to SEC requests unless overridden; EDGAR
// rejects anonymous clients.
const DefaultUserAgent = "NewsFeed/1.0 (contact@example.com)"

// Limiter holds process-wide token buckets keyed by API name.
// Safe for concurrent acquirers.
type Limiter struct {
	mu      sync.RWMutex
	buckets map[string]*rate.Limiter
	configs map[string]APIConfig
}

// NewLimiter creates a Limiter pre-registered with the default budgets of
// every API the system talks to.
func NewLimiter() *Limiter {
	l := &Limiter{
		buckets: make(map[string]*rate.Limiter),
		configs: make(map[string]APIConfig),
	}

	l.Register("sec", APIConfig{Rate: 10, Per: time.Second, UserAgent: DefaultUserAgent, RequireUserAgent: true})
	l.Register("finnhub", APIConfig{Rate: 60, Per: time.Minute})
	l.Register("notion", APIConfig{Rate: 3, Per: time.Second})
	l.Register("telegram", APIConfig{Rate: 30, Per: time.Second})
	l.Register("gemini", APIConfig{Rate: 60, Per: time.Minute})
	l.Register("openai", APIConfig{Rate: 60, Per: time.Minute})
	l.Register("claude", APIConfig{Rate: 60, Per: time.Minute})
	l.Register("ollama", APIConfig{Rate: 1000, Per: time.Second})

	return l
}

// Register adds or replaces the budget for an API.
func (l *Limiter) Register(api string, cfg APIConfig) {
	if cfg.Rate <= 0 {
		cfg.Rate = 1
	}
	if cfg.Per <= 0 {
		cfg.Per = time.Second
	}

	limit := rate.Limit(float64(cfg.Rate) / cfg.Per.Seconds())

	l.mu.Lock()
	defer l.mu.Unlock()
	l.configs[api] = cfg
	l.buckets[api] = rate.NewLimiter(limit, cfg.Rate)
}

// Acquire blocks until a token is available for the API, or the context
// is done. Unregistered APIs pass through without limiting.
func (l *Limiter) Acquire(ctx context.Context, api string) error {
	l.mu.RLock()
	bucket, ok := l.buckets[api]
	l.mu.RUnlock()

	if !ok {
		return nil
	}
	if err := bucket.Wait(ctx); err != nil {
		return fmt.Errorf("acquire %s token: %w", api, err)
	}
	return nil
}

// Config returns the registered budget for an API.
func (l *Limiter) Config(api string) (APIConfig, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	cfg, ok := l.configs[api]
	return cfg, ok
}
