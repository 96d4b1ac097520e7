// Package provider implements the LLM analysis layer: a strict-JSON
// protocol shared across vendors, per-vendor HTTP adapters, and cost
// accounting.
package provider

import (
	"context"
	"errors"

	"market-news-lab/internal/domain"
)

// Sentinel errors for provider construction.
var (
	// ErrProviderConfigMissing is returned when a provider is selected
	// but its API key is not configured. Callers treat this as no-AI
	// mode rather than a hard failure.
	ErrProviderConfigMissing = errors.New("provider api key not configured")

	// ErrUnknownProvider is returned for a provider name the registry
	// does not know.
	ErrUnknownProvider = errors.New("unknown provider")
)

// Usage reports token and cost consumption of one or more API calls.
type Usage struct {
	Tokens  int
	CostUSD float64
}

// add accumulates another call's consumption.
func (u Usage) add(other Usage) Usage {
	return Usage{Tokens: u.Tokens + other.Tokens, CostUSD: u.CostUSD + other.CostUSD}
}

// AnalyzedItem pairs a news item with its analysis for summary prompts.
// Analysis is nil when the item's analysis failed.
type AnalyzedItem struct {
	News     domain.NewsItem
	Analysis *domain.AnalysisResult
}

// Provider analyzes news items and synthesizes per-ticker summaries.
//
// Analyze classifies one news item. A malformed model response is
// repaired once with a stricter prompt; if the repair also fails a
// deterministic fallback result is returned with a nil error, so only
// transport and API failures surface as errors. Usage always reflects
// every call made, including failed repair attempts.
//
// TickerSummary synthesizes one ticker's analyzed items into a daily
// summary. It degrades to a counting fallback instead of returning an
// error.
type Provider interface {
	Name() string
	Analyze(ctx context.Context, news domain.NewsItem, thesis string) (*domain.AnalysisResult, Usage, error)
	TickerSummary(ctx context.Context, ticker, company string, items []AnalyzedItem, thesis string) (*domain.TickerSummary, Usage, error)
}
