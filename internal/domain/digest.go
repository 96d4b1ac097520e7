package domain

import "time"

// DigestItem pairs one canonical news item with its optional analysis.
type DigestItem struct {
	News     NewsItem
	Analysis *AnalysisResult // nil when analysis failed or no-AI mode
}

// TickerSummary is the second-pass synthesis of one ticker's items.
type TickerSummary struct {
	Ticker      string
	CompanyName string
	Sentiment   ImpactDirection
	KeyPoints   []string // <= 3 entries
	Assessment  string
	Action      string
	ItemCount   int
	TokensUsed  int
	CostUSD     float64
}

// Digest is the per-run output bundle handed to delivery channels.
// Owned by the pipeline for the duration of a run; never persisted whole.
type Digest struct {
	RunID           string
	GeneratedAt     time.Time
	WindowStart     time.Time
	WindowEnd       time.Time
	Items           []DigestItem
	TickerSummaries []TickerSummary
	Counters        RunCounters
}

// HighImpact returns the items whose analysis calls a non-neutral direction.
// Renderers use it to front-load the items worth reading first.
func (d *Digest) HighImpact() []DigestItem {
	var out []DigestItem
	for _, item := range d.Items {
		if item.Analysis != nil && item.Analysis.ImpactDirection != ImpactNeutral {
			out = append(out, item)
		}
	}
	return out
}

// ItemsForTicker returns the digest items tagged with the given ticker,
// preserving digest order.
func (d *Digest) ItemsForTicker(ticker string) []DigestItem {
	var out []DigestItem
	for _, item := range d.Items {
		for _, t := range item.News.Tickers {
			if t == ticker {
				out = append(out, item)
				break
			}
		}
	}
	return out
}
