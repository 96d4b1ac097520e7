// Package collector defines the source contract and the concrete news and
// filings collectors.
package collector

import (
	"context"
	"time"

	"market-news-lab/internal/domain"
)

// Collector fetches raw items for a ticker set within a time window.
type Collector interface {
	// Source identifies the upstream provider.
	Source() domain.NewsSource

	// SourceType reports whether the collector yields news or filings.
	SourceType() domain.SourceType

	// Credibility is the default trust label for this source.
	Credibility() domain.Credibility

	// Collect fetches raw items for the tickers within [since, until].
	// A zero until means now. Per-ticker failures are isolated: the
	// collector logs and continues with the remainder. The batch is
	// deduplicated by URL before returning.
	Collect(ctx context.Context, tickers []string, since, until time.Time) ([]domain.RawItem, error)
}

// dedupByURL drops later occurrences of the same URL within one batch.
func dedupByURL(items []domain.RawItem) []domain.RawItem {
	seen := make(map[string]struct{}, len(items))
	out := items[:0]
	for _, item := range items {
		if _, ok := seen[item.URL]; ok {
			continue
		}
		seen[item.URL] = struct{}{}
		out = append(out, item)
	}
	return out
}
