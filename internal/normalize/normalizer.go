// Package normalize maps raw collector items to canonical news items and
// composes deduplication with normalization for the pipeline.
package normalize

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"market-news-lab/internal/dedup"
	"market-news-lab/internal/domain"
)

// sourceCredibility assigns trust by source for non-filing items.
var sourceCredibility = map[domain.NewsSource]domain.Credibility{
	domain.SourceSEC:     domain.CredibilityHigh,
	domain.SourceFinnhub: domain.CredibilityMedium,
}

// Normalizer converts RawItems into NewsItems.
type Normalizer struct {
	now func() time.Time
}

// NewNormalizer creates a Normalizer using the wall clock.
func NewNormalizer() *Normalizer {
	return &Normalizer{now: time.Now}
}

// WithClock overrides the clock, for tests.
func (n *Normalizer) WithClock(now func() time.Time) *Normalizer {
	n.now = now
	return n
}

// Normalize builds the canonical NewsItem for one raw item. Filings are
// always high credibility; other sources use the lookup table with a low
// default. A missing published_at is filled with the current time.
func (n *Normalizer) Normalize(raw *domain.RawItem) (*domain.NewsItem, error) {
	if raw == nil || raw.URL == "" {
		return nil, fmt.Errorf("raw item missing url")
	}
	if raw.Title == "" {
		return nil, fmt.Errorf("raw item missing title")
	}

	published := raw.PublishedAt
	if published.IsZero() {
		published = n.now()
	}

	hashInput := *raw
	hashInput.PublishedAt = published

	item := &domain.NewsItem{
		RawItemID:       raw.ID,
		CanonicalURL:    dedup.CanonicalizeURL(raw.URL),
		Title:           raw.Title,
		TitleNormalized: dedup.NormalizeTitle(raw.Title),
		ContentHash:     dedup.ContentHash(&hashInput),
		Summary:         raw.Summary,
		PublishedAt:     published,
		Source:          raw.Source,
		SourceType:      raw.SourceType,
		Credibility:     CredibilityFor(raw.Source, raw.SourceType),
		Tickers:         append([]string(nil), raw.Tickers...),
	}
	return item, nil
}

// CredibilityFor applies the assignment rule: filings are high, otherwise
// by source table with a low default.
func CredibilityFor(source domain.NewsSource, sourceType domain.SourceType) domain.Credibility {
	if sourceType == domain.SourceTypeFiling {
		return domain.CredibilityHigh
	}
	if c, ok := sourceCredibility[source]; ok {
		return c
	}
	return domain.CredibilityLow
}

// ProcessResult is the output of the dedup-then-normalize composition.
type ProcessResult struct {
	Raw          []domain.RawItem   // kept raw items, input order
	Items        []*domain.NewsItem // normalized counterparts, same order
	RemovedCount int
	Clusters     []domain.DedupCluster
}

// Processor composes the deduplicator and the normalizer: dedup runs on
// raw items first, the survivors are normalized. Per-item normalization
// failures are logged and skipped, never failing the batch.
type Processor struct {
	dedup      *dedup.Deduplicator
	normalizer *Normalizer
	log        zerolog.Logger
}

// NewProcessor creates a Processor.
func NewProcessor(d *dedup.Deduplicator, n *Normalizer, log zerolog.Logger) *Processor {
	return &Processor{dedup: d, normalizer: n, log: log}
}

// Process runs deduplication then normalization over a raw batch.
func (p *Processor) Process(items []domain.RawItem) ProcessResult {
	deduped := p.dedup.Deduplicate(items)

	result := ProcessResult{
		RemovedCount: deduped.RemovedCount,
		Clusters:     deduped.Clusters,
	}

	for i := range deduped.Kept {
		raw := deduped.Kept[i]
		item, err := p.normalizer.Normalize(&raw)
		if err != nil {
			p.log.Warn().Err(err).Str("url", raw.URL).Msg("skipping item that failed normalization")
			result.RemovedCount++
			continue
		}
		result.Raw = append(result.Raw, raw)
		result.Items = append(result.Items, item)
	}
	return result
}
