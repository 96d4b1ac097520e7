package domain

import "time"

// RawItem is a collector result before dedup and normalization.
// Persisted rows correspond to the raw_items table; in-flight values are
// owned by the pipeline for the duration of a run.
type RawItem struct {
	ID          int64 // 0 until persisted
	Source      NewsSource
	SourceType  SourceType
	ExternalID  *string // provider-side id when one exists
	URL         string
	Title       string
	Summary     string
	PublishedAt time.Time // zero when the provider omitted it
	Tickers     []string
	FetchedAt   time.Time
	RawPayload  map[string]any
}

// NewsItem is the canonical, deduplicated form of one raw item.
// Corresponds to the news_items table; canonical_url carries a uniqueness
// index so re-running a window never double-inserts.
type NewsItem struct {
	ID              int64
	RawItemID       int64
	CanonicalURL    string
	Title           string
	TitleNormalized string
	ContentHash     string // SHA-256 hex over title_normalized|date|source
	Summary         string
	PublishedAt     time.Time
	Source          NewsSource
	SourceType      SourceType
	Credibility     Credibility
	Tickers         []string
	CreatedAt       time.Time
}
