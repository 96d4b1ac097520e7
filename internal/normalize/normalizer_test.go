package normalize

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"market-news-lab/internal/dedup"
	"market-news-lab/internal/domain"
)

func TestNormalize_Fields(t *testing.T) {
	published := time.Date(2026, 4, 2, 14, 0, 0, 0, time.UTC)
	raw := &domain.RawItem{
		ID:          7,
		Source:      domain.SourceFinnhub,
		SourceType:  domain.SourceTypeNews,
		URL:         "https://Example.com/story?utm_source=x&id=9",
		Title:       "NVIDIA Beats Estimates!",
		Summary:     "Revenue up.",
		PublishedAt: published,
		Tickers:     []string{"NVDA"},
	}

	item, err := NewNormalizer().Normalize(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if item.RawItemID != 7 {
		t.Errorf("expected raw item link, got %d", item.RawItemID)
	}
	if item.CanonicalURL != "https://example.com/story?id=9" {
		t.Errorf("unexpected canonical url %q", item.CanonicalURL)
	}
	if item.TitleNormalized != "nvidia beats estimates" {
		t.Errorf("unexpected normalized title %q", item.TitleNormalized)
	}
	if item.ContentHash == "" || len(item.ContentHash) != 64 {
		t.Errorf("expected sha256 hex hash, got %q", item.ContentHash)
	}
	if item.Credibility != domain.CredibilityMedium {
		t.Errorf("expected medium credibility for finnhub news, got %s", item.Credibility)
	}
}

func TestNormalize_MissingPublishedAtUsesClock(t *testing.T) {
	fixed := time.Date(2026, 4, 3, 9, 0, 0, 0, time.UTC)
	n := NewNormalizer().WithClock(func() time.Time { return fixed })

	item, err := n.Normalize(&domain.RawItem{
		URL:        "https://example.com/a",
		Title:      "Headline",
		Source:     domain.SourceFinnhub,
		SourceType: domain.SourceTypeNews,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !item.PublishedAt.Equal(fixed) {
		t.Errorf("expected clock time, got %v", item.PublishedAt)
	}
}

func TestNormalize_InvalidInput(t *testing.T) {
	n := NewNormalizer()
	if _, err := n.Normalize(nil); err == nil {
		t.Error("expected error for nil item")
	}
	if _, err := n.Normalize(&domain.RawItem{Title: "x"}); err == nil {
		t.Error("expected error for missing url")
	}
	if _, err := n.Normalize(&domain.RawItem{URL: "https://example.com"}); err == nil {
		t.Error("expected error for missing title")
	}
}

func TestCredibilityFor(t *testing.T) {
	tests := []struct {
		source     domain.NewsSource
		sourceType domain.SourceType
		want       domain.Credibility
	}{
		{domain.SourceSEC, domain.SourceTypeFiling, domain.CredibilityHigh},
		{domain.SourceFinnhub, domain.SourceTypeFiling, domain.CredibilityHigh},
		{domain.SourceSEC, domain.SourceTypeNews, domain.CredibilityHigh},
		{domain.SourceFinnhub, domain.SourceTypeNews, domain.CredibilityMedium},
		{domain.NewsSource("unknown"), domain.SourceTypeNews, domain.CredibilityLow},
	}
	for _, tt := range tests {
		if got := CredibilityFor(tt.source, tt.sourceType); got != tt.want {
			t.Errorf("CredibilityFor(%s, %s) = %s, want %s", tt.source, tt.sourceType, got, tt.want)
		}
	}
}

func TestProcessor_DedupThenNormalize(t *testing.T) {
	day := time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC)
	items := []domain.RawItem{
		{URL: "https://example.com/a?utm_source=x", Title: "Chip demand surges", PublishedAt: day, Source: domain.SourceFinnhub, SourceType: domain.SourceTypeNews},
		{URL: "https://example.com/a", Title: "Totally different", PublishedAt: day, Source: domain.SourceFinnhub, SourceType: domain.SourceTypeNews},
		{URL: "https://example.com/b", Title: "Rates held steady", PublishedAt: day, Source: domain.SourceFinnhub, SourceType: domain.SourceTypeNews},
	}

	p := NewProcessor(dedup.New(dedup.Options{}), NewNormalizer(), zerolog.Nop())
	result := p.Process(items)

	if len(result.Items) != 2 {
		t.Fatalf("expected 2 normalized items, got %d", len(result.Items))
	}
	if result.RemovedCount != 1 {
		t.Errorf("expected 1 removed, got %d", result.RemovedCount)
	}
	if len(result.Raw) != len(result.Items) {
		t.Errorf("raw/item slices out of step: %d vs %d", len(result.Raw), len(result.Items))
	}
	if len(result.Clusters) != 1 {
		t.Errorf("expected 1 cluster, got %d", len(result.Clusters))
	}
}

func TestProcessor_SkipsBadItems(t *testing.T) {
	day := time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC)
	items := []domain.RawItem{
		{URL: "https://example.com/a", Title: "", PublishedAt: day, Source: domain.SourceFinnhub, SourceType: domain.SourceTypeNews},
		{URL: "https://example.com/b", Title: "Good item", PublishedAt: day, Source: domain.SourceFinnhub, SourceType: domain.SourceTypeNews},
	}

	p := NewProcessor(dedup.New(dedup.Options{}), NewNormalizer(), zerolog.Nop())
	result := p.Process(items)

	if len(result.Items) != 1 {
		t.Fatalf("expected bad item skipped, got %d items", len(result.Items))
	}
	if result.Items[0].Title != "Good item" {
		t.Errorf("wrong item survived: %q", result.Items[0].Title)
	}
}
