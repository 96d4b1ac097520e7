package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"market-news-lab/internal/domain"
	"market-news-lab/internal/storage"
)

func newsItem(url, ticker string, published time.Time) *domain.NewsItem {
	return &domain.NewsItem{
		CanonicalURL:    url,
		Title:           "Title for " + url,
		TitleNormalized: "title for " + url,
		ContentHash:     "hash-" + url,
		PublishedAt:     published,
		Source:          domain.SourceFinnhub,
		SourceType:      domain.SourceTypeNews,
		Credibility:     domain.CredibilityMedium,
		Tickers:         []string{ticker},
	}
}

func TestNewsStore_InsertAssignsID(t *testing.T) {
	store := NewNewsStore()
	ctx := context.Background()

	item := newsItem("https://example.com/a", "NVDA", time.Now())
	if err := store.Insert(ctx, item); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if item.ID == 0 {
		t.Error("expected ID assigned on insert")
	}

	got, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.CanonicalURL != item.CanonicalURL {
		t.Errorf("CanonicalURL mismatch: got %s", got.CanonicalURL)
	}
}

func TestNewsStore_CanonicalURLUnique(t *testing.T) {
	store := NewNewsStore()
	ctx := context.Background()

	if err := store.Insert(ctx, newsItem("https://example.com/a", "NVDA", time.Now())); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}
	err := store.Insert(ctx, newsItem("https://example.com/a", "AMD", time.Now()))
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestNewsStore_GetByCanonicalURL(t *testing.T) {
	store := NewNewsStore()
	ctx := context.Background()

	item := newsItem("https://example.com/b", "NVDA", time.Now())
	if err := store.Insert(ctx, item); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByCanonicalURL(ctx, "https://example.com/b")
	if err != nil {
		t.Fatalf("GetByCanonicalURL failed: %v", err)
	}
	if got.ID != item.ID {
		t.Errorf("ID mismatch: got %d, want %d", got.ID, item.ID)
	}

	if _, err := store.GetByCanonicalURL(ctx, "https://example.com/missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestNewsStore_ListFiltersAndOrder(t *testing.T) {
	store := NewNewsStore()
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	items := []*domain.NewsItem{
		newsItem("https://example.com/1", "NVDA", base),
		newsItem("https://example.com/2", "AMD", base.Add(time.Hour)),
		newsItem("https://example.com/3", "NVDA", base.Add(2*time.Hour)),
	}
	items[2].SourceType = domain.SourceTypeFiling
	items[2].Source = domain.SourceSEC
	for _, item := range items {
		if err := store.Insert(ctx, item); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	// Newest first, no filter.
	all, err := store.List(ctx, storage.NewsFilter{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 items, got %d", len(all))
	}
	if !all[0].PublishedAt.After(all[1].PublishedAt) {
		t.Error("expected newest-first ordering")
	}

	// Ticker filter.
	nvda, err := store.List(ctx, storage.NewsFilter{Ticker: "NVDA"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(nvda) != 2 {
		t.Errorf("expected 2 NVDA items, got %d", len(nvda))
	}

	// Source type filter.
	filings, err := store.List(ctx, storage.NewsFilter{SourceType: domain.SourceTypeFiling})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(filings) != 1 {
		t.Errorf("expected 1 filing, got %d", len(filings))
	}

	// Window filter.
	windowed, err := store.List(ctx, storage.NewsFilter{Since: base.Add(30 * time.Minute)})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(windowed) != 2 {
		t.Errorf("expected 2 items in window, got %d", len(windowed))
	}

	// Limit and offset.
	page, err := store.List(ctx, storage.NewsFilter{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(page) != 1 {
		t.Errorf("expected 1 item page, got %d", len(page))
	}
}

func TestRawItemStore_InsertAndGet(t *testing.T) {
	store := NewRawItemStore()
	ctx := context.Background()

	item := &domain.RawItem{
		Source:     domain.SourceFinnhub,
		SourceType: domain.SourceTypeNews,
		URL:        "https://example.com/raw",
		Title:      "Raw headline",
		Tickers:    []string{"NVDA"},
		FetchedAt:  time.Now(),
	}
	if err := store.Insert(ctx, item); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if item.ID == 0 {
		t.Error("expected ID assigned")
	}

	got, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.URL != item.URL {
		t.Errorf("URL mismatch: got %s", got.URL)
	}

	if _, err := store.GetByID(ctx, 999); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestAnalysisStore_OnePerNewsItem(t *testing.T) {
	store := NewAnalysisStore()
	ctx := context.Background()

	r := &domain.AnalysisResult{
		NewsItemID:      42,
		Provider:        "gemini",
		EventType:       domain.EventEarnings,
		ImpactDirection: domain.ImpactBullish,
		ImpactHorizon:   domain.HorizonShort,
		ThesisRelation:  domain.ThesisSupports,
		Confidence:      domain.ConfidenceHigh,
	}
	if err := store.Insert(ctx, r); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := store.Insert(ctx, &domain.AnalysisResult{NewsItemID: 42}); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}

	got, err := store.GetByNewsItemID(ctx, 42)
	if err != nil {
		t.Fatalf("GetByNewsItemID failed: %v", err)
	}
	if got.EventType != domain.EventEarnings {
		t.Errorf("EventType mismatch: got %s", got.EventType)
	}
}
