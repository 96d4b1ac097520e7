package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-news-lab/internal/domain"
	"market-news-lab/internal/storage"
)

func insertTestRawItem(t *testing.T, pool *Pool) *domain.RawItem {
	t.Helper()
	store := NewRawItemStore(pool)
	item := &domain.RawItem{
		Source:      domain.SourceFinnhub,
		SourceType:  domain.SourceTypeNews,
		ExternalID:  ptr("ext-1"),
		URL:         "https://example.com/raw?id=1",
		Title:       "Raw headline",
		Summary:     "Raw summary",
		PublishedAt: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
		Tickers:     []string{"NVDA"},
		FetchedAt:   time.Now().UTC(),
		RawPayload:  map[string]any{"headline": "Raw headline"},
	}
	require.NoError(t, store.Insert(context.Background(), item))
	require.NotZero(t, item.ID)
	return item
}

func testNewsItem(rawID int64, url string) *domain.NewsItem {
	return &domain.NewsItem{
		RawItemID:       rawID,
		CanonicalURL:    url,
		Title:           "NVIDIA beats estimates",
		TitleNormalized: "nvidia beats estimates",
		ContentHash:     "abc123",
		Summary:         "Revenue up",
		PublishedAt:     time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
		Source:          domain.SourceFinnhub,
		SourceType:      domain.SourceTypeNews,
		Credibility:     domain.CredibilityMedium,
		Tickers:         []string{"NVDA"},
	}
}

func TestNewsStore_InsertAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	raw := insertTestRawItem(t, pool)
	store := NewNewsStore(pool)

	item := testNewsItem(raw.ID, "https://example.com/story")
	require.NoError(t, store.Insert(ctx, item))
	require.NotZero(t, item.ID)
	assert.False(t, item.CreatedAt.IsZero())

	got, err := store.GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, item.CanonicalURL, got.CanonicalURL)
	assert.Equal(t, raw.ID, got.RawItemID)
	assert.Equal(t, []string{"NVDA"}, got.Tickers)
	assert.Equal(t, domain.CredibilityMedium, got.Credibility)

	byURL, err := store.GetByCanonicalURL(ctx, "https://example.com/story")
	require.NoError(t, err)
	assert.Equal(t, item.ID, byURL.ID)
}

func TestNewsStore_CanonicalURLUnique(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	store := NewNewsStore(pool)
	require.NoError(t, store.Insert(ctx, testNewsItem(0, "https://example.com/dup")))

	err := store.Insert(ctx, testNewsItem(0, "https://example.com/dup"))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestNewsStore_ListFilters(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	store := NewNewsStore(pool)
	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	first := testNewsItem(0, "https://example.com/1")
	first.PublishedAt = base
	second := testNewsItem(0, "https://example.com/2")
	second.PublishedAt = base.Add(time.Hour)
	second.Tickers = []string{"AMD"}
	third := testNewsItem(0, "https://example.com/3")
	third.PublishedAt = base.Add(2 * time.Hour)
	third.Source = domain.SourceSEC
	third.SourceType = domain.SourceTypeFiling
	third.Credibility = domain.CredibilityHigh

	for _, item := range []*domain.NewsItem{first, second, third} {
		require.NoError(t, store.Insert(ctx, item))
	}

	all, err := store.List(ctx, storage.NewsFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "https://example.com/3", all[0].CanonicalURL, "newest first")

	nvda, err := store.List(ctx, storage.NewsFilter{Ticker: "NVDA"})
	require.NoError(t, err)
	assert.Len(t, nvda, 2)

	filings, err := store.List(ctx, storage.NewsFilter{SourceType: domain.SourceTypeFiling})
	require.NoError(t, err)
	require.Len(t, filings, 1)
	assert.Equal(t, domain.CredibilityHigh, filings[0].Credibility)

	windowed, err := store.List(ctx, storage.NewsFilter{Since: base.Add(30 * time.Minute), Until: base.Add(90 * time.Minute)})
	require.NoError(t, err)
	assert.Len(t, windowed, 1)

	page, err := store.List(ctx, storage.NewsFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, page, 1)
}

func TestAnalysisStore_InsertAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	newsStore := NewNewsStore(pool)
	item := testNewsItem(0, "https://example.com/analyzed")
	require.NoError(t, newsStore.Insert(ctx, item))

	store := NewAnalysisStore(pool)
	result := &domain.AnalysisResult{
		NewsItemID:       item.ID,
		Provider:         "gemini",
		Model:            "gemini-2.0-flash",
		PromptVersion:    "v1",
		EventType:        domain.EventEarnings,
		ImpactDirection:  domain.ImpactBullish,
		ImpactHorizon:    domain.HorizonShort,
		ThesisRelation:   domain.ThesisSupports,
		Confidence:       domain.ConfidenceHigh,
		ConfidenceReason: "clear beat",
		Summary:          "Record revenue",
		KeyFacts:         []string{"revenue +22%", "guidance raised"},
		WatchNext:        "next guidance",
		TokensUsed:       512,
		CostUSD:          0.0004,
	}
	require.NoError(t, store.Insert(ctx, result))
	require.NotZero(t, result.ID)

	got, err := store.GetByNewsItemID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EventEarnings, got.EventType)
	assert.Equal(t, []string{"revenue +22%", "guidance raised"}, got.KeyFacts)
	assert.InDelta(t, 0.0004, got.CostUSD, 1e-9)

	// One result per news item.
	err = store.Insert(ctx, &domain.AnalysisResult{
		NewsItemID: item.ID, Provider: "gemini",
		EventType: domain.EventOther, ImpactDirection: domain.ImpactNeutral,
		ImpactHorizon: domain.HorizonShort, ThesisRelation: domain.ThesisUnrelated,
		Confidence: domain.ConfidenceLow,
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestClusterStore_RoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	store := NewClusterStore(pool)
	clusters := []*domain.DedupCluster{
		{RunID: "run-1", RepresentativeURL: "https://a", MemberURLs: []string{"https://b", "https://c"}, Method: domain.DedupURLExact},
		{RunID: "run-1", RepresentativeURL: "https://d", MemberURLs: []string{"https://e"}, Method: domain.DedupSimilarity, SimilarityScore: ptr(0.85)},
	}
	require.NoError(t, store.InsertBulk(ctx, clusters))
	assert.NotZero(t, clusters[0].ID)

	got, err := store.ListByRun(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"https://b", "https://c"}, got[0].MemberURLs)
	require.NotNil(t, got[1].SimilarityScore)
	assert.InDelta(t, 0.85, *got[1].SimilarityScore, 1e-9)
}
