package memory

import (
	"context"
	"errors"
	"testing"

	"market-news-lab/internal/domain"
	"market-news-lab/internal/storage"
)

func TestWatchlistStore_InsertAndGet(t *testing.T) {
	store := NewWatchlistStore()
	ctx := context.Background()

	e := &domain.WatchlistEntry{
		Ticker:      "NVDA",
		CompanyName: "NVIDIA Corporation",
		Thesis:      "AI compute demand",
		RiskTags:    []string{"valuation"},
		Priority:    5,
	}

	if err := store.Insert(ctx, e); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByTicker(ctx, "NVDA")
	if err != nil {
		t.Fatalf("GetByTicker failed: %v", err)
	}
	if got.CompanyName != e.CompanyName {
		t.Errorf("CompanyName mismatch: got %s, want %s", got.CompanyName, e.CompanyName)
	}
	if got.Priority != 5 {
		t.Errorf("Priority mismatch: got %d, want 5", got.Priority)
	}
}

func TestWatchlistStore_DuplicateKey(t *testing.T) {
	store := NewWatchlistStore()
	ctx := context.Background()

	e := &domain.WatchlistEntry{Ticker: "NVDA", CompanyName: "NVIDIA", Priority: 3}

	if err := store.Insert(ctx, e); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}
	if err := store.Insert(ctx, e); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestWatchlistStore_UpdateAndDelete(t *testing.T) {
	store := NewWatchlistStore()
	ctx := context.Background()

	e := &domain.WatchlistEntry{Ticker: "AMD", CompanyName: "AMD", Priority: 3}
	if err := store.Insert(ctx, e); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	e.Thesis = "Server share gains"
	if err := store.Update(ctx, e); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	got, err := store.GetByTicker(ctx, "AMD")
	if err != nil {
		t.Fatalf("GetByTicker failed: %v", err)
	}
	if got.Thesis != "Server share gains" {
		t.Errorf("Thesis not updated: %q", got.Thesis)
	}

	if err := store.Delete(ctx, "AMD"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.GetByTicker(ctx, "AMD"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
	if err := store.Delete(ctx, "AMD"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for second delete, got %v", err)
	}
}

func TestWatchlistStore_ListOrdered(t *testing.T) {
	store := NewWatchlistStore()
	ctx := context.Background()

	for _, ticker := range []string{"TSLA", "AMD", "NVDA"} {
		if err := store.Insert(ctx, &domain.WatchlistEntry{Ticker: ticker, Priority: 3}); err != nil {
			t.Fatalf("Insert %s failed: %v", ticker, err)
		}
	}

	got, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	want := []string{"AMD", "NVDA", "TSLA"}
	for i, w := range want {
		if got[i].Ticker != w {
			t.Errorf("position %d: got %s, want %s", i, got[i].Ticker, w)
		}
	}
}

func TestWatchlistStore_CopySemantics(t *testing.T) {
	store := NewWatchlistStore()
	ctx := context.Background()

	e := &domain.WatchlistEntry{Ticker: "NVDA", RiskTags: []string{"a"}, Priority: 3}
	if err := store.Insert(ctx, e); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	// Mutating the inserted value must not affect the stored copy.
	e.RiskTags[0] = "mutated"
	got, err := store.GetByTicker(ctx, "NVDA")
	if err != nil {
		t.Fatalf("GetByTicker failed: %v", err)
	}
	if got.RiskTags[0] != "a" {
		t.Errorf("stored entry mutated externally: %v", got.RiskTags)
	}
}
