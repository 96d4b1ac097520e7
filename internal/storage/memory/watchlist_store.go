package memory

import (
	"context"
	"sort"
	"sync"

	"market-news-lab/internal/domain"
	"market-news-lab/internal/storage"
)

// WatchlistStore is an in-memory implementation of storage.WatchlistStore.
type WatchlistStore struct {
	mu   sync.RWMutex
	data map[string]*domain.WatchlistEntry // keyed by ticker
}

// NewWatchlistStore creates a new in-memory watchlist store.
func NewWatchlistStore() *WatchlistStore {
	return &WatchlistStore{
		data: make(map[string]*domain.WatchlistEntry),
	}
}

// Insert adds a new entry. Returns ErrDuplicateKey if ticker exists.
func (s *WatchlistStore) Insert(_ context.Context, e *domain.WatchlistEntry) error {
	if e == nil || e.Ticker == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[e.Ticker]; exists {
		return storage.ErrDuplicateKey
	}

	entryCopy := copyEntry(e)
	s.data[e.Ticker] = entryCopy
	return nil
}

// Update replaces an existing entry. Returns ErrNotFound if not exists.
func (s *WatchlistStore) Update(_ context.Context, e *domain.WatchlistEntry) error {
	if e == nil || e.Ticker == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[e.Ticker]; !exists {
		return storage.ErrNotFound
	}

	s.data[e.Ticker] = copyEntry(e)
	return nil
}

// Delete removes an entry by ticker. Returns ErrNotFound if not exists.
func (s *WatchlistStore) Delete(_ context.Context, ticker string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[ticker]; !exists {
		return storage.ErrNotFound
	}

	delete(s.data, ticker)
	return nil
}

// GetByTicker retrieves one entry. Returns ErrNotFound if not exists.
func (s *WatchlistStore) GetByTicker(_ context.Context, ticker string) (*domain.WatchlistEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.data[ticker]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyEntry(e), nil
}

// List retrieves all entries ordered by ticker ASC.
func (s *WatchlistStore) List(_ context.Context) ([]*domain.WatchlistEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.WatchlistEntry, 0, len(s.data))
	for _, e := range s.data {
		result = append(result, copyEntry(e))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Ticker < result[j].Ticker
	})
	return result, nil
}

func copyEntry(e *domain.WatchlistEntry) *domain.WatchlistEntry {
	entryCopy := *e
	entryCopy.RiskTags = append([]string(nil), e.RiskTags...)
	if e.Sector != nil {
		sector := *e.Sector
		entryCopy.Sector = &sector
	}
	return &entryCopy
}

// Verify interface compliance at compile time.
var _ storage.WatchlistStore = (*WatchlistStore)(nil)
