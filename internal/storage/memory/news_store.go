package memory

import (
	"context"
	"sort"
	"sync"

	"market-news-lab/internal/domain"
	"market-news-lab/internal/storage"
)

// maxListLimit caps news listings regardless of the requested limit.
const maxListLimit = 200

// RawItemStore is an in-memory implementation of storage.RawItemStore.
type RawItemStore struct {
	mu     sync.RWMutex
	nextID int64
	data   map[int64]*domain.RawItem
}

// NewRawItemStore creates a new in-memory raw item store.
func NewRawItemStore() *RawItemStore {
	return &RawItemStore{data: make(map[int64]*domain.RawItem)}
}

// Insert adds a raw item and assigns its ID.
func (s *RawItemStore) Insert(_ context.Context, item *domain.RawItem) error {
	if item == nil || item.URL == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	item.ID = s.nextID
	itemCopy := copyRawItem(item)
	s.data[item.ID] = itemCopy
	return nil
}

// GetByID retrieves a raw item. Returns ErrNotFound if not exists.
func (s *RawItemStore) GetByID(_ context.Context, id int64) (*domain.RawItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyRawItem(item), nil
}

func copyRawItem(item *domain.RawItem) *domain.RawItem {
	itemCopy := *item
	itemCopy.Tickers = append([]string(nil), item.Tickers...)
	if item.ExternalID != nil {
		id := *item.ExternalID
		itemCopy.ExternalID = &id
	}
	if item.RawPayload != nil {
		payload := make(map[string]any, len(item.RawPayload))
		for k, v := range item.RawPayload {
			payload[k] = v
		}
		itemCopy.RawPayload = payload
	}
	return &itemCopy
}

// NewsStore is an in-memory implementation of storage.NewsStore.
type NewsStore struct {
	mu     sync.RWMutex
	nextID int64
	data   map[int64]*domain.NewsItem
	byURL  map[string]int64 // canonical_url uniqueness index
}

// NewNewsStore creates a new in-memory news store.
func NewNewsStore() *NewsStore {
	return &NewsStore{
		data:  make(map[int64]*domain.NewsItem),
		byURL: make(map[string]int64),
	}
}

// Insert adds a news item and assigns its ID.
// Returns ErrDuplicateKey if canonical_url exists.
func (s *NewsStore) Insert(_ context.Context, item *domain.NewsItem) error {
	if item == nil || item.CanonicalURL == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byURL[item.CanonicalURL]; exists {
		return storage.ErrDuplicateKey
	}

	s.nextID++
	item.ID = s.nextID
	itemCopy := copyNewsItem(item)
	s.data[item.ID] = itemCopy
	s.byURL[item.CanonicalURL] = item.ID
	return nil
}

// GetByID retrieves a news item. Returns ErrNotFound if not exists.
func (s *NewsStore) GetByID(_ context.Context, id int64) (*domain.NewsItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyNewsItem(item), nil
}

// GetByCanonicalURL retrieves a news item by its canonical URL.
// Returns ErrNotFound if not exists.
func (s *NewsStore) GetByCanonicalURL(_ context.Context, url string) (*domain.NewsItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.byURL[url]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyNewsItem(s.data[id]), nil
}

// List retrieves items matching the filter, newest first by published_at.
func (s *NewsStore) List(_ context.Context, f storage.NewsFilter) ([]*domain.NewsItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.NewsItem
	for _, item := range s.data {
		if !matchesFilter(item, f) {
			continue
		}
		result = append(result, copyNewsItem(item))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].PublishedAt.After(result[j].PublishedAt)
	})

	limit := f.Limit
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(result) {
		return nil, nil
	}
	end := offset + limit
	if end > len(result) {
		end = len(result)
	}
	return result[offset:end], nil
}

func matchesFilter(item *domain.NewsItem, f storage.NewsFilter) bool {
	if f.Ticker != "" {
		found := false
		for _, t := range item.Tickers {
			if t == f.Ticker {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Source != "" && item.Source != f.Source {
		return false
	}
	if f.SourceType != "" && item.SourceType != f.SourceType {
		return false
	}
	if !f.Since.IsZero() && item.PublishedAt.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && item.PublishedAt.After(f.Until) {
		return false
	}
	return true
}

func copyNewsItem(item *domain.NewsItem) *domain.NewsItem {
	itemCopy := *item
	itemCopy.Tickers = append([]string(nil), item.Tickers...)
	return &itemCopy
}

// Verify interface compliance at compile time.
var (
	_ storage.RawItemStore = (*RawItemStore)(nil)
	_ storage.NewsStore    = (*NewsStore)(nil)
)
