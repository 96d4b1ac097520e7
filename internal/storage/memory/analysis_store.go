package memory

import (
	"context"
	"sync"

	"market-news-lab/internal/domain"
	"market-news-lab/internal/storage"
)

// AnalysisStore is an in-memory implementation of storage.AnalysisStore.
type AnalysisStore struct {
	mu     sync.RWMutex
	nextID int64
	byNews map[int64]*domain.AnalysisResult // keyed by news_item_id
}

// NewAnalysisStore creates a new in-memory analysis store.
func NewAnalysisStore() *AnalysisStore {
	return &AnalysisStore{byNews: make(map[int64]*domain.AnalysisResult)}
}

// Insert adds an analysis result and assigns its ID.
// Returns ErrDuplicateKey if news_item_id already has a result.
func (s *AnalysisStore) Insert(_ context.Context, r *domain.AnalysisResult) error {
	if r == nil || r.NewsItemID == 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byNews[r.NewsItemID]; exists {
		return storage.ErrDuplicateKey
	}

	s.nextID++
	r.ID = s.nextID
	resultCopy := copyAnalysis(r)
	s.byNews[r.NewsItemID] = resultCopy
	return nil
}

// GetByNewsItemID retrieves the result for a news item.
// Returns ErrNotFound if not exists.
func (s *AnalysisStore) GetByNewsItemID(_ context.Context, newsItemID int64) (*domain.AnalysisResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.byNews[newsItemID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyAnalysis(r), nil
}

func copyAnalysis(r *domain.AnalysisResult) *domain.AnalysisResult {
	resultCopy := *r
	resultCopy.KeyFacts = append([]string(nil), r.KeyFacts...)
	return &resultCopy
}

// Verify interface compliance at compile time.
var _ storage.AnalysisStore = (*AnalysisStore)(nil)
