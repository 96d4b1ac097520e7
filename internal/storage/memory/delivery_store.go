package memory

import (
	"context"
	"sync"

	"market-news-lab/internal/domain"
	"market-news-lab/internal/storage"
)

// DeliveryStore is an in-memory implementation of storage.DeliveryStore.
type DeliveryStore struct {
	mu     sync.RWMutex
	nextID int64
	data   map[int64]*domain.DeliveryLog
}

// NewDeliveryStore creates a new in-memory delivery store.
func NewDeliveryStore() *DeliveryStore {
	return &DeliveryStore{data: make(map[int64]*domain.DeliveryLog)}
}

// Insert adds a delivery log and assigns its ID.
func (s *DeliveryStore) Insert(_ context.Context, log *domain.DeliveryLog) error {
	if log == nil || log.RunID == "" || log.Channel == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	log.ID = s.nextID
	logCopy := *log
	s.data[log.ID] = &logCopy
	return nil
}

// Update replaces a stored log. Returns ErrNotFound if not exists.
func (s *DeliveryStore) Update(_ context.Context, log *domain.DeliveryLog) error {
	if log == nil || log.ID == 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[log.ID]; !exists {
		return storage.ErrNotFound
	}

	logCopy := *log
	s.data[log.ID] = &logCopy
	return nil
}

// ListByRun retrieves all delivery logs for a run.
func (s *DeliveryStore) ListByRun(_ context.Context, runID string) ([]*domain.DeliveryLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.DeliveryLog
	for _, log := range s.data {
		if log.RunID == runID {
			logCopy := *log
			result = append(result, &logCopy)
		}
	}
	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.DeliveryStore = (*DeliveryStore)(nil)
