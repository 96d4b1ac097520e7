package memory

import (
	"context"
	"sort"
	"sync"

	"market-news-lab/internal/domain"
	"market-news-lab/internal/storage"
)

// RunStore is an in-memory implementation of storage.RunStore.
type RunStore struct {
	mu   sync.RWMutex
	data map[string]*domain.PipelineRun // keyed by run_id
}

// NewRunStore creates a new in-memory run store.
func NewRunStore() *RunStore {
	return &RunStore{data: make(map[string]*domain.PipelineRun)}
}

// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
func (s *RunStore) Insert(_ context.Context, run *domain.PipelineRun) error {
	if run == nil || run.RunID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[run.RunID]; exists {
		return storage.ErrDuplicateKey
	}

	runCopy := copyRun(run)
	s.data[run.RunID] = runCopy
	return nil
}

// Update replaces the stored run record. Returns ErrNotFound if not exists.
func (s *RunStore) Update(_ context.Context, run *domain.PipelineRun) error {
	if run == nil || run.RunID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[run.RunID]; !exists {
		return storage.ErrNotFound
	}

	s.data[run.RunID] = copyRun(run)
	return nil
}

// GetByID retrieves a run. Returns ErrNotFound if not exists.
func (s *RunStore) GetByID(_ context.Context, runID string) (*domain.PipelineRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, exists := s.data[runID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyRun(run), nil
}

// List retrieves runs newest first, optionally filtered by status.
func (s *RunStore) List(_ context.Context, status domain.RunStatus, limit, offset int) ([]*domain.PipelineRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PipelineRun
	for _, run := range s.data {
		if status != "" && run.Status != status {
			continue
		}
		result = append(result, copyRun(run))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].StartedAt.After(result[j].StartedAt)
	})

	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
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

func copyRun(run *domain.PipelineRun) *domain.PipelineRun {
	runCopy := *run
	if run.FinishedAt != nil {
		finished := *run.FinishedAt
		runCopy.FinishedAt = &finished
	}
	return &runCopy
}

// Verify interface compliance at compile time.
var _ storage.RunStore = (*RunStore)(nil)
