package memory

import (
	"context"
	"sync"

	"market-news-lab/internal/domain"
	"market-news-lab/internal/storage"
)

// ClusterStore is an in-memory implementation of storage.ClusterStore.
type ClusterStore struct {
	mu     sync.RWMutex
	nextID int64
	data   []*domain.DedupCluster
}

// NewClusterStore creates a new in-memory cluster store.
func NewClusterStore() *ClusterStore {
	return &ClusterStore{}
}

// InsertBulk adds clusters for a run.
func (s *ClusterStore) InsertBulk(_ context.Context, clusters []*domain.DedupCluster) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range clusters {
		if c == nil {
			return storage.ErrInvalidInput
		}
		s.nextID++
		c.ID = s.nextID
		s.data = append(s.data, copyCluster(c))
	}
	return nil
}

// ListByRun retrieves all clusters recorded for a run.
func (s *ClusterStore) ListByRun(_ context.Context, runID string) ([]*domain.DedupCluster, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.DedupCluster
	for _, c := range s.data {
		if c.RunID == runID {
			result = append(result, copyCluster(c))
		}
	}
	return result, nil
}

func copyCluster(c *domain.DedupCluster) *domain.DedupCluster {
	clusterCopy := *c
	clusterCopy.MemberURLs = append([]string(nil), c.MemberURLs...)
	if c.SimilarityScore != nil {
		score := *c.SimilarityScore
		clusterCopy.SimilarityScore = &score
	}
	return &clusterCopy
}

// Verify interface compliance at compile time.
var _ storage.ClusterStore = (*ClusterStore)(nil)
