package postgres

import (
	"context"
	"fmt"

	"market-news-lab/internal/domain"
	"market-news-lab/internal/storage"
)

// ClusterStore is a Postgres implementation of storage.ClusterStore.
type ClusterStore struct {
	pool *Pool
}

// NewClusterStore creates a new Postgres cluster store.
func NewClusterStore(pool *Pool) *ClusterStore {
	return &ClusterStore{pool: pool}
}

// InsertBulk adds clusters for a run.
func (s *ClusterStore) InsertBulk(ctx context.Context, clusters []*domain.DedupCluster) error {
	if len(clusters) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin cluster insert: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO dedup_clusters (run_id, representative_url, member_urls, method, similarity_score)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	for _, c := range clusters {
		if c == nil {
			return storage.ErrInvalidInput
		}
		err := tx.QueryRow(ctx, query,
			c.RunID, c.RepresentativeURL, c.MemberURLs, c.Method, c.SimilarityScore,
		).Scan(&c.ID)
		if err != nil {
			return fmt.Errorf("insert dedup cluster: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit cluster insert: %w", err)
	}
	return nil
}

// ListByRun retrieves all clusters recorded for a run.
func (s *ClusterStore) ListByRun(ctx context.Context, runID string) ([]*domain.DedupCluster, error) {
	query := `
		SELECT id, run_id, representative_url, member_urls, method, similarity_score
		FROM dedup_clusters
		WHERE run_id = $1
		ORDER BY id ASC`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("list dedup clusters: %w", err)
	}
	defer rows.Close()

	var result []*domain.DedupCluster
	for rows.Next() {
		var c domain.DedupCluster
		if err := rows.Scan(&c.ID, &c.RunID, &c.RepresentativeURL,
			&c.MemberURLs, &c.Method, &c.SimilarityScore); err != nil {
			return nil, fmt.Errorf("scan dedup cluster: %w", err)
		}
		result = append(result, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dedup clusters: %w", err)
	}
	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.ClusterStore = (*ClusterStore)(nil)
