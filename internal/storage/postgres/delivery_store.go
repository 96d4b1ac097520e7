package postgres

import (
	"context"
	"fmt"

	"market-news-lab/internal/domain"
	"market-news-lab/internal/storage"
)

// DeliveryStore is a Postgres implementation of storage.DeliveryStore.
type DeliveryStore struct {
	pool *Pool
}

// NewDeliveryStore creates a new Postgres delivery store.
func NewDeliveryStore(pool *Pool) *DeliveryStore {
	return &DeliveryStore{pool: pool}
}

// Insert adds a delivery log and assigns its ID.
func (s *DeliveryStore) Insert(ctx context.Context, log *domain.DeliveryLog) error {
	if log == nil || log.RunID == "" || log.Channel == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO delivery_logs (run_id, channel, status, error_message, retry_count, channel_ref)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err := s.pool.QueryRow(ctx, query,
		log.RunID, log.Channel, log.Status, log.ErrorMessage, log.RetryCount, log.ChannelRef,
	).Scan(&log.ID, &log.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert delivery log: %w", err)
	}
	return nil
}

// Update replaces a stored log. Returns ErrNotFound if not exists.
func (s *DeliveryStore) Update(ctx context.Context, log *domain.DeliveryLog) error {
	if log == nil || log.ID == 0 {
		return storage.ErrInvalidInput
	}

	query := `
		UPDATE delivery_logs
		SET status = $2, error_message = $3, retry_count = $4, channel_ref = $5
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query,
		log.ID, log.Status, log.ErrorMessage, log.RetryCount, log.ChannelRef)
	if err != nil {
		return fmt.Errorf("update delivery log: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListByRun retrieves all delivery logs for a run.
func (s *DeliveryStore) ListByRun(ctx context.Context, runID string) ([]*domain.DeliveryLog, error) {
	query := `
		SELECT id, run_id, channel, status, error_message, retry_count, channel_ref, created_at
		FROM delivery_logs
		WHERE run_id = $1
		ORDER BY id ASC`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("list delivery logs: %w", err)
	}
	defer rows.Close()

	var result []*domain.DeliveryLog
	for rows.Next() {
		var log domain.DeliveryLog
		if err := rows.Scan(&log.ID, &log.RunID, &log.Channel, &log.Status,
			&log.ErrorMessage, &log.RetryCount, &log.ChannelRef, &log.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan delivery log: %w", err)
		}
		result = append(result, &log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate delivery logs: %w", err)
	}
	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.DeliveryStore = (*DeliveryStore)(nil)
