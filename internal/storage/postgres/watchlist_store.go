package postgres

import (
	"context"
	"fmt"

	"market-news-lab/internal/domain"
	"market-news-lab/internal/storage"
)

// WatchlistStore is a Postgres implementation of storage.WatchlistStore.
type WatchlistStore struct {
	pool *Pool
}

// NewWatchlistStore creates a new Postgres watchlist store.
func NewWatchlistStore(pool *Pool) *WatchlistStore {
	return &WatchlistStore{pool: pool}
}

// Insert adds a new entry. Returns ErrDuplicateKey if ticker exists.
func (s *WatchlistStore) Insert(ctx context.Context, e *domain.WatchlistEntry) error {
	if e == nil || e.Ticker == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO watchlist (ticker, company_name, thesis, risk_tags, priority, sector)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.pool.Exec(ctx, query,
		e.Ticker, e.CompanyName, e.Thesis, e.RiskTags, e.Priority, e.Sector)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert watchlist entry: %w", err)
	}
	return nil
}

// Update replaces an existing entry. Returns ErrNotFound if not exists.
func (s *WatchlistStore) Update(ctx context.Context, e *domain.WatchlistEntry) error {
	if e == nil || e.Ticker == "" {
		return storage.ErrInvalidInput
	}

	query := `
		UPDATE watchlist
		SET company_name = $2, thesis = $3, risk_tags = $4, priority = $5, sector = $6
		WHERE ticker = $1`

	tag, err := s.pool.Exec(ctx, query,
		e.Ticker, e.CompanyName, e.Thesis, e.RiskTags, e.Priority, e.Sector)
	if err != nil {
		return fmt.Errorf("update watchlist entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Delete removes an entry by ticker. Returns ErrNotFound if not exists.
func (s *WatchlistStore) Delete(ctx context.Context, ticker string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM watchlist WHERE ticker = $1`, ticker)
	if err != nil {
		return fmt.Errorf("delete watchlist entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetByTicker retrieves one entry. Returns ErrNotFound if not exists.
func (s *WatchlistStore) GetByTicker(ctx context.Context, ticker string) (*domain.WatchlistEntry, error) {
	query := `
		SELECT ticker, company_name, thesis, risk_tags, priority, sector
		FROM watchlist
		WHERE ticker = $1`

	var e domain.WatchlistEntry
	err := s.pool.QueryRow(ctx, query, ticker).Scan(
		&e.Ticker, &e.CompanyName, &e.Thesis, &e.RiskTags, &e.Priority, &e.Sector)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get watchlist entry: %w", err)
	}
	return &e, nil
}

// List retrieves all entries ordered by ticker ASC.
func (s *WatchlistStore) List(ctx context.Context) ([]*domain.WatchlistEntry, error) {
	query := `
		SELECT ticker, company_name, thesis, risk_tags, priority, sector
		FROM watchlist
		ORDER BY ticker ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list watchlist: %w", err)
	}
	defer rows.Close()

	var result []*domain.WatchlistEntry
	for rows.Next() {
		var e domain.WatchlistEntry
		if err := rows.Scan(&e.Ticker, &e.CompanyName, &e.Thesis, &e.RiskTags, &e.Priority, &e.Sector); err != nil {
			return nil, fmt.Errorf("scan watchlist entry: %w", err)
		}
		result = append(result, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate watchlist: %w", err)
	}
	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.WatchlistStore = (*WatchlistStore)(nil)
