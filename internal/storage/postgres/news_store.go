package postgres

import (
	"context"
	"fmt"
	"strings"

	"market-news-lab/internal/domain"
	"market-news-lab/internal/storage"
)

// maxListLimit caps news listings regardless of the requested limit.
const maxListLimit = 200

// RawItemStore is a Postgres implementation of storage.RawItemStore.
type RawItemStore struct {
	pool *Pool
}

// NewRawItemStore creates a new Postgres raw item store.
func NewRawItemStore(pool *Pool) *RawItemStore {
	return &RawItemStore{pool: pool}
}

// Insert adds a raw item and assigns its ID.
func (s *RawItemStore) Insert(ctx context.Context, item *domain.RawItem) error {
	if item == nil || item.URL == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO raw_items (source, source_type, external_id, url, title, summary,
			published_at, tickers, fetched_at, raw_payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`

	var published any
	if !item.PublishedAt.IsZero() {
		published = item.PublishedAt
	}

	err := s.pool.QueryRow(ctx, query,
		item.Source, item.SourceType, item.ExternalID, item.URL, item.Title,
		item.Summary, published, item.Tickers, item.FetchedAt, item.RawPayload,
	).Scan(&item.ID)
	if err != nil {
		return fmt.Errorf("insert raw item: %w", err)
	}
	return nil
}

// GetByID retrieves a raw item. Returns ErrNotFound if not exists.
func (s *RawItemStore) GetByID(ctx context.Context, id int64) (*domain.RawItem, error) {
	query := `
		SELECT id, source, source_type, external_id, url, title, summary,
			COALESCE(published_at, 'epoch'::timestamptz), tickers, fetched_at, raw_payload
		FROM raw_items
		WHERE id = $1`

	var item domain.RawItem
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&item.ID, &item.Source, &item.SourceType, &item.ExternalID, &item.URL,
		&item.Title, &item.Summary, &item.PublishedAt, &item.Tickers,
		&item.FetchedAt, &item.RawPayload)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get raw item: %w", err)
	}
	return &item, nil
}

// NewsStore is a Postgres implementation of storage.NewsStore.
type NewsStore struct {
	pool *Pool
}

// NewNewsStore creates a new Postgres news store.
func NewNewsStore(pool *Pool) *NewsStore {
	return &NewsStore{pool: pool}
}

const newsColumns = `id, raw_item_id, canonical_url, title, title_normalized,
	content_hash, summary, published_at, source, source_type, credibility,
	tickers, created_at`

// Insert adds a news item and assigns its ID.
// Returns ErrDuplicateKey if canonical_url exists.
func (s *NewsStore) Insert(ctx context.Context, item *domain.NewsItem) error {
	if item == nil || item.CanonicalURL == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO news_items (raw_item_id, canonical_url, title, title_normalized,
			content_hash, summary, published_at, source, source_type, credibility, tickers)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at`

	var rawItemID any
	if item.RawItemID != 0 {
		rawItemID = item.RawItemID
	}

	err := s.pool.QueryRow(ctx, query,
		rawItemID, item.CanonicalURL, item.Title, item.TitleNormalized,
		item.ContentHash, item.Summary, item.PublishedAt, item.Source,
		item.SourceType, item.Credibility, item.Tickers,
	).Scan(&item.ID, &item.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert news item: %w", err)
	}
	return nil
}

// GetByID retrieves a news item. Returns ErrNotFound if not exists.
func (s *NewsStore) GetByID(ctx context.Context, id int64) (*domain.NewsItem, error) {
	query := `SELECT ` + newsColumns + ` FROM news_items WHERE id = $1`

	item, err := scanNewsRow(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get news item: %w", err)
	}
	return item, nil
}

// GetByCanonicalURL retrieves a news item by its canonical URL.
// Returns ErrNotFound if not exists.
func (s *NewsStore) GetByCanonicalURL(ctx context.Context, url string) (*domain.NewsItem, error) {
	query := `SELECT ` + newsColumns + ` FROM news_items WHERE canonical_url = $1`

	item, err := scanNewsRow(s.pool.QueryRow(ctx, query, url))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get news item by url: %w", err)
	}
	return item, nil
}

// List retrieves items matching the filter, newest first by published_at.
func (s *NewsStore) List(ctx context.Context, f storage.NewsFilter) ([]*domain.NewsItem, error) {
	var conds []string
	var args []any

	add := func(cond string, val any) {
		args = append(args, val)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.Ticker != "" {
		add("$%d = ANY(tickers)", f.Ticker)
	}
	if f.Source != "" {
		add("source = $%d", f.Source)
	}
	if f.SourceType != "" {
		add("source_type = $%d", f.SourceType)
	}
	if !f.Since.IsZero() {
		add("published_at >= $%d", f.Since)
	}
	if !f.Until.IsZero() {
		add("published_at <= $%d", f.Until)
	}

	query := `SELECT ` + newsColumns + ` FROM news_items`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	limit := f.Limit
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY published_at DESC LIMIT $%d", len(args))
	args = append(args, offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list news items: %w", err)
	}
	defer rows.Close()

	var result []*domain.NewsItem
	for rows.Next() {
		item, err := scanNewsRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan news item: %w", err)
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate news items: %w", err)
	}
	return result, nil
}

// rowScanner abstracts pgx.Row and pgx.Rows for shared scan helpers.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanNewsRow(row rowScanner) (*domain.NewsItem, error) {
	var item domain.NewsItem
	var rawItemID *int64
	err := row.Scan(
		&item.ID, &rawItemID, &item.CanonicalURL, &item.Title,
		&item.TitleNormalized, &item.ContentHash, &item.Summary,
		&item.PublishedAt, &item.Source, &item.SourceType, &item.Credibility,
		&item.Tickers, &item.CreatedAt)
	if err != nil {
		return nil, err
	}
	if rawItemID != nil {
		item.RawItemID = *rawItemID
	}
	return &item, nil
}

// Verify interface compliance at compile time.
var (
	_ storage.RawItemStore = (*RawItemStore)(nil)
	_ storage.NewsStore    = (*NewsStore)(nil)
)
