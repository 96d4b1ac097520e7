package storage

import (
	"context"
	"time"

	"market-news-lab/internal/domain"
)

// WatchlistStore provides access to watchlist storage.
type WatchlistStore interface {
	// Insert adds a new entry. Returns ErrDuplicateKey if ticker exists.
	Insert(ctx context.Context, e *domain.WatchlistEntry) error

	// Update replaces an existing entry. Returns ErrNotFound if ticker does not exist.
	Update(ctx context.Context, e *domain.WatchlistEntry) error

	// Delete removes an entry by ticker. Returns ErrNotFound if not exists.
	Delete(ctx context.Context, ticker string) error

	// GetByTicker retrieves one entry. Returns ErrNotFound if not exists.
	GetByTicker(ctx context.Context, ticker string) (*domain.WatchlistEntry, error)

	// List retrieves all entries ordered by ticker ASC.
	List(ctx context.Context) ([]*domain.WatchlistEntry, error)
}

// RawItemStore provides access to raw_items storage.
type RawItemStore interface {
	// Insert adds a raw item and assigns its ID.
	Insert(ctx context.Context, item *domain.RawItem) error

	// GetByID retrieves a raw item. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id int64) (*domain.RawItem, error)
}

// NewsFilter narrows a news listing. Zero values mean "no constraint".
type NewsFilter struct {
	Ticker     string
	Source     domain.NewsSource
	SourceType domain.SourceType
	Since      time.Time
	Until      time.Time
	Limit      int // capped at 200 by implementations
	Offset     int
}

// NewsStore provides access to news_items storage.
type NewsStore interface {
	// Insert adds a news item and assigns its ID.
	// Returns ErrDuplicateKey if canonical_url exists.
	Insert(ctx context.Context, item *domain.NewsItem) error

	// GetByID retrieves a news item. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id int64) (*domain.NewsItem, error)

	// GetByCanonicalURL retrieves a news item by its canonical URL.
	// Returns ErrNotFound if not exists.
	GetByCanonicalURL(ctx context.Context, url string) (*domain.NewsItem, error)

	// List retrieves items matching the filter, newest first by published_at.
	List(ctx context.Context, f NewsFilter) ([]*domain.NewsItem, error)
}

// AnalysisStore provides access to analysis_results storage.
type AnalysisStore interface {
	// Insert adds an analysis result and assigns its ID.
	// Returns ErrDuplicateKey if news_item_id already has a result.
	Insert(ctx context.Context, r *domain.AnalysisResult) error

	// GetByNewsItemID retrieves the result for a news item.
	// Returns ErrNotFound if not exists.
	GetByNewsItemID(ctx context.Context, newsItemID int64) (*domain.AnalysisResult, error)
}

// ClusterStore provides access to dedup_clusters storage.
type ClusterStore interface {
	// InsertBulk adds clusters for a run.
	InsertBulk(ctx context.Context, clusters []*domain.DedupCluster) error

	// ListByRun retrieves all clusters recorded for a run.
	ListByRun(ctx context.Context, runID string) ([]*domain.DedupCluster, error)
}

// RunStore provides access to pipeline_runs storage.
type RunStore interface {
	// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, run *domain.PipelineRun) error

	// Update replaces the stored run record. Returns ErrNotFound if not exists.
	Update(ctx context.Context, run *domain.PipelineRun) error

	// GetByID retrieves a run. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*domain.PipelineRun, error)

	// List retrieves runs newest first, optionally filtered by status.
	List(ctx context.Context, status domain.RunStatus, limit, offset int) ([]*domain.PipelineRun, error)
}

// DeliveryStore provides access to delivery_logs storage.
type DeliveryStore interface {
	// Insert adds a delivery log and assigns its ID.
	Insert(ctx context.Context, log *domain.DeliveryLog) error

	// Update replaces a stored log. Returns ErrNotFound if not exists.
	Update(ctx context.Context, log *domain.DeliveryLog) error

	// ListByRun retrieves all delivery logs for a run.
	ListByRun(ctx context.Context, runID string) ([]*domain.DeliveryLog, error)
}
