package postgres

import (
	"context"
	"fmt"

	"market-news-lab/internal/domain"
	"market-news-lab/internal/storage"
)

// RunStore is a Postgres implementation of storage.RunStore.
type RunStore struct {
	pool *Pool
}

// NewRunStore creates a new Postgres run store.
func NewRunStore(pool *Pool) *RunStore {
	return &RunStore{pool: pool}
}

const runColumns = `run_id, started_at, finished_at, status, raw_collected,
	after_normalize, after_dedup, analyzed_success, analyzed_failed, delivered,
	error_log`

// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
func (s *RunStore) Insert(ctx context.Context, run *domain.PipelineRun) error {
	if run == nil || run.RunID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO pipeline_runs (` + runColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := s.pool.Exec(ctx, query,
		run.RunID, run.StartedAt, run.FinishedAt, run.Status,
		run.Counters.RawCollected, run.Counters.AfterNormalize,
		run.Counters.AfterDedup, run.Counters.AnalyzedSuccess,
		run.Counters.AnalyzedFailed, run.Counters.Delivered, run.ErrorLog)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert pipeline run: %w", err)
	}
	return nil
}

// Update replaces the stored run record. Returns ErrNotFound if not exists.
func (s *RunStore) Update(ctx context.Context, run *domain.PipelineRun) error {
	if run == nil || run.RunID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		UPDATE pipeline_runs
		SET started_at = $2, finished_at = $3, status = $4, raw_collected = $5,
			after_normalize = $6, after_dedup = $7, analyzed_success = $8,
			analyzed_failed = $9, delivered = $10, error_log = $11
		WHERE run_id = $1`

	tag, err := s.pool.Exec(ctx, query,
		run.RunID, run.StartedAt, run.FinishedAt, run.Status,
		run.Counters.RawCollected, run.Counters.AfterNormalize,
		run.Counters.AfterDedup, run.Counters.AnalyzedSuccess,
		run.Counters.AnalyzedFailed, run.Counters.Delivered, run.ErrorLog)
	if err != nil {
		return fmt.Errorf("update pipeline run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetByID retrieves a run. Returns ErrNotFound if not exists.
func (s *RunStore) GetByID(ctx context.Context, runID string) (*domain.PipelineRun, error) {
	query := `SELECT ` + runColumns + ` FROM pipeline_runs WHERE run_id = $1`

	run, err := scanRunRow(s.pool.QueryRow(ctx, query, runID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get pipeline run: %w", err)
	}
	return run, nil
}

// List retrieves runs newest first, optionally filtered by status.
func (s *RunStore) List(ctx context.Context, status domain.RunStatus, limit, offset int) ([]*domain.PipelineRun, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	var query string
	var args []any
	if status != "" {
		query = `SELECT ` + runColumns + ` FROM pipeline_runs
			WHERE status = $1 ORDER BY started_at DESC LIMIT $2 OFFSET $3`
		args = []any{status, limit, offset}
	} else {
		query = `SELECT ` + runColumns + ` FROM pipeline_runs
			ORDER BY started_at DESC LIMIT $1 OFFSET $2`
		args = []any{limit, offset}
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list pipeline runs: %w", err)
	}
	defer rows.Close()

	var result []*domain.PipelineRun
	for rows.Next() {
		run, err := scanRunRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pipeline run: %w", err)
		}
		result = append(result, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pipeline runs: %w", err)
	}
	return result, nil
}

func scanRunRow(row rowScanner) (*domain.PipelineRun, error) {
	var run domain.PipelineRun
	err := row.Scan(
		&run.RunID, &run.StartedAt, &run.FinishedAt, &run.Status,
		&run.Counters.RawCollected, &run.Counters.AfterNormalize,
		&run.Counters.AfterDedup, &run.Counters.AnalyzedSuccess,
		&run.Counters.AnalyzedFailed, &run.Counters.Delivered, &run.ErrorLog)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// Verify interface compliance at compile time.
var _ storage.RunStore = (*RunStore)(nil)
