package postgres

import (
	"context"
	"fmt"

	"market-news-lab/internal/domain"
	"market-news-lab/internal/storage"
)

// AnalysisStore is a Postgres implementation of storage.AnalysisStore.
type AnalysisStore struct {
	pool *Pool
}

// NewAnalysisStore creates a new Postgres analysis store.
func NewAnalysisStore(pool *Pool) *AnalysisStore {
	return &AnalysisStore{pool: pool}
}

// Insert adds an analysis result and assigns its ID.
// Returns ErrDuplicateKey if news_item_id already has a result.
func (s *AnalysisStore) Insert(ctx context.Context, r *domain.AnalysisResult) error {
	if r == nil || r.NewsItemID == 0 {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO analysis_results (news_item_id, provider, model, prompt_version,
			event_type, impact_direction, impact_horizon, thesis_relation, confidence,
			confidence_reason, summary, key_facts, watch_next, tokens_used, cost_usd)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id`

	err := s.pool.QueryRow(ctx, query,
		r.NewsItemID, r.Provider, r.Model, r.PromptVersion, r.EventType,
		r.ImpactDirection, r.ImpactHorizon, r.ThesisRelation, r.Confidence,
		r.ConfidenceReason, r.Summary, r.KeyFacts, r.WatchNext, r.TokensUsed,
		r.CostUSD,
	).Scan(&r.ID)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert analysis result: %w", err)
	}
	return nil
}

// GetByNewsItemID retrieves the result for a news item.
// Returns ErrNotFound if not exists.
func (s *AnalysisStore) GetByNewsItemID(ctx context.Context, newsItemID int64) (*domain.AnalysisResult, error) {
	query := `
		SELECT id, news_item_id, provider, model, prompt_version, event_type,
			impact_direction, impact_horizon, thesis_relation, confidence,
			confidence_reason, summary, key_facts, watch_next, tokens_used, cost_usd
		FROM analysis_results
		WHERE news_item_id = $1`

	var r domain.AnalysisResult
	err := s.pool.QueryRow(ctx, query, newsItemID).Scan(
		&r.ID, &r.NewsItemID, &r.Provider, &r.Model, &r.PromptVersion,
		&r.EventType, &r.ImpactDirection, &r.ImpactHorizon, &r.ThesisRelation,
		&r.Confidence, &r.ConfidenceReason, &r.Summary, &r.KeyFacts,
		&r.WatchNext, &r.TokensUsed, &r.CostUSD)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get analysis result: %w", err)
	}
	return &r, nil
}

// Verify interface compliance at compile time.
var _ storage.AnalysisStore = (*AnalysisStore)(nil)
