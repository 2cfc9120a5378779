package postgres

import (
	"context"
	"fmt"

	"github.com/mhmod01110/priv-band-ai/internal/core/domain"
)

// AnalysisRepo stores one summary row per completed run.
type AnalysisRepo struct {
	db *DB
}

func NewAnalysisRepo(db *DB) *AnalysisRepo {
	return &AnalysisRepo{db: db}
}

// Record inserts one history row. Re-running a pipeline under the same
// run ID (which should not happen) upserts rather than erroring.
func (r *AnalysisRepo) Record(ctx context.Context, rec domain.AnalysisRecord) error {
	query := `
		INSERT INTO analyses (id, idempotency_key, shop_name, policy_type, compliance_ratio, provider, used_fallback, duration_ms, created_at)
		VALUES (:id, :idempotency_key, :shop_name, :policy_type, :compliance_ratio, :provider, :used_fallback, :duration_ms, :created_at)
		ON CONFLICT (id) DO UPDATE SET
			compliance_ratio = EXCLUDED.compliance_ratio,
			provider = EXCLUDED.provider,
			used_fallback = EXCLUDED.used_fallback,
			duration_ms = EXCLUDED.duration_ms
	`
	if _, err := r.db.NamedExecContext(ctx, query, rec); err != nil {
		return fmt.Errorf("failed to record analysis: %w", err)
	}
	return nil
}

// Recent returns the latest runs, newest first.
func (r *AnalysisRepo) Recent(ctx context.Context, limit int) ([]domain.AnalysisRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, idempotency_key, shop_name, policy_type, compliance_ratio, provider, used_fallback, duration_ms, created_at
		FROM analyses
		ORDER BY created_at DESC
		LIMIT $1
	`
	var recs []domain.AnalysisRecord
	if err := r.db.SelectContext(ctx, &recs, query, limit); err != nil {
		return nil, fmt.Errorf("failed to load analyses: %w", err)
	}
	return recs, nil
}

// ByKey returns the history rows for one idempotency key, newest first.
func (r *AnalysisRepo) ByKey(ctx context.Context, key string) ([]domain.AnalysisRecord, error) {
	query := `
		SELECT id, idempotency_key, shop_name, policy_type, compliance_ratio, provider, used_fallback, duration_ms, created_at
		FROM analyses
		WHERE idempotency_key = $1
		ORDER BY created_at DESC
	`
	var recs []domain.AnalysisRecord
	if err := r.db.SelectContext(ctx, &recs, query, key); err != nil {
		return nil, fmt.Errorf("failed to load analyses for key: %w", err)
	}
	return recs, nil
}
