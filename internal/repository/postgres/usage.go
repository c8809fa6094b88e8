package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/wellmom/wellmom-api/internal/model"
	"github.com/wellmom/wellmom-api/internal/repository"
)

type usageRepository struct {
	BaseRepository
}

func NewUsageRepository(base BaseRepository) repository.UsageRepository {
	return &usageRepository{base}
}

// GetOrCreate relies on the (scope_key, usage_date) unique constraint: the
// insert is a no-op when the day's row already exists, so concurrent first
// requests of a day cannot create duplicates.
func (r *usageRepository) GetOrCreate(ctx context.Context, scopeKey string, day time.Time) (*model.UsageCounter, error) {
	day = truncateDay(day)

	insert := `
		INSERT INTO chatbot_usage (id, scope_key, usage_date, tokens_used, request_count, updated_at)
		VALUES ($1, $2, $3, 0, 0, NOW())
		ON CONFLICT (scope_key, usage_date) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, insert, uuid.New(), scopeKey, day); err != nil {
		return nil, fmt.Errorf("failed to create usage counter: %w", err)
	}

	query := `
		SELECT id, scope_key, usage_date, tokens_used, request_count, updated_at
		FROM chatbot_usage
		WHERE scope_key = $1 AND usage_date = $2
	`
	var counter model.UsageCounter
	if err := r.db.GetContext(ctx, &counter, query, scopeKey, day); err != nil {
		return nil, fmt.Errorf("failed to get usage counter: %w", err)
	}
	return &counter, nil
}

// AddUsage applies the increment as a single upsert so concurrent writers
// cannot lose updates. The (scope_key, request_id) ledger-event row makes the
// write idempotent: a retried request that was already applied inserts
// nothing and skips the increment.
func (r *usageRepository) AddUsage(ctx context.Context, scopeKey string, day time.Time, tokens, requests int, requestID uuid.UUID) error {
	day = truncateDay(day)

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx, `
			INSERT INTO chatbot_usage_events (scope_key, request_id, created_at)
			VALUES ($1, $2, NOW())
			ON CONFLICT (scope_key, request_id) DO NOTHING
		`, scopeKey, requestID)
		if err != nil {
			return fmt.Errorf("failed to record usage event: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rows == 0 {
			// Already applied by an earlier attempt.
			return nil
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO chatbot_usage (id, scope_key, usage_date, tokens_used, request_count, updated_at)
			VALUES ($1, $2, $3, $4, $5, NOW())
			ON CONFLICT (scope_key, usage_date) DO UPDATE
			SET tokens_used = chatbot_usage.tokens_used + EXCLUDED.tokens_used,
			    request_count = chatbot_usage.request_count + EXCLUDED.request_count,
			    updated_at = NOW()
		`, uuid.New(), scopeKey, day, tokens, requests); err != nil {
			return fmt.Errorf("failed to increment usage counter: %w", err)
		}
		return nil
	})
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
