package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/wellmom/wellmom-api/internal/model"
	"github.com/wellmom/wellmom-api/internal/repository"
	"github.com/wellmom/wellmom-api/pkg/errors"
)

const recordRetries = 3

// Ledger tracks daily AI-token consumption per scope (a user id or the
// global scope). "Today" is computed in one fixed reference timezone so the
// daily reset never depends on where a server happens to run.
type Ledger struct {
	repo repository.UsageRepository
	tz   *time.Location

	now func() time.Time
}

func NewLedger(repo repository.UsageRepository, tz *time.Location) *Ledger {
	return &Ledger{
		repo: repo,
		tz:   tz,
		now:  time.Now,
	}
}

// Today returns the current calendar day in the ledger's reference timezone,
// normalized to the key format the repository stores.
func (l *Ledger) Today() time.Time {
	y, m, d := l.now().In(l.tz).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func UserScope(userID uuid.UUID) string {
	return userID.String()
}

// Usage returns today's counter for the scope, starting a zeroed one when
// the day has no row yet. Rollover is implicit: a new day simply has no row.
func (l *Ledger) Usage(ctx context.Context, scopeKey string) (*model.UsageCounter, error) {
	counter, err := l.repo.GetOrCreate(ctx, scopeKey, l.Today())
	if err != nil {
		return nil, fmt.Errorf("failed to read usage for %s: %w", scopeKey, err)
	}
	return counter, nil
}

// Remaining returns max(0, limit - tokens_used) for today's counter.
func (l *Ledger) Remaining(ctx context.Context, scopeKey string, limit int) (int, error) {
	counter, err := l.Usage(ctx, scopeKey)
	if err != nil {
		return 0, err
	}
	return counter.Remaining(limit), nil
}

// Record adds actual token usage to today's counter for the scope. The write
// is idempotent per (scope, requestID), so the bounded retries can never
// double-charge; if every attempt fails the lost event is logged for manual
// reconciliation and LedgerWriteFailed is returned. Under-counting is the
// acceptable failure direction.
func (l *Ledger) Record(ctx context.Context, scopeKey string, tokens int, requestID uuid.UUID) error {
	day := l.Today()

	var lastErr error
	for attempt := 0; attempt < recordRetries; attempt++ {
		lastErr = l.repo.AddUsage(ctx, scopeKey, day, tokens, 1, requestID)
		if lastErr == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			lastErr = ctx.Err()
			attempt = recordRetries
		case <-time.After(time.Duration(attempt+1) * 100 * time.Millisecond):
		}
	}

	log.Error().
		Err(lastErr).
		Str("scope", scopeKey).
		Str("request_id", requestID.String()).
		Int("tokens", tokens).
		Msg("usage accounting lost, needs manual reconciliation")

	return errors.LedgerWriteFailed(lastErr)
}
