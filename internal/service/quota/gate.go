package quota

import (
	"context"

	"github.com/google/uuid"

	"github.com/wellmom/wellmom-api/internal/model"
	"github.com/wellmom/wellmom-api/pkg/errors"
	"github.com/wellmom/wellmom-api/pkg/metrics"
)

// Gate composes the per-user rate limiter with the user and global daily
// ledgers into one allow/deny decision for the chatbot send path. Checks run
// cheapest first: a rate-limited request never touches the database.
type Gate struct {
	limiter     *RateLimiter
	ledger      *Ledger
	userLimit   int
	globalLimit int
	metrics     *metrics.Metrics
}

func NewGate(limiter *RateLimiter, ledger *Ledger, userLimit, globalLimit int, m *metrics.Metrics) *Gate {
	return &Gate{
		limiter:     limiter,
		ledger:      ledger,
		userLimit:   userLimit,
		globalLimit: globalLimit,
		metrics:     m,
	}
}

// Check returns the user's quota snapshot when the request may proceed, or
// one of RateLimited, UserQuotaExceeded, GlobalQuotaExceeded. These are
// expected outcomes tracked as metrics, not logged as failures.
func (g *Gate) Check(ctx context.Context, userID uuid.UUID) (*model.QuotaInfo, error) {
	allowed, retryAfter := g.limiter.TryAcquire(userID)
	if !allowed {
		g.metrics.QuotaDenials.WithLabelValues("rate_limited").Inc()
		return nil, errors.RateLimited(retryAfter)
	}

	userUsage, err := g.ledger.Usage(ctx, UserScope(userID))
	if err != nil {
		return nil, err
	}
	if userUsage.Remaining(g.userLimit) <= 0 {
		g.metrics.QuotaDenials.WithLabelValues("user_quota").Inc()
		return nil, errors.UserQuotaExceeded()
	}

	globalRemaining, err := g.ledger.Remaining(ctx, model.GlobalUsageScope, g.globalLimit)
	if err != nil {
		return nil, err
	}
	if globalRemaining <= 0 {
		g.metrics.QuotaDenials.WithLabelValues("global_quota").Inc()
		return nil, errors.GlobalQuotaExceeded()
	}

	return &model.QuotaInfo{
		UsedToday:    userUsage.TokensUsed,
		Limit:        g.userLimit,
		Remaining:    userUsage.Remaining(g.userLimit),
		RequestCount: userUsage.RequestCount,
	}, nil
}

// RecordUsage reports actual token consumption back into both ledgers. The
// two scope writes share the request id; each is idempotent, so a partial
// failure can be retried without double-charging either scope.
func (g *Gate) RecordUsage(ctx context.Context, userID uuid.UUID, tokens int, requestID uuid.UUID) error {
	if err := g.ledger.Record(ctx, UserScope(userID), tokens, requestID); err != nil {
		return err
	}
	return g.ledger.Record(ctx, model.GlobalUsageScope, tokens, requestID)
}

// QuotaInfo reads the user's current daily budget without consuming anything.
func (g *Gate) QuotaInfo(ctx context.Context, userID uuid.UUID) (*model.QuotaInfo, error) {
	usage, err := g.ledger.Usage(ctx, UserScope(userID))
	if err != nil {
		return nil, err
	}
	return &model.QuotaInfo{
		UsedToday:    usage.TokensUsed,
		Limit:        g.userLimit,
		Remaining:    usage.Remaining(g.userLimit),
		RequestCount: usage.RequestCount,
	}, nil
}
