package quota

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wellmom/wellmom-api/internal/model"
	apperrors "github.com/wellmom/wellmom-api/pkg/errors"
	"github.com/wellmom/wellmom-api/pkg/metrics"
)

func newTestGate(t *testing.T, repo *fakeUsageRepo, rateLimit, userLimit, globalLimit int) *Gate {
	t.Helper()
	m := metrics.NewMetrics("test", prometheus.NewRegistry())
	limiter := NewRateLimiter(rateLimit, time.Minute)
	return NewGate(limiter, newTestLedger(repo), userLimit, globalLimit, m)
}

func TestGateAllowsFreshUser(t *testing.T) {
	gate := newTestGate(t, newFakeUsageRepo(), 10, 10000, 500000)

	info, err := gate.Check(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 0, info.UsedToday)
	assert.Equal(t, 10000, info.Limit)
	assert.Equal(t, 10000, info.Remaining)
}

func TestGateRateLimitCheckedFirst(t *testing.T) {
	repo := newFakeUsageRepo()
	gate := newTestGate(t, repo, 1, 10000, 500000)
	userID := uuid.New()

	// Exhaust both the rate limit and the user quota. The first check gets
	// past the limiter (consuming its only slot) and is denied by the
	// ledger; the second never reaches the ledger.
	require.NoError(t, gate.RecordUsage(context.Background(), userID, 10000, uuid.New()))

	_, err := gate.Check(context.Background(), userID)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrUserQuotaExceeded))

	_, err = gate.Check(context.Background(), userID)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrRateLimited))
}

func TestGateUserQuotaBeforeGlobal(t *testing.T) {
	repo := newFakeUsageRepo()
	gate := newTestGate(t, repo, 100, 10000, 500000)
	userID := uuid.New()

	// User exhausted, global exhausted: the user-scope denial must win.
	require.NoError(t, gate.RecordUsage(context.Background(), userID, 10000, uuid.New()))
	otherUsage := 500000 - 10000
	require.NoError(t, gate.ledger.Record(context.Background(), model.GlobalUsageScope, otherUsage, uuid.New()))

	_, err := gate.Check(context.Background(), userID)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrUserQuotaExceeded))
}

func TestGateGlobalQuotaDeniesUnderUserLimit(t *testing.T) {
	repo := newFakeUsageRepo()
	gate := newTestGate(t, repo, 100, 10000, 500000)
	userID := uuid.New()

	require.NoError(t, gate.ledger.Record(context.Background(), model.GlobalUsageScope, 500000, uuid.New()))

	_, err := gate.Check(context.Background(), userID)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrGlobalQuotaExceeded))
}

func TestGateRetryAfterSurfaced(t *testing.T) {
	gate := newTestGate(t, newFakeUsageRepo(), 1, 10000, 500000)
	userID := uuid.New()

	_, err := gate.Check(context.Background(), userID)
	require.NoError(t, err)

	_, err = gate.Check(context.Background(), userID)
	require.Error(t, err)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.GreaterOrEqual(t, appErr.RetryAfterSeconds, 1)
}

func TestGateRecordUsageWritesBothScopes(t *testing.T) {
	repo := newFakeUsageRepo()
	gate := newTestGate(t, repo, 100, 10000, 500000)
	userID := uuid.New()

	require.NoError(t, gate.RecordUsage(context.Background(), userID, 250, uuid.New()))

	userUsage, err := gate.ledger.Usage(context.Background(), UserScope(userID))
	require.NoError(t, err)
	globalUsage, err := gate.ledger.Usage(context.Background(), model.GlobalUsageScope)
	require.NoError(t, err)
	assert.Equal(t, 250, userUsage.TokensUsed)
	assert.Equal(t, 250, globalUsage.TokensUsed)
}

func TestGateQuotaInfoDoesNotConsume(t *testing.T) {
	gate := newTestGate(t, newFakeUsageRepo(), 1, 10000, 500000)
	userID := uuid.New()

	for i := 0; i < 5; i++ {
		_, err := gate.QuotaInfo(context.Background(), userID)
		require.NoError(t, err)
	}

	// The rate limiter budget of one request is still available.
	_, err := gate.Check(context.Background(), userID)
	assert.NoError(t, err)
}
