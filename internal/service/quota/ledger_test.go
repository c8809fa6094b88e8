package quota

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wellmom/wellmom-api/internal/model"
	apperrors "github.com/wellmom/wellmom-api/pkg/errors"
)

// fakeUsageRepo mirrors the postgres implementation's semantics in memory:
// lazy row creation, atomic increments, idempotency per (scope, request id).
type fakeUsageRepo struct {
	mu       sync.Mutex
	counters map[string]*model.UsageCounter
	applied  map[string]bool
	failures int
}

func newFakeUsageRepo() *fakeUsageRepo {
	return &fakeUsageRepo{
		counters: make(map[string]*model.UsageCounter),
		applied:  make(map[string]bool),
	}
}

func (f *fakeUsageRepo) key(scopeKey string, day time.Time) string {
	return scopeKey + "|" + day.Format("2006-01-02")
}

func (f *fakeUsageRepo) GetOrCreate(ctx context.Context, scopeKey string, day time.Time) (*model.UsageCounter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	k := f.key(scopeKey, day)
	if c, ok := f.counters[k]; ok {
		copied := *c
		return &copied, nil
	}
	c := &model.UsageCounter{ScopeKey: scopeKey, UsageDate: day}
	f.counters[k] = c
	copied := *c
	return &copied, nil
}

func (f *fakeUsageRepo) AddUsage(ctx context.Context, scopeKey string, day time.Time, tokens, requests int, requestID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failures > 0 {
		f.failures--
		return errors.New("connection reset")
	}

	eventKey := scopeKey + "|" + requestID.String()
	if f.applied[eventKey] {
		return nil
	}
	f.applied[eventKey] = true

	k := f.key(scopeKey, day)
	c, ok := f.counters[k]
	if !ok {
		c = &model.UsageCounter{ScopeKey: scopeKey, UsageDate: day}
		f.counters[k] = c
	}
	c.TokensUsed += tokens
	c.RequestCount += requests
	return nil
}

func newTestLedger(repo *fakeUsageRepo) *Ledger {
	return NewLedger(repo, time.FixedZone("UTC+7", 7*3600))
}

func TestLedgerAccumulatesWithinDay(t *testing.T) {
	repo := newFakeUsageRepo()
	ledger := newTestLedger(repo)
	scope := UserScope(uuid.New())

	require.NoError(t, ledger.Record(context.Background(), scope, 100, uuid.New()))
	require.NoError(t, ledger.Record(context.Background(), scope, 50, uuid.New()))

	usage, err := ledger.Usage(context.Background(), scope)
	require.NoError(t, err)
	assert.Equal(t, 150, usage.TokensUsed)
	assert.Equal(t, 2, usage.RequestCount)
}

func TestLedgerDayRollover(t *testing.T) {
	repo := newFakeUsageRepo()
	ledger := newTestLedger(repo)
	scope := UserScope(uuid.New())

	// 23:30 on March 10th in UTC+7 is 16:30 UTC the same day.
	ledger.now = func() time.Time {
		return time.Date(2025, 3, 10, 16, 30, 0, 0, time.UTC)
	}
	require.NoError(t, ledger.Record(context.Background(), scope, 9000, uuid.New()))

	// One hour later it is past midnight in the reference timezone, so a
	// fresh counter applies even though UTC is still on March 10th.
	ledger.now = func() time.Time {
		return time.Date(2025, 3, 10, 17, 30, 0, 0, time.UTC)
	}
	usage, err := ledger.Usage(context.Background(), scope)
	require.NoError(t, err)
	assert.Equal(t, 0, usage.TokensUsed)
	assert.Equal(t, time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC), usage.UsageDate)
}

func TestLedgerRecordRetriesTransientFailure(t *testing.T) {
	repo := newFakeUsageRepo()
	repo.failures = 2
	ledger := newTestLedger(repo)
	scope := UserScope(uuid.New())

	require.NoError(t, ledger.Record(context.Background(), scope, 42, uuid.New()))

	usage, err := ledger.Usage(context.Background(), scope)
	require.NoError(t, err)
	assert.Equal(t, 42, usage.TokensUsed)
}

func TestLedgerRecordGivesUpAfterRetries(t *testing.T) {
	repo := newFakeUsageRepo()
	repo.failures = recordRetries
	ledger := newTestLedger(repo)
	scope := UserScope(uuid.New())

	err := ledger.Record(context.Background(), scope, 42, uuid.New())
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrLedgerWriteFailed))

	usage, usageErr := ledger.Usage(context.Background(), scope)
	require.NoError(t, usageErr)
	assert.Equal(t, 0, usage.TokensUsed, "failed writes must never partially apply")
}

func TestLedgerRecordIdempotentPerRequestID(t *testing.T) {
	repo := newFakeUsageRepo()
	ledger := newTestLedger(repo)
	scope := UserScope(uuid.New())
	requestID := uuid.New()

	require.NoError(t, ledger.Record(context.Background(), scope, 100, requestID))
	require.NoError(t, ledger.Record(context.Background(), scope, 100, requestID))

	usage, err := ledger.Usage(context.Background(), scope)
	require.NoError(t, err)
	assert.Equal(t, 100, usage.TokensUsed, "replaying a request id must be a no-op")
	assert.Equal(t, 1, usage.RequestCount)
}

func TestRemainingClampsAtZero(t *testing.T) {
	repo := newFakeUsageRepo()
	ledger := newTestLedger(repo)
	scope := UserScope(uuid.New())

	require.NoError(t, ledger.Record(context.Background(), scope, 12000, uuid.New()))

	remaining, err := ledger.Remaining(context.Background(), scope, 10000)
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)
}
