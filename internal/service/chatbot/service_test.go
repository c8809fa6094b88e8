package chatbot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wellmom/wellmom-api/internal/config"
	"github.com/wellmom/wellmom-api/internal/model"
	"github.com/wellmom/wellmom-api/internal/repository"
	"github.com/wellmom/wellmom-api/internal/service/quota"
	apperrors "github.com/wellmom/wellmom-api/pkg/errors"
	"github.com/wellmom/wellmom-api/pkg/metrics"
)

type fakeConversationRepo struct {
	mu            sync.Mutex
	conversations map[uuid.UUID]*model.Conversation
	messages      map[uuid.UUID][]*model.ChatMessage
	touched       map[uuid.UUID]int
}

func newFakeConversationRepo() *fakeConversationRepo {
	return &fakeConversationRepo{
		conversations: make(map[uuid.UUID]*model.Conversation),
		messages:      make(map[uuid.UUID][]*model.ChatMessage),
		touched:       make(map[uuid.UUID]int),
	}
}

func (r *fakeConversationRepo) Create(ctx context.Context, conv *model.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	conv.ID = uuid.New()
	conv.Active = true
	r.conversations[conv.ID] = conv
	return nil
}

func (r *fakeConversationRepo) Get(ctx context.Context, id, userID uuid.UUID) (*model.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conv, ok := r.conversations[id]
	if !ok || conv.UserID != userID || !conv.Active {
		return nil, repository.ErrNotFound
	}
	copied := *conv
	return &copied, nil
}

func (r *fakeConversationRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*model.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Conversation
	for _, conv := range r.conversations {
		if conv.UserID == userID && conv.Active {
			copied := *conv
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeConversationRepo) SoftDelete(ctx context.Context, id, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	conv, ok := r.conversations[id]
	if !ok || conv.UserID != userID || !conv.Active {
		return repository.ErrNotFound
	}
	conv.Active = false
	return nil
}

func (r *fakeConversationRepo) Touch(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.touched[id]++
	return nil
}

func (r *fakeConversationRepo) AddMessage(ctx context.Context, msg *model.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg.ID = uuid.New()
	msg.CreatedAt = time.Now()
	r.messages[msg.ConversationID] = append(r.messages[msg.ConversationID], msg)
	return nil
}

func (r *fakeConversationRepo) ListMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]*model.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msgs := r.messages[conversationID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]*model.ChatMessage, len(msgs))
	copy(out, msgs)
	return out, nil
}

type fakeUsageRepo struct {
	mu       sync.Mutex
	counters map[string]*model.UsageCounter
	applied  map[string]bool
	failAdd  bool
	getCalls int
}

func newFakeUsageRepo() *fakeUsageRepo {
	return &fakeUsageRepo{
		counters: make(map[string]*model.UsageCounter),
		applied:  make(map[string]bool),
	}
}

func usageKey(scopeKey string, day time.Time) string {
	return scopeKey + "|" + day.Format("2006-01-02")
}

func (r *fakeUsageRepo) GetOrCreate(ctx context.Context, scopeKey string, day time.Time) (*model.UsageCounter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.getCalls++
	key := usageKey(scopeKey, day)
	c, ok := r.counters[key]
	if !ok {
		c = &model.UsageCounter{ID: uuid.New(), ScopeKey: scopeKey, UsageDate: day}
		r.counters[key] = c
	}
	copied := *c
	return &copied, nil
}

func (r *fakeUsageRepo) AddUsage(ctx context.Context, scopeKey string, day time.Time, tokens, requests int, requestID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAdd {
		return errors.New("connection reset")
	}
	appliedKey := scopeKey + "|" + requestID.String()
	if r.applied[appliedKey] {
		return nil
	}
	r.applied[appliedKey] = true
	key := usageKey(scopeKey, day)
	c, ok := r.counters[key]
	if !ok {
		c = &model.UsageCounter{ID: uuid.New(), ScopeKey: scopeKey, UsageDate: day}
		r.counters[key] = c
	}
	c.TokensUsed += tokens
	c.RequestCount += requests
	return nil
}

func (r *fakeUsageRepo) tokens(scopeKey string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for key, c := range r.counters {
		if strings.HasPrefix(key, scopeKey+"|") {
			total += c.TokensUsed
		}
	}
	return total
}

type fakeCompleter struct {
	mu          sync.Mutex
	calls       int
	lastMessage string
	lastHistory []Turn
	reply       *Completion
	err         error
}

func (f *fakeCompleter) Complete(ctx context.Context, message string, history []Turn) (*Completion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastMessage = message
	f.lastHistory = history
	if f.err != nil {
		return nil, f.err
	}
	return f.reply, nil
}

type testHarness struct {
	svc           *Service
	conversations *fakeConversationRepo
	usage         *fakeUsageRepo
	completer     *fakeCompleter
	gate          *quota.Gate
}

func newTestHarness(userLimit, globalLimit int) *testHarness {
	conversations := newFakeConversationRepo()
	usage := newFakeUsageRepo()
	completer := &fakeCompleter{reply: &Completion{Text: "Minum air yang cukup setiap hari.", InputTokens: 40, OutputTokens: 60}}
	m := metrics.NewMetrics("test", prometheus.NewRegistry())

	ledger := quota.NewLedger(usage, time.FixedZone("UTC+7", 7*3600))
	gate := quota.NewGate(quota.NewRateLimiter(100, time.Minute), ledger, userLimit, globalLimit, m)

	cfg := config.ChatbotConfig{
		RequestTimeoutSeconds: 5,
		MaxHistoryMessages:    20,
		TimezoneOffsetHours:   7,
	}
	return &testHarness{
		svc:           NewService(conversations, gate, completer, cfg, m),
		conversations: conversations,
		usage:         usage,
		completer:     completer,
		gate:          gate,
	}
}

func TestSendMessageNewConversation(t *testing.T) {
	h := newTestHarness(10000, 500000)
	userID := uuid.New()

	reply, err := h.svc.SendMessage(context.Background(), userID, nil, "Apakah mual di pagi hari normal?")
	require.NoError(t, err)
	assert.Equal(t, "Minum air yang cukup setiap hari.", reply.Reply)
	assert.Equal(t, 40, reply.InputTokens)
	assert.Equal(t, 60, reply.OutputTokens)

	msgs := h.conversations.messages[reply.ConversationID]
	require.Len(t, msgs, 2)
	assert.Equal(t, model.MessageRoleUser, msgs[0].Role)
	assert.Equal(t, "Apakah mual di pagi hari normal?", msgs[0].Content)
	assert.Equal(t, model.MessageRoleAssistant, msgs[1].Role)

	conv := h.conversations.conversations[reply.ConversationID]
	assert.Equal(t, "Apakah mual di pagi hari normal?", conv.Title)
	assert.Equal(t, 1, h.conversations.touched[reply.ConversationID])

	// Both ledger scopes charged with the full token cost.
	assert.Equal(t, 100, h.usage.tokens(userID.String()))
	assert.Equal(t, 100, h.usage.tokens(model.GlobalUsageScope))

	assert.Equal(t, 100, reply.Quota.UsedToday)
	assert.Equal(t, 10000, reply.Quota.Limit)
	assert.Equal(t, 9900, reply.Quota.Remaining)
}

func TestSendMessageTruncatesLongTitle(t *testing.T) {
	h := newTestHarness(10000, 500000)
	message := strings.Repeat("a", 80)

	reply, err := h.svc.SendMessage(context.Background(), uuid.New(), nil, message)
	require.NoError(t, err)

	conv := h.conversations.conversations[reply.ConversationID]
	assert.Equal(t, strings.Repeat("a", 50)+"...", conv.Title)
}

func TestSendMessageExistingConversationPassesHistory(t *testing.T) {
	h := newTestHarness(10000, 500000)
	userID := uuid.New()

	first, err := h.svc.SendMessage(context.Background(), userID, nil, "Pertanyaan pertama")
	require.NoError(t, err)

	_, err = h.svc.SendMessage(context.Background(), userID, &first.ConversationID, "Pertanyaan lanjutan")
	require.NoError(t, err)

	require.Len(t, h.completer.lastHistory, 2)
	assert.Equal(t, model.MessageRoleUser, h.completer.lastHistory[0].Role)
	assert.Equal(t, "Pertanyaan pertama", h.completer.lastHistory[0].Content)
	assert.Equal(t, model.MessageRoleAssistant, h.completer.lastHistory[1].Role)
}

func TestSendMessageRejectsForeignConversation(t *testing.T) {
	h := newTestHarness(10000, 500000)
	owner := uuid.New()

	reply, err := h.svc.SendMessage(context.Background(), owner, nil, "Halo")
	require.NoError(t, err)

	_, err = h.svc.SendMessage(context.Background(), uuid.New(), &reply.ConversationID, "Halo juga")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestSendMessageDeniedWhenUserQuotaExhausted(t *testing.T) {
	h := newTestHarness(100, 500000)
	userID := uuid.New()

	require.NoError(t, h.gate.RecordUsage(context.Background(), userID, 100, uuid.New()))

	_, err := h.svc.SendMessage(context.Background(), userID, nil, "Halo")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrUserQuotaExceeded))
	assert.Equal(t, 0, h.completer.calls, "no upstream call on a denied request")
}

func TestSendMessageCompleterFailure(t *testing.T) {
	h := newTestHarness(10000, 500000)
	h.completer.err = errors.New("upstream 500")

	_, err := h.svc.SendMessage(context.Background(), uuid.New(), nil, "Halo")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrServiceUnavailable))

	// No persisted exchange and no usage charged for a failed completion.
	for _, msgs := range h.conversations.messages {
		assert.Empty(t, msgs)
	}
	assert.Equal(t, 0, h.usage.tokens(model.GlobalUsageScope))
}

func TestSendMessageCompleterTimeout(t *testing.T) {
	h := newTestHarness(10000, 500000)
	h.completer.err = fmt.Errorf("calling upstream: %w", context.DeadlineExceeded)

	_, err := h.svc.SendMessage(context.Background(), uuid.New(), nil, "Halo")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrServiceUnavailable))
	assert.Contains(t, err.Error(), "timed out")
}

func TestSendMessageReturnsReplyWhenLedgerWriteFails(t *testing.T) {
	h := newTestHarness(10000, 500000)
	userID := uuid.New()
	h.usage.failAdd = true

	reply, err := h.svc.SendMessage(context.Background(), userID, nil, "Halo")
	require.NoError(t, err, "losing the accounting write must not lose the reply")
	assert.Equal(t, "Minum air yang cukup setiap hari.", reply.Reply)
	assert.Equal(t, 0, h.usage.tokens(userID.String()))
}

func TestQuotaStatusCachesSnapshot(t *testing.T) {
	h := newTestHarness(10000, 500000)
	userID := uuid.New()

	first, err := h.svc.QuotaStatus(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 10000, first.Remaining)

	calls := h.usage.getCalls
	second, err := h.svc.QuotaStatus(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, calls, h.usage.getCalls, "cached snapshot must not hit the ledger")
}

func TestDeleteConversation(t *testing.T) {
	h := newTestHarness(10000, 500000)
	userID := uuid.New()

	reply, err := h.svc.SendMessage(context.Background(), userID, nil, "Halo")
	require.NoError(t, err)

	require.NoError(t, h.svc.DeleteConversation(context.Background(), userID, reply.ConversationID))

	_, err = h.svc.ListMessages(context.Background(), userID, reply.ConversationID, 10)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	err = h.svc.DeleteConversation(context.Background(), userID, reply.ConversationID)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}
