package chatbot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"

	"github.com/wellmom/wellmom-api/internal/config"
	"github.com/wellmom/wellmom-api/internal/model"
	"github.com/wellmom/wellmom-api/internal/repository"
	"github.com/wellmom/wellmom-api/internal/service/quota"
	apperrors "github.com/wellmom/wellmom-api/pkg/errors"
	"github.com/wellmom/wellmom-api/pkg/metrics"
)

const titleMaxLen = 50

// Turn is one prior exchange passed to the completer as context.
type Turn struct {
	Role    model.MessageRole
	Content string
}

// Completion is the upstream AI response with actual token accounting.
type Completion struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// Completer abstracts the external text-completion service. Implementations
// must respect the context deadline.
type Completer interface {
	Complete(ctx context.Context, message string, history []Turn) (*Completion, error)
}

type Servicer interface {
	SendMessage(ctx context.Context, userID uuid.UUID, conversationID *uuid.UUID, message string) (*model.ChatReply, error)
	ListConversations(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*model.Conversation, error)
	ListMessages(ctx context.Context, userID, conversationID uuid.UUID, limit int) ([]*model.ChatMessage, error)
	DeleteConversation(ctx context.Context, userID, conversationID uuid.UUID) error
	QuotaStatus(ctx context.Context, userID uuid.UUID) (*model.QuotaInfo, error)
}

const quotaStatusTTL = 5 * time.Second

type Service struct {
	conversations repository.ConversationRepository
	gate          *quota.Gate
	completer     Completer
	cfg           config.ChatbotConfig
	metrics       *metrics.Metrics

	// quotaCache absorbs quota-status polling between messages.
	quotaCache *cache.Cache
}

func NewService(
	conversations repository.ConversationRepository,
	gate *quota.Gate,
	completer Completer,
	cfg config.ChatbotConfig,
	m *metrics.Metrics,
) *Service {
	return &Service{
		conversations: conversations,
		gate:          gate,
		completer:     completer,
		cfg:           cfg,
		metrics:       m,
		quotaCache:    cache.New(quotaStatusTTL, time.Minute),
	}
}

// SendMessage runs one chatbot exchange: quota gate, conversation lookup,
// upstream completion, persistence, then usage accounting against both
// ledger scopes.
func (s *Service) SendMessage(ctx context.Context, userID uuid.UUID, conversationID *uuid.UUID, message string) (*model.ChatReply, error) {
	if _, err := s.gate.Check(ctx, userID); err != nil {
		return nil, err
	}

	conversation, err := s.resolveConversation(ctx, userID, conversationID, message)
	if err != nil {
		return nil, err
	}

	history, err := s.history(ctx, conversation.ID)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout())
	defer cancel()

	started := time.Now()
	completion, err := s.completer.Complete(callCtx, message, history)
	s.metrics.AIRequestLatency.Observe(time.Since(started).Seconds())
	if err != nil {
		s.metrics.AIRequestErrors.Inc()
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.ServiceUnavailable("AI service timed out, try again shortly", err)
		}
		return nil, apperrors.ServiceUnavailable("AI service is unavailable, try again shortly", err)
	}

	if err := s.conversations.AddMessage(ctx, &model.ChatMessage{
		ConversationID: conversation.ID,
		Role:           model.MessageRoleUser,
		Content:        message,
		InputTokens:    completion.InputTokens,
	}); err != nil {
		return nil, fmt.Errorf("failed to persist user message: %w", err)
	}
	if err := s.conversations.AddMessage(ctx, &model.ChatMessage{
		ConversationID: conversation.ID,
		Role:           model.MessageRoleAssistant,
		Content:        completion.Text,
		OutputTokens:   completion.OutputTokens,
	}); err != nil {
		return nil, fmt.Errorf("failed to persist assistant message: %w", err)
	}
	if err := s.conversations.Touch(ctx, conversation.ID); err != nil {
		log.Warn().Err(err).Msg("failed to bump conversation timestamp")
	}

	// The upstream cost is already incurred; account for it in both scopes.
	// Record retries internally and logs the event if accounting is lost, so
	// the user still gets the reply they paid tokens for.
	totalTokens := completion.InputTokens + completion.OutputTokens
	requestID := uuid.New()
	if err := s.gate.RecordUsage(ctx, userID, totalTokens, requestID); err != nil {
		log.Error().Err(err).
			Str("user_id", userID.String()).
			Msg("chatbot usage recording failed after retries")
	}
	s.metrics.TokensUsed.WithLabelValues("input").Add(float64(completion.InputTokens))
	s.metrics.TokensUsed.WithLabelValues("output").Add(float64(completion.OutputTokens))
	s.quotaCache.Delete(userID.String())

	info, err := s.gate.QuotaInfo(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &model.ChatReply{
		ConversationID: conversation.ID,
		Reply:          completion.Text,
		InputTokens:    completion.InputTokens,
		OutputTokens:   completion.OutputTokens,
		Quota:          *info,
	}, nil
}

func (s *Service) ListConversations(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*model.Conversation, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.conversations.ListByUser(ctx, userID, limit, offset)
}

func (s *Service) ListMessages(ctx context.Context, userID, conversationID uuid.UUID, limit int) ([]*model.ChatMessage, error) {
	if _, err := s.conversations.Get(ctx, conversationID, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("conversation", err)
		}
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.conversations.ListMessages(ctx, conversationID, limit)
}

func (s *Service) DeleteConversation(ctx context.Context, userID, conversationID uuid.UUID) error {
	err := s.conversations.SoftDelete(ctx, conversationID, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound("conversation", err)
	}
	return err
}

func (s *Service) QuotaStatus(ctx context.Context, userID uuid.UUID) (*model.QuotaInfo, error) {
	if cached, ok := s.quotaCache.Get(userID.String()); ok {
		return cached.(*model.QuotaInfo), nil
	}
	info, err := s.gate.QuotaInfo(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.quotaCache.SetDefault(userID.String(), info)
	return info, nil
}

func (s *Service) resolveConversation(ctx context.Context, userID uuid.UUID, conversationID *uuid.UUID, message string) (*model.Conversation, error) {
	if conversationID != nil {
		conversation, err := s.conversations.Get(ctx, *conversationID, userID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("conversation", err)
		}
		if err != nil {
			return nil, err
		}
		return conversation, nil
	}

	conversation := &model.Conversation{
		UserID: userID,
		Title:  conversationTitle(message),
	}
	if err := s.conversations.Create(ctx, conversation); err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return conversation, nil
}

func (s *Service) history(ctx context.Context, conversationID uuid.UUID) ([]Turn, error) {
	messages, err := s.conversations.ListMessages(ctx, conversationID, s.cfg.MaxHistoryMessages)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	turns := make([]Turn, 0, len(messages))
	for _, msg := range messages {
		turns = append(turns, Turn{Role: msg.Role, Content: msg.Content})
	}
	return turns, nil
}

func conversationTitle(message string) string {
	runes := []rune(message)
	if len(runes) <= titleMaxLen {
		return message
	}
	return string(runes[:titleMaxLen]) + "..."
}
