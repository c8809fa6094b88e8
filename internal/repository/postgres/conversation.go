package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wellmom/wellmom-api/internal/model"
	"github.com/wellmom/wellmom-api/internal/repository"
)

type conversationRepository struct {
	BaseRepository
}

func NewConversationRepository(base BaseRepository) repository.ConversationRepository {
	return &conversationRepository{base}
}

func (r *conversationRepository) Create(ctx context.Context, conv *model.Conversation) error {
	query := `
		INSERT INTO chatbot_conversations (id, user_id, title, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	conv.ID = uuid.New()
	conv.Active = true
	conv.CreatedAt = time.Now()
	conv.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		conv.ID, conv.UserID, conv.Title, conv.Active, conv.CreatedAt, conv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create conversation: %w", err)
	}
	return nil
}

// Get checks ownership: a conversation is only visible to its owner.
func (r *conversationRepository) Get(ctx context.Context, id, userID uuid.UUID) (*model.Conversation, error) {
	query := `
		SELECT id, user_id, title, active, created_at, updated_at
		FROM chatbot_conversations
		WHERE id = $1 AND user_id = $2 AND active = TRUE
	`
	var conv model.Conversation
	err := r.db.GetContext(ctx, &conv, query, id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return &conv, nil
}

func (r *conversationRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*model.Conversation, error) {
	query := `
		SELECT id, user_id, title, active, created_at, updated_at
		FROM chatbot_conversations
		WHERE user_id = $1 AND active = TRUE
		ORDER BY updated_at DESC
		LIMIT $2 OFFSET $3
	`
	var convs []*model.Conversation
	if err := r.db.SelectContext(ctx, &convs, query, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return convs, nil
}

func (r *conversationRepository) SoftDelete(ctx context.Context, id, userID uuid.UUID) error {
	query := `
		UPDATE chatbot_conversations
		SET active = FALSE, updated_at = NOW()
		WHERE id = $1 AND user_id = $2 AND active = TRUE
	`
	result, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	return checkAffected(result)
}

func (r *conversationRepository) Touch(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE chatbot_conversations SET updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to touch conversation: %w", err)
	}
	return nil
}

func (r *conversationRepository) AddMessage(ctx context.Context, msg *model.ChatMessage) error {
	query := `
		INSERT INTO chatbot_messages (id, conversation_id, role, content, input_tokens, output_tokens, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	msg.ID = uuid.New()
	msg.CreatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		msg.ID, msg.ConversationID, msg.Role, msg.Content,
		msg.InputTokens, msg.OutputTokens, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to add message: %w", err)
	}
	return nil
}

// ListMessages returns the most recent messages in chronological order.
func (r *conversationRepository) ListMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]*model.ChatMessage, error) {
	query := `
		SELECT id, conversation_id, role, content, input_tokens, output_tokens, created_at
		FROM (
			SELECT id, conversation_id, role, content, input_tokens, output_tokens, created_at
			FROM chatbot_messages
			WHERE conversation_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC
	`
	var msgs []*model.ChatMessage
	if err := r.db.SelectContext(ctx, &msgs, query, conversationID, limit); err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return msgs, nil
}
