package model

import (
	"time"

	"github.com/google/uuid"
)

type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// Conversation is a chatbot conversation owned by one user. Deleting is a
// soft delete (Active=false) so history stays queryable.
type Conversation struct {
	Base
	UserID uuid.UUID `db:"user_id" json:"user_id"`
	Title  string    `db:"title" json:"title"`
	Active bool      `db:"active" json:"active"`
}

type ChatMessage struct {
	ID             uuid.UUID   `db:"id" json:"id"`
	ConversationID uuid.UUID   `db:"conversation_id" json:"conversation_id"`
	Role           MessageRole `db:"role" json:"role"`
	Content        string      `db:"content" json:"content"`
	InputTokens    int         `db:"input_tokens" json:"input_tokens"`
	OutputTokens   int         `db:"output_tokens" json:"output_tokens"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at"`
}

// ChatReply is the outcome of one chatbot exchange, returned to the API
// layer together with the updated quota snapshot.
type ChatReply struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	Reply          string    `json:"reply"`
	InputTokens    int       `json:"input_tokens"`
	OutputTokens   int       `json:"output_tokens"`
	Quota          QuotaInfo `json:"quota"`
}
