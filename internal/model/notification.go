package model

import (
	"time"

	"github.com/google/uuid"
)

type NotificationStatus string

const (
	NotificationStatusPending NotificationStatus = "pending"
	NotificationStatusSent    NotificationStatus = "sent"
	NotificationStatusFailed  NotificationStatus = "failed"
)

const (
	NotificationTypeAssignment = "assignment"
	NotificationTypeApproval   = "approval"
	NotificationTypeChat       = "chat"
)

type Notification struct {
	ID         uuid.UUID          `db:"id" json:"id"`
	UserID     uuid.UUID          `db:"user_id" json:"user_id"`
	Type       string             `db:"type" json:"type"`
	Title      string             `db:"title" json:"title"`
	Message    string             `db:"message" json:"message"`
	Status     NotificationStatus `db:"status" json:"status"`
	RetryCount int                `db:"retry_count" json:"retry_count"`
	SentAt     *time.Time         `db:"sent_at" json:"sent_at,omitempty"`
	CreatedAt  time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time          `db:"updated_at" json:"updated_at"`
}
