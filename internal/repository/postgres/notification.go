package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wellmom/wellmom-api/internal/model"
	"github.com/wellmom/wellmom-api/internal/repository"
)

type notificationRepository struct {
	BaseRepository
}

func NewNotificationRepository(base BaseRepository) repository.NotificationRepository {
	return &notificationRepository{base}
}

func (r *notificationRepository) Create(ctx context.Context, n *model.Notification) error {
	query := `
		INSERT INTO notifications (id, user_id, type, title, message, status, retry_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $8)
	`
	n.ID = uuid.New()
	n.Status = model.NotificationStatusPending
	n.CreatedAt = time.Now()
	n.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		n.ID, n.UserID, n.Type, n.Title, n.Message, n.Status, n.CreatedAt, n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// maxDeliveryAttempts bounds how often a row is re-drained before it is
// parked as failed for manual inspection.
const maxDeliveryAttempts = 5

func (r *notificationRepository) ListPending(ctx context.Context, limit int) ([]*model.Notification, error) {
	query := `
		SELECT id, user_id, type, title, message, status, retry_count, sent_at, created_at, updated_at
		FROM notifications
		WHERE status = 'pending'
		ORDER BY created_at
		LIMIT $1
	`
	var notifications []*model.Notification
	if err := r.db.SelectContext(ctx, &notifications, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list pending notifications: %w", err)
	}
	return notifications, nil
}

func (r *notificationRepository) MarkSent(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE notifications
		SET status = 'sent', sent_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark notification sent: %w", err)
	}
	return checkAffected(result)
}

// MarkFailed keeps the row pending so later drain passes retry it, until the
// attempt cap is reached and it is parked as failed.
func (r *notificationRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	query := `
		UPDATE notifications
		SET status = CASE WHEN retry_count + 1 >= $2 THEN 'failed' ELSE 'pending' END,
		    retry_count = retry_count + 1,
		    updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, id, maxDeliveryAttempts)
	if err != nil {
		return fmt.Errorf("failed to mark notification failed (%s): %w", reason, err)
	}
	return checkAffected(result)
}