package notification

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/wellmom/wellmom-api/internal/model"
	"github.com/wellmom/wellmom-api/internal/repository"
	"github.com/wellmom/wellmom-api/pkg/messaging"
	"github.com/wellmom/wellmom-api/pkg/metrics"
)

// Channel is the broker channel the delivery worker subscribes to.
const Channel = "notifications"

type Service struct {
	repo    repository.NotificationRepository
	broker  messaging.Broker
	metrics *metrics.Metrics
}

func NewService(repo repository.NotificationRepository, broker messaging.Broker, m *metrics.Metrics) *Service {
	return &Service{repo: repo, broker: broker, metrics: m}
}

// Notify persists a notification row and publishes it for the delivery
// worker. A broker outage does not fail the caller; the worker drains
// pending rows on its own schedule.
func (s *Service) Notify(ctx context.Context, userID uuid.UUID, notifType, title, message string) error {
	n := &model.Notification{
		UserID:  userID,
		Type:    notifType,
		Title:   title,
		Message: message,
		Status:  model.NotificationStatusPending,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	if err := s.broker.Publish(ctx, Channel, messaging.Message{
		Type:    notifType,
		Payload: n,
	}); err != nil {
		s.metrics.NotificationsFailed.Inc()
		log.Warn().Err(err).
			Str("notification_id", n.ID.String()).
			Msg("failed to publish notification, worker will pick it up")
		return nil
	}

	s.metrics.NotificationsPublished.Inc()
	return nil
}

// DrainPending publishes any notifications still pending, used by the
// worker to recover rows whose initial publish failed.
func (s *Service) DrainPending(ctx context.Context, limit int) (int, error) {
	pending, err := s.repo.ListPending(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending notifications: %w", err)
	}

	published := 0
	for _, n := range pending {
		if err := s.broker.Publish(ctx, Channel, messaging.Message{
			Type:    n.Type,
			Payload: n,
		}); err != nil {
			s.metrics.NotificationsFailed.Inc()
			if markErr := s.repo.MarkFailed(ctx, n.ID, err.Error()); markErr != nil {
				log.Error().Err(markErr).Str("notification_id", n.ID.String()).Msg("failed to mark notification failed")
			}
			continue
		}
		if err := s.repo.MarkSent(ctx, n.ID); err != nil {
			log.Error().Err(err).Str("notification_id", n.ID.String()).Msg("failed to mark notification sent")
			continue
		}
		s.metrics.NotificationsPublished.Inc()
		published++
	}
	return published, nil
}
