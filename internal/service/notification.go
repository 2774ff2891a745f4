package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"bahon/internal/domain"
)

// EventPublisher publishes a JSON-encoded message to a topic.
type EventPublisher interface {
	Publish(topic string, message any) error
}

// NotificationService reports events that need operator attention.
type NotificationService struct {
	publisher             EventPublisher
	settlementFailedTopic string
	logger                logrus.FieldLogger
}

// NewNotificationService creates a new NotificationService.
// With a nil publisher notifications are only logged.
func NewNotificationService(publisher EventPublisher, settlementFailedTopic string, logger logrus.FieldLogger) *NotificationService {
	return &NotificationService{
		publisher:             publisher,
		settlementFailedTopic: settlementFailedTopic,
		logger:                logger,
	}
}

// NotifySettlementFailed publishes a settlement failure for manual reconciliation.
func (s *NotificationService) NotifySettlementFailed(ctx context.Context, failure *domain.SettlementFailure) error {
	log := s.logger.WithFields(logrus.Fields{
		"topic":                 s.settlementFailedTopic,
		"rider_id":              failure.RiderID,
		"entry_sequence_no":     failure.EntrySequenceNo,
		"exit_sequence_no":      failure.ExitSequenceNo,
		"distance_travelled_km": failure.DistanceTravelledKm,
		"reason":                failure.Reason,
	})

	log.Error("Settlement failure requires reconciliation")

	if s.publisher == nil {
		return nil
	}

	if err := s.publisher.Publish(s.settlementFailedTopic, failure); err != nil {
		log.WithError(err).Error("Failed to publish settlement failure")
		return err
	}

	return nil
}
