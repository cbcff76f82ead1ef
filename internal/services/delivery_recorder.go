package services

import (
	"context"
	"log/slog"

	"github.com/CyberwizD/driver-status-relay/internal/models"
	"github.com/CyberwizD/driver-status-relay/internal/repository"
)

// DeliverySaver persists delivery log rows.
type DeliverySaver interface {
	Save(ctx context.Context, d repository.NotificationDelivery) error
}

// DeliveryRecorder writes send outcomes to the delivery log. With a nil
// store it only logs. Store failures are logged and never reach the caller.
type DeliveryRecorder struct {
	store  DeliverySaver
	logger *slog.Logger
}

func NewDeliveryRecorder(store DeliverySaver, logger *slog.Logger) *DeliveryRecorder {
	return &DeliveryRecorder{
		store:  store,
		logger: logger,
	}
}

func (s *DeliveryRecorder) MarkDelivered(ctx context.Context, key models.RecipientKey, res models.DeliveryResult) {
	s.logger.Info("notification delivered",
		slog.String("request_id", res.ID),
		slog.String("recipient", key.String()),
		slog.String("target", res.Target.String()),
		slog.String("provider", res.Provider),
		slog.String("message_id", res.MessageID),
	)
	s.save(ctx, key, res)
}

func (s *DeliveryRecorder) MarkFailed(ctx context.Context, key models.RecipientKey, res models.DeliveryResult) {
	s.logger.Error("notification delivery failed",
		slog.String("request_id", res.ID),
		slog.String("recipient", key.String()),
		slog.String("target", res.Target.String()),
		slog.String("provider", res.Provider),
		slog.String("error", res.Error),
	)
	s.save(ctx, key, res)
}

func (s *DeliveryRecorder) save(ctx context.Context, key models.RecipientKey, res models.DeliveryResult) {
	if s.store == nil {
		return
	}
	err := s.store.Save(ctx, repository.NotificationDelivery{
		RequestID: res.ID,
		Recipient: key.String(),
		Target:    res.Target.String(),
		Status:    res.Status,
		Provider:  res.Provider,
		MessageID: res.MessageID,
		Detail:    res.Error,
	})
	if err != nil {
		s.logger.Error("failed to record delivery", slog.String("request_id", res.ID), slog.Any("error", err))
	}
}
