package services

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/CyberwizD/driver-status-relay/internal/models"
)

// LogProvider only logs the message. It stands in for FCM when no server
// key is configured.
type LogProvider struct {
	logger *slog.Logger
}

func NewLogProvider(logger *slog.Logger) *LogProvider {
	return &LogProvider{logger: logger}
}

func (p *LogProvider) Name() string {
	return "log"
}

func (p *LogProvider) Send(_ context.Context, target models.Target, payload models.NotificationPayload) (models.DeliveryResult, error) {
	id := uuid.NewString()
	p.logger.Info("push notification",
		slog.String("message_id", id),
		slog.String("target", target.String()),
		slog.String("title", payload.Title),
		slog.String("body", payload.Body),
		slog.Any("data", payload.Data),
	)
	return models.DeliveryResult{
		Target:    target,
		Provider:  p.Name(),
		Status:    models.ResultDelivered,
		MessageID: id,
	}, nil
}
