package services

import (
	"context"

	"github.com/CyberwizD/driver-status-relay/internal/models"
)

// PushProvider represents a downstream push provider (FCM, a local logger, ...).
//
// Send returns an error when the request itself could not be completed. A
// provider that answered but refused the message reports it through a
// result with Status ResultFailed.
type PushProvider interface {
	Name() string
	Send(ctx context.Context, target models.Target, payload models.NotificationPayload) (models.DeliveryResult, error)
}
