package services

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/CyberwizD/driver-status-relay/internal/models"
	"github.com/CyberwizD/driver-status-relay/internal/repository"
	"github.com/CyberwizD/driver-status-relay/pkg/metrics"
)

const (
	DirectionDriverToAdmin = "driver_to_admin"
	DirectionAdminToDriver = "admin_to_driver"
)

// Outcome is the result of a delivered notification.
type Outcome struct {
	Key     models.RecipientKey
	Payload models.NotificationPayload
	Result  models.DeliveryResult
}

// RelayConfig carries the optional knobs of a Relay.
type RelayConfig struct {
	// AdminTopic receives driver status events while no admin token is registered.
	AdminTopic string
	// SendTimeout bounds every provider call.
	SendTimeout time.Duration
}

// Relay resolves routed events against the directory and hands them to the
// push provider. It never retries.
type Relay struct {
	router    *Router
	directory repository.Directory
	provider  PushProvider
	recorder  *DeliveryRecorder
	metrics   *metrics.Metrics
	logger    *slog.Logger
	cfg       RelayConfig
}

func NewRelay(
	router *Router,
	directory repository.Directory,
	provider PushProvider,
	recorder *DeliveryRecorder,
	metrics *metrics.Metrics,
	logger *slog.Logger,
	cfg RelayConfig,
) *Relay {
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	return &Relay{
		router:    router,
		directory: directory,
		provider:  provider,
		recorder:  recorder,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
	}
}

// Register stores token under key, replacing any previous one. driverNumber
// is the numeroConductor attribute of driver keys and feeds field lookups.
func (r *Relay) Register(ctx context.Context, key models.RecipientKey, token, driverNumber string) error {
	rec := models.TokenRecord{
		Key:          key,
		Token:        strings.TrimSpace(token),
		DriverNumber: strings.TrimSpace(driverNumber),
		UpdatedAt:    time.Now(),
	}
	if err := r.directory.Register(ctx, rec); err != nil {
		r.logger.Error("failed to register token", slog.String("recipient", key.String()), slog.Any("error", err))
		return &DirectoryError{Op: "register", Err: err}
	}
	r.metrics.IncRegistered(string(key.Kind))
	r.logger.Info("token registered", slog.String("recipient", key.String()))
	return nil
}

// NotifyAdmin routes a driver status event and delivers it.
func (r *Relay) NotifyAdmin(ctx context.Context, ev models.StatusEvent) (*Outcome, error) {
	route, err := r.router.RouteDriverToAdmin(ev)
	if err != nil {
		r.reject(DirectionDriverToAdmin, err)
		return nil, err
	}
	return r.deliver(ctx, DirectionDriverToAdmin, route)
}

// NotifyDriver routes a direct message to a driver and delivers it.
func (r *Relay) NotifyDriver(ctx context.Context, ev models.DirectEvent) (*Outcome, error) {
	route, err := r.router.RouteAdminToDriver(ev)
	if err != nil {
		r.reject(DirectionAdminToDriver, err)
		return nil, err
	}
	return r.deliver(ctx, DirectionAdminToDriver, route)
}

func (r *Relay) deliver(ctx context.Context, direction string, route Route) (*Outcome, error) {
	r.metrics.IncRouted(direction)

	target, err := r.resolve(ctx, route.Key)
	if err != nil {
		r.reject(direction, err)
		return nil, err
	}

	sendCtx, cancel := context.WithTimeout(ctx, r.cfg.SendTimeout)
	defer cancel()

	result, err := r.provider.Send(sendCtx, target, route.Payload)
	result.ID = uuid.NewString()
	result.Target = target
	if result.Provider == "" {
		result.Provider = r.provider.Name()
	}
	if err == nil && result.Status != models.ResultDelivered {
		if result.Error == "" {
			result.Error = "provider reported status " + strconv.Quote(result.Status)
		}
		err = errors.New(result.Error)
	}
	if err != nil {
		result.Status = models.ResultFailed
		if result.Error == "" {
			result.Error = err.Error()
		}
		r.metrics.IncFailed(direction, result.Provider)
		r.recorder.MarkFailed(ctx, route.Key, result)
		return nil, &DeliveryError{Provider: result.Provider, Err: err}
	}

	r.metrics.IncDelivered(direction, result.Provider)
	r.recorder.MarkDelivered(ctx, route.Key, result)
	return &Outcome{Key: route.Key, Payload: route.Payload, Result: result}, nil
}

func (r *Relay) resolve(ctx context.Context, key models.RecipientKey) (models.Target, error) {
	rec, ok, err := r.directory.Lookup(ctx, key)
	if err != nil {
		r.logger.Error("token lookup failed", slog.String("recipient", key.String()), slog.Any("error", err))
		return models.Target{}, &DirectoryError{Op: "lookup", Err: err}
	}
	if ok && rec.Token != "" {
		return models.Target{Token: rec.Token}, nil
	}
	if key.Kind == models.KindAdmin && r.cfg.AdminTopic != "" {
		return models.Target{Topic: r.cfg.AdminTopic}, nil
	}
	return models.Target{}, &NotFoundError{Key: key}
}

func (r *Relay) reject(direction string, err error) {
	reason := "other"
	var (
		verr *ValidationError
		derr *DirectoryError
	)
	switch {
	case errors.As(err, &verr):
		reason = "validation"
	case errors.Is(err, ErrRecipientUnregistered):
		reason = "unregistered"
	case errors.As(err, &derr):
		reason = "directory"
	}
	r.metrics.IncRejected(direction, reason)
	r.logger.Warn("notification rejected",
		slog.String("direction", direction),
		slog.String("reason", reason),
		slog.Any("error", err),
	)
}
