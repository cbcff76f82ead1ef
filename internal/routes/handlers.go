package routes

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/render"

	"github.com/CyberwizD/driver-status-relay/internal/models"
	"github.com/CyberwizD/driver-status-relay/internal/services"
)

// Relay is the part of services.Relay the handlers depend on.
type Relay interface {
	Register(ctx context.Context, key models.RecipientKey, token, driverNumber string) error
	NotifyAdmin(ctx context.Context, ev models.StatusEvent) (*services.Outcome, error)
	NotifyDriver(ctx context.Context, ev models.DirectEvent) (*services.Outcome, error)
}

type Handler struct {
	relay  Relay
	logger *slog.Logger
}

// Response is the body of every JSON reply.
type Response struct {
	Mensaje  string                 `json:"mensaje"`
	Response *models.DeliveryResult `json:"response,omitempty"`
	Error    string                 `json:"error,omitempty"`
}

type adminTokenRequest struct {
	Token string `json:"token"`
}

type userTokenRequest struct {
	UID   string `json:"uid"`
	Token string `json:"token"`
}

type driverTokenRequest struct {
	DriverNumber models.Scalar `json:"numeroConductor"`
	FCMToken     string        `json:"fcmToken"`
	UID          string        `json:"uid,omitempty"`
}

func (h *Handler) RegisterAdminToken(w http.ResponseWriter, r *http.Request) {
	var req adminTokenRequest
	if !h.decode(w, r, &req) {
		return
	}
	if blank(req.Token) {
		h.fail(w, r, http.StatusBadRequest, "Falta el token", missingField("token"))
		return
	}
	if err := h.relay.Register(r.Context(), models.AdminKey(), req.Token, ""); err != nil {
		h.fail(w, r, http.StatusInternalServerError, "Error al registrar el token", err)
		return
	}
	h.ok(w, r, "Token del administrador registrado", nil)
}

func (h *Handler) RegisterUserToken(w http.ResponseWriter, r *http.Request) {
	var req userTokenRequest
	if !h.decode(w, r, &req) {
		return
	}
	switch {
	case blank(req.UID):
		h.fail(w, r, http.StatusBadRequest, "Falta el uid del usuario", missingField("uid"))
		return
	case blank(req.Token):
		h.fail(w, r, http.StatusBadRequest, "Falta el token", missingField("token"))
		return
	}
	if err := h.relay.Register(r.Context(), models.UserByID(req.UID), req.Token, ""); err != nil {
		h.fail(w, r, http.StatusInternalServerError, "Error al registrar el token", err)
		return
	}
	h.ok(w, r, "Token del usuario registrado", nil)
}

func (h *Handler) RegisterDriverToken(w http.ResponseWriter, r *http.Request) {
	var req driverTokenRequest
	if !h.decode(w, r, &req) {
		return
	}
	switch {
	case blank(string(req.DriverNumber)):
		h.fail(w, r, http.StatusBadRequest, "Falta el número del conductor", missingField(services.FieldDriverNumber))
		return
	case blank(req.FCMToken):
		h.fail(w, r, http.StatusBadRequest, "Falta el token", missingField("fcmToken"))
		return
	}
	number := string(req.DriverNumber)
	if err := h.relay.Register(r.Context(), models.DriverByNumber(number), req.FCMToken, number); err != nil {
		h.fail(w, r, http.StatusInternalServerError, "Error al registrar el token", err)
		return
	}
	if !blank(req.UID) {
		if err := h.relay.Register(r.Context(), models.DriverByID(req.UID), req.FCMToken, number); err != nil {
			h.fail(w, r, http.StatusInternalServerError, "Error al registrar el token", err)
			return
		}
	}
	h.ok(w, r, "Token del conductor registrado", nil)
}

func (h *Handler) NotifyAdmin(w http.ResponseWriter, r *http.Request) {
	var ev models.StatusEvent
	if !h.decode(w, r, &ev) {
		return
	}
	out, err := h.relay.NotifyAdmin(r.Context(), ev)
	if err != nil {
		// An unregistered administrator or user is a client-side problem here.
		h.failNotify(w, r, err, http.StatusBadRequest)
		return
	}
	h.ok(w, r, "Notificación enviada", &out.Result)
}

func (h *Handler) NotifyDriver(w http.ResponseWriter, r *http.Request) {
	var ev models.DirectEvent
	if !h.decode(w, r, &ev) {
		return
	}
	out, err := h.relay.NotifyDriver(r.Context(), ev)
	if err != nil {
		h.failNotify(w, r, err, http.StatusNotFound)
		return
	}
	h.ok(w, r, "Notificación enviada al conductor", &out.Result)
}

func (h *Handler) failNotify(w http.ResponseWriter, r *http.Request, err error, unregisteredStatus int) {
	var (
		verr *services.ValidationError
		nerr *services.NotFoundError
		derr *services.DeliveryError
	)
	switch {
	case errors.As(err, &verr):
		h.fail(w, r, http.StatusBadRequest, "Faltan datos obligatorios", err)
	case errors.As(err, &nerr):
		h.fail(w, r, unregisteredStatus, "Destinatario sin token registrado", err)
	case errors.As(err, &derr):
		h.fail(w, r, http.StatusInternalServerError, "Error al enviar la notificación", err)
	default:
		h.fail(w, r, http.StatusInternalServerError, "Error interno", err)
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := render.DecodeJSON(r.Body, v); err != nil {
		h.fail(w, r, http.StatusBadRequest, "Cuerpo de la petición inválido", err)
		return false
	}
	return true
}

func (h *Handler) ok(w http.ResponseWriter, r *http.Request, msg string, res *models.DeliveryResult) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, Response{Mensaje: msg, Response: res})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, status int, msg string, err error) {
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, msg,
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.Any("error", err),
	)
	render.Status(r, status)
	render.JSON(w, r, Response{Mensaje: msg, Error: err.Error()})
}

func missingField(name string) error {
	return &services.ValidationError{Field: name}
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
