package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/CyberwizD/driver-status-relay/internal/models"
)

// RoutingPolicy decides which StatusEvent fields are required.
type RoutingPolicy string

const (
	// PolicyStrict requires numeroConductor, estado and hora.
	PolicyStrict RoutingPolicy = "strict"
	// PolicyLenient requires only numeroConductor and derives hora from the clock.
	PolicyLenient RoutingPolicy = "lenient"
)

// AddressingMode decides how a DirectEvent identifies its driver.
type AddressingMode string

const (
	// AddressByNumber looks the driver up by a key equal to its number.
	AddressByNumber AddressingMode = "number"
	// AddressByField matches driver records on their numeroConductor attribute.
	AddressByField AddressingMode = "field"
	// AddressByUID looks the driver up by its unique id.
	AddressByUID AddressingMode = "uid"
)

// ParsePolicy maps a configured value to a RoutingPolicy; empty means strict.
func ParsePolicy(raw string) (RoutingPolicy, error) {
	switch RoutingPolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", PolicyStrict:
		return PolicyStrict, nil
	case PolicyLenient:
		return PolicyLenient, nil
	default:
		return "", fmt.Errorf("unknown routing policy %q", raw)
	}
}

// ParseAddressingMode maps a configured value to an AddressingMode; empty means number.
func ParseAddressingMode(raw string) (AddressingMode, error) {
	switch AddressingMode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", AddressByNumber:
		return AddressByNumber, nil
	case AddressByField:
		return AddressByField, nil
	case AddressByUID:
		return AddressByUID, nil
	default:
		return "", fmt.Errorf("unknown addressing mode %q", raw)
	}
}

// ParsePayloadMode maps a configured value to a PayloadMode; empty means both.
func ParsePayloadMode(raw string) (models.PayloadMode, error) {
	switch models.PayloadMode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", models.ModeBoth:
		return models.ModeBoth, nil
	case models.ModeNotification:
		return models.ModeNotification, nil
	case models.ModeData:
		return models.ModeData, nil
	default:
		return "", fmt.Errorf("unknown payload mode %q", raw)
	}
}

// JSON field names reported in ValidationError.
const (
	FieldDriverNumber = "numeroConductor"
	FieldDriverID     = "uid"
	FieldState        = "estado"
	FieldTime         = "hora"
	FieldTitle        = "titulo"
	FieldBody         = "cuerpo"
)

// Route is a validated event: who receives it and what they receive.
type Route struct {
	Key     models.RecipientKey
	Payload models.NotificationPayload
}

// RouterConfig parameterizes a Router.
type RouterConfig struct {
	Policy      RoutingPolicy
	Addressing  AddressingMode
	PayloadMode models.PayloadMode
	// Location and Now drive server-derived times under the lenient policy.
	Location *time.Location
	Now      func() time.Time
}

// Router maps inbound events to addressed, formatted notifications. It does
// no I/O and is safe for concurrent use.
type Router struct {
	policy      RoutingPolicy
	addressing  AddressingMode
	payloadMode models.PayloadMode
	location    *time.Location
	now         func() time.Time
}

func NewRouter(cfg RouterConfig) *Router {
	r := &Router{
		policy:      cfg.Policy,
		addressing:  cfg.Addressing,
		payloadMode: cfg.PayloadMode,
		location:    cfg.Location,
		now:         cfg.Now,
	}
	if r.policy == "" {
		r.policy = PolicyStrict
	}
	if r.addressing == "" {
		r.addressing = AddressByNumber
	}
	if r.payloadMode == "" {
		r.payloadMode = models.ModeBoth
	}
	if r.location == nil {
		r.location = time.Local
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

func (r *Router) Policy() RoutingPolicy      { return r.policy }
func (r *Router) Addressing() AddressingMode { return r.addressing }

// RouteDriverToAdmin validates a driver status event and builds the
// notification for the administrator, or for the user named in uidUsuario.
//
// Missing fields are checked in a fixed order (numeroConductor, estado, hora)
// and only the first one is reported.
func (r *Router) RouteDriverToAdmin(ev models.StatusEvent) (Route, error) {
	number := strings.TrimSpace(string(ev.DriverNumber))
	state := strings.TrimSpace(ev.State)
	at := strings.TrimSpace(ev.Time)

	if number == "" {
		return Route{}, missing(FieldDriverNumber)
	}
	if r.policy == PolicyStrict {
		if state == "" {
			return Route{}, missing(FieldState)
		}
		if at == "" {
			return Route{}, missing(FieldTime)
		}
	}
	if at == "" {
		at = r.now().In(r.location).Format("15:04")
	}

	text := waitingSince
	if state != "" {
		text = textForState(state)
	}

	vars := map[string]string{
		FieldDriverNumber: number,
		FieldTime:         at,
	}
	if state != "" {
		vars[FieldState] = state
	}

	payload := models.NotificationPayload{
		Title: text.title,
		Body:  RenderTemplate(text.body, vars),
		Mode:  r.payloadMode,
	}
	if payload.Mode != models.ModeNotification {
		payload.Data = vars
		if payload.Mode == models.ModeData {
			payload.Data["title"] = payload.Title
			payload.Data["body"] = payload.Body
		}
	}

	key := models.AdminKey()
	if uid := strings.TrimSpace(ev.UserID); uid != "" {
		key = models.UserByID(uid)
	}
	return Route{Key: key, Payload: payload}, nil
}

// RouteAdminToDriver validates a direct message for a driver. The driver is
// identified according to the configured AddressingMode; title and body are
// passed through verbatim.
func (r *Router) RouteAdminToDriver(ev models.DirectEvent) (Route, error) {
	var key models.RecipientKey
	switch r.addressing {
	case AddressByUID:
		id := strings.TrimSpace(ev.DriverID)
		if id == "" {
			return Route{}, missing(FieldDriverID)
		}
		key = models.DriverByID(id)
	case AddressByField:
		number := strings.TrimSpace(string(ev.DriverNumber))
		if number == "" {
			return Route{}, missing(FieldDriverNumber)
		}
		key = models.DriverByField(number)
	default:
		number := strings.TrimSpace(string(ev.DriverNumber))
		if number == "" {
			return Route{}, missing(FieldDriverNumber)
		}
		key = models.DriverByNumber(number)
	}

	if strings.TrimSpace(ev.Title) == "" {
		return Route{}, missing(FieldTitle)
	}
	if strings.TrimSpace(ev.Body) == "" {
		return Route{}, missing(FieldBody)
	}

	return Route{
		Key: key,
		Payload: models.NotificationPayload{
			Title: ev.Title,
			Body:  ev.Body,
			Mode:  models.ModeNotification,
		},
	}, nil
}
