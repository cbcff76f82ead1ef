package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Scalar is a string field that also accepts a bare JSON number, keeping the
// number's literal text. Driver numbers arrive both ways from the mobile apps.
type Scalar string

func (s *Scalar) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		return nil
	case len(b) > 0 && b[0] == '"':
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*s = Scalar(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", b)
	}
	*s = Scalar(n)
	return nil
}

// StatusEvent is posted by a driver when its state changes.
type StatusEvent struct {
	DriverNumber Scalar `json:"numeroConductor"`
	State        string `json:"estado,omitempty"`
	Time         string `json:"hora,omitempty"`
	UserID       string `json:"uidUsuario,omitempty"`
}

// DirectEvent is an administrator or user message addressed to a driver.
type DirectEvent struct {
	DriverNumber Scalar `json:"numeroConductor,omitempty"`
	DriverID     string `json:"uid,omitempty"`
	Title        string `json:"titulo"`
	Body         string `json:"cuerpo"`
}

// PayloadMode selects between a displayed notification, data-only fields, or both.
type PayloadMode string

const (
	ModeNotification PayloadMode = "notification"
	ModeData         PayloadMode = "data"
	ModeBoth         PayloadMode = "both"
)

// NotificationPayload is the rendered message handed to a provider.
type NotificationPayload struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
	Mode  PayloadMode       `json:"mode"`
}

// HasNotification reports whether the provider should send a displayed notification.
func (p NotificationPayload) HasNotification() bool {
	return p.Mode != ModeData
}

// HasData reports whether the provider should send the raw data fields.
func (p NotificationPayload) HasData() bool {
	return p.Mode != ModeNotification && len(p.Data) > 0
}

// Target is the concrete destination of a delivery: a device token or a topic.
type Target struct {
	Token string `json:"token,omitempty"`
	Topic string `json:"topic,omitempty"`
}

func (t Target) String() string {
	if t.Topic != "" {
		return "topic:" + t.Topic
	}
	return "token:" + t.Token
}
