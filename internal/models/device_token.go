package models

import (
	"strings"
	"time"
)

// KeyKind tells the Directory which kind of recipient a key addresses.
type KeyKind string

const (
	KindAdmin        KeyKind = "admin"
	KindDriverNumber KeyKind = "driver_number"
	KindDriverID     KeyKind = "driver_id"
	KindUserID       KeyKind = "user_id"
	// KindDriverField matches driver_id records by their DriverNumber attribute.
	KindDriverField KeyKind = "driver_field"
)

// RecipientKey identifies who should receive a notification.
type RecipientKey struct {
	Kind KeyKind `json:"kind"`
	ID   string  `json:"id,omitempty"`
}

// AdminKey is the single well-known administrator recipient.
func AdminKey() RecipientKey { return RecipientKey{Kind: KindAdmin} }

func DriverByNumber(number string) RecipientKey {
	return RecipientKey{Kind: KindDriverNumber, ID: strings.TrimSpace(number)}
}

func DriverByID(id string) RecipientKey {
	return RecipientKey{Kind: KindDriverID, ID: strings.TrimSpace(id)}
}

func DriverByField(number string) RecipientKey {
	return RecipientKey{Kind: KindDriverField, ID: strings.TrimSpace(number)}
}

func UserByID(id string) RecipientKey {
	return RecipientKey{Kind: KindUserID, ID: strings.TrimSpace(id)}
}

func (k RecipientKey) String() string {
	if k.Kind == KindAdmin {
		return string(k.Kind)
	}
	return string(k.Kind) + ":" + k.ID
}

// TokenRecord is the push token currently associated with a key.
// DriverNumber is only set on driver_id records and feeds field lookups.
type TokenRecord struct {
	Key          RecipientKey `json:"key"`
	Token        string       `json:"token"`
	DriverNumber string       `json:"driver_number,omitempty"`
	UpdatedAt    time.Time    `json:"updated_at"`
}
