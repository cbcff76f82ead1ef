package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/CyberwizD/driver-status-relay/internal/models"
)

// Directory associates recipient keys with push tokens.
//
// Register overwrites any prior token for the key (last write wins).
// Lookup reports ok=false for a key that was never registered; an error is
// only returned when the backend itself fails.
type Directory interface {
	Register(ctx context.Context, rec models.TokenRecord) error
	Lookup(ctx context.Context, key models.RecipientKey) (models.TokenRecord, bool, error)
}

// Backend names accepted by DIRECTORY_BACKEND.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// ParseBackend normalizes a configured backend name.
func ParseBackend(raw string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", BackendMemory:
		return BackendMemory, nil
	case BackendPostgres, "postgresql", "pg":
		return BackendPostgres, nil
	case BackendRedis:
		return BackendRedis, nil
	default:
		return "", fmt.Errorf("unknown directory backend %q", raw)
	}
}

func validateRecord(rec models.TokenRecord) error {
	if rec.Key.Kind == models.KindDriverField {
		return fmt.Errorf("cannot register under %s key", rec.Key.Kind)
	}
	if rec.Key.Kind != models.KindAdmin && rec.Key.ID == "" {
		return fmt.Errorf("empty id for %s key", rec.Key.Kind)
	}
	if rec.Token == "" {
		return fmt.Errorf("empty token for %s", rec.Key)
	}
	return nil
}

// matchesDriverField reports whether rec belongs to the driver whose
// numeroConductor is number. Number-keyed records match on their key as well,
// so registrations made before the attribute was stored still resolve.
func matchesDriverField(rec models.TokenRecord, number string) bool {
	switch rec.Key.Kind {
	case models.KindDriverID:
		return rec.DriverNumber == number
	case models.KindDriverNumber:
		return rec.DriverNumber == number || rec.Key.ID == number
	default:
		return false
	}
}
