package repository

import (
	"context"
	"sync"
	"time"

	"github.com/CyberwizD/driver-status-relay/internal/models"
)

// MemoryDirectory keeps tokens in process memory for the lifetime of the process.
type MemoryDirectory struct {
	mu      sync.RWMutex
	records map[models.RecipientKey]models.TokenRecord
	now     func() time.Time
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		records: make(map[models.RecipientKey]models.TokenRecord),
		now:     time.Now,
	}
}

func (d *MemoryDirectory) Register(_ context.Context, rec models.TokenRecord) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = d.now()
	}
	d.mu.Lock()
	d.records[rec.Key] = rec
	d.mu.Unlock()
	return nil
}

func (d *MemoryDirectory) Lookup(_ context.Context, key models.RecipientKey) (models.TokenRecord, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if key.Kind != models.KindDriverField {
		rec, ok := d.records[key]
		return rec, ok, nil
	}

	var (
		best  models.TokenRecord
		found bool
	)
	for _, rec := range d.records {
		if !matchesDriverField(rec, key.ID) {
			continue
		}
		if !found || rec.UpdatedAt.After(best.UpdatedAt) {
			best, found = rec, true
		}
	}
	return best, found, nil
}
