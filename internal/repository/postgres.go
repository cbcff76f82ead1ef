package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/CyberwizD/driver-status-relay/internal/models"
)

// PushToken is the row layout of the token table.
type PushToken struct {
	Kind         string `gorm:"primaryKey;size:32"`
	KeyID        string `gorm:"primaryKey;size:255"`
	Token        string `gorm:"not null"`
	DriverNumber string `gorm:"index;size:255"`
	UpdatedAt    time.Time
}

// PostgresDirectory stores tokens in a PostgreSQL table through gorm.
type PostgresDirectory struct {
	db        *gorm.DB
	tableName string
}

func NewPostgresDirectory(db *gorm.DB, tableName string) (*PostgresDirectory, error) {
	if tableName == "" {
		tableName = "push_tokens"
	}
	if err := db.Table(tableName).AutoMigrate(&PushToken{}); err != nil {
		return nil, err
	}
	return &PostgresDirectory{
		db:        db,
		tableName: tableName,
	}, nil
}

func (d *PostgresDirectory) Register(ctx context.Context, rec models.TokenRecord) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	row := PushToken{
		Kind:         string(rec.Key.Kind),
		KeyID:        rec.Key.ID,
		Token:        rec.Token,
		DriverNumber: rec.DriverNumber,
		UpdatedAt:    rec.UpdatedAt,
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = time.Now()
	}
	return d.db.WithContext(ctx).Table(d.tableName).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "kind"}, {Name: "key_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"token", "driver_number", "updated_at"}),
		}).Create(&row).Error
}

func (d *PostgresDirectory) Lookup(ctx context.Context, key models.RecipientKey) (models.TokenRecord, bool, error) {
	q := d.db.WithContext(ctx).Table(d.tableName)
	if key.Kind == models.KindDriverField {
		q = q.Where("kind IN ? AND driver_number = ?",
			[]string{string(models.KindDriverID), string(models.KindDriverNumber)}, key.ID).
			Or("kind = ? AND key_id = ?", string(models.KindDriverNumber), key.ID).
			Order("updated_at DESC")
	} else {
		q = q.Where("kind = ? AND key_id = ?", string(key.Kind), key.ID)
	}

	var row PushToken
	if err := q.Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.TokenRecord{}, false, nil
		}
		return models.TokenRecord{}, false, err
	}
	return models.TokenRecord{
		Key:          models.RecipientKey{Kind: models.KeyKind(row.Kind), ID: row.KeyID},
		Token:        row.Token,
		DriverNumber: row.DriverNumber,
		UpdatedAt:    row.UpdatedAt,
	}, true, nil
}
