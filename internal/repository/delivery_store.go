package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NotificationDelivery is one row of the delivery log.
type NotificationDelivery struct {
	RequestID string `gorm:"primaryKey"`
	Recipient string
	Target    string
	Status    string
	Provider  string
	MessageID string
	Detail    string
	UpdatedAt time.Time
}

// DeliveryStore records the outcome of every send attempt.
type DeliveryStore struct {
	db        *gorm.DB
	tableName string
}

func NewDeliveryStore(db *gorm.DB, tableName string) (*DeliveryStore, error) {
	if tableName == "" {
		tableName = "notification_deliveries"
	}
	if err := db.Table(tableName).AutoMigrate(&NotificationDelivery{}); err != nil {
		return nil, err
	}
	return &DeliveryStore{
		db:        db,
		tableName: tableName,
	}, nil
}

func (s *DeliveryStore) Save(ctx context.Context, d NotificationDelivery) error {
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = time.Now()
	}
	return s.db.WithContext(ctx).Table(s.tableName).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "request_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "provider", "message_id", "detail", "updated_at"}),
		}).Create(&d).Error
}
