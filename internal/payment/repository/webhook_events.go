package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tair/rent-payments/internal/payment/domain"
)

type GormWebhookEventRepository struct {
	db *gorm.DB
}

func NewGormWebhookEventRepository(db *gorm.DB) *GormWebhookEventRepository {
	return &GormWebhookEventRepository{db: db}
}

func (r *GormWebhookEventRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&domain.WebhookEvent{})
}

// MarkProcessed inserts the event id; the unique index turns a replayed
// delivery into domain.ErrDuplicateEvent without racing.
func (r *GormWebhookEventRepository) MarkProcessed(eventID, eventType string) error {
	event := &domain.WebhookEvent{
		EventID:     eventID,
		EventType:   eventType,
		ProcessedAt: time.Now(),
	}
	if err := r.db.Create(event).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrDuplicateEvent
		}
		return err
	}
	return nil
}
