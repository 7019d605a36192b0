package domain

import "time"

// WebhookEvent is the processed-event ledger for gateway webhooks. The unique
// event id turns replayed deliveries into no-ops at the database level.
type WebhookEvent struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	EventID     string    `json:"event_id" gorm:"uniqueIndex;size:64;not null"`
	EventType   string    `json:"event_type" gorm:"size:40"`
	ProcessedAt time.Time `json:"processed_at"`
}

// TableName specifies the table name
func (WebhookEvent) TableName() string {
	return "webhook_events"
}
