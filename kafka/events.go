package kafka

import "time"

// PaymentStatusChangedEvent is published after every committed payment
// transition so downstream projections (accounting, notifications) can react.
type PaymentStatusChangedEvent struct {
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	PaymentID  string    `json:"payment_id"`
	TenantID   string    `json:"tenant_id"`
	Amount     string    `json:"amount"`
	Currency   string    `json:"currency"`
	Method     string    `json:"method"`
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	Reference  string    `json:"reference"`
	Timestamp  time.Time `json:"timestamp"`
}

// Event types
const (
	EventTypePaymentStatusChanged = "payment.status.changed"
)

// Kafka topics
const (
	TopicPaymentStatusChanged = "payment-status-changed"
)
