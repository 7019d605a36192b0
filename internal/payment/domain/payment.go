package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Payment represents a single rent payment and is the aggregate root of the
// lifecycle engine. Records are never physically deleted; gorm soft delete
// keeps the financial audit trail intact.
type Payment struct {
	ID       string          `json:"id" gorm:"primaryKey;size:36"`
	TenantID string          `json:"tenant_id" gorm:"not null;index;index:idx_tenant_period,unique"`
	LeaseID  string          `json:"lease_id,omitempty" gorm:"index"`
	Amount   decimal.Decimal `json:"amount" gorm:"type:numeric(12,2);not null"`
	Currency string          `json:"currency" gorm:"size:3;default:'EUR'"`
	Date     time.Time       `json:"date" gorm:"not null"`
	Method   Method          `json:"method" gorm:"size:20;not null"`
	Status   Status          `json:"status" gorm:"size:20;default:'pending';index"`

	// PaymentReference is the caller-visible reference used for
	// bank-transfer matching. Unique by construction.
	PaymentReference string `json:"payment_reference" gorm:"uniqueIndex;size:40;not null"`

	// ConfirmationCode is set only after an explicit confirmation flow.
	ConfirmationCode string `json:"confirmation_code,omitempty"`

	// ExternalTransactionID is assigned by the gateway on the first
	// successful call and never changes afterwards.
	ExternalTransactionID string `json:"external_transaction_id,omitempty" gorm:"index"`

	IsRecurring bool `json:"is_recurring" gorm:"default:false"`
	// RecurringForMonth tags the billing period ("2026-09") a generated
	// payment satisfies. Nullable so one-off payments never collide on
	// the (tenant_id, recurring_for_month) unique index.
	RecurringForMonth *string `json:"recurring_for_month,omitempty" gorm:"size:7;index:idx_tenant_period,unique"`

	IsRefunded     bool            `json:"is_refunded" gorm:"default:false"`
	RefundedAmount decimal.Decimal `json:"refunded_amount" gorm:"type:numeric(12,2);default:0"`

	FailureCode    string `json:"failure_code,omitempty"`
	FailureMessage string `json:"failure_message,omitempty"`
	Notes          string `json:"notes,omitempty"`

	// Version guards every mutation with an optimistic check; two
	// concurrent transition attempts never both succeed.
	Version int64 `json:"-" gorm:"not null;default:0"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName specifies the table name
func (Payment) TableName() string {
	return "payments"
}

// RemainingRefundable returns how much of the amount can still be refunded.
func (p *Payment) RemainingRefundable() decimal.Decimal {
	return p.Amount.Sub(p.RefundedAmount)
}

// ApplyRefund accumulates a refund on the payment, enforcing the cap that
// cumulative refunds never exceed the original amount. The payment moves to
// Refunded only once fully refunded; partial refunds keep it Completed.
func (p *Payment) ApplyRefund(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return NewValidationError("amount", "refund amount must be greater than zero")
	}
	if p.Status != StatusCompleted && p.Status != StatusRefunded {
		return ErrInvalidTransition
	}
	if amount.GreaterThan(p.RemainingRefundable()) {
		return NewValidationError("amount", "cumulative refunds would exceed payment amount")
	}
	p.RefundedAmount = p.RefundedAmount.Add(amount)
	if p.RefundedAmount.Equal(p.Amount) {
		p.Status = StatusRefunded
		p.IsRefunded = true
	}
	return nil
}

// SetExternalTransactionID records the gateway transaction id exactly once.
func (p *Payment) SetExternalTransactionID(extID string) error {
	if extID == "" {
		return nil
	}
	if p.ExternalTransactionID != "" && p.ExternalTransactionID != extID {
		return NewValidationError("external_transaction_id", "external transaction id is immutable once set")
	}
	p.ExternalTransactionID = extID
	return nil
}

// PaymentFilter narrows list queries.
type PaymentFilter struct {
	TenantID string
	Status   Status
	Method   Method
	From     *time.Time
	To       *time.Time
	Limit    int
	Offset   int
}

// Statistics aggregates payments over a date range.
type Statistics struct {
	TotalCount     int64                      `json:"total_count"`
	TotalAmount    decimal.Decimal            `json:"total_amount"`
	RefundedAmount decimal.Decimal            `json:"refunded_amount"`
	ByStatus       map[Status]StatusBucket    `json:"by_status"`
	ByMethod       map[Method]decimal.Decimal `json:"by_method"`
	Monthly        []MonthlyBucket            `json:"monthly"`
}

// StatusBucket holds the count and sum for one status.
type StatusBucket struct {
	Count  int64           `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

// MonthlyBucket holds the completed total for one calendar month.
type MonthlyBucket struct {
	Month  string          `json:"month"`
	Count  int64           `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

// PaymentRepository defines the contract for payment data access.
type PaymentRepository interface {
	Create(payment *Payment) error
	FindByID(id string) (*Payment, error)
	FindByReference(reference string) (*Payment, error)
	FindByExternalTransactionID(extID string) (*Payment, error)
	Find(filter PaymentFilter) ([]Payment, error)
	// ExistsForPeriod reports whether a recurring payment already exists
	// for the tenant and billing period ("2026-09").
	ExistsForPeriod(tenantID, period string) (bool, error)
	// UpdateVersioned persists the payment only if the stored version
	// still matches payment.Version; on success the version is bumped.
	// Returns ErrVersionConflict when a concurrent writer won.
	UpdateVersioned(payment *Payment) error
	Statistics(from, to time.Time) (*Statistics, error)
}

// WebhookEventRepository records processed gateway events so that replayed
// deliveries are detected before any transition is attempted.
type WebhookEventRepository interface {
	// MarkProcessed records the event id. Returns ErrDuplicateEvent if
	// the same event was recorded before.
	MarkProcessed(eventID, eventType string) error
}
