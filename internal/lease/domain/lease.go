package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	paymentdomain "github.com/tair/rent-payments/internal/payment/domain"
)

// Lease is the slice of the lease aggregate the payment engine needs: which
// tenants are actively renting, for how much, and how they pay.
type Lease struct {
	ID         string                `json:"id" gorm:"primaryKey;size:36"`
	TenantID   string                `json:"tenant_id" gorm:"not null;index"`
	PropertyID string                `json:"property_id" gorm:"index"`
	RentAmount decimal.Decimal       `json:"rent_amount" gorm:"type:numeric(12,2);not null"`
	Currency   string                `json:"currency" gorm:"size:3;default:'EUR'"`
	Method     paymentdomain.Method  `json:"method" gorm:"size:20;default:'bank_transfer'"`
	BillingDay int                   `json:"billing_day" gorm:"default:1"`
	IsActive   bool                  `json:"is_active" gorm:"default:true;index"`
	StartDate  time.Time             `json:"start_date"`
	EndDate    *time.Time            `json:"end_date,omitempty"`
	CreatedAt  time.Time             `json:"created_at"`
	UpdatedAt  time.Time             `json:"updated_at"`
	DeletedAt  gorm.DeletedAt        `json:"-" gorm:"index"`
}

// TableName specifies the table name
func (Lease) TableName() string {
	return "leases"
}

// LeaseRepository defines the contract for lease data access.
type LeaseRepository interface {
	FindActive() ([]Lease, error)
	FindByID(id string) (*Lease, error)
}
