package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/zoobzio/clockz"

	"github.com/tair/rent-payments/internal/payment/domain"
	"github.com/tair/rent-payments/pkg/logger"
)

// InitiateCommand represents the command to create a payment
type InitiateCommand struct {
	TenantID string
	LeaseID  string
	Amount   decimal.Decimal
	Currency string
	Method   domain.Method
	Date     time.Time
	Notes    string

	// Set by the recurring generator.
	IsRecurring       bool
	RecurringForMonth *string
}

// InitiateHandler handles the initiate payment command
type InitiateHandler struct {
	repo            domain.PaymentRepository
	clock           clockz.Clock
	defaultCurrency string
}

// NewInitiateHandler creates a new initiate handler
func NewInitiateHandler(repo domain.PaymentRepository, clock clockz.Clock, defaultCurrency string) *InitiateHandler {
	if clock == nil {
		clock = clockz.RealClock
	}
	if defaultCurrency == "" {
		defaultCurrency = "EUR"
	}
	return &InitiateHandler{repo: repo, clock: clock, defaultCurrency: defaultCurrency}
}

// Handle creates a payment in Pending with a unique payment reference.
func (h *InitiateHandler) Handle(ctx context.Context, cmd InitiateCommand) (*domain.Payment, error) {
	if cmd.TenantID == "" {
		return nil, domain.NewValidationError("tenant_id", "tenant_id is required")
	}
	if cmd.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, domain.NewValidationError("amount", "amount must be greater than 0")
	}
	if !cmd.Method.IsValid() {
		return nil, domain.NewValidationError("method", fmt.Sprintf("unknown payment method %q", cmd.Method))
	}
	if cmd.Currency == "" {
		cmd.Currency = h.defaultCurrency
	}
	if cmd.Date.IsZero() {
		cmd.Date = h.clock.Now()
	}

	payment := &domain.Payment{
		ID:                uuid.New().String(),
		TenantID:          cmd.TenantID,
		LeaseID:           cmd.LeaseID,
		Amount:            cmd.Amount,
		Currency:          cmd.Currency,
		Date:              cmd.Date,
		Method:            cmd.Method,
		Status:            domain.StatusPending,
		PaymentReference:  newPaymentReference(),
		Notes:             cmd.Notes,
		IsRecurring:       cmd.IsRecurring,
		RecurringForMonth: cmd.RecurringForMonth,
		RefundedAmount:    decimal.Zero,
	}

	if err := h.repo.Create(payment); err != nil {
		return nil, err
	}

	logger.Info(ctx).
		Str("payment_id", payment.ID).
		Str("tenant_id", payment.TenantID).
		Str("reference", payment.PaymentReference).
		Str("method", string(payment.Method)).
		Str("amount", payment.Amount.StringFixed(2)).
		Bool("recurring", payment.IsRecurring).
		Msg("Payment initiated")

	return payment, nil
}

// newPaymentReference generates the caller-visible reference used on bank
// transfer statements.
func newPaymentReference() string {
	raw := strings.ReplaceAll(uuid.New().String(), "-", "")
	return fmt.Sprintf("RENT-%s", strings.ToUpper(raw[:12]))
}
