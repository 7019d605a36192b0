package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	leasedomain "github.com/tair/rent-payments/internal/lease/domain"
	"github.com/tair/rent-payments/internal/payment/domain"
	"github.com/tair/rent-payments/pkg/logger"
)

// GenerateRecurringCommand identifies the billing period to generate.
type GenerateRecurringCommand struct {
	Year  int
	Month time.Month
}

// GeneratedSummary reports one generator run.
type GeneratedSummary struct {
	Period     string   `json:"period"`
	Created    int      `json:"created"`
	Skipped    int      `json:"skipped"`
	Failed     int      `json:"failed"`
	PaymentIDs []string `json:"payment_ids,omitempty"`
}

// GenerateRecurringHandler produces one payment per active lease per billing
// period. Creation goes through the initiate handler so generated payments
// follow the exact same path as manual ones; the (tenant, period) unique
// constraint makes concurrent runs single-effect.
type GenerateRecurringHandler struct {
	payments domain.PaymentRepository
	leases   leasedomain.LeaseRepository
	initiate *InitiateHandler
}

// NewGenerateRecurringHandler creates a new recurring generator
func NewGenerateRecurringHandler(payments domain.PaymentRepository, leases leasedomain.LeaseRepository, initiate *InitiateHandler) *GenerateRecurringHandler {
	return &GenerateRecurringHandler{payments: payments, leases: leases, initiate: initiate}
}

// Handle generates the period's payments. Running it again, or concurrently,
// creates nothing new.
func (h *GenerateRecurringHandler) Handle(ctx context.Context, cmd GenerateRecurringCommand) (*GeneratedSummary, error) {
	if cmd.Year < 2000 || cmd.Year > 2200 {
		return nil, domain.NewValidationError("year", "year out of range")
	}
	if cmd.Month < time.January || cmd.Month > time.December {
		return nil, domain.NewValidationError("month", "month must be between 1 and 12")
	}

	period := fmt.Sprintf("%04d-%02d", cmd.Year, cmd.Month)
	summary := &GeneratedSummary{Period: period}

	leases, err := h.leases.FindActive()
	if err != nil {
		return nil, fmt.Errorf("failed to load active leases: %w", err)
	}

	for _, lease := range leases {
		exists, err := h.payments.ExistsForPeriod(lease.TenantID, period)
		if err != nil {
			summary.Failed++
			logger.Error(ctx).
				Err(err).
				Str("lease_id", lease.ID).
				Str("period", period).
				Msg("Failed to check existing recurring payment")
			continue
		}
		if exists {
			summary.Skipped++
			continue
		}

		recurringMonth := period
		payment, err := h.initiate.Handle(ctx, InitiateCommand{
			TenantID:          lease.TenantID,
			LeaseID:           lease.ID,
			Amount:            lease.RentAmount,
			Currency:          lease.Currency,
			Method:            lease.Method,
			Date:              billingDate(cmd.Year, cmd.Month, lease.BillingDay),
			IsRecurring:       true,
			RecurringForMonth: &recurringMonth,
		})
		if err != nil {
			// The existence check raced a concurrent generator run; the
			// unique constraint kept the charge single.
			if errors.Is(err, domain.ErrDuplicatePeriod) {
				summary.Skipped++
				continue
			}
			summary.Failed++
			logger.Error(ctx).
				Err(err).
				Str("lease_id", lease.ID).
				Str("tenant_id", lease.TenantID).
				Str("period", period).
				Msg("Failed to generate recurring payment")
			continue
		}

		summary.Created++
		summary.PaymentIDs = append(summary.PaymentIDs, payment.ID)
	}

	logger.Info(ctx).
		Str("period", period).
		Int("created", summary.Created).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Msg("Recurring payment generation finished")

	return summary, nil
}

// billingDate clamps the lease's billing day into the period's month.
func billingDate(year int, month time.Month, day int) time.Time {
	if day < 1 {
		day = 1
	}
	lastDay := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
