package command

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/tair/rent-payments/internal/payment/domain"
	"github.com/tair/rent-payments/internal/payment/gateway"
	"github.com/tair/rent-payments/pkg/logger"
)

// RefundCommand represents the command to refund a completed payment.
// A nil Amount refunds everything still refundable.
type RefundCommand struct {
	PaymentID string
	Amount    *decimal.Decimal
	Reason    string
}

// RefundHandler handles the refund payment command
type RefundHandler struct {
	repo      domain.PaymentRepository
	gateway   gateway.Gateway
	publisher EventPublisher
}

// NewRefundHandler creates a new refund handler
func NewRefundHandler(repo domain.PaymentRepository, gw gateway.Gateway, publisher EventPublisher) *RefundHandler {
	return &RefundHandler{repo: repo, gateway: gw, publisher: publisher}
}

// Handle applies a full or partial refund. Cumulative refunds are capped at
// the original amount; the payment reaches Refunded only when fully repaid.
func (h *RefundHandler) Handle(ctx context.Context, cmd RefundCommand) (*domain.Payment, error) {
	if cmd.PaymentID == "" {
		return nil, domain.NewValidationError("payment_id", "payment_id is required")
	}

	payment, err := h.repo.FindByID(cmd.PaymentID)
	if err != nil {
		return nil, err
	}

	if payment.Status != domain.StatusCompleted {
		if payment.Status == domain.StatusRefunded {
			return nil, domain.NewValidationError("amount", "payment is already fully refunded")
		}
		return nil, fmt.Errorf("%w: cannot refund payment in status %s", domain.ErrInvalidTransition, payment.Status)
	}

	amount := payment.RemainingRefundable()
	if cmd.Amount != nil {
		amount = *cmd.Amount
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, domain.NewValidationError("amount", "refund amount must be greater than zero")
	}
	if amount.GreaterThan(payment.RemainingRefundable()) {
		return nil, domain.NewValidationError("amount", "cumulative refunds would exceed payment amount")
	}

	from := payment.Status

	if payment.Method.RequiresGateway() && payment.ExternalTransactionID != "" {
		result, err := h.gateway.Refund(ctx, payment, &amount, cmd.Reason)
		if err != nil {
			return nil, fmt.Errorf("%w", &domain.GatewayError{Operation: "refund", Message: err.Error()})
		}
		if !result.Success {
			return nil, fmt.Errorf("%w", &domain.GatewayError{
				Operation: "refund",
				Code:      result.ErrorCode,
				Message:   result.ErrorMessage,
			})
		}
	}

	if err := payment.ApplyRefund(amount); err != nil {
		return nil, err
	}
	if cmd.Reason != "" {
		payment.Notes = appendNote(payment.Notes, "refund: "+cmd.Reason)
	}

	committed, err := commitTransition(ctx, h.repo, payment, from)
	if err != nil {
		return nil, err
	}
	publishStatusChanged(ctx, h.publisher, committed, from)

	logger.Info(ctx).
		Str("payment_id", committed.ID).
		Str("refund_amount", amount.StringFixed(2)).
		Str("refunded_total", committed.RefundedAmount.StringFixed(2)).
		Bool("fully_refunded", committed.IsRefunded).
		Msg("Payment refunded")

	return committed, nil
}
