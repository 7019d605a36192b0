package command

import (
	"context"
	"fmt"

	"github.com/tair/rent-payments/internal/payment/domain"
	"github.com/tair/rent-payments/internal/payment/gateway"
	"github.com/tair/rent-payments/pkg/logger"
)

// CancelCommand represents the command to cancel a payment before capture
type CancelCommand struct {
	PaymentID string
	Reason    string
}

// CancelHandler handles the cancel payment command
type CancelHandler struct {
	repo      domain.PaymentRepository
	gateway   gateway.Gateway
	publisher EventPublisher
}

// NewCancelHandler creates a new cancel handler
func NewCancelHandler(repo domain.PaymentRepository, gw gateway.Gateway, publisher EventPublisher) *CancelHandler {
	return &CancelHandler{repo: repo, gateway: gw, publisher: publisher}
}

// Handle cancels a payment that has not been captured yet. A cancel racing a
// concurrent Process is settled by the version check; the loser surfaces as
// an invalid transition.
func (h *CancelHandler) Handle(ctx context.Context, cmd CancelCommand) (*domain.Payment, error) {
	if cmd.PaymentID == "" {
		return nil, domain.NewValidationError("payment_id", "payment_id is required")
	}

	payment, err := h.repo.FindByID(cmd.PaymentID)
	if err != nil {
		return nil, err
	}

	if payment.Status == domain.StatusCancelled {
		return payment, nil
	}
	if !payment.Status.CanTransitionTo(domain.StatusCancelled) {
		return nil, fmt.Errorf("%w: cannot cancel payment in status %s", domain.ErrInvalidTransition, payment.Status)
	}

	from := payment.Status

	// Void the uncaptured charge at the provider first; a failure there
	// leaves our record untouched so the cancel can be retried.
	if payment.ExternalTransactionID != "" && payment.Method.RequiresGateway() {
		result, err := h.gateway.Cancel(ctx, payment, cmd.Reason)
		if err != nil {
			return nil, fmt.Errorf("%w", &domain.GatewayError{Operation: "cancel", Message: err.Error()})
		}
		if !result.Success {
			return nil, fmt.Errorf("%w", &domain.GatewayError{
				Operation: "cancel",
				Code:      result.ErrorCode,
				Message:   result.ErrorMessage,
			})
		}
	}

	payment.Status = domain.StatusCancelled
	if cmd.Reason != "" {
		payment.Notes = appendNote(payment.Notes, "cancelled: "+cmd.Reason)
	}

	committed, err := commitTransition(ctx, h.repo, payment, from)
	if err != nil {
		return nil, err
	}
	publishStatusChanged(ctx, h.publisher, committed, from)

	logger.Info(ctx).
		Str("payment_id", committed.ID).
		Str("reason", cmd.Reason).
		Msg("Payment cancelled")

	return committed, nil
}

func appendNote(existing, note string) string {
	if existing == "" {
		return note
	}
	return existing + "; " + note
}
