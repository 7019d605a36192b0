package command

import (
	"context"
	"fmt"

	"github.com/tair/rent-payments/internal/payment/domain"
	"github.com/tair/rent-payments/internal/payment/gateway"
)

// ConfirmCommand represents the command to complete a payment that required
// additional authentication.
type ConfirmCommand struct {
	PaymentID        string
	ConfirmationCode string
}

// ConfirmHandler handles the confirm payment command
type ConfirmHandler struct {
	repo      domain.PaymentRepository
	gateway   gateway.Gateway
	publisher EventPublisher
}

// NewConfirmHandler creates a new confirm handler
func NewConfirmHandler(repo domain.PaymentRepository, gw gateway.Gateway, publisher EventPublisher) *ConfirmHandler {
	return &ConfirmHandler{repo: repo, gateway: gw, publisher: publisher}
}

// Handle completes a Processing payment.
func (h *ConfirmHandler) Handle(ctx context.Context, cmd ConfirmCommand) (*domain.Payment, error) {
	if cmd.PaymentID == "" {
		return nil, domain.NewValidationError("payment_id", "payment_id is required")
	}

	payment, err := h.repo.FindByID(cmd.PaymentID)
	if err != nil {
		return nil, err
	}

	// Already-completed payments supersede the requested confirmation.
	if payment.Status == domain.StatusCompleted || payment.Status == domain.StatusRefunded {
		return payment, nil
	}
	if payment.Status != domain.StatusProcessing {
		return nil, fmt.Errorf("%w: cannot confirm payment in status %s", domain.ErrInvalidTransition, payment.Status)
	}

	from := payment.Status

	if payment.Method.RequiresGateway() {
		result, err := h.gateway.Confirm(ctx, payment, cmd.ConfirmationCode)
		if err != nil {
			return nil, fmt.Errorf("%w", &domain.GatewayError{Operation: "confirm", Message: err.Error()})
		}
		if !result.Success {
			payment.Status = domain.StatusFailed
			payment.FailureCode = result.ErrorCode
			payment.FailureMessage = result.ErrorMessage
			if _, commitErr := commitTransition(ctx, h.repo, payment, from); commitErr != nil {
				return nil, commitErr
			}
			publishStatusChanged(ctx, h.publisher, payment, from)
			return nil, fmt.Errorf("%w", &domain.GatewayError{
				Operation: "confirm",
				Code:      result.ErrorCode,
				Message:   result.ErrorMessage,
			})
		}
		if result.ConfirmationCode != "" {
			cmd.ConfirmationCode = result.ConfirmationCode
		}
		if err := payment.SetExternalTransactionID(result.ExternalTransactionID); err != nil {
			return nil, err
		}
	}

	payment.ConfirmationCode = cmd.ConfirmationCode
	payment.Status = domain.StatusCompleted

	committed, err := commitTransition(ctx, h.repo, payment, from)
	if err != nil {
		return nil, err
	}
	publishStatusChanged(ctx, h.publisher, committed, from)
	return committed, nil
}
