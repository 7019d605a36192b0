package command

import (
	"context"
	"fmt"

	"github.com/tair/rent-payments/internal/payment/domain"
	"github.com/tair/rent-payments/internal/payment/gateway"
	"github.com/tair/rent-payments/pkg/logger"
)

// ProcessCommand represents the command to start capturing a payment
type ProcessCommand struct {
	PaymentID   string
	PayerID     string
	MethodToken string
}

// ProcessHandler handles the process payment command
type ProcessHandler struct {
	repo      domain.PaymentRepository
	gateway   gateway.Gateway
	publisher EventPublisher
}

// NewProcessHandler creates a new process handler
func NewProcessHandler(repo domain.PaymentRepository, gw gateway.Gateway, publisher EventPublisher) *ProcessHandler {
	return &ProcessHandler{repo: repo, gateway: gw, publisher: publisher}
}

// Handle moves a Pending payment to Processing. Gateway-backed methods are
// charged at the provider; manual methods (bank transfer, cash, check) just
// enter Processing and wait for reconciliation or confirmation.
func (h *ProcessHandler) Handle(ctx context.Context, cmd ProcessCommand) (*domain.Payment, error) {
	if cmd.PaymentID == "" {
		return nil, domain.NewValidationError("payment_id", "payment_id is required")
	}

	payment, err := h.repo.FindByID(cmd.PaymentID)
	if err != nil {
		return nil, err
	}

	// Re-applying Process to a payment already in flight is a no-op.
	if payment.Status == domain.StatusProcessing {
		return payment, nil
	}
	if !payment.Status.CanTransitionTo(domain.StatusProcessing) {
		return nil, fmt.Errorf("%w: cannot process payment in status %s", domain.ErrInvalidTransition, payment.Status)
	}

	from := payment.Status
	target := domain.StatusProcessing

	if payment.Method.RequiresGateway() {
		// The gateway call runs outside the version-guarded commit; the
		// adapter's idempotency key keeps a retried call single-effect.
		result, err := h.gateway.Charge(ctx, payment, gateway.Payer{ExternalPayerID: cmd.PayerID}, cmd.MethodToken)
		if err != nil {
			// Transport failure after retries: leave the payment as it
			// was so the operation can be retried safely.
			return nil, fmt.Errorf("%w", &domain.GatewayError{
				Operation: "charge",
				Message:   err.Error(),
			})
		}

		if !result.Success {
			// Terminal provider rejection: the payment fails and a new
			// payment must be created to retry.
			payment.Status = domain.StatusFailed
			payment.FailureCode = result.ErrorCode
			payment.FailureMessage = result.ErrorMessage
			if _, commitErr := commitTransition(ctx, h.repo, payment, from); commitErr != nil {
				return nil, commitErr
			}
			publishStatusChanged(ctx, h.publisher, payment, from)
			return nil, fmt.Errorf("%w", &domain.GatewayError{
				Operation: "charge",
				Code:      result.ErrorCode,
				Message:   result.ErrorMessage,
			})
		}

		if err := payment.SetExternalTransactionID(result.ExternalTransactionID); err != nil {
			return nil, err
		}
		payment.ConfirmationCode = result.ConfirmationCode
		// Some captures settle synchronously.
		if result.Status == domain.StatusCompleted {
			target = domain.StatusCompleted
		}
	}

	payment.Status = target
	committed, err := commitTransition(ctx, h.repo, payment, from)
	if err != nil {
		return nil, err
	}
	publishStatusChanged(ctx, h.publisher, committed, from)

	logger.Info(ctx).
		Str("payment_id", committed.ID).
		Str("external_transaction_id", committed.ExternalTransactionID).
		Str("status", string(committed.Status)).
		Msg("Payment processed")

	return committed, nil
}
