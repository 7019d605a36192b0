package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tair/rent-payments/internal/payment/domain"
	"github.com/tair/rent-payments/pkg/logger"
)

// ReconcileCommand carries one bank statement entry to match.
type ReconcileCommand struct {
	Reference     string
	Amount        decimal.Decimal
	Date          time.Time
	BankAccountID string
}

// MatchResult reports the reconciliation outcome. Unmatched entries are
// queued for manual review, never auto-resolved.
type MatchResult struct {
	Matched   bool   `json:"matched"`
	PaymentID string `json:"payment_id,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// ReconcileHandler matches bank transfer confirmations to pending payments.
type ReconcileHandler struct {
	repo      domain.PaymentRepository
	publisher EventPublisher
}

// NewReconcileHandler creates a new reconcile handler
func NewReconcileHandler(repo domain.PaymentRepository, publisher EventPublisher) *ReconcileHandler {
	return &ReconcileHandler{repo: repo, publisher: publisher}
}

// Handle matches a bank entry against a Pending/Processing bank-transfer
// payment with the exact same reference and amount. Amounts must match to
// the cent; approximate matching of money is never acceptable.
func (h *ReconcileHandler) Handle(ctx context.Context, cmd ReconcileCommand) (*MatchResult, error) {
	if cmd.Reference == "" {
		return nil, domain.NewValidationError("reference", "reference is required")
	}

	payment, err := h.repo.FindByReference(cmd.Reference)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return h.unmatched(ctx, cmd, "no payment with this reference"), nil
		}
		return nil, err
	}

	if payment.Method != domain.MethodBankTransfer {
		return h.unmatched(ctx, cmd, fmt.Sprintf("payment method is %s, not bank transfer", payment.Method)), nil
	}

	// A statement entry showing up twice for an already-settled payment is
	// a replay, not a mismatch.
	if payment.Status == domain.StatusCompleted && payment.Amount.Equal(cmd.Amount) {
		return &MatchResult{Matched: true, PaymentID: payment.ID, Reason: "already completed"}, nil
	}

	if payment.Status != domain.StatusPending && payment.Status != domain.StatusProcessing {
		return h.unmatched(ctx, cmd, fmt.Sprintf("payment is %s", payment.Status)), nil
	}

	if !payment.Amount.Equal(cmd.Amount) {
		return h.unmatched(ctx, cmd, fmt.Sprintf(
			"amount mismatch: expected %s, statement shows %s",
			payment.Amount.StringFixed(2), cmd.Amount.StringFixed(2),
		)), nil
	}

	from := payment.Status
	payment.Status = domain.StatusCompleted
	if cmd.BankAccountID != "" {
		payment.Notes = appendNote(payment.Notes, "reconciled from account "+cmd.BankAccountID)
	}

	committed, err := commitTransition(ctx, h.repo, payment, from)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			return h.unmatched(ctx, cmd, "payment changed state during reconciliation"), nil
		}
		return nil, err
	}
	publishStatusChanged(ctx, h.publisher, committed, from)

	logger.Info(ctx).
		Str("payment_id", committed.ID).
		Str("reference", cmd.Reference).
		Str("amount", cmd.Amount.StringFixed(2)).
		Msg("Bank transfer reconciled")

	return &MatchResult{Matched: true, PaymentID: committed.ID}, nil
}

func (h *ReconcileHandler) unmatched(ctx context.Context, cmd ReconcileCommand, reason string) *MatchResult {
	logger.Warn(ctx).
		Str("reference", cmd.Reference).
		Str("amount", cmd.Amount.StringFixed(2)).
		Str("reason", reason).
		Msg("Bank entry left unmatched for manual review")
	return &MatchResult{Matched: false, Reason: reason}
}
