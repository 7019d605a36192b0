package query

import (
	"github.com/tair/rent-payments/internal/payment/domain"
)

// GetPaymentQuery represents the query to get a payment
type GetPaymentQuery struct {
	ID string
}

// GetPaymentHandler handles get payment query
type GetPaymentHandler struct {
	repo domain.PaymentRepository
}

// NewGetPaymentHandler creates a new get payment handler
func NewGetPaymentHandler(repo domain.PaymentRepository) *GetPaymentHandler {
	return &GetPaymentHandler{repo: repo}
}

// Handle executes the get payment query
func (h *GetPaymentHandler) Handle(query GetPaymentQuery) (*domain.Payment, error) {
	if query.ID == "" {
		return nil, domain.NewValidationError("id", "id is required")
	}
	return h.repo.FindByID(query.ID)
}
