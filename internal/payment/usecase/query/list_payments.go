package query

import (
	"time"

	"github.com/tair/rent-payments/internal/payment/domain"
)

// ListPaymentsQuery represents the query to list payments
type ListPaymentsQuery struct {
	TenantID string
	Status   domain.Status
	Method   domain.Method
	From     *time.Time
	To       *time.Time
	Limit    int
	Offset   int
}

// ListPaymentsHandler handles list payments query
type ListPaymentsHandler struct {
	repo domain.PaymentRepository
}

// NewListPaymentsHandler creates a new list payments handler
func NewListPaymentsHandler(repo domain.PaymentRepository) *ListPaymentsHandler {
	return &ListPaymentsHandler{repo: repo}
}

// Handle executes the list payments query
func (h *ListPaymentsHandler) Handle(query ListPaymentsQuery) ([]domain.Payment, error) {
	if query.Status != "" && !query.Status.IsValid() {
		return nil, domain.NewValidationError("status", "unknown status filter")
	}
	if query.Method != "" && !query.Method.IsValid() {
		return nil, domain.NewValidationError("method", "unknown method filter")
	}

	if query.Limit == 0 {
		query.Limit = 10
	}
	if query.Limit > 100 {
		query.Limit = 100
	}

	return h.repo.Find(domain.PaymentFilter{
		TenantID: query.TenantID,
		Status:   query.Status,
		Method:   query.Method,
		From:     query.From,
		To:       query.To,
		Limit:    query.Limit,
		Offset:   query.Offset,
	})
}
