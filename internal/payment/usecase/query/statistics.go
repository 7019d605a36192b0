package query

import (
	"time"

	"github.com/tair/rent-payments/internal/payment/domain"
)

// StatisticsQuery represents the query for aggregate payment totals
type StatisticsQuery struct {
	From time.Time
	To   time.Time
}

// StatisticsHandler handles statistics query
type StatisticsHandler struct {
	repo domain.PaymentRepository
}

// NewStatisticsHandler creates a new statistics handler
func NewStatisticsHandler(repo domain.PaymentRepository) *StatisticsHandler {
	return &StatisticsHandler{repo: repo}
}

// Handle executes the statistics query
func (h *StatisticsHandler) Handle(query StatisticsQuery) (*domain.Statistics, error) {
	if query.From.IsZero() || query.To.IsZero() {
		return nil, domain.NewValidationError("range", "from and to are required")
	}
	if query.To.Before(query.From) {
		return nil, domain.NewValidationError("range", "to must not precede from")
	}
	return h.repo.Statistics(query.From, query.To)
}
