package command

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	leasedomain "github.com/tair/rent-payments/internal/lease/domain"
	"github.com/tair/rent-payments/internal/payment/domain"
	"github.com/tair/rent-payments/internal/payment/gateway"
	"github.com/tair/rent-payments/kafka"
)

// memRepo is an in-memory PaymentRepository with the same versioning and
// uniqueness semantics as the gorm implementation.
type memRepo struct {
	mu       sync.Mutex
	payments map[string]*domain.Payment
}

func newMemRepo() *memRepo {
	return &memRepo{payments: make(map[string]*domain.Payment)}
}

func clonePayment(p *domain.Payment) *domain.Payment {
	c := *p
	if p.RecurringForMonth != nil {
		month := *p.RecurringForMonth
		c.RecurringForMonth = &month
	}
	return &c
}

func (m *memRepo) Create(payment *domain.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.payments {
		if existing.PaymentReference == payment.PaymentReference {
			return domain.ErrDuplicateReference
		}
		if payment.RecurringForMonth != nil && existing.RecurringForMonth != nil &&
			existing.TenantID == payment.TenantID &&
			*existing.RecurringForMonth == *payment.RecurringForMonth {
			return domain.ErrDuplicatePeriod
		}
	}
	m.payments[payment.ID] = clonePayment(payment)
	return nil
}

func (m *memRepo) FindByID(id string) (*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return clonePayment(p), nil
}

func (m *memRepo) FindByReference(reference string) (*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.PaymentReference == reference {
			return clonePayment(p), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memRepo) FindByExternalTransactionID(extID string) (*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.ExternalTransactionID == extID && extID != "" {
			return clonePayment(p), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memRepo) Find(filter domain.PaymentFilter) ([]domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Payment
	for _, p := range m.payments {
		if filter.TenantID != "" && p.TenantID != filter.TenantID {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if filter.Method != "" && p.Method != filter.Method {
			continue
		}
		out = append(out, *clonePayment(p))
	}
	return out, nil
}

func (m *memRepo) ExistsForPeriod(tenantID, period string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.TenantID == tenantID && p.RecurringForMonth != nil && *p.RecurringForMonth == period {
			return true, nil
		}
	}
	return false, nil
}

func (m *memRepo) UpdateVersioned(payment *domain.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.payments[payment.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if stored.Version != payment.Version {
		return domain.ErrVersionConflict
	}
	payment.Version++
	m.payments[payment.ID] = clonePayment(payment)
	return nil
}

func (m *memRepo) Statistics(from, to time.Time) (*domain.Statistics, error) {
	return &domain.Statistics{}, nil
}

// memEvents is an in-memory WebhookEventRepository.
type memEvents struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newMemEvents() *memEvents {
	return &memEvents{seen: make(map[string]bool)}
}

func (m *memEvents) MarkProcessed(eventID, eventType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seen[eventID] {
		return domain.ErrDuplicateEvent
	}
	m.seen[eventID] = true
	return nil
}

// fakeGateway returns scripted results and counts calls.
type fakeGateway struct {
	mu sync.Mutex

	chargeResult  *gateway.Result
	chargeErr     error
	confirmResult *gateway.Result
	refundResult  *gateway.Result
	cancelResult  *gateway.Result
	statusResult  *gateway.Result

	chargeCalls  int
	confirmCalls int
	refundCalls  int
	cancelCalls  int
}

func successResult(extID string, status domain.Status) *gateway.Result {
	return &gateway.Result{Success: true, ExternalTransactionID: extID, Status: status}
}

func (f *fakeGateway) CreateIntent(ctx context.Context, p *domain.Payment, payer gateway.Payer) (*gateway.Result, error) {
	return f.Charge(ctx, p, payer, "")
}

func (f *fakeGateway) Charge(ctx context.Context, p *domain.Payment, payer gateway.Payer, methodToken string) (*gateway.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chargeCalls++
	if f.chargeErr != nil {
		return nil, f.chargeErr
	}
	return f.chargeResult, nil
}

func (f *fakeGateway) Confirm(ctx context.Context, p *domain.Payment, confirmation string) (*gateway.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirmCalls++
	return f.confirmResult, nil
}

func (f *fakeGateway) Refund(ctx context.Context, p *domain.Payment, amount *decimal.Decimal, reason string) (*gateway.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refundCalls++
	return f.refundResult, nil
}

func (f *fakeGateway) Cancel(ctx context.Context, p *domain.Payment, reason string) (*gateway.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelCalls++
	return f.cancelResult, nil
}

func (f *fakeGateway) CreatePayer(ctx context.Context, profile gateway.PayerProfile) (string, error) {
	return "payer-fake", nil
}

func (f *fakeGateway) GetStatus(ctx context.Context, extID string) (*gateway.Result, error) {
	return f.statusResult, nil
}

// recordingPublisher captures lifecycle events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []kafka.PaymentStatusChangedEvent
}

func (r *recordingPublisher) PublishStatusChanged(ctx context.Context, event kafka.PaymentStatusChangedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingPublisher) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// memLeases is an in-memory LeaseRepository.
type memLeases struct {
	leases []leasedomain.Lease
}

func (m *memLeases) FindActive() ([]leasedomain.Lease, error) {
	var active []leasedomain.Lease
	for _, l := range m.leases {
		if l.IsActive {
			active = append(active, l)
		}
	}
	return active, nil
}

func (m *memLeases) FindByID(id string) (*leasedomain.Lease, error) {
	for i := range m.leases {
		if m.leases[i].ID == id {
			return &m.leases[i], nil
		}
	}
	return nil, domain.ErrNotFound
}
