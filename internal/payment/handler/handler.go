package handler

import (
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/tair/rent-payments/internal/payment/domain"
	"github.com/tair/rent-payments/internal/payment/iban"
	"github.com/tair/rent-payments/internal/payment/usecase/command"
	"github.com/tair/rent-payments/internal/payment/usecase/query"
	"github.com/tair/rent-payments/pkg/logger"
)

// PaymentHandler handles HTTP requests for payments using CQRS pattern
type PaymentHandler struct {
	// Command handlers
	initiateHandler  *command.InitiateHandler
	processHandler   *command.ProcessHandler
	confirmHandler   *command.ConfirmHandler
	cancelHandler    *command.CancelHandler
	refundHandler    *command.RefundHandler
	webhookHandler   *command.WebhookHandler
	reconcileHandler *command.ReconcileHandler
	recurringHandler *command.GenerateRecurringHandler

	// Query handlers
	getHandler   *query.GetPaymentHandler
	listHandler  *query.ListPaymentsHandler
	statsHandler *query.StatisticsHandler

	ibanValidator *iban.Validator

	requestCounter *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
}

// NewPaymentHandler creates a new payment handler using dependency injection
func NewPaymentHandler(
	initiateHandler *command.InitiateHandler,
	processHandler *command.ProcessHandler,
	confirmHandler *command.ConfirmHandler,
	cancelHandler *command.CancelHandler,
	refundHandler *command.RefundHandler,
	webhookHandler *command.WebhookHandler,
	reconcileHandler *command.ReconcileHandler,
	recurringHandler *command.GenerateRecurringHandler,
	getHandler *query.GetPaymentHandler,
	listHandler *query.ListPaymentsHandler,
	statsHandler *query.StatisticsHandler,
	ibanValidator *iban.Validator,
) *PaymentHandler {
	requestCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_service_requests_total",
			Help: "Total number of requests to payment service",
		},
		[]string{"method", "endpoint", "status"},
	)

	requestLatency := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_service_request_duration_seconds",
			Help:    "Duration of payment service requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	prometheus.MustRegister(requestCounter)
	prometheus.MustRegister(requestLatency)

	return &PaymentHandler{
		initiateHandler:  initiateHandler,
		processHandler:   processHandler,
		confirmHandler:   confirmHandler,
		cancelHandler:    cancelHandler,
		refundHandler:    refundHandler,
		webhookHandler:   webhookHandler,
		reconcileHandler: reconcileHandler,
		recurringHandler: recurringHandler,
		getHandler:       getHandler,
		listHandler:      listHandler,
		statsHandler:     statsHandler,
		ibanValidator:    ibanValidator,
		requestCounter:   requestCounter,
		requestLatency:   requestLatency,
	}
}

type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// metricsMiddleware wraps handlers with Prometheus metrics
func (h *PaymentHandler) metricsMiddleware(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		h.requestLatency.WithLabelValues(r.Method, endpoint).Observe(duration)
		h.requestCounter.WithLabelValues(r.Method, endpoint, strconv.Itoa(rw.statusCode)).Inc()
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// InitiatePayment handles POST /api/payments
func (h *PaymentHandler) InitiatePayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TenantID string `json:"tenant_id"`
		LeaseID  string `json:"lease_id"`
		Amount   string `json:"amount"`
		Currency string `json:"currency"`
		Method   string `json:"method"`
		Date     string `json:"date"`
		Notes    string `json:"notes"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Invalid request body"})
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Invalid amount"})
		return
	}

	var date time.Time
	if req.Date != "" {
		date, err = time.Parse("2006-01-02", req.Date)
		if err != nil {
			respondJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Invalid date, expected YYYY-MM-DD"})
			return
		}
	}

	payment, err := h.initiateHandler.Handle(r.Context(), command.InitiateCommand{
		TenantID: req.TenantID,
		LeaseID:  req.LeaseID,
		Amount:   amount,
		Currency: req.Currency,
		Method:   domain.Method(req.Method),
		Date:     date,
		Notes:    req.Notes,
	})
	if err != nil {
		h.respondError(w, r, err, "Failed to initiate payment")
		return
	}

	respondJSON(w, http.StatusCreated, Response{
		Success: true,
		Message: "Payment initiated successfully",
		Data:    payment,
	})
}

// ProcessPayment handles POST /api/payments/{id}/process
func (h *PaymentHandler) ProcessPayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PayerID     string `json:"payer_id"`
		MethodToken string `json:"method_token"`
	}
	// The body is optional for manual methods.
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	payment, err := h.processHandler.Handle(r.Context(), command.ProcessCommand{
		PaymentID:   mux.Vars(r)["id"],
		PayerID:     req.PayerID,
		MethodToken: req.MethodToken,
	})
	if err != nil {
		h.respondError(w, r, err, "Failed to process payment")
		return
	}

	respondJSON(w, http.StatusOK, Response{Success: true, Data: payment})
}

// ConfirmPayment handles POST /api/payments/{id}/confirm
func (h *PaymentHandler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ConfirmationCode string `json:"confirmation_code"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	payment, err := h.confirmHandler.Handle(r.Context(), command.ConfirmCommand{
		PaymentID:        mux.Vars(r)["id"],
		ConfirmationCode: req.ConfirmationCode,
	})
	if err != nil {
		h.respondError(w, r, err, "Failed to confirm payment")
		return
	}

	respondJSON(w, http.StatusOK, Response{Success: true, Data: payment})
}

// CancelPayment handles POST /api/payments/{id}/cancel
func (h *PaymentHandler) CancelPayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	payment, err := h.cancelHandler.Handle(r.Context(), command.CancelCommand{
		PaymentID: mux.Vars(r)["id"],
		Reason:    req.Reason,
	})
	if err != nil {
		h.respondError(w, r, err, "Failed to cancel payment")
		return
	}

	respondJSON(w, http.StatusOK, Response{Success: true, Data: payment})
}

// RefundPayment handles POST /api/payments/{id}/refund
func (h *PaymentHandler) RefundPayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount string `json:"amount"`
		Reason string `json:"reason"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	cmd := command.RefundCommand{
		PaymentID: mux.Vars(r)["id"],
		Reason:    req.Reason,
	}
	if req.Amount != "" {
		amount, err := decimal.NewFromString(req.Amount)
		if err != nil {
			respondJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Invalid amount"})
			return
		}
		cmd.Amount = &amount
	}

	payment, err := h.refundHandler.Handle(r.Context(), cmd)
	if err != nil {
		h.respondError(w, r, err, "Failed to refund payment")
		return
	}

	respondJSON(w, http.StatusOK, Response{Success: true, Data: payment})
}

// HandleGatewayWebhook handles POST /api/webhooks/gateway.
// The endpoint always acknowledges with 200 so the provider stops retrying;
// unverifiable or unroutable events are dropped without applying anything.
func (h *PaymentHandler) HandleGatewayWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		respondJSON(w, http.StatusOK, Response{Success: true})
		return
	}

	err = h.webhookHandler.Handle(r.Context(), command.HandleWebhookCommand{
		Payload:         payload,
		SignatureHeader: r.Header.Get("Gateway-Signature"),
	})
	if err != nil {
		logger.Warn(r.Context()).Err(err).Msg("Gateway webhook dropped")
	}

	respondJSON(w, http.StatusOK, Response{Success: true})
}

// ReconcilePayment handles POST /api/payments/reconcile
func (h *PaymentHandler) ReconcilePayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reference     string `json:"reference"`
		Amount        string `json:"amount"`
		Date          string `json:"date"`
		BankAccountID string `json:"bank_account_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Invalid request body"})
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Invalid amount"})
		return
	}

	var date time.Time
	if req.Date != "" {
		date, err = time.Parse("2006-01-02", req.Date)
		if err != nil {
			respondJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Invalid date, expected YYYY-MM-DD"})
			return
		}
	}

	result, err := h.reconcileHandler.Handle(r.Context(), command.ReconcileCommand{
		Reference:     req.Reference,
		Amount:        amount,
		Date:          date,
		BankAccountID: req.BankAccountID,
	})
	if err != nil {
		h.respondError(w, r, err, "Failed to reconcile bank entry")
		return
	}

	respondJSON(w, http.StatusOK, Response{Success: true, Data: result})
}

// GenerateRecurring handles POST /api/payments/recurring/generate
func (h *PaymentHandler) GenerateRecurring(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Year  int `json:"year"`
		Month int `json:"month"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Invalid request body"})
		return
	}

	summary, err := h.recurringHandler.Handle(r.Context(), command.GenerateRecurringCommand{
		Year:  req.Year,
		Month: time.Month(req.Month),
	})
	if err != nil {
		h.respondError(w, r, err, "Failed to generate recurring payments")
		return
	}

	respondJSON(w, http.StatusOK, Response{Success: true, Data: summary})
}

// GetPayment handles GET /api/payments/{id}
func (h *PaymentHandler) GetPayment(w http.ResponseWriter, r *http.Request) {
	payment, err := h.getHandler.Handle(query.GetPaymentQuery{ID: mux.Vars(r)["id"]})
	if err != nil {
		h.respondError(w, r, err, "Payment not found")
		return
	}

	respondJSON(w, http.StatusOK, Response{Success: true, Data: payment})
}

// ListPayments handles GET /api/payments
func (h *PaymentHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	q := query.ListPaymentsQuery{
		TenantID: r.URL.Query().Get("tenant_id"),
		Status:   domain.Status(r.URL.Query().Get("status")),
		Method:   domain.Method(r.URL.Query().Get("method")),
		Limit:    limit,
		Offset:   offset,
	}
	if from := r.URL.Query().Get("from"); from != "" {
		t, err := time.Parse("2006-01-02", from)
		if err != nil {
			respondJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Invalid from date"})
			return
		}
		q.From = &t
	}
	if to := r.URL.Query().Get("to"); to != "" {
		t, err := time.Parse("2006-01-02", to)
		if err != nil {
			respondJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Invalid to date"})
			return
		}
		q.To = &t
	}

	payments, err := h.listHandler.Handle(q)
	if err != nil {
		h.respondError(w, r, err, "Failed to list payments")
		return
	}

	respondJSON(w, http.StatusOK, Response{
		Success: true,
		Data: map[string]interface{}{
			"payments": payments,
			"total":    len(payments),
		},
	})
}

// GetStatistics handles GET /api/payments/statistics
func (h *PaymentHandler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	from, err := time.Parse("2006-01-02", r.URL.Query().Get("from"))
	if err != nil {
		respondJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Invalid from date, expected YYYY-MM-DD"})
		return
	}
	to, err := time.Parse("2006-01-02", r.URL.Query().Get("to"))
	if err != nil {
		respondJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Invalid to date, expected YYYY-MM-DD"})
		return
	}

	stats, err := h.statsHandler.Handle(query.StatisticsQuery{From: from, To: to})
	if err != nil {
		h.respondError(w, r, err, "Failed to compute statistics")
		return
	}

	respondJSON(w, http.StatusOK, Response{Success: true, Data: stats})
}

// ValidateIBAN handles POST /api/iban/validate
func (h *PaymentHandler) ValidateIBAN(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IBAN string `json:"iban"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Invalid request body"})
		return
	}

	result := h.ibanValidator.Validate(req.IBAN)
	respondJSON(w, http.StatusOK, Response{Success: true, Data: result})
}

// respondError maps domain errors to HTTP status codes.
func (h *PaymentHandler) respondError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status := http.StatusInternalServerError
	message := fallback

	switch {
	case domain.IsValidation(err):
		status = http.StatusBadRequest
		message = err.Error()
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
		message = "Payment not found"
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrVersionConflict):
		status = http.StatusConflict
		message = err.Error()
	case errors.Is(err, domain.ErrDuplicateReference), errors.Is(err, domain.ErrDuplicatePeriod):
		status = http.StatusConflict
		message = err.Error()
	case domain.IsGatewayError(err):
		status = http.StatusBadGateway
		message = err.Error()
	default:
		logger.Error(r.Context()).Err(err).Msg(fallback)
	}

	respondJSON(w, status, Response{Success: false, Error: message})
}

// RegisterRoutes registers all payment routes
func (h *PaymentHandler) RegisterRoutes(router *mux.Router) {
	// Gateway deliveries authenticate with their signature, not a JWT.
	router.HandleFunc("/api/webhooks/gateway",
		h.metricsMiddleware("/api/webhooks/gateway", h.HandleGatewayWebhook)).Methods("POST")

	// Authenticated user routes (any logged-in user)
	router.HandleFunc("/api/payments",
		AuthMiddleware(h.metricsMiddleware("/api/payments", h.InitiatePayment))).Methods("POST")
	router.HandleFunc("/api/payments/{id}/process",
		AuthMiddleware(h.metricsMiddleware("/api/payments/{id}/process", h.ProcessPayment))).Methods("POST")
	router.HandleFunc("/api/payments/{id}/confirm",
		AuthMiddleware(h.metricsMiddleware("/api/payments/{id}/confirm", h.ConfirmPayment))).Methods("POST")
	router.HandleFunc("/api/payments/{id}/cancel",
		AuthMiddleware(h.metricsMiddleware("/api/payments/{id}/cancel", h.CancelPayment))).Methods("POST")
	router.HandleFunc("/api/iban/validate",
		AuthMiddleware(h.metricsMiddleware("/api/iban/validate", h.ValidateIBAN))).Methods("POST")

	// Admin routes (require admin role)
	router.HandleFunc("/api/payments/{id}/refund",
		AdminMiddleware(h.metricsMiddleware("/api/payments/{id}/refund", h.RefundPayment))).Methods("POST")
	router.HandleFunc("/api/payments/reconcile",
		AdminMiddleware(h.metricsMiddleware("/api/payments/reconcile", h.ReconcilePayment))).Methods("POST")
	router.HandleFunc("/api/payments/recurring/generate",
		AdminMiddleware(h.metricsMiddleware("/api/payments/recurring/generate", h.GenerateRecurring))).Methods("POST")
	router.HandleFunc("/api/payments/statistics",
		AdminMiddleware(h.metricsMiddleware("/api/payments/statistics", h.GetStatistics))).Methods("GET")
	router.HandleFunc("/api/payments",
		AdminMiddleware(h.metricsMiddleware("/api/payments", h.ListPayments))).Methods("GET")
	router.HandleFunc("/api/payments/{id}",
		AuthMiddleware(h.metricsMiddleware("/api/payments/{id}", h.GetPayment))).Methods("GET")
}

// RegisterHealthCheck registers health check endpoint
func (h *PaymentHandler) RegisterHealthCheck(router *mux.Router, db *sql.DB) {
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, Response{
				Success: false,
				Error:   "Database unavailable",
			})
			return
		}

		respondJSON(w, http.StatusOK, Response{
			Success: true,
			Message: "Payment service is healthy",
		})
	}).Methods("GET")
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
