package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zoobzio/clockz"

	"github.com/tair/rent-payments/internal/payment/domain"
	"github.com/tair/rent-payments/pkg/logger"
)

// HTTPGateway talks to the provider's HTTPS API. One adapter instance per
// process, configured at startup.
type HTTPGateway struct {
	cfg    Config
	client *http.Client
	clock  clockz.Clock
}

// NewHTTPGateway creates the provider adapter. Missing credentials are a
// configuration error and fail fast.
func NewHTTPGateway(cfg Config, clock clockz.Clock) (*HTTPGateway, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gateway: api key is required")
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("gateway: base url is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBaseWait == 0 {
		cfg.RetryBaseWait = 200 * time.Millisecond
	}
	if clock == nil {
		clock = clockz.RealClock
	}
	return &HTTPGateway{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		clock:  clock,
	}, nil
}

// providerResponse is the provider's wire format before normalization.
type providerResponse struct {
	ID               string            `json:"id"`
	Status           string            `json:"status"`
	Error            *providerError    `json:"error,omitempty"`
	Fee              string            `json:"fee,omitempty"`
	ProcessedAt      *time.Time        `json:"processed_at,omitempty"`
	ConfirmationCode string            `json:"confirmation_code,omitempty"`
	ClientSecret     string            `json:"client_secret,omitempty"`
	CheckoutURL      string            `json:"checkout_url,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

type providerError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (g *HTTPGateway) CreateIntent(ctx context.Context, payment *domain.Payment, payer Payer) (*Result, error) {
	body := map[string]interface{}{
		"amount":    payment.Amount.StringFixed(2),
		"currency":  payment.Currency,
		"payer_id":  payer.ExternalPayerID,
		"reference": payment.PaymentReference,
		"capture":   false,
	}
	return g.call(ctx, http.MethodPost, "/v1/intents", body, idempotencyKey(payment.ID, "create_intent"))
}

func (g *HTTPGateway) Charge(ctx context.Context, payment *domain.Payment, payer Payer, methodToken string) (*Result, error) {
	// A charge that already has a transaction id must not be re-issued;
	// querying the existing transaction keeps retries single-effect.
	if payment.ExternalTransactionID != "" {
		return g.GetStatus(ctx, payment.ExternalTransactionID)
	}
	body := map[string]interface{}{
		"amount":    payment.Amount.StringFixed(2),
		"currency":  payment.Currency,
		"payer_id":  payer.ExternalPayerID,
		"reference": payment.PaymentReference,
		"capture":   true,
	}
	if methodToken != "" {
		body["payment_method"] = methodToken
	}
	return g.call(ctx, http.MethodPost, "/v1/charges", body, idempotencyKey(payment.ID, "charge"))
}

func (g *HTTPGateway) Confirm(ctx context.Context, payment *domain.Payment, confirmation string) (*Result, error) {
	path := fmt.Sprintf("/v1/charges/%s/confirm", payment.ExternalTransactionID)
	body := map[string]interface{}{"confirmation": confirmation}
	return g.call(ctx, http.MethodPost, path, body, idempotencyKey(payment.ID, "confirm"))
}

func (g *HTTPGateway) Refund(ctx context.Context, payment *domain.Payment, amount *decimal.Decimal, reason string) (*Result, error) {
	body := map[string]interface{}{
		"transaction_id": payment.ExternalTransactionID,
		"reason":         classifyRefundReason(reason),
	}
	if amount != nil {
		body["amount"] = amount.StringFixed(2)
	}
	return g.call(ctx, http.MethodPost, "/v1/refunds", body, idempotencyKey(payment.ID, "refund"))
}

func (g *HTTPGateway) Cancel(ctx context.Context, payment *domain.Payment, reason string) (*Result, error) {
	path := fmt.Sprintf("/v1/charges/%s/cancel", payment.ExternalTransactionID)
	body := map[string]interface{}{"reason": reason}
	return g.call(ctx, http.MethodPost, path, body, idempotencyKey(payment.ID, "cancel"))
}

func (g *HTTPGateway) CreatePayer(ctx context.Context, profile PayerProfile) (string, error) {
	body := map[string]interface{}{
		"email": profile.Email,
		"name":  profile.Name,
		"phone": profile.Phone,
	}
	res, err := g.call(ctx, http.MethodPost, "/v1/payers", body, "")
	if err != nil {
		return "", err
	}
	if !res.Success {
		return "", &domain.GatewayError{Operation: "create_payer", Code: res.ErrorCode, Message: res.ErrorMessage}
	}
	return res.ExternalTransactionID, nil
}

func (g *HTTPGateway) GetStatus(ctx context.Context, externalTransactionID string) (*Result, error) {
	path := fmt.Sprintf("/v1/charges/%s", externalTransactionID)
	return g.call(ctx, http.MethodGet, path, nil, "")
}

// call executes one provider request with bounded retries and exponential
// backoff. Only transport errors and 5xx/429 responses are retried; provider
// rejections come back as a non-success Result.
func (g *HTTPGateway) call(ctx context.Context, method, path string, body interface{}, idemKey string) (*Result, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("gateway: marshal request: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= g.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := g.cfg.RetryBaseWait * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-g.clock.After(wait):
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, g.cfg.BaseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("gateway: build request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)
		req.Header.Set("Content-Type", "application/json")
		if idemKey != "" {
			req.Header.Set("Idempotency-Key", idemKey)
		}

		resp, err := g.client.Do(req)
		if err != nil {
			lastErr = err
			logger.Warn(ctx).
				Err(err).
				Str("path", path).
				Int("attempt", attempt+1).
				Msg("Gateway request failed, will retry")
			continue
		}

		result, retryable, err := g.decode(resp, path)
		if err != nil {
			lastErr = err
			if !retryable {
				return nil, err
			}
			continue
		}
		return result, nil
	}

	return nil, fmt.Errorf("gateway: %s %s exhausted %d retries: %w", method, path, g.cfg.MaxRetries, lastErr)
}

func (g *HTTPGateway) decode(resp *http.Response, path string) (*Result, bool, error) {
	defer resp.Body.Close()

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, true, fmt.Errorf("gateway: provider returned %d for %s", resp.StatusCode, path)
	}

	var pr providerResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, false, fmt.Errorf("gateway: decode response: %w", err)
	}

	result := &Result{
		Success:               resp.StatusCode < 400 && pr.Error == nil,
		ExternalTransactionID: pr.ID,
		Status:                mapStatus(pr.Status),
		ProcessedAt:           pr.ProcessedAt,
		ConfirmationCode:      pr.ConfirmationCode,
		ClientToken:           pr.ClientSecret,
		CheckoutURL:           pr.CheckoutURL,
		Metadata:              pr.Metadata,
	}
	if pr.Fee != "" {
		if fee, err := decimal.NewFromString(pr.Fee); err == nil {
			result.ProcessingFee = fee
		}
	}
	if pr.Error != nil {
		result.ErrorCode = pr.Error.Code
		result.ErrorMessage = pr.Error.Message
		result.Status = mapStatus(pr.Status)
	}
	return result, false, nil
}

func idempotencyKey(paymentID, operation string) string {
	return paymentID + ":" + operation
}
