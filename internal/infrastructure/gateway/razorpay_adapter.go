package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/toybox/backend/internal/domain/payment"
	"github.com/toybox/backend/internal/infrastructure/config"
)

const (
	razorpayDefaultBaseURL = "https://api.razorpay.com/v1"
	razorpayOrdersPath     = "/orders"
	razorpayPaymentsPath   = "/payments/%s"
	razorpayRefundsPath    = "/payments/%s/refund"
)

// RazorpayAdapter implements the payment Gateway against the Razorpay
// REST API using basic auth. Amounts cross the wire in the smallest
// currency unit (paise).
type RazorpayAdapter struct {
	baseURL    string
	keyID      string
	keySecret  string
	httpClient *http.Client
}

// NewRazorpayAdapter creates a Razorpay gateway adapter
func NewRazorpayAdapter(cfg config.PaymentConfig) (*RazorpayAdapter, error) {
	if cfg.KeyID == "" || cfg.KeySecret == "" {
		return nil, fmt.Errorf("razorpay: key id and secret are required")
	}
	baseURL := cfg.GatewayBaseURL
	if baseURL == "" {
		baseURL = razorpayDefaultBaseURL
	}
	timeout := cfg.GatewayTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RazorpayAdapter{
		baseURL:    baseURL,
		keyID:      cfg.KeyID,
		keySecret:  cfg.KeySecret,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type razorpayOrderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type razorpayPaymentResponse struct {
	ID       string `json:"id"`
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
	Method   string `json:"method"`
}

type razorpayRefundResponse struct {
	ID        string `json:"id"`
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount"`
	Status    string `json:"status"`
}

type razorpayErrorResponse struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func toMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).IntPart()
}

func fromMinorUnits(amount int64) decimal.Decimal {
	return decimal.NewFromInt(amount).Div(decimal.NewFromInt(100))
}

// CreateOrder registers a payment order with Razorpay
func (a *RazorpayAdapter) CreateOrder(ctx context.Context, amount decimal.Decimal, currency, receipt string) (*payment.GatewayOrder, error) {
	body := map[string]any{
		"amount":   toMinorUnits(amount),
		"currency": currency,
		"receipt":  receipt,
	}

	var resp razorpayOrderResponse
	if err := a.do(ctx, http.MethodPost, razorpayOrdersPath, body, &resp); err != nil {
		return nil, err
	}

	return &payment.GatewayOrder{
		ID:       resp.ID,
		Amount:   fromMinorUnits(resp.Amount),
		Currency: resp.Currency,
		Receipt:  resp.Receipt,
		Status:   resp.Status,
	}, nil
}

// FetchPayment retrieves authoritative payment detail from Razorpay
func (a *RazorpayAdapter) FetchPayment(ctx context.Context, paymentID string) (*payment.GatewayPayment, error) {
	var resp razorpayPaymentResponse
	if err := a.do(ctx, http.MethodGet, fmt.Sprintf(razorpayPaymentsPath, paymentID), nil, &resp); err != nil {
		return nil, err
	}

	return &payment.GatewayPayment{
		ID:       resp.ID,
		OrderID:  resp.OrderID,
		Amount:   fromMinorUnits(resp.Amount),
		Currency: resp.Currency,
		Status:   resp.Status,
		Method:   resp.Method,
	}, nil
}

// CreateRefund requests a refund against a captured payment
func (a *RazorpayAdapter) CreateRefund(ctx context.Context, paymentID string, amount decimal.Decimal) (*payment.GatewayRefund, error) {
	body := map[string]any{
		"amount": toMinorUnits(amount),
	}

	var resp razorpayRefundResponse
	if err := a.do(ctx, http.MethodPost, fmt.Sprintf(razorpayRefundsPath, paymentID), body, &resp); err != nil {
		return nil, err
	}

	return &payment.GatewayRefund{
		ID:        resp.ID,
		PaymentID: resp.PaymentID,
		Amount:    fromMinorUnits(resp.Amount),
		Status:    resp.Status,
	}, nil
}

func (a *RazorpayAdapter) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payloadBytes, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("razorpay: failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payloadBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("razorpay: failed to build request: %w", err)
	}
	req.SetBasicAuth(a.keyID, a.keySecret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("razorpay: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("razorpay: failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var gwErr razorpayErrorResponse
		if json.Unmarshal(respBody, &gwErr) == nil && gwErr.Error.Description != "" {
			return fmt.Errorf("razorpay: %s (%s)", gwErr.Error.Description, gwErr.Error.Code)
		}
		return fmt.Errorf("razorpay: unexpected status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("razorpay: failed to decode response: %w", err)
	}
	return nil
}

var _ payment.Gateway = (*RazorpayAdapter)(nil)
