// Package gateway talks to the external payment gateway: registering
// payment requests for invoices and executing transfers for payouts.
// The gateway is treated as slow and flaky; every call carries a timeout
// and transfer calls carry an idempotency key.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	domainerr "payrail/internal/errors"

	"github.com/shopspring/decimal"
)

// Client is the outbound gateway surface the services depend on.
type Client interface {
	// CreatePaymentRequest registers an invoice with the gateway and
	// returns the request code later matched by inbound webhooks.
	CreatePaymentRequest(ctx context.Context, req PaymentRequestInput) (*PaymentRequestResult, error)

	// Transfer pushes funds to a merchant destination over one of the
	// gateway's rails.
	Transfer(ctx context.Context, req TransferInput) (*TransferResult, error)
}

type PaymentRequestInput struct {
	InvoiceNumber string          `json:"invoice_number"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	CustomerName  string          `json:"customer_name,omitempty"`
	CustomerPhone string          `json:"customer_phone,omitempty"`
	Description   string          `json:"description,omitempty"`
}

type PaymentRequestResult struct {
	RequestCode string `json:"request_code"`
}

type TransferInput struct {
	Rail           string          `json:"rail"` // bank | mobile_money
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	Reason         string          `json:"reason,omitempty"`
	IdempotencyKey string          `json:"idempotency_key"`

	// Destination details, rail dependent.
	BankCode      string `json:"bank_code,omitempty"`
	AccountNumber string `json:"account_number,omitempty"`
	AccountName   string `json:"account_name,omitempty"`
	Provider      string `json:"provider,omitempty"`
	PhoneNumber   string `json:"phone_number,omitempty"`
}

type TransferResult struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
}

type httpClient struct {
	baseURL   string
	secretKey string
	client    *http.Client
}

// NewHTTPClient builds the production gateway client.
func NewHTTPClient(baseURL, secretKey string, timeout time.Duration) Client {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &httpClient{
		baseURL:   baseURL,
		secretKey: secretKey,
		client:    &http.Client{Timeout: timeout},
	}
}

func (c *httpClient) CreatePaymentRequest(ctx context.Context, req PaymentRequestInput) (*PaymentRequestResult, error) {
	var result PaymentRequestResult
	if err := c.post(ctx, "/payment_requests", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *httpClient) Transfer(ctx context.Context, req TransferInput) (*TransferResult, error) {
	var result TransferResult
	if err := c.post(ctx, "/transfers", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *httpClient) post(ctx context.Context, path string, body, dest interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode gateway request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return domainerr.ErrTransportFailure.WithDetail("gateway %s: %v", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return domainerr.ErrTransportFailure.WithDetail("gateway %s: reading response: %v", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domainerr.ErrTransportFailure.WithDetail(
			"gateway %s returned %d: %s", path, resp.StatusCode, truncate(raw, 256))
	}

	// Responses wrap the payload in a data envelope.
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && len(envelope.Data) > 0 {
		return json.Unmarshal(envelope.Data, dest)
	}
	return json.Unmarshal(raw, dest)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
