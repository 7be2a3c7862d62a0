package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/DavidKroell/Vendora/internal/pkg/env"
)

const (
	defaultAPIBaseURL     = "https://api.nowpayments.io/v1"
	defaultSandboxBaseURL = "https://api-sandbox.nowpayments.io/v1"
)

// Client talks to the NOWPayments REST API. Invoice creation yields the
// externally assigned invoice id (our ExternalID) and the hosted payment URL;
// the provider's payment id only becomes known with the first IPN callback.
type Client struct {
	APIKey         string
	IPNSecret      string
	APIBaseURL     string
	IPNCallbackURL string
	Sandbox        bool

	HTTPClient *http.Client
}

// CreatePaymentInput describes one checkout to invoice.
type CreatePaymentInput struct {
	PriceAmount   float64
	PriceCurrency string
	PayCurrency   string
	OrderID       string
	Description   string
}

// CreatePaymentResult carries the provider-assigned invoice id and the URL
// the buyer is sent to.
type CreatePaymentResult struct {
	ExternalID  string
	PaymentURL  string
	PayCurrency string
}

func NewClientFromEnv() *Client {
	sandbox := strings.EqualFold(env.GetEnv("NOWPAYMENTS_SANDBOX", "false"), "true")
	base := defaultAPIBaseURL
	if sandbox {
		base = defaultSandboxBaseURL
	}

	return &Client{
		APIKey:         strings.TrimSpace(env.GetEnv("NOWPAYMENTS_API_KEY", "")),
		IPNSecret:      strings.TrimSpace(env.GetEnv("NOWPAYMENTS_IPN_SECRET", "")),
		APIBaseURL:     strings.TrimSpace(env.GetEnv("NOWPAYMENTS_API_BASE_URL", base)),
		IPNCallbackURL: strings.TrimSpace(env.GetEnv("NOWPAYMENTS_IPN_CALLBACK_URL", "")),
		Sandbox:        sandbox,
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// CreatePayment creates a hosted invoice for the given order.
func (c *Client) CreatePayment(ctx context.Context, in CreatePaymentInput) (*CreatePaymentResult, error) {
	if strings.TrimSpace(c.APIKey) == "" {
		return nil, errors.New("NOWPAYMENTS_API_KEY is not configured")
	}
	if in.PriceAmount <= 0 {
		return nil, errors.New("price amount must be positive")
	}
	if strings.TrimSpace(in.OrderID) == "" {
		return nil, errors.New("order id is required")
	}

	reqBody := map[string]interface{}{
		"price_amount":      in.PriceAmount,
		"price_currency":    strings.ToLower(in.PriceCurrency),
		"order_id":          in.OrderID,
		"order_description": in.Description,
	}
	if pc := strings.ToLower(strings.TrimSpace(in.PayCurrency)); pc != "" {
		reqBody["pay_currency"] = pc
	}
	if c.IPNCallbackURL != "" {
		reqBody["ipn_callback_url"] = c.IPNCallbackURL
	}

	var out struct {
		ID          string `json:"id"`
		InvoiceURL  string `json:"invoice_url"`
		PayCurrency string `json:"pay_currency"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/invoice", reqBody, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.ID) == "" {
		return nil, errors.New("invoice response missing id")
	}

	return &CreatePaymentResult{
		ExternalID:  out.ID,
		PaymentURL:  out.InvoiceURL,
		PayCurrency: out.PayCurrency,
	}, nil
}

// GetPaymentStatus polls the provider for the current raw status of a
// payment. Used for manual reconciliation when webhooks went missing.
func (c *Client) GetPaymentStatus(ctx context.Context, providerPaymentID string) (string, error) {
	id := strings.TrimSpace(providerPaymentID)
	if id == "" {
		return "", errors.New("provider payment id is required")
	}

	var out struct {
		PaymentStatus string `json:"payment_status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/payment/"+id, nil, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.PaymentStatus) == "" {
		return "", errors.New("payment status response missing payment_status")
	}
	return out.PaymentStatus, nil
}

// BestPayCurrency picks an accepted pay currency, preferring the caller's
// choice when the provider currently supports it. The provider's own
// selection heuristics stay a black box behind this call.
func (c *Client) BestPayCurrency(ctx context.Context, preferred string) (string, error) {
	var out struct {
		Currencies []string `json:"currencies"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/currencies", nil, &out); err != nil {
		return "", err
	}
	if len(out.Currencies) == 0 {
		return "", errors.New("provider reported no available currencies")
	}

	want := strings.ToLower(strings.TrimSpace(preferred))
	for _, cur := range out.Currencies {
		if strings.ToLower(cur) == want && want != "" {
			return want, nil
		}
	}
	return strings.ToLower(out.Currencies[0]), nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	}

	url := strings.TrimRight(c.APIBaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	req.Header.Set("x-api-key", c.APIKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("nowpayments %s %s failed: status=%d body=%s", method, path, resp.StatusCode, string(respBody))
	}
	return json.Unmarshal(respBody, out)
}
