package payment

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// WebhookPayload is the typed shape of a provider IPN callback. It is decoded
// and validated once at the ingress; downstream code never touches raw JSON.
type WebhookPayload struct {
	PaymentID     json.Number `json:"payment_id" validate:"required"`
	InvoiceID     json.Number `json:"invoice_id,omitempty"`
	PaymentStatus string      `json:"payment_status" validate:"required"`
	PayAddress    string      `json:"pay_address,omitempty"`
	PayCurrency   string      `json:"pay_currency,omitempty"`
	PriceAmount   float64     `json:"price_amount,omitempty"`
	PriceCurrency string      `json:"price_currency,omitempty"`
	ActuallyPaid  float64     `json:"actually_paid,omitempty"`
	OrderID       string      `json:"order_id,omitempty"`
}

// StatusUpdate is the normalized event handed to the reconciliation
// orchestrator: provider ids resolved to strings, provider status mapped to
// the internal payment status.
type StatusUpdate struct {
	ProviderPaymentID string
	OrderID           uint // 0 when the payload carried no usable order reference
	NewStatus         string
	RawStatus         string
	PayCurrency       string
	PayAddress        string
}

// ParseWebhookPayload decodes and validates a raw IPN body.
func ParseWebhookPayload(raw []byte) (*WebhookPayload, error) {
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()

	var payload WebhookPayload
	if err := dec.Decode(&payload); err != nil {
		return nil, err
	}
	if err := validator.New().Struct(&payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// ToStatusUpdate normalizes the payload for the orchestrator.
func (p *WebhookPayload) ToStatusUpdate() StatusUpdate {
	var orderID uint
	if id, err := strconv.ParseUint(strings.TrimSpace(p.OrderID), 10, 64); err == nil {
		orderID = uint(id)
	}
	return StatusUpdate{
		ProviderPaymentID: p.PaymentID.String(),
		OrderID:           orderID,
		NewStatus:         NormalizeStatus(p.PaymentStatus),
		RawStatus:         p.PaymentStatus,
		PayCurrency:       strings.ToLower(strings.TrimSpace(p.PayCurrency)),
		PayAddress:        strings.TrimSpace(p.PayAddress),
	}
}
