package shop

import (
	"context"
	"errors"

	"github.com/DavidKroell/Vendora/app/models"
	"github.com/DavidKroell/Vendora/internal/pkg/payment"
)

// Gateway is the slice of the payment provider client the shop needs.
type Gateway interface {
	CreatePayment(ctx context.Context, in payment.CreatePaymentInput) (*payment.CreatePaymentResult, error)
	GetPaymentStatus(ctx context.Context, providerPaymentID string) (string, error)
	BestPayCurrency(ctx context.Context, preferred string) (string, error)
}

var (
	// ErrOutOfStock is the advisory checkout-time rejection. The binding
	// stock decision happens later at reservation.
	ErrOutOfStock = errors.New("product has insufficient stock")

	// ErrProductUnavailable covers inactive or unknown products at checkout.
	ErrProductUnavailable = errors.New("product is not available")
)

// CheckoutResult is handed back to the bot / REST caller after a checkout.
type CheckoutResult struct {
	Order       *models.Order
	Transaction *models.PaymentTransaction
	PaymentURL  string
}

// Buyer-facing message templates. Buyers never see raw internal errors, only
// one of these outcomes.
const (
	msgPaymentConfirmed = "Payment confirmed! Here is your purchase:\n\n%s\n\nThank you for shopping with us."
	msgPaymentPending   = "We have seen your payment and are waiting for network confirmations. You will be notified as soon as it completes."
	msgPaymentFailed    = "Your payment failed or expired and the order was cancelled. No funds were captured for this order; please start a new purchase if you still want the item."
	msgOutOfStockRefund = "Your payment was received, but the item sold out before your order could be fulfilled. An operator has been notified and will restock or refund you shortly."
)
