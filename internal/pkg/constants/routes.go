package constants

// Static route constants
const (
	APIRoute            = "/api/v1"
	PaymentWebhookRoute = "/api/v1/payments/webhook"
	AdminRoute          = "/api/v1/admin"
)
