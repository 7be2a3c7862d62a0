package payment

import (
	"strings"

	"github.com/DavidKroell/Vendora/app/models"
)

// NormalizeStatus maps a provider payment status onto the internal enum.
// Unknown values fall toward pending: a status we do not recognize must never
// be read as "completed".
func NormalizeStatus(providerStatus string) string {
	switch strings.ToLower(strings.TrimSpace(providerStatus)) {
	case "waiting", "confirming":
		return models.PaymentStatusPending
	case "confirmed", "sending", "finished":
		return models.PaymentStatusCompleted
	case "failed", "expired":
		return models.PaymentStatusFailed
	default:
		return models.PaymentStatusPending
	}
}
