package payment

import (
	"testing"

	"github.com/DavidKroell/Vendora/app/models"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeStatus(t *testing.T) {
	cases := []struct {
		provider string
		want     string
	}{
		{"waiting", models.PaymentStatusPending},
		{"confirming", models.PaymentStatusPending},
		{"confirmed", models.PaymentStatusCompleted},
		{"sending", models.PaymentStatusCompleted},
		{"finished", models.PaymentStatusCompleted},
		{"failed", models.PaymentStatusFailed},
		{"expired", models.PaymentStatusFailed},
	}

	for _, tc := range cases {
		t.Run(tc.provider, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizeStatus(tc.provider))
		})
	}
}

func TestNormalizeStatusCaseInsensitive(t *testing.T) {
	assert.Equal(t, models.PaymentStatusCompleted, NormalizeStatus("FINISHED"))
	assert.Equal(t, models.PaymentStatusCompleted, NormalizeStatus("  Confirmed "))
	assert.Equal(t, models.PaymentStatusFailed, NormalizeStatus("Expired"))
}

func TestNormalizeStatusUnknownFallsToPending(t *testing.T) {
	// Never fail open toward "completed".
	assert.Equal(t, models.PaymentStatusPending, NormalizeStatus("partially_paid"))
	assert.Equal(t, models.PaymentStatusPending, NormalizeStatus("refunded"))
	assert.Equal(t, models.PaymentStatusPending, NormalizeStatus(""))
	assert.Equal(t, models.PaymentStatusPending, NormalizeStatus("garbage"))
}
