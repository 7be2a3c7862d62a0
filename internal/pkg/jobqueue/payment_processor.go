package jobqueue

import (
	"context"
	"fmt"

	"github.com/DavidKroell/Vendora/internal/pkg/payment"
)

// processPaymentUpdateJob feeds one queued provider notification through the
// reconciliation pipeline. Errors bubble up to the generic retry handling;
// replays are harmless because the pipeline is idempotent.
func (q *Queue) processPaymentUpdateJob(ctx context.Context, job *Job) error {
	if q.payments == nil {
		return fmt.Errorf("no payment applier configured")
	}

	payload, err := PaymentUpdateJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid payment update payload: %w", err)
	}

	return q.payments.ApplyPaymentUpdate(ctx, payment.StatusUpdate{
		ProviderPaymentID: payload.ProviderPaymentID,
		OrderID:           payload.OrderID,
		NewStatus:         payload.NewStatus,
		RawStatus:         payload.RawStatus,
		PayCurrency:       payload.PayCurrency,
		PayAddress:        payload.PayAddress,
	})
}
