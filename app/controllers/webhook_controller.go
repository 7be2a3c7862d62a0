package controllers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/DavidKroell/Vendora/internal/pkg/env"
	"github.com/DavidKroell/Vendora/internal/pkg/jobqueue"
	"github.com/DavidKroell/Vendora/internal/pkg/payment"
)

// WebhookEnqueuer is the slice of the job queue the webhook handler needs.
type WebhookEnqueuer interface {
	EnqueueJob(jobType jobqueue.JobType, payload map[string]interface{}) (*jobqueue.Job, error)
}

var webhookQueue WebhookEnqueuer

// InitializeWebhookController wires the queue that carries accepted webhook
// notifications to the reconciliation workers.
func InitializeWebhookController(queue WebhookEnqueuer) {
	webhookQueue = queue
}

// HandlePaymentWebhook ingests provider IPN callbacks. The contract with the
// provider is ack-fast: authenticate, validate, enqueue, respond. All order
// and ledger writes happen asynchronously in the job queue workers.
func HandlePaymentWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := strings.TrimSpace(c.Get("x-nowpayments-sig"))
	secret := env.GetEnv("NOWPAYMENTS_IPN_SECRET", "")

	if !payment.VerifyWebhookSignature(rawBody, signature, secret) {
		sandbox := strings.EqualFold(env.GetEnv("NOWPAYMENTS_SANDBOX", "false"), "true")
		if !sandbox {
			// Reject before touching any state.
			log.Warnf("[Webhook] Rejected IPN with invalid signature from %s", c.IP())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_signature"})
		}
		log.Warnf("[Webhook] Sandbox mode: accepting IPN from %s without a valid signature", c.IP())
	}

	payload, err := payment.ParseWebhookPayload(rawBody)
	if err != nil {
		log.Warnf("[Webhook] Rejected malformed IPN payload: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
	}

	upd := payload.ToStatusUpdate()
	jobPayload := jobqueue.PaymentUpdateJobPayload{
		ProviderPaymentID: upd.ProviderPaymentID,
		OrderID:           upd.OrderID,
		NewStatus:         upd.NewStatus,
		RawStatus:         upd.RawStatus,
		PayCurrency:       upd.PayCurrency,
		PayAddress:        upd.PayAddress,
	}

	if webhookQueue == nil {
		log.Error("[Webhook] Job queue not initialized, dropping IPN")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "queue_unavailable"})
	}
	job, err := webhookQueue.EnqueueJob(jobqueue.JobTypePaymentUpdate, jobPayload.ToMap())
	if err != nil {
		log.Errorf("[Webhook] Failed to enqueue payment update: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "enqueue_failed"})
	}

	log.Infof("[Webhook] Accepted IPN payment=%s status=%s order=%d (job %s)",
		upd.ProviderPaymentID, upd.RawStatus, upd.OrderID, job.ID)
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true, "received": true})
}
