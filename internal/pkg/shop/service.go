package shop

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/DavidKroell/Vendora/app/models"
	"github.com/DavidKroell/Vendora/app/repository"
	"github.com/DavidKroell/Vendora/internal/pkg/metrics/counter"
	"github.com/DavidKroell/Vendora/internal/pkg/notify"
	"github.com/DavidKroell/Vendora/internal/pkg/payment"
)

// Service owns the payment-to-fulfillment reconciliation pipeline. It is the
// only component that writes to the ledger, the order state machine and the
// inventory reservoir in sequence; everything else goes through it.
type Service struct {
	users    repository.UserRepository
	products repository.ProductRepository
	orders   repository.OrderRepository
	txs      repository.TransactionRepository
	gateway  Gateway
	notifier notify.Notifier

	// salesCounter is swappable so unit tests do not need Redis.
	salesCounter func(productID uint, quantity int) error
}

// NewService creates a shop service from injected collaborators.
func NewService(
	repos *repository.Repositories,
	gateway Gateway,
	notifier notify.Notifier,
) *Service {
	return &Service{
		users:    repos.User,
		products: repos.Product,
		orders:   repos.Order,
		txs:      repos.Transaction,
		gateway:  gateway,
		notifier: notifier,

		salesCounter: counter.AddProductSale,
	}
}

// Checkout creates a pending order with a price snapshot and a pending
// payment transaction backed by a provider invoice.
func (s *Service) Checkout(ctx context.Context, userID, productID uint, quantity int, preferredCurrency string) (*CheckoutResult, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive, got %d", quantity)
	}

	product, err := s.products.GetByID(productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductUnavailable
		}
		return nil, err
	}
	// Advisory pre-check only; the binding decision is the reservation CAS.
	if !product.HasStock(quantity) {
		return nil, ErrOutOfStock
	}

	order := &models.Order{
		UserID:         userID,
		ProductID:      product.ID,
		Quantity:       quantity,
		UnitPriceCents: product.PriceCents,
		Currency:       product.Currency,
		Status:         models.OrderStatusPending,
	}
	if err := s.orders.Create(order); err != nil {
		return nil, err
	}

	payCurrency, err := s.gateway.BestPayCurrency(ctx, preferredCurrency)
	if err != nil {
		log.Warnf("[Shop] Pay currency selection failed for order %d: %v", order.ID, err)
		payCurrency = ""
	}

	created, err := s.gateway.CreatePayment(ctx, payment.CreatePaymentInput{
		PriceAmount:   float64(order.TotalCents) / 100,
		PriceCurrency: order.Currency,
		PayCurrency:   payCurrency,
		OrderID:       strconv.FormatUint(uint64(order.ID), 10),
		Description:   fmt.Sprintf("%s x%d", product.Name, quantity),
	})
	if err != nil {
		// Leave the order pending; the reaper cancels it if the buyer never
		// retries the checkout.
		return nil, fmt.Errorf("create payment for order %d: %w", order.ID, err)
	}

	tx := &models.PaymentTransaction{
		OrderID:         order.ID,
		UserID:          userID,
		AmountCents:     order.TotalCents,
		Currency:        order.Currency,
		CryptoType:      created.PayCurrency,
		PaymentProvider: models.PaymentProviderNOWPayments,
		ExternalID:      created.ExternalID,
		PaymentURL:      created.PaymentURL,
		Status:          models.PaymentStatusPending,
	}
	if err := s.txs.Create(tx); err != nil {
		return nil, err
	}

	return &CheckoutResult{
		Order:       order,
		Transaction: tx,
		PaymentURL:  created.PaymentURL,
	}, nil
}

// ApplyPaymentUpdate is the reconciliation orchestrator. It tolerates
// duplicated, reordered and concurrent deliveries of the same provider
// notification: every side effect re-checks persisted state first.
func (s *Service) ApplyPaymentUpdate(ctx context.Context, upd payment.StatusUpdate) error {
	tx, err := s.resolveTransaction(upd)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warnf("[Shop] No transaction for payment update (order=%d provider_payment=%s), dropping", upd.OrderID, upd.ProviderPaymentID)
			return nil
		}
		return err
	}

	// The ledger row is created pending at checkout, so the first provider
	// webhook usually carries no status change. It is still the moment the
	// buyer's payment was seen; detect it by the provider id arriving.
	firstContact := upd.NewStatus == models.PaymentStatusPending &&
		tx.Status == models.PaymentStatusPending &&
		tx.ProviderPaymentID == "" && upd.ProviderPaymentID != ""

	tx, changed, err := s.txs.Transition(tx.ID, upd.NewStatus, repository.TransitionExtra{
		ProviderPaymentID: upd.ProviderPaymentID,
		CryptoType:        upd.PayCurrency,
		CryptoAddress:     upd.PayAddress,
		Note:              "provider status: " + upd.RawStatus,
	})
	if err != nil {
		return err
	}
	if firstContact {
		if user, uerr := s.users.GetByID(tx.UserID); uerr == nil {
			s.buyerMessage(ctx, user.ChatID, msgPaymentPending)
		}
	}
	if !changed {
		// Idempotency boundary #1: same status re-delivered.
		log.Debugf("[Shop] Duplicate %q update for transaction %d absorbed", upd.NewStatus, tx.ID)
		return nil
	}

	switch upd.NewStatus {
	case models.PaymentStatusCompleted:
		return s.fulfillOrder(ctx, tx)
	case models.PaymentStatusFailed:
		return s.cancelFailedOrder(ctx, tx)
	default:
		// pending: the ledger transition is the whole effect.
		return nil
	}
}

// resolveTransaction tries the order-linked lookup first: on the very first
// webhook the provider payment id is not on file yet. Later webhooks may
// arrive without a usable order reference and fall back to the provider id.
func (s *Service) resolveTransaction(upd payment.StatusUpdate) (*models.PaymentTransaction, error) {
	if upd.OrderID != 0 {
		tx, err := s.txs.FindByOrderID(upd.OrderID)
		if err == nil {
			return tx, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	if upd.ProviderPaymentID != "" {
		return s.txs.FindByProviderPaymentID(upd.ProviderPaymentID)
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *Service) fulfillOrder(ctx context.Context, tx *models.PaymentTransaction) error {
	order, err := s.orders.GetByID(tx.OrderID)
	if err != nil {
		return err
	}
	if order.IsDelivered() {
		// Idempotency boundary #2: replay after successful delivery.
		log.Debugf("[Shop] Order %d already delivered, duplicate completion absorbed", order.ID)
		return nil
	}
	if order.Status == models.OrderStatusCancelled {
		// Late completion after the order was cancelled (stale-order timeout
		// or an earlier failed/expired webhook). Money arrived for a dead
		// order; this needs a human.
		log.Warnf("[Shop] Completed payment %d for cancelled order %d, manual reconciliation required", tx.ID, order.ID)
		s.operatorAlert(ctx, "Payment for cancelled order",
			fmt.Sprintf("Transaction %d completed but order %d is cancelled. Verify with the provider (payment id %s) and refund or re-fulfill manually.", tx.ID, order.ID, tx.ProviderPaymentID))
		return nil
	}

	user, err := s.users.GetByID(order.UserID)
	if err != nil {
		return err
	}

	reserved, ok, err := s.products.ReserveStock(order.ProductID, order.Quantity)
	if err != nil {
		return err
	}
	if !ok {
		// Insufficient stock is an expected outcome, not an exception: the
		// buyer paid, the item sold out. Cancel the order, surface the
		// divergence to operators.
		if _, cerr := s.orders.Cancel(order.ID); cerr != nil && !errors.Is(cerr, repository.ErrOrderTerminal) {
			return cerr
		}
		s.buyerMessage(ctx, user.ChatID, msgOutOfStockRefund)
		s.operatorAlert(ctx, "Out of stock after payment",
			fmt.Sprintf("Order %d (user %d, product %d, qty %d) is paid via transaction %d but stock ran out. Restock and re-fulfill, or refund.", order.ID, order.UserID, order.ProductID, order.Quantity, tx.ID))
		return nil
	}

	order, err = s.orders.Fulfill(order.ID, reserved)
	if err != nil {
		if errors.Is(err, repository.ErrOrderTerminal) {
			// A concurrent delivery won the race after our reservation;
			// items were deducted twice only if the other writer also
			// reserved, which the CAS rules out. Still: stock left our
			// hands without an order write, so treat it as divergence.
			log.Errorf("[CRITICAL] [Shop] Reserved %d items for order %d but order is already terminal", len(reserved), order.ID)
		} else {
			log.Errorf("[CRITICAL] [Shop] Stock deducted but fulfillment write failed for order %d: %v", order.ID, err)
		}
		s.operatorAlert(ctx, "Stock/order divergence",
			fmt.Sprintf("Order %d: %d item(s) were removed from product %d stock but the delivery write failed (%v). Items: %s. Do NOT re-run reservation; reconcile manually.", order.ID, len(reserved), order.ProductID, err, strings.Join(reserved, ", ")))
		return err
	}

	if cerr := s.salesCounter(order.ProductID, order.Quantity); cerr != nil {
		log.Warnf("[Shop] Sales counter update failed for product %d: %v", order.ProductID, cerr)
	}

	s.buyerMessage(ctx, user.ChatID, fmt.Sprintf(msgPaymentConfirmed, strings.Join(order.DeliveredContent, "\n")))
	s.operatorAlert(ctx, "Sale completed",
		fmt.Sprintf("Order %d delivered: product %d x%d to user %d (%s %.2f).", order.ID, order.ProductID, order.Quantity, order.UserID, order.Currency, float64(order.TotalCents)/100))
	return nil
}

func (s *Service) cancelFailedOrder(ctx context.Context, tx *models.PaymentTransaction) error {
	order, err := s.orders.Cancel(tx.OrderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderTerminal) {
			log.Debugf("[Shop] Failed payment %d for already terminal order %d absorbed", tx.ID, tx.OrderID)
			return nil
		}
		return err
	}

	user, uerr := s.users.GetByID(order.UserID)
	if uerr != nil {
		log.Warnf("[Shop] Could not load user %d for failure notice: %v", order.UserID, uerr)
		return nil
	}
	s.buyerMessage(ctx, user.ChatID, msgPaymentFailed)
	return nil
}

// SyncPaymentStatus polls the provider for a payment's current status and
// feeds it through the normal reconciliation path. Manual fallback for lost
// webhooks.
func (s *Service) SyncPaymentStatus(ctx context.Context, providerPaymentID string) error {
	raw, err := s.gateway.GetPaymentStatus(ctx, providerPaymentID)
	if err != nil {
		return err
	}
	return s.ApplyPaymentUpdate(ctx, payment.StatusUpdate{
		ProviderPaymentID: providerPaymentID,
		NewStatus:         payment.NormalizeStatus(raw),
		RawStatus:         raw + " (polled)",
	})
}

// CancelStaleOrders cancels pending orders older than maxAge along with
// their still-pending transactions. Individual failures are logged and do
// not abort the rest of the batch. Returns the number of orders cancelled.
func (s *Service) CancelStaleOrders(ctx context.Context, maxAge time.Duration, limit int) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	stale, err := s.orders.FindStalePending(cutoff, limit)
	if err != nil {
		return 0, err
	}

	cancelled := 0
	for _, order := range stale {
		if _, err := s.orders.Cancel(order.ID); err != nil {
			if errors.Is(err, repository.ErrOrderTerminal) {
				continue
			}
			log.Errorf("[Reaper] Cancelling stale order %d failed: %v", order.ID, err)
			continue
		}
		cancelled++

		pending, err := s.txs.FindPendingByOrderID(order.ID)
		if err != nil {
			log.Errorf("[Reaper] Loading pending transactions for order %d failed: %v", order.ID, err)
			continue
		}
		for _, tx := range pending {
			if _, _, err := s.txs.Transition(tx.ID, models.PaymentStatusCancelled, repository.TransitionExtra{
				Note: "stale order timeout",
			}); err != nil {
				log.Errorf("[Reaper] Cancelling transaction %d failed: %v", tx.ID, err)
			}
		}
	}
	return cancelled, nil
}

// buyerMessage delivers a templated outcome to the buyer. Failures degrade
// the experience, never the order state.
func (s *Service) buyerMessage(ctx context.Context, chatID int64, message string) {
	if err := s.notifier.NotifyBuyer(ctx, chatID, message); err != nil {
		log.Warnf("[Shop] Buyer notification failed for chat %d: %v", chatID, err)
	}
}

func (s *Service) operatorAlert(ctx context.Context, subject, message string) {
	if err := s.notifier.NotifyOperators(ctx, subject, message); err != nil {
		log.Warnf("[Shop] Operator notification failed: %v", err)
	}
}
