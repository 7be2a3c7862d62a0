package shop

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/DavidKroell/Vendora/app/models"
	"github.com/DavidKroell/Vendora/app/repository"
	"github.com/DavidKroell/Vendora/internal/pkg/payment"
)

// ---- fakes -----------------------------------------------------------------

type fakeUsers struct {
	repository.UserRepository
	mu    sync.Mutex
	users map[uint]*models.User
}

func (f *fakeUsers) GetByID(id uint) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *u
	return &cp, nil
}

type fakeProducts struct {
	repository.ProductRepository
	mu       sync.Mutex
	products map[uint]*models.Product
}

func (f *fakeProducts) GetByID(id uint) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *p
	cp.DigitalContent = append(models.StringList{}, p.DigitalContent...)
	return &cp, nil
}

// ReserveStock mirrors the production CAS semantics: the check and the pop
// happen under one lock, so concurrent callers serialize.
func (f *fakeProducts) ReserveStock(productID uint, quantity int) ([]string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[productID]
	if !ok {
		return nil, false, gorm.ErrRecordNotFound
	}
	if len(p.DigitalContent) < quantity {
		return nil, false, nil
	}
	reserved := append([]string(nil), p.DigitalContent[:quantity]...)
	p.DigitalContent = append(models.StringList{}, p.DigitalContent[quantity:]...)
	p.StockVersion++
	p.IsAvailable = len(p.DigitalContent) > 0
	return reserved, true, nil
}

type fakeOrders struct {
	repository.OrderRepository
	mu          sync.Mutex
	nextID      uint
	orders      map[uint]*models.Order
	failFulfill bool
}

func (f *fakeOrders) Create(order *models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	order.ID = f.nextID
	if order.Status == "" {
		order.Status = models.OrderStatusPending
	}
	order.TotalCents = int64(order.Quantity) * order.UnitPriceCents
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now()
	}
	cp := *order
	f.orders[order.ID] = &cp
	return nil
}

func (f *fakeOrders) GetByID(id uint) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *o
	cp.DeliveredContent = append(models.StringList{}, o.DeliveredContent...)
	return &cp, nil
}

func (f *fakeOrders) Fulfill(orderID uint, content []string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	if o.Status == models.OrderStatusDelivered || o.Status == models.OrderStatusCancelled {
		cp := *o
		return &cp, repository.ErrOrderTerminal
	}
	if f.failFulfill {
		return nil, assert.AnError
	}
	o.Status = models.OrderStatusDelivered
	o.DeliveredContent = append(models.StringList{}, content...)
	cp := *o
	return &cp, nil
}

func (f *fakeOrders) Cancel(orderID uint) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	if o.Status == models.OrderStatusDelivered || o.Status == models.OrderStatusCancelled {
		cp := *o
		return &cp, repository.ErrOrderTerminal
	}
	o.Status = models.OrderStatusCancelled
	cp := *o
	return &cp, nil
}

func (f *fakeOrders) FindStalePending(cutoff time.Time, limit int) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Order
	for _, o := range f.orders {
		if o.Status == models.OrderStatusPending && o.CreatedAt.Before(cutoff) {
			out = append(out, *o)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

type fakeTxs struct {
	repository.TransactionRepository
	mu      sync.Mutex
	nextID  uint
	txs     map[uint]*models.PaymentTransaction
	history []models.PaymentStatusHistory

	// beforeFlip fires once, between Transition's read and its conditional
	// write, so a test can interleave a competing update the way a second
	// queue worker would.
	beforeFlip func()
}

func (f *fakeTxs) Create(tx *models.PaymentTransaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	tx.ID = f.nextID
	if tx.Status == "" {
		tx.Status = models.PaymentStatusPending
	}
	cp := *tx
	f.txs[tx.ID] = &cp
	return nil
}

func (f *fakeTxs) FindByOrderID(orderID uint) (*models.PaymentTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tx := range f.txs {
		if tx.OrderID == orderID {
			cp := *tx
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeTxs) FindByProviderPaymentID(providerPaymentID string) (*models.PaymentTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tx := range f.txs {
		if tx.ProviderPaymentID == providerPaymentID && providerPaymentID != "" {
			cp := *tx
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeTxs) FindPendingByOrderID(orderID uint) ([]models.PaymentTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.PaymentTransaction
	for _, tx := range f.txs {
		if tx.OrderID == orderID && tx.Status == models.PaymentStatusPending {
			out = append(out, *tx)
		}
	}
	return out, nil
}

// Transition mirrors the production shape: a plain read, then a write that
// only flips the status when it still equals the one read.
func (f *fakeTxs) Transition(id uint, newStatus string, extra repository.TransitionExtra) (*models.PaymentTransaction, bool, error) {
	f.mu.Lock()
	tx, ok := f.txs[id]
	if !ok {
		f.mu.Unlock()
		return nil, false, gorm.ErrRecordNotFound
	}
	readStatus := tx.Status
	hook := f.beforeFlip
	f.beforeFlip = nil
	f.mu.Unlock()

	if hook != nil {
		hook()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	tx, ok = f.txs[id]
	if !ok {
		return nil, false, gorm.ErrRecordNotFound
	}

	changed := false
	switch {
	case readStatus == newStatus:
		f.applyExtras(tx, extra)
	case tx.Status == readStatus:
		f.applyExtras(tx, extra)
		changed = true
		tx.Status = newStatus
		if newStatus == models.PaymentStatusCompleted && tx.CompletedAt == nil {
			now := time.Now()
			tx.CompletedAt = &now
		}
		f.history = append(f.history, models.PaymentStatusHistory{
			TransactionID: id,
			Status:        newStatus,
			Note:          extra.Note,
		})
	default:
		// Conditional write matched nothing; the winner's state stands.
	}
	cp := *tx
	return &cp, changed, nil
}

func (f *fakeTxs) applyExtras(tx *models.PaymentTransaction, extra repository.TransitionExtra) {
	if extra.ProviderPaymentID != "" {
		tx.ProviderPaymentID = extra.ProviderPaymentID
	}
	if extra.CryptoType != "" && tx.CryptoType == "" {
		tx.CryptoType = extra.CryptoType
	}
	if extra.CryptoAddress != "" && tx.CryptoAddress == "" {
		tx.CryptoAddress = extra.CryptoAddress
	}
}

type fakeNotifier struct {
	mu             sync.Mutex
	buyerMessages  []string
	operatorAlerts []string
}

func (f *fakeNotifier) NotifyBuyer(ctx context.Context, chatID int64, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buyerMessages = append(f.buyerMessages, message)
	return nil
}

func (f *fakeNotifier) NotifyOperators(ctx context.Context, subject, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.operatorAlerts = append(f.operatorAlerts, subject+": "+message)
	return nil
}

func (f *fakeNotifier) alertsContaining(substr string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, a := range f.operatorAlerts {
		if strings.Contains(a, substr) {
			n++
		}
	}
	return n
}

type fakeGateway struct{}

func (fakeGateway) CreatePayment(ctx context.Context, in payment.CreatePaymentInput) (*payment.CreatePaymentResult, error) {
	return &payment.CreatePaymentResult{
		ExternalID:  "inv-" + in.OrderID,
		PaymentURL:  "https://pay.example/inv-" + in.OrderID,
		PayCurrency: in.PayCurrency,
	}, nil
}

func (fakeGateway) GetPaymentStatus(ctx context.Context, providerPaymentID string) (string, error) {
	return "finished", nil
}

func (fakeGateway) BestPayCurrency(ctx context.Context, preferred string) (string, error) {
	if preferred != "" {
		return preferred, nil
	}
	return "btc", nil
}

// ---- harness ---------------------------------------------------------------

type harness struct {
	svc      *Service
	users    *fakeUsers
	products *fakeProducts
	orders   *fakeOrders
	txs      *fakeTxs
	notifier *fakeNotifier
}

func newHarness() *harness {
	h := &harness{
		users:    &fakeUsers{users: map[uint]*models.User{}},
		products: &fakeProducts{products: map[uint]*models.Product{}},
		orders:   &fakeOrders{orders: map[uint]*models.Order{}},
		txs:      &fakeTxs{txs: map[uint]*models.PaymentTransaction{}},
		notifier: &fakeNotifier{},
	}
	h.svc = &Service{
		users:        h.users,
		products:     h.products,
		orders:       h.orders,
		txs:          h.txs,
		gateway:      fakeGateway{},
		notifier:     h.notifier,
		salesCounter: func(productID uint, quantity int) error { return nil },
	}
	return h
}

func (h *harness) seedUser(id uint) {
	h.users.users[id] = &models.User{ID: id, ChatID: int64(1000 + id), Status: models.STATUS_ACTIVE}
}

func (h *harness) seedProduct(id uint, stock ...string) {
	h.products.products[id] = &models.Product{
		ID:             id,
		PriceCents:     1999,
		Currency:       "USD",
		DigitalContent: append(models.StringList{}, stock...),
		IsAvailable:    len(stock) > 0,
	}
}

func (h *harness) seedOrder(t *testing.T, userID, productID uint, quantity int) (*models.Order, *models.PaymentTransaction) {
	t.Helper()
	order := &models.Order{
		UserID:         userID,
		ProductID:      productID,
		Quantity:       quantity,
		UnitPriceCents: 1999,
		Currency:       "USD",
	}
	require.NoError(t, h.orders.Create(order))
	tx := &models.PaymentTransaction{
		OrderID:         order.ID,
		UserID:          userID,
		AmountCents:     order.TotalCents,
		Currency:        "USD",
		PaymentProvider: models.PaymentProviderNOWPayments,
		ExternalID:      "inv-test-" + strconv.FormatUint(uint64(order.ID), 10),
	}
	require.NoError(t, h.txs.Create(tx))
	return order, tx
}

func completedUpdate(orderID uint, providerPaymentID string) payment.StatusUpdate {
	return payment.StatusUpdate{
		ProviderPaymentID: providerPaymentID,
		OrderID:           orderID,
		NewStatus:         models.PaymentStatusCompleted,
		RawStatus:         "finished",
		PayCurrency:       "trx",
		PayAddress:        "TAddr",
	}
}

// ---- tests -----------------------------------------------------------------

func TestApplyPaymentUpdateDeliversOnce(t *testing.T) {
	h := newHarness()
	h.seedUser(1)
	h.seedProduct(7, "KEY-1", "KEY-2", "KEY-3", "KEY-4", "KEY-5")
	order, _ := h.seedOrder(t, 1, 7, 2)

	upd := completedUpdate(order.ID, "900001")
	for i := 0; i < 3; i++ {
		require.NoError(t, h.svc.ApplyPaymentUpdate(context.Background(), upd))
	}

	got, err := h.orders.GetByID(order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusDelivered, got.Status)
	assert.Equal(t, models.StringList{"KEY-1", "KEY-2"}, got.DeliveredContent)

	product, err := h.products.GetByID(7)
	require.NoError(t, err)
	assert.Equal(t, 3, product.StockCount())

	// Exactly one effective transition and one buyer delivery.
	assert.Len(t, h.txs.history, 1)
	assert.Len(t, h.notifier.buyerMessages, 1)
	assert.Contains(t, h.notifier.buyerMessages[0], "KEY-1")

	tx, err := h.txs.FindByOrderID(order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, tx.Status)
	assert.NotNil(t, tx.CompletedAt)
	assert.Equal(t, "900001", tx.ProviderPaymentID)
}

func TestConcurrentCompletionsNeverOversell(t *testing.T) {
	const stock = 3
	const buyers = 7

	h := newHarness()
	h.seedProduct(7, "K-1", "K-2", "K-3")

	var updates []payment.StatusUpdate
	for i := uint(1); i <= buyers; i++ {
		h.seedUser(i)
		order, _ := h.seedOrder(t, i, 7, 1)
		updates = append(updates, completedUpdate(order.ID, ""))
	}

	var wg sync.WaitGroup
	for _, upd := range updates {
		wg.Add(1)
		go func(u payment.StatusUpdate) {
			defer wg.Done()
			assert.NoError(t, h.svc.ApplyPaymentUpdate(context.Background(), u))
		}(upd)
	}
	wg.Wait()

	delivered, cancelled := 0, 0
	for _, o := range h.orders.orders {
		switch o.Status {
		case models.OrderStatusDelivered:
			delivered++
			assert.Len(t, o.DeliveredContent, 1)
		case models.OrderStatusCancelled:
			cancelled++
			assert.Empty(t, o.DeliveredContent)
		}
	}
	assert.Equal(t, stock, delivered)
	assert.Equal(t, buyers-stock, cancelled)

	product, err := h.products.GetByID(7)
	require.NoError(t, err)
	assert.Equal(t, 0, product.StockCount())

	// Every unlucky buyer produced one observable divergence alert.
	assert.Equal(t, buyers-stock, h.notifier.alertsContaining("Out of stock after payment"))
}

func TestConcurrentDuplicateCompletionsDeductStockOnce(t *testing.T) {
	h := newHarness()
	h.seedUser(1)
	h.seedProduct(7, "K-1", "K-2")
	order, _ := h.seedOrder(t, 1, 7, 1)

	upd := completedUpdate(order.ID, "900010")

	// A second worker lands the identical notification between this worker's
	// ledger read and its conditional flip. Only one of the two may pass the
	// changed gate, otherwise both would reserve stock for the same order.
	h.txs.beforeFlip = func() {
		require.NoError(t, h.svc.ApplyPaymentUpdate(context.Background(), upd))
	}
	require.NoError(t, h.svc.ApplyPaymentUpdate(context.Background(), upd))

	got, err := h.orders.GetByID(order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusDelivered, got.Status)
	assert.Len(t, got.DeliveredContent, 1)

	// One unit sold, one unit deducted.
	product, _ := h.products.GetByID(7)
	assert.Equal(t, 1, product.StockCount())

	assert.Len(t, h.txs.history, 1)
	assert.Len(t, h.notifier.buyerMessages, 1)
	assert.Equal(t, 1, h.notifier.alertsContaining("Sale completed"))
	assert.Equal(t, 0, h.notifier.alertsContaining("Stock/order divergence"))
}

func TestStaleCancelDoesNotOverwriteConcurrentCompletion(t *testing.T) {
	h := newHarness()
	h.seedUser(1)
	h.seedProduct(7, "K-1")
	order, _ := h.seedOrder(t, 1, 7, 1)

	h.orders.mu.Lock()
	h.orders.orders[order.ID].CreatedAt = time.Now().Add(-45 * time.Minute)
	h.orders.mu.Unlock()

	// The completion webhook commits between the reaper's ledger read and
	// its conditional cancel.
	h.txs.beforeFlip = func() {
		require.NoError(t, h.svc.ApplyPaymentUpdate(context.Background(), completedUpdate(order.ID, "900020")))
	}

	cancelled, err := h.svc.CancelStaleOrders(context.Background(), 30*time.Minute, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, cancelled)

	// The reaper's cancel lost the race and the completed ledger entry
	// survives; the money-for-a-dead-order case is escalated, not hidden.
	tx, err := h.txs.FindByOrderID(order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, tx.Status)
	assert.NotNil(t, tx.CompletedAt)

	require.Len(t, h.txs.history, 1)
	assert.Equal(t, models.PaymentStatusCompleted, h.txs.history[0].Status)

	gotOrder, _ := h.orders.GetByID(order.ID)
	assert.Equal(t, models.OrderStatusCancelled, gotOrder.Status)
	product, _ := h.products.GetByID(7)
	assert.Equal(t, 1, product.StockCount())
	assert.Equal(t, 1, h.notifier.alertsContaining("Payment for cancelled order"))
}

func TestFailedPaymentCancelsOrder(t *testing.T) {
	h := newHarness()
	h.seedUser(1)
	h.seedProduct(7, "K-1")
	order, _ := h.seedOrder(t, 1, 7, 1)

	upd := payment.StatusUpdate{
		OrderID:   order.ID,
		NewStatus: models.PaymentStatusFailed,
		RawStatus: "expired",
	}
	require.NoError(t, h.svc.ApplyPaymentUpdate(context.Background(), upd))

	got, err := h.orders.GetByID(order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, got.Status)

	product, _ := h.products.GetByID(7)
	assert.Equal(t, 1, product.StockCount())

	require.Len(t, h.notifier.buyerMessages, 1)
	assert.Contains(t, h.notifier.buyerMessages[0], "cancelled")

	// Replay of the same failure is a silent no-op.
	require.NoError(t, h.svc.ApplyPaymentUpdate(context.Background(), upd))
	assert.Len(t, h.notifier.buyerMessages, 1)
	assert.Len(t, h.txs.history, 1)
}

func TestLateCompletionAfterFailureIsEscalatedNotFulfilled(t *testing.T) {
	h := newHarness()
	h.seedUser(1)
	h.seedProduct(7, "K-1")
	order, _ := h.seedOrder(t, 1, 7, 1)

	failed := payment.StatusUpdate{OrderID: order.ID, NewStatus: models.PaymentStatusFailed, RawStatus: "expired"}
	require.NoError(t, h.svc.ApplyPaymentUpdate(context.Background(), failed))

	// The provider occasionally sends a late "finished" after "expired".
	require.NoError(t, h.svc.ApplyPaymentUpdate(context.Background(), completedUpdate(order.ID, "900077")))

	got, err := h.orders.GetByID(order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, got.Status)
	assert.Empty(t, got.DeliveredContent)

	product, _ := h.products.GetByID(7)
	assert.Equal(t, 1, product.StockCount())

	assert.Equal(t, 1, h.notifier.alertsContaining("Payment for cancelled order"))
}

func TestFulfillWriteFailureIsCriticalAndNotRetried(t *testing.T) {
	h := newHarness()
	h.seedUser(1)
	h.seedProduct(7, "K-1", "K-2")
	order, _ := h.seedOrder(t, 1, 7, 1)
	h.orders.failFulfill = true

	err := h.svc.ApplyPaymentUpdate(context.Background(), completedUpdate(order.ID, "900002"))
	require.Error(t, err)

	// Stock was deducted exactly once and no automatic re-reservation ran.
	product, _ := h.products.GetByID(7)
	assert.Equal(t, 1, product.StockCount())

	got, _ := h.orders.GetByID(order.ID)
	assert.NotEqual(t, models.OrderStatusDelivered, got.Status)
	assert.Equal(t, 1, h.notifier.alertsContaining("Stock/order divergence"))
}

func TestUnknownTransactionIsDropped(t *testing.T) {
	h := newHarness()

	err := h.svc.ApplyPaymentUpdate(context.Background(), completedUpdate(999, "424242"))
	require.NoError(t, err)
	assert.Empty(t, h.txs.history)
	assert.Empty(t, h.notifier.buyerMessages)
}

func TestProviderIDFallbackResolution(t *testing.T) {
	h := newHarness()
	h.seedUser(1)
	h.seedProduct(7, "K-1")
	order, _ := h.seedOrder(t, 1, 7, 1)

	// First webhook carries the order reference and stores the provider id.
	require.NoError(t, h.svc.ApplyPaymentUpdate(context.Background(), payment.StatusUpdate{
		OrderID:           order.ID,
		ProviderPaymentID: "555001",
		NewStatus:         models.PaymentStatusPending,
		RawStatus:         "confirming",
	}))

	// A later webhook without an order reference resolves via provider id.
	require.NoError(t, h.svc.ApplyPaymentUpdate(context.Background(), payment.StatusUpdate{
		ProviderPaymentID: "555001",
		NewStatus:         models.PaymentStatusCompleted,
		RawStatus:         "finished",
	}))

	got, err := h.orders.GetByID(order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusDelivered, got.Status)
}

func TestFirstPendingWebhookNotifiesBuyerOnce(t *testing.T) {
	h := newHarness()
	h.seedUser(1)
	h.seedProduct(7, "K-1")
	order, _ := h.seedOrder(t, 1, 7, 1)

	upd := payment.StatusUpdate{
		OrderID:           order.ID,
		ProviderPaymentID: "555200",
		NewStatus:         models.PaymentStatusPending,
		RawStatus:         "waiting",
	}
	require.NoError(t, h.svc.ApplyPaymentUpdate(context.Background(), upd))

	require.Len(t, h.notifier.buyerMessages, 1)
	assert.Contains(t, h.notifier.buyerMessages[0], "confirmations")

	// Replays carry a provider id the ledger already holds: no second notice.
	require.NoError(t, h.svc.ApplyPaymentUpdate(context.Background(), upd))
	assert.Len(t, h.notifier.buyerMessages, 1)

	// Completion still produces the delivery message.
	require.NoError(t, h.svc.ApplyPaymentUpdate(context.Background(), completedUpdate(order.ID, "555200")))
	require.Len(t, h.notifier.buyerMessages, 2)
	assert.Contains(t, h.notifier.buyerMessages[1], "K-1")
}

func TestCancelStaleOrders(t *testing.T) {
	h := newHarness()
	h.seedUser(1)
	h.seedProduct(7, "K-1", "K-2")

	staleOrder, _ := h.seedOrder(t, 1, 7, 1)
	freshOrder, _ := h.seedOrder(t, 1, 7, 1)

	h.orders.mu.Lock()
	h.orders.orders[staleOrder.ID].CreatedAt = time.Now().Add(-31 * time.Minute)
	h.orders.orders[freshOrder.ID].CreatedAt = time.Now().Add(-29 * time.Minute)
	h.orders.mu.Unlock()

	cancelled, err := h.svc.CancelStaleOrders(context.Background(), 30*time.Minute, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, cancelled)

	gotStale, _ := h.orders.GetByID(staleOrder.ID)
	assert.Equal(t, models.OrderStatusCancelled, gotStale.Status)

	gotFresh, _ := h.orders.GetByID(freshOrder.ID)
	assert.Equal(t, models.OrderStatusPending, gotFresh.Status)

	tx, _ := h.txs.FindByOrderID(staleOrder.ID)
	assert.Equal(t, models.PaymentStatusCancelled, tx.Status)
}

func TestCheckoutSnapshotsPriceAndCreatesPendingTransaction(t *testing.T) {
	h := newHarness()
	h.seedUser(1)
	h.seedProduct(7, "K-1", "K-2", "K-3")

	res, err := h.svc.Checkout(context.Background(), 1, 7, 2, "trx")
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusPending, res.Order.Status)
	assert.Equal(t, int64(1999), res.Order.UnitPriceCents)
	assert.Equal(t, int64(3998), res.Order.TotalCents)

	assert.Equal(t, models.PaymentStatusPending, res.Transaction.Status)
	assert.NotEmpty(t, res.Transaction.ExternalID)
	assert.Equal(t, res.PaymentURL, res.Transaction.PaymentURL)

	// A later price change must not affect the snapshot.
	h.products.mu.Lock()
	h.products.products[7].PriceCents = 9999
	h.products.mu.Unlock()
	got, _ := h.orders.GetByID(res.Order.ID)
	assert.Equal(t, int64(1999), got.UnitPriceCents)
}

func TestCheckoutRejectsInsufficientStock(t *testing.T) {
	h := newHarness()
	h.seedUser(1)
	h.seedProduct(7, "K-1")

	_, err := h.svc.Checkout(context.Background(), 1, 7, 2, "")
	assert.ErrorIs(t, err, ErrOutOfStock)

	_, err = h.svc.Checkout(context.Background(), 1, 404, 1, "")
	assert.ErrorIs(t, err, ErrProductUnavailable)
}

func TestSyncPaymentStatusPollsAndApplies(t *testing.T) {
	h := newHarness()
	h.seedUser(1)
	h.seedProduct(7, "K-1")
	order, _ := h.seedOrder(t, 1, 7, 1)

	// Link the provider payment id the way a first webhook would have.
	_, _, err := h.txs.Transition(1, models.PaymentStatusPending, repository.TransitionExtra{ProviderPaymentID: "777001"})
	require.NoError(t, err)

	require.NoError(t, h.svc.SyncPaymentStatus(context.Background(), "777001"))

	got, _ := h.orders.GetByID(order.ID)
	assert.Equal(t, models.OrderStatusDelivered, got.Status)
}
