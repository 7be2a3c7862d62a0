package repository

import (
	"time"

	"github.com/DavidKroell/Vendora/app/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByChatID(chatID int64) (*models.User, error)
	GetOrCreateByChatID(chatID int64, username string) (*models.User, error)
	Update(user *models.User) error
	List(offset, limit int) ([]models.User, error)
	Count() (int64, error)
}

// CategoryRepository defines the interface for category catalog operations
type CategoryRepository interface {
	Create(category *models.Category) error
	GetByID(id uint) (*models.Category, error)
	GetActive() ([]models.Category, error)
	Update(category *models.Category) error
	Delete(id uint) error
}

// ProductRepository defines the interface for product and stock operations.
// ReserveStock is the Inventory Reservoir: the only operation allowed to
// remove items from a product's digital content.
type ProductRepository interface {
	Create(product *models.Product) error
	GetByID(id uint) (*models.Product, error)
	GetByCategoryID(categoryID uint, offset, limit int) ([]models.Product, error)
	GetAvailable(offset, limit int) ([]models.Product, error)
	Update(product *models.Product) error
	Delete(id uint) error
	Count() (int64, error)

	// ReserveStock atomically removes quantity items from the front of the
	// product's digital content. The returned slice is the reserved items in
	// stock order; ok=false means insufficient stock, with no mutation.
	ReserveStock(productID uint, quantity int) (items []string, ok bool, err error)

	// Restock appends items to the product's digital content.
	Restock(productID uint, items []string) (*models.Product, error)
}

// OrderRepository defines the interface for the order state machine.
type OrderRepository interface {
	Create(order *models.Order) error
	GetByID(id uint) (*models.Order, error)
	GetByUserID(userID uint, offset, limit int) ([]models.Order, error)

	// Fulfill sets status=delivered and attaches the delivered content in a
	// single conditional write. It refuses terminal orders.
	Fulfill(orderID uint, content []string) (*models.Order, error)

	// UpdateStatus transitions a non-terminal order. Returns
	// gorm.ErrRecordNotFound when the order does not exist and
	// ErrOrderTerminal when it is already delivered or cancelled.
	UpdateStatus(orderID uint, status string) (*models.Order, error)

	// Cancel marks a pending/paid order cancelled. Cancelling an already
	// terminal order is reported via ErrOrderTerminal and leaves it untouched.
	Cancel(orderID uint) (*models.Order, error)

	// FindStalePending returns pending orders created before the cutoff,
	// oldest first, at most limit rows.
	FindStalePending(cutoff time.Time, limit int) ([]models.Order, error)
}

// TransactionRepository defines the interface for the payment ledger.
type TransactionRepository interface {
	Create(tx *models.PaymentTransaction) error
	GetByID(id uint) (*models.PaymentTransaction, error)
	FindByExternalID(externalID string) (*models.PaymentTransaction, error)
	FindByProviderPaymentID(providerPaymentID string) (*models.PaymentTransaction, error)
	FindByOrderID(orderID uint) (*models.PaymentTransaction, error)
	FindPendingByOrderID(orderID uint) ([]models.PaymentTransaction, error)

	// Transition applies a status change idempotently: when newStatus equals
	// the stored status the current record is returned unchanged and no
	// history row is written. CompletedAt is stamped only on entry into
	// completed. Extra fields (provider payment id, crypto type/address) are
	// merged when non-empty. The flip is conditional on the status that was
	// read, so of several concurrent transitions on one row exactly one
	// returns changed=true; losers get the winner's record and changed=false.
	Transition(id uint, newStatus string, extra TransitionExtra) (*models.PaymentTransaction, bool, error)

	History(transactionID uint) ([]models.PaymentStatusHistory, error)

	// FindDivergent returns completed transactions whose order never reached
	// delivered: the operator reconciliation queue.
	FindDivergent(limit int) ([]models.PaymentTransaction, error)
}

// TransitionExtra carries optional fields merged into the ledger row on an
// effective transition.
type TransitionExtra struct {
	ProviderPaymentID string
	CryptoType        string
	CryptoAddress     string
	Note              string
}

// Repositories struct holds all repository instances
type Repositories struct {
	User        UserRepository
	Category    CategoryRepository
	Product     ProductRepository
	Order       OrderRepository
	Transaction TransactionRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:        NewUserRepository(db),
		Category:    NewCategoryRepository(db),
		Product:     NewProductRepository(db),
		Order:       NewOrderRepository(db),
		Transaction: NewTransactionRepository(db),
	}
}
