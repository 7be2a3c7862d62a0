package repository

import (
	"errors"
	"time"

	"github.com/DavidKroell/Vendora/app/models"
	"gorm.io/gorm"
)

// ErrOrderTerminal is returned when a transition is attempted on an order
// already in delivered or cancelled state. The order is left untouched.
var ErrOrderTerminal = errors.New("order is in a terminal state")

// orderRepository implements the OrderRepository interface
type orderRepository struct {
	db *gorm.DB
}

// NewOrderRepository creates a new order repository instance
func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) Create(order *models.Order) error {
	if order.Status == "" {
		order.Status = models.OrderStatusPending
	}
	order.TotalCents = int64(order.Quantity) * order.UnitPriceCents
	return r.db.Create(order).Error
}

func (r *orderRepository) GetByID(id uint) (*models.Order, error) {
	var order models.Order
	err := r.db.First(&order, id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) GetByUserID(userID uint, offset, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.Where("user_id = ?", userID).
		Offset(offset).Limit(limit).Order("created_at DESC").Find(&orders).Error
	return orders, err
}

// Fulfill sets status=delivered and attaches the delivered content in one
// write. The status predicate keeps terminal orders immutable server-side:
// the UPDATE simply matches no row when the order already reached delivered
// or cancelled.
func (r *orderRepository) Fulfill(orderID uint, content []string) (*models.Order, error) {
	res := r.db.Model(&models.Order{}).
		Where("id = ? AND status NOT IN ?", orderID, []string{models.OrderStatusDelivered, models.OrderStatusCancelled}).
		Updates(map[string]interface{}{
			"status":            models.OrderStatusDelivered,
			"delivered_content": models.StringList(content),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return r.classifyUnmatched(orderID)
	}
	return r.GetByID(orderID)
}

// UpdateStatus transitions a non-terminal order to the given status.
func (r *orderRepository) UpdateStatus(orderID uint, status string) (*models.Order, error) {
	res := r.db.Model(&models.Order{}).
		Where("id = ? AND status NOT IN ?", orderID, []string{models.OrderStatusDelivered, models.OrderStatusCancelled}).
		Update("status", status)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return r.classifyUnmatched(orderID)
	}
	return r.GetByID(orderID)
}

// Cancel marks a non-terminal order cancelled.
func (r *orderRepository) Cancel(orderID uint) (*models.Order, error) {
	return r.UpdateStatus(orderID, models.OrderStatusCancelled)
}

// FindStalePending returns pending orders older than the cutoff, oldest
// first, capped at limit.
func (r *orderRepository) FindStalePending(cutoff time.Time, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.Where("status = ? AND created_at < ?", models.OrderStatusPending, cutoff).
		Order("created_at ASC").Limit(limit).Find(&orders).Error
	return orders, err
}

// classifyUnmatched distinguishes "no such order" from "order is terminal"
// after a guarded UPDATE matched nothing.
func (r *orderRepository) classifyUnmatched(orderID uint) (*models.Order, error) {
	order, err := r.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order.IsTerminal() {
		return order, ErrOrderTerminal
	}
	// Row exists and is not terminal; treat as a transient miss.
	return nil, gorm.ErrRecordNotFound
}
