package models

import (
	"time"
)

const (
	OrderStatusPending   = "pending"
	OrderStatusPaid      = "paid"
	OrderStatusDelivered = "delivered"
	OrderStatusCancelled = "cancelled"
)

// Order is a purchase of N units of one product. UnitPriceCents is a snapshot
// taken at checkout and never follows later product price changes.
// DeliveredContent is written exactly once, together with the transition into
// delivered; delivered and cancelled are terminal.
type Order struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	UserID           uint       `gorm:"not null;index" json:"user_id"`
	ProductID        uint       `gorm:"not null;index" json:"product_id"`
	Quantity         int        `gorm:"not null" json:"quantity"`
	UnitPriceCents   int64      `gorm:"not null" json:"unit_price_cents"`
	TotalCents       int64      `gorm:"not null" json:"total_cents"`
	Currency         string     `gorm:"type:varchar(10);not null;default:'USD'" json:"currency"`
	Status           string     `gorm:"type:varchar(20);not null;default:'pending';index:idx_orders_status_created,priority:1" json:"status"`
	DeliveredContent StringList `gorm:"type:longtext" json:"delivered_content,omitempty"`
	CreatedAt        time.Time  `gorm:"autoCreateTime;index:idx_orders_status_created,priority:2" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsTerminal reports whether the order reached a final state.
func (o *Order) IsTerminal() bool {
	return o.Status == OrderStatusDelivered || o.Status == OrderStatusCancelled
}

// IsDelivered reports whether delivery already happened, i.e. the order is in
// delivered state and content was attached. Both conditions must hold for a
// webhook replay to be absorbed.
func (o *Order) IsDelivered() bool {
	return o.Status == OrderStatusDelivered && len(o.DeliveredContent) > 0
}
