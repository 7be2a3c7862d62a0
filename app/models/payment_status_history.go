package models

import "time"

// PaymentStatusHistory is an append-only log of ledger status transitions.
// One row is written per effective transition; idempotent re-deliveries that
// do not change the status leave no trace here.
type PaymentStatusHistory struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	TransactionID uint      `gorm:"not null;index" json:"transaction_id"`
	Status        string    `gorm:"type:varchar(20);not null" json:"status"`
	Note          string    `gorm:"type:text" json:"note"`
	CreatedAt     time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
