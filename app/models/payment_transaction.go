package models

import (
	"time"
)

const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
	PaymentStatusCancelled = "cancelled"
)

const PaymentProviderNOWPayments = "nowpayments"

// PaymentTransaction is the ledger record for one payment attempt against an
// order. ExternalID is assigned by us at creation and lets the first webhook
// find the record before the provider's own payment id exists;
// ProviderPaymentID arrives with the first webhook and keys later status
// polling. Once completed, amount/currency/provider fields are immutable and
// no second transaction for the same order may complete.
type PaymentTransaction struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	OrderID           uint       `gorm:"not null;index" json:"order_id"`
	UserID            uint       `gorm:"not null;index" json:"user_id"`
	AmountCents       int64      `gorm:"not null" json:"amount_cents"`
	Currency          string     `gorm:"type:varchar(10);not null;default:'USD'" json:"currency"`
	CryptoType        string     `gorm:"type:varchar(20)" json:"crypto_type,omitempty"`
	PaymentProvider   string     `gorm:"type:varchar(30);not null;index" json:"payment_provider"`
	ExternalID        string     `gorm:"type:varchar(64);not null;uniqueIndex" json:"external_id"`
	ProviderPaymentID string     `gorm:"type:varchar(191);index" json:"provider_payment_id,omitempty"`
	PaymentURL        string     `gorm:"type:varchar(500)" json:"payment_url,omitempty"`
	CryptoAddress     string     `gorm:"type:varchar(191)" json:"crypto_address,omitempty"`
	Status            string     `gorm:"type:varchar(20);not null;default:'pending';index:idx_transactions_status_created,priority:1" json:"status"`
	CreatedAt         time.Time  `gorm:"autoCreateTime;index:idx_transactions_status_created,priority:2" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	CompletedAt       *time.Time `gorm:"type:timestamp;default:null" json:"completed_at,omitempty"`
}

func (t *PaymentTransaction) IsTerminal() bool {
	switch t.Status {
	case PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusCancelled:
		return true
	default:
		return false
	}
}
