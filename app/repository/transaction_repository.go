package repository

import (
	"time"

	"github.com/DavidKroell/Vendora/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// transactionRepository implements the TransactionRepository interface
type transactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository creates a new payment transaction repository instance
func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) Create(tx *models.PaymentTransaction) error {
	if tx.Status == "" {
		tx.Status = models.PaymentStatusPending
	}
	return r.db.Create(tx).Error
}

func (r *transactionRepository) GetByID(id uint) (*models.PaymentTransaction, error) {
	var tx models.PaymentTransaction
	err := r.db.First(&tx, id).Error
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (r *transactionRepository) FindByExternalID(externalID string) (*models.PaymentTransaction, error) {
	var tx models.PaymentTransaction
	err := r.db.Where("external_id = ?", externalID).First(&tx).Error
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (r *transactionRepository) FindByProviderPaymentID(providerPaymentID string) (*models.PaymentTransaction, error) {
	var tx models.PaymentTransaction
	err := r.db.Where("provider_payment_id = ?", providerPaymentID).First(&tx).Error
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (r *transactionRepository) FindByOrderID(orderID uint) (*models.PaymentTransaction, error) {
	var tx models.PaymentTransaction
	err := r.db.Where("order_id = ?", orderID).Order("created_at DESC").First(&tx).Error
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (r *transactionRepository) FindPendingByOrderID(orderID uint) ([]models.PaymentTransaction, error) {
	var txs []models.PaymentTransaction
	err := r.db.Where("order_id = ? AND status = ?", orderID, models.PaymentStatusPending).Find(&txs).Error
	return txs, err
}

// Transition applies a status change idempotently. A re-delivery carrying the
// status already stored is a no-op returning the current record, not an
// error; only an effective change stamps CompletedAt (on entry into
// completed), merges extra provider fields and appends a history row.
//
// The flip itself is a compare-and-set against the status that was read:
// when two workers race the same row, the conditional update matches zero
// rows for the loser, so exactly one caller per flip observes changed=true.
func (r *transactionRepository) Transition(id uint, newStatus string, extra TransitionExtra) (*models.PaymentTransaction, bool, error) {
	var out *models.PaymentTransaction
	changed := false

	err := r.db.Transaction(func(dbtx *gorm.DB) error {
		var tx models.PaymentTransaction
		if err := dbtx.First(&tx, id).Error; err != nil {
			return err
		}

		updates := map[string]interface{}{}
		if extra.ProviderPaymentID != "" && extra.ProviderPaymentID != tx.ProviderPaymentID {
			updates["provider_payment_id"] = extra.ProviderPaymentID
			tx.ProviderPaymentID = extra.ProviderPaymentID
		}
		if extra.CryptoType != "" && tx.CryptoType == "" {
			updates["crypto_type"] = extra.CryptoType
			tx.CryptoType = extra.CryptoType
		}
		if extra.CryptoAddress != "" && tx.CryptoAddress == "" {
			updates["crypto_address"] = extra.CryptoAddress
			tx.CryptoAddress = extra.CryptoAddress
		}

		if tx.Status == newStatus {
			if len(updates) > 0 {
				if err := dbtx.Model(&models.PaymentTransaction{}).Where("id = ?", tx.ID).Updates(updates).Error; err != nil {
					return err
				}
			}
			out = &tx
			return nil
		}

		prev := tx.Status
		updates["status"] = newStatus
		tx.Status = newStatus
		if newStatus == models.PaymentStatusCompleted && tx.CompletedAt == nil {
			now := time.Now()
			updates["completed_at"] = &now
			tx.CompletedAt = &now
		}

		res := dbtx.Model(&models.PaymentTransaction{}).
			Where("id = ? AND status = ?", tx.ID, prev).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// A concurrent transition committed in between. Hand back the
			// row as the winner left it; a locking read sees past this
			// transaction's repeatable-read snapshot.
			var cur models.PaymentTransaction
			if err := dbtx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&cur, id).Error; err != nil {
				return err
			}
			out = &cur
			return nil
		}

		changed = true
		history := models.PaymentStatusHistory{
			TransactionID: tx.ID,
			Status:        newStatus,
			Note:          extra.Note,
		}
		if err := dbtx.Create(&history).Error; err != nil {
			return err
		}

		out = &tx
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, changed, nil
}

func (r *transactionRepository) History(transactionID uint) ([]models.PaymentStatusHistory, error) {
	var rows []models.PaymentStatusHistory
	err := r.db.Where("transaction_id = ?", transactionID).Order("created_at ASC").Find(&rows).Error
	return rows, err
}

// FindDivergent lists money-arrived-but-not-delivered cases: completed
// transactions whose order is not in delivered state (cancelled after an
// out-of-stock fulfillment, a failed delivery write, or a stale-order
// timeout that raced a late completion).
func (r *transactionRepository) FindDivergent(limit int) ([]models.PaymentTransaction, error) {
	var txs []models.PaymentTransaction
	err := r.db.
		Joins("JOIN orders ON orders.id = payment_transactions.order_id").
		Where("payment_transactions.status = ? AND orders.status <> ?", models.PaymentStatusCompleted, models.OrderStatusDelivered).
		Order("payment_transactions.completed_at ASC").
		Limit(limit).
		Find(&txs).Error
	return txs, err
}
