package repository

import (
	"errors"
	"fmt"

	"github.com/DavidKroell/Vendora/app/models"
	"gorm.io/gorm"
)

// ErrStockContention is returned when the conditional stock write kept losing
// the version race. Callers may treat it like a transient failure and retry.
var ErrStockContention = errors.New("stock update lost version race")

// maxStockAttempts bounds the CAS retry loop. Every lost race means another
// writer committed, so stock shrank (or grew via restock) and the re-read
// gives a fresh decision basis.
const maxStockAttempts = 10

// productRepository implements the ProductRepository interface
type productRepository struct {
	db *gorm.DB
}

// NewProductRepository creates a new product repository instance
func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) Create(product *models.Product) error {
	product.IsAvailable = len(product.DigitalContent) > 0
	return r.db.Create(product).Error
}

func (r *productRepository) GetByID(id uint) (*models.Product, error) {
	var product models.Product
	err := r.db.First(&product, id).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepository) GetByCategoryID(categoryID uint, offset, limit int) ([]models.Product, error) {
	var products []models.Product
	err := r.db.Where("category_id = ?", categoryID).
		Offset(offset).Limit(limit).Order("name ASC").Find(&products).Error
	return products, err
}

func (r *productRepository) GetAvailable(offset, limit int) ([]models.Product, error) {
	var products []models.Product
	err := r.db.Where("is_available = ?", true).
		Offset(offset).Limit(limit).Order("name ASC").Find(&products).Error
	return products, err
}

func (r *productRepository) Update(product *models.Product) error {
	return r.db.Save(product).Error
}

func (r *productRepository) Delete(id uint) error {
	return r.db.Delete(&models.Product{}, id).Error
}

func (r *productRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Product{}).Count(&count).Error
	return count, err
}

// ReserveStock pops the first quantity items off the product's digital
// content. The write is a compare-and-swap on stock_version: the UPDATE only
// applies while the row still carries the version we read, so two concurrent
// reservations can never both consume the same items. A lost race re-reads
// and retries against the new state.
func (r *productRepository) ReserveStock(productID uint, quantity int) ([]string, bool, error) {
	if quantity <= 0 {
		return nil, false, fmt.Errorf("reserve quantity must be positive, got %d", quantity)
	}

	for attempt := 0; attempt < maxStockAttempts; attempt++ {
		var product models.Product
		if err := r.db.First(&product, productID).Error; err != nil {
			return nil, false, err
		}
		if len(product.DigitalContent) < quantity {
			return nil, false, nil
		}

		reserved := append([]string(nil), product.DigitalContent[:quantity]...)
		remainder := append(models.StringList{}, product.DigitalContent[quantity:]...)

		res := r.db.Model(&models.Product{}).
			Where("id = ? AND stock_version = ?", product.ID, product.StockVersion).
			Updates(map[string]interface{}{
				"digital_content": remainder,
				"stock_version":   product.StockVersion + 1,
				"is_available":    len(remainder) > 0,
			})
		if res.Error != nil {
			return nil, false, res.Error
		}
		if res.RowsAffected == 1 {
			return reserved, true, nil
		}
	}
	return nil, false, ErrStockContention
}

// Restock appends items to the product's digital content, guarded by the same
// version CAS as ReserveStock.
func (r *productRepository) Restock(productID uint, items []string) (*models.Product, error) {
	if len(items) == 0 {
		return r.GetByID(productID)
	}

	for attempt := 0; attempt < maxStockAttempts; attempt++ {
		var product models.Product
		if err := r.db.First(&product, productID).Error; err != nil {
			return nil, err
		}

		content := append(append(models.StringList{}, product.DigitalContent...), items...)

		res := r.db.Model(&models.Product{}).
			Where("id = ? AND stock_version = ?", product.ID, product.StockVersion).
			Updates(map[string]interface{}{
				"digital_content": content,
				"stock_version":   product.StockVersion + 1,
				"is_available":    true,
			})
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 1 {
			product.DigitalContent = content
			product.StockVersion++
			product.IsAvailable = true
			return &product, nil
		}
	}
	return nil, ErrStockContention
}
