package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// StringList stores an ordered list of strings as a JSON text column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = StringList{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("unsupported type %T for StringList", value)
	}
}

// Product is a catalog entry carrying its own stock: DigitalContent holds the
// redeemable items (license keys, credential pairs) and its length IS the
// stock count. Every stock mutation must go through
// ProductRepository.ReserveStock / Restock, which guard the write with
// StockVersion.
type Product struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	CategoryID     uint           `gorm:"not null;index" json:"category_id"`
	Name           string         `gorm:"type:varchar(191);not null;index" json:"name"`
	Description    string         `gorm:"type:text" json:"description"`
	PriceCents     int64          `gorm:"not null" json:"price_cents"`
	Currency       string         `gorm:"type:varchar(10);not null;default:'USD'" json:"currency"`
	DigitalContent StringList     `gorm:"type:longtext" json:"-"`
	StockVersion   uint64         `gorm:"not null;default:0" json:"-"`
	IsAvailable    bool           `gorm:"default:false;index" json:"is_available"`
	ViewCount      uint64         `gorm:"default:0" json:"view_count"`
	SalesCount     uint64         `gorm:"default:0" json:"sales_count"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

// StockCount derives the available stock from the content list.
func (p *Product) StockCount() int {
	return len(p.DigitalContent)
}

func (p *Product) HasStock(quantity int) bool {
	return quantity > 0 && len(p.DigitalContent) >= quantity
}
