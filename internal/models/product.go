package models

import (
	"time"

	"github.com/kelvinguchu/galacticelectricals/internal/domain"

	"gorm.io/gorm"
)

type Product struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	Title         string         `gorm:"size:255;not null" json:"title"`
	SKU           string         `gorm:"size:100;index" json:"sku"`
	Description   string         `gorm:"type:text" json:"description"`
	RegularPrice  float64        `gorm:"not null" json:"regular_price"`
	SalePrice     float64        `json:"sale_price"`
	Published     bool           `gorm:"default:false;index" json:"published"`
	ManageStock   bool           `gorm:"default:false" json:"manage_stock"`
	StockQuantity int            `gorm:"default:0" json:"stock_quantity"`
	StockStatus   string         `gorm:"size:20;default:'instock';index" json:"stock_status"` // instock | outofstock | onbackorder
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Product) TableName() string { return "products" }

// InStockFor reports whether the requested quantity can be sold. Products on
// backorder always accept orders; unmanaged stock is never counted.
func (p *Product) InStockFor(quantity int) bool {
	if p.StockStatus == domain.StockOutOfStock {
		return false
	}
	if !p.ManageStock || p.StockStatus == domain.StockOnBackorder {
		return true
	}
	return p.StockQuantity >= quantity
}
