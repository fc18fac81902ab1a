package repository

import (
	"github.com/kelvinguchu/galacticelectricals/internal/domain"
	"github.com/kelvinguchu/galacticelectricals/internal/models"

	"gorm.io/gorm"
)

type ProductRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) Create(p *models.Product) error {
	return r.db.Create(p).Error
}

func (r *ProductRepository) GetByID(id uint) (*models.Product, error) {
	var p models.Product
	if err := r.db.First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProductRepository) Update(p *models.Product) error {
	return r.db.Save(p).Error
}

// List returns a page of products, newest first. publishedOnly hides drafts
// from the public catalog surface.
func (r *ProductRepository) List(publishedOnly bool, limit, offset int) ([]models.Product, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	q := r.db.Order("created_at DESC").Limit(limit).Offset(offset)
	if publishedOnly {
		q = q.Where("published = ?", true)
	}
	var products []models.Product
	if err := q.Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// DecrementStock subtracts quantity from a managed product's stock, flooring
// at zero, and flips the stock status when the shelf empties. The arithmetic
// runs in SQL so concurrent decrements do not lose updates.
func (r *ProductRepository) DecrementStock(id uint, quantity int) error {
	if quantity <= 0 {
		return nil
	}
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Product{}).
			Where("id = ? AND manage_stock = ?", id, true).
			Update("stock_quantity", gorm.Expr("GREATEST(stock_quantity - ?, 0)", quantity)).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Product{}).
			Where("id = ? AND manage_stock = ? AND stock_quantity = 0", id, true).
			Update("stock_status", domain.StockOutOfStock).Error; err != nil {
			return err
		}
		return tx.Model(&models.Product{}).
			Where("id = ? AND manage_stock = ? AND stock_quantity > 0 AND stock_status = ?", id, true, domain.StockOutOfStock).
			Update("stock_status", domain.StockInStock).Error
	})
}
