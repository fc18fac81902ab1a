package repository

import (
	"time"

	"github.com/kelvinguchu/galacticelectricals/internal/domain"
	"github.com/kelvinguchu/galacticelectricals/internal/models"

	"gorm.io/gorm"
)

type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Create(o *models.Order) error {
	return r.db.Create(o).Error
}

func (r *OrderRepository) GetByID(id uint) (*models.Order, error) {
	var o models.Order
	if err := r.db.Preload("Items").First(&o, id).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepository) GetByOrderNumber(orderNumber string) (*models.Order, error) {
	var o models.Order
	if err := r.db.Preload("Items").Where("order_number = ?", orderNumber).First(&o).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepository) Update(o *models.Order) error {
	return r.db.Save(o).Error
}

// Delete removes an order and its items. Only the reconciler calls this, to
// discard an order whose payment attach lost the race.
func (r *OrderRepository) Delete(id uint) error {
	if err := r.db.Where("order_id = ?", id).Delete(&models.OrderItem{}).Error; err != nil {
		return err
	}
	return r.db.Delete(&models.Order{}, id).Error
}

// ListByCustomer returns a customer's orders, newest first.
func (r *OrderRepository) ListByCustomer(customerID uint, limit, offset int) ([]models.Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var orders []models.Order
	err := r.db.Preload("Items").
		Where("customer_id = ?", customerID).
		Order("created_at DESC").Limit(limit).Offset(offset).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// MarkPaid transitions an order into paid with its gateway metadata. Used by
// the C2B confirmation path where the order pre-exists the payment.
func (r *OrderRepository) MarkPaid(id uint, meta models.MpesaMetadata, paidAt time.Time) error {
	return r.db.Model(&models.Order{}).Where("id = ?", id).Updates(map[string]any{
		"payment_status":         domain.OrderPaymentPaid,
		"paid_at":                paidAt,
		"mpesa_result_code":      meta.ResultCode,
		"mpesa_result_desc":      meta.ResultDesc,
		"mpesa_receipt_number":   meta.ReceiptNumber,
		"mpesa_transaction_date": meta.TransactionDate,
	}).Error
}

// MarkPaymentFailed records a failed gateway outcome on the order.
func (r *OrderRepository) MarkPaymentFailed(id uint, meta models.MpesaMetadata) error {
	return r.db.Model(&models.Order{}).Where("id = ?", id).Updates(map[string]any{
		"payment_status":       domain.OrderPaymentFailed,
		"mpesa_result_code":    meta.ResultCode,
		"mpesa_result_desc":    meta.ResultDesc,
		"mpesa_receipt_number": meta.ReceiptNumber,
	}).Error
}

// ClaimInventoryAdjustment flips the inventory_adjusted flag, returning true
// only for the first caller. The conditional update serializes concurrent
// paid transitions so stock is decremented exactly once per order.
func (r *OrderRepository) ClaimInventoryAdjustment(id uint) (bool, error) {
	res := r.db.Model(&models.Order{}).
		Where("id = ? AND inventory_adjusted = ?", id, false).
		Update("inventory_adjusted", true)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
