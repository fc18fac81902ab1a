package repository

import (
	"github.com/kelvinguchu/galacticelectricals/internal/domain"
	"github.com/kelvinguchu/galacticelectricals/internal/models"

	"gorm.io/gorm"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(p *models.Payment) error {
	return r.db.Create(p).Error
}

func (r *PaymentRepository) GetByID(id uint) (*models.Payment, error) {
	var p models.Payment
	if err := r.db.First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) GetByCheckoutRequestID(checkoutRequestID string) (*models.Payment, error) {
	var p models.Payment
	if err := r.db.Where("checkout_request_id = ?", checkoutRequestID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) GetByReceiptNumber(receipt string) (*models.Payment, error) {
	var p models.Payment
	if err := r.db.Where("mpesa_receipt_number = ?", receipt).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByOriginatorConversationID matches a transaction-status result webhook
// back to the payment whose status query produced it.
func (r *PaymentRepository) GetByOriginatorConversationID(id string) (*models.Payment, error) {
	var p models.Payment
	err := r.db.
		Where(`JSON_UNQUOTE(JSON_EXTRACT(transaction_status, '$.originator_conversation_id')) = ?`, id).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) UpdateFields(id uint, fields map[string]any) error {
	return r.db.Model(&models.Payment{}).Where("id = ?", id).Updates(fields).Error
}

// ClaimSuccess moves a payment to success with a single conditional
// statement. Only a payment that is still initiated or pending can be
// claimed, so exactly one concurrent caller gets claimed=true. Payments
// with a checkout snapshot are claimed through AttachOrder instead; this
// covers the ones that will never carry an order.
func (r *PaymentRepository) ClaimSuccess(id uint, fields map[string]any) (bool, error) {
	updates := map[string]any{"status": domain.PaymentSuccess}
	for k, v := range fields {
		updates[k] = v
	}
	res := r.db.Model(&models.Payment{}).
		Where("id = ? AND status IN ?", id, []string{domain.PaymentInitiated, domain.PaymentPending}).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// MarkFailed records a failed outcome, but never downgrades a payment that
// already reached a terminal state.
func (r *PaymentRepository) MarkFailed(id uint, fields map[string]any) (bool, error) {
	updates := map[string]any{"status": domain.PaymentFailed}
	for k, v := range fields {
		updates[k] = v
	}
	res := r.db.Model(&models.Payment{}).
		Where("id = ? AND status IN ?", id, []string{domain.PaymentInitiated, domain.PaymentPending}).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// AttachOrder links an order to a payment and marks it success, only while
// order_id is still NULL. This is the materialization claim: the order is
// created first, and when two deliveries with different payload bytes slip
// past the dedup ledger, only one attaches and the loser's order is
// discarded.
func (r *PaymentRepository) AttachOrder(paymentID uint, order *models.Order, fields map[string]any) (bool, error) {
	updates := map[string]any{
		"order_id":  order.ID,
		"reference": order.OrderNumber,
		"status":    domain.PaymentSuccess,
	}
	for k, v := range fields {
		updates[k] = v
	}
	res := r.db.Model(&models.Payment{}).
		Where("id = ? AND order_id IS NULL", paymentID).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
