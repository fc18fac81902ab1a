package service

import (
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/kelvinguchu/galacticelectricals/internal/domain"
	"github.com/kelvinguchu/galacticelectricals/internal/models"
	"github.com/kelvinguchu/galacticelectricals/pkg/daraja"

	"gorm.io/datatypes"
)

// Daraja C2B validation rejection codes.
const (
	c2bAccepted       = "0"
	c2bInvalidAccount = "C2B00012"
	c2bInvalidAmount  = "C2B00013"
	c2bOtherError     = "C2B00016"
)

// C2BDecision is the validation verdict returned to the gateway.
type C2BDecision struct {
	ResultCode string `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

func c2bAccept() C2BDecision {
	return C2BDecision{ResultCode: c2bAccepted, ResultDesc: "Accepted"}
}

func c2bReject(code string) C2BDecision {
	return C2BDecision{ResultCode: code, ResultDesc: "Rejected"}
}

// ValidateC2B decides whether a direct pay-bill payment may proceed. The
// account reference must name an existing unpaid order and the amount must
// cover its total. Validation is advisory: confirmation still re-checks
// everything, since validation can be disabled shortcode-side.
func (s *ReconcileService) ValidateC2B(raw []byte) C2BDecision {
	if _, _, err := s.ledger.MarkSeen(domain.WebhookC2BValidate, raw); err != nil {
		log.Printf("[C2B Validate] ledger: %v", err)
	}

	payload := daraja.ParseC2BPayload(raw)
	orderNumber := strings.TrimSpace(payload.BillRefNumber)
	if orderNumber == "" {
		return c2bReject(c2bInvalidAccount)
	}

	order, err := s.orders.GetByOrderNumber(orderNumber)
	if err != nil {
		log.Printf("[C2B Validate] unknown account reference %q", orderNumber)
		return c2bReject(c2bInvalidAccount)
	}
	if order.PaymentStatus == domain.OrderPaymentPaid {
		log.Printf("[C2B Validate] order %s already paid", orderNumber)
		return c2bReject(c2bOtherError)
	}
	if payload.Amount < order.Total {
		log.Printf("[C2B Validate] order %s underpaid: got %.2f, need %.2f", orderNumber, payload.Amount, order.Total)
		return c2bReject(c2bInvalidAmount)
	}
	return c2bAccept()
}

// ConfirmC2B records a completed pay-bill payment against its order. The
// confirmation is authoritative: money has moved, so the payment is recorded
// even when the order cannot be resolved. Idempotent on both the delivery
// (ledger) and the receipt number (payment lookup).
func (s *ReconcileService) ConfirmC2B(raw []byte) error {
	isDuplicate, eventHash, err := s.ledger.MarkSeen(domain.WebhookC2BConfirm, raw)
	if err != nil {
		return err
	}
	if isDuplicate {
		log.Printf("[C2B Confirm] duplicate delivery %s, ignoring", eventHash)
		return nil
	}

	payload := daraja.ParseC2BPayload(raw)
	if payload.TransID == "" {
		log.Printf("[C2B Confirm] payload without TransID, ignoring")
		return nil
	}
	if existing, err := s.payments.GetByReceiptNumber(payload.TransID); err == nil && existing != nil {
		log.Printf("[C2B Confirm] receipt %s already recorded as payment %d", payload.TransID, existing.ID)
		return nil
	}

	payment := &models.Payment{
		Provider:           domain.ProviderMpesa,
		Channel:            domain.ChannelC2B,
		Status:             domain.PaymentSuccess,
		Amount:             payload.Amount,
		Currency:           domain.Currency,
		Phone:              payload.MSISDN,
		Reference:          strings.TrimSpace(payload.BillRefNumber),
		IdempotencyKey:     uuid.NewString(),
		MpesaReceiptNumber: payload.TransID,
		CallbackPayload:    datatypes.JSON(raw),
	}

	orderNumber := strings.TrimSpace(payload.BillRefNumber)
	order, err := s.orders.GetByOrderNumber(orderNumber)
	if err != nil {
		log.Printf("[C2B Confirm] receipt %s references unknown order %q, recording unmatched payment", payload.TransID, orderNumber)
		return s.payments.Create(payment)
	}

	payment.OrderID = &order.ID
	if err := s.payments.Create(payment); err != nil {
		return err
	}

	if order.PaymentStatus == domain.OrderPaymentPaid {
		log.Printf("[C2B Confirm] order %s already paid, receipt %s recorded as extra payment", orderNumber, payload.TransID)
		return nil
	}

	meta := order.Mpesa
	meta.ReceiptNumber = payload.TransID
	meta.TransactionDate = payload.TransTime
	meta.ResultCode = 0
	meta.ResultDesc = "C2B payment received"
	if err := s.orders.MarkPaid(order.ID, meta, s.now()); err != nil {
		return err
	}
	order.PaymentStatus = domain.OrderPaymentPaid
	now := s.now()
	order.PaidAt = &now

	log.Printf("[C2B Confirm] order %s paid via receipt %s", orderNumber, payload.TransID)

	if err := s.inventory.OnOrderPaid(order); err != nil {
		log.Printf("[C2B Confirm] inventory adjustment for %s: %v", orderNumber, err)
	}
	s.sendOrderEmails(contextFromOrder(order), order.OrderNumber)
	return nil
}

// contextFromOrder rebuilds enough of a checkout snapshot from a stored order
// for the notification emails. Used on paths where the original payment
// snapshot is unavailable.
func contextFromOrder(order *models.Order) models.CheckoutContext {
	ctx := models.CheckoutContext{
		CustomerID:      order.CustomerID,
		CustomerEmail:   order.CustomerEmail,
		CustomerPhone:   order.CustomerPhone,
		ShippingAddress: order.ShippingAddress,
		Notes:           order.Notes,
		Pricing: models.PricingSummary{
			Subtotal: order.Subtotal,
			Shipping: order.Shipping,
			Tax:      order.Tax,
			Discount: order.Discount,
			Total:    order.Total,
			Currency: order.Currency,
		},
	}
	for _, item := range order.Items {
		ctx.Items = append(ctx.Items, models.ContextItem{
			ProductID: item.ProductID,
			Title:     item.Title,
			SKU:       item.SKU,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			LineTotal: item.LineTotal,
		})
	}
	return ctx
}
