package service

import (
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/kelvinguchu/galacticelectricals/config"
	"github.com/kelvinguchu/galacticelectricals/internal/domain"
	"github.com/kelvinguchu/galacticelectricals/internal/models"
	"github.com/kelvinguchu/galacticelectricals/pkg/daraja"

	"gorm.io/gorm"
)

// ReconcileService is the payment confirmation state machine. Two
// independent triggers converge on it: the gateway's STK callback webhook
// (primary) and the client's polling of the status endpoint (fallback, for
// when the webhook is delayed or lost). Both funnel into the same
// materializeSuccess procedure, which creates the order at most once.
type ReconcileService struct {
	payments  PaymentStore
	orders    OrderStore
	users     UserStore
	ledger    WebhookLedger
	gateway   Gateway
	inventory *InventoryService
	mailer    OrderMailer
	// grace is how long a payment may sit pending before CheckoutStatus
	// actively queries the gateway, giving the webhook a head start.
	grace time.Duration
	now   func() time.Time
}

func NewReconcileService(
	payments PaymentStore,
	orders OrderStore,
	users UserStore,
	ledger WebhookLedger,
	gateway Gateway,
	inventory *InventoryService,
	mailer OrderMailer,
	checkoutCfg *config.CheckoutConfig,
) *ReconcileService {
	return &ReconcileService{
		payments:  payments,
		orders:    orders,
		users:     users,
		ledger:    ledger,
		gateway:   gateway,
		inventory: inventory,
		mailer:    mailer,
		grace:     checkoutCfg.StatusQueryGrace,
		now:       time.Now,
	}
}

// successMeta is the gateway metadata recorded on the payment (and echoed
// onto the order) at the moment of confirmation, whichever path confirmed
// it.
type successMeta struct {
	ResultCode      int
	ResultDesc      string
	ReceiptNumber   string
	TransactionDate string
	Phone           string
	CallbackPayload []byte
}

// HandleSTKCallback processes one STK result webhook delivery. Callers
// always acknowledge the gateway neutrally; errors here are logged, never
// surfaced.
func (s *ReconcileService) HandleSTKCallback(raw []byte) error {
	isDuplicate, eventHash, err := s.ledger.MarkSeen(domain.WebhookSTKCallback, raw)
	if err != nil {
		return err
	}
	if isDuplicate {
		log.Printf("[STK Callback] duplicate delivery %s, ignoring", eventHash)
		return nil
	}

	callback := daraja.ParseSTKCallback(raw)
	if callback == nil || callback.CheckoutRequestID == "" {
		log.Printf("[STK Callback] no checkoutRequestID in payload, ignoring")
		return nil
	}

	payment, err := s.payments.GetByCheckoutRequestID(callback.CheckoutRequestID)
	if err != nil {
		// Stale or unknown transaction; acknowledged upstream, not an error.
		log.Printf("[STK Callback] no payment for checkoutRequestID=%s", callback.CheckoutRequestID)
		return nil
	}

	meta := successMeta{
		ResultCode:      callback.ResultCode,
		ResultDesc:      callback.ResultDesc,
		ReceiptNumber:   callback.MpesaReceiptNumber,
		TransactionDate: callback.TransactionDate,
		Phone:           callback.PhoneNumber,
		CallbackPayload: raw,
	}
	if callback.ResultCode == 0 {
		return s.materializeSuccess(payment, meta)
	}

	marked, err := s.payments.MarkFailed(payment.ID, paymentMetaFields(meta))
	if err != nil {
		return err
	}
	if marked {
		log.Printf("[STK Callback] payment %d failed: %d %s", payment.ID, callback.ResultCode, callback.ResultDesc)
	}
	return nil
}

// CheckoutStatusResult is what the polling client sees.
type CheckoutStatusResult struct {
	Status      string  `json:"status"` // pending | paid | failed
	OrderNumber string  `json:"order_number,omitempty"`
	Total       float64 `json:"total,omitempty"`
	Error       string  `json:"error,omitempty"`
}

// CheckoutStatus resolves the current state of a checkout for the polling
// client, actively querying the gateway once the webhook grace period has
// passed. This is the safety net for lost webhooks.
func (s *ReconcileService) CheckoutStatus(checkoutRequestID string) CheckoutStatusResult {
	payment, err := s.payments.GetByCheckoutRequestID(checkoutRequestID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("[CheckoutStatus] lookup %s: %v", checkoutRequestID, err)
		}
		return CheckoutStatusResult{Status: "pending"}
	}

	switch payment.Status {
	case domain.PaymentSuccess:
		return s.resolveSuccess(payment)
	case domain.PaymentFailed, domain.PaymentRejected:
		reason := payment.ResultDesc
		if reason == "" {
			reason = "Payment was not completed."
		}
		return CheckoutStatusResult{Status: "failed", Error: reason}
	}

	if s.now().Sub(payment.CreatedAt) <= s.grace {
		return CheckoutStatusResult{Status: "pending"}
	}

	query, err := s.gateway.QuerySTKStatus(checkoutRequestID)
	if err != nil {
		// The webhook may still arrive; keep the client polling.
		log.Printf("[CheckoutStatus] STK query fallback for %s: %v", checkoutRequestID, err)
		return CheckoutStatusResult{Status: "pending"}
	}

	raw, _ := json.Marshal(query.ResponsePayload)
	meta := successMeta{
		ResultCode:      query.ResultCode,
		ResultDesc:      query.ResultDesc,
		CallbackPayload: raw,
	}

	switch {
	case query.ResultCode == 0:
		if err := s.materializeSuccess(payment, meta); err != nil {
			log.Printf("[CheckoutStatus] materialize via polling for %s: %v", checkoutRequestID, err)
			return CheckoutStatusResult{Status: "pending"}
		}
		refreshed, err := s.payments.GetByCheckoutRequestID(checkoutRequestID)
		if err == nil {
			return s.resolveSuccess(refreshed)
		}
		return CheckoutStatusResult{Status: "paid", Total: payment.Amount}
	case query.ResultCode > 0:
		if _, err := s.payments.MarkFailed(payment.ID, paymentMetaFields(meta)); err != nil {
			log.Printf("[CheckoutStatus] mark failed for %s: %v", checkoutRequestID, err)
		}
		reason := query.ResultDesc
		if reason == "" {
			reason = "Payment was not completed."
		}
		return CheckoutStatusResult{Status: "failed", Error: reason}
	default:
		// daraja.ResultPending: the gateway has not settled yet.
		return CheckoutStatusResult{Status: "pending"}
	}
}

func (s *ReconcileService) resolveSuccess(payment *models.Payment) CheckoutStatusResult {
	if payment.OrderID != nil {
		if order, err := s.orders.GetByID(*payment.OrderID); err == nil {
			return CheckoutStatusResult{Status: "paid", OrderNumber: order.OrderNumber, Total: order.Total}
		}
	}
	if ctx := decodeContext(payment); ctx != nil {
		return CheckoutStatusResult{Status: "paid", OrderNumber: payment.Reference, Total: ctx.Pricing.Total}
	}
	return CheckoutStatusResult{Status: "paid", OrderNumber: payment.Reference, Total: payment.Amount}
}

// materializeSuccess is the shared success path: it creates the order,
// transitions the payment, adjusts inventory, and kicks off the best-effort
// side effects. The order is created first and the AttachOrder conditional
// update is the claim, so a transient order-create failure leaves the
// payment pending and the next delivery or poll retries the whole
// materialization. Re-invoking it for an already-confirmed payment is a
// no-op.
func (s *ReconcileService) materializeSuccess(payment *models.Payment, meta successMeta) error {
	if payment.Status == domain.PaymentSuccess || payment.OrderID != nil {
		return nil
	}

	ctx := decodeContext(payment)
	if ctx == nil {
		// Legacy payment without a snapshot: record the success, skip the
		// order.
		claimed, err := s.payments.ClaimSuccess(payment.ID, paymentMetaFields(meta))
		if err != nil {
			return err
		}
		if claimed {
			log.Printf("[Reconcile] payment %d confirmed without checkout context", payment.ID)
		}
		return nil
	}

	now := s.now()
	order := &models.Order{
		OrderNumber:       models.GenerateOrderNumber(),
		CustomerID:        ctx.CustomerID,
		CustomerEmail:     ctx.CustomerEmail,
		CustomerPhone:     ctx.CustomerPhone,
		Currency:          domain.Currency,
		PaymentMethod:     domain.ProviderMpesa,
		PaymentStatus:     domain.OrderPaymentPaid,
		FulfillmentStatus: domain.FulfillmentPending,
		ShippingAddress:   ctx.ShippingAddress,
		Notes:             ctx.Notes,
		Shipping:          ctx.Pricing.Shipping,
		Tax:               ctx.Pricing.Tax,
		Discount:          ctx.Pricing.Discount,
		Mpesa: models.MpesaMetadata{
			MerchantRequestID: payment.MerchantRequestID,
			CheckoutRequestID: payment.CheckoutRequestID,
			ResultCode:        meta.ResultCode,
			ResultDesc:        meta.ResultDesc,
			ReceiptNumber:     meta.ReceiptNumber,
			TransactionDate:   meta.TransactionDate,
		},
		PlacedAt: now,
		PaidAt:   &now,
	}
	for _, item := range ctx.Items {
		order.Items = append(order.Items, models.OrderItem{
			ProductID: item.ProductID,
			Title:     item.Title,
			SKU:       item.SKU,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			LineTotal: item.LineTotal,
		})
	}
	order.Normalize()

	if err := s.orders.Create(order); err != nil {
		// Payment stays pending; the retry rebuilds the order from the
		// snapshot.
		return err
	}

	attached, err := s.payments.AttachOrder(payment.ID, order, paymentMetaFields(meta))
	if err != nil {
		return err
	}
	if !attached {
		// A concurrent confirmation won the attach; ours is redundant.
		log.Printf("[Reconcile] payment %d already linked to an order, discarding redundant %s", payment.ID, order.OrderNumber)
		if err := s.orders.Delete(order.ID); err != nil {
			log.Printf("[Reconcile] discard redundant order %s: %v", order.OrderNumber, err)
		}
		return nil
	}

	log.Printf("[Reconcile] order %s created for payment %d (receipt %s)", order.OrderNumber, payment.ID, meta.ReceiptNumber)

	if err := s.inventory.OnOrderPaid(order); err != nil {
		log.Printf("[Reconcile] inventory adjustment for %s: %v", order.OrderNumber, err)
	}

	s.syncCustomerProfile(ctx)
	s.sendOrderEmails(*ctx, order.OrderNumber)
	return nil
}

// syncCustomerProfile copies the checkout snapshot back onto an
// authenticated customer's profile. Best-effort: a failure never affects the
// order.
func (s *ReconcileService) syncCustomerProfile(ctx *models.CheckoutContext) {
	if ctx.CustomerID == nil {
		return
	}
	fields := map[string]any{
		"first_name":    ctx.ShippingAddress.FirstName,
		"last_name":     ctx.ShippingAddress.LastName,
		"phone":         ctx.CustomerPhone,
		"address_line1": ctx.ShippingAddress.AddressLine1,
		"address_line2": ctx.ShippingAddress.AddressLine2,
		"city":          ctx.ShippingAddress.City,
		"county":        ctx.ShippingAddress.County,
		"postal_code":   ctx.ShippingAddress.PostalCode,
		"country":       ctx.ShippingAddress.Country,
	}
	if err := s.users.UpdateProfile(*ctx.CustomerID, fields); err != nil {
		log.Printf("[Reconcile] profile sync for customer %d: %v", *ctx.CustomerID, err)
	}
}

// sendOrderEmails fires the confirmation and admin notification without
// waiting: a slow mail provider must never delay order confirmation.
func (s *ReconcileService) sendOrderEmails(ctx models.CheckoutContext, orderNumber string) {
	if s.mailer == nil {
		return
	}
	go func() {
		if err := s.mailer.SendOrderConfirmation(ctx, orderNumber); err != nil {
			log.Printf("[Reconcile] confirmation email for %s: %v", orderNumber, err)
		}
		if err := s.mailer.SendAdminOrderNotification(ctx, orderNumber); err != nil {
			log.Printf("[Reconcile] admin email for %s: %v", orderNumber, err)
		}
	}()
}

func decodeContext(payment *models.Payment) *models.CheckoutContext {
	if len(payment.CheckoutContext) == 0 {
		return nil
	}
	var ctx models.CheckoutContext
	if err := json.Unmarshal(payment.CheckoutContext, &ctx); err != nil {
		log.Printf("[Reconcile] payment %d has malformed checkout context: %v", payment.ID, err)
		return nil
	}
	if len(ctx.Items) == 0 {
		return nil
	}
	return &ctx
}

func paymentMetaFields(meta successMeta) map[string]any {
	fields := map[string]any{
		"result_code": meta.ResultCode,
		"result_desc": meta.ResultDesc,
	}
	if meta.ReceiptNumber != "" {
		fields["mpesa_receipt_number"] = meta.ReceiptNumber
	}
	if meta.Phone != "" {
		fields["phone"] = meta.Phone
	}
	if len(meta.CallbackPayload) > 0 {
		fields["callback_payload"] = meta.CallbackPayload
	}
	return fields
}
