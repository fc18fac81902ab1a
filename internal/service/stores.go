package service

import (
	"time"

	"github.com/kelvinguchu/galacticelectricals/internal/models"
	"github.com/kelvinguchu/galacticelectricals/pkg/daraja"
)

// The services consume narrow store interfaces so the orchestration and
// reconciliation logic can be exercised without a database. The GORM
// repositories in internal/repository are the production implementations.

type ProductStore interface {
	GetByID(id uint) (*models.Product, error)
	DecrementStock(id uint, quantity int) error
}

type PaymentStore interface {
	Create(p *models.Payment) error
	GetByCheckoutRequestID(checkoutRequestID string) (*models.Payment, error)
	GetByReceiptNumber(receipt string) (*models.Payment, error)
	GetByOriginatorConversationID(id string) (*models.Payment, error)
	// ClaimSuccess transitions a payment to success only while it is still
	// initiated or pending; exactly one concurrent caller wins. Used for
	// payments with no checkout snapshot, where no order will be attached.
	ClaimSuccess(id uint, fields map[string]any) (bool, error)
	// MarkFailed transitions a payment to failed only while non-terminal.
	MarkFailed(id uint, fields map[string]any) (bool, error)
	// AttachOrder links an order and marks the payment success only while
	// order_id is still empty. This is the materialization claim: exactly
	// one of the concurrent webhook and polling confirmations attaches.
	AttachOrder(paymentID uint, order *models.Order, fields map[string]any) (bool, error)
	UpdateFields(id uint, fields map[string]any) error
}

type OrderStore interface {
	Create(o *models.Order) error
	// Delete discards an order whose payment attach lost the race.
	Delete(id uint) error
	GetByID(id uint) (*models.Order, error)
	GetByOrderNumber(orderNumber string) (*models.Order, error)
	MarkPaid(id uint, meta models.MpesaMetadata, paidAt time.Time) error
	MarkPaymentFailed(id uint, meta models.MpesaMetadata) error
	ClaimInventoryAdjustment(id uint) (bool, error)
}

type UserStore interface {
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	Create(u *models.User) error
	UpdateProfile(id uint, fields map[string]any) error
}

// WebhookLedger is the dedup ledger every webhook handler consults before
// doing anything else.
type WebhookLedger interface {
	MarkSeen(channel string, payload []byte) (isDuplicate bool, eventHash string, err error)
}

// Gateway is the outbound M-Pesa surface the orchestrator and reconciler
// need; *daraja.Client implements it.
type Gateway interface {
	InitiateSTKPush(in daraja.STKPushInput) (*daraja.STKPushResult, error)
	QuerySTKStatus(checkoutRequestID string) (*daraja.STKQueryResult, error)
	RegisterC2BURLs(validationURL, confirmationURL string) (map[string]any, error)
	QueryTransactionStatus(in daraja.TransactionStatusInput) (*daraja.TransactionStatusResult, error)
}

// OrderMailer sends the post-payment emails. Calls are fire-and-forget from
// the success path; implementations must tolerate being invoked from a
// goroutine.
type OrderMailer interface {
	SendOrderConfirmation(ctx models.CheckoutContext, orderNumber string) error
	SendAdminOrderNotification(ctx models.CheckoutContext, orderNumber string) error
}
