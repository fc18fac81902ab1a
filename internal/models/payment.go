package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Payment is the pending-payment record and the central entity of the
// checkout subsystem. It carries the full checkout context as an opaque
// snapshot so the order can be materialized later without touching the live
// catalog or cart. Payments are never deleted; they are the audit trail.
type Payment struct {
	ID                uint   `gorm:"primaryKey" json:"id"`
	Provider          string `gorm:"size:20;not null;index;default:'mpesa'" json:"provider"`
	Channel           string `gorm:"size:20;not null;index;default:'stk_push'" json:"channel"` // stk_push | c2b
	Status            string `gorm:"size:20;not null;index;default:'initiated'" json:"status"`
	Amount            float64 `gorm:"not null" json:"amount"`
	Currency          string  `gorm:"size:3;not null;default:'KES'" json:"currency"`
	Phone             string  `gorm:"size:20" json:"phone"`
	// Reference becomes the order number once an order exists.
	Reference         string `gorm:"size:64;index" json:"reference"`
	// CheckoutRequestID / MerchantRequestID are assigned by the gateway at
	// initiation and are the join keys for both the webhook and polling
	// paths.
	CheckoutRequestID  string         `gorm:"size:64;uniqueIndex" json:"checkout_request_id"`
	MerchantRequestID  string         `gorm:"size:64;index" json:"merchant_request_id"`
	IdempotencyKey     string         `gorm:"size:64;uniqueIndex" json:"-"`
	ResultCode         int            `json:"result_code"`
	ResultDesc         string         `gorm:"size:255" json:"result_desc"`
	MpesaReceiptNumber string         `gorm:"size:32;index" json:"mpesa_receipt_number"`
	CheckoutContext    datatypes.JSON `json:"-"`
	RequestPayload     datatypes.JSON `json:"-"`
	CallbackPayload    datatypes.JSON `json:"-"`
	TransactionStatus  datatypes.JSON `json:"-"`
	// OrderID is populated exactly once, by the first successful
	// reconciliation; the conditional update that sets it is the at-most-one
	// order guard.
	OrderID   *uint          `gorm:"index" json:"order_id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Order *Order `gorm:"foreignKey:OrderID" json:"-"`
}

func (Payment) TableName() string { return "payments" }

// CheckoutContext is the immutable snapshot embedded in a Payment at
// initiation. The order does not exist yet, so everything needed to create
// it later lives here rather than being looked up fresh at confirmation
// time.
type CheckoutContext struct {
	CustomerID      *uint           `json:"customer_id"`
	CustomerEmail   string          `json:"customer_email"`
	CustomerPhone   string          `json:"customer_phone"`
	ShippingAddress Address         `json:"shipping_address"`
	Items           []ContextItem   `json:"items"`
	Pricing         PricingSummary  `json:"pricing"`
	Notes           string          `json:"notes"`
}

type ContextItem struct {
	ProductID uint    `json:"product_id"`
	Title     string  `json:"title"`
	SKU       string  `json:"sku,omitempty"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	LineTotal float64 `json:"line_total"`
}

type PricingSummary struct {
	Subtotal float64 `json:"subtotal"`
	Shipping float64 `json:"shipping"`
	Tax      float64 `json:"tax"`
	Discount float64 `json:"discount"`
	Total    float64 `json:"total"`
	Currency string  `json:"currency"`
}

// TransactionStatusRecord is populated only by the active transaction-status
// reconciliation path.
type TransactionStatusRecord struct {
	ConversationID           string `json:"conversation_id"`
	OriginatorConversationID string `json:"originator_conversation_id"`
	ResultCode               int    `json:"result_code"`
	ResultDesc               string `json:"result_desc"`
	RawPayload               any    `json:"raw_payload,omitempty"`
	CheckedAt                string `json:"checked_at"`
}
