package models

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/kelvinguchu/galacticelectricals/internal/domain"
	"github.com/kelvinguchu/galacticelectricals/pkg/money"

	"gorm.io/gorm"
)

// Order is created only by the payment reconciler, never at checkout
// initiation. Everything on it is a snapshot taken when the payment was
// initiated; catalog changes never reach a placed order.
type Order struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	OrderNumber       string         `gorm:"size:32;uniqueIndex;not null" json:"order_number"`
	CustomerID        *uint          `gorm:"index" json:"customer_id"`
	CustomerEmail     string         `gorm:"size:255;not null;index" json:"customer_email"`
	CustomerPhone     string         `gorm:"size:20;not null" json:"customer_phone"`
	Currency          string         `gorm:"size:3;not null;default:'KES'" json:"currency"`
	PaymentMethod     string         `gorm:"size:20;not null;default:'mpesa'" json:"payment_method"`
	PaymentStatus     string         `gorm:"size:20;not null;index;default:'pending'" json:"payment_status"`
	FulfillmentStatus string         `gorm:"size:20;not null;index;default:'pending'" json:"fulfillment_status"`
	Items             []OrderItem    `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
	Subtotal          float64        `gorm:"not null" json:"subtotal"`
	Shipping          float64        `gorm:"default:0" json:"shipping"`
	Tax               float64        `gorm:"default:0" json:"tax"`
	Discount          float64        `gorm:"default:0" json:"discount"`
	Total             float64        `gorm:"not null" json:"total"`
	ShippingAddress   Address        `gorm:"embedded;embeddedPrefix:ship_" json:"shipping_address"`
	Mpesa             MpesaMetadata  `gorm:"embedded;embeddedPrefix:mpesa_" json:"mpesa"`
	Notes             string         `gorm:"type:text" json:"notes"`
	// InventoryAdjusted is claimed with a conditional update so stock is
	// decremented exactly once per order, no matter how many times the order
	// is updated afterwards.
	InventoryAdjusted bool           `gorm:"default:false" json:"-"`
	PlacedAt          time.Time      `json:"placed_at"`
	PaidAt            *time.Time     `json:"paid_at"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-"`

	Customer *User `gorm:"foreignKey:CustomerID" json:"-"`
}

func (Order) TableName() string { return "orders" }

// OrderItem is an immutable snapshot of one cart line at checkout time.
type OrderItem struct {
	ID        uint    `gorm:"primaryKey" json:"id"`
	OrderID   uint    `gorm:"not null;index" json:"order_id"`
	ProductID uint    `gorm:"not null" json:"product_id"`
	Title     string  `gorm:"size:255;not null" json:"title"`
	SKU       string  `gorm:"size:100" json:"sku"`
	Quantity  int     `gorm:"not null" json:"quantity"`
	UnitPrice float64 `gorm:"not null" json:"unit_price"`
	LineTotal float64 `gorm:"not null" json:"line_total"`
}

func (OrderItem) TableName() string { return "order_items" }

type Address struct {
	FirstName    string `gorm:"size:100" json:"first_name"`
	LastName     string `gorm:"size:100" json:"last_name"`
	Phone        string `gorm:"size:20" json:"phone"`
	Email        string `gorm:"size:255" json:"email"`
	AddressLine1 string `gorm:"size:255" json:"address_line1"`
	AddressLine2 string `gorm:"size:255" json:"address_line2"`
	City         string `gorm:"size:100" json:"city"`
	County       string `gorm:"size:100" json:"county"`
	PostalCode   string `gorm:"size:20" json:"postal_code"`
	Country      string `gorm:"size:100" json:"country"`
}

// MpesaMetadata mirrors the gateway identifiers onto the order for support
// lookups.
type MpesaMetadata struct {
	MerchantRequestID string `gorm:"size:64;index" json:"merchant_request_id"`
	CheckoutRequestID string `gorm:"size:64;index" json:"checkout_request_id"`
	ResultCode        int    `json:"result_code"`
	ResultDesc        string `gorm:"size:255" json:"result_desc"`
	ReceiptNumber     string `gorm:"size:32;index" json:"receipt_number"`
	TransactionDate   string `gorm:"size:20" json:"transaction_date"`
}

// GenerateOrderNumber builds a human-shareable unique order number from a
// timestamp-derived prefix and a random suffix, e.g. GSE-56789012-0431.
func GenerateOrderNumber() string {
	ts := fmt.Sprintf("%d", time.Now().UnixMilli())
	if len(ts) > 8 {
		ts = ts[len(ts)-8:]
	}
	return fmt.Sprintf("GSE-%s-%04d", ts, rand.Intn(10000))
}

// Normalize recomputes quantities, line totals and the pricing summary from
// the items. Client-supplied totals are never trusted; this runs on every
// create and update so subtotal always equals the rounded sum of line totals.
func (o *Order) Normalize() {
	var subtotal float64
	for i := range o.Items {
		item := &o.Items[i]
		item.Quantity = money.OrderQuantity(float64(item.Quantity))
		if item.UnitPrice < 0 {
			item.UnitPrice = 0
		}
		item.UnitPrice = money.Round(item.UnitPrice)
		item.LineTotal = money.LineTotal(item.UnitPrice, item.Quantity)
		subtotal += item.LineTotal
	}
	o.Subtotal = money.Round(subtotal)
	if o.Shipping < 0 {
		o.Shipping = 0
	}
	if o.Tax < 0 {
		o.Tax = 0
	}
	if o.Discount < 0 {
		o.Discount = 0
	}
	o.Shipping = money.Round(o.Shipping)
	o.Tax = money.Round(o.Tax)
	o.Discount = money.Round(o.Discount)
	o.Total = money.Total(o.Subtotal, o.Shipping, o.Tax, o.Discount)
	if o.Currency == "" {
		o.Currency = domain.Currency
	}
	if o.PlacedAt.IsZero() {
		o.PlacedAt = time.Now()
	}
}

// BeforeSave keeps the pricing invariant at the storage boundary as well.
func (o *Order) BeforeSave(*gorm.DB) error {
	o.Normalize()
	if o.OrderNumber == "" {
		o.OrderNumber = GenerateOrderNumber()
	}
	return nil
}
