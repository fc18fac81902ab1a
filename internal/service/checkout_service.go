package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"

	"github.com/kelvinguchu/galacticelectricals/config"
	"github.com/kelvinguchu/galacticelectricals/internal/domain"
	"github.com/kelvinguchu/galacticelectricals/internal/models"
	"github.com/kelvinguchu/galacticelectricals/pkg/daraja"
	"github.com/kelvinguchu/galacticelectricals/pkg/money"

	"github.com/google/uuid"
)

var (
	ErrProductUnavailable = errors.New("product is not available for sale")
	ErrOutOfStock         = errors.New("product is out of stock")
	ErrInsufficientStock  = errors.New("not enough stock")
	ErrEmptyCart          = errors.New("cart is empty")
	// ErrGateway wraps any upstream M-Pesa failure during initiation. It is
	// logged with full context and surfaced to the client as a generic
	// message; no payment record exists when it is returned.
	ErrGateway = errors.New("unable to initiate payment, please try again shortly")
)

// CartLine is the ephemeral client-supplied checkout input.
type CartLine struct {
	ProductID uint    `json:"product_id"`
	Quantity  float64 `json:"quantity"`
}

type CheckoutInput struct {
	CustomerID      *uint
	CustomerEmail   string
	CustomerPhone   string
	ShippingAddress models.Address
	Items           []CartLine
	Notes           string
}

type CheckoutService struct {
	products ProductStore
	payments PaymentStore
	gateway  Gateway
	mpesaCfg *config.MpesaConfig
}

func NewCheckoutService(products ProductStore, payments PaymentStore, gateway Gateway, mpesaCfg *config.MpesaConfig) *CheckoutService {
	return &CheckoutService{products: products, payments: payments, gateway: gateway, mpesaCfg: mpesaCfg}
}

// BuildCallbackURL joins the configured public base URL with a webhook path,
// appending the shared-secret token when one is configured.
func BuildCallbackURL(baseURL, path, token string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	u = u.JoinPath(path)
	if token != "" {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// validateAndBuildItems prices the cart against the live catalog and builds
// the immutable line-item snapshots. Any later catalog change is invisible
// to the snapshot.
func (s *CheckoutService) validateAndBuildItems(lines []CartLine) ([]models.ContextItem, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}
	items := make([]models.ContextItem, 0, len(lines))
	for _, line := range lines {
		qty := money.OrderQuantity(line.Quantity)
		product, err := s.products.GetByID(line.ProductID)
		if err != nil {
			return nil, fmt.Errorf("%w: product %d", ErrProductUnavailable, line.ProductID)
		}
		if !product.Published {
			return nil, fmt.Errorf("%w: %s", ErrProductUnavailable, product.Title)
		}
		if product.StockStatus == domain.StockOutOfStock {
			return nil, fmt.Errorf("%w: %s", ErrOutOfStock, product.Title)
		}
		if !product.InStockFor(qty) {
			return nil, fmt.Errorf("%w for %s", ErrInsufficientStock, product.Title)
		}
		unitPrice, err := money.UnitPrice(product.SalePrice, product.RegularPrice)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", err, product.Title)
		}
		items = append(items, models.ContextItem{
			ProductID: product.ID,
			Title:     product.Title,
			SKU:       product.SKU,
			Quantity:  qty,
			UnitPrice: unitPrice,
			LineTotal: money.LineTotal(unitPrice, qty),
		})
	}
	return items, nil
}

func buildPricing(items []models.ContextItem) models.PricingSummary {
	var subtotal float64
	for _, item := range items {
		subtotal += item.LineTotal
	}
	subtotal = money.Round(subtotal)
	// Shipping, tax and discount are extension points; the storefront ships
	// free within Kenya today.
	return models.PricingSummary{
		Subtotal: subtotal,
		Total:    money.Total(subtotal, 0, 0, 0),
		Currency: domain.Currency,
	}
}

// InitiateCheckout validates the cart, snapshots the checkout context,
// pushes an STK prompt to the customer's phone and records a pending
// payment. The order itself is created only when the payment is confirmed.
// A gateway failure aborts before anything is persisted.
func (s *CheckoutService) InitiateCheckout(input CheckoutInput) (string, error) {
	items, err := s.validateAndBuildItems(input.Items)
	if err != nil {
		return "", err
	}
	pricing := buildPricing(items)

	address := input.ShippingAddress
	if address.Country == "" {
		address.Country = "Kenya"
	}
	address.Phone = input.CustomerPhone
	address.Email = input.CustomerEmail

	checkoutCtx := models.CheckoutContext{
		CustomerID:      input.CustomerID,
		CustomerEmail:   input.CustomerEmail,
		CustomerPhone:   input.CustomerPhone,
		ShippingAddress: address,
		Items:           items,
		Pricing:         pricing,
		Notes:           input.Notes,
	}

	callbackURL, err := BuildCallbackURL(s.mpesaCfg.CallbackBaseURL, "/api/mpesa/callback/stk", s.mpesaCfg.CallbackToken)
	if err != nil {
		log.Printf("[Checkout] bad callback base URL %q: %v", s.mpesaCfg.CallbackBaseURL, err)
		return "", ErrGateway
	}

	stk, err := s.gateway.InitiateSTKPush(daraja.STKPushInput{
		Amount:           pricing.Total,
		Phone:            input.CustomerPhone,
		CallbackURL:      callbackURL,
		AccountReference: "GSE-CHECKOUT",
		TransactionDesc:  "Galactic Solar Electricals checkout",
	})
	if err != nil {
		if errors.Is(err, daraja.ErrInvalidPhone) {
			return "", err
		}
		log.Printf("[Checkout] STK push failed: %v", err)
		return "", ErrGateway
	}

	ctxJSON, _ := json.Marshal(checkoutCtx)
	reqJSON, _ := json.Marshal(map[string]any{
		"request":  stk.RequestPayload,
		"response": stk.ResponsePayload,
	})

	payment := &models.Payment{
		Provider:          domain.ProviderMpesa,
		Channel:           domain.ChannelSTKPush,
		Status:            domain.PaymentPending,
		Amount:            pricing.Total,
		Currency:          domain.Currency,
		Phone:             input.CustomerPhone,
		CheckoutRequestID: stk.CheckoutRequestID,
		MerchantRequestID: stk.MerchantRequestID,
		IdempotencyKey:    uuid.NewString(),
		ResultCode:        stk.ResponseCode,
		ResultDesc:        stk.ResponseDesc,
		CheckoutContext:   ctxJSON,
		RequestPayload:    reqJSON,
	}
	if err := s.payments.Create(payment); err != nil {
		log.Printf("[Checkout] persist payment for %s: %v", stk.CheckoutRequestID, err)
		return "", ErrGateway
	}

	log.Printf("[Checkout] payment %d pending, checkoutRequestID=%s total=%.2f", payment.ID, stk.CheckoutRequestID, pricing.Total)
	return stk.CheckoutRequestID, nil
}
