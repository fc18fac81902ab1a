package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/kelvinguchu/galacticelectricals/internal/middleware"
	"github.com/kelvinguchu/galacticelectricals/internal/models"
	"github.com/kelvinguchu/galacticelectricals/internal/service"
	"github.com/kelvinguchu/galacticelectricals/pkg/daraja"

	"github.com/gin-gonic/gin"
)

type CheckoutHandler struct {
	checkout  *service.CheckoutService
	reconcile *service.ReconcileService
}

func NewCheckoutHandler(checkout *service.CheckoutService, reconcile *service.ReconcileService) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout, reconcile: reconcile}
}

type CheckoutRequest struct {
	Email           string             `json:"email" binding:"required,email"`
	Phone           string             `json:"phone" binding:"required"`
	ShippingAddress models.Address     `json:"shipping_address"`
	Items           []service.CartLine `json:"items" binding:"required,min=1,dive"`
	Notes           string             `json:"notes"`
}

// Initiate starts an STK push checkout. Works for guests and authenticated
// customers alike; a bearer token only attaches the customer to the eventual
// order.
func (h *CheckoutHandler) Initiate(c *gin.Context) {
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var customerID *uint
	if id := middleware.GetUserID(c); id != 0 {
		customerID = &id
	}

	checkoutRequestID, err := h.checkout.InitiateCheckout(service.CheckoutInput{
		CustomerID:      customerID,
		CustomerEmail:   req.Email,
		CustomerPhone:   req.Phone,
		ShippingAddress: req.ShippingAddress,
		Items:           req.Items,
		Notes:           req.Notes,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyCart),
			errors.Is(err, daraja.ErrInvalidPhone):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrProductUnavailable),
			errors.Is(err, service.ErrOutOfStock),
			errors.Is(err, service.ErrInsufficientStock):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrGateway):
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		default:
			log.Printf("[checkout] initiate failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "checkout failed"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"checkout_request_id": checkoutRequestID,
		"message":             "Payment prompt sent. Enter your M-Pesa PIN to complete the order.",
	})
}

// Status is the polling endpoint the storefront hits while the customer
// completes the STK prompt.
func (h *CheckoutHandler) Status(c *gin.Context) {
	checkoutRequestID := c.Param("checkoutRequestId")
	if checkoutRequestID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing checkout request id"})
		return
	}
	c.JSON(http.StatusOK, h.reconcile.CheckoutStatus(checkoutRequestID))
}
