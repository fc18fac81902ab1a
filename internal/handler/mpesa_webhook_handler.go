package handler

import (
	"crypto/subtle"
	"io"
	"log"
	"net/http"

	"github.com/kelvinguchu/galacticelectricals/config"
	"github.com/kelvinguchu/galacticelectricals/internal/service"

	"github.com/gin-gonic/gin"
)

// MpesaWebhookHandler receives the callbacks Daraja POSTs back to us. Every
// endpoint answers HTTP 200 with a gateway-shaped result body: neutral
// acceptance no matter what happened internally (the dedup ledger protects
// us from retries we did process), or ResultCode 1 when the callback token
// does not match. A non-200 makes the gateway retry or blacklist the URL.
type MpesaWebhookHandler struct {
	reconcile *service.ReconcileService
	cfg       *config.MpesaConfig
}

func NewMpesaWebhookHandler(reconcile *service.ReconcileService, cfg *config.MpesaConfig) *MpesaWebhookHandler {
	return &MpesaWebhookHandler{reconcile: reconcile, cfg: cfg}
}

func neutralAck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ResultCode": 0, "ResultDesc": "Accepted"})
}

// rejectAck refuses a callback in the gateway's own result shape. Still HTTP
// 200: a non-200 makes Daraja retry or blacklist the URL.
func rejectAck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ResultCode": 1, "ResultDesc": "Unauthorized callback"})
}

// authorized checks the shared-secret token embedded in the callback URL at
// registration time. With no token configured all callers pass, which is the
// sandbox default.
func (h *MpesaWebhookHandler) authorized(c *gin.Context) bool {
	if h.cfg.CallbackToken == "" {
		return true
	}
	supplied := c.Query("token")
	return subtle.ConstantTimeCompare([]byte(supplied), []byte(h.cfg.CallbackToken)) == 1
}

func (h *MpesaWebhookHandler) readBody(c *gin.Context) []byte {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		log.Printf("[MPESA webhook] read body: %v", err)
		return nil
	}
	return body
}

// STKCallback handles the push result for an STK checkout.
func (h *MpesaWebhookHandler) STKCallback(c *gin.Context) {
	if !h.authorized(c) {
		log.Printf("[MPESA webhook] STK callback with bad token from %s", c.ClientIP())
		rejectAck(c)
		return
	}
	body := h.readBody(c)
	if len(body) > 0 {
		if err := h.reconcile.HandleSTKCallback(body); err != nil {
			log.Printf("[MPESA webhook] STK callback: %v", err)
		}
	}
	neutralAck(c)
}

// C2BValidate answers Daraja's pre-payment validation for direct pay-bill
// payments. This is the only webhook whose verdict reaches the customer.
func (h *MpesaWebhookHandler) C2BValidate(c *gin.Context) {
	if !h.authorized(c) {
		log.Printf("[MPESA webhook] C2B validate with bad token from %s", c.ClientIP())
		rejectAck(c)
		return
	}
	body := h.readBody(c)
	if body == nil {
		neutralAck(c)
		return
	}
	c.JSON(http.StatusOK, h.reconcile.ValidateC2B(body))
}

// C2BConfirm records a completed pay-bill payment.
func (h *MpesaWebhookHandler) C2BConfirm(c *gin.Context) {
	if !h.authorized(c) {
		log.Printf("[MPESA webhook] C2B confirm with bad token from %s", c.ClientIP())
		rejectAck(c)
		return
	}
	body := h.readBody(c)
	if len(body) > 0 {
		if err := h.reconcile.ConfirmC2B(body); err != nil {
			log.Printf("[MPESA webhook] C2B confirm: %v", err)
		}
	}
	neutralAck(c)
}

// TransactionStatusResult receives the asynchronous answer to a
// transaction-status query.
func (h *MpesaWebhookHandler) TransactionStatusResult(c *gin.Context) {
	if !h.authorized(c) {
		log.Printf("[MPESA webhook] txn status result with bad token from %s", c.ClientIP())
		rejectAck(c)
		return
	}
	body := h.readBody(c)
	if len(body) > 0 {
		if err := h.reconcile.HandleTransactionStatusResult(body); err != nil {
			log.Printf("[MPESA webhook] txn status result: %v", err)
		}
	}
	neutralAck(c)
}

// TransactionStatusTimeout receives the timeout notification for a
// transaction-status query.
func (h *MpesaWebhookHandler) TransactionStatusTimeout(c *gin.Context) {
	if !h.authorized(c) {
		log.Printf("[MPESA webhook] txn status timeout with bad token from %s", c.ClientIP())
		rejectAck(c)
		return
	}
	body := h.readBody(c)
	if len(body) > 0 {
		if err := h.reconcile.HandleTransactionStatusTimeout(body); err != nil {
			log.Printf("[MPESA webhook] txn status timeout: %v", err)
		}
	}
	neutralAck(c)
}
