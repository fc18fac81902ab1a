package handler

import (
	"crypto/subtle"
	"errors"
	"log"
	"net/http"

	"github.com/kelvinguchu/galacticelectricals/config"
	"github.com/kelvinguchu/galacticelectricals/internal/service"

	"github.com/gin-gonic/gin"
)

// MpesaAdminHandler covers the operator-facing gateway endpoints: C2B URL
// registration and on-demand transaction-status reconciliation. Both are
// guarded by dedicated header tokens rather than user accounts so they can
// be driven from deploy scripts and cron.
type MpesaAdminHandler struct {
	reconcile *service.ReconcileService
	gateway   service.Gateway
	cfg       *config.MpesaConfig
}

func NewMpesaAdminHandler(reconcile *service.ReconcileService, gateway service.Gateway, cfg *config.MpesaConfig) *MpesaAdminHandler {
	return &MpesaAdminHandler{reconcile: reconcile, gateway: gateway, cfg: cfg}
}

func tokenMatch(supplied, expected string) bool {
	return expected != "" && subtle.ConstantTimeCompare([]byte(supplied), []byte(expected)) == 1
}

// RegisterC2B points the shortcode's validation and confirmation URLs at
// this deployment. Run once per environment (Daraja rejects re-registration
// of an already registered shortcode in production).
func (h *MpesaAdminHandler) RegisterC2B(c *gin.Context) {
	if !tokenMatch(c.GetHeader("x-mpesa-register-token"), h.cfg.RegisterToken) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	validationURL, err := service.BuildCallbackURL(h.cfg.CallbackBaseURL, "/api/mpesa/c2b/validate", h.cfg.CallbackToken)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "bad callback base URL"})
		return
	}
	confirmationURL, err := service.BuildCallbackURL(h.cfg.CallbackBaseURL, "/api/mpesa/c2b/confirm", h.cfg.CallbackToken)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "bad callback base URL"})
		return
	}

	result, err := h.gateway.RegisterC2BURLs(validationURL, confirmationURL)
	if err != nil {
		log.Printf("[MPESA admin] C2B registration failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "registration failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"registered": true, "response": result})
}

type TransactionStatusRequest struct {
	Receipt     string `json:"receipt"`
	OrderNumber string `json:"order_number"`
}

// QueryTransactionStatus asks Daraja to re-verify a settled transaction,
// keyed either by receipt number or by an order number whose stored receipt
// is looked up. The verdict arrives later via the result webhook; this
// endpoint only confirms the query was accepted.
func (h *MpesaAdminHandler) QueryTransactionStatus(c *gin.Context) {
	if !tokenMatch(c.GetHeader("x-mpesa-reconcile-token"), h.cfg.ReconcileToken) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req TransactionStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	receipt := req.Receipt
	if req.OrderNumber != "" {
		resolved, err := h.reconcile.ReceiptForOrder(req.OrderNumber)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
			return
		}
		if resolved != "" {
			receipt = resolved
		}
	}
	if receipt == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "provide receipt, or order_number with a known mpesa receipt number"})
		return
	}

	resultURL, err := service.BuildCallbackURL(h.cfg.CallbackBaseURL, "/api/mpesa/transaction-status/result", h.cfg.CallbackToken)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "bad callback base URL"})
		return
	}
	timeoutURL, err := service.BuildCallbackURL(h.cfg.CallbackBaseURL, "/api/mpesa/transaction-status/timeout", h.cfg.CallbackToken)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "bad callback base URL"})
		return
	}

	payment, err := h.reconcile.RequestTransactionStatus(receipt, resultURL, timeoutURL)
	if err != nil {
		if errors.Is(err, service.ErrPaymentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		log.Printf("[MPESA admin] txn status query failed: receipt=%s err=%v", receipt, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "status query failed"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"queried": true, "payment_id": payment.ID})
}
