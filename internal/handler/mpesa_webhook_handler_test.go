package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kelvinguchu/galacticelectricals/config"
	"github.com/kelvinguchu/galacticelectricals/internal/models"
	"github.com/kelvinguchu/galacticelectricals/internal/service"
	"github.com/kelvinguchu/galacticelectricals/pkg/daraja"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gorm.io/gorm"
)

// Empty-store fakes: every lookup misses. The webhook handler contract under
// test is the transport behavior (status codes, neutral bodies, token
// gating), not the reconciliation logic, which has its own tests.

type emptyPayments struct{}

func (emptyPayments) Create(*models.Payment) error { return nil }
func (emptyPayments) GetByCheckoutRequestID(string) (*models.Payment, error) {
	return nil, gorm.ErrRecordNotFound
}
func (emptyPayments) GetByReceiptNumber(string) (*models.Payment, error) {
	return nil, gorm.ErrRecordNotFound
}
func (emptyPayments) GetByOriginatorConversationID(string) (*models.Payment, error) {
	return nil, gorm.ErrRecordNotFound
}
func (emptyPayments) ClaimSuccess(uint, map[string]any) (bool, error) { return false, nil }
func (emptyPayments) MarkFailed(uint, map[string]any) (bool, error)   { return false, nil }
func (emptyPayments) AttachOrder(uint, *models.Order, map[string]any) (bool, error) {
	return false, nil
}
func (emptyPayments) UpdateFields(uint, map[string]any) error { return nil }

type emptyOrders struct{}

func (emptyOrders) Create(*models.Order) error { return nil }
func (emptyOrders) Delete(uint) error          { return nil }
func (emptyOrders) GetByID(uint) (*models.Order, error) {
	return nil, gorm.ErrRecordNotFound
}
func (emptyOrders) GetByOrderNumber(string) (*models.Order, error) {
	return nil, gorm.ErrRecordNotFound
}
func (emptyOrders) MarkPaid(uint, models.MpesaMetadata, time.Time) error { return nil }
func (emptyOrders) MarkPaymentFailed(uint, models.MpesaMetadata) error   { return nil }
func (emptyOrders) ClaimInventoryAdjustment(uint) (bool, error)          { return false, nil }

type emptyUsers struct{}

func (emptyUsers) GetByID(uint) (*models.User, error)      { return nil, gorm.ErrRecordNotFound }
func (emptyUsers) GetByEmail(string) (*models.User, error) { return nil, gorm.ErrRecordNotFound }
func (emptyUsers) Create(*models.User) error               { return nil }
func (emptyUsers) UpdateProfile(uint, map[string]any) error {
	return nil
}

type emptyProducts struct{}

func (emptyProducts) GetByID(uint) (*models.Product, error) { return nil, gorm.ErrRecordNotFound }
func (emptyProducts) DecrementStock(uint, int) error        { return nil }

type passLedger struct{}

func (passLedger) MarkSeen(string, []byte) (bool, string, error) { return false, "hash", nil }

type nullGateway struct{}

func (nullGateway) InitiateSTKPush(daraja.STKPushInput) (*daraja.STKPushResult, error) {
	return nil, nil
}
func (nullGateway) QuerySTKStatus(string) (*daraja.STKQueryResult, error) { return nil, nil }
func (nullGateway) RegisterC2BURLs(string, string) (map[string]any, error) {
	return nil, nil
}
func (nullGateway) QueryTransactionStatus(daraja.TransactionStatusInput) (*daraja.TransactionStatusResult, error) {
	return nil, nil
}

func webhookRouter(token string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	inventory := service.NewInventoryService(emptyOrders{}, emptyProducts{})
	reconcile := service.NewReconcileService(
		emptyPayments{}, emptyOrders{}, emptyUsers{}, passLedger{}, nullGateway{},
		inventory, nil,
		&config.CheckoutConfig{StatusQueryGrace: 15 * time.Second},
	)
	h := NewMpesaWebhookHandler(reconcile, &config.MpesaConfig{CallbackToken: token})

	r := gin.New()
	r.POST("/api/mpesa/callback/stk", h.STKCallback)
	r.POST("/api/mpesa/c2b/validate", h.C2BValidate)
	r.POST("/api/mpesa/c2b/confirm", h.C2BConfirm)
	r.POST("/api/mpesa/transaction-status/result", h.TransactionStatusResult)
	r.POST("/api/mpesa/transaction-status/timeout", h.TransactionStatusTimeout)
	return r
}

func post(r *gin.Engine, path string, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestWebhooksAlwaysAckNeutrally(t *testing.T) {
	r := webhookRouter("")
	paths := []string{
		"/api/mpesa/callback/stk",
		"/api/mpesa/c2b/confirm",
		"/api/mpesa/transaction-status/result",
		"/api/mpesa/transaction-status/timeout",
	}
	bodies := []string{
		`{"Body":{"stkCallback":{"CheckoutRequestID":"ws_CO_unknown","ResultCode":0}}}`,
		`{"unexpected":"shape"}`,
		`not even json`,
		``,
	}
	for _, path := range paths {
		for _, body := range bodies {
			w := post(r, path, body)
			assert.Equal(t, http.StatusOK, w.Code, "%s with body %q", path, body)

			var ack map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ack), "%s with body %q", path, body)
			assert.Equal(t, float64(0), ack["ResultCode"])
			assert.Equal(t, "Accepted", ack["ResultDesc"])
		}
	}
}

func TestWebhookTokenGating(t *testing.T) {
	r := webhookRouter("s3cret")
	body := `{"Body":{"stkCallback":{"CheckoutRequestID":"ws_CO_x","ResultCode":0}}}`

	rejected := func(t *testing.T, w *httptest.ResponseRecorder) {
		t.Helper()
		assert.Equal(t, http.StatusOK, w.Code)
		var ack map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ack))
		assert.Equal(t, float64(1), ack["ResultCode"])
		assert.Equal(t, "Unauthorized callback", ack["ResultDesc"])
	}

	t.Run("bad token rejected in gateway shape, still HTTP 200", func(t *testing.T) {
		rejected(t, post(r, "/api/mpesa/callback/stk?token=wrong", body))
	})

	t.Run("missing token rejected", func(t *testing.T) {
		rejected(t, post(r, "/api/mpesa/callback/stk", body))
	})

	t.Run("every webhook path rejects a bad token", func(t *testing.T) {
		for _, path := range []string{
			"/api/mpesa/c2b/validate?token=wrong",
			"/api/mpesa/c2b/confirm?token=wrong",
			"/api/mpesa/transaction-status/result?token=wrong",
			"/api/mpesa/transaction-status/timeout?token=wrong",
		} {
			rejected(t, post(r, path, body))
		}
	})

	t.Run("good token accepted", func(t *testing.T) {
		w := post(r, "/api/mpesa/callback/stk?token=s3cret", body)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Accepted")
	})
}

func TestC2BValidateVerdicts(t *testing.T) {
	r := webhookRouter("")

	// No order matches, so validation must reject with the invalid-account
	// code rather than the neutral ack.
	w := post(r, "/api/mpesa/c2b/validate", `{"TransID":"RKTQDM7W6S","TransAmount":"100","BillRefNumber":"GSE-nope"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	var decision map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decision))
	assert.Equal(t, "C2B00012", decision["ResultCode"])
}
