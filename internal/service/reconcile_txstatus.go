package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/kelvinguchu/galacticelectricals/internal/domain"
	"github.com/kelvinguchu/galacticelectricals/internal/models"
	"github.com/kelvinguchu/galacticelectricals/pkg/daraja"
)

// Active transaction-status reconciliation: an operator asks Daraja to
// re-verify a settled transaction by receipt number. Daraja answers through
// the result/timeout webhooks, so the flow is request here, resolution in
// HandleTransactionStatusResult.

var (
	ErrPaymentNotFound = errors.New("payment not found")
	ErrOrderNotFound   = errors.New("order not found")
)

// ReceiptForOrder resolves the M-Pesa receipt recorded on an order, so a
// status query can be keyed by order number instead of transaction ID. The
// receipt may be empty when the order was never confirmed through M-Pesa.
func (s *ReconcileService) ReceiptForOrder(orderNumber string) (string, error) {
	order, err := s.orders.GetByOrderNumber(orderNumber)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrOrderNotFound, orderNumber)
	}
	return order.Mpesa.ReceiptNumber, nil
}

// RequestTransactionStatus issues a status query for the payment holding the
// given receipt number and records the pending query on the payment so the
// asynchronous result can be matched back by OriginatorConversationID.
func (s *ReconcileService) RequestTransactionStatus(receipt, resultURL, timeoutURL string) (*models.Payment, error) {
	payment, err := s.payments.GetByReceiptNumber(receipt)
	if err != nil {
		return nil, fmt.Errorf("%w: receipt %s", ErrPaymentNotFound, receipt)
	}

	result, err := s.gateway.QueryTransactionStatus(daraja.TransactionStatusInput{
		TransactionID: receipt,
		ResultURL:     resultURL,
		TimeoutURL:    timeoutURL,
	})
	if err != nil {
		return nil, err
	}

	record := models.TransactionStatusRecord{
		ConversationID:           result.ConversationID,
		OriginatorConversationID: result.OriginatorConversationID,
		ResultCode:               daraja.ResultPending,
		ResultDesc:               "query in flight",
		CheckedAt:                s.now().UTC().Format(time.RFC3339),
	}
	encoded, _ := json.Marshal(record)
	if err := s.payments.UpdateFields(payment.ID, map[string]any{"transaction_status": encoded}); err != nil {
		return nil, err
	}
	log.Printf("[TxnStatus] query issued for receipt %s (conversation %s)", receipt, result.ConversationID)
	return payment, nil
}

// HandleTransactionStatusResult processes the asynchronous answer to a
// status query. The verdict is stored on the payment and, when the payment
// is linked to an order, mirrored onto the order's payment status.
func (s *ReconcileService) HandleTransactionStatusResult(raw []byte) error {
	isDuplicate, eventHash, err := s.ledger.MarkSeen(domain.WebhookTransactionStatusResult, raw)
	if err != nil {
		return err
	}
	if isDuplicate {
		log.Printf("[TxnStatus] duplicate result %s, ignoring", eventHash)
		return nil
	}

	callback := daraja.ParseTransactionStatusCallback(raw)
	if callback == nil {
		log.Printf("[TxnStatus] result without Result block, ignoring")
		return nil
	}

	payment := s.findQueriedPayment(callback)
	if payment == nil {
		log.Printf("[TxnStatus] no payment matches result (transaction %s, originator %s)", callback.TransactionID, callback.OriginatorConversationID)
		return nil
	}

	var rawPayload any
	_ = json.Unmarshal(raw, &rawPayload)
	record := models.TransactionStatusRecord{
		ConversationID:           callback.ConversationID,
		OriginatorConversationID: callback.OriginatorConversationID,
		ResultCode:               callback.ResultCode,
		ResultDesc:               callback.ResultDesc,
		RawPayload:               rawPayload,
		CheckedAt:                s.now().UTC().Format(time.RFC3339),
	}
	encoded, _ := json.Marshal(record)
	if err := s.payments.UpdateFields(payment.ID, map[string]any{"transaction_status": encoded}); err != nil {
		return err
	}

	if payment.OrderID == nil {
		return nil
	}
	order, err := s.orders.GetByID(*payment.OrderID)
	if err != nil {
		return err
	}
	meta := order.Mpesa
	meta.ResultCode = callback.ResultCode
	meta.ResultDesc = callback.ResultDesc

	if callback.ResultCode == 0 {
		if order.PaymentStatus == domain.OrderPaymentPaid {
			return nil
		}
		log.Printf("[TxnStatus] order %s confirmed paid by reconciliation", order.OrderNumber)
		if err := s.orders.MarkPaid(order.ID, meta, s.now()); err != nil {
			return err
		}
		order.PaymentStatus = domain.OrderPaymentPaid
		if err := s.inventory.OnOrderPaid(order); err != nil {
			log.Printf("[TxnStatus] inventory adjustment for %s: %v", order.OrderNumber, err)
		}
		return nil
	}

	log.Printf("[TxnStatus] order %s payment disputed by reconciliation: %d %s", order.OrderNumber, callback.ResultCode, callback.ResultDesc)
	return s.orders.MarkPaymentFailed(order.ID, meta)
}

// HandleTransactionStatusTimeout records that Daraja could not answer a
// status query in time. The payment's recorded verdict stays pending.
func (s *ReconcileService) HandleTransactionStatusTimeout(raw []byte) error {
	isDuplicate, eventHash, err := s.ledger.MarkSeen(domain.WebhookTransactionStatusTimeout, raw)
	if err != nil {
		return err
	}
	if isDuplicate {
		log.Printf("[TxnStatus] duplicate timeout %s, ignoring", eventHash)
		return nil
	}
	log.Printf("[TxnStatus] status query timed out: %s", raw)
	return nil
}

// findQueriedPayment matches a status result back to its payment, first by
// the receipt number Daraja echoes, then by the conversation ID recorded
// when the query was issued.
func (s *ReconcileService) findQueriedPayment(callback *daraja.TransactionStatusCallback) *models.Payment {
	if callback.TransactionID != "" {
		if p, err := s.payments.GetByReceiptNumber(callback.TransactionID); err == nil {
			return p
		}
	}
	if callback.OriginatorConversationID != "" {
		if p, err := s.payments.GetByOriginatorConversationID(callback.OriginatorConversationID); err == nil {
			return p
		}
	}
	return nil
}
