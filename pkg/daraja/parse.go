package daraja

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// The parsers in this file normalize Daraja's callback shapes into flat
// structs. They are deliberately tolerant: missing fields default to empty or
// zero values and malformed payloads return nil rather than an error, because
// webhook handlers must acknowledge whatever the gateway sends.

// STKCallback is the parsed body of an STK push result callback.
type STKCallback struct {
	MerchantRequestID  string
	CheckoutRequestID  string
	ResultCode         int
	ResultDesc         string
	Amount             float64
	MpesaReceiptNumber string
	TransactionDate    string
	PhoneNumber        string
}

type stkCallbackEnvelope struct {
	Body struct {
		StkCallback struct {
			MerchantRequestID string          `json:"MerchantRequestID"`
			CheckoutRequestID string          `json:"CheckoutRequestID"`
			ResultCode        json.RawMessage `json:"ResultCode"`
			ResultDesc        string          `json:"ResultDesc"`
			CallbackMetadata  struct {
				Item []struct {
					Name  string `json:"Name"`
					Value any    `json:"Value"`
				} `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

// ParseSTKCallback extracts the STK result from a raw callback payload.
// Returns nil when the payload does not carry an stkCallback body.
func ParseSTKCallback(raw []byte) *STKCallback {
	var env stkCallbackEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil
	}
	cb := env.Body.StkCallback
	if cb.MerchantRequestID == "" && cb.CheckoutRequestID == "" {
		return nil
	}

	out := &STKCallback{
		MerchantRequestID: cb.MerchantRequestID,
		CheckoutRequestID: cb.CheckoutRequestID,
		ResultCode:        rawToInt(cb.ResultCode, 0),
		ResultDesc:        cb.ResultDesc,
	}
	for _, item := range cb.CallbackMetadata.Item {
		switch item.Name {
		case "Amount":
			out.Amount = toFloat(item.Value)
		case "MpesaReceiptNumber":
			out.MpesaReceiptNumber = toString(item.Value)
		case "TransactionDate":
			out.TransactionDate = toString(item.Value)
		case "PhoneNumber":
			out.PhoneNumber = toString(item.Value)
		}
	}
	return out
}

// C2BPayload is the parsed body of a pay-bill validation or confirmation
// callback.
type C2BPayload struct {
	TransID       string
	Amount        float64
	BillRefNumber string
	MSISDN        string
	FirstName     string
	MiddleName    string
	LastName      string
	TransTime     string
}

func ParseC2BPayload(raw []byte) C2BPayload {
	var body struct {
		TransID       string `json:"TransID"`
		TransAmount   any    `json:"TransAmount"`
		BillRefNumber string `json:"BillRefNumber"`
		MSISDN        string `json:"MSISDN"`
		FirstName     string `json:"FirstName"`
		MiddleName    string `json:"MiddleName"`
		LastName      string `json:"LastName"`
		TransTime     string `json:"TransTime"`
	}
	_ = json.Unmarshal(raw, &body)
	return C2BPayload{
		TransID:       body.TransID,
		Amount:        toFloat(body.TransAmount),
		BillRefNumber: body.BillRefNumber,
		MSISDN:        body.MSISDN,
		FirstName:     body.FirstName,
		MiddleName:    body.MiddleName,
		LastName:      body.LastName,
		TransTime:     body.TransTime,
	}
}

// TransactionStatusCallback is the parsed Result block of a transaction
// status result webhook.
type TransactionStatusCallback struct {
	ResultType               int
	ResultCode               int
	ResultDesc               string
	OriginatorConversationID string
	ConversationID           string
	TransactionID            string
}

func ParseTransactionStatusCallback(raw []byte) *TransactionStatusCallback {
	var env struct {
		Result *struct {
			ResultType               json.RawMessage `json:"ResultType"`
			ResultCode               json.RawMessage `json:"ResultCode"`
			ResultDesc               string          `json:"ResultDesc"`
			OriginatorConversationID string          `json:"OriginatorConversationID"`
			ConversationID           string          `json:"ConversationID"`
			TransactionID            string          `json:"TransactionID"`
		} `json:"Result"`
	}
	if err := json.Unmarshal(raw, &env); err != nil || env.Result == nil {
		return nil
	}
	r := env.Result
	return &TransactionStatusCallback{
		ResultType:               rawToInt(r.ResultType, 0),
		ResultCode:               rawToInt(r.ResultCode, 0),
		ResultDesc:               r.ResultDesc,
		OriginatorConversationID: r.OriginatorConversationID,
		ConversationID:           r.ConversationID,
		TransactionID:            r.TransactionID,
	}
}

// Daraja is inconsistent about numeric fields: the same field arrives as a
// JSON number in some callbacks and a quoted string in others.

func rawToInt(raw json.RawMessage, fallback int) int {
	if len(raw) == 0 {
		return fallback
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if parsed, err := strconv.Atoi(s); err == nil {
			return parsed
		}
	}
	return fallback
}

func toFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case string:
		f, _ := strconv.ParseFloat(t, 64)
		return f
	case json.Number:
		f, _ := t.Float64()
		return f
	}
	return 0
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case nil:
		return ""
	}
	return fmt.Sprintf("%v", v)
}

func stringField(m map[string]any, key string) string {
	return toString(m[key])
}

func intField(m map[string]any, key string, fallback int) int {
	v, ok := m[key]
	if !ok || v == nil {
		return fallback
	}
	switch t := v.(type) {
	case float64:
		return int(t)
	case string:
		if n, err := strconv.Atoi(t); err == nil {
			return n
		}
	}
	return fallback
}
