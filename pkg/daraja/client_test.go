package daraja

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"local 07", "0712345678", "254712345678", false},
		{"local 01", "0112345678", "254112345678", false},
		{"bare 7", "712345678", "254712345678", false},
		{"bare 1", "112345678", "254112345678", false},
		{"international", "254712345678", "254712345678", false},
		{"plus prefix", "+254712345678", "254712345678", false},
		{"spaces and dashes", "0712-345 678", "254712345678", false},
		{"too short", "07123", "", true},
		{"too long", "2547123456789", "", true},
		{"empty", "", "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizePhone(tc.in)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPhone)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestPasswordDigest(t *testing.T) {
	c := NewClient(Config{Shortcode: "174379", Passkey: "secret"})
	c.now = func() time.Time {
		return time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC) // 12:30 Nairobi
	}
	ts := c.timestamp()
	assert.Equal(t, "20240601123000", ts)

	decoded, err := base64.StdEncoding.DecodeString(c.password(ts))
	require.NoError(t, err)
	assert.Equal(t, "174379secret20240601123000", string(decoded))
}

// fakeDaraja stands in for the sandbox: it answers the token exchange and
// records what the client posted.
func fakeDaraja(t *testing.T, route string, status int, respond map[string]any, capture *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/oauth/v1/generate"):
			user, pass, ok := r.BasicAuth()
			require.True(t, ok)
			assert.Equal(t, "key", user)
			assert.Equal(t, "secret", pass)
			json.NewEncoder(w).Encode(map[string]string{"access_token": "test-token"})
		case r.URL.Path == route:
			assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
			if capture != nil {
				require.NoError(t, json.NewDecoder(r.Body).Decode(capture))
			}
			w.WriteHeader(status)
			json.NewEncoder(w).Encode(respond)
		default:
			t.Errorf("unexpected request to %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func testClient(baseURL string) *Client {
	c := NewClient(Config{
		BaseURL:        baseURL,
		ConsumerKey:    "key",
		ConsumerSecret: "secret",
		Shortcode:      "174379",
		Passkey:        "passkey",
	})
	c.now = func() time.Time { return time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC) }
	return c
}

func TestInitiateSTKPush(t *testing.T) {
	var posted map[string]any
	srv := fakeDaraja(t, "/mpesa/stkpush/v1/processrequest", http.StatusOK, map[string]any{
		"MerchantRequestID":   "merch-1",
		"CheckoutRequestID":   "ws_CO_123",
		"ResponseCode":        "0",
		"ResponseDescription": "Success. Request accepted for processing",
	}, &posted)
	defer srv.Close()

	result, err := testClient(srv.URL).InitiateSTKPush(STKPushInput{
		Amount:      2499.99,
		Phone:       "0712345678",
		CallbackURL: "https://shop.example/api/mpesa/callback/stk",
	})
	require.NoError(t, err)

	assert.Equal(t, "ws_CO_123", result.CheckoutRequestID)
	assert.Equal(t, "merch-1", result.MerchantRequestID)
	assert.Equal(t, 0, result.ResponseCode)

	// Whole-shilling amount, normalized MSISDN on both party fields.
	assert.Equal(t, float64(2500), posted["Amount"])
	assert.Equal(t, "254712345678", posted["PartyA"])
	assert.Equal(t, "254712345678", posted["PhoneNumber"])
	assert.Equal(t, "174379", posted["BusinessShortCode"])
	assert.Equal(t, "CustomerPayBillOnline", posted["TransactionType"])
}

func TestInitiateSTKPushAmountFloor(t *testing.T) {
	var posted map[string]any
	srv := fakeDaraja(t, "/mpesa/stkpush/v1/processrequest", http.StatusOK, map[string]any{
		"CheckoutRequestID": "ws_CO_min",
	}, &posted)
	defer srv.Close()

	_, err := testClient(srv.URL).InitiateSTKPush(STKPushInput{Amount: 0.2, Phone: "0712345678"})
	require.NoError(t, err)
	assert.Equal(t, float64(1), posted["Amount"])
}

func TestInitiateSTKPushRejectsBadPhone(t *testing.T) {
	_, err := testClient("http://unused.invalid").InitiateSTKPush(STKPushInput{Amount: 100, Phone: "12345"})
	assert.ErrorIs(t, err, ErrInvalidPhone)
}

func TestInitiateSTKPushGatewayError(t *testing.T) {
	srv := fakeDaraja(t, "/mpesa/stkpush/v1/processrequest", http.StatusInternalServerError, map[string]any{
		"errorMessage": "Spike arrest violation",
	}, nil)
	defer srv.Close()

	_, err := testClient(srv.URL).InitiateSTKPush(STKPushInput{Amount: 100, Phone: "0712345678"})
	assert.Error(t, err)
}

func TestQuerySTKStatus(t *testing.T) {
	t.Run("settled success", func(t *testing.T) {
		srv := fakeDaraja(t, "/mpesa/stkpushquery/v1/query", http.StatusOK, map[string]any{
			"ResultCode":        "0",
			"ResultDesc":        "The service request is processed successfully.",
			"CheckoutRequestID": "ws_CO_123",
		}, nil)
		defer srv.Close()

		result, err := testClient(srv.URL).QuerySTKStatus("ws_CO_123")
		require.NoError(t, err)
		assert.Equal(t, 0, result.ResultCode)
	})

	t.Run("cancelled by user", func(t *testing.T) {
		srv := fakeDaraja(t, "/mpesa/stkpushquery/v1/query", http.StatusOK, map[string]any{
			"ResultCode": "1032",
			"ResultDesc": "Request cancelled by user",
		}, nil)
		defer srv.Close()

		result, err := testClient(srv.URL).QuerySTKStatus("ws_CO_123")
		require.NoError(t, err)
		assert.Equal(t, 1032, result.ResultCode)
	})

	t.Run("still processing maps to pending sentinel", func(t *testing.T) {
		// Daraja answers 500 with an error body while the push is in flight.
		srv := fakeDaraja(t, "/mpesa/stkpushquery/v1/query", http.StatusInternalServerError, map[string]any{
			"errorCode":    "500.001.1001",
			"errorMessage": "The transaction is being processed",
		}, nil)
		defer srv.Close()

		result, err := testClient(srv.URL).QuerySTKStatus("ws_CO_123")
		require.NoError(t, err)
		assert.Equal(t, ResultPending, result.ResultCode)
	})
}

func TestRegisterC2BURLs(t *testing.T) {
	var posted map[string]any
	srv := fakeDaraja(t, "/mpesa/c2b/v1/registerurl", http.StatusOK, map[string]any{
		"ResponseDescription": "Success",
	}, &posted)
	defer srv.Close()

	_, err := testClient(srv.URL).RegisterC2BURLs("https://shop.example/validate", "https://shop.example/confirm")
	require.NoError(t, err)
	assert.Equal(t, "https://shop.example/validate", posted["ValidationURL"])
	assert.Equal(t, "https://shop.example/confirm", posted["ConfirmationURL"])
	assert.Equal(t, "Completed", posted["ResponseType"])
}

func TestQueryTransactionStatus(t *testing.T) {
	var posted map[string]any
	srv := fakeDaraja(t, "/mpesa/transactionstatus/v1/query", http.StatusOK, map[string]any{
		"ConversationID":           "AG_20240601_0000abc",
		"OriginatorConversationID": "orig-1",
		"ResponseCode":             "0",
		"ResponseDescription":      "Accept the service request successfully.",
	}, &posted)
	defer srv.Close()

	result, err := testClient(srv.URL).QueryTransactionStatus(TransactionStatusInput{
		TransactionID: "SBC123XYZ",
		ResultURL:     "https://shop.example/result",
		TimeoutURL:    "https://shop.example/timeout",
	})
	require.NoError(t, err)

	assert.Equal(t, "AG_20240601_0000abc", result.ConversationID)
	assert.Equal(t, "orig-1", result.OriginatorConversationID)
	assert.Equal(t, "SBC123XYZ", posted["TransactionID"])
	assert.Equal(t, "TransactionStatusQuery", posted["CommandID"])
	assert.Equal(t, float64(4), posted["IdentifierType"])
}
