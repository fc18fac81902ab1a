// Package daraja wraps the Safaricom Daraja (M-Pesa) REST API: OAuth token
// acquisition, STK push initiation and query, C2B URL registration and
// transaction status queries, plus parsers for the callback shapes.
package daraja

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	SandboxBaseURL    = "https://sandbox.safaricom.co.ke"
	ProductionBaseURL = "https://api.safaricom.co.ke"
)

// ResultPending is a client-side sentinel: the gateway has not produced a
// result for the transaction yet and the caller should keep waiting. It is
// never returned by Daraja itself.
const ResultPending = -1

var ErrInvalidPhone = errors.New("invalid phone format, use a Kenyan Safaricom number like 07XXXXXXXX")

// Config carries the Daraja credentials and endpoints for one shortcode.
type Config struct {
	BaseURL            string
	ConsumerKey        string
	ConsumerSecret     string
	Shortcode          string
	Passkey            string
	InitiatorName      string
	SecurityCredential string
	Timeout            time.Duration
}

type Client struct {
	cfg  Config
	http *resty.Client
	// now is swappable in tests; the STK password digest is time-boxed.
	now func() time.Time
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = SandboxBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: resty.New().SetBaseURL(cfg.BaseURL).SetTimeout(cfg.Timeout),
		now:  time.Now,
	}
}

var phoneDigits = regexp.MustCompile(`\D`)

// NormalizePhone converts common Kenyan formats (07XXXXXXXX, 7XXXXXXXX,
// 2547XXXXXXXX) to the international MSISDN form Daraja requires.
func NormalizePhone(raw string) (string, error) {
	digits := phoneDigits.ReplaceAllString(raw, "")
	switch {
	case strings.HasPrefix(digits, "254") && len(digits) == 12:
		return digits, nil
	case strings.HasPrefix(digits, "0") && len(digits) == 10:
		return "254" + digits[1:], nil
	case strings.HasPrefix(digits, "7") && len(digits) == 9:
		return "254" + digits, nil
	case strings.HasPrefix(digits, "1") && len(digits) == 9:
		return "254" + digits, nil
	}
	return "", ErrInvalidPhone
}

// timestamp formats the current Nairobi wall-clock time the way the STK
// password digest expects (YYYYMMDDHHmmss).
func (c *Client) timestamp() string {
	loc, err := time.LoadLocation("Africa/Nairobi")
	if err != nil {
		loc = time.FixedZone("EAT", 3*60*60)
	}
	return c.now().In(loc).Format("20060102150405")
}

func (c *Client) password(timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(c.cfg.Shortcode + c.cfg.Passkey + timestamp))
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

// AccessToken exchanges the configured consumer credentials for a bearer
// token. Tokens are fetched per operation; Daraja advertises a ~1h TTL but
// re-fetching keeps the client stateless.
func (c *Client) AccessToken() (string, error) {
	resp, err := c.http.R().
		SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret).
		Get("/oauth/v1/generate?grant_type=client_credentials")
	if err != nil {
		return "", fmt.Errorf("mpesa token request: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("mpesa token request failed (%d): %s", resp.StatusCode(), resp.String())
	}
	var out tokenResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", fmt.Errorf("mpesa token response: %w", err)
	}
	if out.AccessToken == "" {
		return "", errors.New("mpesa token response did not include access_token")
	}
	return out.AccessToken, nil
}

// STKPushInput describes one push-payment prompt.
type STKPushInput struct {
	Amount           float64
	Phone            string
	CallbackURL      string
	AccountReference string
	TransactionDesc  string
}

// STKPushResult carries both raw payloads for audit alongside the gateway
// identifiers the caller must persist.
type STKPushResult struct {
	MerchantRequestID string
	CheckoutRequestID string
	ResponseCode      int
	ResponseDesc      string
	RequestPayload    map[string]any
	ResponsePayload   map[string]any
}

// InitiateSTKPush asks Daraja to prompt the customer's phone for payment.
// The amount is rounded to whole KES (the gateway rejects fractions) with a
// floor of 1.
func (c *Client) InitiateSTKPush(in STKPushInput) (*STKPushResult, error) {
	phone, err := NormalizePhone(in.Phone)
	if err != nil {
		return nil, err
	}
	token, err := c.AccessToken()
	if err != nil {
		return nil, err
	}

	ts := c.timestamp()
	amount := int64(in.Amount + 0.5)
	if amount < 1 {
		amount = 1
	}
	payload := map[string]any{
		"BusinessShortCode": c.cfg.Shortcode,
		"Password":          c.password(ts),
		"Timestamp":         ts,
		"TransactionType":   "CustomerPayBillOnline",
		"Amount":            amount,
		"PartyA":            phone,
		"PartyB":            c.cfg.Shortcode,
		"PhoneNumber":       phone,
		"CallBackURL":       in.CallbackURL,
		"AccountReference":  in.AccountReference,
		"TransactionDesc":   in.TransactionDesc,
	}

	log.Printf("[M-Pesa STK] push amount=%d phone=%s ref=%s", amount, phone, in.AccountReference)
	resp, err := c.http.R().
		SetAuthToken(token).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post("/mpesa/stkpush/v1/processrequest")
	if err != nil {
		return nil, fmt.Errorf("mpesa stk push: %w", err)
	}
	log.Printf("[M-Pesa STK] response status=%d body=%s", resp.StatusCode(), resp.String())
	if resp.IsError() {
		return nil, fmt.Errorf("mpesa stk push failed (%d): %s", resp.StatusCode(), resp.String())
	}

	var body map[string]any
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("mpesa stk push response: %w", err)
	}
	return &STKPushResult{
		MerchantRequestID: stringField(body, "MerchantRequestID"),
		CheckoutRequestID: stringField(body, "CheckoutRequestID"),
		ResponseCode:      intField(body, "ResponseCode", 0),
		ResponseDesc:      stringField(body, "ResponseDescription"),
		RequestPayload:    payload,
		ResponsePayload:   body,
	}, nil
}

// STKQueryResult is the normalized outcome of an STK status query.
// ResultCode 0 means confirmed paid, >0 confirmed failed or cancelled, and
// ResultPending (-1) means Daraja has not settled the transaction yet.
type STKQueryResult struct {
	ResultCode        int
	ResultDesc        string
	MerchantRequestID string
	CheckoutRequestID string
	ResponsePayload   map[string]any
}

// QuerySTKStatus asks Daraja for the outcome of a previously initiated push.
func (c *Client) QuerySTKStatus(checkoutRequestID string) (*STKQueryResult, error) {
	token, err := c.AccessToken()
	if err != nil {
		return nil, err
	}
	ts := c.timestamp()
	payload := map[string]any{
		"BusinessShortCode": c.cfg.Shortcode,
		"Password":          c.password(ts),
		"Timestamp":         ts,
		"CheckoutRequestID": checkoutRequestID,
	}

	resp, err := c.http.R().
		SetAuthToken(token).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post("/mpesa/stkpushquery/v1/query")
	if err != nil {
		return nil, fmt.Errorf("mpesa stk query: %w", err)
	}
	log.Printf("[M-Pesa STK Query] %s status=%d body=%s", checkoutRequestID, resp.StatusCode(), resp.String())

	var body map[string]any
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("mpesa stk query response: %w", err)
	}
	return &STKQueryResult{
		ResultCode:        intField(body, "ResultCode", ResultPending),
		ResultDesc:        stringField(body, "ResultDesc"),
		MerchantRequestID: stringField(body, "MerchantRequestID"),
		CheckoutRequestID: stringField(body, "CheckoutRequestID"),
		ResponsePayload:   body,
	}, nil
}

// RegisterC2BURLs binds the pay-bill validation and confirmation webhooks to
// this deployment. One-time administrative operation.
func (c *Client) RegisterC2BURLs(validationURL, confirmationURL string) (map[string]any, error) {
	token, err := c.AccessToken()
	if err != nil {
		return nil, err
	}
	payload := map[string]any{
		"ShortCode":       c.cfg.Shortcode,
		"ResponseType":    "Completed",
		"ConfirmationURL": confirmationURL,
		"ValidationURL":   validationURL,
		"CommandID":       "CustomerPayBillOnline",
	}
	resp, err := c.http.R().
		SetAuthToken(token).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post("/mpesa/c2b/v1/registerurl")
	if err != nil {
		return nil, fmt.Errorf("mpesa c2b register: %w", err)
	}
	var body map[string]any
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("mpesa c2b register response: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("mpesa c2b register failed (%d): %s", resp.StatusCode(), resp.String())
	}
	return body, nil
}

// TransactionStatusInput identifies a settled transaction by receipt number.
// Daraja answers asynchronously via the result/timeout webhooks, not in the
// synchronous response.
type TransactionStatusInput struct {
	TransactionID string
	ResultURL     string
	TimeoutURL    string
	Remarks       string
	Occasion      string
}

type TransactionStatusResult struct {
	ConversationID           string
	OriginatorConversationID string
	ResponseCode             int
	ResponseDesc             string
	RequestPayload           map[string]any
	ResponsePayload          map[string]any
}

func (c *Client) QueryTransactionStatus(in TransactionStatusInput) (*TransactionStatusResult, error) {
	token, err := c.AccessToken()
	if err != nil {
		return nil, err
	}
	remarks := in.Remarks
	if remarks == "" {
		remarks = "Order reconciliation"
	}
	occasion := in.Occasion
	if occasion == "" {
		occasion = "OrderPaymentStatus"
	}
	payload := map[string]any{
		"Initiator":          c.cfg.InitiatorName,
		"SecurityCredential": c.cfg.SecurityCredential,
		"CommandID":          "TransactionStatusQuery",
		"TransactionID":      in.TransactionID,
		"PartyA":             c.cfg.Shortcode,
		"IdentifierType":     4,
		"ResultURL":          in.ResultURL,
		"QueueTimeOutURL":    in.TimeoutURL,
		"Remarks":            remarks,
		"Occasion":           occasion,
	}
	resp, err := c.http.R().
		SetAuthToken(token).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post("/mpesa/transactionstatus/v1/query")
	if err != nil {
		return nil, fmt.Errorf("mpesa transaction status: %w", err)
	}
	var body map[string]any
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("mpesa transaction status response: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("mpesa transaction status failed (%d): %s", resp.StatusCode(), resp.String())
	}
	return &TransactionStatusResult{
		ConversationID:           stringField(body, "ConversationID"),
		OriginatorConversationID: stringField(body, "OriginatorConversationID"),
		ResponseCode:             intField(body, "ResponseCode", 0),
		ResponseDesc:             stringField(body, "ResponseDescription"),
		RequestPayload:           payload,
		ResponsePayload:          body,
	}, nil
}
