package domain

const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// Payment lifecycle. A payment is created pending and transitions exactly
// once to success, failed or rejected. No automated path assigns rejected;
// an operator sets it when adjudicating a disputed payment, and the status
// endpoint treats it as terminal.
const (
	PaymentInitiated = "initiated"
	PaymentPending   = "pending"
	PaymentSuccess   = "success"
	PaymentFailed    = "failed"
	PaymentRejected  = "rejected"
)

const (
	ProviderMpesa = "mpesa"
)

const (
	ChannelSTKPush = "stk_push"
	ChannelC2B     = "c2b"
)

// Order payment status, driven by the reconciler.
const (
	OrderPaymentPending    = "pending"
	OrderPaymentProcessing = "processing"
	OrderPaymentPaid       = "paid"
	OrderPaymentFailed     = "failed"
	OrderPaymentCancelled  = "cancelled"
	OrderPaymentRefunded   = "refunded"
)

const (
	FulfillmentPending    = "pending"
	FulfillmentProcessing = "processing"
	FulfillmentShipped    = "shipped"
	FulfillmentDelivered  = "delivered"
	FulfillmentCancelled  = "cancelled"
)

const (
	StockInStock     = "instock"
	StockOutOfStock  = "outofstock"
	StockOnBackorder = "onbackorder"
)

// Webhook dedup ledger channels.
const (
	WebhookSTKCallback              = "stk_callback"
	WebhookC2BValidate              = "c2b_validate"
	WebhookC2BConfirm               = "c2b_confirm"
	WebhookTransactionStatusResult  = "transaction_status_result"
	WebhookTransactionStatusTimeout = "transaction_status_timeout"
)

const Currency = "KES"
