package service

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kelvinguchu/galacticelectricals/internal/domain"
	"github.com/kelvinguchu/galacticelectricals/internal/models"
	"github.com/kelvinguchu/galacticelectricals/internal/repository"
	"github.com/kelvinguchu/galacticelectricals/pkg/daraja"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// In-memory store fakes. They reproduce the conditional-update semantics of
// the GORM repositories so concurrency behavior can be exercised without a
// database.

type fakeProducts struct {
	mu         sync.Mutex
	products   map[uint]*models.Product
	decrements map[uint]int
}

func newFakeProducts(products ...*models.Product) *fakeProducts {
	f := &fakeProducts{products: map[uint]*models.Product{}, decrements: map[uint]int{}}
	for _, p := range products {
		f.products[p.ID] = p
	}
	return f
}

func (f *fakeProducts) GetByID(id uint) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *p
	return &copied, nil
}

func (f *fakeProducts) DecrementStock(id uint, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.decrements[id] += quantity
	if p, ok := f.products[id]; ok && p.ManageStock {
		p.StockQuantity -= quantity
		if p.StockQuantity < 0 {
			p.StockQuantity = 0
		}
	}
	return nil
}

type fakePayments struct {
	mu     sync.Mutex
	nextID uint
	byID   map[uint]*models.Payment

	createErr error
}

func newFakePayments(payments ...*models.Payment) *fakePayments {
	f := &fakePayments{byID: map[uint]*models.Payment{}, nextID: 1}
	for _, p := range payments {
		if p.ID == 0 {
			p.ID = f.nextID
		}
		if p.ID >= f.nextID {
			f.nextID = p.ID + 1
		}
		f.byID[p.ID] = p
	}
	return f
}

func (f *fakePayments) Create(p *models.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	p.ID = f.nextID
	f.nextID++
	p.CreatedAt = time.Now()
	copied := *p
	f.byID[p.ID] = &copied
	return nil
}

func (f *fakePayments) get(match func(*models.Payment) bool) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.byID {
		if match(p) {
			copied := *p
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakePayments) GetByCheckoutRequestID(id string) (*models.Payment, error) {
	return f.get(func(p *models.Payment) bool { return p.CheckoutRequestID == id })
}

func (f *fakePayments) GetByReceiptNumber(receipt string) (*models.Payment, error) {
	return f.get(func(p *models.Payment) bool { return p.MpesaReceiptNumber == receipt })
}

func (f *fakePayments) GetByOriginatorConversationID(id string) (*models.Payment, error) {
	return f.get(func(p *models.Payment) bool {
		return len(p.TransactionStatus) > 0 && containsJSONValue(p.TransactionStatus, "originator_conversation_id", id)
	})
}

func (f *fakePayments) applyFields(p *models.Payment, fields map[string]any) {
	for k, v := range fields {
		switch k {
		case "result_code":
			p.ResultCode = v.(int)
		case "result_desc":
			p.ResultDesc = v.(string)
		case "mpesa_receipt_number":
			p.MpesaReceiptNumber = v.(string)
		case "phone":
			p.Phone = v.(string)
		case "callback_payload":
			p.CallbackPayload = datatypes.JSON(v.([]byte))
		case "transaction_status":
			p.TransactionStatus = datatypes.JSON(v.([]byte))
		}
	}
}

func (f *fakePayments) ClaimSuccess(id uint, fields map[string]any) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[id]
	if !ok || (p.Status != domain.PaymentInitiated && p.Status != domain.PaymentPending) {
		return false, nil
	}
	p.Status = domain.PaymentSuccess
	f.applyFields(p, fields)
	return true, nil
}

func (f *fakePayments) MarkFailed(id uint, fields map[string]any) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[id]
	if !ok || (p.Status != domain.PaymentInitiated && p.Status != domain.PaymentPending) {
		return false, nil
	}
	p.Status = domain.PaymentFailed
	f.applyFields(p, fields)
	return true, nil
}

func (f *fakePayments) AttachOrder(paymentID uint, order *models.Order, fields map[string]any) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[paymentID]
	if !ok || p.OrderID != nil {
		return false, nil
	}
	orderID := order.ID
	p.OrderID = &orderID
	p.Reference = order.OrderNumber
	p.Status = domain.PaymentSuccess
	f.applyFields(p, fields)
	return true, nil
}

func (f *fakePayments) UpdateFields(id uint, fields map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	f.applyFields(p, fields)
	return nil
}

func containsJSONValue(raw []byte, key, value string) bool {
	needle := fmt.Sprintf("%q:%q", key, value)
	return strings.Contains(string(raw), needle)
}

type fakeOrders struct {
	mu     sync.Mutex
	nextID uint
	byID   map[uint]*models.Order

	createErr error
}

func newFakeOrders(orders ...*models.Order) *fakeOrders {
	f := &fakeOrders{byID: map[uint]*models.Order{}, nextID: 1}
	for _, o := range orders {
		if o.ID == 0 {
			o.ID = f.nextID
		}
		if o.ID >= f.nextID {
			f.nextID = o.ID + 1
		}
		f.byID[o.ID] = o
	}
	return f
}

func (f *fakeOrders) Create(o *models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	o.ID = f.nextID
	f.nextID++
	copied := *o
	f.byID[o.ID] = &copied
	return nil
}

func (f *fakeOrders) Delete(id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byID, id)
	return nil
}

func (f *fakeOrders) GetByID(id uint) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *o
	return &copied, nil
}

func (f *fakeOrders) GetByOrderNumber(orderNumber string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.byID {
		if o.OrderNumber == orderNumber {
			copied := *o
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeOrders) MarkPaid(id uint, meta models.MpesaMetadata, paidAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.byID[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	o.PaymentStatus = domain.OrderPaymentPaid
	o.PaidAt = &paidAt
	o.Mpesa = meta
	return nil
}

func (f *fakeOrders) MarkPaymentFailed(id uint, meta models.MpesaMetadata) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.byID[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	o.PaymentStatus = domain.OrderPaymentFailed
	o.Mpesa = meta
	return nil
}

func (f *fakeOrders) ClaimInventoryAdjustment(id uint) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.byID[id]
	if !ok || o.InventoryAdjusted {
		return false, nil
	}
	o.InventoryAdjusted = true
	return true, nil
}

func (f *fakeOrders) ListByCustomer(customerID uint, limit, offset int) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Order
	for _, o := range f.byID {
		if o.CustomerID != nil && *o.CustomerID == customerID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeOrders) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byID)
}

type fakeUsers struct {
	mu             sync.Mutex
	byID           map[uint]*models.User
	profileUpdates map[uint]map[string]any
}

func newFakeUsers(users ...*models.User) *fakeUsers {
	f := &fakeUsers{byID: map[uint]*models.User{}, profileUpdates: map[uint]map[string]any{}}
	for _, u := range users {
		f.byID[u.ID] = u
	}
	return f
}

func (f *fakeUsers) GetByID(id uint) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUsers) GetByEmail(email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUsers) Create(u *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u.ID = uint(len(f.byID) + 1)
	copied := *u
	f.byID[u.ID] = &copied
	return nil
}

func (f *fakeUsers) UpdateProfile(id uint, fields map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profileUpdates[id] = fields
	return nil
}

// fakeLedger reproduces the unique event_hash insert with a map.
type fakeLedger struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{seen: map[string]bool{}}
}

func (f *fakeLedger) MarkSeen(channel string, payload []byte) (bool, string, error) {
	hash := repository.HashPayload(channel, payload)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seen[hash] {
		return true, hash, nil
	}
	f.seen[hash] = true
	return false, hash, nil
}

// fakeGateway is a scripted Daraja.
type fakeGateway struct {
	mu sync.Mutex

	pushResult *daraja.STKPushResult
	pushErr    error
	pushCalls  []daraja.STKPushInput

	queryResult *daraja.STKQueryResult
	queryErr    error
	queryCalls  int

	txnResult *daraja.TransactionStatusResult
	txnErr    error
}

func (f *fakeGateway) InitiateSTKPush(in daraja.STKPushInput) (*daraja.STKPushResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushCalls = append(f.pushCalls, in)
	return f.pushResult, f.pushErr
}

func (f *fakeGateway) QuerySTKStatus(string) (*daraja.STKQueryResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queryCalls++
	return f.queryResult, f.queryErr
}

func (f *fakeGateway) RegisterC2BURLs(string, string) (map[string]any, error) {
	return map[string]any{"ResponseDescription": "Success"}, nil
}

func (f *fakeGateway) QueryTransactionStatus(daraja.TransactionStatusInput) (*daraja.TransactionStatusResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.txnResult, f.txnErr
}

func (f *fakeGateway) queryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queryCalls
}

// fakeMailer counts sends; it is invoked from goroutines.
type fakeMailer struct {
	mu            sync.Mutex
	confirmations []string
	adminNotices  []string
}

func (f *fakeMailer) SendOrderConfirmation(_ models.CheckoutContext, orderNumber string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirmations = append(f.confirmations, orderNumber)
	return nil
}

func (f *fakeMailer) SendAdminOrderNotification(_ models.CheckoutContext, orderNumber string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.adminNotices = append(f.adminNotices, orderNumber)
	return nil
}

func (f *fakeMailer) confirmationCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.confirmations)
}
