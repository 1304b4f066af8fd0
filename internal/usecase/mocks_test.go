package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"mart/internal/domain/model"
	"mart/internal/external"
	"mart/internal/gateway"
	repo "mart/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// =====================
// 注入する能力のスタブ
// =====================

type fixedClock struct{ t time.Time }

func (c *fixedClock) Now() time.Time { return c.t }

var testTime = time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)

type seqIDGen struct{ n int }

func (g *seqIDGen) NewID() string {
	g.n++
	return fmt.Sprintf("id-%04d", g.n)
}

type stubNumbers struct{}

func (stubNumbers) OrderNumber() string    { return "ORD-20250615-103000-1234" }
func (stubNumbers) InvoiceNumber() string  { return "INV-20250615-1234" }
func (stubNumbers) TrackingNumber() string { return "TRK-20250615-123456" }

// =====================
// インメモリのrepo一式。トランザクションの巻き戻しまでは模さない。
// =====================

type memStore struct {
	orders   map[string]model.Order
	timeline []model.OrderTimeline
	payments []model.Payment
	payTxs   []model.PaymentTransaction
}

func newMemStore() *memStore {
	return &memStore{orders: map[string]model.Order{}}
}

type memTxManager struct{ store *memStore }

func (m *memTxManager) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	return fn(&memTxRepos{store: m.store})
}

type memTxRepos struct{ store *memStore }

func (r *memTxRepos) Orders() repo.OrderRepository             { return &memOrderRepo{store: r.store} }
func (r *memTxRepos) Timeline() repo.OrderTimelineRepository   { return &memTimelineRepo{store: r.store} }
func (r *memTxRepos) Payments() repo.PaymentRepository         { return &memPaymentRepo{store: r.store} }
func (r *memTxRepos) PaymentTransactions() repo.PaymentTransactionRepository {
	return &memPaymentTxRepo{store: r.store}
}

type memOrderRepo struct{ store *memStore }

func (m *memOrderRepo) attach(o model.Order) model.Order {
	var tl []model.OrderTimeline
	for _, e := range m.store.timeline {
		if e.OrderID == o.ID {
			tl = append(tl, e)
		}
	}
	o.Timeline = tl
	return o
}

func (m *memOrderRepo) FindByID(ctx context.Context, orderID string) (model.Order, error) {
	o, ok := m.store.orders[orderID]
	if !ok {
		return model.Order{}, repo.ErrNotFound
	}
	return m.attach(o), nil
}

func (m *memOrderRepo) FindByOrderNumber(ctx context.Context, orderNumber string) (model.Order, error) {
	for _, o := range m.store.orders {
		if o.OrderNumber == orderNumber {
			return m.attach(o), nil
		}
	}
	return model.Order{}, repo.ErrNotFound
}

func (m *memOrderRepo) ListByUserID(ctx context.Context, userID string, page int, limit int) ([]model.Order, int64, error) {
	var out []model.Order
	for _, o := range m.store.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderNumber < out[j].OrderNumber })
	return out, int64(len(out)), nil
}

func (m *memOrderRepo) ListByStatus(ctx context.Context, status model.OrderStatus, page int, limit int) ([]model.Order, int64, error) {
	var out []model.Order
	for _, o := range m.store.orders {
		if o.OrderStatus == status {
			out = append(out, o)
		}
	}
	return out, int64(len(out)), nil
}

func (m *memOrderRepo) Search(ctx context.Context, term string, page int, limit int) ([]model.Order, int64, error) {
	var out []model.Order
	for _, o := range m.store.orders {
		if strings.Contains(o.OrderNumber, term) ||
			strings.Contains(o.UserName, term) ||
			strings.Contains(o.UserEmail, term) {
			out = append(out, o)
		}
	}
	return out, int64(len(out)), nil
}

func (m *memOrderRepo) Create(ctx context.Context, order model.Order) error {
	m.store.orders[order.ID] = order
	return nil
}

func (m *memOrderRepo) Save(ctx context.Context, order model.Order) error {
	if _, ok := m.store.orders[order.ID]; !ok {
		return repo.ErrNotFound
	}
	order.Timeline = nil
	m.store.orders[order.ID] = order
	return nil
}

func (m *memOrderRepo) CountByUserID(ctx context.Context, userID string) (int64, error) {
	var n int64
	for _, o := range m.store.orders {
		if o.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (m *memOrderRepo) TotalSpentByUserID(ctx context.Context, userID string) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, o := range m.store.orders {
		if o.UserID == userID && o.OrderStatus != model.OrderStatusCancelled {
			total = total.Add(o.TotalAmount)
		}
	}
	return total, nil
}

type memTimelineRepo struct{ store *memStore }

func (m *memTimelineRepo) Append(ctx context.Context, entry model.OrderTimeline) error {
	m.store.timeline = append(m.store.timeline, entry)
	return nil
}

func (m *memTimelineRepo) ListByOrderID(ctx context.Context, orderID string) ([]model.OrderTimeline, error) {
	var out []model.OrderTimeline
	for _, e := range m.store.timeline {
		if e.OrderID == orderID {
			out = append(out, e)
		}
	}
	return out, nil
}

type memPaymentRepo struct{ store *memStore }

func (m *memPaymentRepo) FindByID(ctx context.Context, paymentID string) (model.Payment, error) {
	for _, p := range m.store.payments {
		if p.ID == paymentID {
			return p, nil
		}
	}
	return model.Payment{}, repo.ErrNotFound
}

// 最後に作られたものが最新
func (m *memPaymentRepo) FindByOrderID(ctx context.Context, orderID string) (model.Payment, error) {
	for i := len(m.store.payments) - 1; i >= 0; i-- {
		if m.store.payments[i].OrderID == orderID {
			return m.store.payments[i], nil
		}
	}
	return model.Payment{}, repo.ErrNotFound
}

func (m *memPaymentRepo) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (model.Payment, error) {
	for _, p := range m.store.payments {
		if p.GatewayOrderID == gatewayOrderID {
			return p, nil
		}
	}
	return model.Payment{}, repo.ErrNotFound
}

func (m *memPaymentRepo) FindByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (model.Payment, error) {
	for _, p := range m.store.payments {
		if p.GatewayPaymentID == gatewayPaymentID {
			return p, nil
		}
	}
	return model.Payment{}, repo.ErrNotFound
}

func (m *memPaymentRepo) ListByUserID(ctx context.Context, userID string) ([]model.Payment, error) {
	var out []model.Payment
	for _, p := range m.store.payments {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memPaymentRepo) Create(ctx context.Context, payment model.Payment) error {
	m.store.payments = append(m.store.payments, payment)
	return nil
}

func (m *memPaymentRepo) Save(ctx context.Context, payment model.Payment) error {
	for i, p := range m.store.payments {
		if p.ID == payment.ID {
			m.store.payments[i] = payment
			return nil
		}
	}
	return repo.ErrNotFound
}

type memPaymentTxRepo struct{ store *memStore }

func (m *memPaymentTxRepo) Create(ctx context.Context, tx model.PaymentTransaction) error {
	m.store.payTxs = append(m.store.payTxs, tx)
	return nil
}

func (m *memPaymentTxRepo) Save(ctx context.Context, tx model.PaymentTransaction) error {
	for i, t := range m.store.payTxs {
		if t.ID == tx.ID {
			m.store.payTxs[i] = tx
			return nil
		}
	}
	return repo.ErrNotFound
}

func (m *memPaymentTxRepo) ListByPaymentID(ctx context.Context, paymentID string) ([]model.PaymentTransaction, error) {
	var out []model.PaymentTransaction
	for _, t := range m.store.payTxs {
		if t.PaymentID == paymentID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memPaymentTxRepo) FindByGatewayTransactionID(ctx context.Context, gatewayTxID string) (model.PaymentTransaction, error) {
	for _, t := range m.store.payTxs {
		if t.GatewayTransactionID == gatewayTxID {
			return t, nil
		}
	}
	return model.PaymentTransaction{}, repo.ErrNotFound
}

func (m *memPaymentTxRepo) TotalRefunded(ctx context.Context, paymentID string) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, t := range m.store.payTxs {
		if t.PaymentID == paymentID && t.IsRefund() && t.IsSuccessful() {
			total = total.Add(t.Amount)
		}
	}
	return total, nil
}

// =====================
// 外部コラボレーターのmock
// =====================

type GatewayMock struct{ mock.Mock }

func (m *GatewayMock) CreateRemoteOrder(ctx context.Context, amount decimal.Decimal, currency string, receipt string, notes map[string]string) (gateway.RemoteOrder, error) {
	args := m.Called(ctx, amount, currency, receipt, notes)
	o, _ := args.Get(0).(gateway.RemoteOrder)
	return o, args.Error(1)
}

func (m *GatewayMock) FetchPayment(ctx context.Context, gatewayPaymentID string) (gateway.RemotePayment, error) {
	args := m.Called(ctx, gatewayPaymentID)
	p, _ := args.Get(0).(gateway.RemotePayment)
	return p, args.Error(1)
}

func (m *GatewayMock) CreateRefund(ctx context.Context, gatewayPaymentID string, amount *decimal.Decimal, reason string) (gateway.RemoteRefund, error) {
	args := m.Called(ctx, gatewayPaymentID, amount, reason)
	r, _ := args.Get(0).(gateway.RemoteRefund)
	return r, args.Error(1)
}

func (m *GatewayMock) VerifyCheckoutSignature(gatewayOrderID string, gatewayPaymentID string, signature string) bool {
	args := m.Called(gatewayOrderID, gatewayPaymentID, signature)
	return args.Bool(0)
}

func (m *GatewayMock) VerifyWebhookSignature(payload []byte, signature string) bool {
	args := m.Called(payload, signature)
	return args.Bool(0)
}

type UserClientMock struct{ mock.Mock }

func (m *UserClientMock) GetUser(ctx context.Context, userID string) (external.User, error) {
	args := m.Called(ctx, userID)
	u, _ := args.Get(0).(external.User)
	return u, args.Error(1)
}

type CartClientMock struct{ mock.Mock }

func (m *CartClientMock) GetCart(ctx context.Context, userID string) (external.CartSummary, error) {
	args := m.Called(ctx, userID)
	s, _ := args.Get(0).(external.CartSummary)
	return s, args.Error(1)
}

func (m *CartClientMock) ValidateCart(ctx context.Context, userID string) (external.CartSummary, error) {
	args := m.Called(ctx, userID)
	s, _ := args.Get(0).(external.CartSummary)
	return s, args.Error(1)
}

func (m *CartClientMock) ClearCart(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

type NotifierMock struct{ mock.Mock }

func (m *NotifierMock) Publish(ctx context.Context, event external.OrderEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}
