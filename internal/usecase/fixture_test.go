package usecase

import (
	"mart/internal/domain/model"
)

// 全usecaseを同じインメモリstoreに繋いだテスト一式
type fixture struct {
	store    *memStore
	gw       *GatewayMock
	users    *UserClientMock
	carts    *CartClientMock
	notifier *NotifierMock

	orders   *OrderUsecase
	status   *OrderStatusUsecase
	payments *PaymentUsecase
	webhooks *WebhookUsecase
}

func newFixture() *fixture {
	store := newMemStore()
	tx := &memTxManager{store: store}
	gw := &GatewayMock{}
	users := &UserClientMock{}
	carts := &CartClientMock{}
	notifier := &NotifierMock{}
	idGen := &seqIDGen{}
	clock := &fixedClock{t: testTime}

	payments := NewPaymentUsecase(&memPaymentRepo{store: store}, &memPaymentTxRepo{store: store}, tx, gw, idGen, clock)
	orders := NewOrderUsecase(&memOrderRepo{store: store}, &memTimelineRepo{store: store}, tx, users, carts, notifier, payments, idGen, clock, stubNumbers{})
	status := NewOrderStatusUsecase(orders, tx, payments, idGen, clock, stubNumbers{})
	webhooks := NewWebhookUsecase(tx, gw, idGen, clock)

	return &fixture{
		store:    store,
		gw:       gw,
		users:    users,
		carts:    carts,
		notifier: notifier,
		orders:   orders,
		status:   status,
		payments: payments,
		webhooks: webhooks,
	}
}

func (f *fixture) timelineEvents(orderID string) []model.TimelineEventType {
	var out []model.TimelineEventType
	for _, e := range f.store.timeline {
		if e.OrderID == orderID {
			out = append(out, e.EventType)
		}
	}
	return out
}

func (f *fixture) storedOrder(orderID string) model.Order {
	return f.store.orders[orderID]
}
