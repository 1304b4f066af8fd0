package usecase

import (
	"context"
	"net/http"
	"testing"

	"mart/internal/domain/model"
	"mart/internal/gateway"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

var allStatuses = []model.OrderStatus{
	model.OrderStatusPending,
	model.OrderStatusConfirmed,
	model.OrderStatusProcessing,
	model.OrderStatusPacked,
	model.OrderStatusShipped,
	model.OrderStatusOutForDelivery,
	model.OrderStatusDelivered,
	model.OrderStatusCancelled,
	model.OrderStatusReturned,
}

// 遷移表の全ペアを総当たりで検査する。
// 許可されたペアはタイムライン1件追記、それ以外は400で注文は無傷。
func TestUpdate_TransitionTableExhaustive(t *testing.T) {
	for _, from := range allStatuses {
		for _, to := range allStatuses {
			t.Run(string(from)+"_to_"+string(to), func(t *testing.T) {
				f := newFixture()
				f.notifier.On("Publish", mock.Anything, mock.Anything).Return(nil)
				f.store.orders["o-1"] = model.Order{
					ID: "o-1", OrderNumber: "ORD-X", UserID: "user-1",
					OrderStatus:   from,
					PaymentStatus: model.OrderPaymentPending,
				}

				_, err := f.status.Update(context.Background(), "o-1", UpdateStatusInput{NewStatus: to}, "admin-1", "Admin")

				if canTransition(from, to) {
					assert.NoError(t, err)
					assert.Equal(t, to, f.storedOrder("o-1").OrderStatus)
					assert.Len(t, f.timelineEvents("o-1"), 1)
				} else {
					if he, ok := AsHTTPError(err); assert.True(t, ok, "expected HTTPError, got %v", err) {
						assert.Equal(t, http.StatusBadRequest, he.Status)
					}
					assert.Equal(t, from, f.storedOrder("o-1").OrderStatus)
					assert.Empty(t, f.timelineEvents("o-1"))
				}
			})
		}
	}
}

// 遷移表に現れる全ステータスにタイムラインイベントの定義があること
func TestStatusEvents_CoverAllTransitionTargets(t *testing.T) {
	for from, targets := range orderTransitions {
		for _, to := range targets {
			_, ok := statusEvents[to]
			assert.True(t, ok, "missing status event for %s (reachable from %s)", to, from)
		}
	}
}

func TestUpdate_ShippedGeneratesTrackingNumber(t *testing.T) {
	f := newFixture()
	f.notifier.On("Publish", mock.Anything, mock.Anything).Return(nil)
	f.store.orders["o-1"] = model.Order{
		ID: "o-1", OrderNumber: "ORD-X", UserID: "user-1",
		OrderStatus: model.OrderStatusPacked,
	}

	out, err := f.status.Update(context.Background(), "o-1", UpdateStatusInput{NewStatus: model.OrderStatusShipped}, "admin-1", "Admin")
	assert.NoError(t, err)
	assert.Equal(t, "TRK-20250615-123456", out.TrackingNumber)

	// 既にある追跡番号は上書きしない
	f2 := newFixture()
	f2.notifier.On("Publish", mock.Anything, mock.Anything).Return(nil)
	f2.store.orders["o-2"] = model.Order{
		ID: "o-2", OrderNumber: "ORD-Y", UserID: "user-1",
		OrderStatus:    model.OrderStatusPacked,
		TrackingNumber: "TRK-EXISTING",
	}
	out2, err := f2.status.Update(context.Background(), "o-2", UpdateStatusInput{NewStatus: model.OrderStatusShipped}, "admin-1", "Admin")
	assert.NoError(t, err)
	assert.Equal(t, "TRK-EXISTING", out2.TrackingNumber)
}

func TestUpdate_DeliveredStampsActualDelivery(t *testing.T) {
	f := newFixture()
	f.notifier.On("Publish", mock.Anything, mock.Anything).Return(nil)
	f.store.orders["o-1"] = model.Order{
		ID: "o-1", OrderNumber: "ORD-X", UserID: "user-1",
		OrderStatus: model.OrderStatusOutForDelivery,
	}

	out, err := f.status.Update(context.Background(), "o-1", UpdateStatusInput{NewStatus: model.OrderStatusDelivered}, "admin-1", "Admin")
	assert.NoError(t, err)
	if assert.NotNil(t, out.ActualDelivery) {
		assert.Equal(t, testTime, *out.ActualDelivery)
	}
}

func TestCancel_CompletedPaymentTriggersExactlyOneFullRefund(t *testing.T) {
	f := newFixture()
	f.notifier.On("Publish", mock.Anything, mock.Anything).Return(nil)
	total := decimal.NewFromInt(708)
	f.store.orders["o-1"] = model.Order{
		ID: "o-1", OrderNumber: "ORD-X", UserID: "user-1",
		OrderStatus:   model.OrderStatusPending,
		PaymentStatus: model.OrderPaymentCompleted,
		TotalAmount:   total,
	}
	f.store.payments = []model.Payment{{
		ID: "p-1", OrderID: "o-1", UserID: "user-1",
		Amount: total, Currency: "INR",
		Status:           model.PaymentStatusSuccess,
		GatewayPaymentID: "pay_1",
		PaymentDate:      &testTime,
	}}
	f.gw.On("CreateRefund", mock.Anything, "pay_1", mock.Anything, "Order cancellation").
		Return(gateway.RemoteRefund{ID: "rfnd_1"}, nil)

	out, err := f.status.Cancel(context.Background(), "user-1", false, "o-1", "changed my mind")
	assert.NoError(t, err)

	assert.Equal(t, model.OrderStatusCancelled, out.OrderStatus)
	assert.Equal(t, model.OrderPaymentRefunded, out.PaymentStatus)
	assert.True(t, out.RefundAmount.Equal(total))
	assert.Equal(t, "rfnd_1", out.Payment.RefundID)
	assert.Equal(t, "changed my mind", out.CancellationReason)

	f.gw.AssertNumberOfCalls(t, "CreateRefund", 1)
	assert.Equal(t, model.PaymentStatusRefunded, f.store.payments[0].Status)
	if assert.Len(t, f.store.payTxs, 1) {
		assert.Equal(t, model.TransactionRefund, f.store.payTxs[0].Type)
		assert.Equal(t, model.TransactionStatusSuccess, f.store.payTxs[0].Status)
		assert.True(t, f.store.payTxs[0].Amount.Equal(total))
	}

	events := f.timelineEvents("o-1")
	assert.Contains(t, events, model.EventOrderCancelled)
	assert.Contains(t, events, model.EventRefundInitiated)
}

func TestCancel_IncompletePaymentIssuesNoRefund(t *testing.T) {
	f := newFixture()
	f.notifier.On("Publish", mock.Anything, mock.Anything).Return(nil)
	f.store.orders["o-1"] = model.Order{
		ID: "o-1", OrderNumber: "ORD-X", UserID: "user-1",
		OrderStatus:   model.OrderStatusPending,
		PaymentStatus: model.OrderPaymentPending,
		TotalAmount:   decimal.NewFromInt(500),
	}

	out, err := f.status.Cancel(context.Background(), "user-1", false, "o-1", "")
	assert.NoError(t, err)
	assert.Equal(t, model.OrderStatusCancelled, out.OrderStatus)
	assert.Equal(t, model.OrderPaymentPending, out.PaymentStatus)
	f.gw.AssertNotCalled(t, "CreateRefund", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, f.store.payTxs)
}

func TestCancel_NonCancellableStatus(t *testing.T) {
	f := newFixture()
	f.store.orders["o-1"] = model.Order{
		ID: "o-1", OrderNumber: "ORD-X", UserID: "user-1",
		OrderStatus: model.OrderStatusShipped,
	}

	_, err := f.status.Cancel(context.Background(), "user-1", false, "o-1", "")
	if he, ok := AsHTTPError(err); assert.True(t, ok) {
		assert.Equal(t, http.StatusBadRequest, he.Status)
	}
	assert.Equal(t, model.OrderStatusShipped, f.storedOrder("o-1").OrderStatus)
}

func TestCancel_NotOwner(t *testing.T) {
	f := newFixture()
	f.store.orders["o-1"] = model.Order{
		ID: "o-1", OrderNumber: "ORD-X", UserID: "user-1",
		OrderStatus: model.OrderStatusPending,
	}

	_, err := f.status.Cancel(context.Background(), "user-2", false, "o-1", "")
	if he, ok := AsHTTPError(err); assert.True(t, ok) {
		assert.Equal(t, http.StatusForbidden, he.Status)
	}
}
