package usecase

import (
	"context"
	"errors"
	"log"
	"net/http"

	"mart/internal/domain/model"
	"mart/internal/external"
	repo "mart/internal/repository"
)

// 注文ステータスの遷移表。ここに無いペアは全部拒否。
// REFUNDEDは支払い側の状態であって注文ステータスの遷移先ではない。
var orderTransitions = map[model.OrderStatus][]model.OrderStatus{
	model.OrderStatusPending:        {model.OrderStatusConfirmed, model.OrderStatusCancelled},
	model.OrderStatusConfirmed:      {model.OrderStatusProcessing, model.OrderStatusCancelled},
	model.OrderStatusProcessing:     {model.OrderStatusPacked, model.OrderStatusCancelled},
	model.OrderStatusPacked:         {model.OrderStatusShipped},
	model.OrderStatusShipped:        {model.OrderStatusOutForDelivery},
	model.OrderStatusOutForDelivery: {model.OrderStatusDelivered},
	model.OrderStatusDelivered:      {model.OrderStatusReturned},
}

func canTransition(from model.OrderStatus, to model.OrderStatus) bool {
	for _, t := range orderTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

type statusEvent struct {
	eventType   model.TimelineEventType
	title       string
	description string
	critical    bool
}

// 遷移先ステータス→タイムラインイベントの対応表。
// 遷移表の到達先は全部ここに載っていること（テストで網羅を検査する）。
var statusEvents = map[model.OrderStatus]statusEvent{
	model.OrderStatusConfirmed: {
		eventType:   model.EventOrderConfirmed,
		title:       "Order Confirmed",
		description: "Your order has been confirmed and will be processed soon",
		critical:    true,
	},
	model.OrderStatusProcessing: {
		eventType:   model.EventOrderProcessing,
		title:       "Order Processing",
		description: "Your order is being prepared",
	},
	model.OrderStatusPacked: {
		eventType:   model.EventOrderPacked,
		title:       "Order Packed",
		description: "Your order has been packed and is ready for dispatch",
	},
	model.OrderStatusShipped: {
		eventType:   model.EventOrderShipped,
		title:       "Order Shipped",
		description: "Your order has been shipped",
		critical:    true,
	},
	model.OrderStatusOutForDelivery: {
		eventType:   model.EventOutForDelivery,
		title:       "Out for Delivery",
		description: "Your order is out for delivery",
	},
	model.OrderStatusDelivered: {
		eventType:   model.EventOrderDelivered,
		title:       "Order Delivered",
		description: "Your order has been delivered successfully",
		critical:    true,
	},
	model.OrderStatusCancelled: {
		eventType:   model.EventOrderCancelled,
		title:       "Order Cancelled",
		description: "Your order has been cancelled",
		critical:    true,
	},
	model.OrderStatusReturned: {
		eventType:   model.EventOrderReturned,
		title:       "Order Returned",
		description: "Your order has been returned",
	},
}

type OrderStatusUsecase struct {
	ordersUC *OrderUsecase
	tx       repo.TransactionManager
	payments *PaymentUsecase
	idGen    IDGenerator
	clock    Clock
	numbers  NumberGenerator
}

func NewOrderStatusUsecase(
	ordersUC *OrderUsecase,
	tx repo.TransactionManager,
	payments *PaymentUsecase,
	idGen IDGenerator,
	clock Clock,
	numbers NumberGenerator,
) *OrderStatusUsecase {
	return &OrderStatusUsecase{
		ordersUC: ordersUC,
		tx:       tx,
		payments: payments,
		idGen:    idGen,
		clock:    clock,
		numbers:  numbers,
	}
}

type UpdateStatusInput struct {
	NewStatus model.OrderStatus `json:"new_status"`
	Notes     string            `json:"notes"`
	Location  string            `json:"location"`
}

// 管理者によるステータス更新。遷移＋副作用＋タイムライン追記を1トランザクションで行う。
func (u *OrderStatusUsecase) Update(ctx context.Context, orderID string, in UpdateStatusInput, performedBy string, performedByName string) (OrderOutput, error) {
	if _, ok := statusEvents[in.NewStatus]; !ok {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "unknown order status")
	}

	var order model.Order
	var oldStatus model.OrderStatus
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		order, err = r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "order not found")
		}
		if err != nil {
			return err
		}

		oldStatus = order.OrderStatus
		if !canTransition(oldStatus, in.NewStatus) {
			return NewHTTPError(http.StatusBadRequest,
				"invalid status transition from "+string(oldStatus)+" to "+string(in.NewStatus))
		}

		if in.NewStatus == model.OrderStatusCancelled {
			reason := in.Notes
			if reason == "" {
				reason = "Cancelled by admin"
			}
			return u.applyCancellation(ctx, r, &order, reason, performedBy, performedByName)
		}
		return u.applyTransition(ctx, r, &order, in, performedBy, performedByName)
	})
	u.ordersUC.cache.invalidate(orderID, order.OrderNumber)
	if err != nil {
		return OrderOutput{}, err
	}

	u.notifyStatusChange(ctx, order, oldStatus)
	return toOrderOutput(order), nil
}

// 本人（または管理者）によるキャンセル。キャンセル可能なステータスでなければ拒否。
func (u *OrderStatusUsecase) Cancel(ctx context.Context, userID string, isAdmin bool, orderID string, reason string) (OrderOutput, error) {
	if reason == "" {
		reason = "Cancelled by customer"
	}

	var order model.Order
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		order, err = r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "order not found")
		}
		if err != nil {
			return err
		}
		if !isAdmin && order.UserID != userID {
			return NewHTTPError(http.StatusForbidden, "order does not belong to user")
		}
		if !order.IsCancellable() {
			return NewHTTPError(http.StatusBadRequest,
				"order in status "+string(order.OrderStatus)+" cannot be cancelled")
		}
		return u.applyCancellation(ctx, r, &order, reason, userID, "")
	})
	u.ordersUC.cache.invalidate(orderID, order.OrderNumber)
	if err != nil {
		return OrderOutput{}, err
	}

	u.ordersUC.notify(ctx, order, external.OrderEvent{
		EventType:          external.EventOrderCancellation,
		Message:            "Your order " + order.OrderNumber + " has been cancelled",
		CancellationReason: order.CancellationReason,
	})
	return toOrderOutput(order), nil
}

func (u *OrderStatusUsecase) applyTransition(ctx context.Context, r repo.TxRepos, order *model.Order, in UpdateStatusInput, performedBy string, performedByName string) error {
	now := u.clock.Now()
	order.OrderStatus = in.NewStatus

	switch in.NewStatus {
	case model.OrderStatusShipped:
		if order.TrackingNumber == "" {
			order.TrackingNumber = u.numbers.TrackingNumber()
		}
	case model.OrderStatusDelivered:
		order.ActualDelivery = &now
	}

	if err := r.Orders().Save(ctx, *order); err != nil {
		return err
	}

	ev := statusEvents[in.NewStatus]
	desc := ev.description
	if in.NewStatus == model.OrderStatusShipped && order.TrackingNumber != "" {
		desc += ". Tracking number: " + order.TrackingNumber
	}
	if in.Notes != "" {
		desc += ". " + in.Notes
	}
	return r.Timeline().Append(ctx, model.OrderTimeline{
		ID:                u.idGen.NewID(),
		OrderID:           order.ID,
		EventType:         ev.eventType,
		Title:             ev.title,
		Description:       desc,
		OrderStatus:       order.OrderStatus,
		PaymentStatus:     order.PaymentStatus,
		Location:          in.Location,
		PerformedBy:       performedBy,
		PerformedByName:   performedByName,
		IsCustomerVisible: true,
		IsCritical:        ev.critical,
	})
}

// キャンセル本体。支払い済みなら全額リファンドまで含めて原子的に行う。
// リファンドに失敗したらキャンセル自体を巻き戻す（状態だけ変わって返金されないのが最悪）。
func (u *OrderStatusUsecase) applyCancellation(ctx context.Context, r repo.TxRepos, order *model.Order, reason string, performedBy string, performedByName string) error {
	now := u.clock.Now()
	order.OrderStatus = model.OrderStatusCancelled
	order.CancelledAt = &now
	order.CancellationReason = reason

	refunded := false
	if order.PaymentStatus == model.OrderPaymentCompleted {
		p, err := r.Payments().FindByOrderID(ctx, order.ID)
		switch {
		case errors.Is(err, repo.ErrNotFound):
			// 支払い行が無い（代引き等）。返金対象なし。
			log.Printf("WARN: no payment found for completed order %s, skipping refund", order.OrderNumber)
		case err != nil:
			return err
		default:
			res, err := u.payments.Refund(ctx, RefundInput{
				PaymentID: p.ID,
				Reason:    "Order cancellation",
			})
			if err != nil {
				return err
			}
			refunded = true
			order.PaymentStatus = model.OrderPaymentRefunded
			order.RefundAmount = res.Amount
			order.Payment.RefundID = res.RefundID
			order.Payment.RefundAmount = res.Amount
			order.Payment.RefundDate = &now
			order.Payment.RefundReason = "Order cancellation"
		}
	}

	if err := r.Orders().Save(ctx, *order); err != nil {
		return err
	}

	ev := statusEvents[model.OrderStatusCancelled]
	if err := r.Timeline().Append(ctx, model.OrderTimeline{
		ID:                u.idGen.NewID(),
		OrderID:           order.ID,
		EventType:         ev.eventType,
		Title:             ev.title,
		Description:       "Order cancelled: " + reason,
		OrderStatus:       order.OrderStatus,
		PaymentStatus:     order.PaymentStatus,
		PerformedBy:       performedBy,
		PerformedByName:   performedByName,
		IsCustomerVisible: true,
		IsCritical:        true,
	}); err != nil {
		return err
	}

	if refunded {
		return r.Timeline().Append(ctx, model.OrderTimeline{
			ID:                u.idGen.NewID(),
			OrderID:           order.ID,
			EventType:         model.EventRefundInitiated,
			Title:             "Refund Initiated",
			Description:       "Refund of " + order.RefundAmount.StringFixed(2) + " INR has been initiated",
			OrderStatus:       order.OrderStatus,
			PaymentStatus:     order.PaymentStatus,
			PerformedBy:       model.PerformedBySystem,
			IsCustomerVisible: true,
			IsCritical:        true,
		})
	}
	return nil
}

func (u *OrderStatusUsecase) notifyStatusChange(ctx context.Context, order model.Order, oldStatus model.OrderStatus) {
	event := external.OrderEvent{
		EventType: external.EventOrderStatusUpdate,
		Message:   "Your order " + order.OrderNumber + " is now " + string(order.OrderStatus),
		OldStatus: string(oldStatus),
		NewStatus: string(order.OrderStatus),
	}
	switch order.OrderStatus {
	case model.OrderStatusShipped:
		event.TrackingNumber = order.TrackingNumber
	case model.OrderStatusDelivered:
		event.EventType = external.EventOrderDelivered
		event.Message = "Your order " + order.OrderNumber + " has been delivered"
	case model.OrderStatusCancelled:
		event.EventType = external.EventOrderCancellation
		event.Message = "Your order " + order.OrderNumber + " has been cancelled"
		event.CancellationReason = order.CancellationReason
	}
	u.ordersUC.notify(ctx, order, event)
}
