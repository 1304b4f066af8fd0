package usecase

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"mart/internal/domain/model"
	"mart/internal/external"
	repo "mart/internal/repository"

	"github.com/shopspring/decimal"
)

// 税率18%、500以上で送料無料、それ未満は一律50
var (
	taxRate                = decimal.NewFromFloat(0.18)
	freeDeliveryThreshold  = decimal.NewFromInt(500)
	standardDeliveryCharge = decimal.NewFromInt(50)
)

const (
	estimatedDeliveryDays = 3
	orderCacheTTL         = 5 * time.Minute
)

type OrderUsecase struct {
	orders   repo.OrderRepository
	timeline repo.OrderTimelineRepository
	tx       repo.TransactionManager
	users    external.UserClient
	carts    external.CartClient
	notifier external.Notifier
	payments *PaymentUsecase
	idGen    IDGenerator
	clock    Clock
	numbers  NumberGenerator
	cache    *orderCache
}

func NewOrderUsecase(
	orders repo.OrderRepository,
	timeline repo.OrderTimelineRepository,
	tx repo.TransactionManager,
	users external.UserClient,
	carts external.CartClient,
	notifier external.Notifier,
	payments *PaymentUsecase,
	idGen IDGenerator,
	clock Clock,
	numbers NumberGenerator,
) *OrderUsecase {
	return &OrderUsecase{
		orders:   orders,
		timeline: timeline,
		tx:       tx,
		users:    users,
		carts:    carts,
		notifier: notifier,
		payments: payments,
		idGen:    idGen,
		clock:    clock,
		numbers:  numbers,
		cache:    newOrderCache(orderCacheTTL, clock),
	}
}

type CreateOrderInput struct {
	DeliveryAddress     model.OrderAddress  `json:"delivery_address"`
	PaymentMethod       model.PaymentMethod `json:"payment_method"`
	SpecialInstructions string              `json:"special_instructions"`
}

type OrderOutput struct {
	ID          string `json:"id"`
	OrderNumber string `json:"order_number"`
	UserID      string `json:"user_id"`
	UserName    string `json:"user_name"`
	UserEmail   string `json:"user_email"`
	UserPhone   string `json:"user_phone,omitempty"`

	Items           []model.OrderItem         `json:"items"`
	DeliveryAddress model.OrderAddress        `json:"delivery_address"`
	Payment         model.OrderPaymentSummary `json:"payment"`
	Timeline        []model.OrderTimeline     `json:"timeline,omitempty"`

	OrderStatus   model.OrderStatus        `json:"order_status"`
	PaymentStatus model.OrderPaymentStatus `json:"payment_status"`

	Subtotal       decimal.Decimal `json:"subtotal"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	DeliveryCharge decimal.Decimal `json:"delivery_charge"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	TotalAmount    decimal.Decimal `json:"total_amount"`

	TotalItems    int `json:"total_items"`
	TotalQuantity int `json:"total_quantity"`

	SpecialInstructions string `json:"special_instructions,omitempty"`

	EstimatedDelivery *time.Time `json:"estimated_delivery,omitempty"`
	ActualDelivery    *time.Time `json:"actual_delivery,omitempty"`

	CancelledAt        *time.Time      `json:"cancelled_at,omitempty"`
	CancellationReason string          `json:"cancellation_reason,omitempty"`
	RefundAmount       decimal.Decimal `json:"refund_amount"`

	TrackingNumber string `json:"tracking_number,omitempty"`
	InvoiceNumber  string `json:"invoice_number,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// 注文作成の応答にだけ載るチェックアウト情報
	PaymentDetail *PaymentOutput `json:"payment_detail,omitempty"`
}

func toOrderOutput(o model.Order) OrderOutput {
	return OrderOutput{
		ID:                  o.ID,
		OrderNumber:         o.OrderNumber,
		UserID:              o.UserID,
		UserName:            o.UserName,
		UserEmail:           o.UserEmail,
		UserPhone:           o.UserPhone,
		Items:               o.Items,
		DeliveryAddress:     o.DeliveryAddress,
		Payment:             o.Payment,
		Timeline:            o.Timeline,
		OrderStatus:         o.OrderStatus,
		PaymentStatus:       o.PaymentStatus,
		Subtotal:            o.Subtotal,
		TaxAmount:           o.TaxAmount,
		DeliveryCharge:      o.DeliveryCharge,
		DiscountAmount:      o.DiscountAmount,
		TotalAmount:         o.TotalAmount,
		TotalItems:          o.TotalItems,
		TotalQuantity:       o.TotalQuantity,
		SpecialInstructions: o.SpecialInstructions,
		EstimatedDelivery:   o.EstimatedDelivery,
		ActualDelivery:      o.ActualDelivery,
		CancelledAt:         o.CancelledAt,
		CancellationReason:  o.CancellationReason,
		RefundAmount:        o.RefundAmount,
		TrackingNumber:      o.TrackingNumber,
		InvoiceNumber:       o.InvoiceNumber,
		CreatedAt:           o.CreatedAt,
		UpdatedAt:           o.UpdatedAt,
	}
}

// カートから注文を起こすサガ。
// 注文の永続化までが1つ目の原子単位、支払い結果の反映が2つ目。
// 支払いが失敗しても注文行は監査のために残す（呼び側にはエラーを返す）。
func (u *OrderUsecase) Create(ctx context.Context, userID string, in CreateOrderInput) (OrderOutput, error) {
	if in.PaymentMethod == "" {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "payment method is required")
	}
	if in.DeliveryAddress.AddressLine1 == "" || in.DeliveryAddress.City == "" ||
		in.DeliveryAddress.State == "" || in.DeliveryAddress.Pincode == "" {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "delivery address is incomplete")
	}

	user, err := u.users.GetUser(ctx, userID)
	if errors.Is(err, external.ErrUserNotFound) {
		return OrderOutput{}, NewHTTPError(http.StatusNotFound, "user not found")
	}
	if err != nil {
		return OrderOutput{}, NewHTTPError(http.StatusBadGateway, "user service unavailable")
	}

	cart, err := u.carts.GetCart(ctx, userID)
	if err != nil {
		return OrderOutput{}, NewHTTPError(http.StatusBadGateway, "cart service unavailable")
	}
	if cart.IsEmpty() {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "cart is empty")
	}

	// 価格・在庫の再検証はbest-effort。落ちていてもチェックアウトは止めない。
	if validated, err := u.carts.ValidateCart(ctx, userID); err != nil {
		log.Printf("WARN: cart validation for user %s: %v", userID, err)
	} else if !validated.IsEmpty() {
		cart = validated
	}

	order := u.buildOrder(user, cart, in)

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		if err := r.Orders().Create(ctx, order); err != nil {
			return err
		}
		return r.Timeline().Append(ctx, model.OrderTimeline{
			ID:                u.idGen.NewID(),
			OrderID:           order.ID,
			EventType:         model.EventOrderPlaced,
			Title:             "Order Placed",
			Description:       "Your order " + order.OrderNumber + " has been placed successfully",
			OrderStatus:       order.OrderStatus,
			PaymentStatus:     order.PaymentStatus,
			PerformedBy:       userID,
			PerformedByName:   user.Name,
			IsCustomerVisible: true,
			IsCritical:        true,
		})
	})
	if err != nil {
		return OrderOutput{}, err
	}

	var paymentDetail *PaymentOutput
	if in.PaymentMethod != model.MethodCashOnDelivery {
		paymentDetail, err = u.settlePayment(ctx, &order)
		if err != nil {
			return OrderOutput{}, err
		}
	}

	// ここから先は注文成立後のbest-effort
	if err := u.carts.ClearCart(ctx, userID); err != nil {
		log.Printf("WARN: clear cart for user %s: %v", userID, err)
	}
	u.notify(ctx, order, external.OrderEvent{
		EventType: external.EventOrderConfirmation,
		Message:   "Your order " + order.OrderNumber + " has been placed",
	})

	out := toOrderOutput(order)
	out.PaymentDetail = paymentDetail
	return out, nil
}

func (u *OrderUsecase) buildOrder(user external.User, cart external.CartSummary, in CreateOrderInput) model.Order {
	now := u.clock.Now()
	estimated := now.AddDate(0, 0, estimatedDeliveryDays)

	order := model.Order{
		ID:          u.idGen.NewID(),
		OrderNumber: u.numbers.OrderNumber(),
		UserID:      user.ID,
		UserName:    user.Name,
		UserEmail:   user.Email,
		UserPhone:   user.Phone,

		DeliveryAddress: in.DeliveryAddress,
		Payment: model.OrderPaymentSummary{
			Method:   in.PaymentMethod,
			Gateway:  model.GatewayRazorpay,
			Currency: "INR",
		},

		OrderStatus:   model.OrderStatusPending,
		PaymentStatus: model.OrderPaymentPending,

		Subtotal:       cart.Subtotal,
		DiscountAmount: cart.TotalSavings,
		TotalItems:     cart.TotalItems,
		TotalQuantity:  cart.TotalQuantity,

		SpecialInstructions: in.SpecialInstructions,
		EstimatedDelivery:   &estimated,
		InvoiceNumber:       u.numbers.InvoiceNumber(),
	}
	if in.PaymentMethod == model.MethodCashOnDelivery {
		order.Payment.Gateway = ""
	}

	for _, ci := range cart.Items {
		item := model.OrderItem{
			ID:            u.idGen.NewID(),
			OrderID:       order.ID,
			ProductID:     ci.ProductID,
			ProductName:   ci.ProductName,
			ProductImage:  ci.ProductImage,
			SKU:           ci.SKU,
			UnitPrice:     ci.UnitPrice,
			OriginalPrice: ci.OriginalPrice,
			Discount:      ci.Discount,
			Quantity:      ci.Quantity,
		}
		item.RecalculateLineTotal()
		order.Items = append(order.Items, item)
	}

	taxable := order.Subtotal.Sub(order.DiscountAmount)
	if taxable.IsNegative() {
		taxable = decimal.Zero
	}
	order.TaxAmount = taxable.Mul(taxRate).Round(2)
	if order.Subtotal.GreaterThanOrEqual(freeDeliveryThreshold) {
		order.DeliveryCharge = decimal.Zero
	} else {
		order.DeliveryCharge = standardDeliveryCharge
	}
	order.RecalculateTotals()
	return order
}

// ゲートウェイへの支払い起票と、結果の注文側への反映。
// 失敗時は注文を残したままFAILEDを記録し、サガ全体をエラーで終える。
func (u *OrderUsecase) settlePayment(ctx context.Context, order *model.Order) (*PaymentOutput, error) {
	detail, payErr := u.payments.Initiate(ctx, InitiatePaymentInput{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Amount:      order.TotalAmount,
		Currency:    "INR",
		Method:      order.Payment.Method,
	})

	now := u.clock.Now()
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		if payErr != nil {
			order.PaymentStatus = model.OrderPaymentFailed
			order.Payment.FailureReason = payErr.Error()
			if err := r.Orders().Save(ctx, *order); err != nil {
				return err
			}
			return r.Timeline().Append(ctx, model.OrderTimeline{
				ID:                u.idGen.NewID(),
				OrderID:           order.ID,
				EventType:         model.EventPaymentFailed,
				Title:             "Payment Failed",
				Description:       "Payment could not be completed: " + payErr.Error(),
				OrderStatus:       order.OrderStatus,
				PaymentStatus:     order.PaymentStatus,
				PerformedBy:       model.PerformedBySystem,
				IsCustomerVisible: true,
				IsCritical:        true,
			})
		}

		order.PaymentStatus = model.OrderPaymentCompleted
		order.Payment.PaymentID = detail.GatewayOrderID
		order.Payment.TransactionID = detail.PaymentID
		order.Payment.PaidAmount = order.TotalAmount
		order.Payment.PaymentDate = &now
		if err := r.Orders().Save(ctx, *order); err != nil {
			return err
		}
		return r.Timeline().Append(ctx, model.OrderTimeline{
			ID:                u.idGen.NewID(),
			OrderID:           order.ID,
			EventType:         model.EventPaymentCompleted,
			Title:             "Payment Completed",
			Description:       "Payment of " + order.TotalAmount.StringFixed(2) + " INR received",
			OrderStatus:       order.OrderStatus,
			PaymentStatus:     order.PaymentStatus,
			PerformedBy:       model.PerformedBySystem,
			IsCustomerVisible: true,
			IsCritical:        true,
		})
	})
	u.cache.invalidate(order.ID, order.OrderNumber)
	if err != nil {
		return nil, err
	}
	if payErr != nil {
		if he, ok := AsHTTPError(payErr); ok {
			return nil, he
		}
		return nil, NewHTTPError(http.StatusBadRequest, "order could not be completed: payment failed")
	}
	return &detail, nil
}

func (u *OrderUsecase) notify(ctx context.Context, order model.Order, event external.OrderEvent) {
	event.OrderID = order.ID
	event.OrderNumber = order.OrderNumber
	event.UserEmail = order.UserEmail
	event.UserName = order.UserName
	event.UserPhone = order.UserPhone
	event.TotalAmount = order.TotalAmount
	if event.DeliveryAddress == "" {
		event.DeliveryAddress = formatAddress(order.DeliveryAddress)
	}
	event.Timestamp = u.clock.Now()

	if err := u.notifier.Publish(ctx, event); err != nil {
		log.Printf("WARN: publish %s for order %s: %v", event.EventType, order.OrderNumber, err)
	}
}

func formatAddress(a model.OrderAddress) string {
	parts := []string{a.AddressLine1}
	if a.AddressLine2 != "" {
		parts = append(parts, a.AddressLine2)
	}
	parts = append(parts, a.City, a.State, a.Pincode)
	return strings.Join(parts, ", ")
}

func (u *OrderUsecase) GetByID(ctx context.Context, userID string, isAdmin bool, orderID string) (OrderOutput, error) {
	order, ok := u.cache.getByID(orderID)
	if !ok {
		var err error
		order, err = u.orders.FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return OrderOutput{}, NewHTTPError(http.StatusNotFound, "order not found")
		}
		if err != nil {
			return OrderOutput{}, err
		}
		u.cache.put(order)
	}
	if !isAdmin && order.UserID != userID {
		return OrderOutput{}, NewHTTPError(http.StatusForbidden, "order does not belong to user")
	}
	return toOrderOutput(order), nil
}

func (u *OrderUsecase) GetByNumber(ctx context.Context, userID string, isAdmin bool, orderNumber string) (OrderOutput, error) {
	order, ok := u.cache.getByNumber(orderNumber)
	if !ok {
		var err error
		order, err = u.orders.FindByOrderNumber(ctx, orderNumber)
		if errors.Is(err, repo.ErrNotFound) {
			return OrderOutput{}, NewHTTPError(http.StatusNotFound, "order not found")
		}
		if err != nil {
			return OrderOutput{}, err
		}
		u.cache.put(order)
	}
	if !isAdmin && order.UserID != userID {
		return OrderOutput{}, NewHTTPError(http.StatusForbidden, "order does not belong to user")
	}
	return toOrderOutput(order), nil
}

type OrderPageOutput struct {
	Orders     []OrderOutput `json:"orders"`
	Page       int           `json:"page"`
	Limit      int           `json:"limit"`
	Total      int64         `json:"total"`
	TotalPages int64         `json:"total_pages"`
}

func toOrderPageOutput(orders []model.Order, page int, limit int, total int64) OrderPageOutput {
	outs := make([]OrderOutput, 0, len(orders))
	for _, o := range orders {
		outs = append(outs, toOrderOutput(o))
	}
	if limit <= 0 {
		limit = 20
	}
	totalPages := (total + int64(limit) - 1) / int64(limit)
	return OrderPageOutput{Orders: outs, Page: page, Limit: limit, Total: total, TotalPages: totalPages}
}

func (u *OrderUsecase) ListByUser(ctx context.Context, userID string, page int, limit int) (OrderPageOutput, error) {
	orders, total, err := u.orders.ListByUserID(ctx, userID, page, limit)
	if err != nil {
		return OrderPageOutput{}, err
	}
	return toOrderPageOutput(orders, page, limit, total), nil
}

// 管理者用
func (u *OrderUsecase) ListByStatus(ctx context.Context, status model.OrderStatus, page int, limit int) (OrderPageOutput, error) {
	orders, total, err := u.orders.ListByStatus(ctx, status, page, limit)
	if err != nil {
		return OrderPageOutput{}, err
	}
	return toOrderPageOutput(orders, page, limit, total), nil
}

// 管理者用。注文番号・氏名・メールの部分一致。
func (u *OrderUsecase) Search(ctx context.Context, term string, page int, limit int) (OrderPageOutput, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return OrderPageOutput{}, NewHTTPError(http.StatusBadRequest, "search term is required")
	}
	orders, total, err := u.orders.Search(ctx, term, page, limit)
	if err != nil {
		return OrderPageOutput{}, err
	}
	return toOrderPageOutput(orders, page, limit, total), nil
}

type TrackOrderOutput struct {
	OrderNumber       string                `json:"order_number"`
	OrderStatus       model.OrderStatus     `json:"order_status"`
	TrackingNumber    string                `json:"tracking_number,omitempty"`
	EstimatedDelivery *time.Time            `json:"estimated_delivery,omitempty"`
	ActualDelivery    *time.Time            `json:"actual_delivery,omitempty"`
	City              string                `json:"city"`
	State             string                `json:"state"`
	Timeline          []model.OrderTimeline `json:"timeline"`
}

// 未認証でも叩ける追跡。顧客可視のイベントだけを返す。
func (u *OrderUsecase) Track(ctx context.Context, orderNumber string) (TrackOrderOutput, error) {
	order, ok := u.cache.getByNumber(orderNumber)
	if !ok {
		var err error
		order, err = u.orders.FindByOrderNumber(ctx, orderNumber)
		if errors.Is(err, repo.ErrNotFound) {
			return TrackOrderOutput{}, NewHTTPError(http.StatusNotFound, "order not found")
		}
		if err != nil {
			return TrackOrderOutput{}, err
		}
		u.cache.put(order)
	}

	visible := make([]model.OrderTimeline, 0, len(order.Timeline))
	for _, e := range order.Timeline {
		if e.IsCustomerVisible {
			visible = append(visible, e)
		}
	}

	return TrackOrderOutput{
		OrderNumber:       order.OrderNumber,
		OrderStatus:       order.OrderStatus,
		TrackingNumber:    order.TrackingNumber,
		EstimatedDelivery: order.EstimatedDelivery,
		ActualDelivery:    order.ActualDelivery,
		City:              order.DeliveryAddress.City,
		State:             order.DeliveryAddress.State,
		Timeline:          visible,
	}, nil
}

type OrderStatisticsOutput struct {
	TotalOrders       int64           `json:"total_orders"`
	TotalSpent        decimal.Decimal `json:"total_spent"`
	AverageOrderValue decimal.Decimal `json:"average_order_value"`
}

func (u *OrderUsecase) Statistics(ctx context.Context, userID string) (OrderStatisticsOutput, error) {
	count, err := u.orders.CountByUserID(ctx, userID)
	if err != nil {
		return OrderStatisticsOutput{}, err
	}
	spent, err := u.orders.TotalSpentByUserID(ctx, userID)
	if err != nil {
		return OrderStatisticsOutput{}, err
	}

	avg := decimal.Zero
	if count > 0 {
		avg = spent.Div(decimal.NewFromInt(count)).Round(2)
	}
	return OrderStatisticsOutput{TotalOrders: count, TotalSpent: spent, AverageOrderValue: avg}, nil
}
