package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "PENDING"
	OrderStatusConfirmed      OrderStatus = "CONFIRMED"
	OrderStatusProcessing     OrderStatus = "PROCESSING"
	OrderStatusPacked         OrderStatus = "PACKED"
	OrderStatusShipped        OrderStatus = "SHIPPED"
	OrderStatusOutForDelivery OrderStatus = "OUT_FOR_DELIVERY"
	OrderStatusDelivered      OrderStatus = "DELIVERED"
	OrderStatusCancelled      OrderStatus = "CANCELLED"
	OrderStatusReturned       OrderStatus = "RETURNED"
)

// 注文に紐づく支払いの状態（Payment集約のstatusとは別物）
type OrderPaymentStatus string

const (
	OrderPaymentPending           OrderPaymentStatus = "PENDING"
	OrderPaymentProcessing        OrderPaymentStatus = "PROCESSING"
	OrderPaymentCompleted         OrderPaymentStatus = "COMPLETED"
	OrderPaymentFailed            OrderPaymentStatus = "FAILED"
	OrderPaymentCancelled         OrderPaymentStatus = "CANCELLED"
	OrderPaymentRefunded          OrderPaymentStatus = "REFUNDED"
	OrderPaymentPartiallyRefunded OrderPaymentStatus = "PARTIALLY_REFUNDED"
)

// 注文集約。物理削除はしない（キャンセルはステータス）。
type Order struct {
	ID          string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OrderNumber string `gorm:"type:varchar(40);not null;uniqueIndex" json:"order_number"`
	UserID      string `gorm:"type:varchar(36);not null;index" json:"user_id"`

	// 注文時点の連絡先スナップショット
	UserName  string `gorm:"type:varchar(255);not null" json:"user_name"`
	UserEmail string `gorm:"type:varchar(255);not null" json:"user_email"`
	UserPhone string `gorm:"type:varchar(20)" json:"user_phone"`

	Items           []OrderItem         `gorm:"foreignKey:OrderID" json:"items"`
	DeliveryAddress OrderAddress        `gorm:"embedded;embeddedPrefix:delivery_" json:"delivery_address"`
	Payment         OrderPaymentSummary `gorm:"embedded;embeddedPrefix:payment_" json:"payment"`
	Timeline        []OrderTimeline     `gorm:"foreignKey:OrderID" json:"timeline,omitempty"`

	OrderStatus   OrderStatus        `gorm:"type:varchar(20);not null;index" json:"order_status"`
	PaymentStatus OrderPaymentStatus `gorm:"type:varchar(20);not null;index" json:"payment_status"`

	Subtotal       decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"subtotal"`
	TaxAmount      decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"tax_amount"`
	DeliveryCharge decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"delivery_charge"`
	DiscountAmount decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"discount_amount"`
	TotalAmount    decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"total_amount"`

	TotalItems    int `gorm:"not null" json:"total_items"`
	TotalQuantity int `gorm:"not null" json:"total_quantity"`

	SpecialInstructions string `gorm:"type:varchar(500)" json:"special_instructions,omitempty"`

	EstimatedDelivery *time.Time `json:"estimated_delivery,omitempty"`
	ActualDelivery    *time.Time `json:"actual_delivery,omitempty"`

	CancelledAt        *time.Time      `json:"cancelled_at,omitempty"`
	CancellationReason string          `gorm:"type:varchar(500)" json:"cancellation_reason,omitempty"`
	RefundAmount       decimal.Decimal `gorm:"type:numeric(10,2)" json:"refund_amount"`

	TrackingNumber string `gorm:"type:varchar(40);index" json:"tracking_number,omitempty"`
	InvoiceNumber  string `gorm:"type:varchar(40)" json:"invoice_number,omitempty"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (Order) TableName() string { return "orders" }

// total = subtotal + tax + delivery - discount
// 金額フィールドを触ったら必ず呼ぶ。ズレたtotalは保存しない。
func (o *Order) RecalculateTotals() {
	o.TotalAmount = o.Subtotal.
		Add(o.TaxAmount).
		Add(o.DeliveryCharge).
		Sub(o.DiscountAmount)
}

// キャンセルできるのはPENDING/CONFIRMED/PROCESSINGだけ
func (o *Order) IsCancellable() bool {
	return o.OrderStatus == OrderStatusPending ||
		o.OrderStatus == OrderStatusConfirmed ||
		o.OrderStatus == OrderStatusProcessing
}

func (o *Order) IsRefundable() bool {
	return o.PaymentStatus == OrderPaymentCompleted &&
		(o.OrderStatus == OrderStatusCancelled || o.OrderStatus == OrderStatusReturned)
}

func (o *Order) IsTrackable() bool {
	return o.OrderStatus == OrderStatusShipped ||
		o.OrderStatus == OrderStatusOutForDelivery
}
