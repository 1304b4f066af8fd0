package model

import "time"

type TimelineEventType string

const (
	EventOrderPlaced       TimelineEventType = "ORDER_PLACED"
	EventPaymentInitiated  TimelineEventType = "PAYMENT_INITIATED"
	EventPaymentCompleted  TimelineEventType = "PAYMENT_COMPLETED"
	EventPaymentFailed     TimelineEventType = "PAYMENT_FAILED"
	EventOrderConfirmed    TimelineEventType = "ORDER_CONFIRMED"
	EventOrderProcessing   TimelineEventType = "ORDER_PROCESSING"
	EventOrderPacked       TimelineEventType = "ORDER_PACKED"
	EventOrderShipped      TimelineEventType = "ORDER_SHIPPED"
	EventOutForDelivery    TimelineEventType = "OUT_FOR_DELIVERY"
	EventDeliveryAttempted TimelineEventType = "DELIVERY_ATTEMPTED"
	EventOrderDelivered    TimelineEventType = "ORDER_DELIVERED"
	EventOrderCancelled    TimelineEventType = "ORDER_CANCELLED"
	EventOrderReturned     TimelineEventType = "ORDER_RETURNED"
	EventRefundInitiated   TimelineEventType = "REFUND_INITIATED"
	EventRefundCompleted   TimelineEventType = "REFUND_COMPLETED"
	EventInternalNote      TimelineEventType = "INTERNAL_NOTE"
)

// システム操作の記録は performed_by = SYSTEM
const PerformedBySystem = "SYSTEM"

// 注文のライフサイクル監査ログ。追記のみで、更新・削除はしない。
// created_at順がそのまま顧客向けの追跡履歴になる。
type OrderTimeline struct {
	ID      string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OrderID string `gorm:"type:varchar(36);not null;index" json:"order_id"`

	EventType   TimelineEventType `gorm:"type:varchar(30);not null" json:"event_type"`
	Title       string            `gorm:"type:varchar(255);not null" json:"title"`
	Description string            `gorm:"type:varchar(1000)" json:"description"`

	OrderStatus   OrderStatus        `gorm:"type:varchar(20)" json:"order_status,omitempty"`
	PaymentStatus OrderPaymentStatus `gorm:"type:varchar(20)" json:"payment_status,omitempty"`

	Location        string `gorm:"type:varchar(255)" json:"location,omitempty"`
	TrackingDetails string `gorm:"type:varchar(500)" json:"tracking_details,omitempty"`

	PerformedBy     string `gorm:"type:varchar(36)" json:"performed_by"`
	PerformedByName string `gorm:"type:varchar(255)" json:"performed_by_name,omitempty"`

	IsCustomerVisible bool `gorm:"not null;default:true" json:"is_customer_visible"`
	IsCritical        bool `gorm:"not null;default:false" json:"is_critical"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index" json:"created_at"`
}

func (OrderTimeline) TableName() string { return "order_timeline" }
