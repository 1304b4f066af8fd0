package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

type OrderEventType string

const (
	EventOrderConfirmation OrderEventType = "ORDER_CONFIRMED"
	EventOrderStatusUpdate OrderEventType = "ORDER_STATUS_UPDATED"
	EventOrderCancellation OrderEventType = "ORDER_CANCELLED"
	EventPaymentConfirmed  OrderEventType = "PAYMENT_CONFIRMED"
	EventOrderDelivered    OrderEventType = "ORDER_DELIVERED"
)

// notification-serviceへ投げるイベント。fire-and-forget。
type OrderEvent struct {
	EventType   OrderEventType  `json:"event_type"`
	OrderID     string          `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	UserEmail   string          `json:"user_email"`
	UserName    string          `json:"user_name"`
	UserPhone   string          `json:"user_phone,omitempty"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Message     string          `json:"message"`

	OldStatus          string `json:"old_status,omitempty"`
	NewStatus          string `json:"new_status,omitempty"`
	TrackingNumber     string `json:"tracking_number,omitempty"`
	TransactionID      string `json:"transaction_id,omitempty"`
	CancellationReason string `json:"cancellation_reason,omitempty"`
	DeliveryAddress    string `json:"delivery_address,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

type Notifier interface {
	Publish(ctx context.Context, event OrderEvent) error
}

type HTTPNotifier struct {
	baseURL string
	client  *http.Client
}

func NewHTTPNotifier(baseURL string) *HTTPNotifier {
	return &HTTPNotifier{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 3 * time.Second},
	}
}

func (n *HTTPNotifier) Publish(ctx context.Context, event OrderEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		n.baseURL+"/api/notifications/events", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("notification service: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("notification service: status %d", res.StatusCode)
	}
	return nil
}

// 通知先未設定の環境用
type NopNotifier struct{}

func (NopNotifier) Publish(ctx context.Context, event OrderEvent) error { return nil }
