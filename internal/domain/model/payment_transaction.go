package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionPayment       TransactionType = "PAYMENT"
	TransactionRefund        TransactionType = "REFUND"
	TransactionPartialRefund TransactionType = "PARTIAL_REFUND"
	TransactionChargeback    TransactionType = "CHARGEBACK"
	TransactionAdjustment    TransactionType = "ADJUSTMENT"
)

type TransactionStatus string

const (
	TransactionStatusPending    TransactionStatus = "PENDING"
	TransactionStatusProcessing TransactionStatus = "PROCESSING"
	TransactionStatusSuccess    TransactionStatus = "SUCCESS"
	TransactionStatusFailed     TransactionStatus = "FAILED"
	TransactionStatusCancelled  TransactionStatus = "CANCELLED"
)

// ゲートウェイ側イベント1件につき1行。
// 成功したREFUND系の合計は支払い額を超えてはいけない。
type PaymentTransaction struct {
	ID        string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	PaymentID string `gorm:"type:varchar(36);not null;index" json:"payment_id"`

	// ゲートウェイ側のID。webhook再配送の重複判定キーになる。
	GatewayTransactionID string `gorm:"type:varchar(64);index" json:"gateway_transaction_id,omitempty"`

	Amount   decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"amount"`
	Currency string          `gorm:"type:varchar(3);not null;default:'INR'" json:"currency"`

	Type   TransactionType   `gorm:"type:varchar(20);not null" json:"type"`
	Status TransactionStatus `gorm:"type:varchar(20);not null" json:"status"`

	FailureReason string `gorm:"type:varchar(500)" json:"failure_reason,omitempty"`
	RefundReason  string `gorm:"type:varchar(500)" json:"refund_reason,omitempty"`

	ProcessedAt *time.Time `json:"processed_at,omitempty"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}

func (PaymentTransaction) TableName() string { return "payment_transactions" }

func (t *PaymentTransaction) IsSuccessful() bool {
	return t.Status == TransactionStatusSuccess
}

func (t *PaymentTransaction) IsRefund() bool {
	return t.Type == TransactionRefund || t.Type == TransactionPartialRefund
}
