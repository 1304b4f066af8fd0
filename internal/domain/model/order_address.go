package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 配送先のスナップショット（埋め込み）
type OrderAddress struct {
	ContactName  string `gorm:"type:varchar(255)" json:"contact_name"`
	ContactPhone string `gorm:"type:varchar(20)" json:"contact_phone"`
	AddressLine1 string `gorm:"type:varchar(255)" json:"address_line1"`
	AddressLine2 string `gorm:"type:varchar(255)" json:"address_line2,omitempty"`
	Landmark     string `gorm:"type:varchar(255)" json:"landmark,omitempty"`
	City         string `gorm:"type:varchar(100)" json:"city"`
	State        string `gorm:"type:varchar(100)" json:"state"`
	Pincode      string `gorm:"type:varchar(10)" json:"pincode"`
}

// 注文に埋め込む支払いサマリ。正はPayment集約で、こちらは表示用の写し。
type OrderPaymentSummary struct {
	Method  PaymentMethod   `gorm:"type:varchar(20);not null" json:"method"`
	Gateway GatewayProvider `gorm:"type:varchar(20)" json:"gateway,omitempty"`

	PaymentID     string `gorm:"type:varchar(64)" json:"payment_id,omitempty"`
	TransactionID string `gorm:"type:varchar(64)" json:"transaction_id,omitempty"`

	PaidAmount  decimal.Decimal `gorm:"type:numeric(10,2)" json:"paid_amount"`
	Currency    string          `gorm:"type:varchar(3);default:'INR'" json:"currency"`
	PaymentDate *time.Time      `json:"payment_date,omitempty"`

	FailureReason string `gorm:"type:varchar(500)" json:"failure_reason,omitempty"`

	RefundID     string          `gorm:"type:varchar(64)" json:"refund_id,omitempty"`
	RefundAmount decimal.Decimal `gorm:"type:numeric(10,2)" json:"refund_amount"`
	RefundDate   *time.Time      `json:"refund_date,omitempty"`
	RefundReason string          `gorm:"type:varchar(500)" json:"refund_reason,omitempty"`

	// カード情報は下4桁とブランドだけ。フル番号は保持しない。
	CardLastFour string `gorm:"type:varchar(4)" json:"card_last_four,omitempty"`
	CardBrand    string `gorm:"type:varchar(20)" json:"card_brand,omitempty"`
	UpiID        string `gorm:"type:varchar(100)" json:"upi_id,omitempty"`
	BankName     string `gorm:"type:varchar(100)" json:"bank_name,omitempty"`
}

func (p *OrderPaymentSummary) IsCompleted() bool {
	return p.PaymentDate != nil && p.PaidAmount.IsPositive()
}
