package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	MethodCreditCard     PaymentMethod = "CREDIT_CARD"
	MethodDebitCard      PaymentMethod = "DEBIT_CARD"
	MethodUPI            PaymentMethod = "UPI"
	MethodNetBanking     PaymentMethod = "NET_BANKING"
	MethodWallet         PaymentMethod = "WALLET"
	MethodCashOnDelivery PaymentMethod = "CASH_ON_DELIVERY"
)

type GatewayProvider string

const (
	GatewayRazorpay GatewayProvider = "RAZORPAY"
)

type PaymentStatus string

const (
	PaymentStatusPending           PaymentStatus = "PENDING"
	PaymentStatusProcessing        PaymentStatus = "PROCESSING"
	PaymentStatusSuccess           PaymentStatus = "SUCCESS"
	PaymentStatusFailed            PaymentStatus = "FAILED"
	PaymentStatusCancelled         PaymentStatus = "CANCELLED"
	PaymentStatusRefunded          PaymentStatus = "REFUNDED"
	PaymentStatusPartiallyRefunded PaymentStatus = "PARTIALLY_REFUNDED"
)

// PENDING → PROCESSING → SUCCESS | FAILED、SUCCESS → REFUNDED | PARTIALLY_REFUNDED。
// FAILED/REFUNDED/CANCELLEDからは遷移しない。
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:           {PaymentStatusProcessing, PaymentStatusSuccess, PaymentStatusFailed, PaymentStatusCancelled},
	PaymentStatusProcessing:        {PaymentStatusSuccess, PaymentStatusFailed},
	PaymentStatusSuccess:           {PaymentStatusRefunded, PaymentStatusPartiallyRefunded},
	PaymentStatusPartiallyRefunded: {PaymentStatusRefunded, PaymentStatusPartiallyRefunded},
}

func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, t := range paymentTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// 支払い集約。1注文につき非終端（PENDING/PROCESSING）は最大1件。
type Payment struct {
	ID      string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OrderID string `gorm:"type:varchar(36);not null;index" json:"order_id"`
	UserID  string `gorm:"type:varchar(36);not null;index" json:"user_id"`

	Amount   decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"amount"`
	Currency string          `gorm:"type:varchar(3);not null;default:'INR'" json:"currency"`

	Method  PaymentMethod   `gorm:"type:varchar(20);not null" json:"method"`
	Gateway GatewayProvider `gorm:"type:varchar(20);not null" json:"gateway"`

	GatewayOrderID   string `gorm:"type:varchar(64);index" json:"gateway_order_id,omitempty"`
	GatewayPaymentID string `gorm:"type:varchar(64);index" json:"gateway_payment_id,omitempty"`

	Status PaymentStatus `gorm:"type:varchar(20);not null;index" json:"status"`

	CheckoutURL string `gorm:"type:varchar(500)" json:"checkout_url,omitempty"`

	PaymentDate *time.Time `json:"payment_date,omitempty"`

	PaymentFee decimal.Decimal `gorm:"type:numeric(10,2)" json:"payment_fee"`
	NetAmount  decimal.Decimal `gorm:"type:numeric(10,2)" json:"net_amount"`

	FailureReason string `gorm:"type:varchar(500)" json:"failure_reason,omitempty"`

	// 診断用。ゲートウェイ応答は2000文字で切り詰めて保存する。
	GatewayResponse string `gorm:"type:varchar(2000)" json:"-"`

	// マスク済みの支払い手段情報のみ。カード番号そのものは持たない。
	CardLastFour string `gorm:"type:varchar(4)" json:"card_last_four,omitempty"`
	CardBrand    string `gorm:"type:varchar(20)" json:"card_brand,omitempty"`
	CardType     string `gorm:"type:varchar(20)" json:"card_type,omitempty"`
	UpiID        string `gorm:"type:varchar(100)" json:"upi_id,omitempty"`
	BankName     string `gorm:"type:varchar(100)" json:"bank_name,omitempty"`
	WalletName   string `gorm:"type:varchar(100)" json:"wallet_name,omitempty"`

	Transactions []PaymentTransaction `gorm:"foreignKey:PaymentID" json:"transactions,omitempty"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (Payment) TableName() string { return "payments" }

func (p *Payment) IsCompleted() bool {
	return p.Status == PaymentStatusSuccess && p.PaymentDate != nil
}

// 同期verifyと非同期webhookが競合しても二重適用しないための判定に使う
func (p *Payment) IsNonTerminal() bool {
	return p.Status == PaymentStatusPending || p.Status == PaymentStatusProcessing
}

func (p *Payment) IsRefundable() bool {
	return p.Status == PaymentStatusSuccess && p.PaymentDate != nil
}

// 顧客向け表示用のマスク済み文字列
func (p *Payment) MaskedInfo() string {
	switch p.Method {
	case MethodCreditCard, MethodDebitCard:
		return p.CardBrand + " ending in " + p.CardLastFour
	case MethodUPI:
		if p.UpiID != "" {
			return "UPI: " + p.UpiID
		}
		return "UPI"
	case MethodNetBanking:
		if p.BankName != "" {
			return "Net Banking: " + p.BankName
		}
		return "Net Banking"
	case MethodWallet:
		if p.WalletName != "" {
			return "Wallet: " + p.WalletName
		}
		return "Wallet: " + string(p.Gateway)
	default:
		return string(p.Method)
	}
}
