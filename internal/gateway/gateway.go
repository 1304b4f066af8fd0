package gateway

import (
	"context"

	"github.com/shopspring/decimal"
)

// ゲートウェイ側に作られた注文（checkoutセッション）
type RemoteOrder struct {
	ID          string
	CheckoutURL string
}

// ゲートウェイから取得した支払い詳細。カード番号等はマスク済みのものだけ。
type RemotePayment struct {
	ID      string
	OrderID string
	Method  string // card / upi / netbanking / wallet

	CardLastFour string
	CardBrand    string
	CardType     string
	UpiID        string
	BankName     string
	WalletName   string

	Fee decimal.Decimal

	// 生の応答（診断用、呼び側で切り詰める）
	Raw string
}

type RemoteRefund struct {
	ID string
}

type Gateway interface {
	CreateRemoteOrder(ctx context.Context, amount decimal.Decimal, currency string, receipt string, notes map[string]string) (RemoteOrder, error)
	FetchPayment(ctx context.Context, gatewayPaymentID string) (RemotePayment, error)
	// amountがnilなら全額リファンド
	CreateRefund(ctx context.Context, gatewayPaymentID string, amount *decimal.Decimal, reason string) (RemoteRefund, error)

	// checkout完了後にクライアントが持ち込む署名の検証
	VerifyCheckoutSignature(gatewayOrderID string, gatewayPaymentID string, signature string) bool
	// webhook本文のHMAC検証（checkout署名とは別スキーム）
	VerifyWebhookSignature(payload []byte, signature string) bool
}
