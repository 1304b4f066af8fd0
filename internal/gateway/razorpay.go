package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

type RazorpayGateway struct {
	keyID         string
	keySecret     string
	webhookSecret string
	baseURL       string
	client        *http.Client
}

func NewRazorpayGateway(keyID, keySecret, webhookSecret, baseURL string) *RazorpayGateway {
	return &RazorpayGateway{
		keyID:         keyID,
		keySecret:     keySecret,
		webhookSecret: webhookSecret,
		baseURL:       baseURL,
		client:        &http.Client{Timeout: 10 * time.Second},
	}
}

// Razorpayは最小通貨単位（パイサ）で受ける
func toPaise(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).IntPart()
}

func (g *RazorpayGateway) CreateRemoteOrder(ctx context.Context, amount decimal.Decimal, currency string, receipt string, notes map[string]string) (RemoteOrder, error) {
	body := map[string]any{
		"amount":          toPaise(amount),
		"currency":        currency,
		"receipt":         receipt,
		"payment_capture": 1,
	}
	if len(notes) > 0 {
		body["notes"] = notes
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := g.post(ctx, "/orders", body, &out); err != nil {
		return RemoteOrder{}, err
	}

	return RemoteOrder{
		ID:          out.ID,
		CheckoutURL: "https://checkout.razorpay.com/v1/checkout.js",
	}, nil
}

func (g *RazorpayGateway) FetchPayment(ctx context.Context, gatewayPaymentID string) (RemotePayment, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/payments/"+gatewayPaymentID, nil)
	if err != nil {
		return RemotePayment{}, err
	}
	req.SetBasicAuth(g.keyID, g.keySecret)

	res, err := g.client.Do(req)
	if err != nil {
		return RemotePayment{}, fmt.Errorf("razorpay: %w", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return RemotePayment{}, fmt.Errorf("razorpay: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		return RemotePayment{}, fmt.Errorf("razorpay: fetch payment status %d", res.StatusCode)
	}

	var body struct {
		ID      string `json:"id"`
		OrderID string `json:"order_id"`
		Method  string `json:"method"`
		Fee     int64  `json:"fee"` // パイサ
		Card    *struct {
			Last4   string `json:"last4"`
			Network string `json:"network"`
			Type    string `json:"type"`
		} `json:"card"`
		VPA    string `json:"vpa"`
		Bank   string `json:"bank"`
		Wallet string `json:"wallet"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return RemotePayment{}, fmt.Errorf("razorpay: decode payment: %w", err)
	}

	p := RemotePayment{
		ID:         body.ID,
		OrderID:    body.OrderID,
		Method:     body.Method,
		UpiID:      body.VPA,
		BankName:   body.Bank,
		WalletName: body.Wallet,
		Fee:        decimal.NewFromInt(body.Fee).Div(decimal.NewFromInt(100)),
		Raw:        string(raw),
	}
	if body.Card != nil {
		p.CardLastFour = body.Card.Last4
		p.CardBrand = body.Card.Network
		p.CardType = body.Card.Type
	}
	return p, nil
}

func (g *RazorpayGateway) CreateRefund(ctx context.Context, gatewayPaymentID string, amount *decimal.Decimal, reason string) (RemoteRefund, error) {
	body := map[string]any{}
	if amount != nil {
		body["amount"] = toPaise(*amount)
	}
	if reason != "" {
		body["notes"] = map[string]string{"reason": reason}
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := g.post(ctx, "/payments/"+gatewayPaymentID+"/refund", body, &out); err != nil {
		return RemoteRefund{}, err
	}
	return RemoteRefund{ID: out.ID}, nil
}

// HMAC-SHA256(orderID + "|" + paymentID, keySecret)
func (g *RazorpayGateway) VerifyCheckoutSignature(gatewayOrderID string, gatewayPaymentID string, signature string) bool {
	expected := hmacHex([]byte(gatewayOrderID+"|"+gatewayPaymentID), []byte(g.keySecret))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// webhookは本文全体のHMAC。checkout署名とは秘密鍵が違う。
func (g *RazorpayGateway) VerifyWebhookSignature(payload []byte, signature string) bool {
	expected := hmacHex(payload, []byte(g.webhookSecret))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func hmacHex(payload []byte, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func (g *RazorpayGateway) post(ctx context.Context, path string, body any, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.SetBasicAuth(g.keyID, g.keySecret)
	req.Header.Set("Content-Type", "application/json")

	res, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("razorpay: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(res.Body)
		return fmt.Errorf("razorpay: %s status %d: %s", path, res.StatusCode, string(raw))
	}
	return json.NewDecoder(res.Body).Decode(out)
}
