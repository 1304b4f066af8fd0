package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyCheckoutSignature(t *testing.T) {
	g := NewRazorpayGateway("key", "checkout_secret", "webhook_secret", "http://unused")

	valid := hmacHex([]byte("order_1|pay_1"), []byte("checkout_secret"))
	assert.True(t, g.VerifyCheckoutSignature("order_1", "pay_1", valid))

	// 別の秘密鍵で作った署名は通らない
	wrongKey := hmacHex([]byte("order_1|pay_1"), []byte("webhook_secret"))
	assert.False(t, g.VerifyCheckoutSignature("order_1", "pay_1", wrongKey))

	// 値の差し替えも通らない
	assert.False(t, g.VerifyCheckoutSignature("order_1", "pay_2", valid))
	assert.False(t, g.VerifyCheckoutSignature("order_1", "pay_1", ""))
}

func TestVerifyWebhookSignature(t *testing.T) {
	g := NewRazorpayGateway("key", "checkout_secret", "webhook_secret", "http://unused")
	body := []byte(`{"event":"payment.captured"}`)

	valid := hmacHex(body, []byte("webhook_secret"))
	assert.True(t, g.VerifyWebhookSignature(body, valid))

	// 本文が1バイトでも違えば不一致
	assert.False(t, g.VerifyWebhookSignature([]byte(`{"event":"payment.captured" }`), valid))
	// checkout側の鍵では通らない
	assert.False(t, g.VerifyWebhookSignature(body, hmacHex(body, []byte("checkout_secret"))))
}

func TestCreateRemoteOrder(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orders", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "key_id", user)
		assert.Equal(t, "key_secret", pass)

		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "order_rzp1"})
	}))
	defer srv.Close()

	g := NewRazorpayGateway("key_id", "key_secret", "wh", srv.URL)
	out, err := g.CreateRemoteOrder(context.Background(), decimal.NewFromFloat(708.50), "INR", "ORD-1", map[string]string{"order_id": "o-1"})
	require.NoError(t, err)
	assert.Equal(t, "order_rzp1", out.ID)
	assert.NotEmpty(t, out.CheckoutURL)

	// 708.50はパイサで70850
	assert.Equal(t, float64(70850), gotBody["amount"])
	assert.Equal(t, "INR", gotBody["currency"])
	assert.Equal(t, "ORD-1", gotBody["receipt"])
	assert.Equal(t, float64(1), gotBody["payment_capture"])
}

func TestCreateRemoteOrder_GatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	g := NewRazorpayGateway("key_id", "key_secret", "wh", srv.URL)
	_, err := g.CreateRemoteOrder(context.Background(), decimal.NewFromInt(100), "INR", "ORD-1", nil)
	assert.Error(t, err)
}

func TestFetchPayment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payments/pay_1", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":       "pay_1",
			"order_id": "order_rzp1",
			"method":   "card",
			"fee":      1400,
			"card":     map[string]string{"last4": "4242", "network": "Visa", "type": "credit"},
		})
	}))
	defer srv.Close()

	g := NewRazorpayGateway("key_id", "key_secret", "wh", srv.URL)
	p, err := g.FetchPayment(context.Background(), "pay_1")
	require.NoError(t, err)
	assert.Equal(t, "pay_1", p.ID)
	assert.Equal(t, "card", p.Method)
	assert.Equal(t, "4242", p.CardLastFour)
	assert.Equal(t, "Visa", p.CardBrand)
	assert.True(t, p.Fee.Equal(decimal.NewFromInt(14)))
	assert.NotEmpty(t, p.Raw)
}

func TestCreateRefund(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payments/pay_1/refund", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "rfnd_1"})
	}))
	defer srv.Close()

	g := NewRazorpayGateway("key_id", "key_secret", "wh", srv.URL)
	amount := decimal.NewFromInt(300)
	out, err := g.CreateRefund(context.Background(), "pay_1", &amount, "damaged item")
	require.NoError(t, err)
	assert.Equal(t, "rfnd_1", out.ID)
	assert.Equal(t, float64(30000), gotBody["amount"])

	notes, _ := gotBody["notes"].(map[string]any)
	assert.Equal(t, "damaged item", notes["reason"])
}
