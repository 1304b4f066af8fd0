package external

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

type CartItem struct {
	ProductID     string          `json:"product_id"`
	ProductName   string          `json:"product_name"`
	ProductImage  string          `json:"product_image,omitempty"`
	SKU           string          `json:"sku,omitempty"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	OriginalPrice decimal.Decimal `json:"original_price"`
	Discount      decimal.Decimal `json:"discount"`
	Quantity      int             `json:"quantity"`
}

type CartSummary struct {
	Items         []CartItem      `json:"items"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	TotalSavings  decimal.Decimal `json:"total_savings"`
	TotalItems    int             `json:"total_items"`
	TotalQuantity int             `json:"total_quantity"`
}

func (s CartSummary) IsEmpty() bool {
	return len(s.Items) == 0
}

type CartClient interface {
	GetCart(ctx context.Context, userID string) (CartSummary, error)
	// 価格と在庫の再チェック。失敗してもチェックアウトは止めない（呼び側でbest-effort扱い）。
	ValidateCart(ctx context.Context, userID string) (CartSummary, error)
	ClearCart(ctx context.Context, userID string) error
}

type HTTPCartClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPCartClient(baseURL string) *HTTPCartClient {
	return &HTTPCartClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *HTTPCartClient) GetCart(ctx context.Context, userID string) (CartSummary, error) {
	return c.fetch(ctx, http.MethodGet, "/api/cart/"+userID)
}

func (c *HTTPCartClient) ValidateCart(ctx context.Context, userID string) (CartSummary, error) {
	return c.fetch(ctx, http.MethodPost, "/api/cart/"+userID+"/validate")
}

func (c *HTTPCartClient) ClearCart(ctx context.Context, userID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/api/cart/"+userID, nil)
	if err != nil {
		return err
	}
	res, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("cart service: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK && res.StatusCode != http.StatusNoContent {
		return fmt.Errorf("cart service: status %d", res.StatusCode)
	}
	return nil
}

func (c *HTTPCartClient) fetch(ctx context.Context, method string, path string) (CartSummary, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return CartSummary{}, err
	}

	res, err := c.client.Do(req)
	if err != nil {
		return CartSummary{}, fmt.Errorf("cart service: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return CartSummary{}, fmt.Errorf("cart service: status %d", res.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(res.Body).Decode(&env); err != nil {
		return CartSummary{}, fmt.Errorf("cart service: decode: %w", err)
	}
	if !env.Success {
		return CartSummary{}, fmt.Errorf("cart service: %s", env.Message)
	}

	var summary CartSummary
	if err := json.Unmarshal(env.Data, &summary); err != nil {
		return CartSummary{}, fmt.Errorf("cart service: decode cart: %w", err)
	}
	return summary, nil
}
