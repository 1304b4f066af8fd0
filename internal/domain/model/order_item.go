package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 注文時点のカタログ商品のスナップショット。
// 購入後に価格が変わっても履歴は書き換えない。
type OrderItem struct {
	ID      string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OrderID string `gorm:"type:varchar(36);not null;index" json:"order_id"`

	ProductID     string          `gorm:"type:varchar(36);not null;index" json:"product_id"`
	ProductName   string          `gorm:"type:varchar(255);not null" json:"product_name"`
	ProductImage  string          `gorm:"type:varchar(500)" json:"product_image,omitempty"`
	SKU           string          `gorm:"type:varchar(100)" json:"sku,omitempty"`
	UnitPrice     decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"unit_price"`
	OriginalPrice decimal.Decimal `gorm:"type:numeric(10,2)" json:"original_price"`
	Discount      decimal.Decimal `gorm:"type:numeric(10,2)" json:"discount"`
	Quantity      int             `gorm:"not null" json:"quantity"`
	LineTotal     decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"line_total"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}

func (OrderItem) TableName() string { return "order_items" }

// line total = unit price * quantity - discount
func (i *OrderItem) RecalculateLineTotal() {
	i.LineTotal = i.UnitPrice.
		Mul(decimal.NewFromInt(int64(i.Quantity))).
		Sub(i.Discount)
}
