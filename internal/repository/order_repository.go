package repository

import (
	"context"
	"errors"
	"time"

	"mart/internal/domain/model"

	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("not found")

type OrderListFilter struct {
	Page   int
	Limit  int
	Status string
	UserID string
	From   *time.Time
	To     *time.Time
}

type OrderRepository interface {
	FindByID(ctx context.Context, orderID string) (model.Order, error)
	FindByOrderNumber(ctx context.Context, orderNumber string) (model.Order, error)
	ListByUserID(ctx context.Context, userID string, page int, limit int) ([]model.Order, int64, error)
	ListByStatus(ctx context.Context, status model.OrderStatus, page int, limit int) ([]model.Order, int64, error)

	// 注文番号・氏名・メールの部分一致検索
	Search(ctx context.Context, term string, page int, limit int) ([]model.Order, int64, error)

	Create(ctx context.Context, order model.Order) error

	// itemsとtimelineは別repoで扱う。ここは注文本体の列だけ更新する。
	Save(ctx context.Context, order model.Order) error

	CountByUserID(ctx context.Context, userID string) (int64, error)
	// キャンセル済みを除いた累計購入額
	TotalSpentByUserID(ctx context.Context, userID string) (decimal.Decimal, error)
}
