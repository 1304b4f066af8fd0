package repository

import (
	"context"

	"mart/internal/domain/model"
)

// タイムラインは追記のみ。UpdateやDeleteは定義しない。
type OrderTimelineRepository interface {
	Append(ctx context.Context, entry model.OrderTimeline) error
	ListByOrderID(ctx context.Context, orderID string) ([]model.OrderTimeline, error)
}
