package repository

import (
	"context"

	"mart/internal/domain/model"

	"gorm.io/gorm"
)

type OrderTimelineGormRepository struct {
	db *gorm.DB
}

func NewOrderTimelineGormRepository(db *gorm.DB) *OrderTimelineGormRepository {
	return &OrderTimelineGormRepository{db: db}
}

func (r *OrderTimelineGormRepository) Append(ctx context.Context, entry model.OrderTimeline) error {
	return r.db.WithContext(ctx).Create(&entry).Error
}

func (r *OrderTimelineGormRepository) ListByOrderID(ctx context.Context, orderID string) ([]model.OrderTimeline, error) {
	var entries []model.OrderTimeline
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at asc").
		Find(&entries).Error
	if err != nil {
		return []model.OrderTimeline{}, err
	}
	return entries, nil
}
