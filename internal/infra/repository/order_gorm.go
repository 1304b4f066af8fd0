package repository

import (
	"context"
	"errors"

	"mart/internal/domain/model"
	repo "mart/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type OrderGormRepository struct {
	db *gorm.DB
}

func NewOrderGormRepository(db *gorm.DB) *OrderGormRepository {
	return &OrderGormRepository{db: db}
}

func (r *OrderGormRepository) FindByID(ctx context.Context, orderID string) (model.Order, error) {
	var o model.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Timeline", func(db *gorm.DB) *gorm.DB { return db.Order("created_at asc") }).
		Where("id = ?", orderID).
		First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Order{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Order{}, err
	}
	return o, nil
}

func (r *OrderGormRepository) FindByOrderNumber(ctx context.Context, orderNumber string) (model.Order, error) {
	var o model.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Timeline", func(db *gorm.DB) *gorm.DB { return db.Order("created_at asc") }).
		Where("order_number = ?", orderNumber).
		First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Order{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Order{}, err
	}
	return o, nil
}

func (r *OrderGormRepository) ListByUserID(ctx context.Context, userID string, page int, limit int) ([]model.Order, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Order{}).Where("user_id = ?", userID)
	return r.page(q, page, limit)
}

func (r *OrderGormRepository) ListByStatus(ctx context.Context, status model.OrderStatus, page int, limit int) ([]model.Order, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Order{}).Where("order_status = ?", status)
	return r.page(q, page, limit)
}

func (r *OrderGormRepository) Search(ctx context.Context, term string, page int, limit int) ([]model.Order, int64, error) {
	like := "%" + term + "%"
	q := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("order_number ILIKE ? OR user_name ILIKE ? OR user_email ILIKE ?", like, like, like)
	return r.page(q, page, limit)
}

func (r *OrderGormRepository) page(q *gorm.DB, page int, limit int) ([]model.Order, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return []model.Order{}, 0, err
	}

	var items []model.Order
	offset := (page - 1) * limit
	err := q.Preload("Items").
		Order("created_at desc").
		Limit(limit).
		Offset(offset).
		Find(&items).Error
	if err != nil {
		return []model.Order{}, 0, err
	}
	return items, total, nil
}

func (r *OrderGormRepository) Create(ctx context.Context, order model.Order) error {
	return r.db.WithContext(ctx).Create(&order).Error
}

func (r *OrderGormRepository) Save(ctx context.Context, order model.Order) error {
	// Items/Timelineは専用repoで書く。ここで上書き保存しない。
	res := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("id = ?", order.ID).
		Omit("Items", "Timeline").
		Select("*").
		Omit("id", "created_at").
		Updates(&order)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *OrderGormRepository) CountByUserID(ctx context.Context, userID string) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	return total, err
}

func (r *OrderGormRepository) TotalSpentByUserID(ctx context.Context, userID string) (decimal.Decimal, error) {
	var sum decimal.NullDecimal
	err := r.db.WithContext(ctx).Model(&model.Order{}).
		Select("COALESCE(SUM(total_amount), 0)").
		Where("user_id = ? AND order_status <> ?", userID, model.OrderStatusCancelled).
		Scan(&sum).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !sum.Valid {
		return decimal.Zero, nil
	}
	return sum.Decimal, nil
}
