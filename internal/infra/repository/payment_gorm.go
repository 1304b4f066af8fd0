package repository

import (
	"context"
	"errors"

	"mart/internal/domain/model"
	repo "mart/internal/repository"

	"gorm.io/gorm"
)

type PaymentGormRepository struct {
	db *gorm.DB
}

func NewPaymentGormRepository(db *gorm.DB) *PaymentGormRepository {
	return &PaymentGormRepository{db: db}
}

func (r *PaymentGormRepository) FindByID(ctx context.Context, paymentID string) (model.Payment, error) {
	return r.findOne(ctx, "id = ?", paymentID)
}

func (r *PaymentGormRepository) FindByOrderID(ctx context.Context, orderID string) (model.Payment, error) {
	// 同一注文に複数回試行があり得るので最新を返す
	var p model.Payment
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at desc").
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Payment{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Payment{}, err
	}
	return p, nil
}

func (r *PaymentGormRepository) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (model.Payment, error) {
	return r.findOne(ctx, "gateway_order_id = ?", gatewayOrderID)
}

func (r *PaymentGormRepository) FindByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (model.Payment, error) {
	return r.findOne(ctx, "gateway_payment_id = ?", gatewayPaymentID)
}

func (r *PaymentGormRepository) findOne(ctx context.Context, query string, arg string) (model.Payment, error) {
	var p model.Payment
	err := r.db.WithContext(ctx).Where(query, arg).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Payment{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Payment{}, err
	}
	return p, nil
}

func (r *PaymentGormRepository) ListByUserID(ctx context.Context, userID string) ([]model.Payment, error) {
	var items []model.Payment
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&items).Error
	if err != nil {
		return []model.Payment{}, err
	}
	return items, nil
}

func (r *PaymentGormRepository) Create(ctx context.Context, payment model.Payment) error {
	return r.db.WithContext(ctx).Create(&payment).Error
}

func (r *PaymentGormRepository) Save(ctx context.Context, payment model.Payment) error {
	res := r.db.WithContext(ctx).
		Model(&model.Payment{}).
		Where("id = ?", payment.ID).
		Omit("Transactions").
		Select("*").
		Omit("id", "created_at").
		Updates(&payment)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}
