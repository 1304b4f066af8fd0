package repository

import (
	"context"
	"errors"

	"mart/internal/domain/model"
	repo "mart/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PaymentTransactionGormRepository struct {
	db *gorm.DB
}

func NewPaymentTransactionGormRepository(db *gorm.DB) *PaymentTransactionGormRepository {
	return &PaymentTransactionGormRepository{db: db}
}

func (r *PaymentTransactionGormRepository) Create(ctx context.Context, tx model.PaymentTransaction) error {
	return r.db.WithContext(ctx).Create(&tx).Error
}

func (r *PaymentTransactionGormRepository) Save(ctx context.Context, tx model.PaymentTransaction) error {
	res := r.db.WithContext(ctx).
		Model(&model.PaymentTransaction{}).
		Where("id = ?", tx.ID).
		Select("*").
		Omit("id", "created_at").
		Updates(&tx)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *PaymentTransactionGormRepository) ListByPaymentID(ctx context.Context, paymentID string) ([]model.PaymentTransaction, error) {
	var items []model.PaymentTransaction
	err := r.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		Order("created_at asc").
		Find(&items).Error
	if err != nil {
		return []model.PaymentTransaction{}, err
	}
	return items, nil
}

func (r *PaymentTransactionGormRepository) FindByGatewayTransactionID(ctx context.Context, gatewayTxID string) (model.PaymentTransaction, error) {
	var t model.PaymentTransaction
	err := r.db.WithContext(ctx).
		Where("gateway_transaction_id = ?", gatewayTxID).
		First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.PaymentTransaction{}, repo.ErrNotFound
	}
	if err != nil {
		return model.PaymentTransaction{}, err
	}
	return t, nil
}

func (r *PaymentTransactionGormRepository) TotalRefunded(ctx context.Context, paymentID string) (decimal.Decimal, error) {
	var sum decimal.NullDecimal
	err := r.db.WithContext(ctx).Model(&model.PaymentTransaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("payment_id = ? AND type IN ? AND status = ?",
			paymentID,
			[]model.TransactionType{model.TransactionRefund, model.TransactionPartialRefund},
			model.TransactionStatusSuccess).
		Scan(&sum).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !sum.Valid {
		return decimal.Zero, nil
	}
	return sum.Decimal, nil
}
