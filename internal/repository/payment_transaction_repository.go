package repository

import (
	"context"

	"mart/internal/domain/model"

	"github.com/shopspring/decimal"
)

type PaymentTransactionRepository interface {
	Create(ctx context.Context, tx model.PaymentTransaction) error
	Save(ctx context.Context, tx model.PaymentTransaction) error

	ListByPaymentID(ctx context.Context, paymentID string) ([]model.PaymentTransaction, error)

	// webhook再配送の重複判定キー
	FindByGatewayTransactionID(ctx context.Context, gatewayTxID string) (model.PaymentTransaction, error)

	// 成功したREFUND/PARTIAL_REFUNDの合計
	TotalRefunded(ctx context.Context, paymentID string) (decimal.Decimal, error)
}
