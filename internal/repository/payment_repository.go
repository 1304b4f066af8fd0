package repository

import (
	"context"

	"mart/internal/domain/model"
)

type PaymentRepository interface {
	FindByID(ctx context.Context, paymentID string) (model.Payment, error)
	FindByOrderID(ctx context.Context, orderID string) (model.Payment, error)

	// webhookの照合用（ゲートウェイ側IDで引く）
	FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (model.Payment, error)
	FindByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (model.Payment, error)

	ListByUserID(ctx context.Context, userID string) ([]model.Payment, error)

	Create(ctx context.Context, payment model.Payment) error
	Save(ctx context.Context, payment model.Payment) error
}
