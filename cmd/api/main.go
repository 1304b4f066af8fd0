package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os/signal"
	"syscall"
	"time"

	"mart/internal/config"
	"mart/internal/domain/model"
	"mart/internal/external"
	"mart/internal/gateway"
	"mart/internal/handler"
	"mart/internal/infra/db"
	infraRepo "mart/internal/infra/repository"
	"mart/internal/server"
	"mart/internal/usecase"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

type uuidGenerator struct{}

func (g *uuidGenerator) NewID() string {
	return uuid.NewString()
}

type realClock struct{}

func (c *realClock) Now() time.Time {
	return time.Now()
}

// 時刻＋乱数サフィックスの採番。一意性はDBのunique indexが最後の砦。
type numberGenerator struct {
	clock usecase.Clock
}

func (g *numberGenerator) OrderNumber() string {
	now := g.clock.Now()
	return fmt.Sprintf("ORD-%s-%04d", now.Format("20060102-150405"), rand.Intn(10000))
}

func (g *numberGenerator) InvoiceNumber() string {
	now := g.clock.Now()
	return fmt.Sprintf("INV-%s-%04d", now.Format("20060102"), rand.Intn(10000))
}

func (g *numberGenerator) TrackingNumber() string {
	now := g.clock.Now()
	return fmt.Sprintf("TRK-%s-%06d", now.Format("20060102"), rand.Intn(1000000))
}

func main() {
	// .envは無くてもいい（本番は実環境変数で渡す）
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	gormDB, err := db.Connect(cfg)
	if err != nil {
		log.Fatal(err)
	}
	if err := gormDB.AutoMigrate(
		&model.Order{},
		&model.OrderItem{},
		&model.OrderTimeline{},
		&model.Payment{},
		&model.PaymentTransaction{},
	); err != nil {
		log.Fatal(err)
	}

	//インフラ層
	orderRepo := infraRepo.NewOrderGormRepository(gormDB)
	timelineRepo := infraRepo.NewOrderTimelineGormRepository(gormDB)
	paymentRepo := infraRepo.NewPaymentGormRepository(gormDB)
	paymentTxRepo := infraRepo.NewPaymentTransactionGormRepository(gormDB)
	txManager := infraRepo.NewTxManagerGorm(gormDB)

	//外部コラボレーター
	userClient := external.NewHTTPUserClient(cfg.UserServiceURL)
	cartClient := external.NewHTTPCartClient(cfg.CartServiceURL)
	var notifier external.Notifier = external.NopNotifier{}
	if cfg.NotificationServiceURL != "" {
		notifier = external.NewHTTPNotifier(cfg.NotificationServiceURL)
	}
	razorpay := gateway.NewRazorpayGateway(
		cfg.RazorpayKeyID,
		cfg.RazorpayKeySecret,
		cfg.RazorpayWebhookSecret,
		cfg.RazorpayBaseURL,
	)

	//注入する能力
	idGen := &uuidGenerator{}
	clock := &realClock{}
	numbers := &numberGenerator{clock: clock}

	//usecase層
	paymentUC := usecase.NewPaymentUsecase(paymentRepo, paymentTxRepo, txManager, razorpay, idGen, clock)
	orderUC := usecase.NewOrderUsecase(orderRepo, timelineRepo, txManager, userClient, cartClient, notifier, paymentUC, idGen, clock, numbers)
	statusUC := usecase.NewOrderStatusUsecase(orderUC, txManager, paymentUC, idGen, clock, numbers)
	webhookUC := usecase.NewWebhookUsecase(txManager, razorpay, idGen, clock)

	//HTTP層
	srv := server.New(cfg.Port)
	handler.NewOrderHandler(orderUC, statusUC).RegisterRoutes(srv.Echo(), cfg)
	handler.NewPaymentHandler(paymentUC, orderUC).RegisterRoutes(srv.Echo(), cfg)
	handler.NewWebhookHandler(webhookUC).RegisterRoutes(srv.Echo())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		log.Fatal(err)
	}
}
