package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"mart/internal/domain/model"
	"mart/internal/gateway"
	repo "mart/internal/repository"

	"github.com/shopspring/decimal"
)

// ゲートウェイからのイベント名
const (
	webhookPaymentAuthorized = "payment.authorized"
	webhookPaymentCaptured   = "payment.captured"
	webhookPaymentFailed     = "payment.failed"
	webhookRefundCreated     = "refund.created"
	webhookRefundProcessed   = "refund.processed"
)

// webhook本文。金額は最小通貨単位（パイサ）で来る。
type webhookEnvelope struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity *webhookPayment `json:"entity"`
		} `json:"payment"`
		Refund struct {
			Entity *webhookRefund `json:"entity"`
		} `json:"refund"`
	} `json:"payload"`
}

type webhookPayment struct {
	ID      string `json:"id"`
	OrderID string `json:"order_id"`
	Amount  int64  `json:"amount"`
	Method  string `json:"method"`
	Fee     int64  `json:"fee"`
	Card    *struct {
		Last4   string `json:"last4"`
		Network string `json:"network"`
		Type    string `json:"type"`
	} `json:"card"`
	VPA              string `json:"vpa"`
	Bank             string `json:"bank"`
	Wallet           string `json:"wallet"`
	ErrorDescription string `json:"error_description"`
}

type webhookRefund struct {
	ID        string `json:"id"`
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount"`
}

func fromPaise(v int64) decimal.Decimal {
	return decimal.NewFromInt(v).Div(decimal.NewFromInt(100))
}

type WebhookUsecase struct {
	tx    repo.TransactionManager
	gw    gateway.Gateway
	idGen IDGenerator
	clock Clock
}

func NewWebhookUsecase(tx repo.TransactionManager, gw gateway.Gateway, idGen IDGenerator, clock Clock) *WebhookUsecase {
	return &WebhookUsecase{tx: tx, gw: gw, idGen: idGen, clock: clock}
}

// 署名検証→イベント別に処理。配送はat-least-onceなので各処理は冪等。
// 個々の処理の失敗はログに残して200を返す（署名不一致だけが401）。
func (u *WebhookUsecase) HandleEvent(ctx context.Context, payload []byte, signature string) error {
	if !u.gw.VerifyWebhookSignature(payload, signature) {
		return NewHTTPError(http.StatusUnauthorized, "invalid webhook signature")
	}

	var env webhookEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return NewHTTPError(http.StatusBadRequest, "malformed webhook payload")
	}

	var err error
	switch env.Event {
	case webhookPaymentAuthorized:
		err = u.handlePaymentAuthorized(ctx, env.Payload.Payment.Entity)
	case webhookPaymentCaptured:
		err = u.handlePaymentCaptured(ctx, env.Payload.Payment.Entity)
	case webhookPaymentFailed:
		err = u.handlePaymentFailed(ctx, env.Payload.Payment.Entity)
	case webhookRefundCreated:
		err = u.handleRefundCreated(ctx, env.Payload.Refund.Entity)
	case webhookRefundProcessed:
		err = u.handleRefundProcessed(ctx, env.Payload.Refund.Entity)
	default:
		log.Printf("webhook: ignoring unknown event %q", env.Event)
		return nil
	}
	if err != nil {
		// 1件の失敗でゲートウェイに再送ループをさせない
		log.Printf("WARN: webhook %s: %v", env.Event, err)
	}
	return nil
}

func (u *WebhookUsecase) handlePaymentAuthorized(ctx context.Context, entity *webhookPayment) error {
	if entity == nil {
		return errors.New("missing payment entity")
	}
	return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := r.Payments().FindByGatewayOrderID(ctx, entity.OrderID)
		if errors.Is(err, repo.ErrNotFound) {
			// 他システム宛の通知かもしれない。落とさない。
			log.Printf("webhook: no payment for gateway order %s, ignoring", entity.OrderID)
			return nil
		}
		if err != nil {
			return err
		}

		if p.Status == model.PaymentStatusProcessing && p.GatewayPaymentID == entity.ID {
			return nil
		}
		if !p.Status.CanTransitionTo(model.PaymentStatusProcessing) {
			// 同期verifyが先に終端化した後の再送。何もしない。
			return nil
		}

		p.Status = model.PaymentStatusProcessing
		p.GatewayPaymentID = entity.ID
		return r.Payments().Save(ctx, p)
	})
}

func (u *WebhookUsecase) handlePaymentCaptured(ctx context.Context, entity *webhookPayment) error {
	if entity == nil {
		return errors.New("missing payment entity")
	}
	return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := r.Payments().FindByGatewayOrderID(ctx, entity.OrderID)
		if errors.Is(err, repo.ErrNotFound) {
			log.Printf("webhook: no payment for gateway order %s, ignoring", entity.OrderID)
			return nil
		}
		if err != nil {
			return err
		}

		// verify済み、または同イベントの再送。二重適用しない。
		if p.Status == model.PaymentStatusSuccess {
			return nil
		}
		if !p.Status.CanTransitionTo(model.PaymentStatusSuccess) {
			return nil
		}

		now := u.clock.Now()
		p.Status = model.PaymentStatusSuccess
		p.GatewayPaymentID = entity.ID
		p.PaymentDate = &now
		p.FailureReason = ""
		applyWebhookDetails(&p, entity)

		if err := r.Payments().Save(ctx, p); err != nil {
			return err
		}
		return finalizePaymentTx(ctx, r, p.ID, model.TransactionStatusSuccess, entity.ID, "", u.idGen, u.clock)
	})
}

func applyWebhookDetails(p *model.Payment, entity *webhookPayment) {
	if entity.Card != nil {
		p.CardLastFour = entity.Card.Last4
		p.CardBrand = entity.Card.Network
		p.CardType = entity.Card.Type
	}
	p.UpiID = entity.VPA
	p.BankName = entity.Bank
	p.WalletName = entity.Wallet
	if entity.Fee > 0 {
		p.PaymentFee = fromPaise(entity.Fee)
		p.NetAmount = p.Amount.Sub(p.PaymentFee)
	}
}

func (u *WebhookUsecase) handlePaymentFailed(ctx context.Context, entity *webhookPayment) error {
	if entity == nil {
		return errors.New("missing payment entity")
	}
	return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := r.Payments().FindByGatewayOrderID(ctx, entity.OrderID)
		if errors.Is(err, repo.ErrNotFound) {
			log.Printf("webhook: no payment for gateway order %s, ignoring", entity.OrderID)
			return nil
		}
		if err != nil {
			return err
		}

		if !p.IsNonTerminal() {
			return nil
		}

		reason := entity.ErrorDescription
		if reason == "" {
			reason = "Payment failed at gateway"
		}
		p.Status = model.PaymentStatusFailed
		p.GatewayPaymentID = entity.ID
		p.FailureReason = reason
		if err := r.Payments().Save(ctx, p); err != nil {
			return err
		}
		return finalizePaymentTx(ctx, r, p.ID, model.TransactionStatusFailed, entity.ID, reason, u.idGen, u.clock)
	})
}

func (u *WebhookUsecase) handleRefundCreated(ctx context.Context, entity *webhookRefund) error {
	if entity == nil {
		return errors.New("missing refund entity")
	}
	return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		// ゲートウェイ側リファンドIDが重複判定キー
		if _, err := r.PaymentTransactions().FindByGatewayTransactionID(ctx, entity.ID); err == nil {
			return nil
		} else if !errors.Is(err, repo.ErrNotFound) {
			return err
		}

		p, err := r.Payments().FindByGatewayPaymentID(ctx, entity.PaymentID)
		if errors.Is(err, repo.ErrNotFound) {
			log.Printf("webhook: no payment for gateway payment %s, ignoring refund", entity.PaymentID)
			return nil
		}
		if err != nil {
			return err
		}

		total, err := r.PaymentTransactions().TotalRefunded(ctx, p.ID)
		if err != nil {
			return err
		}
		amount := fromPaise(entity.Amount)
		txType := model.TransactionPartialRefund
		if amount.GreaterThanOrEqual(p.Amount.Sub(total)) {
			txType = model.TransactionRefund
		}

		return r.PaymentTransactions().Create(ctx, model.PaymentTransaction{
			ID:                   u.idGen.NewID(),
			PaymentID:            p.ID,
			GatewayTransactionID: entity.ID,
			Amount:               amount,
			Currency:             p.Currency,
			Type:                 txType,
			Status:               model.TransactionStatusProcessing,
		})
	})
}

func (u *WebhookUsecase) handleRefundProcessed(ctx context.Context, entity *webhookRefund) error {
	if entity == nil {
		return errors.New("missing refund entity")
	}
	return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := r.Payments().FindByGatewayPaymentID(ctx, entity.PaymentID)
		if errors.Is(err, repo.ErrNotFound) {
			log.Printf("webhook: no payment for gateway payment %s, ignoring refund", entity.PaymentID)
			return nil
		}
		if err != nil {
			return err
		}

		now := u.clock.Now()
		tx, err := r.PaymentTransactions().FindByGatewayTransactionID(ctx, entity.ID)
		switch {
		case errors.Is(err, repo.ErrNotFound):
			// refund.createdを取り逃がしたケース。ここで起票して即確定。
			tx = model.PaymentTransaction{
				ID:                   u.idGen.NewID(),
				PaymentID:            p.ID,
				GatewayTransactionID: entity.ID,
				Amount:               fromPaise(entity.Amount),
				Currency:             p.Currency,
				Type:                 model.TransactionPartialRefund,
				Status:               model.TransactionStatusSuccess,
				ProcessedAt:          &now,
			}
			if err := r.PaymentTransactions().Create(ctx, tx); err != nil {
				return err
			}
		case err != nil:
			return err
		case tx.Status == model.TransactionStatusSuccess:
			// 再送。確定済みの金額は二度と動かさない。
			return nil
		default:
			tx.Status = model.TransactionStatusSuccess
			tx.ProcessedAt = &now
			if err := r.PaymentTransactions().Save(ctx, tx); err != nil {
				return err
			}
		}

		total, err := r.PaymentTransactions().TotalRefunded(ctx, p.ID)
		if err != nil {
			return err
		}
		if total.GreaterThanOrEqual(p.Amount) {
			p.Status = model.PaymentStatusRefunded
		} else {
			p.Status = model.PaymentStatusPartiallyRefunded
		}
		return r.Payments().Save(ctx, p)
	})
}
