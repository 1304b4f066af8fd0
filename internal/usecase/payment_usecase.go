package usecase

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"mart/internal/domain/model"
	"mart/internal/gateway"
	repo "mart/internal/repository"

	"github.com/shopspring/decimal"
)

type PaymentUsecase struct {
	payments repo.PaymentRepository
	payTxs   repo.PaymentTransactionRepository
	tx       repo.TransactionManager
	gw       gateway.Gateway
	idGen    IDGenerator
	clock    Clock
}

func NewPaymentUsecase(
	payments repo.PaymentRepository,
	payTxs repo.PaymentTransactionRepository,
	tx repo.TransactionManager,
	gw gateway.Gateway,
	idGen IDGenerator,
	clock Clock,
) *PaymentUsecase {
	return &PaymentUsecase{
		payments: payments,
		payTxs:   payTxs,
		tx:       tx,
		gw:       gw,
		idGen:    idGen,
		clock:    clock,
	}
}

type InitiatePaymentInput struct {
	OrderID     string
	OrderNumber string
	UserID      string
	Amount      decimal.Decimal
	Currency    string
	Method      model.PaymentMethod
}

type PaymentOutput struct {
	PaymentID        string                `json:"payment_id"`
	OrderID          string                `json:"order_id"`
	UserID           string                `json:"user_id"`
	GatewayOrderID   string                `json:"gateway_order_id,omitempty"`
	GatewayPaymentID string                `json:"gateway_payment_id,omitempty"`
	Amount           decimal.Decimal       `json:"amount"`
	Currency         string                `json:"currency"`
	Method           model.PaymentMethod   `json:"method"`
	Gateway          model.GatewayProvider `json:"gateway"`
	Status           model.PaymentStatus   `json:"status"`
	CheckoutURL      string                `json:"checkout_url,omitempty"`
	PaymentDate      *time.Time            `json:"payment_date,omitempty"`
	FailureReason    string                `json:"failure_reason,omitempty"`
	MaskedInfo       string                `json:"masked_info,omitempty"`

	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func toPaymentOutput(p model.Payment, success bool, message string) PaymentOutput {
	return PaymentOutput{
		PaymentID:        p.ID,
		OrderID:          p.OrderID,
		UserID:           p.UserID,
		GatewayOrderID:   p.GatewayOrderID,
		GatewayPaymentID: p.GatewayPaymentID,
		Amount:           p.Amount,
		Currency:         p.Currency,
		Method:           p.Method,
		Gateway:          p.Gateway,
		Status:           p.Status,
		CheckoutURL:      p.CheckoutURL,
		PaymentDate:      p.PaymentDate,
		FailureReason:    p.FailureReason,
		MaskedInfo:       p.MaskedInfo(),
		Success:          success,
		Message:          message,
	}
}

// チェックアウト開始。非終端の支払いが既にあれば新規には作らずそれを返す。
func (u *PaymentUsecase) Initiate(ctx context.Context, in InitiatePaymentInput) (PaymentOutput, error) {
	if in.Method == model.MethodCashOnDelivery {
		return PaymentOutput{}, NewHTTPError(http.StatusBadRequest, "cash on delivery does not require payment initiation")
	}
	if !in.Amount.IsPositive() {
		return PaymentOutput{}, NewHTTPError(http.StatusBadRequest, "payment amount must be positive")
	}
	currency := in.Currency
	if currency == "" {
		currency = "INR"
	}

	var out PaymentOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		existing, err := r.Payments().FindByOrderID(ctx, in.OrderID)
		switch {
		case err == nil && existing.IsNonTerminal():
			out = toPaymentOutput(existing, true, "payment already in progress")
			return nil
		case err == nil && existing.Status == model.PaymentStatusSuccess:
			return NewHTTPError(http.StatusConflict, "payment already completed for this order")
		case err != nil && !errors.Is(err, repo.ErrNotFound):
			return err
		}

		remote, err := u.gw.CreateRemoteOrder(ctx, in.Amount, currency, in.OrderNumber, map[string]string{
			"order_id": in.OrderID,
			"user_id":  in.UserID,
		})
		if err != nil {
			log.Printf("WARN: create remote order for %s: %v", in.OrderID, err)
			return NewHTTPError(http.StatusBadGateway, "payment gateway unavailable")
		}

		payment := model.Payment{
			ID:             u.idGen.NewID(),
			OrderID:        in.OrderID,
			UserID:         in.UserID,
			Amount:         in.Amount,
			Currency:       currency,
			Method:         in.Method,
			Gateway:        model.GatewayRazorpay,
			GatewayOrderID: remote.ID,
			Status:         model.PaymentStatusPending,
			CheckoutURL:    remote.CheckoutURL,
		}
		if err := r.Payments().Create(ctx, payment); err != nil {
			return err
		}

		if err := r.PaymentTransactions().Create(ctx, model.PaymentTransaction{
			ID:        u.idGen.NewID(),
			PaymentID: payment.ID,
			Amount:    in.Amount,
			Currency:  currency,
			Type:      model.TransactionPayment,
			Status:    model.TransactionStatusPending,
		}); err != nil {
			return err
		}

		out = toPaymentOutput(payment, true, "payment initiated")
		return nil
	})
	if err != nil {
		return PaymentOutput{}, err
	}
	return out, nil
}

type VerifyPaymentInput struct {
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
}

// チェックアウト完了後の同期検証。署名不一致はエラーではなく失敗結果として返す。
func (u *PaymentUsecase) Verify(ctx context.Context, in VerifyPaymentInput) (PaymentOutput, error) {
	var out PaymentOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := r.Payments().FindByGatewayOrderID(ctx, in.GatewayOrderID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "payment not found")
		}
		if err != nil {
			return err
		}

		// webhookが先に着いていた場合。二重適用せずそのまま成功で返す。
		if p.Status == model.PaymentStatusSuccess {
			out = toPaymentOutput(p, true, "payment already verified")
			return nil
		}
		if !p.IsNonTerminal() {
			return NewHTTPError(http.StatusConflict, "payment already finalized")
		}

		if !u.gw.VerifyCheckoutSignature(in.GatewayOrderID, in.GatewayPaymentID, in.Signature) {
			p.Status = model.PaymentStatusFailed
			p.FailureReason = "Payment signature verification failed"
			if err := r.Payments().Save(ctx, p); err != nil {
				return err
			}
			if err := finalizePaymentTx(ctx, r, p.ID, model.TransactionStatusFailed, in.GatewayPaymentID, p.FailureReason, u.idGen, u.clock); err != nil {
				return err
			}
			out = toPaymentOutput(p, false, "payment signature verification failed")
			return nil
		}

		now := u.clock.Now()
		p.Status = model.PaymentStatusSuccess
		p.GatewayPaymentID = in.GatewayPaymentID
		p.PaymentDate = &now
		p.FailureReason = ""

		// 明細の取得は成功判定には影響させない
		if remote, err := u.gw.FetchPayment(ctx, in.GatewayPaymentID); err != nil {
			log.Printf("WARN: fetch payment details %s: %v", in.GatewayPaymentID, err)
		} else {
			applyRemoteDetails(&p, remote)
		}

		if err := r.Payments().Save(ctx, p); err != nil {
			return err
		}
		if err := finalizePaymentTx(ctx, r, p.ID, model.TransactionStatusSuccess, in.GatewayPaymentID, "", u.idGen, u.clock); err != nil {
			return err
		}

		out = toPaymentOutput(p, true, "payment verified")
		return nil
	})
	if err != nil {
		return PaymentOutput{}, err
	}
	return out, nil
}

func applyRemoteDetails(p *model.Payment, remote gateway.RemotePayment) {
	p.CardLastFour = remote.CardLastFour
	p.CardBrand = remote.CardBrand
	p.CardType = remote.CardType
	p.UpiID = remote.UpiID
	p.BankName = remote.BankName
	p.WalletName = remote.WalletName
	p.PaymentFee = remote.Fee
	p.NetAmount = p.Amount.Sub(remote.Fee)
	p.GatewayResponse = truncate(remote.Raw, 2000)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

// 対応するPAYMENT行を終端化する。見つからなければ作る（webhook先行時など）。
// 同期verifyと非同期webhookの両方から呼ばれる。
func finalizePaymentTx(ctx context.Context, r repo.TxRepos, paymentID string, status model.TransactionStatus, gatewayTxID string, failureReason string, idGen IDGenerator, clock Clock) error {
	now := clock.Now()

	txs, err := r.PaymentTransactions().ListByPaymentID(ctx, paymentID)
	if err != nil {
		return err
	}
	for _, t := range txs {
		if t.Type != model.TransactionPayment || t.Status != model.TransactionStatusPending {
			continue
		}
		t.Status = status
		t.GatewayTransactionID = gatewayTxID
		t.FailureReason = failureReason
		t.ProcessedAt = &now
		return r.PaymentTransactions().Save(ctx, t)
	}

	p, err := r.Payments().FindByID(ctx, paymentID)
	if err != nil {
		return err
	}
	return r.PaymentTransactions().Create(ctx, model.PaymentTransaction{
		ID:                   idGen.NewID(),
		PaymentID:            paymentID,
		GatewayTransactionID: gatewayTxID,
		Amount:               p.Amount,
		Currency:             p.Currency,
		Type:                 model.TransactionPayment,
		Status:               status,
		FailureReason:        failureReason,
		ProcessedAt:          &now,
	})
}

type RefundInput struct {
	PaymentID string
	// nilなら残額全額
	Amount *decimal.Decimal
	Reason string
}

type RefundOutput struct {
	RefundID      string              `json:"refund_id"`
	TransactionID string              `json:"transaction_id"`
	PaymentID     string              `json:"payment_id"`
	OrderID       string              `json:"order_id"`
	Amount        decimal.Decimal     `json:"amount"`
	TotalRefunded decimal.Decimal     `json:"total_refunded"`
	PaymentStatus model.PaymentStatus `json:"payment_status"`
}

// リファンド。成功済みリファンドの合計が支払い額を超えることは絶対にない。
func (u *PaymentUsecase) Refund(ctx context.Context, in RefundInput) (RefundOutput, error) {
	var out RefundOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := r.Payments().FindByID(ctx, in.PaymentID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "payment not found")
		}
		if err != nil {
			return err
		}
		if p.Status != model.PaymentStatusSuccess && p.Status != model.PaymentStatusPartiallyRefunded {
			return NewHTTPError(http.StatusBadRequest, "payment is not refundable")
		}

		total, err := r.PaymentTransactions().TotalRefunded(ctx, p.ID)
		if err != nil {
			return err
		}
		available := p.Amount.Sub(total)
		if !available.IsPositive() {
			return NewHTTPError(http.StatusBadRequest, "payment already fully refunded")
		}

		amount := available
		if in.Amount != nil {
			amount = *in.Amount
		}
		if !amount.IsPositive() {
			return NewHTTPError(http.StatusBadRequest, "refund amount must be positive")
		}
		if amount.GreaterThan(available) {
			return NewHTTPError(http.StatusBadRequest, "refund amount exceeds refundable balance")
		}

		remote, err := u.gw.CreateRefund(ctx, p.GatewayPaymentID, &amount, in.Reason)
		if err != nil {
			log.Printf("WARN: create refund for payment %s: %v", p.ID, err)
			return NewHTTPError(http.StatusBadGateway, "payment gateway unavailable")
		}

		txType := model.TransactionPartialRefund
		if amount.Equal(available) {
			txType = model.TransactionRefund
		}
		now := u.clock.Now()
		refundTx := model.PaymentTransaction{
			ID:                   u.idGen.NewID(),
			PaymentID:            p.ID,
			GatewayTransactionID: remote.ID,
			Amount:               amount,
			Currency:             p.Currency,
			Type:                 txType,
			Status:               model.TransactionStatusSuccess,
			RefundReason:         in.Reason,
			ProcessedAt:          &now,
		}
		if err := r.PaymentTransactions().Create(ctx, refundTx); err != nil {
			return err
		}

		newTotal := total.Add(amount)
		if newTotal.GreaterThanOrEqual(p.Amount) {
			p.Status = model.PaymentStatusRefunded
		} else {
			p.Status = model.PaymentStatusPartiallyRefunded
		}
		if err := r.Payments().Save(ctx, p); err != nil {
			return err
		}

		out = RefundOutput{
			RefundID:      remote.ID,
			TransactionID: refundTx.ID,
			PaymentID:     p.ID,
			OrderID:       p.OrderID,
			Amount:        amount,
			TotalRefunded: newTotal,
			PaymentStatus: p.Status,
		}
		return nil
	})
	if err != nil {
		return RefundOutput{}, err
	}
	return out, nil
}

func (u *PaymentUsecase) GetByID(ctx context.Context, paymentID string) (PaymentOutput, error) {
	p, err := u.payments.FindByID(ctx, paymentID)
	if errors.Is(err, repo.ErrNotFound) {
		return PaymentOutput{}, NewHTTPError(http.StatusNotFound, "payment not found")
	}
	if err != nil {
		return PaymentOutput{}, err
	}
	return toPaymentOutput(p, true, ""), nil
}

func (u *PaymentUsecase) GetByOrderID(ctx context.Context, orderID string) (PaymentOutput, error) {
	p, err := u.payments.FindByOrderID(ctx, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return PaymentOutput{}, NewHTTPError(http.StatusNotFound, "payment not found for order")
	}
	if err != nil {
		return PaymentOutput{}, err
	}
	return toPaymentOutput(p, true, ""), nil
}

func (u *PaymentUsecase) ListByUser(ctx context.Context, userID string) ([]PaymentOutput, error) {
	payments, err := u.payments.ListByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	outs := make([]PaymentOutput, 0, len(payments))
	for _, p := range payments {
		outs = append(outs, toPaymentOutput(p, true, ""))
	}
	return outs, nil
}

func (u *PaymentUsecase) ListTransactions(ctx context.Context, paymentID string) ([]model.PaymentTransaction, error) {
	if _, err := u.payments.FindByID(ctx, paymentID); errors.Is(err, repo.ErrNotFound) {
		return nil, NewHTTPError(http.StatusNotFound, "payment not found")
	} else if err != nil {
		return nil, err
	}
	return u.payTxs.ListByPaymentID(ctx, paymentID)
}
